package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/simplesurance/mergetrain/internal/logfields"
	"github.com/simplesurance/mergetrain/internal/provider"
)

// InitSync reconciles the rule state with the pull requests that are
// currently open at the provider.
// It feeds a synthetic event for every open pull request through the
// regular rule evaluation, actions whose conditions hold fire and
// merge-queue entries that were lost on a restart are recreated.
// Events that arrive on the event channel while the synchronization runs
// are processed normally, per-pull-request serialization orders both.
//
// Repositories are specified in "owner/repository" format.
func (e *EvLoop) InitSync(ctx context.Context, repositories []string) error {
	for _, repository := range repositories {
		owner, repo, found := strings.Cut(repository, "/")
		if !found || owner == "" || repo == "" {
			return fmt.Errorf("invalid repository %q, expecting the format owner/repository", repository)
		}

		if err := e.sync(ctx, owner, repo); err != nil {
			return fmt.Errorf("synchronizing %s failed: %w", repository, err)
		}
	}

	return nil
}

func (e *EvLoop) sync(ctx context.Context, owner, repo string) error {
	logger := e.logger.With(
		logfields.RepositoryOwner(owner),
		logfields.Repository(repo),
	)

	logger.Info("starting synchronization", logfields.Event("sync_started"))
	startTime := time.Now()

	var prNumbers []int

	err := e.retryer.Run(ctx, func(ctx context.Context) error {
		var err error

		prNumbers, err = e.provider.ListOpenPRNumbers(ctx, owner, repo)

		return err
	}, nil)
	if err != nil {
		return err
	}

	for _, prNumber := range prNumbers {
		e.processEvent(ctx, &provider.Event{
			Provider:        "sync",
			EventType:       "sync",
			RepositoryOwner: owner,
			Repository:      repo,
			PullRequestNr:   prNumber,
			LogFields: []zap.Field{
				logfields.EventProvider("sync"),
				logfields.RepositoryOwner(owner),
				logfields.Repository(repo),
				logfields.PullRequest(prNumber),
			},
		})
	}

	logger.Info(
		"synchronization finished",
		logfields.Event("sync_finished"),
		zap.Int("open_pull_requests", len(prNumbers)),
		zap.Duration("duration", time.Since(startTime)),
	)

	return nil
}
