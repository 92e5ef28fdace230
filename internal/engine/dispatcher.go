package engine

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/simplesurance/mergetrain/internal/logfields"
	"github.com/simplesurance/mergetrain/internal/mergequeue"
	"github.com/simplesurance/mergetrain/internal/provider"
	"github.com/simplesurance/mergetrain/internal/rules"
)

// MergeQueuer hands pull requests over to the merge-queue scheduler.
type MergeQueuer interface {
	// Enqueue creates a queue entry for the pull request.
	// It returns mergequeue.ErrAlreadyExists when the pull request
	// already has an entry in the queue.
	Enqueue(ctx context.Context, queueRule *rules.QueueRule, state *provider.PullRequestState) error
}

// Dispatcher applies the actions of matched rules idempotently.
// All state needed for idempotency lives in the dispatch history.
type Dispatcher struct {
	logger   *zap.Logger
	provider provider.Provider
	retryer  *Retryer
	history  *History
	queues   MergeQueuer
	ruleSet  *rules.Set

	// actor is the login name the provider acts as, used to detect
	// already-submitted reviews.
	actor string
}

func NewDispatcher(p provider.Provider, retryer *Retryer, queues MergeQueuer, ruleSet *rules.Set, actor string) *Dispatcher {
	return &Dispatcher{
		logger:   zap.L().Named("dispatcher"),
		provider: p,
		retryer:  retryer,
		history:  NewHistory(),
		queues:   queues,
		ruleSet:  ruleSet,
		actor:    actor,
	}
}

// Dispatch applies one action of a matched rule.
// digest is the dependency digest of the rule for the current snapshot,
// an action that already fired for the same digest is suppressed.
func (d *Dispatcher) Dispatch(ctx context.Context, rule *rules.Rule, actionIdx int, state *provider.PullRequestState, digest uint64) error {
	action := rule.Actions[actionIdx]

	key := recordKey{
		Owner:     state.RepositoryOwner,
		Repo:      state.Repository,
		PR:        state.Number,
		Rule:      rule.Name,
		ActionIdx: actionIdx,
	}

	logger := d.logger.With(state.LogFields()...).With(
		logfields.Rule(rule.Name),
		logfields.Action(action.String()),
	)

	if d.history.IsRedundant(key, digest) {
		logger.Debug(
			"action skipped, already dispatched for unchanged state",
			logfields.Event("action_dispatch_suppressed"),
		)

		return nil
	}

	var err error

	switch action.Kind {
	case rules.ActionComment:
		err = d.dispatchComment(ctx, action, state)
	case rules.ActionReview:
		err = d.dispatchReview(ctx, action, state, logger)
	case rules.ActionDismissReviews:
		err = d.dispatchDismissReviews(ctx, key, action, state, logger)
	case rules.ActionQueue:
		err = d.dispatchQueue(ctx, action, state, logger)
	default:
		err = fmt.Errorf("unsupported action kind: %d", action.Kind)
	}

	if err != nil {
		logger.Warn(
			"dispatching action failed",
			logfields.Event("action_dispatch_failed"),
			zap.Error(err),
		)

		return err
	}

	d.history.MarkDispatched(key, digest)
	metrics.DispatchedActionsInc(rule.Name, action.Kind.String())
	logger.Info(
		"action dispatched",
		logfields.Event("action_dispatched"),
	)

	return nil
}

func (d *Dispatcher) dispatchComment(ctx context.Context, action *rules.Action, state *provider.PullRequestState) error {
	body, err := action.Message.Render(state)
	if err != nil {
		return err
	}

	return d.retryer.Run(ctx, func(ctx context.Context) error {
		return d.provider.PostComment(ctx, state.RepositoryOwner, state.Repository, state.Number, body)
	}, state.LogFields())
}

func (d *Dispatcher) dispatchReview(ctx context.Context, action *rules.Action, state *provider.PullRequestState, logger *zap.Logger) error {
	wantedState := provider.ReviewApproved
	if action.ReviewType == provider.ReviewTypeRequestChanges {
		wantedState = provider.ReviewChangesRequested
	}

	// skip when the actor already holds an active review of the wanted
	// type for the current head commit
	for _, review := range state.Reviews {
		if review.Author == d.actor &&
			review.State == wantedState &&
			review.CommitID == state.HeadCommit {
			logger.Debug(
				"review skipped, actor already reviewed the current commit",
				logfields.Event("review_already_exists"),
			)

			return nil
		}
	}

	return d.retryer.Run(ctx, func(ctx context.Context) error {
		return d.provider.SetReview(ctx, state.RepositoryOwner, state.Repository, state.Number, action.ReviewType, "")
	}, state.LogFields())
}

// dispatchDismissReviews dismisses changes-requested reviews after new
// commits were pushed.
// It only fires when the latest commit is strictly newer than the most
// recent queue-label application and never twice for the same commit,
// guarding against a dismiss, re-evaluate, dismiss loop.
func (d *Dispatcher) dispatchDismissReviews(ctx context.Context, key recordKey, action *rules.Action, state *provider.PullRequestState, logger *zap.Logger) error {
	if !action.ChangesRequestedOnly {
		logger.Debug("dismiss_reviews skipped, changes_requested dismissal is disabled")
		return nil
	}

	if !state.LatestCommitTime().After(state.QueueLabelAppliedAt) {
		logger.Debug(
			"dismiss_reviews skipped, no commit newer than the queue label application",
			logfields.Event("dismiss_reviews_suppressed"),
		)

		return nil
	}

	if d.history.WasDismissedForCommit(key, state.HeadCommit) {
		logger.Debug(
			"dismiss_reviews skipped, already fired for the current commit",
			logfields.Event("dismiss_reviews_suppressed"),
		)

		return nil
	}

	message, err := action.Message.Render(state)
	if err != nil {
		return err
	}

	for _, review := range state.Reviews {
		// approvals are always preserved
		if review.State != provider.ReviewChangesRequested {
			continue
		}

		review := review

		err := d.retryer.Run(ctx, func(ctx context.Context) error {
			return d.provider.DismissReview(ctx, state.RepositoryOwner, state.Repository, state.Number, review.ID, message)
		}, state.LogFields())
		if err != nil {
			return err
		}
	}

	d.history.MarkDismissedForCommit(key, state.HeadCommit)

	return nil
}

func (d *Dispatcher) dispatchQueue(ctx context.Context, action *rules.Action, state *provider.PullRequestState, logger *zap.Logger) error {
	queueRule, err := d.ruleSet.QueueRule(action.QueueName)
	if err != nil {
		return err
	}

	err = d.queues.Enqueue(ctx, queueRule, state)
	if err != nil {
		if errors.Is(err, mergequeue.ErrAlreadyExists) {
			logger.Debug(
				"pull request already queued",
				logfields.Event("pull_request_already_queued"),
				logfields.Queue(action.QueueName),
			)

			return nil
		}

		return err
	}

	logger.Info(
		"pull request enqueued for merging",
		logfields.Event("pull_request_enqueued"),
		logfields.Queue(action.QueueName),
	)

	return nil
}
