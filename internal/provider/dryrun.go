package provider

import (
	"context"

	"go.uber.org/zap"

	"github.com/simplesurance/mergetrain/internal/logfields"
)

// DryRun wraps a Provider and simulates all operations that would change
// state at the provider. Mutating calls are logged and succeed, read
// operations are forwarded to the wrapped client.
type DryRun struct {
	clt    Provider
	logger *zap.Logger
}

func NewDryRun(clt Provider) *DryRun {
	return &DryRun{
		clt:    clt,
		logger: zap.L().Named("dry_run_provider"),
	}
}

func (d *DryRun) GetPRState(ctx context.Context, owner, repo string, prNumber int) (*PullRequestState, error) {
	return d.clt.GetPRState(ctx, owner, repo, prNumber)
}

func (d *DryRun) ListOpenPRNumbers(ctx context.Context, owner, repo string) ([]int, error) {
	return d.clt.ListOpenPRNumbers(ctx, owner, repo)
}

func (d *DryRun) ResolveTeamMembers(ctx context.Context, owner, team string) ([]string, error) {
	return d.clt.ResolveTeamMembers(ctx, owner, team)
}

func (d *DryRun) PostComment(_ context.Context, owner, repo string, prNumber int, _ string) error {
	d.logger.Info(
		"simulated posting a comment",
		logfields.RepositoryOwner(owner),
		logfields.Repository(repo),
		logfields.PullRequest(prNumber),
	)

	return nil
}

func (d *DryRun) SetReview(_ context.Context, owner, repo string, prNumber int, reviewType, _ string) error {
	d.logger.Info(
		"simulated submitting a review",
		logfields.RepositoryOwner(owner),
		logfields.Repository(repo),
		logfields.PullRequest(prNumber),
		zap.String("review_type", reviewType),
	)

	return nil
}

func (d *DryRun) DismissReview(_ context.Context, owner, repo string, prNumber int, reviewID int64, _ string) error {
	d.logger.Info(
		"simulated dismissing a review",
		logfields.RepositoryOwner(owner),
		logfields.Repository(repo),
		logfields.PullRequest(prNumber),
		zap.Int64("review_id", reviewID),
	)

	return nil
}

func (d *DryRun) MergePR(_ context.Context, owner, repo string, prNumber int, method, _ string) error {
	d.logger.Info(
		"simulated merging a pull request",
		logfields.RepositoryOwner(owner),
		logfields.Repository(repo),
		logfields.PullRequest(prNumber),
		zap.String("merge_method", method),
	)

	return nil
}
