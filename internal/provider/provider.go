package provider

import "context"

// Merge methods supported by queue rules.
const (
	MergeMethodSquash = "squash"
	MergeMethodMerge  = "merge"
	MergeMethodRebase = "rebase"
)

// Review types that can be requested via a review action.
const (
	ReviewTypeApprove        = "APPROVE"
	ReviewTypeRequestChanges = "REQUEST_CHANGES"
)

// Provider is the client interface towards the code-hosting provider.
// Implementations return a *retryerr.RetryableError for failures that can
// be retried, e.g. exceeded rate limits or server errors.
//
//go:generate mockgen -package mocks -destination mocks/provider.go . Provider
type Provider interface {
	// GetPRState returns an immutable snapshot of a pull request.
	GetPRState(ctx context.Context, owner, repo string, prNumber int) (*PullRequestState, error)
	// ListOpenPRNumbers returns the numbers of all open pull requests of
	// the repository, ordered by creation time.
	ListOpenPRNumbers(ctx context.Context, owner, repo string) ([]int, error)
	// PostComment posts a comment on a pull request.
	PostComment(ctx context.Context, owner, repo string, prNumber int, body string) error
	// SetReview submits a review of the given type (ReviewTypeApprove or
	// ReviewTypeRequestChanges) on the current head commit.
	SetReview(ctx context.Context, owner, repo string, prNumber int, reviewType, body string) error
	// DismissReview dismisses a previously submitted review.
	DismissReview(ctx context.Context, owner, repo string, prNumber int, reviewID int64, message string) error
	// MergePR merges the pull request with the given method and commit
	// message. The merge fails terminally when the provider rejects it.
	MergePR(ctx context.Context, owner, repo string, prNumber int, method, commitMessage string) error
	// ResolveTeamMembers returns the login names of the members of a team.
	ResolveTeamMembers(ctx context.Context, owner, team string) ([]string, error)
}
