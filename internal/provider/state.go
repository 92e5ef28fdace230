package provider

import (
	"time"

	"go.uber.org/zap"

	"github.com/simplesurance/mergetrain/internal/logfields"
)

// Review decision and state values, as reported by the provider.
const (
	ReviewApproved         = "APPROVED"
	ReviewChangesRequested = "CHANGES_REQUESTED"
	ReviewRequired         = "REVIEW_REQUIRED"
)

// Commit is a commit of a pull-request branch.
type Commit struct {
	SHA         string
	Author      string
	CommittedAt time.Time
}

// Review is a submitted pull-request review.
type Review struct {
	ID          int64
	Author      string
	State       string
	CommitID    string
	SubmittedAt time.Time
}

// PullRequestState is an immutable snapshot of a pull request.
// It is only created by a Provider, evaluations never mutate it.
type PullRequestState struct {
	RepositoryOwner string
	Repository      string
	Number          int

	Author     string
	Title      string
	Body       string
	Branch     string
	BaseBranch string
	HeadCommit string

	Draft     bool
	Milestone string
	Labels    []string
	Conflict  bool
	Closed    bool

	Commits        []Commit
	Reviews        []Review
	ReviewDecision string

	// Queued is true when the pull request carries the queue label.
	Queued bool
	// QueueLabelAppliedAt is the time the queue label was most recently
	// applied, the zero time when it never was.
	QueueLabelAppliedAt time.Time
}

// LatestCommitTime returns the commit timestamp of the newest commit of the
// pull-request branch, the zero time when the commit list is empty.
func (s *PullRequestState) LatestCommitTime() time.Time {
	var result time.Time

	for _, c := range s.Commits {
		if c.CommittedAt.After(result) {
			result = c.CommittedAt
		}
	}

	return result
}

// HasLabel returns true if the pull request carries the given label.
func (s *PullRequestState) HasLabel(label string) bool {
	for _, l := range s.Labels {
		if l == label {
			return true
		}
	}

	return false
}

func (s *PullRequestState) LogFields() []zap.Field {
	return []zap.Field{
		logfields.RepositoryOwner(s.RepositoryOwner),
		logfields.Repository(s.Repository),
		logfields.PullRequest(s.Number),
		logfields.Branch(s.Branch),
		logfields.Commit(s.HeadCommit),
	}
}
