package conditions

import (
	"github.com/simplesurance/mergetrain/internal/provider"
)

// Attribute names addressable in leaf conditions.
const (
	AttrAuthor         = "author"
	AttrBase           = "base"
	AttrHead           = "head"
	AttrTitle          = "title"
	AttrBody           = "body"
	AttrDraft          = "draft"
	AttrMilestone      = "milestone"
	AttrLabel          = "label"
	AttrCommitAuthor   = "commit-author"
	AttrReviewDecision = "review-decision"
	AttrConflict       = "conflict"
	AttrQueued         = "queued"
)

var knownAttributes = map[string]struct{}{
	AttrAuthor:         {},
	AttrBase:           {},
	AttrHead:           {},
	AttrTitle:          {},
	AttrBody:           {},
	AttrDraft:          {},
	AttrMilestone:      {},
	AttrLabel:          {},
	AttrCommitAuthor:   {},
	AttrReviewDecision: {},
	AttrConflict:       {},
	AttrQueued:         {},
}

// Snapshot provides attribute access on a pull-request state for condition
// evaluation.
type Snapshot struct {
	pr *provider.PullRequestState
}

func NewSnapshot(pr *provider.PullRequestState) *Snapshot {
	return &Snapshot{pr: pr}
}

func (s *Snapshot) PullRequest() *provider.PullRequestState {
	return s.pr
}

func (s *Snapshot) RepositoryOwner() string {
	return s.pr.RepositoryOwner
}

// AttributeValues returns the values of an attribute.
// Scalar attributes yield one element, set attributes (label,
// commit-author) one per member, boolean attributes "true" or "false".
func (s *Snapshot) AttributeValues(attr string) []string {
	switch attr {
	case AttrAuthor:
		return []string{s.pr.Author}
	case AttrBase:
		return []string{s.pr.BaseBranch}
	case AttrHead:
		return []string{s.pr.Branch}
	case AttrTitle:
		return []string{s.pr.Title}
	case AttrBody:
		return []string{s.pr.Body}
	case AttrDraft:
		return boolVal(s.pr.Draft)
	case AttrMilestone:
		return []string{s.pr.Milestone}
	case AttrLabel:
		return s.pr.Labels
	case AttrCommitAuthor:
		result := make([]string, 0, len(s.pr.Commits))
		for _, c := range s.pr.Commits {
			result = append(result, c.Author)
		}

		return result
	case AttrReviewDecision:
		return []string{s.pr.ReviewDecision}
	case AttrConflict:
		return boolVal(s.pr.Conflict)
	case AttrQueued:
		return boolVal(s.pr.Queued)
	default:
		return nil
	}
}
