// Package githubclt provides the github implementation of the provider
// client interface.
package githubclt

import (
	"context"
	"errors"
	"net/http"
	"regexp"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/google/go-github/v59/github"
	"github.com/shurcooL/githubv4"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/simplesurance/mergetrain/internal/logfields"
	"github.com/simplesurance/mergetrain/internal/provider"
	"github.com/simplesurance/mergetrain/internal/retryerr"
)

const DefaultHTTPClientTimeout = time.Minute

const loggerName = "github_client"

const listPerPage = 100

// teamMembersCacheTTL bounds how long resolved team memberships are served
// from the cache. Team changes become visible after at most this duration.
const teamMembersCacheTTL = 5 * time.Minute

// New returns a new github api client.
// queueLabel is the label whose most recent application timestamp is
// recorded in pull request snapshots.
func New(oauthAPIToken, queueLabel string) *Client {
	httpClient := newHTTPClient(oauthAPIToken)

	return &Client{
		restClt:     github.NewClient(httpClient),
		graphQLClt:  githubv4.NewClient(httpClient),
		logger:      zap.L().Named(loggerName),
		queueLabel:  queueLabel,
		teamMembers: map[string]teamMembersCacheEntry{},
	}
}

func newHTTPClient(apiToken string) *http.Client {
	if apiToken == "" {
		return &http.Client{
			Timeout: DefaultHTTPClientTimeout,
		}
	}

	ts := oauth2.StaticTokenSource(
		&oauth2.Token{AccessToken: apiToken},
	)

	tc := oauth2.NewClient(context.Background(), ts)
	tc.Timeout = DefaultHTTPClientTimeout

	return tc
}

// Client is a github API client implementing the provider interface.
// All methods return a retryerr.RetryableError when an operation can be
// retried, e.g. when the API ratelimit is exceeded.
type Client struct {
	restClt    *github.Client
	graphQLClt *githubv4.Client
	logger     *zap.Logger
	queueLabel string

	// teamMembers caches resolved team memberships per "owner/team" key
	// for teamMembersCacheTTL.
	teamMembers     map[string]teamMembersCacheEntry
	teamMembersLock sync.Mutex
}

type teamMembersCacheEntry struct {
	members   []string
	fetchedAt time.Time
}

// GetPRState returns an immutable snapshot of a pull request.
// The commit list, reviews, labels and label-event timestamps are
// retrieved via the REST API, the review decision via the GraphQL API.
func (clt *Client) GetPRState(ctx context.Context, owner, repo string, prNumber int) (*provider.PullRequestState, error) {
	pr, _, err := clt.restClt.PullRequests.Get(ctx, owner, repo, prNumber)
	if err != nil {
		return nil, clt.wrapRetryableErrors(err)
	}

	state := provider.PullRequestState{
		RepositoryOwner: owner,
		Repository:      repo,
		Number:          prNumber,
		Author:          pr.GetUser().GetLogin(),
		Title:           pr.GetTitle(),
		Body:            pr.GetBody(),
		Branch:          pr.GetHead().GetRef(),
		BaseBranch:      pr.GetBase().GetRef(),
		HeadCommit:      pr.GetHead().GetSHA(),
		Draft:           pr.GetDraft(),
		Milestone:       pr.GetMilestone().GetTitle(),
		Conflict:        pr.GetMergeableState() == "dirty",
		Closed:          pr.GetState() == "closed",
	}

	for _, label := range pr.Labels {
		state.Labels = append(state.Labels, label.GetName())

		if clt.queueLabel != "" && label.GetName() == clt.queueLabel {
			state.Queued = true
		}
	}

	state.Commits, err = clt.listCommits(ctx, owner, repo, prNumber)
	if err != nil {
		return nil, err
	}

	state.Reviews, err = clt.listReviews(ctx, owner, repo, prNumber)
	if err != nil {
		return nil, err
	}

	if state.Queued {
		state.QueueLabelAppliedAt, err = clt.queueLabelAppliedAt(ctx, owner, repo, prNumber)
		if err != nil {
			return nil, err
		}
	}

	state.ReviewDecision, err = clt.reviewDecision(ctx, owner, repo, prNumber)
	if err != nil {
		return nil, err
	}

	return &state, nil
}

func (clt *Client) listCommits(ctx context.Context, owner, repo string, prNumber int) ([]provider.Commit, error) {
	var result []provider.Commit

	opts := github.ListOptions{PerPage: listPerPage}

	for {
		commits, resp, err := clt.restClt.PullRequests.ListCommits(ctx, owner, repo, prNumber, &opts)
		if err != nil {
			return nil, clt.wrapRetryableErrors(err)
		}

		for _, commit := range commits {
			author := commit.GetAuthor().GetLogin()
			if author == "" {
				author = commit.GetCommit().GetAuthor().GetName()
			}

			result = append(result, provider.Commit{
				SHA:         commit.GetSHA(),
				Author:      author,
				CommittedAt: commit.GetCommit().GetCommitter().GetDate().Time,
			})
		}

		if resp.NextPage == 0 {
			return result, nil
		}

		opts.Page = resp.NextPage
	}
}

func (clt *Client) listReviews(ctx context.Context, owner, repo string, prNumber int) ([]provider.Review, error) {
	var result []provider.Review

	opts := github.ListOptions{PerPage: listPerPage}

	for {
		reviews, resp, err := clt.restClt.PullRequests.ListReviews(ctx, owner, repo, prNumber, &opts)
		if err != nil {
			return nil, clt.wrapRetryableErrors(err)
		}

		for _, review := range reviews {
			result = append(result, provider.Review{
				ID:          review.GetID(),
				Author:      review.GetUser().GetLogin(),
				State:       review.GetState(),
				CommitID:    review.GetCommitID(),
				SubmittedAt: review.GetSubmittedAt().Time,
			})
		}

		if resp.NextPage == 0 {
			return result, nil
		}

		opts.Page = resp.NextPage
	}
}

// queueLabelAppliedAt returns the time at which the queue label was most
// recently added to the pull request.
func (clt *Client) queueLabelAppliedAt(ctx context.Context, owner, repo string, prNumber int) (time.Time, error) {
	var result time.Time

	opts := github.ListOptions{PerPage: listPerPage}

	for {
		events, resp, err := clt.restClt.Issues.ListIssueEvents(ctx, owner, repo, prNumber, &opts)
		if err != nil {
			return time.Time{}, clt.wrapRetryableErrors(err)
		}

		for _, event := range events {
			if event.GetEvent() != "labeled" {
				continue
			}

			if event.GetLabel().GetName() != clt.queueLabel {
				continue
			}

			if createdAt := event.GetCreatedAt().Time; createdAt.After(result) {
				result = createdAt
			}
		}

		if resp.NextPage == 0 {
			return result, nil
		}

		opts.Page = resp.NextPage
	}
}

func (clt *Client) reviewDecision(ctx context.Context, owner, repo string, prNumber int) (string, error) {
	var q struct {
		Repository struct {
			PullRequest struct {
				ReviewDecision githubv4.PullRequestReviewDecision
			} `graphql:"pullRequest(number: $number)"`
		} `graphql:"repository(owner: $owner, name: $name)"`
	}

	vars := map[string]any{
		"owner":  githubv4.String(owner),
		"name":   githubv4.String(repo),
		"number": githubv4.Int(prNumber),
	}

	if err := clt.graphQLClt.Query(ctx, &q, vars); err != nil {
		return "", clt.wrapGraphQLRetryableErrors(err)
	}

	return string(q.Repository.PullRequest.ReviewDecision), nil
}

// ListOpenPRNumbers returns the numbers of all open pull requests of the
// repository, ordered by creation time.
func (clt *Client) ListOpenPRNumbers(ctx context.Context, owner, repo string) ([]int, error) {
	var result []int

	opts := github.PullRequestListOptions{
		State:       "open",
		Sort:        "created",
		Direction:   "asc",
		ListOptions: github.ListOptions{PerPage: listPerPage},
	}

	for {
		prs, resp, err := clt.restClt.PullRequests.List(ctx, owner, repo, &opts)
		if err != nil {
			return nil, clt.wrapRetryableErrors(err)
		}

		for _, pr := range prs {
			result = append(result, pr.GetNumber())
		}

		if resp.NextPage == 0 {
			return result, nil
		}

		opts.Page = resp.NextPage
	}
}

// PostComment posts a comment on a pull request.
func (clt *Client) PostComment(ctx context.Context, owner, repo string, prNumber int, body string) error {
	_, _, err := clt.restClt.Issues.CreateComment(ctx, owner, repo, prNumber, &github.IssueComment{Body: &body})
	return clt.wrapRetryableErrors(err)
}

// SetReview submits a review of the given type on the current head commit
// of the pull request.
func (clt *Client) SetReview(ctx context.Context, owner, repo string, prNumber int, reviewType, body string) error {
	review := github.PullRequestReviewRequest{
		Event: &reviewType,
	}

	if body != "" {
		review.Body = &body
	}

	_, _, err := clt.restClt.PullRequests.CreateReview(ctx, owner, repo, prNumber, &review)

	return clt.wrapRetryableErrors(err)
}

// DismissReview dismisses a previously submitted review.
func (clt *Client) DismissReview(ctx context.Context, owner, repo string, prNumber int, reviewID int64, message string) error {
	_, _, err := clt.restClt.PullRequests.DismissReview(
		ctx, owner, repo, prNumber, reviewID,
		&github.PullRequestReviewDismissalRequest{Message: &message},
	)

	return clt.wrapRetryableErrors(err)
}

// MergePR merges the pull request with the given method and commit
// message. A merge rejected by github, e.g. because the base branch was
// modified in between, fails with a non-retryable error.
func (clt *Client) MergePR(ctx context.Context, owner, repo string, prNumber int, method, commitMessage string) error {
	_, _, err := clt.restClt.PullRequests.Merge(
		ctx, owner, repo, prNumber, commitMessage,
		&github.PullRequestOptions{MergeMethod: method},
	)

	return clt.wrapRetryableErrors(err)
}

// ResolveTeamMembers returns the login names of the members of a team of
// the organization.
// Results are served from a cache for teamMembersCacheTTL, team
// memberships change rarely and are queried on every evaluation of a team
// condition.
func (clt *Client) ResolveTeamMembers(ctx context.Context, owner, team string) ([]string, error) {
	key := owner + "/" + team

	clt.teamMembersLock.Lock()
	cached, exist := clt.teamMembers[key]
	clt.teamMembersLock.Unlock()

	if exist && time.Since(cached.fetchedAt) < teamMembersCacheTTL {
		return slices.Clone(cached.members), nil
	}

	members, err := clt.listTeamMembers(ctx, owner, team)
	if err != nil {
		return nil, err
	}

	clt.teamMembersLock.Lock()
	if clt.teamMembers == nil {
		clt.teamMembers = map[string]teamMembersCacheEntry{}
	}
	clt.teamMembers[key] = teamMembersCacheEntry{members: members, fetchedAt: time.Now()}
	clt.teamMembersLock.Unlock()

	return slices.Clone(members), nil
}

func (clt *Client) listTeamMembers(ctx context.Context, owner, team string) ([]string, error) {
	var result []string

	opts := github.TeamListTeamMembersOptions{
		ListOptions: github.ListOptions{PerPage: listPerPage},
	}

	for {
		members, resp, err := clt.restClt.Teams.ListTeamMembersBySlug(ctx, owner, team, &opts)
		if err != nil {
			return nil, clt.wrapRetryableErrors(err)
		}

		for _, member := range members {
			result = append(result, member.GetLogin())
		}

		if resp.NextPage == 0 {
			return result, nil
		}

		opts.Page = resp.NextPage
	}
}

func (clt *Client) wrapRetryableErrors(err error) error {
	if err == nil {
		return nil
	}

	var rateLimitErr *github.RateLimitError
	if errors.As(err, &rateLimitErr) {
		clt.logger.Info(
			"rate limit exceeded",
			logfields.Event("github_api_rate_limit_exceeded"),
			zap.Int("github_api_rate_limit", rateLimitErr.Rate.Limit),
			zap.Time("github_api_rate_limit_reset_time", rateLimitErr.Rate.Reset.Time),
		)

		return retryerr.NewRetryableError(err, rateLimitErr.Rate.Reset.Time)
	}

	var respErr *github.ErrorResponse
	if errors.As(err, &respErr) {
		if code := respErr.Response.StatusCode; code >= 500 && code < 600 {
			return retryerr.NewRetryableAnytimeError(err)
		}
	}

	return err
}

var graphQLHTTPStatusErrRe = regexp.MustCompile(`^non-200 OK status code: ([0-9]+) .*`)

func (clt *Client) wrapGraphQLRetryableErrors(err error) error {
	if err == nil {
		return nil
	}

	matches := graphQLHTTPStatusErrRe.FindStringSubmatch(err.Error())
	if len(matches) != 2 {
		return err
	}

	errcode, atoiErr := strconv.Atoi(matches[1])
	if atoiErr != nil {
		clt.logger.Info(
			"parsing http code from error string failed",
			zap.Error(atoiErr),
			zap.String("error_string", err.Error()),
		)

		return err
	}

	if errcode >= 500 && errcode < 600 {
		return retryerr.NewRetryableAnytimeError(err)
	}

	return err
}
