package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/simplesurance/mergetrain/internal/mergequeue"
	"github.com/simplesurance/mergetrain/internal/provider"
	"github.com/simplesurance/mergetrain/internal/provider/mocks"
	"github.com/simplesurance/mergetrain/internal/rules"
)

const testActor = "mergetrain-bot"

type fakeQueuer struct {
	enqueueErr error
	calls      int
}

func (f *fakeQueuer) Enqueue(context.Context, *rules.QueueRule, *provider.PullRequestState) error {
	f.calls++
	return f.enqueueErr
}

func newTestRetryer(t *testing.T) *Retryer {
	t.Helper()

	r := NewRetryer()
	r.backoffInitialInterval = 10 * time.Millisecond
	t.Cleanup(r.Stop)

	return r
}

func dispatchTestState() *provider.PullRequestState {
	labelTime := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	return &provider.PullRequestState{
		RepositoryOwner: "capra",
		Repository:      "ibex",
		Number:          7,
		Author:          "fho",
		Title:           "fix flaky watcher test",
		Branch:          "fix-watcher",
		BaseBranch:      "main",
		HeadCommit:      "c2",
		Labels:          []string{"queue"},
		Commits: []provider.Commit{
			{SHA: "c1", Author: "fho", CommittedAt: labelTime.Add(-time.Hour)},
			{SHA: "c2", Author: "fho", CommittedAt: labelTime.Add(time.Hour)},
		},
		QueueLabelAppliedAt: labelTime,
	}
}

func mustTemplate(t *testing.T, text string) *rules.Template {
	t.Helper()

	tmpl, err := rules.NewTemplate(t.Name(), text)
	require.NoError(t, err)

	return tmpl
}

func newCommentRule(t *testing.T) *rules.Rule {
	t.Helper()

	return &rules.Rule{
		Name: "comment-rule",
		Actions: []*rules.Action{
			{Kind: rules.ActionComment, Message: mustTemplate(t, "thanks {{ author }}")},
		},
	}
}

func TestCommentDispatchedOncePerDigest(t *testing.T) {
	t.Cleanup(zap.ReplaceGlobals(zaptest.NewLogger(t).Named(t.Name())))

	mockctrl := gomock.NewController(t)
	prov := mocks.NewMockProvider(mockctrl)

	prov.EXPECT().
		PostComment(gomock.Any(), "capra", "ibex", 7, "thanks fho").
		Return(nil).
		Times(2)

	d := NewDispatcher(prov, newTestRetryer(t), &fakeQueuer{}, &rules.Set{}, testActor)

	rule := newCommentRule(t)
	state := dispatchTestState()

	require.NoError(t, d.Dispatch(context.Background(), rule, 0, state, 111))
	// unchanged state, must not post again
	require.NoError(t, d.Dispatch(context.Background(), rule, 0, state, 111))
	// changed dependency digest, posts again
	require.NoError(t, d.Dispatch(context.Background(), rule, 0, state, 222))
}

func TestApproveSkippedWhenActorAlreadyApproved(t *testing.T) {
	t.Cleanup(zap.ReplaceGlobals(zaptest.NewLogger(t).Named(t.Name())))

	mockctrl := gomock.NewController(t)
	prov := mocks.NewMockProvider(mockctrl)

	d := NewDispatcher(prov, newTestRetryer(t), &fakeQueuer{}, &rules.Set{}, testActor)

	rule := &rules.Rule{
		Name: "approve-rule",
		Actions: []*rules.Action{
			{Kind: rules.ActionReview, ReviewType: provider.ReviewTypeApprove},
		},
	}

	state := dispatchTestState()
	state.Reviews = []provider.Review{
		{ID: 1, Author: testActor, State: provider.ReviewApproved, CommitID: "c2"},
	}

	// no SetReview expectation is configured, a call would fail the test
	require.NoError(t, d.Dispatch(context.Background(), rule, 0, state, 111))
}

func TestApproveSubmittedForNewCommit(t *testing.T) {
	t.Cleanup(zap.ReplaceGlobals(zaptest.NewLogger(t).Named(t.Name())))

	mockctrl := gomock.NewController(t)
	prov := mocks.NewMockProvider(mockctrl)

	prov.EXPECT().
		SetReview(gomock.Any(), "capra", "ibex", 7, provider.ReviewTypeApprove, "").
		Return(nil).
		Times(1)

	d := NewDispatcher(prov, newTestRetryer(t), &fakeQueuer{}, &rules.Set{}, testActor)

	rule := &rules.Rule{
		Name: "approve-rule",
		Actions: []*rules.Action{
			{Kind: rules.ActionReview, ReviewType: provider.ReviewTypeApprove},
		},
	}

	// the actor's approval is for a previous commit
	state := dispatchTestState()
	state.Reviews = []provider.Review{
		{ID: 1, Author: testActor, State: provider.ReviewApproved, CommitID: "c1"},
	}

	require.NoError(t, d.Dispatch(context.Background(), rule, 0, state, 111))
}

func TestDismissOnlyChangesRequestedReviews(t *testing.T) {
	t.Cleanup(zap.ReplaceGlobals(zaptest.NewLogger(t).Named(t.Name())))

	mockctrl := gomock.NewController(t)
	prov := mocks.NewMockProvider(mockctrl)

	// only the changes-requested review is dismissed, the approval stays
	prov.EXPECT().
		DismissReview(gomock.Any(), "capra", "ibex", 7, int64(2), "new commits were pushed").
		Return(nil).
		Times(1)

	d := NewDispatcher(prov, newTestRetryer(t), &fakeQueuer{}, &rules.Set{}, testActor)

	rule := &rules.Rule{
		Name: "dismiss-rule",
		Actions: []*rules.Action{
			{
				Kind:                 rules.ActionDismissReviews,
				Message:              mustTemplate(t, "new commits were pushed"),
				ChangesRequestedOnly: true,
			},
		},
	}

	state := dispatchTestState()
	state.Reviews = []provider.Review{
		{ID: 1, Author: "alice", State: provider.ReviewApproved, CommitID: "c1"},
		{ID: 2, Author: "bob", State: provider.ReviewChangesRequested, CommitID: "c1"},
	}

	require.NoError(t, d.Dispatch(context.Background(), rule, 0, state, 111))

	// re-evaluation for the same head commit must not dismiss again,
	// even when the dependency digest changed
	require.NoError(t, d.Dispatch(context.Background(), rule, 0, state, 222))
}

func TestDismissSkippedWithoutNewerCommit(t *testing.T) {
	t.Cleanup(zap.ReplaceGlobals(zaptest.NewLogger(t).Named(t.Name())))

	mockctrl := gomock.NewController(t)
	prov := mocks.NewMockProvider(mockctrl)

	d := NewDispatcher(prov, newTestRetryer(t), &fakeQueuer{}, &rules.Set{}, testActor)

	rule := &rules.Rule{
		Name: "dismiss-rule",
		Actions: []*rules.Action{
			{
				Kind:                 rules.ActionDismissReviews,
				Message:              mustTemplate(t, "new commits were pushed"),
				ChangesRequestedOnly: true,
			},
		},
	}

	// all commits predate the queue label application
	state := dispatchTestState()
	state.QueueLabelAppliedAt = time.Date(2024, 3, 2, 10, 0, 0, 0, time.UTC)
	state.Reviews = []provider.Review{
		{ID: 2, Author: "bob", State: provider.ReviewChangesRequested, CommitID: "c1"},
	}

	require.NoError(t, d.Dispatch(context.Background(), rule, 0, state, 111))
}

func TestQueueActionIsIdempotent(t *testing.T) {
	t.Cleanup(zap.ReplaceGlobals(zaptest.NewLogger(t).Named(t.Name())))

	mockctrl := gomock.NewController(t)
	prov := mocks.NewMockProvider(mockctrl)

	queueRule := &rules.QueueRule{Name: "default", MergeMethod: provider.MergeMethodSquash}
	ruleSet := &rules.Set{
		QueueRules: map[string]*rules.QueueRule{"default": queueRule},
	}

	queuer := fakeQueuer{}
	d := NewDispatcher(prov, newTestRetryer(t), &queuer, ruleSet, testActor)

	rule := &rules.Rule{
		Name: "queue-rule",
		Actions: []*rules.Action{
			{Kind: rules.ActionQueue, QueueName: "default"},
		},
	}

	state := dispatchTestState()

	require.NoError(t, d.Dispatch(context.Background(), rule, 0, state, 111))
	require.Equal(t, 1, queuer.calls)

	// an existing entry is a no-op, not an error
	queuer.enqueueErr = mergequeue.ErrAlreadyExists
	require.NoError(t, d.Dispatch(context.Background(), rule, 0, state, 222))
	require.Equal(t, 2, queuer.calls)
}
