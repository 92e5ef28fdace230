package engine

import (
	"sync"
	"testing"
	"time"

	"github.com/itchyny/gojq"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/simplesurance/mergetrain/internal/conditions"
	"github.com/simplesurance/mergetrain/internal/provider"
	"github.com/simplesurance/mergetrain/internal/provider/mocks"
	"github.com/simplesurance/mergetrain/internal/rules"
)

func mustParseConditions(t *testing.T, conds []any) *conditions.Node {
	t.Helper()

	node, err := conditions.ParseConditions(conds)
	require.NoError(t, err)

	return node
}

func testEvent() *provider.Event {
	return &provider.Event{
		Provider:        "github",
		EventType:       "pull_request",
		Action:          "labeled",
		RepositoryOwner: "capra",
		Repository:      "ibex",
		BaseBranch:      "main",
		Branch:          "fix-watcher",
		PullRequestNr:   7,
	}
}

func startEvloop(t *testing.T, evloop *EvLoop) {
	t.Helper()

	terminated := make(chan struct{})
	go func() {
		evloop.Start()
		close(terminated)
	}()

	t.Cleanup(func() {
		evloop.Stop()
		<-terminated
	})
}

func TestMatchingRuleDispatchesAction(t *testing.T) {
	t.Cleanup(zap.ReplaceGlobals(zaptest.NewLogger(t).Named(t.Name())))

	mockctrl := gomock.NewController(t)
	prov := mocks.NewMockProvider(mockctrl)

	state := dispatchTestState()

	prov.EXPECT().
		GetPRState(gomock.Any(), "capra", "ibex", 7).
		Return(state, nil).
		MinTimes(1)

	commented := make(chan string, 1)
	prov.EXPECT().
		PostComment(gomock.Any(), "capra", "ibex", 7, gomock.Any()).
		DoAndReturn(func(_, _, _, _ any, body string) error {
			commented <- body
			return nil
		}).
		Times(1)

	ruleSet := &rules.Set{
		Rules: []*rules.Rule{
			{
				Name:      "thank-author",
				Condition: mustParseConditions(t, []any{"label=queue"}),
				Actions: []*rules.Action{
					{Kind: rules.ActionComment, Message: mustTemplate(t, "thanks {{ author }}")},
				},
			},
			{
				Name:      "never-matches",
				Condition: mustParseConditions(t, []any{"label=does-not-exist"}),
				Actions: []*rules.Action{
					{Kind: rules.ActionComment, Message: mustTemplate(t, "unreachable")},
				},
			},
		},
	}

	retryer := newTestRetryer(t)
	dispatcher := NewDispatcher(prov, retryer, &fakeQueuer{}, ruleSet, testActor)
	evloop := NewEventLoop(ruleSet, prov, dispatcher, retryer)

	startEvloop(t, evloop)

	evloop.C() <- testEvent()

	select {
	case body := <-commented:
		require.Equal(t, "thanks fho", body)
	case <-time.After(10 * time.Second):
		t.Fatal("no comment was posted")
	}
}

func TestEventFilterDiscardsEvents(t *testing.T) {
	t.Cleanup(zap.ReplaceGlobals(zaptest.NewLogger(t).Named(t.Name())))

	mockctrl := gomock.NewController(t)
	prov := mocks.NewMockProvider(mockctrl)

	query, err := gojq.Parse(`.action == "labeled"`)
	require.NoError(t, err)

	retryer := newTestRetryer(t)
	dispatcher := NewDispatcher(prov, retryer, &fakeQueuer{}, &rules.Set{}, testActor)
	evloop := NewEventLoop(&rules.Set{}, prov, dispatcher, retryer, WithEventFilter(query))

	startEvloop(t, evloop)

	// no GetPRState expectation is configured, processing the event
	// would fail the test
	ev := testEvent()
	ev.Action = "edited"
	ev.JSON = []byte(`{"action": "edited"}`)
	evloop.C() <- ev

	// processing is asynchronous, allow the loop to consume the event
	time.Sleep(50 * time.Millisecond)
}

// TestPRLockEntriesAreEvicted acquires per-pull-request locks concurrently
// and verifies that the lock map is empty again after all holders released
// them.
func TestPRLockEntriesAreEvicted(t *testing.T) {
	t.Cleanup(zap.ReplaceGlobals(zaptest.NewLogger(t).Named(t.Name())))

	retryer := newTestRetryer(t)
	evloop := NewEventLoop(&rules.Set{}, nil, nil, retryer)

	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		ev := testEvent()
		ev.PullRequestNr = i%5 + 1

		wg.Add(1)
		go func() {
			defer wg.Done()

			unlock := evloop.lockPR(ev)
			unlock()
		}()
	}

	wg.Wait()

	evloop.prLocksLock.Lock()
	defer evloop.prLocksLock.Unlock()
	require.Empty(t, evloop.prLocks)
}

func TestClosedPRIsIgnored(t *testing.T) {
	t.Cleanup(zap.ReplaceGlobals(zaptest.NewLogger(t).Named(t.Name())))

	mockctrl := gomock.NewController(t)
	prov := mocks.NewMockProvider(mockctrl)

	state := dispatchTestState()
	state.Closed = true

	processed := make(chan struct{}, 1)
	prov.EXPECT().
		GetPRState(gomock.Any(), "capra", "ibex", 7).
		DoAndReturn(func(_, _, _, _ any) (*provider.PullRequestState, error) {
			processed <- struct{}{}
			return state, nil
		}).
		Times(1)

	ruleSet := &rules.Set{
		Rules: []*rules.Rule{
			{
				Name:      "thank-author",
				Condition: mustParseConditions(t, []any{"label=queue"}),
				Actions: []*rules.Action{
					{Kind: rules.ActionComment, Message: mustTemplate(t, "unreachable")},
				},
			},
		},
	}

	retryer := newTestRetryer(t)
	dispatcher := NewDispatcher(prov, retryer, &fakeQueuer{}, ruleSet, testActor)
	evloop := NewEventLoop(ruleSet, prov, dispatcher, retryer)

	startEvloop(t, evloop)

	evloop.C() <- testEvent()

	select {
	case <-processed:
	case <-time.After(10 * time.Second):
		t.Fatal("event was not processed")
	}
}
