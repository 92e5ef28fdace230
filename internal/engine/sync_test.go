package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/simplesurance/mergetrain/internal/provider/mocks"
	"github.com/simplesurance/mergetrain/internal/rules"
)

// TestInitSyncRestoresQueueEntries simulates a restart with a lost
// merge-queue entry, the open pull request still matches the queueing rule
// and must be enqueued again.
func TestInitSyncRestoresQueueEntries(t *testing.T) {
	t.Cleanup(zap.ReplaceGlobals(zaptest.NewLogger(t).Named(t.Name())))

	mockctrl := gomock.NewController(t)
	prov := mocks.NewMockProvider(mockctrl)

	prov.EXPECT().
		ListOpenPRNumbers(gomock.Any(), "capra", "ibex").
		Return([]int{7}, nil).
		Times(1)

	prov.EXPECT().
		GetPRState(gomock.Any(), "capra", "ibex", 7).
		Return(dispatchTestState(), nil).
		Times(1)

	ruleSet := &rules.Set{
		Rules: []*rules.Rule{
			{
				Name:      "queue-labeled",
				Condition: mustParseConditions(t, []any{"label=queue"}),
				Actions: []*rules.Action{
					{Kind: rules.ActionQueue, QueueName: "default"},
				},
			},
		},
		QueueRules: map[string]*rules.QueueRule{
			"default": {Name: "default"},
		},
	}

	queuer := fakeQueuer{}
	retryer := newTestRetryer(t)
	dispatcher := NewDispatcher(prov, retryer, &queuer, ruleSet, testActor)
	evloop := NewEventLoop(ruleSet, prov, dispatcher, retryer)

	err := evloop.InitSync(context.Background(), []string{"capra/ibex"})
	require.NoError(t, err)
	require.Equal(t, 1, queuer.calls)
}

func TestInitSyncRejectsInvalidRepositoryFormat(t *testing.T) {
	t.Cleanup(zap.ReplaceGlobals(zaptest.NewLogger(t).Named(t.Name())))

	mockctrl := gomock.NewController(t)
	prov := mocks.NewMockProvider(mockctrl)

	retryer := newTestRetryer(t)
	dispatcher := NewDispatcher(prov, retryer, &fakeQueuer{}, &rules.Set{}, testActor)
	evloop := NewEventLoop(&rules.Set{}, prov, dispatcher, retryer)

	err := evloop.InitSync(context.Background(), []string{"capra"})
	require.Error(t, err)
}
