package mergequeue

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPListEndpoint(t *testing.T) {
	prov := newFakeProvider(testPRState(1, "queue"))
	// the merge conditions stay unknown, the entry remains queued
	rule := testQueueRule(t, []any{"label=queue"}, []any{"author=@maintainers"})

	sched := newTestScheduler(t, prov)

	err := sched.Enqueue(context.Background(), rule, testPRState(1, "queue"))
	require.NoError(t, err)

	mux := http.NewServeMux()
	NewHTTPService(sched).RegisterHandlers(mux, "/queues")

	respRecorder := httptest.NewRecorder()
	mux.ServeHTTP(respRecorder, httptest.NewRequest(http.MethodGet, "/queues", nil))
	require.Equal(t, http.StatusOK, respRecorder.Code)
	require.Equal(t, "application/json", respRecorder.Header().Get("Content-Type"))

	var data httpListData
	require.NoError(t, json.Unmarshal(respRecorder.Body.Bytes(), &data))

	require.Len(t, data.Queues, 1)
	assert.Equal(t, testOwner, data.Queues[0].RepositoryOwner)
	assert.Equal(t, testRepo, data.Queues[0].Repository)
	assert.Equal(t, testBaseBranch, data.Queues[0].BaseBranch)
	assert.False(t, data.CreatedAt.IsZero())

	require.Len(t, data.Queues[0].Entries, 1)
	entry := data.Queues[0].Entries[0]
	assert.Equal(t, 1, entry.PullRequest)
	assert.Equal(t, "default", entry.Queue)
	assert.False(t, entry.EnqueuedAt.IsZero())
}

func TestHTTPListEndpointWithoutQueues(t *testing.T) {
	sched := newTestScheduler(t, newFakeProvider())

	respRecorder := httptest.NewRecorder()
	NewHTTPService(sched).HandlerListFunc(respRecorder, httptest.NewRequest(http.MethodGet, "/queues", nil))
	require.Equal(t, http.StatusOK, respRecorder.Code)

	var data httpListData
	require.NoError(t, json.Unmarshal(respRecorder.Body.Bytes(), &data))
	assert.Empty(t, data.Queues)
	assert.Equal(t, defPeriodicTriggerInterval, data.PeriodicTriggerInterval)
}
