package mergequeue

import (
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/simplesurance/mergetrain/internal/logfields"
)

type httpListEntry struct {
	PullRequest int
	Queue       string
	State       string
	HeadCommit  string
	EnqueuedAt  time.Time
}

type httpListQueue struct {
	RepositoryOwner string
	Repository      string
	BaseBranch      string

	Entries []httpListEntry
}

// httpListData is the response of the queue list endpoint.
type httpListData struct {
	Queues                  []*httpListQueue
	PeriodicTriggerInterval time.Duration

	// CreatedAt is the time when this datastructure was created.
	CreatedAt time.Time
}

func (s *Scheduler) httpListData() *httpListData {
	result := httpListData{
		CreatedAt:               time.Now(),
		PeriodicTriggerInterval: s.periodicTriggerIntv,
	}

	s.lock.Lock()
	defer s.lock.Unlock()

	for branchID, queue := range s.queues {
		queueData := httpListQueue{
			RepositoryOwner: branchID.RepositoryOwner,
			Repository:      branchID.Repository,
			BaseBranch:      branchID.Branch,
			Entries:         queue.listEntries(),
		}

		result.Queues = append(result.Queues, &queueData)
	}

	return &result
}

func (q *queue) listEntries() []httpListEntry {
	q.lock.Lock()
	defer q.lock.Unlock()

	result := make([]httpListEntry, 0, q.entries.Len())

	q.entries.Foreach(func(entry *Entry) bool {
		result = append(result, httpListEntry{
			PullRequest: entry.Number,
			Queue:       entry.Rule.Name,
			State:       entry._state().String(),
			HeadCommit:  entry.headCommit,
			EnqueuedAt:  entry.EnqueuedAt,
		})

		return true
	})

	return result
}

// HTTPService exposes the state of all merge queues as JSON.
type HTTPService struct {
	scheduler *Scheduler
	logger    *zap.Logger
}

func NewHTTPService(scheduler *Scheduler) *HTTPService {
	return &HTTPService{
		scheduler: scheduler,
		logger:    scheduler.logger.Named("http_service"),
	}
}

func (h *HTTPService) RegisterHandlers(mux *http.ServeMux, endpoint string) {
	mux.HandleFunc(endpoint, h.HandlerListFunc)
}

func (h *HTTPService) HandlerListFunc(respWr http.ResponseWriter, _ *http.Request) {
	respWr.Header().Set("Content-Type", "application/json")

	encoder := json.NewEncoder(respWr)
	encoder.SetIndent("", "  ")

	if err := encoder.Encode(h.scheduler.httpListData()); err != nil {
		h.logger.Info(
			"encoding queue list response failed",
			logfields.Event("queue_list_encoding_failed"),
			zap.Error(err),
		)
		http.Error(respWr, err.Error(), http.StatusInternalServerError)
	}
}
