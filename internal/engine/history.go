package engine

import "sync"

// recordKey identifies a dispatched (rule, action, pull request)
// combination.
type recordKey struct {
	Owner     string
	Repo      string
	PR        int
	Rule      string
	ActionIdx int
}

// History memorizes the dependency digest of the last successful dispatch
// per (rule, action, pull request). It replaces reliance on exactly-once
// event delivery: re-evaluating to true on unchanged state does not cause
// a second side effect.
type History struct {
	lock      sync.Mutex
	records   map[recordKey]uint64
	dismissed map[recordKey]string
}

func NewHistory() *History {
	return &History{
		records:   map[recordKey]uint64{},
		dismissed: map[recordKey]string{},
	}
}

// IsRedundant returns true when the action was already dispatched
// successfully for the same dependency digest.
func (h *History) IsRedundant(key recordKey, digest uint64) bool {
	h.lock.Lock()
	defer h.lock.Unlock()

	recorded, exist := h.records[key]

	return exist && recorded == digest
}

// MarkDispatched records a successful dispatch.
func (h *History) MarkDispatched(key recordKey, digest uint64) {
	h.lock.Lock()
	defer h.lock.Unlock()

	h.records[key] = digest
}

// WasDismissedForCommit returns true when a dismissal already fired for
// the given head commit.
func (h *History) WasDismissedForCommit(key recordKey, commit string) bool {
	h.lock.Lock()
	defer h.lock.Unlock()

	return h.dismissed[key] == commit
}

// MarkDismissedForCommit records that a dismissal fired for the given
// head commit.
func (h *History) MarkDismissedForCommit(key recordKey, commit string) {
	h.lock.Lock()
	defer h.lock.Unlock()

	h.dismissed[key] = commit
}
