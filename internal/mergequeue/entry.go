package mergequeue

import (
	"slices"
	"time"

	"go.uber.org/zap"

	"github.com/simplesurance/mergetrain/internal/logfields"
	"github.com/simplesurance/mergetrain/internal/rules"
)

// EntryState is the lifecycle state of a queue entry.
type EntryState int8

const (
	// StatePending is the state of an entry that was enqueued and not
	// evaluated yet.
	StatePending EntryState = iota
	// StateChecking is the state of an entry whose speculative check is
	// outstanding or in flight.
	StateChecking
	// StateSpeculativelyReady is the state of an entry whose merge
	// conditions held against its current speculative base.
	StateSpeculativelyReady
	// StateMerging is the state of the head entry while the merge
	// operation runs.
	StateMerging
	// StateMerged is the terminal state of a merged entry.
	StateMerged
	// StateFailed is the state of an entry whose conditions were violated
	// or whose merge was rejected. A failed entry is requeued or removed.
	StateFailed
)

func (s EntryState) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateChecking:
		return "checking"
	case StateSpeculativelyReady:
		return "speculatively-ready"
	case StateMerging:
		return "merging"
	case StateMerged:
		return "merged"
	case StateFailed:
		return "failed"
	default:
		return "invalid"
	}
}

// Entry is a pull request queued for merging.
// It is owned exclusively by its queue, all fields except Number and Rule
// are only accessed while the queue lock is held.
type Entry struct {
	// Number is the pull request number, it is immutable.
	Number int
	// Rule is the queue rule that the enqueueing action referenced, it is
	// immutable.
	Rule *rules.QueueRule

	EnqueuedAt time.Time

	state EntryState
	// specBase holds the head commits of the entries that were strictly
	// ahead when the speculative check started, in queue order.
	// An empty base means the entry validates directly against the base
	// branch.
	specBase []string
	// checkedCommit is the head commit of the pull request that the last
	// speculative check evaluated.
	checkedCommit string
	// headCommit is the most recently observed head commit of the pull
	// request. It is part of the speculative base of the entries behind
	// this one.
	headCommit string
	// stateUnchangedSince is the time of the last state transition, used
	// for stale detection at the queue head.
	stateUnchangedSince time.Time

	LogFields []zap.Field
}

func newEntry(prNumber int, headCommit string, rule *rules.QueueRule, logFields []zap.Field) *Entry {
	now := time.Now()

	return &Entry{
		Number:              prNumber,
		Rule:                rule,
		EnqueuedAt:          now,
		state:               StatePending,
		headCommit:          headCommit,
		stateUnchangedSince: now,
		LogFields: append(
			slices.Clone(logFields),
			logfields.PullRequest(prNumber),
			logfields.Queue(rule.Name),
		),
	}
}

func (e *Entry) _state() EntryState {
	return e.state
}

func (e *Entry) _setState(state EntryState) {
	if e.state == state {
		return
	}

	e.state = state
	e.stateUnchangedSince = time.Now()
}

// _specBaseCurrent returns true when the speculative base of the last
// check matches aheadCommits and the checked commit matches headCommit.
func (e *Entry) _specBaseCurrent(aheadCommits []string, headCommit string) bool {
	return e.checkedCommit == headCommit && slices.Equal(e.specBase, aheadCommits)
}

func (e *Entry) _setSpecBase(aheadCommits []string, headCommit string) {
	e.specBase = slices.Clone(aheadCommits)
	e.checkedCommit = headCommit
}

func (e *Entry) _invalidateSpecBase() {
	e.specBase = nil
	e.checkedCommit = ""
}

func (e *Entry) _setHeadCommit(commit string) {
	e.headCommit = commit
}
