package mergequeue

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/simplesurance/mergetrain/internal/conditions"
	"github.com/simplesurance/mergetrain/internal/logfields"
	"github.com/simplesurance/mergetrain/internal/mergequeue/orderedmap"
	"github.com/simplesurance/mergetrain/internal/provider"
	"github.com/simplesurance/mergetrain/internal/routines"
)

// DefStaleTimeout is the default stale timeout.
// A queue entry is considered stale when it is the first element in the
// queue and its state has not changed for longer than this timeout.
const DefStaleTimeout = 3 * time.Hour

// retryTimeout defines the maximum duration for which a provider operation
// is retried on a temporary error. The longer the duration, the longer it
// blocks the first entry in the queue.
const retryTimeout = 20 * time.Minute

// checkRoutines is the number of goroutines that run speculative checks.
// Checks for multiple entries of the same queue run concurrently, the
// promotion and merge decisions stay serialized on the action pool.
const checkRoutines = 4

// Retryer runs a function repeatedly until it succeeds, fails with a
// non-retryable error or the context is cancelled.
type Retryer interface {
	Run(ctx context.Context, fn func(context.Context) error, logFields []zap.Field) error
}

// inflightCheck describes a running speculative check.
type inflightCheck struct {
	id uint64
	// ahead is the speculative base that the check validates against.
	ahead      []string
	cancelFunc context.CancelFunc
}

// queue holds the merge-queue entries of one base branch in FIFO order.
//
// All ordering decisions execute through a single-goroutine action pool,
// so cross-entry decisions never race. Speculative checks validate an
// entry's merge conditions against a hypothetical state that already
// includes all entries ahead of it. They run concurrently on the check
// pool and schedule a new processing run when they finish.
//
// Only the first entry may merge. Merges happen strictly in queue order,
// an entry never merges while one ahead of it is still checking, even if
// its own check already passed.
type queue struct {
	baseBranch BaseBranch

	entries *orderedmap.Map[int, *Entry]
	lock    sync.Mutex

	logger *zap.Logger

	provider provider.Provider
	retryer  Retryer

	actionPool *routines.Pool
	checkPool  *routines.Pool

	// inflightChecks maps the pull request number of entries with a
	// running speculative check to its description.
	inflightChecks map[int]*inflightCheck
	checkIDs       uint64

	// processPending is true from the moment a processing run is queued
	// on the action pool until it finished, bounding queued runs to one.
	// processAgain records trigger requests that arrive in that window,
	// the active run loops instead of queueing a second one.
	processPending bool
	processAgain   bool

	staleTimeout time.Duration

	metrics *queueMetrics
}

func newQueue(base *BaseBranch, logger *zap.Logger, p provider.Provider, retryer Retryer) *queue {
	q := queue{
		baseBranch:     *base,
		entries:        orderedmap.New[int, *Entry](),
		logger:         logger.Named("queue").With(base.Logfields...),
		provider:       p,
		retryer:        retryer,
		actionPool:     routines.NewPool(1),
		checkPool:      routines.NewPool(checkRoutines),
		inflightChecks: map[int]*inflightCheck{},
		staleTimeout:   DefStaleTimeout,
	}

	if qm, err := newQueueMetrics(base.BranchID); err == nil {
		q.metrics = qm
	} else {
		q.logger.Warn(
			"could not create prometheus metrics",
			logfields.Event("creating_queue_metrics_failed"),
			zap.Error(err),
		)
	}

	return &q
}

func (q *queue) String() string {
	return fmt.Sprintf("merge queue for base branch: %s", q.baseBranch.String())
}

// IsEmpty returns true when the queue contains no entries.
func (q *queue) IsEmpty() bool {
	q.lock.Lock()
	defer q.lock.Unlock()

	return q.entries.Len() == 0
}

// Entries returns the queued entries in queue order.
func (q *queue) Entries() []*Entry {
	q.lock.Lock()
	defer q.lock.Unlock()

	return q.entries.AsSlice()
}

// Enqueue appends an entry to the queue.
// If an entry for the same pull request already exists, ErrAlreadyExists
// is returned.
func (q *queue) Enqueue(entry *Entry) error {
	q.lock.Lock()

	_, added := q.entries.EnqueueIfNotExist(entry.Number, entry)
	if !added {
		q.lock.Unlock()
		return fmt.Errorf("pull request already exists in queue: %w", ErrAlreadyExists)
	}

	q.metrics.QueueSizeInc()
	q.lock.Unlock()

	metrics.EnqueueOpsInc(&q.baseBranch.BranchID)

	q.logger.Info(
		"entry appended to merge queue",
		append(slices.Clone(entry.LogFields), logEventEntryEnqueued)...,
	)

	q.ScheduleProcess()

	return nil
}

// Dequeue removes the entry of the pull request from the queue.
// An in-flight speculative check for it is cancelled.
// If no entry exists for the pull request, ErrNotFound is returned.
func (q *queue) Dequeue(prNumber int) (*Entry, error) {
	q.lock.Lock()

	entry := q.entries.Dequeue(prNumber)
	if entry == nil {
		q.lock.Unlock()
		return nil, ErrNotFound
	}

	q.metrics.QueueSizeDec()
	q._cancelCheck(prNumber)
	q.lock.Unlock()

	metrics.DequeueOpsInc(&q.baseBranch.BranchID)

	q.logger.Debug(
		"entry removed from merge queue",
		append(slices.Clone(entry.LogFields), logEventEntryDequeued)...,
	)

	q.ScheduleProcess()

	return entry, nil
}

// requeue moves the entry of the pull request to the back of the queue and
// resets it to pending state.
func (q *queue) requeue(prNumber int, reason string) {
	q.lock.Lock()

	entry := q.entries.Dequeue(prNumber)
	if entry == nil {
		q.lock.Unlock()
		return
	}

	q._cancelCheck(prNumber)

	entry._setState(StatePending)
	entry._invalidateSpecBase()
	q.entries.EnqueueIfNotExist(entry.Number, entry)
	newFirst := q.entries.First()

	q.lock.Unlock()

	q.logger.Info(
		"entry moved to the back of the merge queue",
		append(slices.Clone(entry.LogFields),
			logEventEntryRequeued,
			logFieldReason(reason),
		)...,
	)

	// when the entry returns straight to the head, re-triggering would
	// requeue it over and over, the periodic trigger or the next event
	// re-evaluates it instead
	if newFirst != entry {
		q.ScheduleProcess()
	}
}

// remove dequeues the entry of the pull request and logs the reason.
func (q *queue) remove(prNumber int, failed bool, reason string) {
	entry, err := q.Dequeue(prNumber)
	if err != nil {
		return
	}

	q.lock.Lock()
	if failed {
		entry._setState(StateFailed)
	}
	q.lock.Unlock()

	q.logger.Info(
		"entry removed from merge queue",
		append(slices.Clone(entry.LogFields),
			logEventEntryDequeued,
			logFieldReason(reason),
			logfields.EntryState(entry._state().String()),
		)...,
	)
}

// _cancelCheck cancels a running speculative check for the pull request.
// The queue lock must be held.
func (q *queue) _cancelCheck(prNumber int) {
	check, exist := q.inflightChecks[prNumber]
	if !exist {
		return
	}

	check.cancelFunc()
	delete(q.inflightChecks, prNumber)

	q.logger.Debug(
		"in-flight speculative check cancelled",
		logfields.Event("speculative_check_cancelled"),
		logfields.PullRequest(prNumber),
	)
}

func (q *queue) firstEntry() *Entry {
	q.lock.Lock()
	defer q.lock.Unlock()

	return q.entries.First()
}

// ScheduleProcess schedules a processing run on the action pool.
// At most one run is queued or running at a time. A call while a run is
// active only marks it for repetition, the active run then loops.
// Calls never block on the action pool, the run itself re-triggers
// processing after merges, dequeues and requeues from the pool goroutine.
func (q *queue) ScheduleProcess() {
	q.lock.Lock()
	if q.processPending {
		q.processAgain = true
		q.lock.Unlock()
		return
	}

	q.processPending = true
	q.lock.Unlock()

	q.actionPool.Queue(func() {
		for {
			q.process(context.Background())

			q.lock.Lock()
			if !q.processAgain {
				q.processPending = false
				q.lock.Unlock()
				return
			}

			q.processAgain = false
			q.lock.Unlock()
		}
	})
}

// process runs one pass over the queue.
// It validates the queue conditions of the head entry against the live
// pull request state, recomputes the speculative base of every entry,
// starts or restarts speculative checks whose base became stale and merges
// the head entry when it is speculatively ready.
func (q *queue) process(ctx context.Context) {
	head := q.firstEntry()
	if head == nil {
		return
	}

	logger := q.logger.With(head.LogFields...)

	ctx, cancelFunc := context.WithTimeout(ctx, retryTimeout)
	defer cancelFunc()

	state, err := q.fetchPRState(ctx, head)
	if err != nil {
		logger.Error(
			"retrieving pull request state for queue head failed",
			logfields.Event("pr_state_retrieval_failed"),
			zap.Error(err),
		)

		return
	}

	if state.Closed {
		q.remove(head.Number, false, "pull_request_closed")
		return
	}

	q.lock.Lock()
	head._setHeadCommit(state.HeadCommit)
	q.lock.Unlock()

	if !q.validateHead(ctx, head, state, logger) {
		return
	}

	q.startChecks()

	q.promoteHead(ctx, head, state, logger)
}

// validateHead confirms that the queue conditions of the head entry still
// hold against the live pull request state.
// A violated condition removes the entry. An unknown result moves it to
// the back of the queue, so that the entries behind it are not blocked
// until the result can be determined.
// A head entry whose state did not change for longer than the stale
// timeout is removed.
// It returns true when the head entry stays at the head of the queue.
func (q *queue) validateHead(ctx context.Context, head *Entry, state *provider.PullRequestState, logger *zap.Logger) bool {
	result := head.Rule.QueueConditions.Evaluate(ctx, conditions.NewSnapshot(state), q.provider)

	switch result {
	case conditions.False:
		q.remove(head.Number, true, "queue_conditions_violated")
		return false

	case conditions.Unknown:
		q.requeue(head.Number, "queue_conditions_unknown")
		return false

	case conditions.True:
	}

	q.lock.Lock()
	stale := !head.stateUnchangedSince.IsZero() &&
		head.stateUnchangedSince.Add(q.staleTimeout).Before(time.Now())
	q.lock.Unlock()

	if stale {
		logger.Info(
			"queue head is stale, removing entry",
			logFieldReason("stale"),
			zap.Duration("stale_timeout", q.staleTimeout),
		)
		q.remove(head.Number, true, "stale")

		return false
	}

	return true
}

// startChecks walks the queue head-to-tail, recomputes the speculative
// base of every entry and starts a check for each entry whose base is
// stale or that was not checked yet.
// The speculative base of an entry consists of the head commits of all
// entries strictly ahead of it, in queue order. When it differs from the
// base that a previous or running check validated against, that result is
// invalid: the running check is cancelled and the entry falls back to
// checking state against the recomputed base.
func (q *queue) startChecks() {
	type scheduledCheck struct {
		entry *Entry
		ahead []string
		ctx   context.Context
	}

	var toStart []scheduledCheck

	q.lock.Lock()

	ahead := make([]string, 0, q.entries.Len())

	q.entries.Foreach(func(entry *Entry) bool {
		defer func() { ahead = append(ahead, entry.headCommit) }()

		switch entry._state() {
		case StateMerging, StateMerged:
			return true

		case StateSpeculativelyReady:
			if entry._specBaseCurrent(ahead, entry.headCommit) {
				return true
			}

			entry._setState(StateChecking)
			entry._invalidateSpecBase()

		case StateChecking:
			if running, exist := q.inflightChecks[entry.Number]; exist {
				if slices.Equal(running.ahead, ahead) {
					return true
				}

				q._cancelCheck(entry.Number)
			}

			entry._invalidateSpecBase()

		case StatePending, StateFailed:
			entry._setState(StateChecking)
		}

		checkCtx, cancelFunc := context.WithTimeout(context.Background(), retryTimeout)
		q.checkIDs++
		q.inflightChecks[entry.Number] = &inflightCheck{
			id:         q.checkIDs,
			ahead:      slices.Clone(ahead),
			cancelFunc: cancelFunc,
		}

		toStart = append(toStart, scheduledCheck{
			entry: entry,
			ahead: slices.Clone(ahead),
			ctx:   checkCtx,
		})

		return true
	})

	q.lock.Unlock()

	for _, check := range toStart {
		check := check

		q.logger.Debug(
			"speculative check scheduled",
			append(slices.Clone(check.entry.LogFields),
				logEventCheckStarted,
				zap.Strings("speculative_base", check.ahead),
			)...,
		)

		q.checkPool.Queue(func() {
			q.checkEntry(check.ctx, check.entry, check.ahead)
		})
	}
}

// checkEntry validates the merge conditions of the entry against the live
// pull request state, assuming the speculative base in aheadCommits.
// Empty merge conditions always pass, the provider's own branch-protection
// gating is trusted instead.
func (q *queue) checkEntry(ctx context.Context, entry *Entry, aheadCommits []string) {
	q.lock.Lock()
	running, exist := q.inflightChecks[entry.Number]
	q.lock.Unlock()

	if !exist || !slices.Equal(running.ahead, aheadCommits) {
		// superseded before it started
		return
	}

	checkID := running.id

	// deregister only the own check, a newer one may have replaced it
	defer func() {
		q.lock.Lock()
		if current, exist := q.inflightChecks[entry.Number]; exist && current.id == checkID {
			current.cancelFunc()
			delete(q.inflightChecks, entry.Number)
		}
		q.lock.Unlock()
	}()

	logger := q.logger.With(entry.LogFields...)

	state, err := q.fetchPRState(ctx, entry)
	if err != nil {
		logger.Warn(
			"retrieving pull request state for speculative check failed",
			logfields.Event("pr_state_retrieval_failed"),
			zap.Error(err),
		)

		return
	}

	if state.Closed {
		q.remove(entry.Number, false, "pull_request_closed")
		return
	}

	result := conditions.True
	if entry.Rule.MergeConditions != nil {
		result = entry.Rule.MergeConditions.Evaluate(ctx, conditions.NewSnapshot(state), q.provider)
	}

	q.lock.Lock()

	if current, exist := q.inflightChecks[entry.Number]; !exist || current.id != checkID {
		// cancelled or superseded while running
		q.lock.Unlock()
		return
	}

	entry._setHeadCommit(state.HeadCommit)

	if entry._state() != StateChecking {
		q.lock.Unlock()
		return
	}

	switch result {
	case conditions.True:
		entry._setSpecBase(aheadCommits, state.HeadCommit)
		entry._setState(StateSpeculativelyReady)
		q.lock.Unlock()

		logger.Debug(
			"merge conditions hold against speculative base",
			logfields.Event("speculative_check_passed"),
			zap.Strings("speculative_base", aheadCommits),
		)

	case conditions.False:
		q.lock.Unlock()
		q.remove(entry.Number, true, "merge_conditions_violated")

		return

	case conditions.Unknown:
		q.lock.Unlock()

		logger.Debug(
			"merge conditions evaluated to unknown, check is repeated later",
			logfields.Event("speculative_check_inconclusive"),
		)

		return
	}

	q.ScheduleProcess()
}

// promoteHead merges the head entry when its speculative check passed
// against its current base, which for the head entry is the plain base
// branch. The merge blocks the action pool, merges of one queue are
// strictly serialized in queue order.
//
// A merge rejected by the provider, e.g. because it races with an
// out-of-band push, is never retried blindly. The entry is removed and
// rule evaluation on later events decides whether the pull request is
// queued again.
func (q *queue) promoteHead(ctx context.Context, head *Entry, state *provider.PullRequestState, logger *zap.Logger) {
	q.lock.Lock()

	if head._state() != StateSpeculativelyReady ||
		!head._specBaseCurrent(nil, state.HeadCommit) {
		q.lock.Unlock()
		return
	}

	head._setState(StateMerging)
	q.lock.Unlock()

	commitMessage := ""
	if head.Rule.CommitMessage != nil {
		var err error

		commitMessage, err = head.Rule.CommitMessage.Render(state)
		if err != nil {
			logger.Error(
				"rendering commit message failed",
				logfields.Event("commit_message_render_failed"),
				zap.Error(err),
			)
			q.remove(head.Number, true, "commit_message_render_failed")

			return
		}
	}

	err := q.provider.MergePR(
		ctx,
		q.baseBranch.RepositoryOwner,
		q.baseBranch.Repository,
		head.Number,
		head.Rule.MergeMethod,
		commitMessage,
	)
	if err != nil {
		metrics.MergeFailedOpsInc(&q.baseBranch.BranchID)

		logger.Warn(
			"merging pull request failed, entry removed",
			logfields.Event("pull_request_merge_failed"),
			zap.Error(err),
		)
		q.remove(head.Number, true, "merge_failed")

		return
	}

	q.lock.Lock()
	head._setState(StateMerged)
	q.entries.Dequeue(head.Number)
	q.metrics.QueueSizeDec()
	q.lock.Unlock()

	metrics.MergeOpsInc(&q.baseBranch.BranchID)
	metrics.DequeueOpsInc(&q.baseBranch.BranchID)

	logger.Info(
		"pull request merged",
		logEventMerged,
		zap.String("merge_method", head.Rule.MergeMethod),
	)

	// removing the merged head shortens the ahead list of all entries
	// behind it, their speculative bases are stale and are rechecked on
	// the next processing run
	q.ScheduleProcess()
}

func (q *queue) fetchPRState(ctx context.Context, entry *Entry) (*provider.PullRequestState, error) {
	var state *provider.PullRequestState

	err := q.retryer.Run(ctx, func(ctx context.Context) error {
		var err error

		state, err = q.provider.GetPRState(
			ctx,
			q.baseBranch.RepositoryOwner,
			q.baseBranch.Repository,
			entry.Number,
		)

		return err
	}, entry.LogFields)
	if err != nil {
		return nil, err
	}

	return state, nil
}

// Stop cancels all in-flight checks and waits for the pools to terminate.
func (q *queue) Stop() {
	q.lock.Lock()
	for prNumber := range q.inflightChecks {
		check := q.inflightChecks[prNumber]
		check.cancelFunc()
		delete(q.inflightChecks, prNumber)
	}
	q.lock.Unlock()

	q.checkPool.Wait()
	q.actionPool.Wait()
}
