// Package mergequeue maintains one FIFO-ordered merge queue per base
// branch and merges the queued pull requests strictly in order.
//
// Entries validate their merge conditions speculatively: the check of an
// entry runs against a hypothetical state that already includes all
// entries ahead of it, without requiring those entries to be merged
// first. When an entry ahead fails or changes, the speculative bases of
// the entries behind it become stale and their checks are re-run against
// the recomputed base.
package mergequeue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/simplesurance/mergetrain/internal/logfields"
	"github.com/simplesurance/mergetrain/internal/provider"
	"github.com/simplesurance/mergetrain/internal/rules"
)

const loggerName = "mergequeue"

const defPeriodicTriggerInterval = 30 * time.Minute

const DefEventChannelBufferSize = 512

var logFieldEventIgnored = logfields.Event("event_ignored")

// Scheduler owns the merge queues of all base branches.
// Queues are created lazily when the first entry for a base branch is
// enqueued and dropped when they become empty.
// Queues of different base branches proceed fully in parallel.
type Scheduler struct {
	periodicTriggerIntv time.Duration

	ch chan *provider.Event

	logger *zap.Logger

	queues map[BranchID]*queue
	lock   sync.Mutex

	provider provider.Provider
	retryer  Retryer

	wg sync.WaitGroup
}

// WithPeriodicTriggerInterval overrides the interval in which all queues
// re-evaluate their entries without an external event.
func WithPeriodicTriggerInterval(intv time.Duration) func(*Scheduler) {
	return func(s *Scheduler) {
		s.periodicTriggerIntv = intv
	}
}

func NewScheduler(p provider.Provider, retryer Retryer, opts ...func(*Scheduler)) *Scheduler {
	s := Scheduler{
		ch:                  make(chan *provider.Event, DefEventChannelBufferSize),
		logger:              zap.L().Named(loggerName),
		queues:              map[BranchID]*queue{},
		provider:            p,
		retryer:             retryer,
		periodicTriggerIntv: defPeriodicTriggerInterval,
	}

	for _, opt := range opts {
		opt(&s)
	}

	return &s
}

// C returns the event channel of the scheduler.
// Events sent to it re-trigger the evaluation of the affected queue,
// events about closed pull requests remove their queue entry.
func (s *Scheduler) C() chan<- *provider.Event {
	return s.ch
}

// Enqueue creates a queue entry for the pull request in the merge queue of
// its base branch. The queue is created when it does not exist yet.
// If the pull request already has an entry in the queue, ErrAlreadyExists
// is returned.
func (s *Scheduler) Enqueue(ctx context.Context, queueRule *rules.QueueRule, state *provider.PullRequestState) error {
	baseBranch, err := NewBaseBranch(state.RepositoryOwner, state.Repository, state.BaseBranch)
	if err != nil {
		return fmt.Errorf("incomplete base branch information: %w", err)
	}

	entry := newEntry(state.Number, state.HeadCommit, queueRule, baseBranch.Logfields)

	s.lock.Lock()
	defer s.lock.Unlock()

	q, exist := s.queues[baseBranch.BranchID]
	if !exist {
		q = newQueue(baseBranch, s.logger, s.provider, s.retryer)
		s.queues[baseBranch.BranchID] = q

		s.logger.Debug(
			"merge queue for base branch created",
			append(baseBranch.Logfields, logfields.Event("merge_queue_created"))...,
		)
	}

	return q.Enqueue(entry)
}

// Dequeue removes the queue entry of the pull request.
// The queue of the base branch is removed when it becomes empty.
// If no entry exists, ErrNotFound is returned.
func (s *Scheduler) Dequeue(ctx context.Context, owner, repo, branch string, prNumber int) (*Entry, error) {
	baseBranch, err := NewBaseBranch(owner, repo, branch)
	if err != nil {
		return nil, fmt.Errorf("incomplete base branch information: %w", err)
	}

	s.lock.Lock()
	defer s.lock.Unlock()

	q, exist := s.queues[baseBranch.BranchID]
	if !exist {
		return nil, fmt.Errorf("no merge queue for base branch exists: %w", ErrNotFound)
	}

	entry, err := q.Dequeue(prNumber)
	if err != nil {
		return nil, err
	}

	if q.IsEmpty() {
		delete(s.queues, baseBranch.BranchID)
		s.logger.Debug(
			"empty merge queue for base branch removed",
			append(baseBranch.Logfields, logfields.Event("merge_queue_removed"))...,
		)
	}

	return entry, nil
}

// Entries returns the entries of the merge queue of the base branch, in
// queue order.
func (s *Scheduler) Entries(owner, repo, branch string) []*Entry {
	s.lock.Lock()
	defer s.lock.Unlock()

	q, exist := s.queues[BranchID{RepositoryOwner: owner, Repository: repo, Branch: branch}]
	if !exist {
		return nil
	}

	return q.Entries()
}

// Start runs the scheduler event loop.
// It terminates when Stop() is called.
func (s *Scheduler) Start() {
	s.wg.Add(1)
	defer s.wg.Done()

	s.logger.Info("merge queue scheduler started", logfields.Event("scheduler_started"))

	periodicTrigger := time.NewTicker(s.periodicTriggerIntv)
	defer periodicTrigger.Stop()

	for {
		select {
		case event, open := <-s.ch:
			if !open {
				s.logger.Info(
					"merge queue scheduler event loop terminated",
					logfields.Event("scheduler_terminated"),
				)

				return
			}

			s.processEvent(context.Background(), event)

		case <-periodicTrigger.C:
			s.triggerAll()
		}
	}
}

// processEvent reacts to a pull request event.
// A closed pull request is removed from its queue, every other event
// re-triggers a processing run of the affected queue, so that queue and
// merge conditions are re-evaluated against the new state.
func (s *Scheduler) processEvent(ctx context.Context, event *provider.Event) {
	logger := s.logger.With(event.LogFields...)

	if event.PullRequestNr == 0 || event.BaseBranch == "" {
		logger.Debug(
			"event does not reference a queued pull request",
			logFieldEventIgnored,
		)

		return
	}

	if event.Action == "closed" {
		_, err := s.Dequeue(ctx, event.RepositoryOwner, event.Repository, event.BaseBranch, event.PullRequestNr)
		if err != nil {
			logger.Debug(
				"closed pull request was not queued",
				logFieldEventIgnored,
				zap.Error(err),
			)

			return
		}

		logger.Info(
			"pull request was closed, removed from merge queue",
			logEventEntryDequeued,
			logFieldReason("pull_request_closed"),
		)

		return
	}

	s.lock.Lock()
	q, exist := s.queues[BranchID{
		RepositoryOwner: event.RepositoryOwner,
		Repository:      event.Repository,
		Branch:          event.BaseBranch,
	}]
	s.lock.Unlock()

	if !exist {
		logger.Debug(
			"no merge queue for base branch of event",
			logFieldEventIgnored,
		)

		return
	}

	logger.Debug("processing run triggered", logfields.Event("queue_triggered"))
	q.ScheduleProcess()
}

// triggerAll schedules a processing run on all queues, so that queues
// self-heal without an external event, e.g. after an inconclusive
// speculative check.
func (s *Scheduler) triggerAll() {
	s.lock.Lock()
	defer s.lock.Unlock()

	for _, q := range s.queues {
		q.ScheduleProcess()
		s.logger.Debug("periodic processing run scheduled", q.baseBranch.Logfields...)
	}
}

// Stop terminates the event loop and all queues.
// The event channel (Scheduler.C()) is closed.
func (s *Scheduler) Stop() {
	s.logger.Debug("merge queue scheduler terminating", logfields.Event("scheduler_terminating"))
	close(s.ch)
	s.wg.Wait()

	s.lock.Lock()
	queues := make([]*queue, 0, len(s.queues))
	for _, q := range s.queues {
		queues = append(queues, q)
	}
	s.lock.Unlock()

	for _, q := range queues {
		q.Stop()
	}

	s.logger.Debug("merge queue scheduler terminated", logfields.Event("scheduler_terminated"))
}
