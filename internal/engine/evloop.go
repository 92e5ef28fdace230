// Package engine matches incoming pull-request events against the
// compiled ruleset and dispatches the actions of matching rules.
package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/itchyny/gojq"
	"go.uber.org/zap"

	"github.com/simplesurance/mergetrain/internal/conditions"
	"github.com/simplesurance/mergetrain/internal/logfields"
	"github.com/simplesurance/mergetrain/internal/provider"
	"github.com/simplesurance/mergetrain/internal/rules"
)

const DefEventChannelBufferSize = 512

const loggerName = "event-loop"

// EvLoop receives events and evaluates all rules for them.
// Rules are evaluated in configuration order, all matching rules fire.
// Events for distinct pull requests are processed in parallel, events for
// the same pull request are serialized.
type EvLoop struct {
	ch         chan *provider.Event
	logger     *zap.Logger
	ruleSet    *rules.Set
	provider   provider.Provider
	dispatcher *Dispatcher
	retryer    *Retryer

	eventFilter *gojq.Query

	prLocks     map[string]*prLock
	prLocksLock sync.Mutex

	wg            sync.WaitGroup
	actionDeferFn func()
}

// WithEventFilter sets a jq expression that incoming events must evaluate
// to true for, events that do not are discarded.
func WithEventFilter(query *gojq.Query) func(*EvLoop) {
	return func(e *EvLoop) {
		e.eventFilter = query
	}
}

// WithRoutineDeferFunc sets a function to be run when a goroutine that
// processes an event returns.
// It can be used to set a panic handler.
func WithRoutineDeferFunc(fn func()) func(*EvLoop) {
	return func(e *EvLoop) {
		e.actionDeferFn = fn
	}
}

func NewEventLoop(ruleSet *rules.Set, p provider.Provider, dispatcher *Dispatcher, retryer *Retryer, opts ...func(*EvLoop)) *EvLoop {
	evl := EvLoop{
		ch:         make(chan *provider.Event, DefEventChannelBufferSize),
		ruleSet:    ruleSet,
		provider:   p,
		dispatcher: dispatcher,
		retryer:    retryer,
		prLocks:    map[string]*prLock{},
	}

	for _, opt := range opts {
		opt(&evl)
	}

	if evl.logger == nil {
		evl.logger = zap.L().Named(loggerName)
	}

	return &evl
}

// C returns the event channel.
// Events sent to this channel will be processed.
// The channel is closed when Stop() is called.
func (e *EvLoop) C() chan<- *provider.Event {
	return e.ch
}

func (e *EvLoop) Start() {
	ctx := context.Background()
	e.logger.Info("ready to process events", logfields.Event("eventloop_started"))

	for ev := range e.ch {
		logger := e.logger.With(ev.LogFields...)

		logger.Debug("event received", logfields.Event("event_received"))
		metrics.ReceivedEventsInc(ev.EventType)

		if !e.passesEventFilter(ctx, logger, ev) {
			continue
		}

		if ev.PullRequestNr == 0 {
			logger.Debug(
				"event ignored, it does not reference a pull request",
				logfields.Event("event_ignored"),
			)

			continue
		}

		e.wg.Add(1)

		go func(ev *provider.Event) {
			if e.actionDeferFn != nil {
				defer e.actionDeferFn()
			}

			defer e.wg.Done()

			e.processEvent(ctx, ev)
		}(ev)
	}

	e.logger.Info(
		"event loop terminated, event channel was closed",
		logfields.Event("eventloop_terminated"),
	)
}

func (e *EvLoop) passesEventFilter(ctx context.Context, logger *zap.Logger, ev *provider.Event) bool {
	if e.eventFilter == nil {
		return true
	}

	if len(ev.JSON) == 0 {
		return true
	}

	var evUn any
	if err := json.Unmarshal(ev.JSON, &evUn); err != nil {
		logger.Warn(
			"unmarshaling event json for filter evaluation failed",
			logfields.Event("event_filter_failed"),
			zap.Error(err),
		)

		return false
	}

	iter := e.eventFilter.RunWithContext(ctx, evUn)

	result, ok := iter.Next()
	if !ok {
		return false
	}

	if err, isErr := result.(error); isErr {
		logger.Warn(
			"event filter query failed",
			logfields.Event("event_filter_failed"),
			zap.Error(err),
		)

		return false
	}

	matched, isBool := result.(bool)
	if !isBool {
		logger.Warn(
			"event filter query returned a non-bool result",
			logfields.Event("event_filter_failed"),
			zap.String("result", fmt.Sprintf("%v", result)),
		)

		return false
	}

	if !matched {
		logger.Debug("event discarded by event filter", logfields.Event("event_filtered"))
	}

	return matched
}

type prLock struct {
	mu sync.Mutex
	// refs counts goroutines that hold or wait for mu, the map entry is
	// removed when it drops to zero
	refs int
}

// lockPR serializes event processing per pull request, so that no two
// events mutate the same dispatch history concurrently.
// The returned function releases the lock. Lock entries are reference
// counted and evicted when unused, the lock map does not grow with every
// pull request ever seen.
func (e *EvLoop) lockPR(ev *provider.Event) func() {
	key := fmt.Sprintf("%s/%s#%d", ev.RepositoryOwner, ev.Repository, ev.PullRequestNr)

	e.prLocksLock.Lock()
	l, exist := e.prLocks[key]
	if !exist {
		l = &prLock{}
		e.prLocks[key] = l
	}
	l.refs++
	e.prLocksLock.Unlock()

	l.mu.Lock()

	return func() {
		l.mu.Unlock()

		e.prLocksLock.Lock()
		l.refs--
		if l.refs == 0 {
			delete(e.prLocks, key)
		}
		e.prLocksLock.Unlock()
	}
}

func (e *EvLoop) processEvent(ctx context.Context, ev *provider.Event) {
	logger := e.logger.With(ev.LogFields...)

	unlock := e.lockPR(ev)
	defer unlock()

	state, err := e.fetchPRState(ctx, ev)
	if err != nil {
		logger.Warn(
			"retrieving pull request state failed, rules are not evaluated",
			logfields.Event("pr_state_retrieval_failed"),
			zap.Error(err),
		)

		return
	}

	if state.Closed {
		logger.Debug(
			"pull request is closed, rules are not evaluated",
			logfields.Event("event_ignored"),
		)

		return
	}

	snapshot := conditions.NewSnapshot(state)

	for _, rule := range e.ruleSet.Rules {
		logger := logger.With(logfields.Rule(rule.Name))

		result := rule.Match(ctx, snapshot, e.provider)

		logger.Debug(
			"rule evaluated",
			logfields.Event("rule_evaluated"),
			zap.String("match_result", result.String()),
		)

		if result != conditions.True {
			// an unknown result is a non-match, it is re-evaluated
			// on the next event for the pull request
			continue
		}

		digest := rules.DependencyDigest(rule, snapshot)

		for actionIdx := range rule.Actions {
			// dispatch errors are logged by the dispatcher, a
			// failing action does not block the following ones
			_ = e.dispatcher.Dispatch(ctx, rule, actionIdx, state, digest)
		}
	}
}

func (e *EvLoop) fetchPRState(ctx context.Context, ev *provider.Event) (*provider.PullRequestState, error) {
	var state *provider.PullRequestState

	err := e.retryer.Run(ctx, func(ctx context.Context) error {
		var err error

		state, err = e.provider.GetPRState(ctx, ev.RepositoryOwner, ev.Repository, ev.PullRequestNr)

		return err
	}, ev.LogFields)

	return state, err
}

// Stop stops the event loop and waits until all scheduled goroutines
// terminated.
// The event channel (EvLoop.C()) will be closed.
func (e *EvLoop) Stop() {
	e.logger.Debug("event loop terminating", logfields.Event("eventloop_terminating"))
	close(e.ch)

	e.retryer.Stop()

	e.wg.Wait()

	e.logger.Info("event loop terminated", logfields.Event("eventloop_terminated"))
}
