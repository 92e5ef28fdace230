// Package rules compiles the declarative ruleset configuration into typed
// rules and renders their templated values.
package rules

import (
	"context"
	"fmt"

	"github.com/simplesurance/mergetrain/internal/conditions"
)

// Rule couples a condition tree with the actions that run when it matches.
// Rules are independent policies, more than one may match the same event.
type Rule struct {
	Name      string
	Condition *conditions.Node
	Actions   []*Action
}

// Match returns true when the rule's condition tree evaluates to true for
// the snapshot. An unknown result is a non-match.
func (r *Rule) Match(ctx context.Context, snapshot *conditions.Snapshot, teams conditions.TeamResolver) conditions.Tristate {
	return r.Condition.Evaluate(ctx, snapshot, teams)
}

func (r *Rule) String() string {
	return r.Name
}

// QueueRule governs how the merge queue with its name treats entries.
type QueueRule struct {
	Name string
	// QueueConditions must keep holding for an entry to remain in the
	// queue.
	QueueConditions *conditions.Node
	// MergeConditions are checked against the speculative base before
	// the merge. Nil means: trust the provider's own branch-protection
	// gating, the check always passes.
	MergeConditions *conditions.Node
	MergeMethod     string
	CommitMessage   *Template
}

// Set is a compiled, validated ruleset. It is immutable after compilation.
type Set struct {
	Rules      []*Rule
	QueueRules map[string]*QueueRule
}

// QueueRule returns the queue rule with the given name.
func (s *Set) QueueRule(name string) (*QueueRule, error) {
	qr, exist := s.QueueRules[name]
	if !exist {
		return nil, fmt.Errorf("queue rule %q does not exist", name)
	}

	return qr, nil
}

func (s *Set) String() string {
	result := ""

	for i, r := range s.Rules {
		if i > 0 {
			result += ", "
		}

		result += r.Name
	}

	return result
}
