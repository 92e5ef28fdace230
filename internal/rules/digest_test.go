package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simplesurance/mergetrain/internal/conditions"
	"github.com/simplesurance/mergetrain/internal/provider"
)

func testRule(t *testing.T, exprs ...any) *Rule {
	t.Helper()

	node, err := conditions.ParseConditions(exprs)
	require.NoError(t, err)

	return &Rule{Name: "test", Condition: node}
}

func TestDependencyDigestIgnoresUnreadFields(t *testing.T) {
	rule := testRule(t, "author=fho", "base=main")

	state := &provider.PullRequestState{
		Author:     "fho",
		BaseBranch: "main",
		Title:      "initial title",
	}

	before := DependencyDigest(rule, conditions.NewSnapshot(state))

	// the rule does not read the title, churn on it must not change the
	// digest
	state.Title = "changed title"
	assert.Equal(t, before, DependencyDigest(rule, conditions.NewSnapshot(state)))

	state.BaseBranch = "release"
	assert.NotEqual(t, before, DependencyDigest(rule, conditions.NewSnapshot(state)))
}

func TestDependencyDigestCoversSetAttributes(t *testing.T) {
	rule := testRule(t, "label=ready")

	state := &provider.PullRequestState{Labels: []string{"ready"}}
	before := DependencyDigest(rule, conditions.NewSnapshot(state))

	state.Labels = []string{"ready", "urgent"}
	assert.NotEqual(t, before, DependencyDigest(rule, conditions.NewSnapshot(state)))
}
