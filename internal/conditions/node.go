// Package conditions implements the boolean condition trees of the
// ruleset and their evaluation against pull-request snapshots.
//
// Trees are compiled once at load time, evaluation is pure: the same
// snapshot and lookups always yield the same result.
package conditions

import (
	"context"
	"regexp"
	"sort"
	"strconv"
)

// Kind discriminates the variants of a Node.
type Kind uint8

const (
	KindLeaf Kind = iota
	KindAnd
	KindOr
	KindNot
)

// Comparator is the comparison operator of a leaf condition.
type Comparator uint8

const (
	CompEqual Comparator = iota
	CompNotEqual
	CompRegex
)

// TeamResolver resolves a team name to the login names of its members.
// Implementations may fail transiently, evaluation maps a failure to
// Unknown.
type TeamResolver interface {
	ResolveTeamMembers(ctx context.Context, owner, team string) ([]string, error)
}

// Node is one node of a condition tree.
// And/Or nodes hold >=1 children, Not nodes exactly one.
// Leaf nodes hold an attribute, a comparator and either a literal value, a
// compiled regexp pattern or a team reference.
type Node struct {
	Kind     Kind
	Children []*Node

	Attribute  string
	Comparator Comparator
	Value      string
	// Team is set instead of Value when the right-hand side references a
	// team roster (`@team-name`).
	Team    string
	pattern *regexp.Regexp

	expr string
}

func (n *Node) String() string {
	return n.expr
}

// And returns a node that is true when all children are true.
func And(children ...*Node) *Node {
	return &Node{Kind: KindAnd, Children: children, expr: "and"}
}

// Evaluate evaluates the tree against a pull-request snapshot.
// And/Or short-circuit on a decisive child. An unresolved team lookup
// yields Unknown for the leaf and propagates unless a sibling decides the
// result.
func (n *Node) Evaluate(ctx context.Context, state *Snapshot, teams TeamResolver) Tristate {
	switch n.Kind {
	case KindAnd:
		result := True

		for _, child := range n.Children {
			switch child.Evaluate(ctx, state, teams) {
			case False:
				return False
			case Unknown:
				result = Unknown
			}
		}

		return result

	case KindOr:
		result := False

		for _, child := range n.Children {
			switch child.Evaluate(ctx, state, teams) {
			case True:
				return True
			case Unknown:
				result = Unknown
			}
		}

		return result

	case KindNot:
		return n.Children[0].Evaluate(ctx, state, teams).Not()

	case KindLeaf:
		return n.evaluateLeaf(ctx, state, teams)

	default:
		return Unknown
	}
}

func (n *Node) evaluateLeaf(ctx context.Context, state *Snapshot, teams TeamResolver) Tristate {
	values := state.AttributeValues(n.Attribute)

	if n.Team != "" {
		if teams == nil {
			return Unknown
		}

		members, err := teams.ResolveTeamMembers(ctx, state.RepositoryOwner(), n.Team)
		if err != nil {
			return Unknown
		}

		isMember := containsAny(values, members)
		if n.Comparator == CompNotEqual {
			return fromBool(!isMember)
		}

		return fromBool(isMember)
	}

	switch n.Comparator {
	case CompEqual:
		return fromBool(contains(values, n.Value))
	case CompNotEqual:
		return fromBool(!contains(values, n.Value))
	case CompRegex:
		for _, v := range values {
			if n.pattern.MatchString(v) {
				return True
			}
		}

		return False
	default:
		return Unknown
	}
}

// Attributes returns the sorted set of snapshot attributes the tree reads.
func (n *Node) Attributes() []string {
	set := map[string]struct{}{}
	n.collectAttributes(set)

	result := make([]string, 0, len(set))
	for attr := range set {
		result = append(result, attr)
	}

	sort.Strings(result)

	return result
}

func (n *Node) collectAttributes(set map[string]struct{}) {
	if n.Kind == KindLeaf {
		set[n.Attribute] = struct{}{}
		return
	}

	for _, child := range n.Children {
		child.collectAttributes(set)
	}
}

func contains(haystack []string, needle string) bool {
	for _, v := range haystack {
		if v == needle {
			return true
		}
	}

	return false
}

func containsAny(values, candidates []string) bool {
	for _, c := range candidates {
		if contains(values, c) {
			return true
		}
	}

	return false
}

func boolVal(b bool) []string {
	return []string{strconv.FormatBool(b)}
}
