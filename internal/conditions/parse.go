package conditions

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ParseExpr parses a single leaf condition expression.
// Supported forms:
//
//	attr=value    attr!=value    attr~=pattern
//	attr=@team    attr!=@team
//
// Regex patterns are compiled here, a malformed pattern is a parse error,
// never an evaluation-time one.
func ParseExpr(expr string) (*Node, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return nil, errors.New("condition expression is empty")
	}

	attr, op, value, err := splitExpr(expr)
	if err != nil {
		return nil, err
	}

	if _, exist := knownAttributes[attr]; !exist {
		return nil, fmt.Errorf("unknown attribute: %q", attr)
	}

	node := Node{
		Kind:      KindLeaf,
		Attribute: attr,
		expr:      expr,
	}

	switch op {
	case "=":
		node.Comparator = CompEqual
	case "!=":
		node.Comparator = CompNotEqual
	case "~=":
		node.Comparator = CompRegex
	}

	if strings.HasPrefix(value, "@") {
		if op == "~=" {
			return nil, fmt.Errorf("team reference %q can not be combined with a regex comparator", value)
		}

		team := strings.TrimPrefix(value, "@")
		if team == "" {
			return nil, errors.New("team reference is empty")
		}

		node.Team = team

		return &node, nil
	}

	if op == "~=" {
		pattern, err := regexp.Compile(value)
		if err != nil {
			return nil, fmt.Errorf("compiling regex %q failed: %w", value, err)
		}

		node.pattern = pattern
	}

	node.Value = value

	return &node, nil
}

func splitExpr(expr string) (attr, op, value string, err error) {
	for _, operator := range []string{"!=", "~=", "="} {
		idx := strings.Index(expr, operator)
		if idx <= 0 {
			continue
		}

		attr = strings.TrimSpace(expr[:idx])
		value = expr[idx+len(operator):]

		// the operator chars may also occur inside a regex pattern,
		// try the next operator when the attribute part contains one
		if strings.ContainsAny(attr, "=~!") {
			continue
		}

		return attr, operator, value, nil
	}

	return "", "", "", fmt.Errorf("condition %q has no valid comparator, expecting attr=value, attr!=value or attr~=pattern", expr)
}

// ParseConditions parses a condition list from the raw configuration
// representation into a tree.
// Elements are either leaf expression strings or single-key maps nesting
// sub-expressions: {or = [...]}, {and = [...]}, {not = <element>}.
// The list itself is an implicit AND, an empty list is always true.
func ParseConditions(raw []any) (*Node, error) {
	children := make([]*Node, 0, len(raw))

	for i, elem := range raw {
		node, err := parseElement(elem)
		if err != nil {
			return nil, fmt.Errorf("condition %d: %w", i, err)
		}

		children = append(children, node)
	}

	return &Node{Kind: KindAnd, Children: children, expr: "and"}, nil
}

func parseElement(elem any) (*Node, error) {
	switch v := elem.(type) {
	case string:
		return ParseExpr(v)

	case map[string]any:
		if len(v) != 1 {
			return nil, fmt.Errorf("nested condition must have exactly 1 key (and, or, not), has %d", len(v))
		}

		for key, sub := range v {
			switch strings.ToLower(key) {
			case "and", "or":
				subList, ok := sub.([]any)
				if !ok {
					return nil, fmt.Errorf("%q value must be a list of conditions, is %T", key, sub)
				}

				if len(subList) == 0 {
					return nil, fmt.Errorf("%q condition list is empty", key)
				}

				children := make([]*Node, 0, len(subList))
				for i, subElem := range subList {
					node, err := parseElement(subElem)
					if err != nil {
						return nil, fmt.Errorf("%s condition %d: %w", key, i, err)
					}

					children = append(children, node)
				}

				kind := KindAnd
				if strings.ToLower(key) == "or" {
					kind = KindOr
				}

				return &Node{Kind: kind, Children: children, expr: key}, nil

			case "not":
				child, err := parseElement(sub)
				if err != nil {
					return nil, fmt.Errorf("not condition: %w", err)
				}

				return &Node{Kind: KindNot, Children: []*Node{child}, expr: "not"}, nil

			default:
				return nil, fmt.Errorf("unsupported nested condition key: %q", key)
			}
		}
	}

	return nil, fmt.Errorf("condition must be a string or a nested and/or/not table, is %T", elem)
}
