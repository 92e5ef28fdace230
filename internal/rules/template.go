package rules

import (
	"bytes"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"text/template"

	"github.com/simplesurance/mergetrain/internal/provider"
)

// Template is a compiled message or commit-message template.
// The configuration syntax uses bare field references and function calls
// with parentheses:
//
//	{{ title }}
//	{{ body | get_section("## Description", "") }}
//	Pull-Request: #{{ number }}
//
// It is normalized into text/template syntax and compiled once at load
// time, rendering is pure.
type Template struct {
	raw  string
	tmpl *template.Template
}

var templateFuncs = template.FuncMap{
	"title":     func(pr *provider.PullRequestState) string { return pr.Title },
	"body":      func(pr *provider.PullRequestState) string { return pr.Body },
	"author":    func(pr *provider.PullRequestState) string { return pr.Author },
	"base":      func(pr *provider.PullRequestState) string { return pr.BaseBranch },
	"head":      func(pr *provider.PullRequestState) string { return pr.Branch },
	"milestone": func(pr *provider.PullRequestState) string { return pr.Milestone },
	"number":    func(pr *provider.PullRequestState) int { return pr.Number },

	"get_section": getSection,
	"queryescape": url.QueryEscape,
}

// field references that render a snapshot value, they receive the snapshot
// as hidden argument during normalization
var contextFieldRe = regexp.MustCompile(
	`(\{\{-?\s*)(title|body|author|base|head|milestone|number)\b`,
)

var actionRe = regexp.MustCompile(`\{\{[^}]*\}\}`)
var funcCallRe = regexp.MustCompile(`(\w+)\(([^)]*)\)`)

// NewTemplate parses and validates a template.
// A malformed template is a load-time error, never a render-time one.
func NewTemplate(name, raw string) (*Template, error) {
	normalized := normalizeTemplate(raw)

	tmpl, err := template.New(name).Funcs(templateFuncs).Parse(normalized)
	if err != nil {
		return nil, fmt.Errorf("parsing template failed: %w", err)
	}

	return &Template{raw: raw, tmpl: tmpl}, nil
}

// Render renders the template for a pull-request snapshot.
func (t *Template) Render(pr *provider.PullRequestState) (string, error) {
	var out bytes.Buffer

	if err := t.tmpl.Execute(&out, pr); err != nil {
		return "", fmt.Errorf("rendering template %q failed: %w", t.raw, err)
	}

	return out.String(), nil
}

func (t *Template) String() string {
	return t.raw
}

func normalizeTemplate(raw string) string {
	result := actionRe.ReplaceAllStringFunc(raw, func(action string) string {
		return funcCallRe.ReplaceAllStringFunc(action, func(call string) string {
			m := funcCallRe.FindStringSubmatch(call)
			args := splitArgs(m[2])

			return m[1] + " " + strings.Join(args, " ")
		})
	})

	return contextFieldRe.ReplaceAllString(result, "$1$2 .")
}

// splitArgs splits a comma-separated argument list, commas inside quoted
// strings do not split.
func splitArgs(in string) []string {
	var result []string
	var cur strings.Builder
	inQuote := false

	for i := 0; i < len(in); i++ {
		c := in[i]

		switch {
		case c == '"' && (i == 0 || in[i-1] != '\\'):
			inQuote = !inQuote
			cur.WriteByte(c)
		case c == ',' && !inQuote:
			result = append(result, strings.TrimSpace(cur.String()))
			cur.Reset()
		default:
			cur.WriteByte(c)
		}
	}

	if s := strings.TrimSpace(cur.String()); s != "" {
		result = append(result, s)
	}

	return result
}

// getSection extracts the content below a markdown heading from body.
// The section ends at the next heading or at the end of the body.
// When the heading does not exist, the default value is returned.
func getSection(section, defaultVal, body string) string {
	lines := strings.Split(body, "\n")

	for i, line := range lines {
		if strings.TrimSpace(line) != strings.TrimSpace(section) {
			continue
		}

		var content []string

		for _, l := range lines[i+1:] {
			if strings.HasPrefix(strings.TrimSpace(l), "#") {
				break
			}

			content = append(content, l)
		}

		return strings.TrimSpace(strings.Join(content, "\n"))
	}

	return defaultVal
}
