package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simplesurance/mergetrain/internal/provider"
)

func TestRenderCommitMessageTemplate(t *testing.T) {
	tmpl, err := NewTemplate("commit_message",
		"{{ title }}\n\n{{ body | get_section(\"## Description\",\"\") }}\n\nPull-Request: #{{ number }}.")
	require.NoError(t, err)

	pr := &provider.PullRequestState{
		Number: 42,
		Title:  "Fix bug",
		Body:   "intro text\n\n## Description\nFixes the bug.\n\n## Checklist\n- [x] tests",
	}

	rendered, err := tmpl.Render(pr)
	require.NoError(t, err)

	assert.Equal(t, "Fix bug\n\nFixes the bug.\n\nPull-Request: #42.", rendered)
}

func TestRenderGetSectionDefault(t *testing.T) {
	tmpl, err := NewTemplate("msg", `{{ body | get_section("## Missing", "n/a") }}`)
	require.NoError(t, err)

	rendered, err := tmpl.Render(&provider.PullRequestState{Body: "no sections here"})
	require.NoError(t, err)

	assert.Equal(t, "n/a", rendered)
}

func TestRenderAuthorSubstitution(t *testing.T) {
	tmpl, err := NewTemplate("comment", "@{{ author }}: branch {{ head }} will be merged into {{ base }}")
	require.NoError(t, err)

	rendered, err := tmpl.Render(&provider.PullRequestState{
		Author:     "fho",
		Branch:     "feature",
		BaseBranch: "main",
	})
	require.NoError(t, err)

	assert.Equal(t, "@fho: branch feature will be merged into main", rendered)
}

func TestNewTemplateInvalidSyntaxFails(t *testing.T) {
	_, err := NewTemplate("bad", "{{ title ")
	assert.Error(t, err)

	_, err = NewTemplate("bad", "{{ nosuchfunc }}")
	assert.Error(t, err)
}

func TestGetSectionEndsAtNextHeading(t *testing.T) {
	body := "## Description\nline one\nline two\n## Next\nother"

	assert.Equal(t, "line one\nline two", getSection("## Description", "", body))
	assert.Equal(t, "other", getSection("## Next", "", body))
	assert.Equal(t, "fallback", getSection("## Absent", "fallback", body))
}
