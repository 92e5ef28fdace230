package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simplesurance/mergetrain/internal/cfg"
	"github.com/simplesurance/mergetrain/internal/provider"
)

func validConfig() *cfg.Config {
	return &cfg.Config{
		PullRequestRules: []*cfg.RuleCfg{
			{
				Name: "auto-approve dependabot",
				Conditions: []any{
					"author=dependabot[bot]",
					`title~=bump [^\s]+ from 1\..+ to 1\.`,
				},
				Actions: cfg.ActionsCfg{
					Review: &cfg.ReviewActionCfg{Type: provider.ReviewTypeApprove},
				},
			},
			{
				Name:       "queue approved PRs",
				Conditions: []any{"review-decision=APPROVED", "draft=false"},
				Actions: cfg.ActionsCfg{
					Queue: &cfg.QueueActionCfg{Name: "default"},
				},
			},
		},
		QueueRules: []*cfg.QueueRuleCfg{
			{
				Name:                  "default",
				QueueConditions:       []any{"draft=false", "conflict=false"},
				MergeMethod:           provider.MergeMethodSquash,
				CommitMessageTemplate: "{{ title }} (#{{ number }})",
			},
		},
	}
}

func TestCompileValidConfig(t *testing.T) {
	set, err := Compile(validConfig())
	require.NoError(t, err)

	require.Len(t, set.Rules, 2)
	require.Len(t, set.QueueRules, 1)

	qr, err := set.QueueRule("default")
	require.NoError(t, err)
	assert.Equal(t, provider.MergeMethodSquash, qr.MergeMethod)
	assert.Nil(t, qr.MergeConditions, "empty merge_conditions must compile to nil")
	assert.NotNil(t, qr.QueueConditions)

	assert.Equal(t, ActionReview, set.Rules[0].Actions[0].Kind)
	assert.Equal(t, ActionQueue, set.Rules[1].Actions[0].Kind)
	assert.Equal(t, "default", set.Rules[1].Actions[0].QueueName)
}

func TestCompileFailsClosed(t *testing.T) {
	testcases := []struct {
		name    string
		mutate  func(*cfg.Config)
		field   string
		ruleNme string
	}{
		{
			name: "bad regex",
			mutate: func(c *cfg.Config) {
				c.PullRequestRules[0].Conditions = []any{"title~=[unclosed"}
			},
			field: "conditions",
		},
		{
			name: "duplicate rule name",
			mutate: func(c *cfg.Config) {
				c.PullRequestRules[1].Name = c.PullRequestRules[0].Name
			},
			field: "name",
		},
		{
			name: "dangling queue reference",
			mutate: func(c *cfg.Config) {
				c.PullRequestRules[1].Actions.Queue.Name = "nosuchqueue"
			},
			field: "actions.queue.name",
		},
		{
			name: "no actions",
			mutate: func(c *cfg.Config) {
				c.PullRequestRules[0].Actions = cfg.ActionsCfg{}
			},
			field: "actions",
		},
		{
			name: "invalid review type",
			mutate: func(c *cfg.Config) {
				c.PullRequestRules[0].Actions.Review.Type = "MAYBE"
			},
			field: "actions.review.type",
		},
		{
			name: "invalid merge method",
			mutate: func(c *cfg.Config) {
				c.QueueRules[0].MergeMethod = "fast-forward"
			},
			field: "merge_method",
		},
		{
			name: "duplicate queue rule name",
			mutate: func(c *cfg.Config) {
				c.QueueRules = append(c.QueueRules, &cfg.QueueRuleCfg{Name: "default"})
			},
			field: "queue_rules.name",
		},
		{
			name: "invalid commit message template",
			mutate: func(c *cfg.Config) {
				c.QueueRules[0].CommitMessageTemplate = "{{ title "
			},
			field: "commit_message_template",
		},
	}

	for _, tc := range testcases {
		t.Run(tc.name, func(t *testing.T) {
			config := validConfig()
			tc.mutate(config)

			_, err := Compile(config)
			require.Error(t, err)

			var cfgError *ConfigError
			require.ErrorAs(t, err, &cfgError)
			assert.Equal(t, tc.field, cfgError.Field)
		})
	}
}

func TestCompileQueueActionDefaultsQueueName(t *testing.T) {
	config := validConfig()
	config.PullRequestRules[1].Actions.Queue.Name = ""

	set, err := Compile(config)
	require.NoError(t, err)
	assert.Equal(t, DefaultQueueName, set.Rules[1].Actions[0].QueueName)
}
