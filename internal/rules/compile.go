package rules

import (
	"fmt"

	"github.com/simplesurance/mergetrain/internal/cfg"
	"github.com/simplesurance/mergetrain/internal/conditions"
	"github.com/simplesurance/mergetrain/internal/provider"
)

// DefaultQueueName is used by queue actions that do not name a queue.
const DefaultQueueName = "default"

// ConfigError describes an invalid ruleset configuration.
// It carries the offending rule name and field path.
type ConfigError struct {
	Rule  string
	Field string
	Err   error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("rule %q: %s: %s", e.Rule, e.Field, e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

func cfgErr(rule, field, format string, args ...any) *ConfigError {
	return &ConfigError{Rule: rule, Field: field, Err: fmt.Errorf(format, args...)}
}

var validMergeMethods = map[string]struct{}{
	provider.MergeMethodSquash: {},
	provider.MergeMethodMerge:  {},
	provider.MergeMethodRebase: {},
}

// Compile parses and validates the declarative ruleset into a Set.
// It fails closed: a single invalid rule makes the whole ruleset
// unloadable, since partially-active automation is more dangerous than
// none.
func Compile(config *cfg.Config) (*Set, error) {
	queueRules, err := compileQueueRules(config.QueueRules)
	if err != nil {
		return nil, err
	}

	result := Set{
		Rules:      make([]*Rule, 0, len(config.PullRequestRules)),
		QueueRules: queueRules,
	}

	names := map[string]struct{}{}

	for _, rawRule := range config.PullRequestRules {
		if rawRule.Name == "" {
			return nil, cfgErr("", "pull_request_rules.name", "missing field")
		}

		if _, exist := names[rawRule.Name]; exist {
			return nil, cfgErr(rawRule.Name, "name", "rule name is not unique")
		}
		names[rawRule.Name] = struct{}{}

		condition, err := conditions.ParseConditions(rawRule.Conditions)
		if err != nil {
			return nil, cfgErr(rawRule.Name, "conditions", "%s", err)
		}

		actions, err := compileActions(rawRule, queueRules)
		if err != nil {
			return nil, err
		}

		result.Rules = append(result.Rules, &Rule{
			Name:      rawRule.Name,
			Condition: condition,
			Actions:   actions,
		})
	}

	return &result, nil
}

// compileActions converts the action configuration of a rule into the
// typed Action list. Actions are ordered comment, dismiss_reviews, review,
// queue, matching the configuration schema.
func compileActions(rawRule *cfg.RuleCfg, queueRules map[string]*QueueRule) ([]*Action, error) {
	var result []*Action

	raw := rawRule.Actions

	if raw.Comment != nil {
		if raw.Comment.Message == "" {
			return nil, cfgErr(rawRule.Name, "actions.comment.message", "missing field")
		}

		tmpl, err := NewTemplate(rawRule.Name+"/comment", raw.Comment.Message)
		if err != nil {
			return nil, cfgErr(rawRule.Name, "actions.comment.message", "%s", err)
		}

		result = append(result, &Action{Kind: ActionComment, Message: tmpl})
	}

	if raw.DismissReviews != nil {
		if raw.DismissReviews.Message == "" {
			return nil, cfgErr(rawRule.Name, "actions.dismiss_reviews.message", "missing field")
		}

		tmpl, err := NewTemplate(rawRule.Name+"/dismiss_reviews", raw.DismissReviews.Message)
		if err != nil {
			return nil, cfgErr(rawRule.Name, "actions.dismiss_reviews.message", "%s", err)
		}

		changesRequested := true
		if raw.DismissReviews.ChangesRequested != nil {
			changesRequested = *raw.DismissReviews.ChangesRequested
		}

		result = append(result, &Action{
			Kind:                 ActionDismissReviews,
			Message:              tmpl,
			ChangesRequestedOnly: changesRequested,
		})
	}

	if raw.Review != nil {
		switch raw.Review.Type {
		case provider.ReviewTypeApprove, provider.ReviewTypeRequestChanges:
		default:
			return nil, cfgErr(rawRule.Name, "actions.review.type",
				"unsupported review type %q, must be %s or %s",
				raw.Review.Type, provider.ReviewTypeApprove, provider.ReviewTypeRequestChanges)
		}

		result = append(result, &Action{Kind: ActionReview, ReviewType: raw.Review.Type})
	}

	if raw.Queue != nil {
		queueName := raw.Queue.Name
		if queueName == "" {
			queueName = DefaultQueueName
		}

		if _, exist := queueRules[queueName]; !exist {
			return nil, cfgErr(rawRule.Name, "actions.queue.name",
				"queue rule %q does not exist", queueName)
		}

		result = append(result, &Action{Kind: ActionQueue, QueueName: queueName})
	}

	if len(result) == 0 {
		return nil, cfgErr(rawRule.Name, "actions", "rule defines no action")
	}

	return result, nil
}

func compileQueueRules(rawRules []*cfg.QueueRuleCfg) (map[string]*QueueRule, error) {
	result := make(map[string]*QueueRule, len(rawRules))

	for _, raw := range rawRules {
		if raw.Name == "" {
			return nil, cfgErr("", "queue_rules.name", "missing field")
		}

		if _, exist := result[raw.Name]; exist {
			return nil, cfgErr(raw.Name, "queue_rules.name", "queue rule name is not unique")
		}

		queueConditions, err := conditions.ParseConditions(raw.QueueConditions)
		if err != nil {
			return nil, cfgErr(raw.Name, "queue_conditions", "%s", err)
		}

		// empty merge conditions mean: trust the provider's branch
		// protection, the speculative check always passes
		var mergeConditions *conditions.Node
		if len(raw.MergeConditions) > 0 {
			mergeConditions, err = conditions.ParseConditions(raw.MergeConditions)
			if err != nil {
				return nil, cfgErr(raw.Name, "merge_conditions", "%s", err)
			}
		}

		mergeMethod := raw.MergeMethod
		if mergeMethod == "" {
			mergeMethod = provider.MergeMethodMerge
		}

		if _, valid := validMergeMethods[mergeMethod]; !valid {
			return nil, cfgErr(raw.Name, "merge_method",
				"unsupported merge method %q, must be squash, merge or rebase", mergeMethod)
		}

		var commitMsg *Template
		if raw.CommitMessageTemplate != "" {
			commitMsg, err = NewTemplate(raw.Name+"/commit_message", raw.CommitMessageTemplate)
			if err != nil {
				return nil, cfgErr(raw.Name, "commit_message_template", "%s", err)
			}
		}

		result[raw.Name] = &QueueRule{
			Name:            raw.Name,
			QueueConditions: queueConditions,
			MergeConditions: mergeConditions,
			MergeMethod:     mergeMethod,
			CommitMessage:   commitMsg,
		}
	}

	return result, nil
}
