// Package cfg loads the daemon and ruleset configuration from a TOML file.
package cfg

import (
	"io"

	"github.com/pelletier/go-toml"
)

type Config struct {
	HTTPListenAddr        string `toml:"http_server_listen_addr"`
	HTTPSListenAddr       string `toml:"https_server_listen_addr"`
	HTTPSCertFile         string `toml:"https_ssl_cert_file"`
	HTTPSKeyFile          string `toml:"https_ssl_key_file"`
	GithubWebhookEndpoint string `toml:"github_webhook_endpoint"`
	GithubWebHookSecret   string `toml:"github_webhook_secret"`
	GithubAPIToken        string `toml:"github_api_token"`
	// GithubActor is the login of the account the api token belongs to.
	// Reviews submitted by this login are recognized as the daemon's own.
	GithubActor           string `toml:"github_actor"`
	LogFormat             string `toml:"log_format"`
	LogLevel              string `toml:"log_level"`
	LogTimeKey            string `toml:"log_time_key"`

	// EventFilter is an optional jq expression, applied to the JSON
	// representation of incoming events. Events for that it does not
	// evaluate to true are discarded before rule evaluation.
	EventFilter string `toml:"event_filter"`

	// QueueLabel is the label that marks pull requests as queued for
	// merging.
	QueueLabel string `toml:"queue_label"`

	// Repositories lists repositories in "owner/repository" format whose
	// open pull requests are synchronized on startup.
	Repositories []string `toml:"repositories"`

	// DryRun simulates all operations that would change state at the
	// code-hosting provider, they are logged and always succeed.
	DryRun bool `toml:"dry_run"`

	PullRequestRules []*RuleCfg      `toml:"pull_request_rules"`
	QueueRules       []*QueueRuleCfg `toml:"queue_rules"`
}

type RuleCfg struct {
	Name       string     `toml:"name"`
	Conditions []any      `toml:"conditions"`
	Actions    ActionsCfg `toml:"actions"`
}

type ActionsCfg struct {
	Comment        *CommentActionCfg        `toml:"comment"`
	DismissReviews *DismissReviewsActionCfg `toml:"dismiss_reviews"`
	Review         *ReviewActionCfg         `toml:"review"`
	Queue          *QueueActionCfg          `toml:"queue"`
}

type CommentActionCfg struct {
	Message string `toml:"message"`
}

type DismissReviewsActionCfg struct {
	Message string `toml:"message"`
	// ChangesRequested selects dismissal of changes-requested reviews,
	// it defaults to true. Approvals are never dismissed.
	ChangesRequested *bool `toml:"changes_requested"`
}

type ReviewActionCfg struct {
	Type string `toml:"type"`
}

type QueueActionCfg struct {
	Name string `toml:"name"`
}

type QueueRuleCfg struct {
	Name                  string `toml:"name"`
	QueueConditions       []any  `toml:"queue_conditions"`
	MergeConditions       []any  `toml:"merge_conditions"`
	MergeMethod           string `toml:"merge_method"`
	CommitMessageTemplate string `toml:"commit_message_template"`
}

func Load(reader io.Reader) (*Config, error) {
	var result Config

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, err
	}

	if err := toml.Unmarshal(data, &result); err != nil {
		return nil, err
	}

	return &result, nil
}

func (r *Config) Marshal(writer io.Writer) error {
	return toml.NewEncoder(writer).Encode(r)
}
