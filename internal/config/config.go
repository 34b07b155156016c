package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds the daemon and CLI configuration. Environment variables are
// parsed from the RELAYSYNC_ prefix.
type Config struct {
	// Durable store DSN: memory://, file://path, sqlite://path, postgres://…
	StoreDSN string `envconfig:"STORE_DSN" default:"file://relaysync-state.json"`

	// Destination (Notion) settings. Token and TokenFile are alternatives;
	// TokenFile wins and is hot-reloaded on change.
	NotionToken        string `envconfig:"NOTION_TOKEN" default:""`
	NotionTokenFile    string `envconfig:"NOTION_TOKEN_FILE" default:""`
	NotionParentPageID string `envconfig:"NOTION_PARENT_PAGE_ID" default:""`
	NotionBaseURL      string `envconfig:"NOTION_BASE_URL" default:"https://api.notion.com"`

	// Source adapter selection.
	SourceKind          string        `envconfig:"SOURCE_KIND" default:"rest"`
	SourcePlatform      string        `envconfig:"SOURCE_PLATFORM" default:"perplexity"`
	SourceBaseURL       string        `envconfig:"SOURCE_BASE_URL" default:""`
	SourceSessionToken  string        `envconfig:"SOURCE_SESSION_TOKEN" default:""`
	SourceSessionCookie string        `envconfig:"SOURCE_SESSION_COOKIE" default:""`
	SourceURLPattern    string        `envconfig:"SOURCE_URL_PATTERN" default:""`
	SourceTimeout       time.Duration `envconfig:"SOURCE_TIMEOUT" default:"20s"`

	// Destination pacing.
	RateLimitPerMinute int           `envconfig:"RATE_LIMIT_PER_MINUTE" default:"30"`
	QueueTimeout       time.Duration `envconfig:"QUEUE_TIMEOUT" default:"5m"`

	// Orchestration.
	CheckpointEvery       int           `envconfig:"CHECKPOINT_EVERY" default:"5"`
	CompletenessThreshold int           `envconfig:"COMPLETENESS_THRESHOLD" default:"50"`
	JobFreshness          time.Duration `envconfig:"JOB_FRESHNESS" default:"1h"`
	FailureLogLimit       int           `envconfig:"FAILURE_LOG_LIMIT" default:"50"`

	// Status API daemon.
	HTTPAddr      string `envconfig:"HTTP_ADDR" default:":8080"`
	HTTPAuthToken string `envconfig:"HTTP_AUTH_TOKEN" default:""`

	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
}

func Load() (Config, error) {
	var cfg Config
	if err := envconfig.Process("relaysync", &cfg); err != nil {
		return Config{}, fmt.Errorf("parse environment: %w", err)
	}
	return cfg, nil
}
