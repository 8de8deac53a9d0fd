package config

import (
	"log/slog"
	"strings"
	"time"
)

// Config is the root configuration for ruleflow.
type Config struct {
	Gateway GatewayConfig `json:"gateway"`
	Events  EventsConfig  `json:"events"`
	Log     LogConfig     `json:"log"`
	Storage StorageConfig `json:"storage"`
	Engine  EngineConfig  `json:"engine"`
	Webhook WebhookConfig `json:"webhook"`
	Board   BoardConfig   `json:"board"`
}

// GatewayConfig holds the gateway server settings.
type GatewayConfig struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

// EventsConfig holds event bus settings.
type EventsConfig struct {
	BufferSize int `json:"buffer_size"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `json:"level"` // debug, info, warn, error
}

// SlogLevel maps Level to a slog level. Unknown values mean info.
func (c LogConfig) SlogLevel() slog.Level {
	switch strings.ToLower(c.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// StorageConfig selects where the rule blob and event log live.
type StorageConfig struct {
	Driver string `json:"driver"` // "file" or "sqlite"
	Path   string `json:"path"`   // default: $RULEFLOW_PATH/data
}

// EngineConfig tunes the automation engine.
type EngineConfig struct {
	PollInterval     Duration        `json:"poll_interval"`
	TimeRuleCooldown Duration        `json:"time_rule_cooldown"`
	CacheTTL         Duration        `json:"cache_ttl"`
	RateLimit        RateLimitConfig `json:"rate_limit"`
}

// RateLimitConfig is the runaway-rule protection window.
type RateLimitConfig struct {
	Limit  int      `json:"limit"`
	Window Duration `json:"window"`
}

// WebhookConfig configures the webhook action's HTTP client.
type WebhookConfig struct {
	Timeout Duration `json:"timeout"`
}

// BoardConfig seeds the built-in task board.
type BoardConfig struct {
	Projects []string `json:"projects,omitempty"`
	Tags     []string `json:"tags,omitempty"`
}

// Duration wraps time.Duration for JSON unmarshaling.
type Duration time.Duration

func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	// Remove quotes
	s := string(b)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	dur, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(dur)
	return nil
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return []byte(`"` + time.Duration(d).String() + `"`), nil
}
