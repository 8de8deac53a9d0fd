package commands

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/dohr-michael/ruleflow/internal/automation"
	"github.com/dohr-michael/ruleflow/internal/config"
	"github.com/dohr-michael/ruleflow/internal/events"
	"github.com/dohr-michael/ruleflow/internal/host/local"
	"github.com/dohr-michael/ruleflow/internal/storage"
)

// loadConfig reads the --config file, falling back to defaults when it
// does not exist.
func loadConfig(cmd *cli.Command) (*config.Config, error) {
	path := cmd.String("config")
	cfg, err := config.LoadOrDefault(path)
	if err != nil {
		return nil, fmt.Errorf("load config %s: %w", path, err)
	}
	return cfg, nil
}

// setupLogging installs a stderr text handler. --debug wins over the
// configured level. The returned LevelVar can be adjusted on reload.
func setupLogging(cmd *cli.Command, cfg *config.Config) *slog.LevelVar {
	level := new(slog.LevelVar)
	level.Set(logLevel(cmd, cfg))
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
	return level
}

func logLevel(cmd *cli.Command, cfg *config.Config) slog.Level {
	if cmd.Bool("debug") {
		return slog.LevelDebug
	}
	return cfg.Log.SlogLevel()
}

// newRegistry returns a registry holding the built-in capabilities.
func newRegistry(cfg *config.Config) *automation.Registry {
	reg := automation.NewRegistry()
	automation.RegisterBuiltins(reg, automation.BuiltinOptions{
		HTTPClient: &http.Client{Timeout: cfg.Webhook.Timeout.Duration()},
	})
	return reg
}

// ruleStack is the blob store plus the rule store reading it.
type ruleStack struct {
	blob     storage.BlobStore
	registry *automation.Registry
	store    *automation.RuleStore
}

func openRuleStack(cfg *config.Config) (*ruleStack, error) {
	if err := os.MkdirAll(cfg.Storage.Path, 0o755); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	blob, err := storage.Open(cfg.Storage.Driver, cfg.Storage.Path)
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}
	reg := newRegistry(cfg)
	return &ruleStack{
		blob:     blob,
		registry: reg,
		store:    automation.NewRuleStore(blob, reg),
	}, nil
}

func (s *ruleStack) Close() {
	s.store.Close()
	if err := s.blob.Close(); err != nil {
		slog.Warn("close storage", "error", err)
	}
}

// offlineEngine returns an engine over the stack that is never started. It
// validates and stores rules without running them.
func (s *ruleStack) offlineEngine(bus *events.Bus) (*automation.Engine, error) {
	engine, err := automation.New(automation.Config{
		Host:     local.New(s.blob, bus),
		Registry: s.registry,
		Store:    s.store,
	})
	if err != nil {
		return nil, fmt.Errorf("init engine: %w", err)
	}
	return engine, nil
}

// warnInitError reports a store that fell back to an empty rule set.
func warnInitError(ctx context.Context, store *automation.RuleStore) {
	if _, err := store.Rules(ctx); err != nil {
		return
	}
	if err := store.InitializationError(); err != nil {
		fmt.Fprintf(os.Stderr, "warning: %v\n", err)
	}
}

func gatewayURL(cfg *config.Config) string {
	return fmt.Sprintf("http://%s:%d", cfg.Gateway.Host, cfg.Gateway.Port)
}
