package commands

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/dohr-michael/ruleflow/internal/automation"
	"github.com/dohr-michael/ruleflow/internal/config"
	"github.com/dohr-michael/ruleflow/internal/events"
	"github.com/dohr-michael/ruleflow/internal/gateway"
	"github.com/dohr-michael/ruleflow/internal/heartbeat"
	"github.com/dohr-michael/ruleflow/internal/host/local"
	"github.com/dohr-michael/ruleflow/internal/storage"
)

// NewServeCommand returns the serve subcommand.
func NewServeCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the rule engine with the built-in task board and gateway",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "host",
				Usage: "Host to listen on",
			},
			&cli.IntFlag{
				Name:  "port",
				Usage: "Port to listen on",
			},
		},
		Action: runServe,
	}
}

func runServe(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	level := setupLogging(cmd, cfg)

	// CLI flags override config
	if cmd.IsSet("host") {
		cfg.Gateway.Host = cmd.String("host")
	}
	if cmd.IsSet("port") {
		cfg.Gateway.Port = cmd.Int("port")
	}

	// Event bus
	bus := events.NewBus(cfg.Events.BufferSize)
	defer bus.Close()

	stack, err := openRuleStack(cfg)
	if err != nil {
		return err
	}
	defer stack.Close()

	// Built-in task board acting as the host
	board := local.New(stack.blob, bus)
	board.Seed(cfg.Board.Projects, cfg.Board.Tags)

	engine, err := automation.New(automation.Config{
		Host:             board,
		Registry:         stack.registry,
		Store:            stack.store,
		Cache:            automation.NewDataCache(board, cfg.Engine.CacheTTL.Duration()),
		Limiter:          automation.NewRateLimiter(cfg.Engine.RateLimit.Limit, cfg.Engine.RateLimit.Window.Duration()),
		Bus:              bus,
		PollInterval:     cfg.Engine.PollInterval.Duration(),
		TimeRuleCooldown: cfg.Engine.TimeRuleCooldown.Duration(),
	})
	if err != nil {
		return fmt.Errorf("init engine: %w", err)
	}
	engine.Start()
	defer engine.Stop()

	if err := engine.InitializationError(); err != nil {
		slog.Warn("serve: rules reset on startup", "error", err)
	}

	// Persistence of engine events and per-rule counters
	eventLog := storage.NewEventLogger(cfg.Storage.Path, bus)
	defer eventLog.Close()
	stats := storage.NewStatsTracker(bus)
	defer stats.Close()

	// Config reload on SIGHUP
	reloader := config.NewReloader(cmd.String("config"), config.DotenvPath(), cfg)
	reloader.OnReload(func(next *config.Config) {
		level.Set(logLevel(cmd, next))
		engine.InvalidateCache()
	})
	go reloader.WatchSignals(ctx)

	server := gateway.NewServer(gateway.Config{
		Bus:   bus,
		Rules: engine,
		Board: board,
		Stats: stats,
		Host:  cfg.Gateway.Host,
		Port:  cfg.Gateway.Port,
	})

	addr := fmt.Sprintf("%s:%d", cfg.Gateway.Host, cfg.Gateway.Port)
	hb := heartbeat.NewWriter(heartbeat.Path(config.RuleflowPath()), addr, heartbeat.DefaultInterval, engineProbe(engine))
	hb.Start()
	defer hb.Stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	select {
	case <-ctx.Done():
		slog.Info("shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

func engineProbe(engine *automation.Engine) heartbeat.Probe {
	return func(ctx context.Context) heartbeat.EngineState {
		state := heartbeat.EngineState{PendingDecisions: engine.PendingDecisions()}
		if err := engine.InitializationError(); err != nil {
			state.InitError = err.Error()
		}
		rules, err := engine.Rules(ctx)
		if err != nil {
			return state
		}
		state.Rules = len(rules)
		for _, r := range rules {
			if r.IsEnabled {
				state.EnabledRules++
			}
		}
		return state
	}
}
