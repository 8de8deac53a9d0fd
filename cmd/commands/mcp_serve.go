package commands

import (
	"context"
	"log/slog"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/dohr-michael/ruleflow/internal/events"
	rulemcp "github.com/dohr-michael/ruleflow/internal/mcp"
)

// Version is reported to MCP clients.
var Version = "dev"

// NewMCPServeCommand returns the mcp-serve subcommand.
func NewMCPServeCommand() *cli.Command {
	return &cli.Command{
		Name:  "mcp-serve",
		Usage: "Expose rule management as an MCP server (stdio)",
		Arguments: []cli.Argument{
			&cli.StringArg{
				Name:      "filter",
				UsageText: "Comma separated tool names to expose (empty = all)",
			},
		},
		Action: runMCPServe,
	}
}

func runMCPServe(ctx context.Context, cmd *cli.Command) error {
	// Setup logging to stderr (stdout is used for MCP stdio transport)
	level := slog.LevelWarn
	if cmd.Bool("debug") {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	stack, err := openRuleStack(cfg)
	if err != nil {
		return err
	}
	defer stack.Close()

	bus := events.NewBus(64)
	defer bus.Close()

	engine, err := stack.offlineEngine(bus)
	if err != nil {
		return err
	}

	filter := cmd.StringArg("filter")
	slog.Debug("starting MCP server", "filter", filter)

	return rulemcp.Serve(ctx, rulemcp.NewMCPServer(engine, Version, filter))
}
