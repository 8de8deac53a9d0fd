package commands

import (
	"github.com/urfave/cli/v3"

	"github.com/dohr-michael/ruleflow/internal/config"
)

// NewRootCommand returns the top-level CLI command.
func NewRootCommand() *cli.Command {
	return &cli.Command{
		Name:  "ruleflow",
		Usage: "Trigger/condition/action automation for your tasks",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to config file",
				Value:   config.ConfigPath(),
			},
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "Enable debug logging",
			},
		},
		Commands: []*cli.Command{
			NewServeCommand(),
			NewStatusCommand(),
			NewRulesCommand(),
			NewDefinitionsCommand(),
			NewEmitCommand(),
			NewWatchCommand(),
			NewAnswerCommand(),
			NewHistoryCommand(),
			NewMCPServeCommand(),
		},
	}
}
