package commands

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/urfave/cli/v3"

	"github.com/dohr-michael/ruleflow/internal/automation"
)

// NewDefinitionsCommand returns the definitions subcommand.
func NewDefinitionsCommand() *cli.Command {
	return &cli.Command{
		Name:  "definitions",
		Usage: "List the trigger, condition and action types rules can use",
		Action: func(_ context.Context, cmd *cli.Command) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			defs := newRegistry(cfg).Definitions()

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "KIND\tID\tNAME\tDESCRIPTION")
			row := func(kind string, list []automation.Definition) {
				for _, d := range list {
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", kind, d.ID, d.Name, d.Description)
				}
			}
			row("trigger", defs.Triggers)
			row("condition", defs.Conditions)
			row("action", defs.Actions)
			return w.Flush()
		},
	}
}
