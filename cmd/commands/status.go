package commands

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/dohr-michael/ruleflow/internal/config"
	"github.com/dohr-michael/ruleflow/internal/heartbeat"
)

// NewStatusCommand returns the status subcommand.
func NewStatusCommand() *cli.Command {
	return &cli.Command{
		Name:  "status",
		Usage: "Show whether a ruleflow server is running",
		Action: func(_ context.Context, _ *cli.Command) error {
			status, hb, err := heartbeat.Check(heartbeat.Path(config.RuleflowPath()), 2*heartbeat.DefaultInterval)
			if err != nil {
				return fmt.Errorf("check heartbeat: %w", err)
			}

			switch status {
			case heartbeat.StatusAlive:
				fmt.Printf("Server: ALIVE (PID %d, %s, uptime %s)\n", hb.PID, hb.Addr, hb.Uptime)
			case heartbeat.StatusStale:
				fmt.Printf("Server: STALE (PID %d, last heartbeat %s ago)\n",
					hb.PID, time.Since(hb.Timestamp).Truncate(time.Second))
			case heartbeat.StatusDead:
				fmt.Println("Server: NOT RUNNING")
				return nil
			}

			if e := hb.Engine; e != nil {
				fmt.Printf("Rules:  %d (%d enabled)\n", e.Rules, e.EnabledRules)
				if len(e.PendingDecisions) > 0 {
					fmt.Printf("Paused: %s\n", strings.Join(e.PendingDecisions, ", "))
				}
				if e.InitError != "" {
					fmt.Printf("Reset:  %s\n", e.InitError)
				}
			}
			return nil
		},
	}
}
