package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/dohr-michael/ruleflow/internal/storage"
)

// NewHistoryCommand returns the history subcommand.
func NewHistoryCommand() *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "Show recent engine events from the event log",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "limit", Aliases: []string{"n"}, Usage: "Number of events", Value: 20},
			&cli.BoolFlag{Name: "json", Usage: "Print raw JSON lines"},
		},
		Action: runHistory,
	}
}

func runHistory(_ context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	list, err := storage.ReadEventLog(filepath.Join(cfg.Storage.Path, storage.EventLogFile), cmd.Int("limit"))
	if err != nil {
		return err
	}
	if len(list) == 0 {
		fmt.Println("No events recorded.")
		return nil
	}

	if cmd.Bool("json") {
		enc := json.NewEncoder(os.Stdout)
		for _, e := range list {
			if err := enc.Encode(e); err != nil {
				return err
			}
		}
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tTYPE\tDETAILS")
	for _, e := range list {
		fmt.Fprintf(w, "%s\t%s\t%s\n", e.Timestamp.Format(time.DateTime), e.Type, summarize(e.Payload))
	}
	return w.Flush()
}

// summarize renders a payload as sorted key=value pairs.
func summarize(payload map[string]any) string {
	keys := make([]string, 0, len(payload))
	for k := range payload {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, payload[k]))
	}
	return strings.Join(parts, " ")
}
