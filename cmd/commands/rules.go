package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/dohr-michael/ruleflow/internal/automation"
	"github.com/dohr-michael/ruleflow/internal/events"
)

// NewRulesCommand returns the rules subcommand. Its subcommands work on the
// configured storage directly; stop a running server before editing.
func NewRulesCommand() *cli.Command {
	idArg := []cli.Argument{&cli.StringArg{Name: "id"}}
	return &cli.Command{
		Name:  "rules",
		Usage: "Manage stored automation rules (stop a running server first)",
		Commands: []*cli.Command{
			{
				Name:   "list",
				Usage:  "List all rules",
				Action: runRulesList,
			},
			{
				Name:      "delete",
				Usage:     "Delete a rule",
				Arguments: idArg,
				Action:    runRulesDelete,
			},
			{
				Name:      "enable",
				Usage:     "Enable a rule",
				Arguments: idArg,
				Action:    runRulesToggle(true),
			},
			{
				Name:      "disable",
				Usage:     "Disable a rule",
				Arguments: idArg,
				Action:    runRulesToggle(false),
			},
			{
				Name:  "export",
				Usage: "Write all rules as YAML",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "File to write (default: stdout)"},
				},
				Action: runRulesExport,
			},
			{
				Name:  "import",
				Usage: "Add or replace rules from a YAML file",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "file", UsageText: "YAML file, - for stdin"},
				},
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "replace", Usage: "Drop stored rules missing from the file"},
				},
				Action: runRulesImport,
			},
		},
		DefaultCommand: "list",
	}
}

// withRules opens the rule storage, runs fn and closes everything.
func withRules(ctx context.Context, cmd *cli.Command, fn func(*automation.Engine) error) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	setupLogging(cmd, cfg)

	stack, err := openRuleStack(cfg)
	if err != nil {
		return err
	}
	defer stack.Close()

	bus := events.NewBus(16)
	defer bus.Close()

	engine, err := stack.offlineEngine(bus)
	if err != nil {
		return err
	}
	warnInitError(ctx, stack.store)
	return fn(engine)
}

func requireID(cmd *cli.Command) (string, error) {
	id := cmd.StringArg("id")
	if id == "" {
		return "", errors.New("rule id is required")
	}
	return id, nil
}

func runRulesList(ctx context.Context, cmd *cli.Command) error {
	return withRules(ctx, cmd, func(engine *automation.Engine) error {
		rules, err := engine.Rules(ctx)
		if err != nil {
			return fmt.Errorf("list rules: %w", err)
		}
		if len(rules) == 0 {
			fmt.Println("No rules found.")
			return nil
		}

		now := time.Now()
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tENABLED\tTRIGGER\tNEXT\tCONDITIONS\tACTIONS\tNAME")
		for _, r := range rules {
			fmt.Fprintf(w, "%s\t%t\t%s\t%s\t%d\t%d\t%s\n",
				r.ID,
				r.IsEnabled,
				r.Trigger.Type,
				nextFire(r, now),
				len(r.Conditions),
				len(r.Actions),
				r.Name,
			)
		}
		return w.Flush()
	})
}

// nextFire shows when a clock rule fires next, or "-" for event rules.
func nextFire(r automation.Rule, now time.Time) string {
	if r.Trigger.Type != automation.TriggerTimeBased {
		return "-"
	}
	clock, err := automation.ParseClock(r.Trigger.Value)
	if err != nil {
		return "invalid " + r.Trigger.Value
	}
	return clock.Next(now).Format("Mon 15:04")
}

func runRulesDelete(ctx context.Context, cmd *cli.Command) error {
	id, err := requireID(cmd)
	if err != nil {
		return err
	}
	return withRules(ctx, cmd, func(engine *automation.Engine) error {
		if err := engine.DeleteRule(ctx, id); err != nil {
			return fmt.Errorf("delete rule: %w", err)
		}
		fmt.Printf("Rule %s deleted.\n", id)
		return nil
	})
}

func runRulesToggle(enabled bool) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		id, err := requireID(cmd)
		if err != nil {
			return err
		}
		return withRules(ctx, cmd, func(engine *automation.Engine) error {
			if err := engine.ToggleRuleStatus(ctx, id, enabled); err != nil {
				return err
			}
			state := "disabled"
			if enabled {
				state = "enabled"
			}
			fmt.Printf("Rule %s %s.\n", id, state)
			return nil
		})
	}
}

func runRulesExport(ctx context.Context, cmd *cli.Command) error {
	return withRules(ctx, cmd, func(engine *automation.Engine) error {
		rules, err := engine.Rules(ctx)
		if err != nil {
			return fmt.Errorf("export rules: %w", err)
		}
		data, err := automation.EncodeRulesYAML(rules)
		if err != nil {
			return err
		}
		if out := cmd.String("output"); out != "" {
			return os.WriteFile(out, data, 0o644)
		}
		_, err = os.Stdout.Write(data)
		return err
	})
}

func runRulesImport(ctx context.Context, cmd *cli.Command) error {
	data, err := readInput(cmd.StringArg("file"))
	if err != nil {
		return err
	}
	rules, err := automation.DecodeRulesYAML(data)
	if err != nil {
		return err
	}
	return withRules(ctx, cmd, func(engine *automation.Engine) error {
		saved, err := engine.ImportRules(ctx, rules, cmd.Bool("replace"))
		if err != nil {
			return err
		}
		fmt.Printf("Imported %d rule(s).\n", len(saved))
		return nil
	})
}

func readInput(path string) ([]byte, error) {
	switch path {
	case "":
		return nil, errors.New("input file is required")
	case "-":
		return io.ReadAll(os.Stdin)
	default:
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		return data, nil
	}
}
