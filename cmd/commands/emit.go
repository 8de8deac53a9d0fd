package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/urfave/cli/v3"

	"github.com/dohr-michael/ruleflow/internal/events"
	"github.com/dohr-michael/ruleflow/internal/gateway/ws"
	"github.com/dohr-michael/ruleflow/internal/host"
)

// NewEmitCommand returns the emit subcommand.
func NewEmitCommand() *cli.Command {
	return &cli.Command{
		Name:  "emit",
		Usage: "Send a task event to a running server",
		Arguments: []cli.Argument{
			&cli.StringArg{Name: "type", UsageText: "created, updated or completed"},
		},
		Flags: []cli.Flag{
			gatewayFlag(),
			&cli.StringFlag{Name: "id", Usage: "Task id (default: random)"},
			&cli.StringFlag{Name: "title", Usage: "Task title", Required: true},
			&cli.StringFlag{Name: "project", Usage: "Project id"},
			&cli.StringSliceFlag{Name: "tag", Usage: "Tag id (repeatable)"},
			&cli.BoolFlag{Name: "done", Usage: "Mark the task as done"},
		},
		Action: runEmit,
	}
}

var emitTypes = map[string]events.EventType{
	"created":   events.EventTaskCreated,
	"updated":   events.EventTaskUpdated,
	"completed": events.EventTaskCompleted,
}

func runEmit(ctx context.Context, cmd *cli.Command) error {
	kind, ok := emitTypes[cmd.StringArg("type")]
	if !ok {
		return fmt.Errorf("unknown event type %q (want created, updated or completed)", cmd.StringArg("type"))
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	base := gatewayURL(cfg)
	if cmd.IsSet("gateway") {
		base = cmd.String("gateway")
	}

	id := cmd.String("id")
	if id == "" {
		id = "task_" + uuid.NewString()[:8]
	}
	tags := cmd.StringSlice("tag")
	if tags == nil {
		tags = []string{}
	}
	params := ws.TaskEventParams{
		Type: kind,
		Task: &host.Task{
			ID:        id,
			Title:     cmd.String("title"),
			ProjectID: cmd.String("project"),
			TagIDs:    tags,
			IsDone:    cmd.Bool("done") || kind == events.EventTaskCompleted,
		},
	}

	body, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, base+"/api/events", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("connect to gateway: %w", err)
	}
	defer resp.Body.Close()

	data, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusAccepted {
		return fmt.Errorf("gateway returned %s: %s", resp.Status, bytes.TrimSpace(data))
	}

	var out struct {
		EventID string `json:"event_id"`
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	fmt.Printf("Emitted %s for %s (event %s)\n", kind, id, out.EventID)
	return nil
}
