package automation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html"
	"io"
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/dohr-michael/ruleflow/internal/host"
)

// DefaultWebhookTimeout bounds a webhook call when no client is supplied.
const DefaultWebhookTimeout = 10 * time.Second

type actionFunc func(ctx context.Context, action Action, event TaskEvent, env Env) error

type action struct {
	Descriptor
	run actionFunc
}

func (a action) Execute(ctx context.Context, act Action, event TaskEvent, env Env) error {
	return a.run(ctx, act, event, env)
}

func builtinActions(client *http.Client) []ActionCapability {
	return []ActionCapability{
		action{Descriptor{"createTask", "Create Task", "Create a new task with this title in the same project"}, createTask},
		action{Descriptor{"addTag", "Add Tag", "Add the tag with this title to the task"}, addTag},
		action{Descriptor{"displaySnack", "Show Notification", "Show a short notification with this message"}, displaySnack},
		action{Descriptor{"displayDialog", "Show Dialog", "Show a dialog with this message"}, displayDialog},
		action{Descriptor{"webhook", "Call Webhook", "POST the event as JSON to this URL"}, webhook(client)},
	}
}

func createTask(ctx context.Context, act Action, event TaskEvent, env Env) error {
	if act.Value == "" {
		return nil
	}
	draft := host.TaskDraft{Title: act.Value}
	if event.Task != nil {
		draft.ProjectID = event.Task.ProjectID
	}
	id, err := env.Host.AddTask(ctx, draft)
	if err != nil {
		return fmt.Errorf("create task: %w", err)
	}
	slog.Debug("automation: task created", "task_id", id, "title", act.Value)
	return nil
}

func addTag(ctx context.Context, act Action, event TaskEvent, env Env) error {
	if event.Task == nil || env.Cache == nil {
		return nil
	}
	tag, found, err := env.Cache.TagByTitle(ctx, act.Value)
	if err != nil {
		return fmt.Errorf("add tag: %w", err)
	}
	if !found || event.Task.HasTag(tag.ID) {
		return nil
	}

	tagIDs := append(slices.Clone(event.Task.TagIDs), tag.ID)
	if err := env.Host.UpdateTask(ctx, event.Task.ID, host.TaskPatch{TagIDs: tagIDs}); err != nil {
		return fmt.Errorf("add tag %q: %w", act.Value, err)
	}
	return nil
}

func displaySnack(ctx context.Context, act Action, _ TaskEvent, env Env) error {
	return env.Host.Snack(ctx, host.Snack{Message: act.Value, Type: host.SnackInfo})
}

func displayDialog(ctx context.Context, act Action, _ TaskEvent, env Env) error {
	return env.Host.OpenDialog(ctx, host.Dialog{
		Title:   "Automation",
		Content: html.EscapeString(act.Value),
		Buttons: []host.DialogButton{{Label: "OK"}},
	})
}

func webhook(client *http.Client) actionFunc {
	if client == nil {
		client = &http.Client{Timeout: DefaultWebhookTimeout}
	}
	return func(ctx context.Context, act Action, event TaskEvent, _ Env) error {
		if act.Value == "" {
			return nil
		}
		body, err := json.Marshal(event)
		if err != nil {
			slog.Error("automation: webhook encode", "url", act.Value, "error", err)
			return nil
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, act.Value, bytes.NewReader(body))
		if err != nil {
			slog.Error("automation: webhook request", "url", act.Value, "error", err)
			return nil
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := client.Do(req)
		if err != nil {
			slog.Error("automation: webhook failed", "url", act.Value, "error", err)
			return nil
		}
		defer func() {
			// Drain so the connection can be reused.
			_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
			resp.Body.Close()
		}()

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			slog.Warn("automation: webhook rejected", "url", act.Value, "status", resp.StatusCode)
		}
		return nil
	}
}

// BuiltinOptions configures the built-in capabilities.
type BuiltinOptions struct {
	// HTTPClient is used by the webhook action.
	HTTPClient *http.Client
}

// RegisterBuiltins adds the built-in triggers, conditions and actions to reg.
func RegisterBuiltins(reg *Registry, opts BuiltinOptions) {
	for _, t := range builtinTriggers() {
		reg.RegisterTrigger(t)
	}
	for _, c := range builtinConditions() {
		reg.RegisterCondition(c)
	}
	for _, a := range builtinActions(opts.HTTPClient) {
		reg.RegisterAction(a)
	}
}
