package automation

import (
	"context"
	"fmt"
	"log/slog"
)

// Executor runs a rule's actions one after another. It is fail-open: an
// unknown or failing action is logged and the next one still runs.
type Executor struct {
	registry *Registry
	env      Env
}

func NewExecutor(registry *Registry, env Env) *Executor {
	return &Executor{registry: registry, env: env}
}

// ExecuteAll runs actions in order and returns how many completed without
// error.
func (x *Executor) ExecuteAll(ctx context.Context, actions []Action, event TaskEvent) int {
	done := 0
	for i, action := range actions {
		impl, ok := x.registry.Action(action.Type)
		if !ok {
			slog.Warn("automation: unknown action, skipping", "type", action.Type, "index", i)
			continue
		}
		if err := x.run(ctx, impl, action, event); err != nil {
			slog.Error("automation: action failed", "type", action.Type, "index", i, "error", err)
			continue
		}
		done++
	}
	return done
}

func (x *Executor) run(ctx context.Context, impl ActionCapability, action Action, event TaskEvent) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return impl.Execute(ctx, action, event, x.env)
}
