package automation

import (
	"context"
	"log/slog"
)

// Evaluator runs a rule's conditions. It is fail-closed: a condition it
// cannot resolve or that errors counts as a non-match.
type Evaluator struct {
	registry *Registry
	env      Env
}

func NewEvaluator(registry *Registry, env Env) *Evaluator {
	return &Evaluator{registry: registry, env: env}
}

// AllConditionsMatch reports whether every condition holds for event. It
// stops at the first condition that does not.
func (e *Evaluator) AllConditionsMatch(ctx context.Context, conditions []Condition, event TaskEvent) bool {
	for _, cond := range conditions {
		impl, ok := e.registry.Condition(cond.Type)
		if !ok {
			slog.Debug("automation: unknown condition", "type", cond.Type)
			return false
		}
		matched, err := impl.Check(ctx, cond, event, e.env)
		if err != nil {
			slog.Warn("automation: condition failed", "type", cond.Type, "error", err)
			return false
		}
		if !matched {
			return false
		}
	}
	return true
}
