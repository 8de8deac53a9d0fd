package automation

import (
	"context"
	"fmt"
	"html"
	"log/slog"
	"slices"

	"github.com/dohr-michael/ruleflow/internal/events"
	"github.com/dohr-michael/ruleflow/internal/host"
)

// Decision is the user's answer to a runaway-rule prompt.
type Decision string

const (
	DecisionDisable  Decision = "disable"
	DecisionContinue Decision = "continue"
)

const (
	buttonDisable  = "Disable Rule"
	buttonContinue = "Continue"
)

// enterRecovery moves a throttled rule into the pending-decision state and
// asks the user what to do. A rule already pending is not asked again.
func (e *Engine) enterRecovery(ctx context.Context, rule Rule) {
	e.mu.Lock()
	_, already := e.pending[rule.ID]
	if !already {
		e.pending[rule.ID] = struct{}{}
	}
	e.mu.Unlock()

	e.publish(events.RuleThrottledPayload{RuleID: rule.ID, RuleName: rule.Name, Pending: already})
	if already {
		slog.Debug("automation: rule still awaiting decision", "rule_id", rule.ID)
		return
	}
	slog.Warn("automation: rule rate limited, asking user", "rule_id", rule.ID, "rule", rule.Name)

	id := rule.ID
	dialog := host.Dialog{
		Title: "Automation paused",
		Content: fmt.Sprintf(
			"The rule <strong>%s</strong> ran more than %d times in %s. It may be stuck in a loop. Disable it or let it continue?",
			html.EscapeString(rule.Name), e.limiter.Limit(), e.limiter.Window(),
		),
		Buttons: []host.DialogButton{
			{Label: buttonDisable, OnClick: func(ctx context.Context) error {
				return e.ResolveRunaway(ctx, id, DecisionDisable)
			}},
			{Label: buttonContinue, OnClick: func(ctx context.Context) error {
				return e.ResolveRunaway(ctx, id, DecisionContinue)
			}},
		},
	}
	if err := e.host.OpenDialog(ctx, dialog); err != nil {
		slog.Error("automation: open recovery dialog", "rule_id", id, "error", err)
		e.clearPending(id)
	}
}

// ResolveRunaway applies the user's decision for a rule awaiting one and
// returns it to the normal state.
func (e *Engine) ResolveRunaway(ctx context.Context, ruleID string, d Decision) error {
	switch d {
	case DecisionDisable:
		err := e.store.ToggleRuleStatus(ctx, ruleID, false)
		e.clearPending(ruleID)
		if err != nil {
			return fmt.Errorf("disable runaway rule: %w", err)
		}
		slog.Info("automation: runaway rule disabled", "rule_id", ruleID)
	case DecisionContinue:
		e.limiter.Reset(ruleID)
		e.clearPending(ruleID)
		slog.Info("automation: runaway rule resumed", "rule_id", ruleID)
	default:
		return fmt.Errorf("unknown decision %q", d)
	}
	return nil
}

func (e *Engine) clearPending(ruleID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.pending, ruleID)
}

// PendingDecision reports whether ruleID is waiting for a runaway decision.
func (e *Engine) PendingDecision(ruleID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.pending[ruleID]
	return ok
}

// PendingDecisions lists the rule ids waiting for a runaway decision.
func (e *Engine) PendingDecisions() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]string, 0, len(e.pending))
	for id := range e.pending {
		out = append(out, id)
	}
	slices.Sort(out)
	return out
}
