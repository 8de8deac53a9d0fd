package automation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dohr-michael/ruleflow/internal/events"
	"github.com/dohr-michael/ruleflow/internal/host"
)

const (
	DefaultPollInterval     = 10 * time.Second
	DefaultTimeRuleCooldown = 60 * time.Second
)

// Config holds the engine's collaborators. Host, Registry and Store are
// required; the rest default.
type Config struct {
	Host     host.Host
	Registry *Registry
	Store    *RuleStore
	Cache    *DataCache   // default: NewDataCache(Host, DefaultCacheTTL)
	Limiter  *RateLimiter // default: 5 executions per second
	Bus      *events.Bus  // optional: inbound task events and outbound engine events

	PollInterval     time.Duration
	TimeRuleCooldown time.Duration
	Now              func() time.Time
}

// Engine runs rules against task events and the wall clock.
type Engine struct {
	host      host.Host
	registry  *Registry
	store     *RuleStore
	cache     *DataCache
	limiter   *RateLimiter
	bus       *events.Bus
	evaluator *Evaluator
	executor  *Executor

	pollInterval time.Duration
	cooldown     time.Duration
	now          func() time.Time

	mu        sync.Mutex
	lastFired map[string]time.Time
	pending   map[string]struct{}

	done        chan struct{}
	stopOnce    sync.Once
	unsubscribe func()
}

// New creates an engine. Call Start to begin listening and polling.
func New(cfg Config) (*Engine, error) {
	if cfg.Host == nil {
		return nil, errors.New("engine: host is required")
	}
	if cfg.Registry == nil {
		return nil, errors.New("engine: registry is required")
	}
	if cfg.Store == nil {
		return nil, errors.New("engine: rule store is required")
	}
	if cfg.Cache == nil {
		cfg.Cache = NewDataCache(cfg.Host, DefaultCacheTTL)
	}
	if cfg.Limiter == nil {
		cfg.Limiter = NewRateLimiter(DefaultRateLimit, DefaultRateWindow)
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.TimeRuleCooldown <= 0 {
		cfg.TimeRuleCooldown = DefaultTimeRuleCooldown
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	env := Env{Host: cfg.Host, Cache: cfg.Cache, Now: cfg.Now}
	return &Engine{
		host:         cfg.Host,
		registry:     cfg.Registry,
		store:        cfg.Store,
		cache:        cfg.Cache,
		limiter:      cfg.Limiter,
		bus:          cfg.Bus,
		evaluator:    NewEvaluator(cfg.Registry, env),
		executor:     NewExecutor(cfg.Registry, env),
		pollInterval: cfg.PollInterval,
		cooldown:     cfg.TimeRuleCooldown,
		now:          cfg.Now,
		lastFired:    make(map[string]time.Time),
		pending:      make(map[string]struct{}),
		done:         make(chan struct{}),
	}, nil
}

// Start subscribes to task events on the bus and starts the time poll.
func (e *Engine) Start() {
	if e.bus != nil {
		e.unsubscribe = e.bus.Subscribe(e.handleBusEvent, events.TaskEventTypes...)
	}
	go e.pollLoop()
	slog.Info("automation: engine started", "poll_interval", e.pollInterval)
}

// Stop ends the time poll and the bus subscription. Work already running
// is left to finish.
func (e *Engine) Stop() {
	e.stopOnce.Do(func() {
		close(e.done)
		if e.unsubscribe != nil {
			e.unsubscribe()
		}
		slog.Info("automation: engine stopped")
	})
}

func (e *Engine) pollLoop() {
	ticker := time.NewTicker(e.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-e.done:
			return
		case <-ticker.C:
			e.CheckTimeRules(context.Background())
		}
	}
}

var busTriggers = map[events.EventType]TriggerType{
	events.EventTaskCreated:   TriggerTaskCreated,
	events.EventTaskUpdated:   TriggerTaskUpdated,
	events.EventTaskCompleted: TriggerTaskCompleted,
}

// TaskEventFromBus translates a task.* bus event into a TaskEvent.
func TaskEventFromBus(ev events.Event) (TaskEvent, bool) {
	kind, ok := busTriggers[ev.Type]
	if !ok {
		return TaskEvent{}, false
	}
	p, ok := events.GetTaskPayload(ev)
	if !ok {
		return TaskEvent{}, false
	}
	return TaskEvent{Type: kind, Task: p.Task, PreviousTaskState: p.Previous}, true
}

func (e *Engine) handleBusEvent(ev events.Event) {
	te, ok := TaskEventFromBus(ev)
	if !ok {
		slog.Warn("automation: unreadable task event", "type", ev.Type, "id", ev.ID)
		return
	}
	e.OnTaskEvent(context.Background(), te)
}

// OnTaskEvent runs every enabled rule against event. It never panics.
func (e *Engine) OnTaskEvent(ctx context.Context, event TaskEvent) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("automation: task event handler panicked", "type", event.Type, "panic", r)
		}
	}()

	if event.Task == nil {
		slog.Warn("automation: task event without task, ignoring", "type", event.Type)
		return
	}

	rules, err := e.store.EnabledRules(ctx)
	if err != nil {
		slog.Error("automation: read rules", "error", err)
		return
	}
	for _, rule := range rules {
		e.processRule(ctx, rule, event)
	}
}

func (e *Engine) processRule(ctx context.Context, rule Rule, event TaskEvent) {
	defer e.recoverRule(rule)

	trigger, ok := e.registry.Trigger(string(rule.Trigger.Type))
	if !ok || !trigger.Matches(event, rule.Trigger.Value) {
		return
	}
	if !e.evaluator.AllConditionsMatch(ctx, rule.Conditions, event) {
		return
	}
	if !e.limiter.Check(rule.ID) {
		e.enterRecovery(ctx, rule)
		return
	}
	e.execute(ctx, rule, event)
}

func (e *Engine) execute(ctx context.Context, rule Rule, event TaskEvent) {
	done := e.executor.ExecuteAll(ctx, rule.Actions, event)

	payload := events.RuleExecutedPayload{
		RuleID:   rule.ID,
		RuleName: rule.Name,
		Trigger:  string(event.Type),
		Actions:  done,
	}
	if event.Task != nil {
		payload.TaskID = event.Task.ID
	}
	e.publish(payload)
	slog.Debug("automation: rule executed", "rule_id", rule.ID, "trigger", event.Type, "actions", done)
}

func (e *Engine) recoverRule(rule Rule) {
	if r := recover(); r != nil {
		slog.Error("automation: rule panicked", "rule_id", rule.ID, "rule", rule.Name, "panic", r)
	}
}

// CheckTimeRules runs enabled timeBased rules whose clock value equals the
// current minute and that have not fired within the cooldown.
func (e *Engine) CheckTimeRules(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("automation: time scan panicked", "panic", r)
		}
	}()

	all, err := e.store.Rules(ctx)
	if err != nil {
		slog.Error("automation: read rules", "error", err)
		return
	}
	e.prune(all)

	now := e.now()
	clock := now.Format(ClockLayout)
	for _, rule := range all {
		if !rule.IsEnabled || rule.Trigger.Type != TriggerTimeBased || rule.Trigger.Value != clock {
			continue
		}
		e.fireTimeRule(ctx, rule, now)
	}
}

func (e *Engine) fireTimeRule(ctx context.Context, rule Rule, now time.Time) {
	defer e.recoverRule(rule)

	e.mu.Lock()
	last, fired := e.lastFired[rule.ID]
	e.mu.Unlock()
	if fired && now.Sub(last) < e.cooldown {
		return
	}

	event := TaskEvent{Type: TriggerTimeBased}
	if !e.evaluator.AllConditionsMatch(ctx, rule.Conditions, event) {
		return
	}
	e.execute(ctx, rule, event)

	e.mu.Lock()
	e.lastFired[rule.ID] = now
	e.mu.Unlock()
}

// prune drops per-rule state, pending decisions included, for ids that are
// gone from the store.
func (e *Engine) prune(rules []Rule) {
	keep := make(map[string]struct{}, len(rules))
	for _, r := range rules {
		keep[r.ID] = struct{}{}
	}

	e.mu.Lock()
	for id := range e.lastFired {
		if _, ok := keep[id]; !ok {
			delete(e.lastFired, id)
		}
	}
	for id := range e.pending {
		if _, ok := keep[id]; !ok {
			delete(e.pending, id)
		}
	}
	e.mu.Unlock()

	e.limiter.Retain(keep)
}

func (e *Engine) publish(payload events.EventPayload) {
	if e.bus == nil {
		return
	}
	e.bus.Publish(events.NewTypedEvent(events.SourceEngine, payload))
}

// Rules returns every rule.
func (e *Engine) Rules(ctx context.Context) ([]Rule, error) {
	return e.store.Rules(ctx)
}

// SaveRule validates rule, assigns an id when it has none and adds or
// replaces it in the store. It returns the rule as stored.
func (e *Engine) SaveRule(ctx context.Context, rule Rule) (Rule, error) {
	rule, err := e.prepareRule(rule)
	if err != nil {
		return Rule{}, err
	}
	if err := e.store.AddOrUpdateRule(ctx, rule); err != nil {
		return Rule{}, fmt.Errorf("save rule: %w", err)
	}
	return rule, nil
}

// ImportRules validates every rule first and then stores them in a single
// write. With replace, rules missing from the import are dropped. Nothing is
// stored when any rule is invalid.
func (e *Engine) ImportRules(ctx context.Context, rules []Rule, replace bool) ([]Rule, error) {
	prepared := make([]Rule, 0, len(rules))
	seen := make(map[string]struct{}, len(rules))
	for i, r := range rules {
		p, err := e.prepareRule(r)
		if err != nil {
			var verr *ValidationError
			if errors.As(err, &verr) {
				verr.Index = i
			}
			return nil, err
		}
		if _, dup := seen[p.ID]; dup {
			return nil, &ValidationError{Index: i, Field: "id", Msg: fmt.Sprintf("duplicate id %q", p.ID)}
		}
		seen[p.ID] = struct{}{}
		prepared = append(prepared, p)
	}
	if err := e.store.ImportRules(ctx, prepared, replace); err != nil {
		return nil, fmt.Errorf("import rules: %w", err)
	}
	return cloneRules(prepared), nil
}

// prepareRule assigns a missing id and applies the save-time checks, which
// are stricter than load-time validation for clock values.
func (e *Engine) prepareRule(rule Rule) (Rule, error) {
	rule = rule.Clone()
	if rule.ID == "" {
		rule.ID = GenerateRuleID()
	}
	if err := ValidateRule(rule, e.registry); err != nil {
		return Rule{}, err
	}
	if rule.Trigger.Type == TriggerTimeBased {
		clock, err := ParseClock(rule.Trigger.Value)
		if err != nil {
			return Rule{}, &ValidationError{Field: "trigger.value", Msg: err.Error()}
		}
		if clock.String() != rule.Trigger.Value {
			return Rule{}, &ValidationError{Field: "trigger.value", Msg: fmt.Sprintf("expected HH:MM, got %q", rule.Trigger.Value)}
		}
	}
	return rule, nil
}

// DeleteRule removes a rule.
func (e *Engine) DeleteRule(ctx context.Context, id string) error {
	return e.store.DeleteRule(ctx, id)
}

// ToggleRuleStatus enables or disables a rule.
func (e *Engine) ToggleRuleStatus(ctx context.Context, id string, enabled bool) error {
	return e.store.ToggleRuleStatus(ctx, id, enabled)
}

// Definitions returns the capability catalog.
func (e *Engine) Definitions() Definitions {
	return e.registry.Definitions()
}

// InitializationError reports why the stored rules could not be loaded.
func (e *Engine) InitializationError() error {
	return e.store.InitializationError()
}

// InvalidateCache drops cached projects and tags so the next lookup refetches.
func (e *Engine) InvalidateCache() {
	e.cache.Invalidate()
}
