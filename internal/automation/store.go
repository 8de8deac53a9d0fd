package automation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/dohr-michael/ruleflow/internal/host"
)

var (
	ErrRuleNotFound = errors.New("rule not found")
	ErrStoreClosed  = errors.New("rule store is closed")
)

// storeOp is a mutation queued on the store's writer goroutine.
type storeOp struct {
	apply  func(rules []Rule) ([]Rule, error)
	result chan error
}

// RuleStore holds the rule set in memory and persists it as a single blob.
//
// The initial load and every mutation run on one writer goroutine, so
// mutations are applied and persisted one at a time in the order they were
// queued. Reads wait for the initial load but never for pending writes.
type RuleStore struct {
	data     host.SyncedData
	registry *Registry

	mu      sync.RWMutex
	rules   []Rule
	initErr error

	ready chan struct{}
	queue chan storeOp
	stop  chan struct{}
	done  chan struct{}
	once  sync.Once
}

// NewRuleStore creates a store and starts loading rules from data in the
// background. Unknown trigger, condition and action types are judged
// against registry.
func NewRuleStore(data host.SyncedData, registry *Registry) *RuleStore {
	s := &RuleStore{
		data:     data,
		registry: registry,
		rules:    []Rule{},
		ready:    make(chan struct{}),
		queue:    make(chan storeOp),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	go s.run()
	return s
}

func (s *RuleStore) run() {
	defer close(s.done)

	s.load(context.Background())
	close(s.ready)

	for {
		select {
		case op := <-s.queue:
			op.result <- s.apply(op)
		case <-s.stop:
			return
		}
	}
}

// load reads the persisted blob. Anything unusable resets the store to an
// empty rule set, which is persisted right away.
func (s *RuleStore) load(ctx context.Context) {
	blob, found, err := s.data.LoadSyncedData(ctx)
	switch {
	case err != nil:
		err = fmt.Errorf("load rules: %w", err)
	case !found:
		err = errors.New("load rules: no persisted rules")
	}

	var rules []Rule
	if err == nil {
		rules, err = ParseRules(blob, s.registry)
	}

	if err == nil {
		s.mu.Lock()
		s.rules = rules
		s.mu.Unlock()
		slog.Info("automation: rules loaded", "count", len(rules))
		return
	}

	s.mu.Lock()
	s.rules = []Rule{}
	s.initErr = err
	s.mu.Unlock()

	if found {
		slog.Warn("automation: persisted rules rejected, starting empty", "error", err)
	} else {
		slog.Info("automation: no rules persisted yet", "reason", err)
	}
	s.persist(ctx, []Rule{})
}

// apply runs one queued mutation and persists the result. Persist failures
// are logged; the in-memory state stays authoritative.
func (s *RuleStore) apply(op storeOp) error {
	s.mu.Lock()
	next, err := op.apply(cloneRules(s.rules))
	if err != nil {
		s.mu.Unlock()
		return err
	}
	s.rules = next
	snapshot := cloneRules(next)
	s.mu.Unlock()

	s.persist(context.Background(), snapshot)
	return nil
}

func (s *RuleStore) persist(ctx context.Context, rules []Rule) {
	data, err := json.Marshal(rules)
	if err != nil {
		slog.Error("automation: encode rules", "error", err)
		return
	}
	if err := s.data.PersistDataSynced(ctx, string(data)); err != nil {
		slog.Error("automation: persist rules", "count", len(rules), "error", err)
	}
}

func (s *RuleStore) waitReady(ctx context.Context) error {
	select {
	case <-s.ready:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// mutate queues fn on the writer and waits until it has been applied and
// the persist attempt has finished.
func (s *RuleStore) mutate(ctx context.Context, fn func([]Rule) ([]Rule, error)) error {
	if err := s.waitReady(ctx); err != nil {
		return err
	}

	op := storeOp{apply: fn, result: make(chan error, 1)}
	select {
	case s.queue <- op:
	case <-s.done:
		return ErrStoreClosed
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-op.result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// InitializationError returns why the initial load fell back to an empty
// rule set, or nil. It waits for the initial load.
func (s *RuleStore) InitializationError() error {
	<-s.ready
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.initErr
}

// Rules returns a copy of every rule in store order.
func (s *RuleStore) Rules(ctx context.Context) ([]Rule, error) {
	if err := s.waitReady(ctx); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneRules(s.rules), nil
}

// EnabledRules returns a copy of the enabled rules in store order.
func (s *RuleStore) EnabledRules(ctx context.Context) ([]Rule, error) {
	if err := s.waitReady(ctx); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Rule
	for _, r := range s.rules {
		if r.IsEnabled {
			out = append(out, r.Clone())
		}
	}
	return out, nil
}

// AddOrUpdateRule replaces the rule with the same id in place, or appends it.
func (s *RuleStore) AddOrUpdateRule(ctx context.Context, rule Rule) error {
	rule = rule.Clone()
	return s.mutate(ctx, func(rules []Rule) ([]Rule, error) {
		for i := range rules {
			if rules[i].ID == rule.ID {
				rules[i] = rule
				return rules, nil
			}
		}
		return append(rules, rule), nil
	})
}

// ImportRules adds or replaces each rule by id in one write. With replace,
// stored rules absent from rules are removed and the import order wins.
func (s *RuleStore) ImportRules(ctx context.Context, rules []Rule, replace bool) error {
	incoming := cloneRules(rules)
	return s.mutate(ctx, func(current []Rule) ([]Rule, error) {
		if replace {
			return incoming, nil
		}
		index := make(map[string]int, len(current))
		for i, r := range current {
			index[r.ID] = i
		}
		for _, r := range incoming {
			if i, ok := index[r.ID]; ok {
				current[i] = r
				continue
			}
			index[r.ID] = len(current)
			current = append(current, r)
		}
		return current, nil
	})
}

// DeleteRule removes the rule with the given id. Deleting an unknown id is
// a no-op that still completes.
func (s *RuleStore) DeleteRule(ctx context.Context, id string) error {
	return s.mutate(ctx, func(rules []Rule) ([]Rule, error) {
		out := rules[:0]
		for _, r := range rules {
			if r.ID != id {
				out = append(out, r)
			}
		}
		return out, nil
	})
}

// ToggleRuleStatus enables or disables a rule. It returns ErrRuleNotFound
// without persisting anything when id is unknown.
func (s *RuleStore) ToggleRuleStatus(ctx context.Context, id string, enabled bool) error {
	return s.mutate(ctx, func(rules []Rule) ([]Rule, error) {
		for i := range rules {
			if rules[i].ID == id {
				rules[i].IsEnabled = enabled
				return rules, nil
			}
		}
		return nil, fmt.Errorf("toggle %s: %w", id, ErrRuleNotFound)
	})
}

// Close stops the writer goroutine once the current mutation, if any, has
// finished. Later mutations fail with ErrStoreClosed.
func (s *RuleStore) Close() {
	s.once.Do(func() {
		close(s.stop)
	})
	<-s.done
}
