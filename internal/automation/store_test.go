package automation

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleRule(id string, enabled bool) Rule {
	return Rule{
		ID:         id,
		Name:       "rule " + id,
		IsEnabled:  enabled,
		Trigger:    Trigger{Type: TriggerTaskCompleted},
		Conditions: []Condition{{Type: "titleContains", Value: "milk"}},
		Actions:    []Action{{Type: "addTag", Value: "Urgent"}},
	}
}

func encodeRules(t *testing.T, rules ...Rule) string {
	t.Helper()
	if rules == nil {
		rules = []Rule{}
	}
	data, err := json.Marshal(rules)
	require.NoError(t, err)
	return string(data)
}

func TestRuleStore_LoadsPersistedRules(t *testing.T) {
	data := &memData{found: true}
	data.blob = encodeRules(t, sampleRule("a", true), sampleRule("b", false))

	s := newTestStore(t, data)
	require.NoError(t, s.InitializationError())

	rules, err := s.Rules(context.Background())
	require.NoError(t, err)
	require.Len(t, rules, 2)
	assert.Equal(t, sampleRule("a", true), rules[0])
	assert.Equal(t, sampleRule("b", false), rules[1])
	assert.Empty(t, data.Writes(), "a valid load must not rewrite the blob")
}

func TestRuleStore_ResetsOnInvalidData(t *testing.T) {
	cases := map[string]*memData{
		"not json":       {blob: "not json", found: true},
		"absent":         {},
		"load error":     {loadErr: errBoom},
		"not an array":   {blob: `{"id":"a"}`, found: true},
		"unknown action": {blob: `[{"id":"a","name":"n","isEnabled":true,"trigger":{"type":"taskCreated"},"conditions":[],"actions":[{"type":"explode","value":""}]}]`, found: true},
	}
	for name, data := range cases {
		t.Run(name, func(t *testing.T) {
			s := newTestStore(t, data)
			assert.Error(t, s.InitializationError())

			rules, err := s.Rules(context.Background())
			require.NoError(t, err)
			assert.Empty(t, rules)
			assert.Equal(t, []string{"[]"}, data.Writes())
		})
	}
}

func TestRuleStore_InvalidRuleRejectsWholeCollection(t *testing.T) {
	bad := `[
		{"id":"good","name":"n","isEnabled":true,"trigger":{"type":"taskCreated"},"conditions":[],"actions":[]},
		{"id":"bad","name":"n","isEnabled":"yes","trigger":{"type":"taskCreated"},"conditions":[],"actions":[]}
	]`
	data := &memData{blob: bad, found: true}

	s := newTestStore(t, data)
	var verr *ValidationError
	require.ErrorAs(t, s.InitializationError(), &verr)
	assert.Equal(t, 1, verr.Index)
	assert.Equal(t, "isEnabled", verr.Field)

	rules, err := s.Rules(context.Background())
	require.NoError(t, err)
	assert.Empty(t, rules)
}

func TestRuleStore_EnabledRulesKeepsOrder(t *testing.T) {
	data := &memData{found: true}
	data.blob = encodeRules(t,
		sampleRule("a", true), sampleRule("b", false), sampleRule("c", true), sampleRule("d", false))
	s := newTestStore(t, data)

	enabled, err := s.EnabledRules(context.Background())
	require.NoError(t, err)
	ids := make([]string, 0, len(enabled))
	for _, r := range enabled {
		assert.True(t, r.IsEnabled)
		ids = append(ids, r.ID)
	}
	assert.Equal(t, []string{"a", "c"}, ids)
}

func TestRuleStore_AddOrUpdate(t *testing.T) {
	ctx := context.Background()
	data := &memData{blob: "[]", found: true}
	s := newTestStore(t, data)

	r := sampleRule("a", true)
	require.NoError(t, s.AddOrUpdateRule(ctx, r))
	rules, err := s.Rules(ctx)
	require.NoError(t, err)
	assert.Equal(t, []Rule{r}, rules)

	r.Name = "renamed"
	require.NoError(t, s.AddOrUpdateRule(ctx, r))
	require.NoError(t, s.AddOrUpdateRule(ctx, sampleRule("b", true)))
	rules, err = s.Rules(ctx)
	require.NoError(t, err)
	require.Len(t, rules, 2)
	assert.Equal(t, "renamed", rules[0].Name)
	assert.Equal(t, "b", rules[1].ID)

	// the last write is what is persisted
	writes := data.Writes()
	require.Len(t, writes, 3)
	persisted, err := ParseRules(writes[2], builtinRegistry())
	require.NoError(t, err)
	assert.Equal(t, rules, persisted)
}

func TestRuleStore_Delete(t *testing.T) {
	ctx := context.Background()
	data := &memData{found: true}
	data.blob = encodeRules(t, sampleRule("a", true), sampleRule("b", true))
	s := newTestStore(t, data)

	require.NoError(t, s.DeleteRule(ctx, "a"))
	rules, err := s.Rules(ctx)
	require.NoError(t, err)
	require.Len(t, rules, 1)
	assert.Equal(t, "b", rules[0].ID)

	require.NoError(t, s.DeleteRule(ctx, "missing"))
	rules, err = s.Rules(ctx)
	require.NoError(t, err)
	assert.Len(t, rules, 1)
	assert.Len(t, data.Writes(), 2)
}

func TestRuleStore_Toggle(t *testing.T) {
	ctx := context.Background()
	data := &memData{found: true}
	data.blob = encodeRules(t, sampleRule("a", true))
	s := newTestStore(t, data)

	require.NoError(t, s.ToggleRuleStatus(ctx, "a", false))
	enabled, err := s.EnabledRules(ctx)
	require.NoError(t, err)
	assert.Empty(t, enabled)

	err = s.ToggleRuleStatus(ctx, "missing", true)
	assert.ErrorIs(t, err, ErrRuleNotFound)
	assert.Len(t, data.Writes(), 1)
}

func TestRuleStore_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	data := &memData{found: true}
	data.blob = encodeRules(t, sampleRule("a", true))
	s := newTestStore(t, data)

	rules, err := s.Rules(ctx)
	require.NoError(t, err)
	rules[0].Name = "mutated"
	rules[0].Actions[0].Value = "mutated"

	again, err := s.Rules(ctx)
	require.NoError(t, err)
	assert.Equal(t, sampleRule("a", true), again[0])
}

func TestRuleStore_PersistFailureKeepsMemoryState(t *testing.T) {
	ctx := context.Background()
	data := &memData{blob: "[]", found: true, persistFn: func(string) error { return errBoom }}
	s := newTestStore(t, data)

	require.NoError(t, s.AddOrUpdateRule(ctx, sampleRule("a", true)))
	require.NoError(t, s.AddOrUpdateRule(ctx, sampleRule("b", true)))

	rules, err := s.Rules(ctx)
	require.NoError(t, err)
	assert.Len(t, rules, 2)
}

func TestRuleStore_ConcurrentMutationsAreSerialized(t *testing.T) {
	ctx := context.Background()
	var (
		mu       sync.Mutex
		inflight int
		overlap  bool
	)
	data := &memData{blob: "[]", found: true}
	data.persistFn = func(string) error {
		mu.Lock()
		inflight++
		if inflight > 1 {
			overlap = true
		}
		mu.Unlock()
		time.Sleep(time.Millisecond)
		mu.Lock()
		inflight--
		mu.Unlock()
		return nil
	}
	s := newTestStore(t, data)

	const n = 50
	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, s.AddOrUpdateRule(ctx, sampleRule(fmt.Sprintf("r%02d", i), true)))
		}()
	}
	wg.Wait()

	rules, err := s.Rules(ctx)
	require.NoError(t, err)
	assert.Len(t, rules, n, "no update may be lost")
	assert.Len(t, data.Writes(), n)
	assert.False(t, overlap)

	last, err := ParseRules(data.Writes()[n-1], builtinRegistry())
	require.NoError(t, err)
	assert.Equal(t, rules, last)
}

func TestRuleStore_Closed(t *testing.T) {
	s := NewRuleStore(&memData{blob: "[]", found: true}, builtinRegistry())
	s.Close()
	s.Close()
	assert.ErrorIs(t, s.AddOrUpdateRule(context.Background(), sampleRule("a", true)), ErrStoreClosed)
}
