package automation

import "sync"

// table keeps capabilities by id and remembers first-registration order.
type table[T Capability] struct {
	byID  map[string]T
	order []string
}

func newTable[T Capability]() table[T] {
	return table[T]{byID: make(map[string]T)}
}

func (t *table[T]) register(c T) {
	id := c.ID()
	if _, exists := t.byID[id]; !exists {
		t.order = append(t.order, id)
	}
	t.byID[id] = c
}

func (t *table[T]) get(id string) (T, bool) {
	c, ok := t.byID[id]
	return c, ok
}

func (t *table[T]) all() []T {
	out := make([]T, 0, len(t.order))
	for _, id := range t.order {
		out = append(out, t.byID[id])
	}
	return out
}

// Registry maps string ids carried in rule data to capability
// implementations. Registering an id twice replaces the earlier
// implementation but keeps its position in the listing order.
type Registry struct {
	mu         sync.RWMutex
	triggers   table[TriggerCapability]
	conditions table[ConditionCapability]
	actions    table[ActionCapability]
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		triggers:   newTable[TriggerCapability](),
		conditions: newTable[ConditionCapability](),
		actions:    newTable[ActionCapability](),
	}
}

func (r *Registry) RegisterTrigger(t TriggerCapability) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.triggers.register(t)
}

func (r *Registry) RegisterCondition(c ConditionCapability) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conditions.register(c)
}

func (r *Registry) RegisterAction(a ActionCapability) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.actions.register(a)
}

func (r *Registry) Trigger(id string) (TriggerCapability, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.triggers.get(id)
}

func (r *Registry) Condition(id string) (ConditionCapability, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.conditions.get(id)
}

func (r *Registry) Action(id string) (ActionCapability, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.actions.get(id)
}

// Triggers returns all triggers in registration order.
func (r *Registry) Triggers() []TriggerCapability {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.triggers.all()
}

// Conditions returns all conditions in registration order.
func (r *Registry) Conditions() []ConditionCapability {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.conditions.all()
}

// Actions returns all actions in registration order.
func (r *Registry) Actions() []ActionCapability {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.actions.all()
}

// Definition describes one capability for the rule editor.
type Definition struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Definitions is the full capability catalog.
type Definitions struct {
	Triggers   []Definition `json:"triggers"`
	Conditions []Definition `json:"conditions"`
	Actions    []Definition `json:"actions"`
}

func describe[T Capability](caps []T) []Definition {
	out := make([]Definition, 0, len(caps))
	for _, c := range caps {
		out = append(out, Definition{ID: c.ID(), Name: c.Name(), Description: c.Description()})
	}
	return out
}

// Definitions returns the catalog of every registered capability.
func (r *Registry) Definitions() Definitions {
	return Definitions{
		Triggers:   describe(r.Triggers()),
		Conditions: describe(r.Conditions()),
		Actions:    describe(r.Actions()),
	}
}
