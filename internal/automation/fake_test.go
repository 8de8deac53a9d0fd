package automation

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/dohr-michael/ruleflow/internal/host"
)

// memData is an in-memory host.SyncedData.
type memData struct {
	mu        sync.Mutex
	blob      string
	found     bool
	loadErr   error
	persistFn func(string) error
	writes    []string
}

func (m *memData) LoadSyncedData(context.Context) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.blob, m.found, m.loadErr
}

func (m *memData) PersistDataSynced(_ context.Context, data string) error {
	m.mu.Lock()
	fn := m.persistFn
	m.mu.Unlock()
	if fn != nil {
		if err := fn(data); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blob, m.found = data, true
	m.writes = append(m.writes, data)
	return nil
}

func (m *memData) Writes() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.writes)
}

type taskUpdate struct {
	ID    string
	Patch host.TaskPatch
}

// fakeHost records every host call.
type fakeHost struct {
	memData

	mu        sync.Mutex
	projects  []host.Project
	tags      []host.Tag
	tagCalls  int
	tagsErr   error
	dialogErr error

	added   []host.TaskDraft
	updates []taskUpdate
	snacks  []host.Snack
	dialogs []host.Dialog
}

func newFakeHost() *fakeHost {
	return &fakeHost{memData: memData{blob: "[]", found: true}}
}

func (h *fakeHost) AddTask(_ context.Context, d host.TaskDraft) (string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.added = append(h.added, d)
	return fmt.Sprintf("task-%d", len(h.added)), nil
}

func (h *fakeHost) UpdateTask(_ context.Context, id string, p host.TaskPatch) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.updates = append(h.updates, taskUpdate{ID: id, Patch: p})
	return nil
}

func (h *fakeHost) Projects(context.Context) ([]host.Project, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return slices.Clone(h.projects), nil
}

func (h *fakeHost) Tags(context.Context) ([]host.Tag, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.tagCalls++
	if h.tagsErr != nil {
		return nil, h.tagsErr
	}
	return slices.Clone(h.tags), nil
}

func (h *fakeHost) Snack(_ context.Context, s host.Snack) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.snacks = append(h.snacks, s)
	return nil
}

func (h *fakeHost) OpenDialog(_ context.Context, d host.Dialog) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.dialogErr != nil {
		return h.dialogErr
	}
	h.dialogs = append(h.dialogs, d)
	return nil
}

func (h *fakeHost) Updates() []taskUpdate {
	h.mu.Lock()
	defer h.mu.Unlock()
	return slices.Clone(h.updates)
}

func (h *fakeHost) Added() []host.TaskDraft {
	h.mu.Lock()
	defer h.mu.Unlock()
	return slices.Clone(h.added)
}

func (h *fakeHost) Dialogs() []host.Dialog {
	h.mu.Lock()
	defer h.mu.Unlock()
	return slices.Clone(h.dialogs)
}

func (h *fakeHost) Snacks() []host.Snack {
	h.mu.Lock()
	defer h.mu.Unlock()
	return slices.Clone(h.snacks)
}

// fakeClock is a settable time source.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(t time.Time) *fakeClock { return &fakeClock{now: t} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

func builtinRegistry() *Registry {
	reg := NewRegistry()
	RegisterBuiltins(reg, BuiltinOptions{})
	return reg
}

func newTestStore(t *testing.T, data host.SyncedData) *RuleStore {
	t.Helper()
	s := NewRuleStore(data, builtinRegistry())
	t.Cleanup(s.Close)
	return s
}

var errBoom = errors.New("boom")
