// Package local is an in-process task board implementing host.Host, used
// when ruleflow runs without an external task application.
package local

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dohr-michael/ruleflow/internal/events"
	"github.com/dohr-michael/ruleflow/internal/host"
)

var (
	ErrTaskNotFound   = errors.New("task not found")
	ErrDialogNotFound = errors.New("dialog not found")
	ErrButtonNotFound = errors.New("dialog button not found")
)

type openDialog struct {
	dialog host.Dialog
	opened time.Time
}

// Board keeps tasks, projects and tags in memory. Task changes, snacks and
// dialogs are published on the bus; synced data is delegated to data.
type Board struct {
	data host.SyncedData
	bus  *events.Bus

	mu       sync.RWMutex
	tasks    map[string]*host.Task
	order    []string
	projects []host.Project
	tags     []host.Tag
	dialogs  map[string]openDialog
}

var _ host.Host = (*Board)(nil)

// New creates an empty board.
func New(data host.SyncedData, bus *events.Bus) *Board {
	return &Board{
		data:    data,
		bus:     bus,
		tasks:   make(map[string]*host.Task),
		dialogs: make(map[string]openDialog),
	}
}

func newID() string {
	return uuid.New().String()[:8]
}

// AddProject creates a project and returns it.
func (b *Board) AddProject(title string) host.Project {
	b.mu.Lock()
	defer b.mu.Unlock()
	p := host.Project{ID: "p_" + newID(), Title: title}
	b.projects = append(b.projects, p)
	return p
}

// AddTag creates a tag and returns it. An existing tag with the same title
// is returned as is.
func (b *Board) AddTag(title string) host.Tag {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, t := range b.tags {
		if t.Title == title {
			return t
		}
	}
	t := host.Tag{ID: "t_" + newID(), Title: title}
	b.tags = append(b.tags, t)
	return t
}

// Seed creates projects and tags by title.
func (b *Board) Seed(projects, tags []string) {
	for _, p := range projects {
		b.AddProject(p)
	}
	for _, t := range tags {
		b.AddTag(t)
	}
}

func (b *Board) LoadSyncedData(ctx context.Context) (string, bool, error) {
	return b.data.LoadSyncedData(ctx)
}

func (b *Board) PersistDataSynced(ctx context.Context, data string) error {
	return b.data.PersistDataSynced(ctx, data)
}

func (b *Board) AddTask(_ context.Context, draft host.TaskDraft) (string, error) {
	if draft.Title == "" {
		return "", errors.New("add task: title is required")
	}

	b.mu.Lock()
	task := &host.Task{ID: "task_" + newID(), Title: draft.Title, ProjectID: draft.ProjectID, TagIDs: []string{}}
	b.tasks[task.ID] = task
	b.order = append(b.order, task.ID)
	snapshot := task.Clone()
	b.mu.Unlock()

	slog.Debug("board: task added", "task_id", snapshot.ID, "title", snapshot.Title)
	b.publish(events.NewTaskPayload(events.EventTaskCreated, snapshot, nil))
	return snapshot.ID, nil
}

// UpdateTask applies patch. It publishes task.updated, and task.completed
// as well when the task becomes done.
func (b *Board) UpdateTask(_ context.Context, id string, patch host.TaskPatch) error {
	b.mu.Lock()
	task, ok := b.tasks[id]
	if !ok {
		b.mu.Unlock()
		return fmt.Errorf("update task %s: %w", id, ErrTaskNotFound)
	}
	prev := task.Clone()
	if patch.Title != nil {
		task.Title = *patch.Title
	}
	if patch.TagIDs != nil {
		task.TagIDs = slices.Clone(patch.TagIDs)
	}
	if patch.IsDone != nil {
		task.IsDone = *patch.IsDone
	}
	next := task.Clone()
	b.mu.Unlock()

	b.publish(events.NewTaskPayload(events.EventTaskUpdated, next, prev))
	if next.IsDone && !prev.IsDone {
		b.publish(events.NewTaskPayload(events.EventTaskCompleted, next, prev))
	}
	return nil
}

// CompleteTask marks a task as done.
func (b *Board) CompleteTask(ctx context.Context, id string) error {
	done := true
	return b.UpdateTask(ctx, id, host.TaskPatch{IsDone: &done})
}

// Task returns a copy of one task.
func (b *Board) Task(id string) (host.Task, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	t, ok := b.tasks[id]
	if !ok {
		return host.Task{}, false
	}
	return *t.Clone(), true
}

// Tasks returns copies of all tasks in creation order.
func (b *Board) Tasks() []host.Task {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]host.Task, 0, len(b.order))
	for _, id := range b.order {
		out = append(out, *b.tasks[id].Clone())
	}
	return out
}

func (b *Board) Projects(context.Context) ([]host.Project, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return slices.Clone(b.projects), nil
}

func (b *Board) Tags(context.Context) ([]host.Tag, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return slices.Clone(b.tags), nil
}

func (b *Board) Snack(_ context.Context, s host.Snack) error {
	if s.Type == "" {
		s.Type = host.SnackInfo
	}
	slog.Info("board: snack", "type", s.Type, "message", s.Message)
	b.publish(events.SnackPayload{Message: s.Message, Type: s.Type})
	return nil
}

// OpenDialog records the dialog until AnswerDialog is called for it.
func (b *Board) OpenDialog(_ context.Context, d host.Dialog) error {
	id := "dlg_" + newID()
	b.mu.Lock()
	b.dialogs[id] = openDialog{dialog: d, opened: time.Now()}
	b.mu.Unlock()

	labels := make([]string, 0, len(d.Buttons))
	for _, btn := range d.Buttons {
		labels = append(labels, btn.Label)
	}
	slog.Info("board: dialog opened", "dialog_id", id, "title", d.Title)
	b.publish(events.DialogOpenedPayload{DialogID: id, Title: d.Title, Content: d.Content, Buttons: labels})
	return nil
}

// DialogView is an open dialog as shown to clients.
type DialogView struct {
	ID      string   `json:"id"`
	Title   string   `json:"title"`
	Content string   `json:"content"`
	Buttons []string `json:"buttons"`
}

// Dialogs lists the dialogs waiting for an answer, oldest first.
func (b *Board) Dialogs() []DialogView {
	b.mu.RLock()
	defer b.mu.RUnlock()

	type entry struct {
		view   DialogView
		opened time.Time
	}
	list := make([]entry, 0, len(b.dialogs))
	for id, od := range b.dialogs {
		v := DialogView{ID: id, Title: od.dialog.Title, Content: od.dialog.Content, Buttons: []string{}}
		for _, btn := range od.dialog.Buttons {
			v.Buttons = append(v.Buttons, btn.Label)
		}
		list = append(list, entry{view: v, opened: od.opened})
	}
	slices.SortFunc(list, func(x, y entry) int {
		if c := x.opened.Compare(y.opened); c != 0 {
			return c
		}
		return strings.Compare(x.view.ID, y.view.ID)
	})

	out := make([]DialogView, len(list))
	for i, e := range list {
		out[i] = e.view
	}
	return out
}

// AnswerDialog closes a dialog by pressing the button with the given label
// and runs its callback.
func (b *Board) AnswerDialog(ctx context.Context, id, button string) error {
	b.mu.Lock()
	od, ok := b.dialogs[id]
	if !ok {
		b.mu.Unlock()
		return fmt.Errorf("answer %s: %w", id, ErrDialogNotFound)
	}
	idx := slices.IndexFunc(od.dialog.Buttons, func(btn host.DialogButton) bool { return btn.Label == button })
	if idx < 0 {
		b.mu.Unlock()
		return fmt.Errorf("answer %s with %q: %w", id, button, ErrButtonNotFound)
	}
	delete(b.dialogs, id)
	b.mu.Unlock()

	var err error
	if onClick := od.dialog.Buttons[idx].OnClick; onClick != nil {
		err = onClick(ctx)
	}

	payload := events.DialogAnsweredPayload{DialogID: id, Button: button, Elapsed: time.Since(od.opened)}
	if err != nil {
		payload.Error = err.Error()
		slog.Warn("board: dialog callback failed", "dialog_id", id, "button", button, "error", err)
	}
	b.publish(payload)
	return err
}

func (b *Board) publish(p events.EventPayload) {
	if b.bus == nil {
		return
	}
	b.bus.Publish(events.NewTypedEvent(events.SourceHost, p))
}
