// Package host describes the task application the rule engine automates.
//
// The engine never talks to a concrete application. It talks to a Host, which
// may be an in-process board (see host/local) or an adapter over whatever
// transport the real application exposes.
package host

import (
	"context"
	"slices"
)

// Task is the host's view of a task.
type Task struct {
	ID        string   `json:"id"`
	Title     string   `json:"title"`
	ProjectID string   `json:"projectId,omitempty"`
	TagIDs    []string `json:"tagIds"`
	IsDone    bool     `json:"isDone"`
	Notes     string   `json:"notes,omitempty"`
}

// HasTag reports whether the task carries the given tag id.
func (t *Task) HasTag(tagID string) bool {
	return slices.Contains(t.TagIDs, tagID)
}

// Clone returns a deep copy of the task.
func (t *Task) Clone() *Task {
	if t == nil {
		return nil
	}
	c := *t
	c.TagIDs = slices.Clone(t.TagIDs)
	if c.TagIDs == nil {
		c.TagIDs = []string{}
	}
	return &c
}

// Project is a host project.
type Project struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// Tag is a host tag.
type Tag struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// TaskDraft holds the fields for a task to be created.
type TaskDraft struct {
	Title     string `json:"title"`
	ProjectID string `json:"projectId,omitempty"`
}

// TaskPatch holds a partial task update. Nil fields are left unchanged.
type TaskPatch struct {
	Title  *string  `json:"title,omitempty"`
	TagIDs []string `json:"tagIds,omitempty"`
	IsDone *bool    `json:"isDone,omitempty"`
}

// SnackType is the severity of a transient notification.
type SnackType string

const (
	SnackInfo    SnackType = "INFO"
	SnackSuccess SnackType = "SUCCESS"
	SnackError   SnackType = "ERROR"
)

// Snack is a transient notification.
type Snack struct {
	Message string    `json:"message"`
	Type    SnackType `json:"type,omitempty"`
}

// DialogButton is a labelled button on a dialog. OnClick runs when the user
// picks it; it may be nil for buttons that only close the dialog.
type DialogButton struct {
	Label   string                          `json:"label"`
	OnClick func(ctx context.Context) error `json:"-"`
}

// Dialog is a blocking notification with optional buttons.
// Content may contain markup; callers must escape untrusted input.
type Dialog struct {
	Title   string         `json:"title"`
	Content string         `json:"content"`
	Buttons []DialogButton `json:"buttons,omitempty"`
}

// SyncedData reads and writes the single persisted blob the host keeps for
// the automation engine.
type SyncedData interface {
	// LoadSyncedData returns the stored blob, or found=false when nothing was
	// ever persisted.
	LoadSyncedData(ctx context.Context) (data string, found bool, err error)
	PersistDataSynced(ctx context.Context, data string) error
}

// Host is the API surface of the task application consumed by the engine.
type Host interface {
	SyncedData

	AddTask(ctx context.Context, draft TaskDraft) (string, error)
	UpdateTask(ctx context.Context, id string, patch TaskPatch) error
	Projects(ctx context.Context) ([]Project, error)
	Tags(ctx context.Context) ([]Tag, error)

	Snack(ctx context.Context, s Snack) error
	OpenDialog(ctx context.Context, d Dialog) error
}
