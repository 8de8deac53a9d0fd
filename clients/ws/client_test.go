package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dohr-michael/ruleflow/internal/events"
	wsprotocol "github.com/dohr-michael/ruleflow/internal/gateway/ws"
	"github.com/dohr-michael/ruleflow/internal/host"
	"github.com/dohr-michael/ruleflow/internal/host/local"
)

type fakeDialogs struct {
	answered chan string
}

func (f *fakeDialogs) Dialogs() []local.DialogView {
	return []local.DialogView{{ID: "dlg_1", Title: "Automation paused", Buttons: []string{"Disable Rule", "Continue"}}}
}

func (f *fakeDialogs) AnswerDialog(_ context.Context, id, button string) error {
	if id != "dlg_1" {
		return errors.New("dialog not found")
	}
	f.answered <- button
	return nil
}

func dialHub(t *testing.T) (*Client, *events.Bus, *fakeDialogs) {
	t.Helper()
	bus := events.NewBus(64)
	t.Cleanup(bus.Close)

	dialogs := &fakeDialogs{answered: make(chan string, 1)}
	hub := wsprotocol.NewHub(bus, dialogs)
	t.Cleanup(hub.Close)

	srv := httptest.NewServer(http.HandlerFunc(hub.ServeWS))
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)

	c, err := Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http"))
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c, bus, dialogs
}

func TestClient_ListDialogs(t *testing.T) {
	c, _, _ := dialHub(t)

	id, err := c.ListDialogs()
	require.NoError(t, err)

	f, err := c.Await(id, nil)
	require.NoError(t, err)

	var views []local.DialogView
	require.NoError(t, json.Unmarshal(f.Payload, &views))
	require.Len(t, views, 1)
	assert.Equal(t, "dlg_1", views[0].ID)
}

func TestClient_AnswerDialog(t *testing.T) {
	c, _, dialogs := dialHub(t)

	id, err := c.AnswerDialog("dlg_1", "Continue")
	require.NoError(t, err)
	_, err = c.Await(id, nil)
	require.NoError(t, err)
	assert.Equal(t, "Continue", <-dialogs.answered)

	id, err = c.AnswerDialog("dlg_missing", "Continue")
	require.NoError(t, err)
	_, err = c.Await(id, nil)
	assert.ErrorContains(t, err, "dialog not found")
}

func TestClient_EmitEventIsBroadcast(t *testing.T) {
	c, _, _ := dialHub(t)

	id, err := c.EmitEvent(wsprotocol.TaskEventParams{
		Type: events.EventTaskCreated,
		Task: &host.Task{ID: "task_1", Title: "Buy milk", TagIDs: []string{}},
	})
	require.NoError(t, err)

	var got []events.Event
	_, err = c.Await(id, func(e events.Event) { got = append(got, e) })
	require.NoError(t, err)

	for len(got) == 0 {
		f, err := c.ReadFrame()
		require.NoError(t, err)
		if e, err := DecodeEvent(f); err == nil {
			got = append(got, e)
		}
	}

	assert.Equal(t, events.EventTaskCreated, got[0].Type)
	p, ok := events.GetTaskPayload(got[0])
	require.True(t, ok)
	assert.Equal(t, "Buy milk", p.Task.Title)
}

func TestClient_EmitEventRejectsUnknownType(t *testing.T) {
	c, _, _ := dialHub(t)

	id, err := c.EmitEvent(wsprotocol.TaskEventParams{Type: "task.deleted"})
	require.NoError(t, err)
	_, err = c.Await(id, nil)
	assert.ErrorContains(t, err, "unsupported event type")
}

func TestDecodeEvent_RejectsResponses(t *testing.T) {
	_, err := DecodeEvent(wsprotocol.Frame{Type: wsprotocol.FrameTypeResponse})
	assert.Error(t, err)
}
