// Package ws provides a WebSocket client for the ruleflow gateway.
package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"

	"github.com/coder/websocket"

	"github.com/dohr-michael/ruleflow/internal/events"
	wsprotocol "github.com/dohr-michael/ruleflow/internal/gateway/ws"
)

// Client is a WebSocket client for the ruleflow gateway. Requests return the
// id of the sent frame; the matching response arrives through ReadFrame.
type Client struct {
	conn   *websocket.Conn
	reqSeq uint64
	ctx    context.Context
	cancel context.CancelFunc
}

// Dial connects to the gateway WebSocket endpoint.
func Dial(ctx context.Context, url string) (*Client, error) {
	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("ws dial: %w", err)
	}

	clientCtx, cancel := context.WithCancel(ctx)

	return &Client{
		conn:   conn,
		ctx:    clientCtx,
		cancel: cancel,
	}, nil
}

func (c *Client) request(method wsprotocol.Method, params any) (string, error) {
	seq := atomic.AddUint64(&c.reqSeq, 1)

	var raw json.RawMessage
	if params != nil {
		data, err := json.Marshal(params)
		if err != nil {
			return "", fmt.Errorf("encode %s params: %w", method, err)
		}
		raw = data
	}

	frame := wsprotocol.Frame{
		Type:   wsprotocol.FrameTypeRequest,
		ID:     fmt.Sprintf("req-%d", seq),
		Method: string(method),
		Params: raw,
	}

	data, err := wsprotocol.MarshalFrame(frame)
	if err != nil {
		return "", err
	}
	return frame.ID, c.conn.Write(c.ctx, websocket.MessageText, data)
}

// AnswerDialog presses a button on an open dialog.
func (c *Client) AnswerDialog(dialogID, button string) (string, error) {
	return c.request(wsprotocol.MethodDialogAnswer, wsprotocol.DialogAnswerParams{DialogID: dialogID, Button: button})
}

// EmitEvent reports a task lifecycle change to the engine.
func (c *Client) EmitEvent(params wsprotocol.TaskEventParams) (string, error) {
	return c.request(wsprotocol.MethodEmitEvent, params)
}

// ListDialogs asks for the dialogs still waiting for an answer.
func (c *Client) ListDialogs() (string, error) {
	return c.request(wsprotocol.MethodListDialogs, nil)
}

// ReadFrame reads the next frame from the connection.
func (c *Client) ReadFrame() (wsprotocol.Frame, error) {
	_, data, err := c.conn.Read(c.ctx)
	if err != nil {
		return wsprotocol.Frame{}, err
	}
	return wsprotocol.UnmarshalFrame(data)
}

// Await reads frames until the response to request id arrives. Event frames
// read meanwhile are passed to onEvent when it is non-nil.
func (c *Client) Await(id string, onEvent func(events.Event)) (wsprotocol.Frame, error) {
	for {
		f, err := c.ReadFrame()
		if err != nil {
			return wsprotocol.Frame{}, err
		}
		switch {
		case f.Type == wsprotocol.FrameTypeResponse && f.ID == id:
			if f.OK == nil || !*f.OK {
				return f, fmt.Errorf("gateway: %s", f.Error)
			}
			return f, nil
		case f.Type == wsprotocol.FrameTypeEvent && onEvent != nil:
			if e, err := DecodeEvent(f); err == nil {
				onEvent(e)
			}
		}
	}
}

// DecodeEvent extracts the bus event carried by an event frame.
func DecodeEvent(f wsprotocol.Frame) (events.Event, error) {
	var e events.Event
	if f.Type != wsprotocol.FrameTypeEvent {
		return e, fmt.Errorf("not an event frame: %s", f.Type)
	}
	if err := json.Unmarshal(f.Payload, &e); err != nil {
		return e, fmt.Errorf("decode event: %w", err)
	}
	return e, nil
}

// Close gracefully closes the connection.
func (c *Client) Close() error {
	c.cancel()
	return c.conn.Close(websocket.StatusNormalClosure, "bye")
}
