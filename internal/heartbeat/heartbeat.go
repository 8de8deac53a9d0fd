// Package heartbeat lets `ruleflow status` tell whether a server is running
// and what its engine is doing.
package heartbeat

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// FileName is the heartbeat file written under the ruleflow directory.
const FileName = "heartbeat.json"

// DefaultInterval is how often a running server refreshes its heartbeat.
const DefaultInterval = 30 * time.Second

// Status is the liveness of a server as seen from its heartbeat file.
type Status string

const (
	StatusAlive Status = "alive"
	StatusStale Status = "stale"
	StatusDead  Status = "dead"
)

// EngineState is the engine snapshot embedded in each heartbeat.
type EngineState struct {
	Rules            int      `json:"rules"`
	EnabledRules     int      `json:"enabled_rules"`
	PendingDecisions []string `json:"pending_decisions,omitempty"`
	InitError        string   `json:"init_error,omitempty"`
}

// Heartbeat is the data written to the heartbeat file.
type Heartbeat struct {
	PID       int          `json:"pid"`
	Addr      string       `json:"addr,omitempty"`
	StartedAt time.Time    `json:"started_at"`
	Timestamp time.Time    `json:"timestamp"`
	Uptime    string       `json:"uptime"`
	Engine    *EngineState `json:"engine,omitempty"`
}

// Probe reports the current engine state. It is called on every write.
type Probe func(ctx context.Context) EngineState

// Writer periodically writes a heartbeat file to disk.
type Writer struct {
	path     string
	addr     string
	interval time.Duration
	probe    Probe
	started  time.Time

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewWriter creates a heartbeat writer for path. A non-positive interval
// uses DefaultInterval; probe may be nil.
func NewWriter(path, addr string, interval time.Duration, probe Probe) *Writer {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Writer{
		path:     path,
		addr:     addr,
		interval: interval,
		probe:    probe,
	}
}

// Path returns the heartbeat file location inside dir.
func Path(dir string) string {
	return filepath.Join(dir, FileName)
}

// Start begins writing heartbeat files in a background goroutine.
func (w *Writer) Start() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.cancel != nil {
		return // already running
	}

	w.started = time.Now()
	w.done = make(chan struct{})

	ctx, cancel := context.WithCancel(context.Background())
	w.cancel = cancel

	w.write(ctx)

	go func() {
		defer close(w.done)
		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				w.write(ctx)
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop stops writing and removes the heartbeat file.
func (w *Writer) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.cancel == nil {
		return
	}

	w.cancel()
	<-w.done
	w.cancel = nil

	if err := os.Remove(w.path); err != nil && !os.IsNotExist(err) {
		slog.Warn("heartbeat: remove", "path", w.path, "error", err)
	}
}

func (w *Writer) write(ctx context.Context) {
	hb := Heartbeat{
		PID:       os.Getpid(),
		Addr:      w.addr,
		StartedAt: w.started,
		Timestamp: time.Now(),
		Uptime:    time.Since(w.started).Truncate(time.Second).String(),
	}
	if w.probe != nil {
		state := w.probe(ctx)
		hb.Engine = &state
	}

	data, err := json.MarshalIndent(hb, "", "  ")
	if err != nil {
		slog.Warn("heartbeat: encode", "error", err)
		return
	}

	// Atomic write: tmp + rename
	tmp := w.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		slog.Warn("heartbeat: write", "path", tmp, "error", err)
		return
	}
	if err := os.Rename(tmp, w.path); err != nil {
		slog.Warn("heartbeat: rename", "path", w.path, "error", err)
	}
}

// Check reads a heartbeat file and returns the liveness status. A heartbeat
// older than maxAge is stale; a missing file means no server is running.
func Check(path string, maxAge time.Duration) (Status, *Heartbeat, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return StatusDead, nil, nil
		}
		return StatusDead, nil, fmt.Errorf("read heartbeat: %w", err)
	}

	var hb Heartbeat
	if err := json.Unmarshal(data, &hb); err != nil {
		return StatusDead, nil, fmt.Errorf("unmarshal heartbeat: %w", err)
	}

	if time.Since(hb.Timestamp) > maxAge {
		return StatusStale, &hb, nil
	}
	return StatusAlive, &hb, nil
}
