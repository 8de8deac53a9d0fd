package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dohr-michael/ruleflow/internal/automation"
	"github.com/dohr-michael/ruleflow/internal/events"
	"github.com/dohr-michael/ruleflow/internal/gateway/ws"
	"github.com/dohr-michael/ruleflow/internal/host"
	"github.com/dohr-michael/ruleflow/internal/host/local"
	"github.com/dohr-michael/ruleflow/internal/storage"
)

// Rules is the engine control surface served by the gateway.
type Rules interface {
	Rules(ctx context.Context) ([]automation.Rule, error)
	SaveRule(ctx context.Context, rule automation.Rule) (automation.Rule, error)
	DeleteRule(ctx context.Context, id string) error
	ToggleRuleStatus(ctx context.Context, id string, enabled bool) error
	Definitions() automation.Definitions
	PendingDecisions() []string
	InitializationError() error
}

// Board is the task board served by the gateway.
type Board interface {
	ws.Dialogs
	Tasks() []host.Task
	AddTask(ctx context.Context, draft host.TaskDraft) (string, error)
	CompleteTask(ctx context.Context, id string) error
}

// Config holds the gateway's dependencies. Board and Stats are optional.
type Config struct {
	Bus   *events.Bus
	Rules Rules
	Board Board
	Stats *storage.StatsTracker
	Host  string
	Port  int
}

// Server is the ruleflow gateway HTTP server.
type Server struct {
	httpServer *http.Server
	hub        *ws.Hub
	bus        *events.Bus
	rules      Rules
	board      Board
	stats      *storage.StatsTracker
	started    time.Time
}

// NewServer creates a new gateway server.
func NewServer(cfg Config) *Server {
	var dialogs ws.Dialogs
	if cfg.Board != nil {
		dialogs = cfg.Board
	}
	hub := ws.NewHub(cfg.Bus, dialogs)

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)

	s := &Server{
		hub:     hub,
		bus:     cfg.Bus,
		rules:   cfg.Rules,
		board:   cfg.Board,
		stats:   cfg.Stats,
		started: time.Now(),
	}

	r.Get("/api/health", s.handleHealth)
	r.Get("/api/status", s.handleStatus)
	r.Get("/api/ws", hub.ServeWS)
	r.Get("/api/events", s.handleEvents)
	r.Post("/api/events", s.handleEmitEvent)
	r.Get("/api/stats", s.handleStats)
	r.Get("/api/definitions", s.handleDefinitions)

	r.Route("/api/rules", func(r chi.Router) {
		r.Get("/", s.handleListRules)
		r.Put("/", s.handleSaveRule)
		r.Delete("/{id}", s.handleDeleteRule)
		r.Post("/{id}/enable", s.handleToggleRule(true))
		r.Post("/{id}/disable", s.handleToggleRule(false))
	})

	r.Route("/api/tasks", func(r chi.Router) {
		r.Get("/", s.handleListTasks)
		r.Post("/", s.handleAddTask)
		r.Post("/{id}/complete", s.handleCompleteTask)
	})

	r.Get("/api/dialogs", s.handleListDialogs)
	r.Post("/api/dialogs/{id}/answer", s.handleAnswerDialog)

	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return s
}

// Handler returns the HTTP handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start begins listening. It blocks until the server is stopped.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return err
	}
	slog.Info("ruleflow gateway listening", "addr", ln.Addr().String())
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.hub.Close()
	return s.httpServer.Shutdown(ctx)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Debug("gateway: write response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	var verr *automation.ValidationError
	switch {
	case errors.As(err, &verr):
		return http.StatusBadRequest
	case errors.Is(err, automation.ErrRuleNotFound),
		errors.Is(err, local.ErrTaskNotFound),
		errors.Is(err, local.ErrDialogNotFound),
		errors.Is(err, local.ErrButtonNotFound):
		return http.StatusNotFound
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	status := map[string]any{
		"uptime":            time.Since(s.started).Round(time.Second).String(),
		"ws_clients":        s.hub.ClientCount(),
		"pending_decisions": s.rules.PendingDecisions(),
	}
	if err := s.rules.InitializationError(); err != nil {
		status["initialization_error"] = err.Error()
	}
	writeJSON(w, http.StatusOK, status)
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, fmt.Errorf("invalid limit %q", v))
			return
		}
		limit = n
	}

	type eventJSON struct {
		ID        string             `json:"id"`
		Type      string             `json:"type"`
		Timestamp string             `json:"timestamp"`
		Source    events.EventSource `json:"source"`
		Payload   map[string]any     `json:"payload"`
	}

	history := s.bus.History(limit)
	result := make([]eventJSON, len(history))
	for i, e := range history {
		result[i] = eventJSON{
			ID:        e.ID,
			Type:      string(e.Type),
			Timestamp: e.Timestamp.Format(time.RFC3339Nano),
			Source:    e.Source,
			Payload:   e.Payload,
		}
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleEmitEvent(w http.ResponseWriter, r *http.Request) {
	var params ws.TaskEventParams
	if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decode event: %w", err))
		return
	}
	e, err := params.Event(events.SourceGateway)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.bus.PublishAsync(r.Context(), e); err != nil {
		writeError(w, http.StatusServiceUnavailable, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"event_id": e.ID})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if s.stats == nil {
		writeJSON(w, http.StatusOK, []storage.RuleStat{})
		return
	}
	writeJSON(w, http.StatusOK, s.stats.Snapshot())
}
