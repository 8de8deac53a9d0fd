package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dohr-michael/ruleflow/internal/gateway/ws"
	"github.com/dohr-michael/ruleflow/internal/host"
	"github.com/dohr-michael/ruleflow/internal/host/local"
)

var errNoBoard = errors.New("task board not available")

func (s *Server) requireBoard(w http.ResponseWriter) bool {
	if s.board == nil {
		writeError(w, http.StatusServiceUnavailable, errNoBoard)
		return false
	}
	return true
}

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	if !s.requireBoard(w) {
		return
	}
	writeJSON(w, http.StatusOK, s.board.Tasks())
}

func (s *Server) handleAddTask(w http.ResponseWriter, r *http.Request) {
	if !s.requireBoard(w) {
		return
	}
	var draft host.TaskDraft
	if err := json.NewDecoder(r.Body).Decode(&draft); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decode task: %w", err))
		return
	}
	if draft.Title == "" {
		writeError(w, http.StatusBadRequest, errors.New("title is required"))
		return
	}
	id, err := s.board.AddTask(r.Context(), draft)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"id": id})
}

func (s *Server) handleCompleteTask(w http.ResponseWriter, r *http.Request) {
	if !s.requireBoard(w) {
		return
	}
	if err := s.board.CompleteTask(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListDialogs(w http.ResponseWriter, r *http.Request) {
	if s.board == nil {
		writeJSON(w, http.StatusOK, []local.DialogView{})
		return
	}
	writeJSON(w, http.StatusOK, s.board.Dialogs())
}

func (s *Server) handleAnswerDialog(w http.ResponseWriter, r *http.Request) {
	if !s.requireBoard(w) {
		return
	}
	var params ws.DialogAnswerParams
	if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decode answer: %w", err))
		return
	}
	if err := s.board.AnswerDialog(r.Context(), chi.URLParam(r, "id"), params.Button); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
