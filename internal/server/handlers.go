package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/mwhitley/crucible/internal/storage"
	"github.com/mwhitley/crucible/internal/validate"
)

// --- JSON helpers ---

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func decodeJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

// --- Execution handlers ---

type createExecutionRequest struct {
	Code string `json:"code"`
}

type createExecutionResponse struct {
	Message   string `json:"message"`
	ID        string `json:"id"`
	SessionID string `json:"session_id"`
}

func (s *Server) handleCreateExecution(w http.ResponseWriter, r *http.Request) {
	var req createExecutionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}

	if strings.TrimSpace(req.Code) == "" {
		writeError(w, http.StatusBadRequest, "code is required")
		return
	}

	// Rejected code never produces a record.
	if err := validate.Check(req.Code, s.policy); err != nil {
		var verr *validate.Error
		if errors.As(err, &verr) {
			writeError(w, http.StatusBadRequest, verr.Message)
		} else {
			writeError(w, http.StatusBadRequest, err.Error())
		}
		return
	}

	e := &storage.Execution{
		ID:        uuid.New().String(),
		Code:      req.Code,
		Status:    storage.StatusPending,
		SessionID: uuid.New().String(),
	}

	if err := s.store.CreateExecution(r.Context(), e); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if err := s.dispatcher.Enqueue(e.ID); err != nil {
		// Don't leave an orphan that will never run.
		s.store.DeleteExecution(r.Context(), e.ID)
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}

	writeJSON(w, http.StatusAccepted, createExecutionResponse{
		Message:   "Code execution started",
		ID:        e.ID,
		SessionID: e.SessionID,
	})
}

func (s *Server) handleGetExecution(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	e, err := s.store.GetExecution(r.Context(), id)
	if err != nil {
		if strings.Contains(err.Error(), "not found") {
			writeError(w, http.StatusNotFound, "execution not found")
		} else {
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	writeJSON(w, http.StatusOK, e)
}

func (s *Server) handleListExecutions(w http.ResponseWriter, r *http.Request) {
	opts := storage.ListOptions{}

	if status := r.URL.Query().Get("status"); status != "" {
		opts.Status = storage.Status(status)
	}
	if limit := r.URL.Query().Get("limit"); limit != "" {
		if n, err := strconv.Atoi(limit); err == nil {
			opts.Limit = n
		}
	}
	if offset := r.URL.Query().Get("offset"); offset != "" {
		if n, err := strconv.Atoi(offset); err == nil {
			opts.Offset = n
		}
	}

	executions, err := s.store.ListExecutions(r.Context(), opts)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if executions == nil {
		executions = []storage.Execution{}
	}
	writeJSON(w, http.StatusOK, executions)
}

func (s *Server) handleDeleteExecution(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := s.store.DeleteExecution(r.Context(), id); err != nil {
		if strings.Contains(err.Error(), "not found") {
			writeError(w, http.StatusNotFound, "execution not found")
		} else {
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
