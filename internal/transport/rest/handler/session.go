package handler

import (
	"encoding/json"
	"net/http"

	"quizwrap/internal/model"
	"quizwrap/internal/service"
	"quizwrap/internal/transport/rest/middleware"
)

// SessionHandler handles the quiz-taker endpoints
type SessionHandler struct {
	sessionSvc *service.SessionService
}

// NewSessionHandler creates a new session handler
func NewSessionHandler(sessionSvc *service.SessionService) *SessionHandler {
	return &SessionHandler{sessionSvc: sessionSvc}
}

// Open handles POST /v1/sessions
func (h *SessionHandler) Open(w http.ResponseWriter, r *http.Request) {
	resp, err := h.sessionSvc.Open(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

// Get handles GET /v1/session
func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	state, err := h.sessionSvc.Get(r.Context(), middleware.GetClientID(r.Context()))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

// Register handles POST /v1/session/register
func (h *SessionHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req model.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	state, err := h.sessionSvc.Register(r.Context(), middleware.GetClientID(r.Context()), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

// FocusLoss handles POST /v1/session/focus-loss
func (h *SessionHandler) FocusLoss(w http.ResponseWriter, r *http.Request) {
	req := model.FocusLossRequest{Source: model.FocusManual}
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	res, err := h.sessionSvc.RecordFocusLoss(r.Context(), middleware.GetClientID(r.Context()), req.Source)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// Finish handles POST /v1/session/finish
func (h *SessionHandler) Finish(w http.ResponseWriter, r *http.Request) {
	rec, err := h.sessionSvc.Finish(r.Context(), middleware.GetClientID(r.Context()))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// Reset handles POST /v1/session/reset
func (h *SessionHandler) Reset(w http.ResponseWriter, r *http.Request) {
	state, err := h.sessionSvc.Reset(r.Context(), middleware.GetClientID(r.Context()))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

// Close handles DELETE /v1/session
func (h *SessionHandler) Close(w http.ResponseWriter, r *http.Request) {
	if err := h.sessionSvc.Close(r.Context(), middleware.GetClientID(r.Context())); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
