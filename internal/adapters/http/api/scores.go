package api

import (
	"encoding/json"
	"fmt"
	"net/http"
)

type scoreRequest struct {
	Value *int64 `json:"value"`
}

type sessionRequest struct {
	PlayerID string `json:"player_id"`
}

// ScoresHandler accepts score submissions and session changes.
type ScoresHandler struct {
	deps Dependencies
}

// NewScoresHandler creates a new scores handler.
func NewScoresHandler(deps Dependencies) *ScoresHandler {
	return &ScoresHandler{deps: deps}
}

// HandlePostScore handles POST /v1/scores.
func (h *ScoresHandler) HandlePostScore(w http.ResponseWriter, r *http.Request) {
	var req scoreRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeFailure(w, fmt.Errorf("%w: %w", ErrBadRequest, err))
		return
	}
	if req.Value == nil {
		writeFailure(w, fmt.Errorf("%w: missing value", ErrBadRequest))
		return
	}
	queued, err := h.deps.SubmitCurrentScore(r.Context(), *req.Value)
	if err != nil {
		writeFailure(w, err)
		return
	}
	if queued == 0 {
		writeFailure(w, fmt.Errorf("%w: no source accepted the score", ErrBackpressure))
		return
	}
	writeJSON(w, http.StatusAccepted, statusResponse{Status: "accepted", Queued: queued})
}

// HandlePostSession handles POST /v1/session, switching the requesting player.
func (h *ScoresHandler) HandlePostSession(w http.ResponseWriter, r *http.Request) {
	var req sessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeFailure(w, fmt.Errorf("%w: %w", ErrBadRequest, err))
		return
	}
	if err := h.deps.Authenticate(r.Context(), req.PlayerID); err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{Status: "authenticated"})
}
