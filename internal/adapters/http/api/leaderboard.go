package api

import (
	"net/http"
	"strconv"

	"github.com/okian/ladder/internal/domain/types"
)

// LeaderboardHandler handles merged leaderboard requests.
type LeaderboardHandler struct {
	deps     Dependencies
	maxLimit int
}

// NewLeaderboardHandler creates a new leaderboard handler.
func NewLeaderboardHandler(deps Dependencies, maxLimit int) *LeaderboardHandler {
	return &LeaderboardHandler{
		deps:     deps,
		maxLimit: maxLimit,
	}
}

// HandleGetLeaderboard handles GET /v1/leaderboard?limit=N requests.
func (h *LeaderboardHandler) HandleGetLeaderboard(w http.ResponseWriter, r *http.Request) {
	n, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || n < 1 {
		writeError(w, http.StatusBadRequest, "bad_request", ErrBadRequest)
		return
	}
	if n > h.maxLimit {
		writeError(w, http.StatusBadRequest, "limit_exceeded", ErrBadRequest)
		return
	}
	entries, err := h.deps.Leaderboard(n)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, types.FromModels(entries))
}

// HandleGetPersonalBest handles GET /v1/personal-best.
func (h *LeaderboardHandler) HandleGetPersonalBest(w http.ResponseWriter, _ *http.Request) {
	pb, err := h.deps.PersonalBest()
	if err != nil {
		writeFailure(w, err)
		return
	}
	resp := types.PersonalBestResponse{Found: !pb.IsNoScore()}
	if resp.Found {
		e := types.FromModel(pb)
		resp.Entry = &e
	}
	writeJSON(w, http.StatusOK, resp)
}

// HandleRebuild handles POST /v1/rebuild. With wait=true it answers once the
// rebuilt leaderboard is live.
func (h *LeaderboardHandler) HandleRebuild(w http.ResponseWriter, r *http.Request) {
	wait, _ := strconv.ParseBool(r.URL.Query().Get("wait"))
	done, err := h.deps.Rebuild(r.Context())
	if err != nil {
		writeFailure(w, err)
		return
	}
	if !wait {
		writeJSON(w, http.StatusAccepted, statusResponse{Status: "rebuilding"})
		return
	}
	select {
	case <-done:
		writeJSON(w, http.StatusOK, statusResponse{Status: "ready"})
	case <-r.Context().Done():
		writeFailure(w, r.Context().Err())
	}
}
