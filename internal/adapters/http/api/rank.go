package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/okian/ladder/internal/domain/types"
)

// RankHandler answers "who do I have to beat" queries.
type RankHandler struct {
	deps Dependencies
}

// NewRankHandler creates a new rank handler.
func NewRankHandler(deps Dependencies) *RankHandler {
	return &RankHandler{deps: deps}
}

// HandleGetNextAbove handles GET /v1/next?threshold=V.
func (h *RankHandler) HandleGetNextAbove(w http.ResponseWriter, r *http.Request) {
	threshold, err := strconv.ParseInt(r.URL.Query().Get("threshold"), 10, 64)
	if err != nil {
		writeFailure(w, fmt.Errorf("%w: threshold: %w", ErrBadRequest, err))
		return
	}
	e, err := h.deps.NextAbove(threshold)
	if err != nil {
		writeFailure(w, err)
		return
	}
	resp := types.NextAboveResponse{Threshold: threshold, Found: !e.IsMax()}
	if resp.Found {
		entry := types.FromModel(e)
		resp.Entry = &entry
	}
	writeJSON(w, http.StatusOK, resp)
}
