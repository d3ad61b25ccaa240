package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/okian/ladder/internal/domain/model"
	"github.com/okian/ladder/internal/domain/types"
)

// RangeHandler serves single-source rank windows.
type RangeHandler struct {
	deps Dependencies
}

// NewRangeHandler creates a new range handler.
func NewRangeHandler(deps Dependencies) *RangeHandler {
	return &RangeHandler{deps: deps}
}

// HandleGetRange handles GET /v1/sources/{id}/range?first=&last=&details=.
// A missing last reads to the end of the board.
func (h *RangeHandler) HandleGetRange(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	first, err := intParam(q.Get("first"), 1)
	if err != nil {
		writeFailure(w, fmt.Errorf("%w: first: %w", ErrBadRequest, err))
		return
	}
	last, err := intParam(q.Get("last"), model.Unbounded)
	if err != nil {
		writeFailure(w, fmt.Errorf("%w: last: %w", ErrBadRequest, err))
		return
	}
	details := false
	if v := q.Get("details"); v != "" {
		if details, err = strconv.ParseBool(v); err != nil {
			writeFailure(w, fmt.Errorf("%w: details: %w", ErrBadRequest, err))
			return
		}
	}

	res, err := h.deps.FetchRange(r.Context(), r.PathValue("id"), first, last, details)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, types.RangeResponse{
		Anchor:  res.Anchor,
		Entries: types.FromModels(res.Entries),
	})
}

// HandleGetPlayerScore handles GET /v1/sources/{id}/me: the requesting
// player's own rank and value on one source.
func (h *RangeHandler) HandleGetPlayerScore(w http.ResponseWriter, r *http.Request) {
	e, err := h.deps.PlayerScore(r.Context(), r.PathValue("id"))
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, types.FromModel(e))
}

func intParam(raw string, def int) (int, error) {
	if raw == "" {
		return def, nil
	}
	return strconv.Atoi(raw)
}
