package httpsrc

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/okian/ladder/internal/adapters/backend"
	"github.com/okian/ladder/internal/domain/model"
)

const defaultPageSize = 25

// Handler exposes any backend.Backend over the remote protocol, so one
// ladder instance can act as a source for another.
type Handler struct {
	src backend.Backend
	mux *http.ServeMux
}

// NewHandler serves src.
func NewHandler(src backend.Backend) *Handler {
	h := &Handler{src: src, mux: http.NewServeMux()}
	h.mux.HandleFunc("GET /top", h.handleTop)
	h.mux.HandleFunc("GET /page", h.handlePage)
	h.mux.HandleFunc("GET /players/{id}", h.handlePlayer)
	h.mux.HandleFunc("GET /me", h.handleSelf)
	h.mux.HandleFunc("GET /me/summary", h.handleSummary)
	h.mux.HandleFunc("POST /scores", h.handleScore)
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) { h.mux.ServeHTTP(w, r) }

func parseFilters(r *http.Request) (model.Filters, error) {
	social, err := model.ParseSocialScope(r.URL.Query().Get("social"))
	if err != nil {
		return model.Filters{}, err
	}
	tscope, err := model.ParseTimeScope(r.URL.Query().Get("time"))
	if err != nil {
		return model.Filters{}, err
	}
	return model.Filters{Social: social, Time: tscope}, nil
}

func (h *Handler) handleTop(w http.ResponseWriter, r *http.Request) {
	filters, err := parseFilters(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	c, err := h.src.TopCursor(r.Context(), filters)
	if err != nil {
		writeBackendError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, topResponse{Cursor: fromCursor(c)})
}

func (h *Handler) handlePage(w http.ResponseWriter, r *http.Request) {
	size := defaultPageSize
	if s := r.URL.Query().Get("size"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "bad_request", errors.New("size must be a positive integer"))
			return
		}
		size = n
	}
	p, err := h.src.FetchPage(r.Context(), toCursor(r.URL.Query().Get("cursor")), size)
	if err != nil {
		writeBackendError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, fromPage(p))
}

func (h *Handler) handlePlayer(w http.ResponseWriter, r *http.Request) {
	d, err := h.src.FetchDetail(r.Context(), r.PathValue("id"))
	if err != nil {
		writeBackendError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, detailResponse{DisplayName: d.DisplayName, AvatarRef: d.AvatarRef})
}

func (h *Handler) handleSelf(w http.ResponseWriter, r *http.Request) {
	p, err := h.src.FetchSelf(r.Context())
	if err != nil {
		writeBackendError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, selfResponse{PlayerID: p.ID, DisplayName: p.DisplayName})
}

func (h *Handler) handleSummary(w http.ResponseWriter, r *http.Request) {
	filters, err := parseFilters(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	row, err := h.src.FetchSummary(r.Context(), filters)
	if err != nil {
		writeBackendError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, fromRow(row))
}

func (h *Handler) handleScore(w http.ResponseWriter, r *http.Request) {
	var req scoreRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	if err := h.src.Submit(r.Context(), req.Value); err != nil {
		writeBackendError(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func writeBackendError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, backend.ErrInvalidCursor):
		writeError(w, http.StatusBadRequest, "invalid_cursor", err)
	case errors.Is(err, backend.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", err)
	case errors.Is(err, backend.ErrPermanent):
		writeError(w, http.StatusUnprocessableEntity, "rejected", err)
	case errors.Is(err, backend.ErrUnavailable):
		writeError(w, http.StatusServiceUnavailable, "unavailable", err)
	default:
		writeError(w, http.StatusBadGateway, "upstream", err)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	writeJSON(w, status, errorResponse{Code: code, Message: err.Error()})
}
