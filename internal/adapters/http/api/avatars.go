package api

import (
	"fmt"
	"net/http"
)

// AvatarHandler serves cached avatar images.
type AvatarHandler struct {
	deps Dependencies
}

// NewAvatarHandler creates a new avatar handler.
func NewAvatarHandler(deps Dependencies) *AvatarHandler {
	return &AvatarHandler{deps: deps}
}

// HandleGetAvatar handles GET /v1/avatars/{key}.
func (h *AvatarHandler) HandleGetAvatar(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	img, ok := h.deps.Avatar(key)
	if !ok {
		writeFailure(w, fmt.Errorf("%w: avatar %s", ErrNotFound, key))
		return
	}
	w.Header().Set("Content-Type", http.DetectContentType(img))
	w.Header().Set("Cache-Control", "max-age=300")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(img)
}
