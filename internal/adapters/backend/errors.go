package backend

import "errors"

// Status kinds a backend reports. Implementations wrap these so callers can
// classify failures with errors.Is.
var (
	ErrTransient     = errors.New("backend transient failure")
	ErrPermanent     = errors.New("backend permanent failure")
	ErrUnavailable   = errors.New("backend unavailable")
	ErrInvalidCursor = errors.New("invalid page cursor")
	ErrNotFound      = errors.New("player not found")
)

// IsTransient reports whether err is worth retrying later.
func IsTransient(err error) bool {
	return errors.Is(err, ErrTransient)
}
