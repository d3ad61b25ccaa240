package avatar

import "errors"

var (
	// ErrEmptyRef is reported for a request without an image reference.
	ErrEmptyRef = errors.New("empty avatar reference")
	// ErrBadStatus is returned by HTTPGetter for non-2xx responses.
	ErrBadStatus = errors.New("unexpected image response status")
	// ErrTooLarge is returned when an image exceeds the size limit.
	ErrTooLarge = errors.New("avatar image too large")
	// ErrRejected is reported when the download queue refuses a request.
	ErrRejected = errors.New("avatar request rejected")
)
