package rangefetch

import "errors"

// Sentinel kinds for range fetch failures.
var (
	ErrInvalidRange = errors.New("invalid rank range")
	ErrPageFetch    = errors.New("page fetch failed")
	ErrDetailLookup = errors.New("detail lookup failed")
)
