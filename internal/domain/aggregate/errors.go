package aggregate

import "errors"

// Sentinel kinds for aggregator construction and waits.
var (
	ErrTooManySources  = errors.New("too many sources")
	ErrDuplicateSource = errors.New("duplicate source id")
	ErrEmptySourceID   = errors.New("empty source id")
	ErrNotReady        = errors.New("merged leaderboard not ready")
)
