package repository

import "errors"

// Sentinel kinds for ordered set errors.
var (
	ErrInvalidLimit = errors.New("invalid leaderboard limit")
)
