package service

import "errors"

// Sentinel error kinds returned by the Service.
var (
	ErrNotStarted        = errors.New("service not started")
	ErrUnknownSource     = errors.New("unknown source")
	ErrSourceUnavailable = errors.New("source unavailable")
	ErrInvalidPlayer     = errors.New("invalid player id")
	ErrNoScore           = errors.New("player has no score")
	ErrNoIdentitySource  = errors.New("no source could identify the player")
)
