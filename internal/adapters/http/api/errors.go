package api

import (
	"context"
	"errors"
	"net/http"

	service "github.com/okian/ladder/internal/app"
	"github.com/okian/ladder/internal/domain/rangefetch"
)

// Sentinel kinds for API errors.
var (
	ErrBadRequest   = errors.New("bad request")
	ErrBackpressure = errors.New("backpressure")
	ErrNotFound     = errors.New("not found")
)

// statusFor maps an error onto an HTTP status and a stable error code.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, ErrBadRequest),
		errors.Is(err, rangefetch.ErrInvalidRange),
		errors.Is(err, service.ErrInvalidPlayer):
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, ErrNotFound), errors.Is(err, service.ErrUnknownSource):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, service.ErrNoScore):
		return http.StatusNotFound, "no_score"
	case errors.Is(err, ErrBackpressure):
		return http.StatusTooManyRequests, "backpressure"
	case errors.Is(err, service.ErrNotStarted), errors.Is(err, service.ErrSourceUnavailable):
		return http.StatusServiceUnavailable, "unavailable"
	case errors.Is(err, rangefetch.ErrPageFetch), errors.Is(err, rangefetch.ErrDetailLookup):
		return http.StatusBadGateway, "upstream_error"
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return http.StatusGatewayTimeout, "timeout"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}
