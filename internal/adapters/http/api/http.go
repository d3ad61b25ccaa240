// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/okian/ladder/internal/domain/model"
	"github.com/okian/ladder/internal/domain/rangefetch"
)

const defaultMaxLimit = 100

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	StatsProvider

	FetchRange(ctx context.Context, source string, first, last int, includeDetails bool) (rangefetch.Result, error)
	Rebuild(ctx context.Context) (<-chan struct{}, error)
	NextAbove(threshold int64) (model.ScoreEntry, error)
	Leaderboard(limit int) ([]model.ScoreEntry, error)
	PersonalBest() (model.ScoreEntry, error)
	PlayerScore(ctx context.Context, source string) (model.ScoreEntry, error)

	// SubmitCurrentScore queues value for every source and returns how many
	// submissions were queued.
	SubmitCurrentScore(ctx context.Context, value int64) (int, error)
	Authenticate(ctx context.Context, playerID string) error
	Avatar(key string) ([]byte, bool)
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler      *HealthHandler
	statsHandler       *StatsHandler
	rangeHandler       *RangeHandler
	leaderboardHandler *LeaderboardHandler
	rankHandler        *RankHandler
	scoresHandler      *ScoresHandler
	avatarHandler      *AvatarHandler
}

// NewServer creates a new API server with all handlers. maxLimit caps
// GET /v1/leaderboard?limit; non-positive means the default.
func NewServer(deps Dependencies, maxLimit int) *Server {
	if maxLimit < 1 {
		maxLimit = defaultMaxLimit
	}
	return &Server{
		healthHandler:      NewHealthHandler(),
		statsHandler:       NewStatsHandler(deps),
		rangeHandler:       NewRangeHandler(deps),
		leaderboardHandler: NewLeaderboardHandler(deps, maxLimit),
		rankHandler:        NewRankHandler(deps),
		scoresHandler:      NewScoresHandler(deps),
		avatarHandler:      NewAvatarHandler(deps),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("GET /stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))

	mux.HandleFunc("GET /v1/sources/{id}/range", MetricsMiddleware(s.rangeHandler.HandleGetRange, "range"))
	mux.HandleFunc("GET /v1/sources/{id}/me", MetricsMiddleware(s.rangeHandler.HandleGetPlayerScore, "player_score"))
	mux.HandleFunc("POST /v1/rebuild", MetricsMiddleware(s.leaderboardHandler.HandleRebuild, "rebuild"))
	mux.HandleFunc("GET /v1/leaderboard", MetricsMiddleware(s.leaderboardHandler.HandleGetLeaderboard, "leaderboard"))
	mux.HandleFunc("GET /v1/personal-best", MetricsMiddleware(s.leaderboardHandler.HandleGetPersonalBest, "personal_best"))
	mux.HandleFunc("GET /v1/next", MetricsMiddleware(s.rankHandler.HandleGetNextAbove, "next"))
	mux.HandleFunc("POST /v1/scores", MetricsMiddleware(s.scoresHandler.HandlePostScore, "scores"))
	mux.HandleFunc("POST /v1/session", MetricsMiddleware(s.scoresHandler.HandlePostSession, "session"))
	mux.HandleFunc("GET /v1/avatars/{key}", MetricsMiddleware(s.avatarHandler.HandleGetAvatar, "avatars"))
}

type statusResponse struct {
	Status string `json:"status"`
	Queued int    `json:"queued,omitempty"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// writeFailure derives status and code from err.
func writeFailure(w http.ResponseWriter, err error) {
	status, code := statusFor(err)
	writeError(w, status, code, err)
}
