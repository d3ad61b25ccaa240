// Package config defines service configuration structures and loading hooks.
package config

import (
	"fmt"
	"time"

	"github.com/okian/ladder/internal/adapters/backend/memory"
	"github.com/okian/ladder/internal/domain/model"
)

// Source kinds.
const (
	KindMemory = "memory"
	KindRedis  = "redis"
	KindHTTP   = "http"
)

// Source describes one score source.
type Source struct {
	// Name is the source id used in merged entries, metrics and the API.
	Name string `koanf:"name"`

	// Kind selects the backend: memory, redis or http.
	Kind string `koanf:"kind"`

	// Enabled marks the source as available. Disabled sources stay registered
	// and contribute nothing to rebuilds.
	Enabled bool `koanf:"enabled"`

	// Addr is the Redis address for redis sources.
	Addr string `koanf:"addr"`

	// URL is the base URL for http sources.
	URL string `koanf:"url"`

	// KeyPrefix namespaces redis keys.
	KeyPrefix string `koanf:"key_prefix"`

	// LatencyMinMS and LatencyMaxMS simulate backend latency for memory sources.
	LatencyMinMS int `koanf:"latency_min_ms"`
	LatencyMaxMS int `koanf:"latency_max_ms"`

	// Players seeds a memory source.
	Players []memory.Player `koanf:"players"`
}

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	// PageSize is the number of rows requested per backend page.
	PageSize int `koanf:"page_size"`

	// DetailConcurrency bounds parallel detail lookups per page.
	DetailConcurrency int `koanf:"detail_concurrency"`

	// SocialScope and TimeScope select which board each source is walked on.
	SocialScope string `koanf:"social_scope"`
	TimeScope   string `koanf:"time_scope"`

	// PersonalBestLabel is the display name given to the requesting player's row.
	PersonalBestLabel string `koanf:"personal_best_label"`

	// PlayerID is the requesting player. Empty leaves identity unresolved
	// until a session is posted.
	PlayerID string `koanf:"player_id"`

	// RebuildIntervalMS is the period of background rebuilds; 0 disables them.
	RebuildIntervalMS int `koanf:"rebuild_interval_ms"`

	AvatarQueueSize int   `koanf:"avatar_queue_size"`
	AvatarWorkers   int   `koanf:"avatar_workers"`
	AvatarCacheSize int64 `koanf:"avatar_cache_size"`
	AvatarTimeoutMS int   `koanf:"avatar_timeout_ms"`

	SubmitQueueSize int `koanf:"submit_queue_size"`
	SubmitWorkers   int `koanf:"submit_workers"`

	// BreakerMaxFailures consecutive transient failures open a source's breaker
	// for BreakerTimeoutMS.
	BreakerMaxFailures int `koanf:"breaker_max_failures"`
	BreakerTimeoutMS   int `koanf:"breaker_timeout_ms"`

	// MaxLeaderboardLimit caps GET /v1/leaderboard?limit.
	MaxLeaderboardLimit int `koanf:"max_leaderboard_limit"`

	Sources []Source `koanf:"sources"`
}

// New creates a Config with defaults: one empty in-memory source.
func New() *Config {
	return &Config{
		LogLevel:            "info",
		Addr:                ":9080",
		PageSize:            25,
		DetailConcurrency:   8,
		SocialScope:         string(model.SocialGlobal),
		TimeScope:           string(model.TimeAllTime),
		PersonalBestLabel:   "Personal Best",
		RebuildIntervalMS:   30_000,
		AvatarQueueSize:     256,
		AvatarWorkers:       4,
		AvatarCacheSize:     2048,
		AvatarTimeoutMS:     5_000,
		SubmitQueueSize:     1024,
		SubmitWorkers:       4,
		BreakerMaxFailures:  5,
		BreakerTimeoutMS:    10_000,
		MaxLeaderboardLimit: 100,
		Sources: []Source{
			{Name: "local", Kind: KindMemory, Enabled: true},
		},
	}
}

// Filters parses the configured scopes.
func (c *Config) Filters() (model.Filters, error) {
	social, err := model.ParseSocialScope(c.SocialScope)
	if err != nil {
		return model.Filters{}, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	tm, err := model.ParseTimeScope(c.TimeScope)
	if err != nil {
		return model.Filters{}, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return model.Filters{Social: social, Time: tm}, nil
}

// RebuildInterval returns the background rebuild period.
func (c *Config) RebuildInterval() time.Duration {
	return ms(c.RebuildIntervalMS)
}

// AvatarTimeout returns the per-download timeout.
func (c *Config) AvatarTimeout() time.Duration {
	return ms(c.AvatarTimeoutMS)
}

// BreakerTimeout returns how long an open breaker rejects calls.
func (c *Config) BreakerTimeout() time.Duration {
	return ms(c.BreakerTimeoutMS)
}

// Latency returns the simulated latency bounds of a memory source.
func (s Source) Latency() (time.Duration, time.Duration) {
	return ms(s.LatencyMinMS), ms(s.LatencyMaxMS)
}

func ms(v int) time.Duration {
	return time.Duration(v) * time.Millisecond
}

// Validate checks the configuration for values the service cannot run with.
func (c *Config) Validate() error {
	switch {
	case c.Addr == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.PageSize < 1:
		return fmt.Errorf("%w: page_size must be positive, got %d", ErrInvalidConfig, c.PageSize)
	case c.MaxLeaderboardLimit < 1:
		return fmt.Errorf("%w: max_leaderboard_limit must be positive", ErrInvalidConfig)
	case c.RebuildIntervalMS < 0:
		return fmt.Errorf("%w: rebuild_interval_ms must not be negative", ErrInvalidConfig)
	}
	if _, err := c.Filters(); err != nil {
		return err
	}

	seen := make(map[string]struct{}, len(c.Sources))
	for i, s := range c.Sources {
		if s.Name == "" {
			return fmt.Errorf("%w: sources[%d] has no name", ErrInvalidConfig, i)
		}
		if _, dup := seen[s.Name]; dup {
			return fmt.Errorf("%w: duplicate source %q", ErrInvalidConfig, s.Name)
		}
		seen[s.Name] = struct{}{}

		switch s.Kind {
		case KindMemory:
			if s.LatencyMinMS < 0 || s.LatencyMaxMS < s.LatencyMinMS {
				return fmt.Errorf("%w: source %q latency range [%d, %d]",
					ErrInvalidConfig, s.Name, s.LatencyMinMS, s.LatencyMaxMS)
			}
		case KindRedis:
			if s.Enabled && s.Addr == "" {
				return fmt.Errorf("%w: redis source %q needs addr", ErrInvalidConfig, s.Name)
			}
		case KindHTTP:
			if s.Enabled && s.URL == "" {
				return fmt.Errorf("%w: http source %q needs url", ErrInvalidConfig, s.Name)
			}
		default:
			return fmt.Errorf("%w: source %q has unknown kind %q", ErrInvalidConfig, s.Name, s.Kind)
		}
	}
	return nil
}
