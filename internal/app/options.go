package service

import (
	"github.com/okian/ladder/internal/adapters/avatar"
	"github.com/okian/ladder/internal/adapters/backend"
	"github.com/okian/ladder/internal/config"
	"github.com/okian/ladder/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithConfig sets the configuration. Defaults to config.New().
func WithConfig(cfg *config.Config) Option {
	return func(s *Service) {
		if cfg != nil {
			s.cfg = cfg
		}
	}
}

// WithBackend replaces the backend built for the configured source name.
func WithBackend(source string, b backend.Backend) Option {
	return func(s *Service) {
		if b != nil {
			s.overrides[source] = b
		}
	}
}

// WithImageGetter sets how avatar images are downloaded.
func WithImageGetter(g avatar.ImageGetter) Option {
	return func(s *Service) { s.imageGetter = g }
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}
