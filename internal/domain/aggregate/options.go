package aggregate

import (
	"github.com/okian/ladder/internal/adapters/repository"
	"github.com/okian/ladder/pkg/logger"
)

// DefaultPersonalBestLabel replaces the requesting player's name on the extracted row.
const DefaultPersonalBestLabel = "Personal Best"

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithOrder sets the merge comparator.
func WithOrder(o repository.Order) Option {
	return func(a *Aggregator) {
		if o != nil {
			a.order = o
		}
	}
}

// WithPersonalBestLabel sets the name shown on the personal-best row.
func WithPersonalBestLabel(label string) Option {
	return func(a *Aggregator) {
		if label != "" {
			a.label = label
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(a *Aggregator) {
		if l != nil {
			a.log = l
		}
	}
}
