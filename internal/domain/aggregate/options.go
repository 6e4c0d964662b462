// Package aggregate folds raw platform entities into a metrics snapshot.
package aggregate

import (
	"time"

	"github.com/pulseboard/pulseboard/pkg/logger"
)

// Option applies a configuration option to the InMemoryAggregator.
type Option func(*InMemoryAggregator)

// WithClock overrides the time source used for snapshot timestamps.
func WithClock(now func() time.Time) Option {
	return func(a *InMemoryAggregator) {
		if now != nil {
			a.now = now
		}
	}
}

// WithIDGenerator overrides the snapshot id generator.
func WithIDGenerator(newID func() string) Option {
	return func(a *InMemoryAggregator) {
		if newID != nil {
			a.newID = newID
		}
	}
}

// WithLogger sets the logger used for data-quality warnings.
func WithLogger(l logger.Logger) Option {
	return func(a *InMemoryAggregator) {
		if l != nil {
			a.logger = l
		}
	}
}
