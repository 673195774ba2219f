package numerator

import (
	"context"
	"time"
)

// Generator allocates sequential numbers. Implementations live in the
// infrastructure layer; services receive one explicitly.
type Generator interface {
	// GetNextNumber returns the next formatted number, e.g. ISS-00042.
	GetNextNumber(ctx context.Context, cfg Config, opts *Options, period time.Time) (string, error)

	// SetNextNumber moves a sequence (data migration only).
	SetNextNumber(ctx context.Context, cfg Config, period time.Time, value int64) error
}
