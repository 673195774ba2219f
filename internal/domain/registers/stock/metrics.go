package stock

import (
	"time"

	"storeledger/internal/core/entity"
)

// Metrics receives engine events. The prometheus implementation lives in
// internal/infrastructure/metrics.
type Metrics interface {
	MovementApplied(t entity.MovementType, lines int, elapsed time.Duration)
	MovementRejected(t entity.MovementType, code string)
	SnapshotRepaired()
	IntegrityAlarm(source string)
}

// Metric labels for calls that are not a single movement type.
const (
	KindMulti       entity.MovementType = "MULTI"
	KindReversal    entity.MovementType = "REVERSAL"
	KindReplacement entity.MovementType = "REPLACEMENT"
)

type nopMetrics struct{}

func (nopMetrics) MovementApplied(entity.MovementType, int, time.Duration) {}
func (nopMetrics) MovementRejected(entity.MovementType, string)            {}
func (nopMetrics) SnapshotRepaired()                                       {}
func (nopMetrics) IntegrityAlarm(string)                                   {}

// NopMetrics discards all events.
var NopMetrics Metrics = nopMetrics{}
