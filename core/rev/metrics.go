package rev

import "github.com/codewandler/revent-go/core/metrics"

// Metrics is the instrumentation surface of the change protocol.
// Implementations must be safe for concurrent use.
type Metrics interface {
	// Storage boundary
	AppendDuration() metrics.Timer
	LoadDuration() metrics.Timer
	RecordsAppended(count int)
	Conflict()

	// In-memory protocol
	Rollback()

	// Snapshots
	SnapshotSaveDuration() metrics.Timer
	SnapshotLoadDuration() metrics.Timer
}

type nopMetrics struct{}

func (nopMetrics) AppendDuration() metrics.Timer       { return metrics.NopTimer() }
func (nopMetrics) LoadDuration() metrics.Timer         { return metrics.NopTimer() }
func (nopMetrics) RecordsAppended(int)                 {}
func (nopMetrics) Conflict()                           {}
func (nopMetrics) Rollback()                           {}
func (nopMetrics) SnapshotSaveDuration() metrics.Timer { return metrics.NopTimer() }
func (nopMetrics) SnapshotLoadDuration() metrics.Timer { return metrics.NopTimer() }

// NopMetrics returns a no-op Metrics implementation.
func NopMetrics() Metrics { return nopMetrics{} }
