// Package metrics defines small instrumentation interfaces so core
// packages can be measured without depending on a concrete backend.
// The Prometheus implementation lives in adapters/prometheus.
package metrics

// Counter only ever goes up.
type Counter interface {
	// Inc increments the counter by 1.
	Inc()
	// Add increments the counter by delta, which must be >= 0.
	Add(delta float64)
}

// Histogram samples observations such as operation latencies.
type Histogram interface {
	// Observe records a single observation.
	Observe(value float64)
}

// Timer records the duration of one operation. Create it when the
// operation starts and call ObserveDuration when it completes:
//
//	defer m.AppendDuration().ObserveDuration()
type Timer interface {
	ObserveDuration()
}

// TimerFunc creates a new Timer per operation.
type TimerFunc func() Timer
