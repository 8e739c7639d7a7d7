// Package prometheus implements the core metrics interfaces on top of
// prometheus/client_golang.
package prometheus

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/codewandler/revent-go/core/metrics"
	"github.com/codewandler/revent-go/core/rev"
)

var defaultBuckets = prometheus.DefBuckets

// revMetrics implements rev.Metrics using Prometheus.
type revMetrics struct {
	appendDuration       prometheus.Histogram
	loadDuration         prometheus.Histogram
	recordsTotal         prometheus.Counter
	conflictsTotal       prometheus.Counter
	rollbacksTotal       prometheus.Counter
	snapshotSaveDuration prometheus.Histogram
	snapshotLoadDuration prometheus.Histogram
}

// NewMetrics creates a Prometheus implementation of rev.Metrics and
// registers its collectors with reg.
func NewMetrics(reg prometheus.Registerer) rev.Metrics {
	m := &revMetrics{
		appendDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "revent_append_duration_seconds",
			Help:    "Change append time in seconds",
			Buckets: defaultBuckets,
		}),
		loadDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "revent_load_duration_seconds",
			Help:    "Record replay time in seconds",
			Buckets: defaultBuckets,
		}),
		recordsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "revent_records_appended_total",
			Help: "Total number of records committed",
		}),
		conflictsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "revent_conflicts_total",
			Help: "Total number of optimistic-concurrency conflicts",
		}),
		rollbacksTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "revent_rollbacks_total",
			Help: "Total number of in-memory rollbacks",
		}),
		snapshotSaveDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "revent_snapshot_save_duration_seconds",
			Help:    "Snapshot save time in seconds",
			Buckets: defaultBuckets,
		}),
		snapshotLoadDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "revent_snapshot_load_duration_seconds",
			Help:    "Snapshot load time in seconds",
			Buckets: defaultBuckets,
		}),
	}

	reg.MustRegister(
		m.appendDuration,
		m.loadDuration,
		m.recordsTotal,
		m.conflictsTotal,
		m.rollbacksTotal,
		m.snapshotSaveDuration,
		m.snapshotLoadDuration,
	)

	return m
}

func (m *revMetrics) AppendDuration() metrics.Timer { return newTimer(m.appendDuration) }
func (m *revMetrics) LoadDuration() metrics.Timer   { return newTimer(m.loadDuration) }
func (m *revMetrics) RecordsAppended(count int)     { m.recordsTotal.Add(float64(count)) }
func (m *revMetrics) Conflict()                     { m.conflictsTotal.Inc() }
func (m *revMetrics) Rollback()                     { m.rollbacksTotal.Inc() }

func (m *revMetrics) SnapshotSaveDuration() metrics.Timer { return newTimer(m.snapshotSaveDuration) }
func (m *revMetrics) SnapshotLoadDuration() metrics.Timer { return newTimer(m.snapshotLoadDuration) }

var _ rev.Metrics = (*revMetrics)(nil)

// === Timer ===

type timer struct{ t *prometheus.Timer }

func (t timer) ObserveDuration() { t.t.ObserveDuration() }

func newTimer(o prometheus.Observer) metrics.Timer {
	return timer{t: prometheus.NewTimer(o)}
}
