package rev

import (
	"log/slog"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

// IDGenerator produces globally unique record identifiers.
type IDGenerator func() string

// DefaultIDGenerator returns the default generator using nanoid.
func DefaultIDGenerator() IDGenerator {
	return func() string { return gonanoid.Must() }
}

type (
	valueOption[T any] struct{ v T }

	LogOption         valueOption[*slog.Logger]
	RegistryOption    valueOption[*EventRegistry]
	MetricsOption     valueOption[Metrics]
	SnapshotterOption valueOption[Snapshotter]
	IDGeneratorOption valueOption[IDGenerator]
)

func WithLog(l *slog.Logger) LogOption                  { return LogOption{v: l} }
func WithRegistry(r *EventRegistry) RegistryOption      { return RegistryOption{v: r} }
func WithMetrics(m Metrics) MetricsOption               { return MetricsOption{v: m} }
func WithSnapshotter(s Snapshotter) SnapshotterOption   { return SnapshotterOption{v: s} }
func WithIDGenerator(gen IDGenerator) IDGeneratorOption { return IDGeneratorOption{v: gen} }

type changableOptions struct {
	log         *slog.Logger
	registry    *EventRegistry
	metrics     Metrics
	snapshotter Snapshotter
	idGenerator IDGenerator
}

type ChangableOption interface{ applyToChangable(*changableOptions) }

func (o LogOption) applyToChangable(c *changableOptions)         { c.log = o.v }
func (o RegistryOption) applyToChangable(c *changableOptions)    { c.registry = o.v }
func (o MetricsOption) applyToChangable(c *changableOptions)     { c.metrics = o.v }
func (o SnapshotterOption) applyToChangable(c *changableOptions) { c.snapshotter = o.v }
func (o IDGeneratorOption) applyToChangable(c *changableOptions) { c.idGenerator = o.v }

// === Begin options ===

type beginOptions struct{ allowIrreversible bool }

type BeginOption interface{ applyToBegin(*beginOptions) }

type IrreversibleOption struct{}

// AllowIrreversible opens the change without rollback support:
// irreversible events are admitted and Rollback becomes unavailable for
// this change.
func AllowIrreversible() IrreversibleOption { return IrreversibleOption{} }

func (IrreversibleOption) applyToBegin(b *beginOptions) { b.allowIrreversible = true }

// === Load options ===

type loadOptions struct{ snapshot bool }

type LoadOption interface{ applyToLoad(*loadOptions) }

type SnapshotOption struct{ v bool }

// WithSnapshot makes Load restore the latest snapshot before replaying
// the remaining records. Requires a configured Snapshotter.
func WithSnapshot(v bool) SnapshotOption { return SnapshotOption{v: v} }

func (o SnapshotOption) applyToLoad(l *loadOptions) { l.snapshot = o.v }
