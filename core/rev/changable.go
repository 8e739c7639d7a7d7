package rev

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

var (
	// ErrApplyInconsistent wraps the domain error of an event that
	// failed the aggregate's state invariants. Neither state nor the
	// in-flight change were touched.
	ErrApplyInconsistent = errors.New("event violates aggregate state")
	// ErrBeginConflict is returned by Begin while a change is open.
	// Changes do not nest.
	ErrBeginConflict = errors.New("change already open")
	// ErrNoOpenChange is returned by Apply and Commit outside a
	// Begin()...Commit() span.
	ErrNoOpenChange = errors.New("no open change")
	// ErrIrreversibleEvent is returned by Apply for an event with no
	// compensating event while the change must stay rollbackable.
	// Open the change with AllowIrreversible to admit such events.
	ErrIrreversibleEvent = errors.New("irreversible event in reversible change")
)

// Changable binds one aggregate instance to an EventStorage and owns
// its single in-flight Change. It is the only authority allowed to
// mutate the aggregate.
//
// A Changable is single-writer: it must not be shared between
// concurrent callers. Begin, Apply and Rollback are pure in-memory
// operations and never block; only Commit and Load touch storage.
// Multiple Changable instances may represent the same logical
// aggregate; the storage tail check arbitrates their commits.
type Changable struct {
	log         *slog.Logger
	store       EventStorage
	agg         Aggregate
	registry    *EventRegistry
	metrics     Metrics
	snapshotter Snapshotter
	newRecordID IDGenerator

	tail ID
	trx  *Change
}

// NewChangable wires agg to store. The aggregate starts with no
// history; call Load to replay committed records.
func NewChangable(agg Aggregate, store EventStorage, opts ...ChangableOption) *Changable {
	options := changableOptions{}
	for _, opt := range opts {
		opt.applyToChangable(&options)
	}

	log := options.log
	if log == nil {
		log = slog.Default()
	}
	registry := options.registry
	if registry == nil {
		registry = NewRegistry()
	}
	agg.Register(registry)

	m := options.metrics
	if m == nil {
		m = NopMetrics()
	}
	gen := options.idGenerator
	if gen == nil {
		gen = DefaultIDGenerator()
	}

	return &Changable{
		log:         log.With(slog.String("aggregate_id", agg.AggregateID())),
		store:       store,
		agg:         agg,
		registry:    registry,
		metrics:     m,
		snapshotter: options.snapshotter,
		newRecordID: gen,
	}
}

// Tail is the ID of the last committed record, 0 for a fresh aggregate.
func (c *Changable) Tail() ID { return c.tail }

// Open reports whether a change is in flight.
func (c *Changable) Open() bool { return c.trx != nil }

// Pending returns the number of uncommitted records, 0 when idle.
func (c *Changable) Pending() int {
	if c.trx == nil {
		return 0
	}
	return c.trx.Len()
}

// Begin opens a new in-flight change based on the current tail.
func (c *Changable) Begin(opts ...BeginOption) error {
	if c.trx != nil {
		return fmt.Errorf("%w: aggregate_id=%s", ErrBeginConflict, c.agg.AggregateID())
	}
	options := beginOptions{}
	for _, opt := range opts {
		opt.applyToBegin(&options)
	}
	c.trx = newChange(c.agg.AggregateID(), c.tail, options.allowIrreversible)
	c.log.Debug("change opened", c.tail.SlogAttrWithKey("base"))
	return nil
}

// Apply validates event against the aggregate, mutates state on success
// and appends a record carrying the event plus its compensating event
// to the in-flight change. The mutation is visible to subsequent Apply
// calls immediately, before commit. On any error state and change are
// left exactly as they were.
func (c *Changable) Apply(event any) error {
	if c.trx == nil {
		return fmt.Errorf("%w: aggregate_id=%s", ErrNoOpenChange, c.agg.AggregateID())
	}
	if !c.trx.allowIrreversible && irreversible(c.agg, event) {
		return fmt.Errorf("%w: %T", ErrIrreversibleEvent, event)
	}

	// Encode before mutating so an encoding failure has no effect.
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode event %T: %w", event, err)
	}

	anti, err := c.agg.Apply(event)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrApplyInconsistent, err)
	}

	rec := Record{
		ID:          c.trx.LastID() + 1,
		RecordID:    c.newRecordID(),
		AggregateID: c.trx.aggregateID,
		Type:        eventTypeOf(event),
		Data:        data,
		OccurredAt:  time.Now(),
	}
	switch {
	case anti != nil:
		antiData, err := json.Marshal(anti)
		if err != nil {
			// State already moved; compensate so the failed Apply has
			// no partial effect.
			mustApplyAnti(c.agg, anti)
			return fmt.Errorf("encode compensating event %T: %w", anti, err)
		}
		rec.AntiType = eventTypeOf(anti)
		rec.AntiData = antiData
	case !c.trx.allowIrreversible:
		panic(fmt.Sprintf(
			"rev: aggregate %T applied irreversible event %T without declaring it via Irreversibility",
			c.agg, event,
		))
	}

	c.trx.push(rec, anti)
	c.log.Debug("applied", slog.String("type", rec.Type), rec.ID.SlogAttr())
	return nil
}

// Commit hands the in-flight change to the storage. On success the tail
// advances, the change is discarded and the last ID is returned.
// Committing an empty change is a no-op returning the current tail.
// On ErrConflict or ErrUnavailable the change is preserved unchanged so
// the caller may retry Commit or choose Rollback.
func (c *Changable) Commit(ctx context.Context) (ID, error) {
	if c.trx == nil {
		return c.tail, fmt.Errorf("%w: aggregate_id=%s", ErrNoOpenChange, c.agg.AggregateID())
	}
	if c.trx.Empty() {
		c.trx = nil
		return c.tail, nil
	}

	timer := c.metrics.AppendDuration()
	last, err := c.store.Append(ctx, c.trx)
	timer.ObserveDuration()
	if err != nil {
		if errors.Is(err, ErrConflict) {
			c.metrics.Conflict()
		}
		return 0, fmt.Errorf(
			"append change aggregate_id=%s base=%d records=%d: %w",
			c.trx.aggregateID, c.trx.base, c.trx.Len(), err,
		)
	}

	c.metrics.RecordsAppended(c.trx.Len())
	c.log.Debug("committed",
		slog.Int("num_records", c.trx.Len()),
		last.SlogAttrWithKey("tail"),
	)
	c.tail = last
	c.trx = nil
	return last, nil
}

// Rollback undoes the in-flight change in memory by applying the
// accumulated compensating events in strict reverse order, restoring
// the state present before Begin, then discards the change. It never
// touches storage and has no failure outcome. Rollback while idle is a
// no-op.
//
// Rolling back a change that admitted an irreversible event (only
// possible under AllowIrreversible) is a programming error and panics.
func (c *Changable) Rollback() {
	if c.trx == nil {
		return
	}
	if !c.trx.reversible {
		panic("rev: rollback of a change containing irreversible events")
	}
	for i := len(c.trx.undo) - 1; i >= 0; i-- {
		mustApplyAnti(c.agg, c.trx.undo[i])
	}
	c.metrics.Rollback()
	c.log.Debug("rolled back", slog.Int("num_records", c.trx.Len()))
	c.trx = nil
}

// Load replays committed records from tail+1 forward, advancing the
// tail. Compensating events are ignored during forward replay. Load on
// a fresh Changable reconstructs the full history; after ErrConflict it
// catches the aggregate up so the intended events can be reapplied.
func (c *Changable) Load(ctx context.Context, opts ...LoadOption) error {
	if c.trx != nil {
		return fmt.Errorf("load with open change: %w", ErrBeginConflict)
	}
	options := loadOptions{}
	for _, opt := range opts {
		opt.applyToLoad(&options)
	}

	if options.snapshot && c.tail == 0 {
		switch err := c.restoreSnapshot(ctx); {
		case err == nil, errors.Is(err, ErrSnapshotNotFound):
		case errors.Is(err, ErrSnapshotChecksum):
			// Corrupt snapshots are ignored; the full history is still
			// in storage.
			c.log.Warn("snapshot unusable, replaying full history", slog.Any("error", err))
		default:
			return err
		}
	}

	timer := c.metrics.LoadDuration()
	defer timer.ObserveDuration()

	for rec, err := range c.store.Load(ctx, c.agg.AggregateID(), c.tail+1) {
		if err != nil {
			return fmt.Errorf("load aggregate_id=%s: %w", c.agg.AggregateID(), err)
		}
		if rec.ID != c.tail+1 {
			return fmt.Errorf("load aggregate_id=%s: expected id %d, got %d",
				c.agg.AggregateID(), c.tail+1, rec.ID)
		}
		event, err := c.registry.DecodeEvent(rec)
		if err != nil {
			return fmt.Errorf("decode record %d: %w", rec.ID, err)
		}
		if _, err := c.agg.Apply(event); err != nil {
			return fmt.Errorf("replay record %d: %w", rec.ID, err)
		}
		c.tail = rec.ID
	}

	c.log.Debug("loaded", c.tail.SlogAttrWithKey("tail"))
	return nil
}

// SaveSnapshot captures the aggregate state at the current tail.
func (c *Changable) SaveSnapshot(ctx context.Context) (*Snapshot, error) {
	if c.snapshotter == nil {
		return nil, ErrSnapshotterUnconfigured
	}
	if c.trx != nil {
		return nil, fmt.Errorf("snapshot with open change: %w", ErrBeginConflict)
	}

	timer := c.metrics.SnapshotSaveDuration()
	defer timer.ObserveDuration()

	ss, err := NewSnapshot(c.agg, c.tail, c.newRecordID)
	if err != nil {
		return nil, err
	}
	if err := c.snapshotter.SaveSnapshot(ctx, ss); err != nil {
		return nil, fmt.Errorf("save snapshot: %w", err)
	}
	c.log.Debug("snapshot saved", ss.logAttrs())
	return ss, nil
}

func (c *Changable) restoreSnapshot(ctx context.Context) error {
	if c.snapshotter == nil {
		return ErrSnapshotterUnconfigured
	}

	timer := c.metrics.SnapshotLoadDuration()
	defer timer.ObserveDuration()

	ss, err := c.snapshotter.LoadSnapshot(ctx, c.agg.AggregateID())
	if err != nil {
		return err
	}
	if err := RestoreSnapshot(c.agg, ss); err != nil {
		return fmt.Errorf("restore snapshot: %w", err)
	}
	c.tail = ss.ID
	c.log.Debug("snapshot restored", ss.logAttrs())
	return nil
}

// mustApplyAnti replays a compensating event. Anti-events are derived
// from the exact state they reverse, so a rejection here is a broken
// aggregate, not a recoverable condition.
func mustApplyAnti(agg Aggregate, anti any) {
	if _, err := agg.Apply(anti); err != nil {
		panic(fmt.Sprintf("rev: aggregate %T rejected its own compensating event %T: %v", agg, anti, err))
	}
}
