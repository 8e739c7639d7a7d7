package rev

import (
	"context"
	"errors"
	"iter"
)

var (
	// ErrConflict is returned by Append when the change's base does not
	// match the current storage tail for its aggregate: another
	// committer won. The caller must reload, reapply and retry.
	ErrConflict = errors.New("concurrency conflict")
	// ErrUnavailable wraps transient backend failures. The in-flight
	// change is preserved, so the caller may simply retry.
	ErrUnavailable = errors.New("storage unavailable")
	// ErrEmptyChange is returned by Append for a change with no records.
	// A Changable never sends one; Commit short-circuits empty changes.
	ErrEmptyChange = errors.New("change has no records")
)

// EventStorage is the durability boundary. Append is the only place IDs
// become final; Load replays committed records. Both may block on I/O
// and honor ctx; everything else in this package is pure memory.
type EventStorage interface {
	// Append atomically persists all records of change or none. It
	// verifies change.Base() against the current tail for the
	// aggregate and returns ErrConflict on mismatch. On success the
	// returned ID is the new tail, i.e. the last record's ID.
	// A cancelled or failed Append must leave no partial records
	// visible to Load.
	Append(ctx context.Context, change *Change) (ID, error)

	// Load returns the committed records of aggregateID with IDs >= from
	// in ascending order. The sequence is lazy, finite and restartable:
	// every range starts an independent read and observes a consistent
	// prefix of committed records. On backend failure the iteration
	// yields a non-nil error and stops.
	Load(ctx context.Context, aggregateID string, from ID) iter.Seq2[Record, error]
}

// Watcher is implemented by storages that can push committed records to
// live subscribers.
type Watcher interface {
	Watch(ctx context.Context, opts ...WatchOption) (Subscription, error)
}
