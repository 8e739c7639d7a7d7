// Package rev is a reversible event-sourcing core: aggregate state
// mutates exclusively by applying discrete events, every mutation
// carries a compensating event that reverses it, and a batch of
// mutations commits atomically to durable storage or not at all.
//
// # Core Components
//
// Record pairs an event with its compensating event and is the
// immutable unit of persistence. Change is the in-memory batch of
// records produced by one logical operation. EventStorage is the
// durability boundary: atomic append with an optimistic-concurrency
// check, ordered replay via Load. Changable is the capability held by
// an aggregate instance, exposing the begin/apply/commit/rollback
// protocol.
//
// The domain supplies an [Aggregate]: its Apply validates an event
// against the current state, mutates on success and returns the
// compensating event derived from the state before the mutation.
//
//	type Account struct {
//	    ID      string `json:"id"`
//	    Balance int64  `json:"balance"`
//	}
//
//	func (a *Account) Apply(event any) (any, error) {
//	    switch e := event.(type) {
//	    case *Deposited:
//	        a.Balance += e.Amount
//	        return &Withdrawn{Amount: e.Amount}, nil
//	    ...
//	}
//
// # Protocol
//
// Begin opens a change, Apply grows it, Commit hands it to storage,
// Rollback undoes it in memory using the accumulated compensating
// events in reverse order:
//
//	c := rev.NewChangable(acc, storage)
//	_ = c.Begin()
//	_ = c.Apply(&Deposited{Amount: 10})
//	_ = c.Apply(&Withdrawn{Amount: 5})
//	tail, err := c.Commit(ctx)
//
// Begin, Apply and Rollback never block; only Commit and Load touch
// storage. A Changable is single-writer. Separate instances of the same
// logical aggregate are arbitrated by the storage tail check: the loser
// of a concurrent commit gets [ErrConflict] and must Load and reapply.
//
// # Reversibility
//
// A record without a compensating event is permanently non-reversible.
// By default Apply rejects such events with [ErrIrreversibleEvent];
// opening the change with [AllowIrreversible] admits them and disables
// Rollback for that change. Aggregates declare irreversible events via
// the [Irreversibility] interface.
//
// # Storage
//
// [InMemoryStorage] is the reference implementation for tests and
// development. A NATS JetStream backend lives in adapters/nats.
// [Snapshotter] implementations let Load skip replaying long histories.
//
// # Undo/Redo
//
// [History] layers an undo/redo stack over an aggregate for purely
// in-memory editing flows, independent of the commit protocol.
package rev
