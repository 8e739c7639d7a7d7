package rev

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// === Helpers ===

// NewTestChangable wires agg to a fresh in-memory storage and replays
// whatever it holds (nothing, for a fresh one).
func NewTestChangable(t *testing.T, agg Aggregate, opts ...ChangableOption) (*Changable, *InMemoryStorage) {
	t.Helper()
	storage := NewInMemoryStorage()
	c := NewChangable(agg, storage, opts...)
	require.NoError(t, c.Load(t.Context()))
	return c, storage
}

// MustCommit commits the open change and fails the test on error.
func MustCommit(t *testing.T, c *Changable) ID {
	t.Helper()
	id, err := c.Commit(t.Context())
	require.NoError(t, err)
	return id
}
