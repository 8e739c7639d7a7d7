package nats

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/codewandler/revent-go/core/rev"
	"github.com/codewandler/revent-go/core/rev/revtests/domain"
)

func newTestStorage(t *testing.T) *Storage {
	connect := NewTestContainer(t)
	s, err := NewStorage(StorageConfig{
		Connect:       connect,
		StreamName:    "REVENT_TEST",
		SubjectPrefix: "revent.test",
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStorage_CommitAndReplay(t *testing.T) {
	storage := newTestStorage(t)

	acc := domain.NewAccount("acc-1")
	c := rev.NewChangable(acc, storage)
	require.NoError(t, c.Load(t.Context()))

	require.NoError(t, c.Begin())
	require.NoError(t, c.Apply(&domain.Deposited{Amount: 10}))
	require.NoError(t, c.Apply(&domain.Withdrawn{Amount: 5}))
	tail, err := c.Commit(t.Context())
	require.NoError(t, err)
	require.EqualValues(t, 2, tail)

	// Second change on the advanced tail.
	require.NoError(t, c.Begin())
	require.NoError(t, c.Apply(&domain.Deposited{Amount: 3}))
	tail, err = c.Commit(t.Context())
	require.NoError(t, err)
	require.EqualValues(t, 3, tail)

	fresh := domain.NewAccount("acc-1")
	c2 := rev.NewChangable(fresh, storage)
	require.NoError(t, c2.Load(t.Context()))
	require.EqualValues(t, 8, fresh.Balance)
	require.EqualValues(t, 3, c2.Tail())
}

func TestStorage_Conflict(t *testing.T) {
	storage := newTestStorage(t)

	a := rev.NewChangable(domain.NewAccount("acc-1"), storage)
	require.NoError(t, a.Load(t.Context()))
	b := rev.NewChangable(domain.NewAccount("acc-1"), storage)
	require.NoError(t, b.Load(t.Context()))

	require.NoError(t, a.Begin())
	require.NoError(t, a.Apply(&domain.Deposited{Amount: 1}))
	require.NoError(t, b.Begin())
	require.NoError(t, b.Apply(&domain.Deposited{Amount: 2}))

	_, err := a.Commit(t.Context())
	require.NoError(t, err)
	_, err = b.Commit(t.Context())
	require.ErrorIs(t, err, rev.ErrConflict)
}

func TestStorage_LoadFrom(t *testing.T) {
	storage := newTestStorage(t)

	acc := domain.NewAccount("acc-1")
	c := rev.NewChangable(acc, storage)
	require.NoError(t, c.Load(t.Context()))

	for i := 0; i < 3; i++ {
		require.NoError(t, c.Begin())
		require.NoError(t, c.Apply(&domain.Deposited{Amount: 1}))
		_, err := c.Commit(t.Context())
		require.NoError(t, err)
	}

	var got []rev.ID
	for rec, err := range storage.Load(t.Context(), "acc-1", 2) {
		require.NoError(t, err)
		got = append(got, rec.ID)
	}
	require.Equal(t, []rev.ID{2, 3}, got)

	// No records for an unknown aggregate.
	n := 0
	for _, err := range storage.Load(t.Context(), "nope", 1) {
		require.NoError(t, err)
		n++
	}
	require.Equal(t, 0, n)
}

func TestStorage_Watch(t *testing.T) {
	storage := newTestStorage(t)

	sub, err := storage.Watch(t.Context(), rev.WithWatchAggregate("acc-1"))
	require.NoError(t, err)
	defer sub.Cancel()

	acc := domain.NewAccount("acc-1")
	c := rev.NewChangable(acc, storage)
	require.NoError(t, c.Load(t.Context()))
	require.NoError(t, c.Begin())
	require.NoError(t, c.Apply(&domain.Deposited{Amount: 10}))
	_, err = c.Commit(t.Context())
	require.NoError(t, err)

	select {
	case rec := <-sub.Chan():
		require.EqualValues(t, 1, rec.ID)
		require.Equal(t, "acc-1", rec.AggregateID)
	case <-time.After(10 * time.Second):
		t.Fatal("timed out waiting for record")
	}

	// Cancel drains the consumer and then closes the channel.
	sub.Cancel()
	deadline := time.After(10 * time.Second)
	for {
		select {
		case _, ok := <-sub.Chan():
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("channel not closed after cancel")
		}
	}
}

func TestSnapshotter(t *testing.T) {
	connect := NewTestContainer(t)
	s, err := NewSnapshotter(SnapshotterConfig{Connect: connect, Bucket: "revent_test"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	_, err = s.LoadSnapshot(t.Context(), "acc-1")
	require.ErrorIs(t, err, rev.ErrSnapshotNotFound)

	acc := domain.NewAccount("acc-1")
	acc.Balance = 25
	ss, err := rev.NewSnapshot(acc, 4, rev.DefaultIDGenerator())
	require.NoError(t, err)
	require.NoError(t, s.SaveSnapshot(t.Context(), ss))

	got, err := s.LoadSnapshot(t.Context(), "acc-1")
	require.NoError(t, err)
	require.EqualValues(t, 4, got.ID)

	restored := domain.NewAccount("acc-1")
	require.NoError(t, rev.RestoreSnapshot(restored, got))
	require.EqualValues(t, 25, restored.Balance)
}
