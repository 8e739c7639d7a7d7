package rev

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestInMemoryStorage_AppendAndLoad(t *testing.T) {
	s := NewInMemoryStorage()

	c := newChange("agg-1", 0, false)
	c.push(testRecord(1, "agg-1"), &added{N: -1})
	c.push(testRecord(2, "agg-1"), &added{N: -2})

	tail, err := s.Append(t.Context(), c)
	require.NoError(t, err)
	require.EqualValues(t, 2, tail)
	require.EqualValues(t, 2, s.Tail("agg-1"))

	var got []ID
	for rec, err := range s.Load(t.Context(), "agg-1", 1) {
		require.NoError(t, err)
		got = append(got, rec.ID)
	}
	require.Equal(t, []ID{1, 2}, got)

	// from skips the prefix.
	got = nil
	for rec, err := range s.Load(t.Context(), "agg-1", 2) {
		require.NoError(t, err)
		got = append(got, rec.ID)
	}
	require.Equal(t, []ID{2}, got)
}

func TestInMemoryStorage_AppendEmpty(t *testing.T) {
	s := NewInMemoryStorage()
	_, err := s.Append(t.Context(), newChange("agg-1", 0, false))
	require.ErrorIs(t, err, ErrEmptyChange)
}

func TestInMemoryStorage_Conflict(t *testing.T) {
	s := NewInMemoryStorage()

	c1 := newChange("agg-1", 0, false)
	c1.push(testRecord(1, "agg-1"), &added{N: -1})
	_, err := s.Append(t.Context(), c1)
	require.NoError(t, err)

	// Same base again: stale committer loses.
	c2 := newChange("agg-1", 0, false)
	c2.push(testRecord(1, "agg-1"), &added{N: -2})
	_, err = s.Append(t.Context(), c2)
	require.ErrorIs(t, err, ErrConflict)

	// Nothing from the losing change is visible.
	n := 0
	for _, err := range s.Load(t.Context(), "agg-1", 1) {
		require.NoError(t, err)
		n++
	}
	require.Equal(t, 1, n)
}

func TestInMemoryStorage_RejectsGaps(t *testing.T) {
	s := NewInMemoryStorage()

	c := newChange("agg-1", 0, false)
	c.push(testRecord(1, "agg-1"), &added{N: -1})
	c.push(testRecord(3, "agg-1"), &added{N: -2}) // gap
	_, err := s.Append(t.Context(), c)
	require.ErrorContains(t, err, "not contiguous")
}

func TestInMemoryStorage_LoadIsRestartable(t *testing.T) {
	s := NewInMemoryStorage()

	c := newChange("agg-1", 0, false)
	for i := 1; i <= 3; i++ {
		c.push(testRecord(ID(i), "agg-1"), &added{N: -i})
	}
	_, err := s.Append(t.Context(), c)
	require.NoError(t, err)

	seq := s.Load(t.Context(), "agg-1", 1)

	// Ranging twice yields two independent full reads.
	for i := 0; i < 2; i++ {
		var got []ID
		for rec, err := range seq {
			require.NoError(t, err)
			got = append(got, rec.ID)
		}
		require.Equal(t, []ID{1, 2, 3}, got)
	}

	// Early break does not disturb a later range.
	for range seq {
		break
	}
	n := 0
	for range seq {
		n++
	}
	require.Equal(t, 3, n)
}

func TestInMemoryStorage_StreamsAreIndependent(t *testing.T) {
	s := NewInMemoryStorage()

	c1 := newChange("agg-1", 0, false)
	c1.push(testRecord(1, "agg-1"), &added{N: -1})
	_, err := s.Append(t.Context(), c1)
	require.NoError(t, err)

	// agg-2 starts at its own tail 0 regardless of agg-1.
	c2 := newChange("agg-2", 0, false)
	c2.push(testRecord(1, "agg-2"), &added{N: -1})
	_, err = s.Append(t.Context(), c2)
	require.NoError(t, err)

	require.EqualValues(t, 1, s.Tail("agg-1"))
	require.EqualValues(t, 1, s.Tail("agg-2"))
	require.EqualValues(t, 0, s.Tail("agg-3"))
}

func TestInMemoryStorage_Watch(t *testing.T) {
	s := NewInMemoryStorage()

	c1 := newChange("agg-1", 0, false)
	c1.push(testRecord(1, "agg-1"), &added{N: -1})
	_, err := s.Append(t.Context(), c1)
	require.NoError(t, err)

	sub, err := s.Watch(t.Context(),
		WithDeliverPolicy(DeliverAllPolicy),
		WithWatchAggregate("agg-1"),
	)
	require.NoError(t, err)
	defer sub.Cancel()

	// History first.
	rec := recvRecord(t, sub)
	require.EqualValues(t, 1, rec.ID)

	// Then live records; other aggregates are filtered out.
	other := newChange("agg-2", 0, false)
	other.push(testRecord(1, "agg-2"), &added{N: -1})
	_, err = s.Append(t.Context(), other)
	require.NoError(t, err)

	c2 := newChange("agg-1", 1, false)
	c2.push(testRecord(2, "agg-1"), &added{N: -2})
	_, err = s.Append(t.Context(), c2)
	require.NoError(t, err)

	rec = recvRecord(t, sub)
	require.EqualValues(t, 2, rec.ID)
	require.Equal(t, "agg-1", rec.AggregateID)
}

func TestInMemoryStorage_WatchOrderAcrossCommitters(t *testing.T) {
	s := NewInMemoryStorage()

	sub, err := s.Watch(t.Context(), WithWatchAggregate("agg-1"))
	require.NoError(t, err)
	defer sub.Cancel()

	// Two optimistic committers race single-record appends on one
	// aggregate, retrying on conflict. The subscription must still see
	// the records in commit order.
	const total = ID(50)

	var wg sync.WaitGroup
	wg.Add(2)
	for i := 0; i < 2; i++ {
		go func() {
			defer wg.Done()
			for {
				base := s.Tail("agg-1")
				if base >= total {
					return
				}
				c := newChange("agg-1", base, false)
				c.push(testRecord(base+1, "agg-1"), &added{N: -1})
				if _, err := s.Append(context.Background(), c); err != nil && !errors.Is(err, ErrConflict) {
					t.Errorf("append: %v", err)
					return
				}
			}
		}()
	}
	wg.Wait()

	for want := ID(1); want <= total; want++ {
		require.Equal(t, want, recvRecord(t, sub).ID)
	}
}

func recvRecord(t *testing.T, sub Subscription) Record {
	t.Helper()
	select {
	case rec, ok := <-sub.Chan():
		require.True(t, ok)
		return rec
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for record")
		return Record{}
	}
}
