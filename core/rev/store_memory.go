package rev

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"sync"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

// InMemoryStorage is a simple, correct (optimistic) storage for
// tests and development.
type InMemoryStorage struct {
	mu      sync.Mutex
	log     *slog.Logger
	streams map[string][]Record
	subs    map[string]*memorySubscription
}

func NewInMemoryStorage() *InMemoryStorage {
	return &InMemoryStorage{
		log:     slog.Default().With(slog.String("storage", "memory")),
		streams: map[string][]Record{},
		subs:    map[string]*memorySubscription{},
	}
}

func (s *InMemoryStorage) Append(_ context.Context, change *Change) (ID, error) {
	if change.Empty() {
		return 0, ErrEmptyChange
	}

	s.mu.Lock()

	var (
		aggID  = change.AggregateID()
		stream = s.streams[aggID]
		tail   ID
	)
	if len(stream) > 0 {
		tail = stream[len(stream)-1].ID
	}
	if tail != change.Base() {
		s.mu.Unlock()
		return 0, fmt.Errorf(
			"%w: aggregate_id=%s base=%d tail=%d",
			ErrConflict, aggID, change.Base(), tail,
		)
	}

	records := change.Records()
	for i, r := range records {
		if err := r.Validate(); err != nil {
			s.mu.Unlock()
			return 0, err
		}
		if want := tail + ID(i) + 1; r.ID != want {
			s.mu.Unlock()
			return 0, fmt.Errorf("record id %d is not contiguous, want %d", r.ID, want)
		}
	}

	s.streams[aggID] = append(stream, records...)
	last := records[len(records)-1].ID

	// Enqueue while still holding the lock so subscribers observe
	// commit order across committers. dispatch never blocks, it only
	// queues for the drain goroutine.
	for _, sub := range s.subs {
		sub.dispatch(records)
	}
	s.mu.Unlock()

	s.log.Debug("append",
		slog.String("aggregate_id", aggID),
		slog.Int("num_records", len(records)),
		last.SlogAttrWithKey("tail"),
	)

	return last, nil
}

func (s *InMemoryStorage) Load(ctx context.Context, aggregateID string, from ID) iter.Seq2[Record, error] {
	return func(yield func(Record, error) bool) {
		// Every range takes an independent snapshot of the committed
		// prefix.
		s.mu.Lock()
		stream := s.streams[aggregateID]
		out := make([]Record, 0, len(stream))
		for _, r := range stream {
			if r.ID >= from {
				out = append(out, r)
			}
		}
		s.mu.Unlock()

		for _, r := range out {
			if err := ctx.Err(); err != nil {
				yield(Record{}, err)
				return
			}
			if !yield(r, nil) {
				return
			}
		}
	}
}

// Tail returns the last committed ID for aggregateID, 0 when it has no
// history.
func (s *InMemoryStorage) Tail(aggregateID string) ID {
	s.mu.Lock()
	defer s.mu.Unlock()
	stream := s.streams[aggregateID]
	if len(stream) == 0 {
		return 0
	}
	return stream[len(stream)-1].ID
}

func (s *InMemoryStorage) Watch(ctx context.Context, opts ...WatchOption) (Subscription, error) {
	options := NewWatchOpts(opts...)

	s.mu.Lock()

	sub := newMemorySubscription(options)
	subID := gonanoid.Must()
	sub.onCancel = func() {
		s.mu.Lock()
		delete(s.subs, subID)
		s.mu.Unlock()
	}

	// Queue the history before registering for live dispatch so the
	// subscriber sees records in commit order.
	if options.DeliverPolicy() == DeliverAllPolicy {
		for _, stream := range s.streams {
			sub.dispatch(stream)
		}
	}
	s.subs[subID] = sub
	s.mu.Unlock()

	context.AfterFunc(ctx, sub.Cancel)
	go sub.drain()

	return sub, nil
}

var _ EventStorage = (*InMemoryStorage)(nil)
var _ Watcher = (*InMemoryStorage)(nil)

// === Subscription ===

type memorySubscription struct {
	opts     WatchOpts
	ch       chan Record
	done     chan struct{}
	onCancel func()

	mu      sync.Mutex
	cond    *sync.Cond
	pending []Record
	closed  bool
}

func newMemorySubscription(opts WatchOpts) *memorySubscription {
	sub := &memorySubscription{
		opts: opts,
		ch:   make(chan Record, 64),
		done: make(chan struct{}),
	}
	sub.cond = sync.NewCond(&sub.mu)
	return sub
}

func (m *memorySubscription) Chan() <-chan Record { return m.ch }

func (m *memorySubscription) Cancel() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	close(m.done)
	m.cond.Signal()
	m.mu.Unlock()
	if m.onCancel != nil {
		m.onCancel()
	}
}

func (m *memorySubscription) dispatch(records []Record) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	for _, r := range records {
		if m.opts.Match(r) {
			m.pending = append(m.pending, r)
		}
	}
	m.cond.Signal()
}

// drain moves queued records into the channel, preserving commit order
// without blocking appenders.
func (m *memorySubscription) drain() {
	defer close(m.ch)
	for {
		m.mu.Lock()
		for len(m.pending) == 0 && !m.closed {
			m.cond.Wait()
		}
		if m.closed && len(m.pending) == 0 {
			m.mu.Unlock()
			return
		}
		batch := m.pending
		m.pending = nil
		m.mu.Unlock()

		for _, r := range batch {
			select {
			case m.ch <- r:
			case <-m.done:
				return
			}
		}
	}
}
