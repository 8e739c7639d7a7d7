package rev

import (
	"fmt"
	"log/slog"
	"testing"
)

func init() {
	slog.SetLogLoggerLevel(slog.LevelDebug)
}

// counterAgg is the minimal in-package test aggregate. added is its own
// inverse (negated); cleared has none.
type counterAgg struct {
	ID    string `json:"id"`
	Count int    `json:"count"`
}

type (
	added   struct{ N int }
	cleared struct{}
)

func newCounter(id string) *counterAgg { return &counterAgg{ID: id} }

func (c *counterAgg) AggregateID() string { return c.ID }

func (c *counterAgg) Register(r Registrar) {
	RegisterEvents(r, Event[added](), Event[cleared]())
}

func (c *counterAgg) Apply(event any) (any, error) {
	switch e := event.(type) {
	case *added:
		if c.Count+e.N < 0 {
			return nil, fmt.Errorf("count cannot go below zero: %d%+d", c.Count, e.N)
		}
		c.Count += e.N
		return &added{N: -e.N}, nil
	case *cleared:
		c.Count = 0
		return nil, nil
	}
	return nil, fmt.Errorf("unknown event: %T", event)
}

func (c *counterAgg) Irreversible(event any) bool {
	_, ok := event.(*cleared)
	return ok
}

func mustOpenChange(t *testing.T, c *Changable) *Change {
	t.Helper()
	if err := c.Begin(); err != nil {
		t.Fatalf("begin: %v", err)
	}
	return c.trx
}
