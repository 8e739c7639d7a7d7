package rev

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/codewandler/revent-go/internal/reflector"
)

var ErrUnknownEventType = errors.New("unknown event type")

// EventRegistry maps event type names to constructors so persisted
// records can be decoded back into domain events.
type EventRegistry struct {
	mu   sync.RWMutex
	news map[string]func() any
}

func NewRegistry() *EventRegistry {
	return &EventRegistry{news: map[string]func() any{}}
}

func (r *EventRegistry) Register(eventType string, ctor func() any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.news[eventType] = ctor
}

// DecodeEvent decodes the forward event of rec.
func (r *EventRegistry) DecodeEvent(rec Record) (any, error) {
	return r.decode(rec.Type, rec.Data)
}

// DecodeAnti decodes the compensating event of rec. Calling it on a
// non-reversible record is an error.
func (r *EventRegistry) DecodeAnti(rec Record) (any, error) {
	if !rec.Reversible() {
		return nil, fmt.Errorf("record %d has no compensating event", rec.ID)
	}
	return r.decode(rec.AntiType, rec.AntiData)
}

func (r *EventRegistry) decode(eventType string, data json.RawMessage) (any, error) {
	r.mu.RLock()
	ctor, ok := r.news[eventType]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownEventType, eventType)
	}
	ev := ctor()
	if data != nil {
		if err := json.Unmarshal(data, ev); err != nil {
			return nil, err
		}
	}
	return ev, nil
}

type Registrar interface {
	Register(eventType string, ctor func() any)
}

// Event returns a reflection-free constructor for an event of type T.
// Each call to the returned function constructs a fresh *T.
func Event[T any]() func() any { return func() any { return new(T) } }

// RegisterEventFor registers T under its derived type name.
func RegisterEventFor[T any](r Registrar) {
	r.Register(reflector.NameFor[T](), func() any { return any(new(T)) })
}

// RegisterEvents registers event constructors. Each constructor is
// called once to derive the type name; future decodes produce fresh
// instances per call.
func RegisterEvents(r Registrar, ctors ...func() any) {
	for _, ctor := range ctors {
		sample := ctor()
		r.Register(eventTypeOf(sample), ctor)
	}
}

func eventTypeOf(ev any) string {
	if t, ok := ev.(interface{ EventType() string }); ok {
		return t.EventType()
	}
	return reflector.NameOf(ev)
}
