package rev

// Aggregate is the domain contract plugged into a Changable. The core
// never mutates domain state itself: every mutation, forward or
// compensating, goes through Apply.
type Aggregate interface {
	// AggregateID returns the identity of this instance.
	AggregateID() string

	// Apply validates event against the current state. On rejection it
	// returns a non-nil error and must leave state completely
	// untouched. On success it mutates state and returns the
	// compensating event derived from the state before the mutation:
	// applying anti immediately afterwards must restore that exact
	// state. A nil anti marks the event as irreversible; such events
	// must also be declared via Irreversibility.
	Apply(event any) (anti any, err error)

	// Register registers the aggregate's event vocabulary so persisted
	// records can be decoded during replay.
	Register(r Registrar)
}

// Irreversibility is implemented by aggregates whose vocabulary
// includes events with no true inverse. Declaring them up front lets a
// Changable reject them before any mutation happens, keeping rollback
// sound. Aggregates with a fully reversible vocabulary do not implement
// this.
type Irreversibility interface {
	// Irreversible reports whether applying event would yield no
	// compensating event.
	Irreversible(event any) bool
}

func irreversible(agg Aggregate, event any) bool {
	if m, ok := agg.(Irreversibility); ok {
		return m.Irreversible(event)
	}
	return false
}
