package rev

// Change is the in-flight batch of records produced by one
// Begin()...Commit() span of a Changable. All records belong to one
// aggregate and carry contiguous provisional IDs starting at Base+1.
// A change is appendable only while in flight; commit hands it to the
// storage and discards it, rollback discards it after compensation.
type Change struct {
	aggregateID       string
	base              ID
	records           []Record
	undo              []any // decoded compensating events, parallel to records
	allowIrreversible bool
	reversible        bool
}

func newChange(aggregateID string, base ID, allowIrreversible bool) *Change {
	return &Change{
		aggregateID:       aggregateID,
		base:              base,
		allowIrreversible: allowIrreversible,
		reversible:        true,
	}
}

// AggregateID returns the aggregate all records of this change belong to.
func (c *Change) AggregateID() string { return c.aggregateID }

// Base is the aggregate tail observed when the change was opened.
// Append compares it against the current storage tail; a mismatch means
// another committer won and yields ErrConflict.
func (c *Change) Base() ID { return c.base }

// Len returns the number of in-flight records.
func (c *Change) Len() int { return len(c.records) }

// Empty reports whether nothing was applied since the change opened.
func (c *Change) Empty() bool { return len(c.records) == 0 }

// LastID is the provisional ID of the newest record, or Base for an
// empty change.
func (c *Change) LastID() ID { return c.base + ID(len(c.records)) }

// Records returns a copy of the in-flight records in apply order.
func (c *Change) Records() []Record {
	out := make([]Record, len(c.records))
	copy(out, c.records)
	return out
}

// Reversible reports whether every record still carries a compensating
// event, i.e. the change can be rolled back.
func (c *Change) Reversible() bool { return c.reversible }

func (c *Change) push(r Record, anti any) {
	c.records = append(c.records, r)
	c.undo = append(c.undo, anti)
	if anti == nil {
		c.reversible = false
	}
}
