package rev

import (
	"encoding/json"
	"fmt"
	"time"
)

// Record is the unit of persistence: one event paired with the
// compensating event that reverses it. Once appended to an EventStorage
// a record is immutable; there is no update and no delete.
type Record struct {
	// ID is the per-aggregate position. While a record sits in an
	// uncommitted Change the ID is provisional; Append either confirms
	// the whole batch or rejects it.
	ID ID `json:"id"`
	// RecordID is a globally unique identifier, used for publish
	// deduplication by backends.
	RecordID string `json:"record_id"`
	// AggregateID identifies the aggregate instance this record
	// belongs to.
	AggregateID string `json:"aggregate_id"`
	// Type is the event type name used for decode routing.
	Type string `json:"type"`
	// Data is the JSON-encoded event payload.
	Data json.RawMessage `json:"data"`
	// AntiType and AntiData hold the compensating event derived from
	// the state the event was applied to. An empty AntiType marks the
	// record as permanently non-reversible.
	AntiType string          `json:"anti_type,omitempty"`
	AntiData json.RawMessage `json:"anti_data,omitempty"`
	// OccurredAt is when the event was applied.
	OccurredAt time.Time `json:"occurred_at"`
}

// Reversible reports whether the record carries a compensating event.
func (r Record) Reversible() bool { return r.AntiType != "" }

func (r Record) Validate() error {
	if r.ID == 0 {
		return fmt.Errorf("record id is zero")
	}
	if r.RecordID == "" {
		return fmt.Errorf("record record_id is empty")
	}
	if r.AggregateID == "" {
		return fmt.Errorf("record aggregate id is empty")
	}
	if r.Type == "" {
		return fmt.Errorf("record type is empty")
	}
	if r.OccurredAt.IsZero() {
		return fmt.Errorf("record occurred at is zero")
	}
	return nil
}
