package rev

import "fmt"

// History is an in-memory undo/redo stack over an aggregate. Each
// applied event is recorded together with its compensating event; Undo
// applies the compensating event and parks the pair on the redo stack,
// Redo replays the original event. History never touches storage and is
// independent of the Changable commit protocol.
//
// Irreversible events have no place in an undo history and are rejected
// at Apply time.
type History struct {
	agg   Aggregate
	undos []historyEntry
	redos []historyEntry
}

type historyEntry struct {
	event any
	anti  any
}

func NewHistory(agg Aggregate) *History {
	return &History{agg: agg}
}

// Apply validates and applies event and records it for undo. A new edit
// clears the redo stack.
func (h *History) Apply(event any) error {
	if irreversible(h.agg, event) {
		return fmt.Errorf("%w: %T", ErrIrreversibleEvent, event)
	}
	anti, err := h.agg.Apply(event)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrApplyInconsistent, err)
	}
	if anti == nil {
		panic(fmt.Sprintf(
			"rev: aggregate %T applied irreversible event %T without declaring it via Irreversibility",
			h.agg, event,
		))
	}
	h.undos = append(h.undos, historyEntry{event: event, anti: anti})
	h.redos = nil
	return nil
}

// Undo reverses the most recent event. It reports false when there is
// nothing to undo.
func (h *History) Undo() bool {
	if len(h.undos) == 0 {
		return false
	}
	e := h.undos[len(h.undos)-1]
	h.undos = h.undos[:len(h.undos)-1]
	mustApplyAnti(h.agg, e.anti)
	h.redos = append(h.redos, e)
	return true
}

// Redo replays the most recently undone event. It reports false when
// there is nothing to redo.
func (h *History) Redo() bool {
	if len(h.redos) == 0 {
		return false
	}
	e := h.redos[len(h.redos)-1]
	h.redos = h.redos[:len(h.redos)-1]
	// Re-deriving the compensating event keeps the pair consistent
	// with the state it now applies to.
	anti, err := h.agg.Apply(e.event)
	if err != nil {
		panic(fmt.Sprintf("rev: aggregate %T rejected redo of %T: %v", h.agg, e.event, err))
	}
	h.undos = append(h.undos, historyEntry{event: e.event, anti: anti})
	return true
}

// UndoAll unwinds the whole recorded history.
func (h *History) UndoAll() {
	for h.Undo() {
	}
}

// Len returns the number of undoable events.
func (h *History) Len() int { return len(h.undos) }

// FutureLen returns the number of redoable events.
func (h *History) FutureLen() int { return len(h.redos) }

// PastEvents returns the undoable events, oldest first.
func (h *History) PastEvents() []any {
	out := make([]any, len(h.undos))
	for i, e := range h.undos {
		out[i] = e.event
	}
	return out
}

// FutureEvents returns the redoable events in redo order.
func (h *History) FutureEvents() []any {
	out := make([]any, 0, len(h.redos))
	for i := len(h.redos) - 1; i >= 0; i-- {
		out = append(out, h.redos[i].event)
	}
	return out
}

// Forget drops all recorded history without touching state.
func (h *History) Forget() {
	h.undos = nil
	h.redos = nil
}
