package rev

import "log/slog"

// ID is the position of a record within its aggregate's history.
// IDs are assigned by the EventStorage, never by the caller, and are
// strictly increasing and contiguous per aggregate, starting at 1.
// The zero value means "no history". An ID serves both as the replay
// cursor for Load and as the optimistic-concurrency token checked by
// Append.
type ID uint64

func (id ID) Uint64() uint64                       { return uint64(id) }
func (id ID) SlogAttr() slog.Attr                  { return newSlogIDAttr("id", id) }
func (id ID) SlogAttrWithKey(key string) slog.Attr { return newSlogIDAttr(key, id) }

func newSlogIDAttr(key string, id ID) slog.Attr { return slog.Uint64(key, uint64(id)) }
