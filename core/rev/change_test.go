package rev

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func testRecord(id ID, aggID string) Record {
	return Record{
		ID:          id,
		RecordID:    DefaultIDGenerator()(),
		AggregateID: aggID,
		Type:        "test.event",
		Data:        []byte(`{}`),
		AntiType:    "test.event",
		AntiData:    []byte(`{}`),
		OccurredAt:  time.Now(),
	}
}

func TestChange_IDs(t *testing.T) {
	c := newChange("agg-1", 7, false)
	require.True(t, c.Empty())
	require.True(t, c.Reversible())
	require.EqualValues(t, 7, c.Base())
	require.EqualValues(t, 7, c.LastID())

	c.push(testRecord(8, "agg-1"), &added{N: -1})
	c.push(testRecord(9, "agg-1"), &added{N: -2})

	require.EqualValues(t, 2, c.Len())
	require.EqualValues(t, 9, c.LastID())
	require.True(t, c.Reversible())
}

func TestChange_RecordsIsACopy(t *testing.T) {
	c := newChange("agg-1", 0, false)
	c.push(testRecord(1, "agg-1"), &added{N: -1})

	out := c.Records()
	out[0].ID = 99
	require.EqualValues(t, 1, c.Records()[0].ID)
}

func TestChange_IrreversibleRecord(t *testing.T) {
	c := newChange("agg-1", 0, true)
	c.push(testRecord(1, "agg-1"), &added{N: -1})
	require.True(t, c.Reversible())

	rec := testRecord(2, "agg-1")
	rec.AntiType = ""
	rec.AntiData = nil
	c.push(rec, nil)
	require.False(t, c.Reversible())
}

func TestChangable_ChangeBaseTracksTail(t *testing.T) {
	c := NewChangable(newCounter("c-1"), NewInMemoryStorage())

	trx := mustOpenChange(t, c)
	require.EqualValues(t, 0, trx.Base())
	require.NoError(t, c.Apply(&added{N: 5}))
	require.EqualValues(t, 1, trx.LastID())

	_, err := c.Commit(t.Context())
	require.NoError(t, err)

	trx = mustOpenChange(t, c)
	require.EqualValues(t, 1, trx.Base())
	require.EqualValues(t, 1, trx.LastID())
}

func TestRecord_Validate(t *testing.T) {
	rec := testRecord(1, "agg-1")
	require.NoError(t, rec.Validate())
	require.True(t, rec.Reversible())

	for name, breakIt := range map[string]func(*Record){
		"zero id":      func(r *Record) { r.ID = 0 },
		"no record id": func(r *Record) { r.RecordID = "" },
		"no aggregate": func(r *Record) { r.AggregateID = "" },
		"no type":      func(r *Record) { r.Type = "" },
		"no time":      func(r *Record) { r.OccurredAt = time.Time{} },
	} {
		t.Run(name, func(t *testing.T) {
			broken := rec
			breakIt(&broken)
			require.Error(t, broken.Validate())
		})
	}
}
