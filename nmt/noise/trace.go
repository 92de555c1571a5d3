package noise

import (
	roaring "github.com/RoaringBitmap/roaring"
)

// RowTrace records what happened to one batch row.
type RowTrace struct {
	Original int // live tokens before corruption
	Kept     int // live tokens after deletion
	Length   int // live tokens written to the output row
	// Inserted holds the output positions of freshly inserted tokens.
	Inserted *roaring.Bitmap
}

// Trace is the per-row record of a traced Apply call.
type Trace struct {
	Rows []RowTrace
}

func newTrace(rows int) *Trace {
	return &Trace{Rows: make([]RowTrace, rows)}
}

func (t *Trace) record(row int, s rowStat) {
	bm := roaring.New()
	bm.AddMany(s.inserted)
	t.Rows[row] = RowTrace{
		Original: s.original,
		Kept:     s.kept,
		Length:   s.length,
		Inserted: bm,
	}
}

// Deleted returns the number of tokens dropped across the batch.
func (t *Trace) Deleted() int {
	n := 0
	for _, r := range t.Rows {
		n += r.Original - r.Kept
	}
	return n
}

// InsertedCount returns the number of tokens inserted across the batch.
func (t *Trace) InsertedCount() uint64 {
	var n uint64
	for _, r := range t.Rows {
		if r.Inserted != nil {
			n += r.Inserted.GetCardinality()
		}
	}
	return n
}

// rowStat is collected for every row; bitmaps are only built when tracing.
type rowStat struct {
	original int
	kept     int
	length   int
	inserted []uint32
}
