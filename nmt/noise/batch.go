package noise

import (
	"fmt"

	internal "github.com/ZanzyTHEbar/nmt-denoise/nmt"
)

// Tensor is a batch of token ids living in some numeric backend. HostInt32
// materializes the values into host memory in row-major order.
type Tensor interface {
	Shape() []int
	HostInt32() ([]int32, error)
}

// Batch is a host-resident (batch, maxLen, 1) tensor of token ids.
type Batch struct {
	rows   int
	maxLen int
	data   []int32
}

var _ Tensor = (*Batch)(nil)

// NewBatch allocates an all-PAD batch.
func NewBatch(rows, maxLen int) *Batch {
	if rows < 0 {
		rows = 0
	}
	if maxLen < 0 {
		maxLen = 0
	}
	return &Batch{rows: rows, maxLen: maxLen, data: make([]int32, rows*maxLen)}
}

// FromRows builds a batch from unpadded sentences, padding each to maxLen.
// When maxLen <= 0 the longest sentence sets it.
func FromRows(sentences [][]int32, maxLen int) (*Batch, error) {
	if maxLen <= 0 {
		for _, s := range sentences {
			maxLen = max(maxLen, len(s))
		}
	}
	b := NewBatch(len(sentences), maxLen)
	for i, s := range sentences {
		if len(s) > maxLen {
			return nil, fmt.Errorf("sentence %d has %d tokens, exceeds max length %d", i, len(s), maxLen)
		}
		copy(b.Row(i), s)
	}
	return b, nil
}

// FromTensor copies t into host memory, checking the (batch, maxLen, 1) layout.
func FromTensor(t Tensor) (*Batch, error) {
	if t == nil {
		return nil, fmt.Errorf("%w: nil tensor", ErrContractViolation)
	}
	shape := t.Shape()
	if len(shape) != 3 {
		return nil, fmt.Errorf("%w: expected rank 3 (batch, length, 1), got shape %v", ErrContractViolation, shape)
	}
	if shape[2] != 1 {
		return nil, fmt.Errorf("%w: trailing dimension must be 1, got shape %v", ErrContractViolation, shape)
	}
	if shape[0] < 0 || shape[1] < 0 {
		return nil, fmt.Errorf("%w: negative dimension in shape %v", ErrContractViolation, shape)
	}
	data, err := t.HostInt32()
	if err != nil {
		return nil, fmt.Errorf("failed to materialize batch on host: %w", err)
	}
	if len(data) != shape[0]*shape[1] {
		return nil, fmt.Errorf("%w: shape %v holds %d elements, got %d",
			ErrContractViolation, shape, shape[0]*shape[1], len(data))
	}
	b := NewBatch(shape[0], shape[1])
	copy(b.data, data)
	return b, nil
}

// Shape returns (batch, maxLen, 1).
func (b *Batch) Shape() []int { return []int{b.rows, b.maxLen, 1} }

// HostInt32 returns a copy of the row-major data.
func (b *Batch) HostInt32() ([]int32, error) {
	out := make([]int32, len(b.data))
	copy(out, b.data)
	return out, nil
}

func (b *Batch) Rows() int   { return b.rows }
func (b *Batch) MaxLen() int { return b.maxLen }

// Row returns row i as a view into the batch.
func (b *Batch) Row(i int) []int32 {
	return b.data[i*b.maxLen : (i+1)*b.maxLen : (i+1)*b.maxLen]
}

// Sequence returns the live tokens of row i with padding removed.
func (b *Batch) Sequence(i int) []int32 {
	return stripPadding(b.Row(i))
}

// Sequences returns every row with padding removed.
func (b *Batch) Sequences() [][]int32 {
	out := make([][]int32, b.rows)
	for i := range out {
		out[i] = b.Sequence(i)
	}
	return out
}

// stripPadding drops every PAD id. Padding is only ever appended at the
// tail upstream, so no content token is lost.
func stripPadding(row []int32) []int32 {
	out := make([]int32, 0, len(row))
	for _, tok := range row {
		if tok != internal.PadID {
			out = append(out, tok)
		}
	}
	return out
}

// writeRow stores seq at the start of dst and pads the remainder.
func writeRow(dst, seq []int32) {
	n := copy(dst, seq)
	for i := n; i < len(dst); i++ {
		dst[i] = internal.PadID
	}
}
