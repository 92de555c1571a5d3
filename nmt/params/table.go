// Package params holds named weight matrices and persists them as checkpoints.
package params

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/mat"
)

// Well-known parameter names.
const (
	SourceEmbedWeight = "source_embed_weight"
	TargetEmbedWeight = "target_embed_weight"
	TargetOutputBias  = "target_output_bias"
)

var (
	ErrMissingParam      = errors.New("missing parameter")
	ErrCorruptCheckpoint = errors.New("corrupt checkpoint")
	ErrSingleCheckpoint  = errors.New("checkpoint file holds a single checkpoint")
)

// Table maps parameter names to weight matrices. Vectors are stored as 1xN.
type Table struct {
	params map[string]*mat.Dense
}

func NewTable() *Table {
	return &Table{params: make(map[string]*mat.Dense)}
}

// Set stores m under name, replacing any previous value.
func (t *Table) Set(name string, m *mat.Dense) {
	t.params[name] = m
}

// Get returns the matrix stored under name.
func (t *Table) Get(name string) (*mat.Dense, error) {
	m, ok := t.params[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrMissingParam, name)
	}
	return m, nil
}

func (t *Table) Has(name string) bool {
	_, ok := t.params[name]
	return ok
}

func (t *Table) Len() int { return len(t.params) }

// Names returns the parameter names in sorted order.
func (t *Table) Names() []string {
	names := make([]string, 0, len(t.params))
	for name := range t.params {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ZeroVector returns a 1xn zero matrix, the layout used for bias vectors.
func ZeroVector(n int) *mat.Dense {
	return mat.NewDense(1, n, nil)
}

// Checkpoint is a saved set of model parameters: trainable args plus auxiliary state.
type Checkpoint struct {
	ID      uuid.UUID
	Created time.Time
	Args    *Table
	Aux     *Table
}

// NewCheckpoint wraps the tables with a fresh id.
func NewCheckpoint(args, aux *Table) *Checkpoint {
	if args == nil {
		args = NewTable()
	}
	if aux == nil {
		aux = NewTable()
	}
	return &Checkpoint{ID: uuid.New(), Created: time.Now().UTC(), Args: args, Aux: aux}
}

func encodeTable(t *Table) (map[string][]byte, error) {
	out := make(map[string][]byte, t.Len())
	for _, name := range t.Names() {
		data, err := t.params[name].MarshalBinary()
		if err != nil {
			return nil, fmt.Errorf("failed to encode parameter %q: %w", name, err)
		}
		out[name] = data
	}
	return out, nil
}

func decodeMatrix(name string, data []byte) (*mat.Dense, error) {
	var m mat.Dense
	if err := m.UnmarshalBinary(data); err != nil {
		return nil, fmt.Errorf("%w: parameter %q: %v", ErrCorruptCheckpoint, name, err)
	}
	return &m, nil
}

func decodeTable(raw map[string][]byte) (*Table, error) {
	t := NewTable()
	for name, data := range raw {
		m, err := decodeMatrix(name, data)
		if err != nil {
			return nil, err
		}
		t.Set(name, m)
	}
	return t, nil
}
