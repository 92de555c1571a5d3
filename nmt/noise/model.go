package noise

import (
	"context"
	"fmt"
	"sync"

	internal "github.com/ZanzyTHEbar/nmt-denoise/nmt"

	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc/pool"
)

// Model corrupts batches for denoising autoencoder training. Each sentence is
// run through deletion, then permutation, then insertion.
type Model struct {
	cfg      Config
	reserved int
	workers  int
	logger   zerolog.Logger

	// mu guards src, the only state shared between calls.
	mu  sync.Mutex
	src Source
}

// Option customizes a Model.
type Option func(*Model)

// WithSource injects the random source. Use NewSource for reproducible runs.
func WithSource(src Source) Option {
	return func(m *Model) { m.src = src }
}

// WithReservedSymbols sets the size of the reserved id block inserted tokens
// are offset past. Defaults to len(internal.VocabSymbols).
func WithReservedSymbols(n int) Option {
	return func(m *Model) { m.reserved = n }
}

// WithWorkers bounds how many rows are corrupted concurrently.
func WithWorkers(n int) Option {
	return func(m *Model) { m.workers = n }
}

// WithLogger sets the logger used for per-batch debug output.
func WithLogger(l zerolog.Logger) Option {
	return func(m *Model) { m.logger = l }
}

// NewModel validates cfg and builds a Model. A configuration that disables
// every mechanism fails with ErrIneffectiveConfig.
func NewModel(cfg Config, opts ...Option) (*Model, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	m := &Model{
		cfg:      cfg,
		reserved: len(internal.VocabSymbols),
		workers:  1,
		logger:   zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.reserved < 0 {
		return nil, fmt.Errorf("%w: reserved symbol count must be >= 0, got %d", ErrInvalidConfig, m.reserved)
	}
	if m.workers < 1 {
		m.workers = 1
	}
	if m.src == nil {
		m.src = NewRandomSource()
	}
	return m, nil
}

// Config returns the configuration the model was built with.
func (m *Model) Config() Config { return m.cfg }

// ReservedSymbols returns the offset applied to inserted ids.
func (m *Model) ReservedSymbols() int { return m.reserved }

// Apply returns a noisy copy of t with the same (batch, maxLen, 1) shape.
// t is never modified.
func (m *Model) Apply(ctx context.Context, t Tensor) (*Batch, error) {
	out, _, err := m.apply(ctx, t, false)
	return out, err
}

// ApplyTraced is Apply plus a per-row record of deletions and insertions.
func (m *Model) ApplyTraced(ctx context.Context, t Tensor) (*Batch, *Trace, error) {
	return m.apply(ctx, t, true)
}

func (m *Model) apply(ctx context.Context, t Tensor, traced bool) (*Batch, *Trace, error) {
	in, err := FromTensor(t)
	if err != nil {
		return nil, nil, err
	}

	out := NewBatch(in.Rows(), in.MaxLen())
	stats := make([]rowStat, in.Rows())
	seeds := m.rowSeeds(in.Rows())

	p := pool.New().WithMaxGoroutines(m.workers).WithContext(ctx).WithCancelOnError()
	for b := 0; b < in.Rows(); b++ {
		p.Go(func(ctx context.Context) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			seq, st := m.corrupt(in.Sequence(b), in.MaxLen(), NewSource(seeds[b]))
			writeRow(out.Row(b), seq)
			stats[b] = st
			return nil
		})
	}
	if err := p.Wait(); err != nil {
		return nil, nil, fmt.Errorf("noise application aborted: %w", err)
	}

	var trace *Trace
	if traced {
		trace = newTrace(in.Rows())
	}
	deleted, inserted := 0, 0
	for b, st := range stats {
		deleted += st.original - st.kept
		inserted += len(st.inserted)
		if trace != nil {
			trace.record(b, st)
		}
	}
	m.logger.Debug().
		Int("rows", in.Rows()).
		Int("max_len", in.MaxLen()).
		Int("deleted", deleted).
		Int("inserted", inserted).
		Msg("applied noise to batch")

	return out, trace, nil
}

// rowSeeds draws one seed per row from the shared source in row order, so a
// seeded model gives the same output whatever the worker count.
func (m *Model) rowSeeds(rows int) []uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	seeds := make([]uint64, rows)
	for i := range seeds {
		seeds[i] = m.src.Uint64()
	}
	return seeds
}

// corrupt runs the delete, permute, insert pipeline on one sentence.
func (m *Model) corrupt(seq []int32, maxLen int, rng Source) ([]int32, rowStat) {
	st := rowStat{original: len(seq)}
	seq = Delete(seq, m.cfg.Deletion, rng)
	st.kept = len(seq)
	seq = Permute(seq, m.cfg.Permutation, rng)
	seq, st.inserted = insert(seq, m.cfg.Insertion, m.cfg.InsertionVocab, m.reserved, maxLen, rng)
	st.length = len(seq)
	return seq, st
}
