package embedding

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/ZanzyTHEbar/nmt-denoise/nmt/params"
	"github.com/ZanzyTHEbar/nmt-denoise/nmt/vocab"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Side selects which embedding table is replaced.
type Side string

const (
	Source Side = "source"
	Target Side = "target"
)

// ParseSide accepts "source"/"src" and "target"/"trg".
func ParseSide(s string) (Side, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "source", "src", "":
		return Source, nil
	case "target", "trg", "tgt":
		return Target, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedSide, s)
	}
}

// ParamName is the checkpoint key of the side's embedding matrix.
func (s Side) ParamName() string {
	if s == Target {
		return params.TargetEmbedWeight
	}
	return params.SourceEmbedWeight
}

func (s Side) short() string {
	if s == Target {
		return "trg"
	}
	return "src"
}

// Options configures Replace. Empty output paths are derived from the inputs.
// A zero CheckpointID reads the latest checkpoint in Params.
type Options struct {
	Params       string
	CheckpointID uuid.UUID
	EmbedFile    string
	Side         Side
	OutputParams string
	VocabFile    string
}

// Result describes what Replace wrote.
type Result struct {
	CheckpointID uuid.UUID
	OutputParams string
	VocabFile    string
	VocabSize    int
	Dim          int
}

func (o Options) withDefaults() Options {
	if o.Side == "" {
		o.Side = Source
	}
	base := filepath.Base(o.EmbedFile)
	if o.OutputParams == "" {
		o.OutputParams = o.Params + "." + o.Side.ParamName() + "-" + base
	}
	if o.VocabFile == "" {
		o.VocabFile = filepath.Join(filepath.Dir(o.OutputParams), "vocab."+o.Side.short()+".0."+base+".json")
	}
	return o
}

// Replacer splices pretrained vectors into checkpoints.
type Replacer struct {
	logger zerolog.Logger
}

// NewReplacer returns a Replacer that logs to logger.
func NewReplacer(logger zerolog.Logger) *Replacer {
	return &Replacer{logger: logger}
}

// Replace loads the vectors, writes the matching vocabulary, swaps the
// side's embedding matrix in the checkpoint and saves the result. Replacing
// the target side also resets target_output_bias to zeros.
func (r *Replacer) Replace(ctx context.Context, opts Options) (*Result, error) {
	if _, err := ParseSide(string(opts.Side)); err != nil {
		return nil, err
	}
	opts = opts.withDefaults()
	log := r.logger.With().Str("side", string(opts.Side)).Str("embed_file", opts.EmbedFile).Logger()

	vecs, err := LoadVecFile(opts.EmbedFile)
	if err != nil {
		return nil, err
	}
	log.Info().Int("vectors", len(vecs.Tokens)).Int("dim", vecs.Dim()).Msg("loaded pretrained vectors")

	v, err := vocab.FromEmbeddingTokens(vecs.Tokens)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", opts.EmbedFile, err)
	}
	if err := v.WriteJSON(opts.VocabFile); err != nil {
		return nil, err
	}
	log.Info().Str("path", opts.VocabFile).Int("size", v.Len()).Msg("wrote vocabulary")

	ck, err := loadCheckpoint(ctx, opts.Params, opts.CheckpointID)
	if err != nil {
		return nil, err
	}
	log.Info().Str("path", opts.Params).Str("checkpoint", ck.ID.String()).Msg("loaded checkpoint")
	orig, err := ck.Args.Get(opts.Side.ParamName())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", opts.Params, err)
	}
	spliced, err := Splice(orig, vecs.Weights, len(vocab.EmbeddingSymbols))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", opts.Params, err)
	}
	ck.Args.Set(opts.Side.ParamName(), spliced)
	if opts.Side == Target {
		ck.Args.Set(params.TargetOutputBias, params.ZeroVector(v.Len()))
	}

	parent := ck.ID
	ck.ID = uuid.New()
	ck.Created = time.Now().UTC()
	if err := params.StoreFor(opts.OutputParams).Save(ctx, ck, opts.OutputParams); err != nil {
		return nil, err
	}
	log.Info().Str("path", opts.OutputParams).Str("checkpoint", ck.ID.String()).Str("parent", parent.String()).Msg("saved checkpoint")

	return &Result{
		CheckpointID: ck.ID,
		OutputParams: opts.OutputParams,
		VocabFile:    opts.VocabFile,
		VocabSize:    v.Len(),
		Dim:          vecs.Dim(),
	}, nil
}

func loadCheckpoint(ctx context.Context, path string, id uuid.UUID) (*params.Checkpoint, error) {
	if id == uuid.Nil {
		return params.StoreFor(path).Load(ctx, path)
	}
	catalog, err := params.CatalogFor(path)
	if err != nil {
		return nil, err
	}
	return catalog.LoadID(ctx, path, id)
}
