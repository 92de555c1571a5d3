package embedding

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ZanzyTHEbar/nmt-denoise/nmt/params"
	"github.com/ZanzyTHEbar/nmt-denoise/nmt/vocab"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"gonum.org/v1/gonum/mat"
)

const sampleVec = `3 2
haus 0.1 0.2
hund -1 1e-2

katze 3 4
`

func TestLoadVec(t *testing.T) {
	vecs, err := LoadVec(strings.NewReader(sampleVec))
	require.NoError(t, err)
	assert.Equal(t, []string{"haus", "hund", "katze"}, vecs.Tokens)
	assert.Equal(t, 2, vecs.Dim())
	assert.Equal(t, []float64{-1, 0.01}, mat.Row(nil, 1, vecs.Weights))
}

func TestLoadVecErrors(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr error
	}{
		{"empty", "", ErrMalformedVec},
		{"bad header", "three 2\n", ErrMalformedVec},
		{"header with one field", "3\n", ErrMalformedVec},
		{"short row", "1 3\nhaus 1 2\n", ErrDimensionMismatch},
		{"bad float", "1 2\nhaus 1 x\n", ErrMalformedVec},
		{"count mismatch", "2 2\nhaus 1 2\n", ErrMalformedVec},
		{"huge vocabulary size", "9223372036854775807 2\nhaus 1 2\n", ErrMalformedVec},
		{"vocabulary size beyond rows", "1000000000 300\nhaus" + strings.Repeat(" 0.5", 300) + "\n", ErrMalformedVec},
		{"huge dimension", "1 9223372036854775807\nhaus 1 2\n", ErrMalformedVec},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadVec(strings.NewReader(tt.input))
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestSplice(t *testing.T) {
	orig := mat.NewDense(5, 2, []float64{0, 0, 1, 1, 2, 2, 9, 9, 9, 9})
	vecs := mat.NewDense(2, 2, []float64{5, 6, 7, 8})

	out, err := Splice(orig, vecs, 3)
	require.NoError(t, err)
	want := mat.NewDense(5, 2, []float64{0, 0, 1, 1, 2, 2, 5, 6, 7, 8})
	assert.True(t, mat.Equal(want, out))

	_, err = Splice(orig, mat.NewDense(1, 3, nil), 3)
	assert.ErrorIs(t, err, ErrDimensionMismatch)

	_, err = Splice(mat.NewDense(2, 2, nil), vecs, 3)
	assert.Error(t, err)
}

func TestParseSide(t *testing.T) {
	for in, want := range map[string]Side{"source": Source, "SRC": Source, "target": Target, "trg": Target} {
		got, err := ParseSide(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseSide("middle")
	assert.ErrorIs(t, err, ErrUnsupportedSide)
}

type ReplaceTestSuite struct {
	suite.Suite
	dir       string
	params    string
	embedFile string
	replacer  *Replacer
}

func TestReplaceSuite(t *testing.T) {
	suite.Run(t, new(ReplaceTestSuite))
}

func (s *ReplaceTestSuite) SetupTest() {
	s.dir = s.T().TempDir()
	s.params = filepath.Join(s.dir, "params.best")
	s.embedFile = filepath.Join(s.dir, "wiki.de.vec")
	s.replacer = NewReplacer(zerolog.Nop())

	args := params.NewTable()
	args.Set(params.SourceEmbedWeight, mat.NewDense(4, 2, []float64{0, 0, 1, 1, 2, 2, 3, 3}))
	args.Set(params.TargetEmbedWeight, mat.NewDense(4, 2, []float64{-0, -0, -1, -1, -2, -2, -3, -3}))
	args.Set(params.TargetOutputBias, mat.NewDense(1, 4, []float64{1, 1, 1, 1}))
	s.Require().NoError(params.FileStore{}.Save(context.Background(), params.NewCheckpoint(args, nil), s.params))
	s.Require().NoError(os.WriteFile(s.embedFile, []byte(sampleVec), 0o644))
}

func (s *ReplaceTestSuite) loadOutput(path string) *params.Checkpoint {
	ck, err := params.FileStore{}.Load(context.Background(), path)
	s.Require().NoError(err)
	return ck
}

func (s *ReplaceTestSuite) TestReplaceSource() {
	res, err := s.replacer.Replace(context.Background(), Options{Params: s.params, EmbedFile: s.embedFile})
	s.Require().NoError(err)

	s.Equal(s.params+".source_embed_weight-wiki.de.vec", res.OutputParams)
	s.Equal(filepath.Join(s.dir, "vocab.src.0.wiki.de.vec.json"), res.VocabFile)
	s.Equal(6, res.VocabSize)
	s.Equal(2, res.Dim)

	ck := s.loadOutput(res.OutputParams)
	s.Equal(res.CheckpointID, ck.ID)
	src, err := ck.Args.Get(params.SourceEmbedWeight)
	s.Require().NoError(err)
	want := mat.NewDense(6, 2, []float64{0, 0, 1, 1, 2, 2, 0.1, 0.2, -1, 0.01, 3, 4})
	s.True(mat.Equal(want, src))

	bias, err := ck.Args.Get(params.TargetOutputBias)
	s.Require().NoError(err)
	s.Equal([]float64{1, 1, 1, 1}, mat.Row(nil, 0, bias), "source replacement leaves the target bias alone")

	v, err := vocab.LoadJSON(res.VocabFile)
	s.Require().NoError(err)
	id, ok := v.ID("katze")
	s.True(ok)
	s.Equal(5, id)
}

func (s *ReplaceTestSuite) TestReplaceTargetResetsBias() {
	out := filepath.Join(s.dir, "out.params")
	vocabFile := filepath.Join(s.dir, "vocab.json")
	res, err := s.replacer.Replace(context.Background(), Options{
		Params:       s.params,
		EmbedFile:    s.embedFile,
		Side:         Target,
		OutputParams: out,
		VocabFile:    vocabFile,
	})
	s.Require().NoError(err)
	s.Equal(out, res.OutputParams)
	s.FileExists(vocabFile)

	ck := s.loadOutput(out)
	trg, err := ck.Args.Get(params.TargetEmbedWeight)
	s.Require().NoError(err)
	rows, _ := trg.Dims()
	s.Equal(6, rows)

	bias, err := ck.Args.Get(params.TargetOutputBias)
	s.Require().NoError(err)
	s.Equal(make([]float64, 6), mat.Row(nil, 0, bias))

	src, err := ck.Args.Get(params.SourceEmbedWeight)
	s.Require().NoError(err)
	r, _ := src.Dims()
	s.Equal(4, r, "target replacement leaves the source embeddings alone")
}

func (s *ReplaceTestSuite) TestMissingParameterNamesKey() {
	args := params.NewTable()
	args.Set(params.SourceEmbedWeight, mat.NewDense(4, 2, nil))
	bare := filepath.Join(s.dir, "bare.params")
	s.Require().NoError(params.FileStore{}.Save(context.Background(), params.NewCheckpoint(args, nil), bare))

	_, err := s.replacer.Replace(context.Background(), Options{Params: bare, EmbedFile: s.embedFile, Side: Target})
	s.ErrorIs(err, params.ErrMissingParam)
	s.Contains(err.Error(), params.TargetEmbedWeight)
	s.Contains(err.Error(), bare)
}

func (s *ReplaceTestSuite) TestDimensionMismatch() {
	s.Require().NoError(os.WriteFile(s.embedFile, []byte("1 3\nhaus 1 2 3\n"), 0o644))
	_, err := s.replacer.Replace(context.Background(), Options{Params: s.params, EmbedFile: s.embedFile})
	s.ErrorIs(err, ErrDimensionMismatch)
}

func (s *ReplaceTestSuite) TestMissingVecFile() {
	_, err := s.replacer.Replace(context.Background(), Options{Params: s.params, EmbedFile: filepath.Join(s.dir, "nope.vec")})
	s.Error(err)
	s.Contains(err.Error(), "nope.vec")
}

func (s *ReplaceTestSuite) TestCheckpointIDNeedsDatabase() {
	_, err := s.replacer.Replace(context.Background(), Options{
		Params:       s.params,
		CheckpointID: uuid.New(),
		EmbedFile:    s.embedFile,
	})
	s.ErrorIs(err, params.ErrSingleCheckpoint)
	s.Contains(err.Error(), s.params)
}

func (s *ReplaceTestSuite) TestReplaceSelectsCheckpointByID() {
	if testing.Short() {
		s.T().Skip("skipping libsql integration test in short mode")
	}
	ctx := context.Background()
	db := filepath.Join(s.dir, "params.db")

	older, err := params.FileStore{}.Load(ctx, s.params)
	s.Require().NoError(err)
	s.Require().NoError(params.SQLStore{}.Save(ctx, older, db))

	newerArgs := params.NewTable()
	newerArgs.Set(params.SourceEmbedWeight, mat.NewDense(4, 2, []float64{7, 7, 7, 7, 7, 7, 7, 7}))
	newer := params.NewCheckpoint(newerArgs, nil)
	newer.Created = older.Created.Add(time.Second)
	s.Require().NoError(params.SQLStore{}.Save(ctx, newer, db))

	out := filepath.Join(s.dir, "out.db")
	res, err := s.replacer.Replace(ctx, Options{
		Params:       db,
		CheckpointID: older.ID,
		EmbedFile:    s.embedFile,
		OutputParams: out,
	})
	s.Require().NoError(err)

	ck, err := params.SQLStore{}.Load(ctx, out)
	s.Require().NoError(err)
	s.Equal(res.CheckpointID, ck.ID)
	src, err := ck.Args.Get(params.SourceEmbedWeight)
	s.Require().NoError(err)
	want := mat.NewDense(6, 2, []float64{0, 0, 1, 1, 2, 2, 0.1, 0.2, -1, 0.01, 3, 4})
	s.True(mat.Equal(want, src), "special rows come from the selected checkpoint")
}
