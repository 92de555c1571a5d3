// Package embedding loads pretrained word vectors and splices them into a
// checkpoint's embedding tables.
package embedding

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/mat"
)

var (
	ErrMalformedVec      = errors.New("malformed vector file")
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
	ErrUnsupportedSide   = errors.New("unsupported embedding side")
)

const (
	initialVecBufferBytes = 64 * 1024
	maxVecLineBytes       = 16 * 1024 * 1024

	// Every value takes at least a digit and a separator.
	maxVecDim = maxVecLineBytes / 2

	// The header is untrusted. Buffers grow past these with the rows read.
	maxPreallocRows   = 1 << 16
	maxPreallocValues = 1 << 22
)

// Vectors is a loaded .vec file: one row of Weights per token.
type Vectors struct {
	Tokens  []string
	Weights *mat.Dense
}

// Dim returns the embedding width.
func (v *Vectors) Dim() int {
	_, c := v.Weights.Dims()
	return c
}

// LoadVecFile reads a word2vec/fastText text file.
func LoadVecFile(path string) (*Vectors, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open vector file %s: %w", path, err)
	}
	defer f.Close()

	vecs, err := LoadVec(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return vecs, nil
}

// LoadVec parses a header line "<count> <dim>" followed by count lines of a
// token and dim floats. Blank lines are ignored.
func LoadVec(r io.Reader) (*Vectors, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, initialVecBufferBytes), maxVecLineBytes)

	if !sc.Scan() {
		if err := sc.Err(); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: missing header", ErrMalformedVec)
	}
	count, dim, err := parseHeader(sc.Text())
	if err != nil {
		return nil, err
	}

	rows := min(count, maxPreallocRows)
	tokens := make([]string, 0, rows)
	data := make([]float64, 0, min(rows*dim, maxPreallocValues))
	line := 1
	for sc.Scan() {
		line++
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 {
			continue
		}
		if len(fields) != dim+1 {
			return nil, fmt.Errorf("%w: line %d has %d values, want %d", ErrDimensionMismatch, line, len(fields)-1, dim)
		}
		for _, f := range fields[1:] {
			x, err := strconv.ParseFloat(f, 64)
			if err != nil {
				return nil, fmt.Errorf("%w: line %d: %v", ErrMalformedVec, line, err)
			}
			data = append(data, x)
		}
		tokens = append(tokens, fields[0])
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if len(tokens) != count {
		return nil, fmt.Errorf("%w: header declares %d vectors, found %d", ErrMalformedVec, count, len(tokens))
	}
	return &Vectors{Tokens: tokens, Weights: mat.NewDense(count, dim, data)}, nil
}

func parseHeader(header string) (count, dim int, err error) {
	fields := strings.Fields(header)
	if len(fields) != 2 {
		return 0, 0, fmt.Errorf("%w: header %q must be \"<vocab_size> <dim>\"", ErrMalformedVec, header)
	}
	if count, err = strconv.Atoi(fields[0]); err != nil || count <= 0 {
		return 0, 0, fmt.Errorf("%w: bad vocabulary size %q", ErrMalformedVec, fields[0])
	}
	if dim, err = strconv.Atoi(fields[1]); err != nil || dim <= 0 {
		return 0, 0, fmt.Errorf("%w: bad dimension %q", ErrMalformedVec, fields[1])
	}
	if dim > maxVecDim {
		return 0, 0, fmt.Errorf("%w: dimension %d exceeds %d", ErrMalformedVec, dim, maxVecDim)
	}
	return count, dim, nil
}

// Splice keeps the first specials rows of orig and appends vectors below them.
func Splice(orig, vectors mat.Matrix, specials int) (*mat.Dense, error) {
	or, oc := orig.Dims()
	vr, vc := vectors.Dims()
	if oc != vc {
		return nil, fmt.Errorf("%w: checkpoint embeddings have %d columns, vectors have %d", ErrDimensionMismatch, oc, vc)
	}
	if specials < 0 || specials > or {
		return nil, fmt.Errorf("cannot keep %d special rows from a %d-row embedding", specials, or)
	}

	data := make([]float64, 0, (specials+vr)*oc)
	for i := 0; i < specials; i++ {
		data = append(data, mat.Row(nil, i, orig)...)
	}
	for i := 0; i < vr; i++ {
		data = append(data, mat.Row(nil, i, vectors)...)
	}
	return mat.NewDense(specials+vr, oc, data), nil
}
