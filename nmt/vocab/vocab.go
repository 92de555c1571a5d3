// Package vocab maps tokens to integer ids and serializes the mapping as JSON.
package vocab

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	internal "github.com/ZanzyTHEbar/nmt-denoise/nmt"

	"github.com/armon/go-radix"
)

var (
	ErrDuplicateToken = errors.New("duplicate token")
	ErrUnknownToken   = errors.New("unknown token")
)

// EmbeddingSymbols are the special tokens prepended when a vocabulary is
// built from a pretrained vector file.
var EmbeddingSymbols = []string{internal.PadSymbol, internal.UnkSymbol, internal.BosSymbol}

// Vocab is an immutable token <-> id mapping backed by a radix tree.
type Vocab struct {
	tree   *radix.Tree
	tokens []string // id -> token
}

// New assigns sequential ids to specials followed by tokens.
func New(specials, tokens []string) (*Vocab, error) {
	v := &Vocab{
		tree:   radix.New(),
		tokens: make([]string, 0, len(specials)+len(tokens)),
	}
	for _, group := range [][]string{specials, tokens} {
		for _, tok := range group {
			if err := v.add(tok, len(v.tokens)); err != nil {
				return nil, err
			}
		}
	}
	return v, nil
}

// FromEmbeddingTokens prepends EmbeddingSymbols to tokens.
func FromEmbeddingTokens(tokens []string) (*Vocab, error) {
	return New(EmbeddingSymbols, tokens)
}

// FromMap rebuilds a vocabulary from a token -> id map. Ids must be dense.
func FromMap(m map[string]int) (*Vocab, error) {
	tokens := make([]string, len(m))
	seen := make([]bool, len(m))
	for tok, id := range m {
		if id < 0 || id >= len(m) {
			return nil, fmt.Errorf("token %q has id %d outside [0,%d)", tok, id, len(m))
		}
		if seen[id] {
			return nil, fmt.Errorf("%w: id %d assigned twice", ErrDuplicateToken, id)
		}
		seen[id] = true
		tokens[id] = tok
	}
	return New(nil, tokens)
}

func (v *Vocab) add(tok string, id int) error {
	if _, exists := v.tree.Get(tok); exists {
		return fmt.Errorf("%w: %q", ErrDuplicateToken, tok)
	}
	v.tree.Insert(tok, id)
	v.tokens = append(v.tokens, tok)
	return nil
}

// Len returns the number of entries, specials included.
func (v *Vocab) Len() int { return len(v.tokens) }

// ID returns the id of tok.
func (v *Vocab) ID(tok string) (int, bool) {
	id, ok := v.tree.Get(tok)
	if !ok {
		return 0, false
	}
	return id.(int), true
}

// Token returns the token with the given id.
func (v *Vocab) Token(id int) (string, error) {
	if id < 0 || id >= len(v.tokens) {
		return "", fmt.Errorf("%w: id %d", ErrUnknownToken, id)
	}
	return v.tokens[id], nil
}

// Tokens returns all tokens in id order.
func (v *Vocab) Tokens() []string {
	out := make([]string, len(v.tokens))
	copy(out, v.tokens)
	return out
}

// Map returns the token -> id mapping.
func (v *Vocab) Map() map[string]int {
	m := make(map[string]int, len(v.tokens))
	for id, tok := range v.tokens {
		m[tok] = id
	}
	return m
}

// MarshalJSON encodes the vocabulary as a token -> id object.
func (v *Vocab) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Map())
}

// UnmarshalJSON decodes a token -> id object.
func (v *Vocab) UnmarshalJSON(data []byte) error {
	var m map[string]int
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	nv, err := FromMap(m)
	if err != nil {
		return err
	}
	*v = *nv
	return nil
}

// WriteJSON saves the vocabulary to path, indented by four spaces and
// without escaping non-ASCII or HTML characters.
func (v *Vocab) WriteJSON(path string) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	if err := enc.Encode(v.Map()); err != nil {
		return fmt.Errorf("failed to encode vocabulary: %w", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("failed to write vocabulary %s: %w", path, err)
	}
	return nil
}

// LoadJSON reads a vocabulary written by WriteJSON.
func LoadJSON(path string) (*Vocab, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read vocabulary %s: %w", path, err)
	}
	v := &Vocab{}
	if err := v.UnmarshalJSON(data); err != nil {
		return nil, fmt.Errorf("failed to decode vocabulary %s: %w", path, err)
	}
	return v, nil
}
