package noise

import "fmt"

// Config holds the noise parameters. It is a plain value: copy it, never mutate
// a Config a Model was built from.
type Config struct {
	// Permutation is the maximum local shuffle window.
	Permutation int
	// Deletion is the per-token deletion probability.
	Deletion float64
	// Insertion is the per-position insertion probability.
	Insertion float64
	// InsertionVocab is the exclusive upper bound of inserted ids, before the reserved offset.
	InsertionVocab int
}

// Validate reports range errors first, then whether the configuration would
// leave every sentence untouched.
func (c Config) Validate() error {
	if c.Permutation < 0 {
		return fmt.Errorf("%w: permutation must be >= 0, got %d", ErrInvalidConfig, c.Permutation)
	}
	if c.Deletion < 0 || c.Deletion > 1 {
		return fmt.Errorf("%w: deletion must be in [0,1], got %g", ErrInvalidConfig, c.Deletion)
	}
	if c.Insertion < 0 || c.Insertion > 1 {
		return fmt.Errorf("%w: insertion must be in [0,1], got %g", ErrInvalidConfig, c.Insertion)
	}
	if c.InsertionVocab < 0 {
		return fmt.Errorf("%w: insertion vocab must be >= 0, got %d", ErrInvalidConfig, c.InsertionVocab)
	}
	if !c.Effective() {
		return fmt.Errorf("%w: permutation=%d deletion=%g insertion=%g insertion_vocab=%d",
			ErrIneffectiveConfig, c.Permutation, c.Deletion, c.Insertion, c.InsertionVocab)
	}
	return nil
}

// Effective reports whether at least one mechanism is enabled.
func (c Config) Effective() bool {
	return c.Permutation >= 1 || c.Deletion > 0 || c.insertionEnabled()
}

func (c Config) insertionEnabled() bool {
	return c.Insertion > 0 && c.InsertionVocab >= 1
}

func (c Config) String() string {
	return fmt.Sprintf("noise(permutation=%d, deletion=%g, insertion=%g, insertion_vocab=%d)",
		c.Permutation, c.Deletion, c.Insertion, c.InsertionVocab)
}
