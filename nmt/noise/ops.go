package noise

import (
	"cmp"
	"slices"
)

// Delete drops each token independently with probability p. A token is kept
// when its draw is strictly greater than p, so the result may be empty.
func Delete(seq []int32, p float64, rng Source) []int32 {
	out := make([]int32, 0, len(seq))
	for _, tok := range seq {
		if rng.Float64() > p {
			out = append(out, tok)
		}
	}
	return out
}

// Permute shuffles seq locally: position i gets the key i+U{0..window} and the
// tokens are stable-sorted by key. A window of 0 returns seq unchanged.
func Permute(seq []int32, window int, rng Source) []int32 {
	out := make([]int32, len(seq))
	if window <= 0 || len(seq) < 2 {
		copy(out, seq)
		return out
	}

	keys := make([]int, len(seq))
	order := make([]int, len(seq))
	for i := range seq {
		keys[i] = i + rng.IntN(window+1)
		order[i] = i
	}
	slices.SortStableFunc(order, func(a, b int) int {
		return cmp.Compare(keys[a], keys[b])
	})
	for i, src := range order {
		out[i] = seq[src]
	}
	return out
}

// Insert adds random tokens in front of original positions with probability q,
// never growing seq beyond maxLen. Inserted ids are drawn from [0,vocab) and
// shifted by reserved so they never alias a reserved symbol.
func Insert(seq []int32, q float64, vocab, reserved, maxLen int, rng Source) []int32 {
	out, _ := insert(seq, q, vocab, reserved, maxLen, rng)
	return out
}

// insert also returns the output positions of the inserted tokens, ascending.
func insert(seq []int32, q float64, vocab, reserved, maxLen int, rng Source) ([]int32, []uint32) {
	length := len(seq)
	if length >= maxLen || q <= 0 || vocab < 1 {
		out := make([]int32, length)
		copy(out, seq)
		return out, nil
	}

	// One decision per original position, drawn before any insertion.
	decide := make([]bool, length)
	for i := range decide {
		decide[i] = rng.Float64() <= q
	}

	out := make([]int32, 0, maxLen)
	var positions []uint32
	offset := 0
	i := 0
	for ; i < length; i++ {
		if decide[i] {
			positions = append(positions, uint32(i+offset))
			out = append(out, int32(rng.IntN(vocab)+reserved))
			offset++
			if length+offset >= maxLen {
				break
			}
		}
		out = append(out, seq[i])
	}
	// Scanning stopped at capacity: the remaining originals follow unchanged.
	if i < length {
		out = append(out, seq[i:]...)
	}
	return out, positions
}
