// Package corpus reads and writes sentences of integer token ids, one
// sentence per line.
package corpus

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	internal "github.com/ZanzyTHEbar/nmt-denoise/nmt"
)

const maxLineBytes = 4 * 1024 * 1024

// ReadSentences parses whitespace-separated ids. Blank lines are empty
// sentences. Negative ids and the PAD id are rejected.
func ReadSentences(r io.Reader) ([][]int32, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), maxLineBytes)

	var out [][]int32
	line := 0
	for sc.Scan() {
		line++
		fields := strings.Fields(sc.Text())
		sent := make([]int32, 0, len(fields))
		for _, f := range fields {
			id, err := strconv.ParseInt(f, 10, 32)
			if err != nil {
				return nil, fmt.Errorf("line %d: bad token id %q: %w", line, f, err)
			}
			if id < 0 {
				return nil, fmt.Errorf("line %d: negative token id %d", line, id)
			}
			if id == internal.PadID {
				return nil, fmt.Errorf("line %d: token id %d is reserved for padding", line, internal.PadID)
			}
			sent = append(sent, int32(id))
		}
		out = append(out, sent)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// WriteSentences writes one line per sentence.
func WriteSentences(w io.Writer, sentences [][]int32) error {
	bw := bufio.NewWriter(w)
	for _, sent := range sentences {
		for i, id := range sent {
			if i > 0 {
				bw.WriteByte(' ')
			}
			bw.WriteString(strconv.FormatInt(int64(id), 10))
		}
		if err := bw.WriteByte('\n'); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// Chunk splits sentences into consecutive groups of at most size.
func Chunk(sentences [][]int32, size int) [][][]int32 {
	if size <= 0 {
		size = len(sentences)
	}
	var out [][][]int32
	for start := 0; start < len(sentences); start += size {
		out = append(out, sentences[start:min(start+size, len(sentences))])
	}
	return out
}
