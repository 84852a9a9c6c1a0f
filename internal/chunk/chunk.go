// Package chunk cuts document text into overlapping windows sized for the model.
package chunk

import (
	"fmt"
	"iter"

	"github.com/olaf-fiscalyfr/french-tax-assistant-2025/internal/common"
	"github.com/olaf-fiscalyfr/french-tax-assistant-2025/internal/entity"
)

const (
	DefaultSize    = 3000
	DefaultOverlap = 200
)

// Options sizes the window in characters (runes, not bytes).
type Options struct {
	Size    int
	Overlap int
}

func DefaultOptions() Options {
	return Options{Size: DefaultSize, Overlap: DefaultOverlap}
}

// Validate requires Size > Overlap >= 0.
func (o Options) Validate() error {
	if o.Size <= 0 {
		return common.NewAppError("CHUNK_CONFIG", fmt.Sprintf("size must be > 0, got %d", o.Size), common.ErrInvalidInput)
	}
	if o.Overlap < 0 || o.Overlap >= o.Size {
		return common.NewAppError("CHUNK_CONFIG",
			fmt.Sprintf("overlap must be in [0, %d), got %d", o.Size, o.Overlap), common.ErrInvalidInput)
	}
	return nil
}

// Windows returns the chunks of text as a lazy sequence. Chunk i starts at
// rune offset i*(Size-Overlap); the last chunk is clipped to the text. The
// sequence can be ranged over any number of times and yields nothing for "".
func Windows(source, text string, opts Options) (iter.Seq[entity.TextChunk], error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	runes := []rune(text)
	step := opts.Size - opts.Overlap
	return func(yield func(entity.TextChunk) bool) {
		for i, start := 0, 0; start < len(runes); i, start = i+1, start+step {
			end := min(start+opts.Size, len(runes))
			if !yield(entity.TextChunk{SourceFilename: source, Index: i, Text: string(runes[start:end])}) {
				return
			}
			if end == len(runes) {
				return
			}
		}
	}, nil
}

// Split collects Windows into a slice.
func Split(source, text string, opts Options) ([]entity.TextChunk, error) {
	seq, err := Windows(source, text, opts)
	if err != nil {
		return nil, err
	}
	var out []entity.TextChunk
	for c := range seq {
		out = append(out, c)
	}
	return out, nil
}
