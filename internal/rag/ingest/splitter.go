package ingest

import (
	"iter"

	"github.com/akolanti/GroundedQA/internal/domain/commonModels"
	"github.com/akolanti/GroundedQA/internal/domain/ragErrors"
)

// Separators ordered from "best" to "worst" for semantic meaning
var separators = [][]rune{
	[]rune("\n\n"),
	[]rune("\n"),
	[]rune(". "),
	[]rune(" "),
}

// Chunker cuts text into windows of at most size runes. Every window after the
// first starts with the last overlap runes of the one before it.
type Chunker struct {
	size    int
	overlap int
}

func NewChunker(size int, overlap int) (*Chunker, error) {
	if size <= 0 {
		return nil, ragErrors.InvalidConfig("chunk size must be positive, got %d", size)
	}
	if overlap < 0 || overlap >= size {
		return nil, ragErrors.InvalidConfig("chunk overlap %d must be in [0, %d)", overlap, size)
	}
	return &Chunker{size: size, overlap: overlap}, nil
}

func (c *Chunker) Size() int    { return c.size }
func (c *Chunker) Overlap() int { return c.overlap }

// Chunks is lazy; ranging over the result again starts from the beginning.
func (c *Chunker) Chunks(docId string, text string) iter.Seq[commonModels.Chunk] {
	return func(yield func(commonModels.Chunk) bool) {
		runes := []rune(text)
		total := len(runes)

		start, position := 0, 0
		for start < total {
			end := min(start+c.size, total)
			if end < total {
				end = c.cutPoint(runes, start, end)
			}

			chunk := commonModels.Chunk{
				DocId:    docId,
				Position: position,
				Text:     string(runes[start:end]),
				Start:    start,
				End:      end,
			}
			if !yield(chunk) || end >= total {
				return
			}

			start = end - c.overlap
			position++
		}
	}
}

// Collect materializes every chunk of text.
func (c *Chunker) Collect(docId string, text string) []commonModels.Chunk {
	var chunks []commonModels.Chunk
	for chunk := range c.Chunks(docId, text) {
		chunks = append(chunks, chunk)
	}
	return chunks
}

// cutPoint moves end back to just after the best separator in the window. The
// chunk must stay longer than the overlap so the next window moves forward.
func (c *Chunker) cutPoint(runes []rune, start int, end int) int {
	for _, sep := range separators {
		for i := end - len(sep); i >= start; i-- {
			cut := i + len(sep)
			if cut-start <= c.overlap {
				break
			}
			if hasRunesAt(runes, i, sep) {
				return cut
			}
		}
	}
	return end
}

func hasRunesAt(runes []rune, at int, sep []rune) bool {
	if at+len(sep) > len(runes) {
		return false
	}
	for j, r := range sep {
		if runes[at+j] != r {
			return false
		}
	}
	return true
}
