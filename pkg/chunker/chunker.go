package chunker

import (
	"fmt"

	"github.com/xhad/pdfchat/internal/models"
)

const (
	DefaultChunkSize = 1000
	DefaultOverlap   = 200

	// How far back from the hard cut to look for a semantic boundary.
	boundaryWindow = 100
)

type Config struct {
	ChunkSize int
	Overlap   int
}

// Chunker splits extracted text into overlapping windows. It is a pure
// function of its input: identical text and configuration always yield
// identical boundaries.
type Chunker struct {
	size    int
	overlap int
}

// New validates the configuration. A zero Config gets the default
// 1000/200 window.
func New(config Config) (*Chunker, error) {
	if config.ChunkSize == 0 && config.Overlap == 0 {
		config.ChunkSize = DefaultChunkSize
		config.Overlap = DefaultOverlap
	}
	if config.ChunkSize <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", config.ChunkSize)
	}
	if config.Overlap < 0 {
		return nil, fmt.Errorf("overlap cannot be negative, got %d", config.Overlap)
	}
	if config.Overlap >= config.ChunkSize {
		return nil, fmt.Errorf("overlap %d must be smaller than chunk size %d", config.Overlap, config.ChunkSize)
	}
	return &Chunker{size: config.ChunkSize, overlap: config.Overlap}, nil
}

// Chunk greedily consumes up to ChunkSize runes per window, preferring to end
// a window at a paragraph break, then a sentence break, found within a small
// look-back window. Each chunk after the first overlaps its predecessor by up
// to Overlap runes. Offsets are rune offsets into text. Empty input yields no
// chunks.
func (c *Chunker) Chunk(text string) []models.Chunk {
	runes := []rune(text)
	n := len(runes)
	if n == 0 {
		return nil
	}

	var chunks []models.Chunk
	start := 0
	for index := 0; ; index++ {
		end := start + c.size
		if end >= n {
			chunks = append(chunks, models.Chunk{
				Index:       index,
				Text:        string(runes[start:n]),
				StartOffset: start,
				EndOffset:   n,
			})
			break
		}

		end = c.cut(runes, start, end)
		chunks = append(chunks, models.Chunk{
			Index:       index,
			Text:        string(runes[start:end]),
			StartOffset: start,
			EndOffset:   end,
		})

		// cut never returns a position at or before start+overlap, so the
		// cursor strictly advances.
		start = end - c.overlap
		if start < 0 {
			start = 0
		}
	}
	return chunks
}

// cut picks the window end: the nearest preceding paragraph break, then
// sentence break, within boundaryWindow of the hard limit; otherwise the
// hard limit itself. The result always exceeds start+overlap.
func (c *Chunker) cut(runes []rune, start, hard int) int {
	floor := start + c.overlap + 1
	lo := hard - boundaryWindow
	if lo < floor {
		lo = floor
	}

	for i := hard - 1; i >= lo; i-- {
		if runes[i] == '\n' && runes[i-1] == '\n' {
			return i + 1
		}
	}
	for i := hard - 1; i >= lo; i-- {
		switch runes[i] {
		case '\n':
			return i + 1
		case '.', '!', '?':
			if runes[i+1] == ' ' || runes[i+1] == '\n' {
				return i + 1
			}
		}
	}
	return hard
}
