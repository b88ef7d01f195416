// Package chunker provides a fixed-size text chunking processor.
package chunker

import (
	"context"
	"unicode"

	"github.com/custodia-labs/docreview/internal/core/domain"
	"github.com/custodia-labs/docreview/internal/core/ports/driven"
)

// Ensure Processor implements the interface.
var _ driven.PostProcessor = (*Processor)(nil)

// DefaultChunkSize is the default number of characters per chunk.
const DefaultChunkSize = 1000

// DefaultChunkOverlap is the default number of overlapping characters.
const DefaultChunkOverlap = 150

// Processor splits corpus text into fixed-size overlapping chunks.
// Sizes count runes, so multi-byte characters are never cut.
type Processor struct {
	chunkSize int
	overlap   int
}

// Option configures the chunker processor.
type Option func(*Processor)

// WithChunkSize sets the chunk size in characters.
func WithChunkSize(size int) Option {
	return func(p *Processor) {
		if size > 0 {
			p.chunkSize = size
		}
	}
}

// WithOverlap sets the overlap between chunks in characters.
func WithOverlap(overlap int) Option {
	return func(p *Processor) {
		if overlap >= 0 {
			p.overlap = overlap
		}
	}
}

// New creates a new chunker processor with the given options.
func New(opts ...Option) *Processor {
	p := &Processor{
		chunkSize: DefaultChunkSize,
		overlap:   DefaultChunkOverlap,
	}

	for _, opt := range opts {
		opt(p)
	}

	// Ensure overlap doesn't exceed chunk size
	if p.overlap >= p.chunkSize {
		p.overlap = p.chunkSize / 4
	}

	return p
}

// Name returns the processor name.
func (p *Processor) Name() string {
	return "chunker"
}

// ChunkSize returns the configured window size.
func (p *Processor) ChunkSize() int {
	return p.chunkSize
}

// Overlap returns the configured overlap.
func (p *Processor) Overlap() int {
	return p.overlap
}

// Process splits the file text into chunks.
// Input chunks are ignored; this processor creates new chunks from the text.
func (p *Processor) Process(ctx context.Context, file *domain.CorpusFile, _ []domain.Chunk) ([]domain.Chunk, error) {
	if file.Text == "" {
		return nil, nil
	}

	text := []rune(file.Text)
	n := len(text)
	step := p.chunkSize - p.overlap
	chunks := make([]domain.Chunk, 0, n/step+1)

	for start := 0; start < n; {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		end := start + p.chunkSize
		if end >= n {
			end = n
		} else {
			end = p.breakPoint(text, start, end)
		}

		chunks = append(chunks, domain.Chunk{
			SourceID: file.Path,
			Ordinal:  len(chunks),
			Text:     string(text[start:end]),
		})
		if end == n {
			break
		}

		next := end - p.overlap
		if next <= start {
			next = start + 1
		}
		start = next
	}

	return chunks, nil
}

// breakPoint moves end back to just after the nearest whitespace, looking
// at most a fifth of the window back. The window is cut hard otherwise.
func (p *Processor) breakPoint(text []rune, start, end int) int {
	limit := end - p.chunkSize/5
	if limit <= start+p.overlap {
		limit = start + p.overlap + 1
	}
	for i := end; i > limit; i-- {
		if unicode.IsSpace(text[i-1]) {
			return i
		}
	}
	return end
}
