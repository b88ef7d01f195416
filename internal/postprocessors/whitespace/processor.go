// Package whitespace provides a chunk cleanup processor.
package whitespace

import (
	"context"
	"strings"

	"github.com/custodia-labs/docreview/internal/core/domain"
	"github.com/custodia-labs/docreview/internal/core/ports/driven"
)

// Ensure Processor implements the interface.
var _ driven.PostProcessor = (*Processor)(nil)

// Processor collapses whitespace runs inside chunks to single spaces and
// drops chunks left empty. Surviving chunks are renumbered from 0.
type Processor struct{}

// New creates a whitespace processor.
func New() *Processor {
	return &Processor{}
}

// Name returns the processor name.
func (p *Processor) Name() string {
	return "whitespace"
}

// Process cleans the chunks produced by earlier stages.
func (p *Processor) Process(_ context.Context, _ *domain.CorpusFile, chunks []domain.Chunk) ([]domain.Chunk, error) {
	if len(chunks) == 0 {
		return chunks, nil
	}
	out := make([]domain.Chunk, 0, len(chunks))
	for _, c := range chunks {
		text := strings.Join(strings.Fields(c.Text), " ")
		if text == "" {
			continue
		}
		c.Text = text
		c.Ordinal = len(out)
		out = append(out, c)
	}
	return out, nil
}
