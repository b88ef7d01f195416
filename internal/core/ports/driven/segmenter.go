package driven

import (
	"context"

	"github.com/custodia-labs/docreview/internal/core/domain"
)

// Segmenter splits an upload into an ordered sequence of paragraphs.
// Segmentation must be deterministic: identical input yields an identical
// Document, including its ID.
type Segmenter interface {
	// SupportedMIMETypes returns the MIME types this segmenter handles.
	SupportedMIMETypes() []string

	// SupportedExtensions returns filename extensions (with dot) used
	// when an upload carries no MIME type.
	SupportedExtensions() []string

	// Segment parses raw into a Document. Unparseable input yields a
	// *domain.MalformedDocumentError.
	Segment(ctx context.Context, raw *domain.RawDocument) (*domain.Document, error)
}

// SegmenterRegistry selects the appropriate segmenter for an upload.
type SegmenterRegistry interface {
	// Segment dispatches raw to the matching segmenter.
	// Returns domain.ErrUnsupportedType if none matches.
	Segment(ctx context.Context, raw *domain.RawDocument) (*domain.Document, error)

	// Register adds a segmenter to the registry.
	Register(segmenter Segmenter)

	// SupportedMIMETypes returns all MIME types that can be segmented.
	SupportedMIMETypes() []string
}
