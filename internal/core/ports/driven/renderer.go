package driven

import (
	"context"

	"github.com/custodia-labs/docreview/internal/core/domain"
)

// Renderer writes an annotated copy in the upload's own format.
type Renderer interface {
	// SupportedMIMETypes returns the MIME types this renderer writes.
	SupportedMIMETypes() []string

	// Render produces the annotated copy. Content outside highlighted
	// runs is left byte-for-byte unchanged.
	Render(ctx context.Context, doc *domain.AnnotatedDocument) ([]RenderedFile, error)
}

// RenderedFile is one output file.
type RenderedFile struct {
	// Name is the output filename, without directory.
	Name string

	Content []byte
}
