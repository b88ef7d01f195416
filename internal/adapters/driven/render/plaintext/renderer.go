// Package plaintext writes reviewed copies of plain text and Markdown
// uploads. The text is copied unchanged and the annotations go to a JSON
// sidecar with absolute byte offsets into the copy.
package plaintext

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/custodia-labs/docreview/internal/core/domain"
	"github.com/custodia-labs/docreview/internal/core/ports/driven"
)

// Verify interface compliance.
var _ driven.Renderer = (*Renderer)(nil)

// OutputPrefix is prepended to the upload's filename.
const OutputPrefix = "Reviewed_"

// SidecarSuffix is appended to the upload's base name for the sidecar.
const SidecarSuffix = ".annotations.json"

// Sidecar is the JSON written next to the reviewed copy.
type Sidecar struct {
	Document         string              `json:"document"`
	Annotations      []SidecarAnnotation `json:"annotations"`
	DocumentComments []string            `json:"documentComments"`
}

// SidecarAnnotation locates one highlight. Start and End are byte offsets
// into the whole file; ParagraphStart and ParagraphEnd are relative to the
// paragraph text.
type SidecarAnnotation struct {
	ID             int      `json:"id"`
	Paragraph      int      `json:"paragraph"`
	Start          int      `json:"start"`
	End            int      `json:"end"`
	ParagraphStart int      `json:"paragraphStart"`
	ParagraphEnd   int      `json:"paragraphEnd"`
	Text           string   `json:"text"`
	Comments       []string `json:"comments"`
}

// Renderer writes plain text copies with a sidecar.
type Renderer struct{}

// New creates a plain text renderer.
func New() *Renderer {
	return &Renderer{}
}

// SupportedMIMETypes returns the plain text and Markdown MIME types.
func (r *Renderer) SupportedMIMETypes() []string {
	return []string{domain.MIMETypePlainText, domain.MIMETypeMarkdown}
}

// Render returns the unchanged copy and the annotation sidecar.
func (r *Renderer) Render(ctx context.Context, doc *domain.AnnotatedDocument) ([]driven.RenderedFile, error) {
	if doc == nil {
		return nil, errors.New("plaintext render: nil document")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sidecar, err := BuildSidecar(doc)
	if err != nil {
		return nil, err
	}
	data, err := json.MarshalIndent(sidecar, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("plaintext render %s: %w", doc.Name, err)
	}

	base := filepath.Base(doc.Name)
	return []driven.RenderedFile{
		{Name: OutputPrefix + base, Content: append([]byte(nil), doc.Raw...)},
		{Name: strings.TrimSuffix(base, filepath.Ext(base)) + SidecarSuffix, Content: append(data, '\n')},
	}, nil
}

// BuildSidecar converts the annotations to file offsets.
func BuildSidecar(doc *domain.AnnotatedDocument) (*Sidecar, error) {
	s := &Sidecar{
		Document:         doc.Name,
		Annotations:      []SidecarAnnotation{},
		DocumentComments: append([]string{}, doc.DocumentComments...),
	}
	for _, a := range doc.Annotations() {
		p := doc.Paragraphs[a.ParagraphIndex]
		start, end := p.Span.Start+a.Range.Start, p.Span.Start+a.Range.End
		if end > len(doc.Raw) || p.Span.End-p.Span.Start != len(p.Text) {
			return nil, fmt.Errorf("plaintext render %s: paragraph %d does not match the source bytes", doc.Name, a.ParagraphIndex)
		}
		s.Annotations = append(s.Annotations, SidecarAnnotation{
			ID:             a.ID,
			Paragraph:      a.ParagraphIndex,
			Start:          start,
			End:            end,
			ParagraphStart: a.Range.Start,
			ParagraphEnd:   a.Range.End,
			Text:           p.Text[a.Range.Start:a.Range.End],
			Comments:       a.Comments,
		})
	}
	return s, nil
}
