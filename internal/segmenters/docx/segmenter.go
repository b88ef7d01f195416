// Package docx segments WordprocessingML (.docx) uploads into paragraphs.
package docx

import (
	"context"
	"errors"

	"github.com/custodia-labs/docreview/internal/core/domain"
	"github.com/custodia-labs/docreview/internal/core/ports/driven"
	"github.com/custodia-labs/docreview/internal/ooxml"
	"github.com/custodia-labs/docreview/internal/segmenters"
)

// Ensure Segmenter implements the interface.
var _ driven.Segmenter = (*Segmenter)(nil)

// Segmenter handles DOCX documents.
type Segmenter struct{}

// New creates a new DOCX segmenter.
func New() *Segmenter {
	return &Segmenter{}
}

// SupportedMIMETypes returns the MIME types this segmenter handles.
func (s *Segmenter) SupportedMIMETypes() []string {
	return []string{domain.MIMETypeDOCX}
}

// SupportedExtensions returns the filename extensions this segmenter handles.
func (s *Segmenter) SupportedExtensions() []string {
	return []string{".docx"}
}

// Segment parses word/document.xml into paragraphs. Every w:p that is not
// nested in another w:p becomes one paragraph, in document order.
func (s *Segmenter) Segment(ctx context.Context, raw *domain.RawDocument) (*domain.Document, error) {
	if raw == nil {
		return nil, domain.ErrInvalidInput
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	pkg, err := ooxml.Open(raw.Content)
	if err != nil {
		return nil, &domain.MalformedDocumentError{Name: raw.Name, Reason: "not a zip archive", Err: err}
	}
	body, err := pkg.Read(ooxml.DocumentPart)
	if errors.Is(err, ooxml.ErrPartNotFound) {
		return nil, &domain.MalformedDocumentError{Name: raw.Name, Reason: "missing " + ooxml.DocumentPart}
	}
	if err != nil {
		return nil, &domain.MalformedDocumentError{Name: raw.Name, Reason: "unreadable " + ooxml.DocumentPart, Err: err}
	}
	nodes, err := ooxml.ParseBody(body)
	if err != nil {
		return nil, &domain.MalformedDocumentError{Name: raw.Name, Reason: "invalid document xml", Err: err}
	}

	doc := &domain.Document{
		ID:         segmenters.DocumentID(raw.Name, raw.Content),
		Name:       raw.Name,
		MIMEType:   domain.MIMETypeDOCX,
		Raw:        append([]byte(nil), raw.Content...),
		Paragraphs: make([]domain.Paragraph, 0, len(nodes)),
	}
	for i, n := range nodes {
		doc.Paragraphs = append(doc.Paragraphs, domain.Paragraph{
			Index: i,
			Text:  n.Text,
			Runs:  runs(n.Runs),
			Props: n.Props,
			Span:  domain.ByteSpan{Start: n.Span.Start, End: n.Span.End},
		})
	}
	return doc, nil
}

// runs converts run nodes into domain runs. Empty runs are dropped and
// adjacent runs with identical properties merge.
func runs(nodes []ooxml.RunNode) []domain.Run {
	var out []domain.Run
	for _, n := range nodes {
		if n.TextEnd == n.TextStart {
			continue
		}
		if last := len(out) - 1; last >= 0 && out[last].Format == n.Props && out[last].End == n.TextStart {
			out[last].End = n.TextEnd
			continue
		}
		out = append(out, domain.Run{Start: n.TextStart, End: n.TextEnd, Format: n.Props})
	}
	return out
}
