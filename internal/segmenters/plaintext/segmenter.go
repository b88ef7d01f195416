// Package plaintext segments plain text and Markdown uploads. Paragraphs
// are separated by one or more blank lines.
package plaintext

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/custodia-labs/docreview/internal/core/domain"
	"github.com/custodia-labs/docreview/internal/core/ports/driven"
	"github.com/custodia-labs/docreview/internal/segmenters"
)

// Ensure Segmenter implements the interface.
var _ driven.Segmenter = (*Segmenter)(nil)

// Segmenter handles plain text documents.
type Segmenter struct{}

// New creates a new plain text segmenter.
func New() *Segmenter {
	return &Segmenter{}
}

// SupportedMIMETypes returns the MIME types this segmenter handles.
func (s *Segmenter) SupportedMIMETypes() []string {
	return []string{domain.MIMETypePlainText, domain.MIMETypeMarkdown}
}

// SupportedExtensions returns the filename extensions this segmenter handles.
func (s *Segmenter) SupportedExtensions() []string {
	return []string{".txt", ".md", ".markdown"}
}

// Segment splits the content on blank lines. Each paragraph is one run.
func (s *Segmenter) Segment(ctx context.Context, raw *domain.RawDocument) (*domain.Document, error) {
	if raw == nil {
		return nil, domain.ErrInvalidInput
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !utf8.Valid(raw.Content) {
		return nil, &domain.MalformedDocumentError{Name: raw.Name, Reason: "content is not valid UTF-8"}
	}

	mime := raw.MIMEType
	if mime == "" {
		mime = domain.MIMETypePlainText
	}
	doc := &domain.Document{
		ID:       segmenters.DocumentID(raw.Name, raw.Content),
		Name:     raw.Name,
		MIMEType: mime,
		Raw:      append([]byte(nil), raw.Content...),
	}
	for _, span := range Split(string(raw.Content)) {
		text := string(raw.Content[span.Start:span.End])
		p := domain.Paragraph{
			Index: len(doc.Paragraphs),
			Text:  text,
			Span:  span,
		}
		if text != "" {
			p.Runs = []domain.Run{{Start: 0, End: len(text)}}
		}
		doc.Paragraphs = append(doc.Paragraphs, p)
	}
	return doc, nil
}

// Split returns the byte spans of the paragraphs in text. A span covers
// the paragraph's lines verbatim, without the trailing line ending.
func Split(text string) []domain.ByteSpan {
	var spans []domain.ByteSpan
	start, end, pos := -1, 0, 0
	for pos <= len(text) {
		next := strings.IndexByte(text[pos:], '\n')
		lineEnd := len(text)
		if next >= 0 {
			lineEnd = pos + next
		}
		line := strings.TrimSuffix(text[pos:lineEnd], "\r")

		if strings.TrimSpace(line) == "" {
			if start >= 0 {
				spans = append(spans, domain.ByteSpan{Start: start, End: end})
				start = -1
			}
		} else {
			if start < 0 {
				start = pos
			}
			end = pos + len(line)
		}

		if next < 0 {
			break
		}
		pos = lineEnd + 1
	}
	if start >= 0 {
		spans = append(spans, domain.ByteSpan{Start: start, End: end})
	}
	return spans
}
