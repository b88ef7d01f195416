package domain

import (
	"fmt"
	"strings"
)

// Well-known MIME types for uploads.
const (
	MIMETypeDOCX      = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	MIMETypePlainText = "text/plain"
	MIMETypeMarkdown  = "text/markdown"
)

// RawDocument is an upload before segmentation.
type RawDocument struct {
	// Name is the original filename.
	Name string

	// MIMEType identifies the content format. May be empty, in which
	// case the segmenter registry falls back to the filename extension.
	MIMEType string

	// Content is the raw bytes.
	Content []byte
}

// ByteSpan is a half-open byte range [Start, End) within a source part.
type ByteSpan struct {
	Start int
	End   int
}

// Run is a contiguous span of uniform formatting within a paragraph.
// Start and End are byte offsets into Paragraph.Text.
type Run struct {
	Start int

	End int

	// Format is the source format's run properties, kept verbatim
	// (the serialised w:rPr element for DOCX, empty for plain text).
	Format string
}

// Len returns the run length in bytes.
func (r Run) Len() int {
	return r.End - r.Start
}

// Paragraph is an addressable unit of a document.
type Paragraph struct {
	// Index is 0-based and stable within a Document.
	Index int

	// Text is the paragraph's plain text.
	Text string

	// Runs partition Text with no gaps and no overlaps.
	Runs []Run

	// Props is the source format's paragraph properties, kept verbatim.
	Props string

	// Span locates the paragraph in the source part.
	Span ByteSpan
}

// Validate checks that runs partition the paragraph text.
func (p Paragraph) Validate() error {
	if len(p.Runs) == 0 {
		if p.Text == "" {
			return nil
		}
		return fmt.Errorf("%w: paragraph %d has text but no runs", ErrInvalidInput, p.Index)
	}
	pos := 0
	for i, r := range p.Runs {
		if r.Start != pos {
			return fmt.Errorf("%w: paragraph %d run %d starts at %d, want %d",
				ErrInvalidInput, p.Index, i, r.Start, pos)
		}
		if r.End <= r.Start {
			return fmt.Errorf("%w: paragraph %d run %d is empty", ErrInvalidInput, p.Index, i)
		}
		pos = r.End
	}
	if pos != len(p.Text) {
		return fmt.Errorf("%w: paragraph %d runs end at %d, text length %d",
			ErrInvalidInput, p.Index, pos, len(p.Text))
	}
	return nil
}

// IsBlank reports whether the paragraph has no visible text.
func (p Paragraph) IsBlank() bool {
	return strings.TrimSpace(p.Text) == ""
}

// Document is a segmented upload. Documents are immutable once built.
type Document struct {
	// ID is derived from name and content, never from batch position.
	ID string

	// Name is the original filename.
	Name string

	// MIMEType is the source format.
	MIMEType string

	// Raw is the original bytes, used when rendering the annotated copy.
	Raw []byte

	// Paragraphs are in document order.
	Paragraphs []Paragraph
}

// ParagraphCount returns the number of paragraphs.
func (d *Document) ParagraphCount() int {
	return len(d.Paragraphs)
}

// HasParagraph reports whether idx addresses a paragraph of d.
func (d *Document) HasParagraph(idx int) bool {
	return idx >= 0 && idx < len(d.Paragraphs)
}

// Text joins all paragraph text with newlines.
func (d *Document) Text() string {
	var b strings.Builder
	for i, p := range d.Paragraphs {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(p.Text)
	}
	return b.String()
}

// NumberedText renders paragraphs prefixed with their index, one per line.
// Blank paragraphs are skipped so the indices shown stay addressable.
func (d *Document) NumberedText() string {
	var b strings.Builder
	for _, p := range d.Paragraphs {
		if p.IsBlank() {
			continue
		}
		fmt.Fprintf(&b, "[%d] %s\n", p.Index, p.Text)
	}
	return b.String()
}

// Clone returns a deep copy of the document.
func (d *Document) Clone() *Document {
	if d == nil {
		return nil
	}
	out := &Document{
		ID:       d.ID,
		Name:     d.Name,
		MIMEType: d.MIMEType,
		Raw:      append([]byte(nil), d.Raw...),
	}
	if d.Paragraphs != nil {
		out.Paragraphs = make([]Paragraph, len(d.Paragraphs))
		for i, p := range d.Paragraphs {
			p.Runs = append([]Run(nil), p.Runs...)
			out.Paragraphs[i] = p
		}
	}
	return out
}
