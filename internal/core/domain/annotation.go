package domain

import (
	"fmt"
	"sort"
)

// TextRange is a half-open byte range [Start, End) within a paragraph's text.
type TextRange struct {
	Start int
	End   int
}

// Len returns the range length in bytes.
func (r TextRange) Len() int {
	return r.End - r.Start
}

// Overlaps reports whether r and o share at least one byte.
func (r TextRange) Overlaps(o TextRange) bool {
	return r.Start < o.End && o.Start < r.End
}

// Union returns the smallest range covering r and o.
func (r TextRange) Union(o TextRange) TextRange {
	return TextRange{Start: min(r.Start, o.Start), End: max(r.End, o.End)}
}

// Annotation is a highlight range plus its comments.
type Annotation struct {
	// ID is stable for the life of the AnnotatedDocument.
	ID int

	ParagraphIndex int
	Range          TextRange

	// Comments are kept in the order the findings were applied.
	Comments []string
}

// Piece is a slice of a paragraph after splitting runs at highlight boundaries.
type Piece struct {
	Start int
	End   int

	// RunIndex is the index of the source run the piece was cut from.
	RunIndex int

	// Format is copied from the source run.
	Format string

	// AnnotationID is the covering annotation, or -1.
	AnnotationID int
}

// Highlighted reports whether the piece lies inside an annotation.
func (p Piece) Highlighted() bool {
	return p.AnnotationID >= 0
}

// AnnotatedParagraph is a paragraph whose runs are split into pieces.
type AnnotatedParagraph struct {
	Index  int
	Text   string
	Props  string
	Span   ByteSpan
	Pieces []Piece
}

// NoteKind classifies annotation notes.
type NoteKind string

// Available note kinds.
const (
	// NoteLocationFallback records that an excerpt could not be located
	// and the whole paragraph was highlighted instead.
	NoteLocationFallback NoteKind = "location_fallback"

	// NoteConflictFallback records that an annotation was moved to the
	// document-level comments because it could not be anchored.
	NoteConflictFallback NoteKind = "conflict_fallback"
)

// AnnotationNote is a non-fatal remark produced while annotating.
type AnnotationNote struct {
	Kind           NoteKind
	ParagraphIndex int
	Message        string
}

// String formats the note for logs and reports.
func (n AnnotationNote) String() string {
	return fmt.Sprintf("%s: paragraph %d: %s", n.Kind, n.ParagraphIndex, n.Message)
}

// AnnotatedDocument is a document plus highlight ranges and comments.
// It is derived from a Document and never shares mutable state with it.
type AnnotatedDocument struct {
	ID       string
	Name     string
	MIMEType string
	Raw      []byte

	Paragraphs []AnnotatedParagraph

	// DocumentComments are findings not anchored to a paragraph.
	DocumentComments []string

	annotations []Annotation
	runs        [][]Run
}

// NewAnnotatedDocument derives an empty annotated copy of doc.
func NewAnnotatedDocument(doc *Document) *AnnotatedDocument {
	src := doc.Clone()
	a := &AnnotatedDocument{
		ID:       src.ID,
		Name:     src.Name,
		MIMEType: src.MIMEType,
		Raw:      src.Raw,
	}
	if src.Paragraphs == nil {
		return a
	}
	a.Paragraphs = make([]AnnotatedParagraph, len(src.Paragraphs))
	a.runs = make([][]Run, len(src.Paragraphs))
	for i, p := range src.Paragraphs {
		a.runs[i] = p.Runs
		a.Paragraphs[i] = AnnotatedParagraph{
			Index: p.Index,
			Text:  p.Text,
			Props: p.Props,
			Span:  p.Span,
		}
		a.repiece(i)
	}
	return a
}

// Annotations returns the annotations ordered by paragraph then start offset.
func (a *AnnotatedDocument) Annotations() []Annotation {
	out := make([]Annotation, len(a.annotations))
	for i, ann := range a.annotations {
		ann.Comments = append([]string(nil), ann.Comments...)
		out[i] = ann
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].ParagraphIndex != out[j].ParagraphIndex {
			return out[i].ParagraphIndex < out[j].ParagraphIndex
		}
		return out[i].Range.Start < out[j].Range.Start
	})
	return out
}

// Annotation returns the annotation with the given ID.
func (a *AnnotatedDocument) Annotation(id int) (Annotation, bool) {
	for _, ann := range a.annotations {
		if ann.ID == id {
			return ann, true
		}
	}
	return Annotation{}, false
}

// ParagraphAnnotations returns annotations on one paragraph, ordered by start.
func (a *AnnotatedDocument) ParagraphAnnotations(idx int) []Annotation {
	var out []Annotation
	for _, ann := range a.Annotations() {
		if ann.ParagraphIndex == idx {
			out = append(out, ann)
		}
	}
	return out
}

// Add anchors a new annotation. Ranges outside the paragraph text, empty
// ranges and ranges overlapping an existing annotation are rejected.
func (a *AnnotatedDocument) Add(paragraphIndex int, r TextRange, comments ...string) (Annotation, error) {
	if paragraphIndex < 0 || paragraphIndex >= len(a.Paragraphs) {
		return Annotation{}, fmt.Errorf("%w: paragraph %d of %d", ErrAnnotationOutOfRange, paragraphIndex, len(a.Paragraphs))
	}
	text := a.Paragraphs[paragraphIndex].Text
	if r.Start < 0 || r.End > len(text) || r.Start >= r.End {
		return Annotation{}, fmt.Errorf("%w: range [%d,%d) in paragraph %d of length %d",
			ErrAnnotationOutOfRange, r.Start, r.End, paragraphIndex, len(text))
	}
	for _, existing := range a.annotations {
		if existing.ParagraphIndex == paragraphIndex && existing.Range.Overlaps(r) {
			return Annotation{}, fmt.Errorf("%w: [%d,%d) overlaps annotation %d at [%d,%d)",
				ErrAnnotationOverlap, r.Start, r.End, existing.ID, existing.Range.Start, existing.Range.End)
		}
	}

	ann := Annotation{
		ID:             len(a.annotations),
		ParagraphIndex: paragraphIndex,
		Range:          r,
		Comments:       append([]string(nil), comments...),
	}
	a.annotations = append(a.annotations, ann)
	a.repiece(paragraphIndex)
	return ann, nil
}

// AddDocumentComment attaches a comment to the whole document.
func (a *AnnotatedDocument) AddDocumentComment(comment string) {
	a.DocumentComments = append(a.DocumentComments, comment)
}

// Strip removes all annotations and reproduces the source document.
func (a *AnnotatedDocument) Strip() *Document {
	doc := &Document{
		ID:       a.ID,
		Name:     a.Name,
		MIMEType: a.MIMEType,
		Raw:      append([]byte(nil), a.Raw...),
	}
	if a.Paragraphs == nil {
		return doc
	}
	doc.Paragraphs = make([]Paragraph, len(a.Paragraphs))
	for i, ap := range a.Paragraphs {
		var runs []Run
		last := -1
		for _, piece := range ap.Pieces {
			if len(runs) > 0 && piece.RunIndex == last {
				runs[len(runs)-1].End = piece.End
				continue
			}
			runs = append(runs, Run{Start: piece.Start, End: piece.End, Format: piece.Format})
			last = piece.RunIndex
		}
		doc.Paragraphs[i] = Paragraph{
			Index: ap.Index,
			Text:  ap.Text,
			Runs:  runs,
			Props: ap.Props,
			Span:  ap.Span,
		}
	}
	return doc
}

// repiece recomputes the pieces of one paragraph from its source runs and
// the current annotations.
func (a *AnnotatedDocument) repiece(idx int) {
	var cuts []Annotation
	for _, ann := range a.annotations {
		if ann.ParagraphIndex == idx {
			cuts = append(cuts, ann)
		}
	}
	sort.Slice(cuts, func(i, j int) bool { return cuts[i].Range.Start < cuts[j].Range.Start })

	var pieces []Piece
	for ri, run := range a.runs[idx] {
		pos := run.Start
		for pos < run.End {
			end := run.End
			id := -1
			for _, c := range cuts {
				switch {
				case pos >= c.Range.Start && pos < c.Range.End:
					id = c.ID
					end = min(end, c.Range.End)
				case c.Range.Start > pos:
					end = min(end, c.Range.Start)
				}
			}
			pieces = append(pieces, Piece{Start: pos, End: end, RunIndex: ri, Format: run.Format, AnnotationID: id})
			pos = end
		}
	}
	a.Paragraphs[idx].Pieces = pieces
}
