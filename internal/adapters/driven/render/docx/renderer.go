// Package docx writes reviewed copies of Word documents. Highlighted text
// is split out of its run and given a yellow highlight, and every
// annotation becomes a Word comment anchored to the highlighted range.
package docx

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/custodia-labs/docreview/internal/core/domain"
	"github.com/custodia-labs/docreview/internal/core/ports/driven"
	"github.com/custodia-labs/docreview/internal/logger"
	"github.com/custodia-labs/docreview/internal/ooxml"
)

// Verify interface compliance.
var _ driven.Renderer = (*Renderer)(nil)

// OutputPrefix is prepended to the upload's base name.
const OutputPrefix = "Reviewed_"

const highlightColor = "yellow"

// rPr children that follow w:highlight in the schema sequence.
var afterHighlight = []string{
	"u", "effect", "bdr", "shd", "fitText", "vertAlign", "rtl", "cs",
	"em", "lang", "eastAsianLayout", "specVanish", "oMath", "rPrChange",
}

// Renderer writes annotated DOCX copies.
type Renderer struct {
	author string
	now    func() time.Time
}

// Option configures a Renderer.
type Option func(*Renderer)

// WithAuthor sets the comment author.
func WithAuthor(author string) Option {
	return func(r *Renderer) {
		if author != "" {
			r.author = author
		}
	}
}

// WithClock sets the clock used for comment timestamps.
func WithClock(now func() time.Time) Option {
	return func(r *Renderer) {
		if now != nil {
			r.now = now
		}
	}
}

// New creates a DOCX renderer.
func New(opts ...Option) *Renderer {
	r := &Renderer{author: DefaultAuthor, now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// SupportedMIMETypes returns the DOCX MIME type.
func (r *Renderer) SupportedMIMETypes() []string {
	return []string{domain.MIMETypeDOCX}
}

// Render rewrites word/document.xml with highlights and comment anchors and
// adds or extends word/comments.xml. Paragraphs without annotations and all
// other package parts are copied unchanged.
func (r *Renderer) Render(ctx context.Context, doc *domain.AnnotatedDocument) ([]driven.RenderedFile, error) {
	if doc == nil {
		return nil, errors.New("docx render: nil document")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	pkg, err := ooxml.Open(doc.Raw)
	if err != nil {
		return nil, &domain.MalformedDocumentError{Name: doc.Name, Reason: "not a zip archive", Err: err}
	}
	body, err := pkg.Read(ooxml.DocumentPart)
	if err != nil {
		return nil, &domain.MalformedDocumentError{Name: doc.Name, Reason: "unreadable " + ooxml.DocumentPart, Err: err}
	}
	nodes, err := ooxml.ParseBody(body)
	if err != nil {
		return nil, &domain.MalformedDocumentError{Name: doc.Name, Reason: "malformed " + ooxml.DocumentPart, Err: err}
	}
	if len(nodes) != len(doc.Paragraphs) {
		return nil, fmt.Errorf("docx render %s: document has %d paragraphs, annotations expect %d",
			doc.Name, len(nodes), len(doc.Paragraphs))
	}

	comments, err := loadComments(pkg, body, r.author, r.now().UTC())
	if err != nil {
		return nil, fmt.Errorf("docx render %s: %w", doc.Name, err)
	}

	marks := make(map[int][]mark)
	for _, a := range doc.Annotations() {
		id := comments.add(a.Comments...)
		marks[a.ParagraphIndex] = append(marks[a.ParagraphIndex], mark{id: id, rng: a.Range})
	}
	for idx := range marks {
		sort.Slice(marks[idx], func(i, j int) bool { return marks[idx][i].rng.Start < marks[idx][j].rng.Start })
	}

	anchor := -1
	var pointIDs []int
	if len(doc.DocumentComments) > 0 {
		anchor = anchorParagraph(body, nodes)
		if anchor < 0 {
			logger.Warn("docx render %s: no paragraph to anchor %d document comments", doc.Name, len(doc.DocumentComments))
		} else {
			for _, c := range doc.DocumentComments {
				pointIDs = append(pointIDs, comments.add(c))
			}
		}
	}

	if comments.empty() {
		logger.Debug("docx render %s: no annotations, copying original", doc.Name)
		return []driven.RenderedFile{{Name: OutputName(doc.Name), Content: append([]byte(nil), doc.Raw...)}}, nil
	}

	var out strings.Builder
	out.Grow(len(body) + len(body)/8)
	pos := 0
	for i, n := range nodes {
		ms := marks[i]
		var points []int
		if i == anchor {
			points = pointIDs
		}
		if len(ms) == 0 && len(points) == 0 {
			continue
		}
		out.Write(body[pos:n.Span.Start])
		rewriteParagraph(&out, body, n, ms, points)
		pos = n.Span.End
	}
	out.Write(body[pos:])

	pkg.Put(ooxml.DocumentPart, []byte(out.String()))
	if err := comments.write(pkg); err != nil {
		return nil, fmt.Errorf("docx render %s: %w", doc.Name, err)
	}

	data, err := pkg.Bytes()
	if err != nil {
		return nil, fmt.Errorf("docx render %s: %w", doc.Name, err)
	}
	logger.Debug("docx render %s: %d comments written", doc.Name, comments.count())
	return []driven.RenderedFile{{Name: OutputName(doc.Name), Content: data}}, nil
}

// OutputName returns the reviewed copy's filename.
func OutputName(name string) string {
	base := filepath.Base(name)
	return OutputPrefix + strings.TrimSuffix(base, filepath.Ext(base)) + ".docx"
}

type mark struct {
	id  int
	rng domain.TextRange
}

// anchorParagraph returns the first paragraph that can hold comment markers.
func anchorParagraph(body []byte, nodes []ooxml.ParagraphNode) int {
	for i, n := range nodes {
		if len(n.Runs) > 0 || closingTag(body, n.Span) >= 0 {
			return i
		}
	}
	return -1
}

// closingTag returns the offset of the paragraph's end tag, or -1 when the
// element is self-closing.
func closingTag(body []byte, span ooxml.Span) int {
	raw := string(body[span.Start:span.End])
	if strings.HasSuffix(raw, "/>") && !strings.Contains(raw, "</") {
		return -1
	}
	idx := strings.LastIndex(raw, "</")
	if idx < 0 {
		return -1
	}
	return span.Start + idx
}

type paragraphWriter struct {
	out    *strings.Builder
	prefix string
	opened map[int]bool
	closed map[int]bool
}

func rewriteParagraph(out *strings.Builder, body []byte, n ooxml.ParagraphNode, marks []mark, points []int) {
	w := &paragraphWriter{
		out:    out,
		prefix: "w",
		opened: make(map[int]bool),
		closed: make(map[int]bool),
	}
	if len(n.Runs) > 0 {
		w.prefix = elementPrefix(n.Runs[0].Open)
	}

	closeAt := closingTag(body, n.Span)
	if len(n.Runs) == 0 {
		out.Write(body[n.Span.Start:closeAt])
		w.points(points)
		out.Write(body[closeAt:n.Span.End])
		return
	}

	pos := n.Runs[0].Span.Start
	out.Write(body[n.Span.Start:pos])
	w.points(points)
	for _, run := range n.Runs {
		out.Write(body[pos:run.Span.Start])
		w.run(body, run, marks)
		pos = run.Span.End
	}
	out.Write(body[pos:closeAt])
	for _, m := range marks {
		if w.opened[m.id] && !w.closed[m.id] {
			w.end(m.id)
		}
	}
	out.Write(body[closeAt:n.Span.End])
}

func (w *paragraphWriter) run(body []byte, run ooxml.RunNode, marks []mark) {
	raw := string(body[run.Span.Start:run.Span.End])
	span := domain.TextRange{Start: run.TextStart, End: run.TextEnd}

	var hits []mark
	for _, m := range marks {
		if m.rng.Overlaps(span) {
			hits = append(hits, m)
		}
	}
	if len(hits) == 0 {
		w.out.WriteString(raw)
		return
	}

	if !run.Splittable {
		for _, m := range hits {
			w.start(m.id)
		}
		w.out.WriteString(w.highlightRun(raw, run))
		for _, m := range hits {
			if m.rng.End <= run.TextEnd {
				w.end(m.id)
			}
		}
		return
	}

	cuts := []int{run.TextStart, run.TextEnd}
	for _, m := range hits {
		if m.rng.Start > run.TextStart {
			cuts = append(cuts, m.rng.Start)
		}
		if m.rng.End < run.TextEnd {
			cuts = append(cuts, m.rng.End)
		}
	}
	sort.Ints(cuts)
	cuts = compactInts(cuts)

	closeTag := "</" + elementName(run.Open) + ">"
	for i := 0; i+1 < len(cuts); i++ {
		seg := domain.TextRange{Start: cuts[i], End: cuts[i+1]}
		cover, covered := covering(hits, seg)
		if covered {
			w.start(cover.id)
		}

		w.out.WriteString(run.Open)
		if covered {
			w.out.WriteString(w.highlightProps(run.Props))
		} else {
			w.out.WriteString(run.Props)
		}
		w.contents(run, seg)
		w.out.WriteString(closeTag)

		if covered && seg.End >= cover.rng.End {
			w.end(cover.id)
		}
	}
}

// contents writes the run children that fall inside seg, splitting text
// elements at the segment edges.
func (w *paragraphWriter) contents(run ooxml.RunNode, seg domain.TextRange) {
	off := run.TextStart
	for _, c := range run.Contents {
		cs, ce := off, off+len(c.Text)
		off = ce
		if ce <= seg.Start || cs >= seg.End {
			continue
		}
		if c.Kind != ooxml.ContentText || (cs >= seg.Start && ce <= seg.End) {
			w.out.WriteString(c.Raw)
			continue
		}
		part := c.Text[max(seg.Start, cs)-cs : min(seg.End, ce)-cs]
		w.out.WriteString(w.tag("t") + ` xml:space="preserve">` + ooxml.EscapeText(part) + "</" + w.q("t") + ">")
	}
}

func (w *paragraphWriter) highlightRun(raw string, run ooxml.RunNode) string {
	if run.Props != "" {
		return strings.Replace(raw, run.Props, w.highlightProps(run.Props), 1)
	}
	if strings.HasSuffix(run.Open, "/>") {
		return raw
	}
	return run.Open + w.highlightProps("") + raw[len(run.Open):]
}

// highlightProps adds a highlight to a raw w:rPr element, keeping the
// element order Word expects.
func (w *paragraphWriter) highlightProps(props string) string {
	hl := w.tag("highlight") + " " + w.q("val") + `="` + highlightColor + `"/>`
	if props == "" {
		return w.tag("rPr") + ">" + hl + "</" + w.q("rPr") + ">"
	}
	if strings.Contains(props, "<"+w.q("highlight")) {
		return props
	}
	end := strings.LastIndex(props, "</")
	if end < 0 {
		return w.tag("rPr") + ">" + hl + "</" + w.q("rPr") + ">"
	}
	at := end
	for _, local := range afterHighlight {
		if idx := findElement(props, w.q(local)); idx >= 0 && idx < at {
			at = idx
		}
	}
	return props[:at] + hl + props[at:]
}

func (w *paragraphWriter) points(ids []int) {
	for _, id := range ids {
		w.start(id)
		w.end(id)
	}
}

func (w *paragraphWriter) start(id int) {
	if w.opened[id] {
		return
	}
	w.opened[id] = true
	w.out.WriteString(w.tag("commentRangeStart") + " " + w.q("id") + `="` + strconv.Itoa(id) + `"/>`)
}

func (w *paragraphWriter) end(id int) {
	if w.closed[id] {
		return
	}
	w.closed[id] = true
	idAttr := " " + w.q("id") + `="` + strconv.Itoa(id) + `"/>`
	w.out.WriteString(w.tag("commentRangeEnd") + idAttr)
	w.out.WriteString(w.tag("r") + ">" + w.tag("commentReference") + idAttr + "</" + w.q("r") + ">")
}

func (w *paragraphWriter) q(local string) string {
	return w.prefix + ":" + local
}

func (w *paragraphWriter) tag(local string) string {
	return "<" + w.q(local)
}

func covering(marks []mark, seg domain.TextRange) (mark, bool) {
	for _, m := range marks {
		if m.rng.Start <= seg.Start && seg.End <= m.rng.End {
			return m, true
		}
	}
	return mark{}, false
}

// findElement returns the offset of the first start tag with the given
// qualified name, or -1.
func findElement(s, qname string) int {
	needle := "<" + qname
	from := 0
	for {
		idx := strings.Index(s[from:], needle)
		if idx < 0 {
			return -1
		}
		at := from + idx
		next := at + len(needle)
		if next < len(s) && strings.ContainsRune(" />\t\r\n", rune(s[next])) {
			return at
		}
		from = next
	}
}

// elementName extracts the qualified name from a raw start tag.
func elementName(open string) string {
	name := strings.TrimPrefix(open, "<")
	if idx := strings.IndexAny(name, " \t\r\n/>"); idx >= 0 {
		name = name[:idx]
	}
	return name
}

func elementPrefix(open string) string {
	name := elementName(open)
	if idx := strings.IndexByte(name, ':'); idx > 0 {
		return name[:idx]
	}
	return "w"
}

func compactInts(s []int) []int {
	if len(s) == 0 {
		return s
	}
	out := s[:1]
	for _, v := range s[1:] {
		if v != out[len(out)-1] {
			out = append(out, v)
		}
	}
	return out
}
