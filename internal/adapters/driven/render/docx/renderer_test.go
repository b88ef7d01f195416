package docx

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/docreview/internal/core/domain"
	docxseg "github.com/custodia-labs/docreview/internal/segmenters/docx"
)

const documentHeader = `<?xml version="1.0" encoding="UTF-8"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>`

const documentFooter = `<w:sectPr/></w:body></w:document>`

const stylesXML = `<?xml version="1.0"?><w:styles xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"/>`

var fixedClock = func() time.Time { return time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC) }

// buildDOCX writes a minimal package. extra parts are added verbatim.
func buildDOCX(t *testing.T, body string, extra map[string]string) []byte {
	t.Helper()
	buf := new(bytes.Buffer)
	w := zip.NewWriter(buf)

	parts := []struct{ name, content string }{
		{"[Content_Types].xml", `<?xml version="1.0" encoding="UTF-8"?>
<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types"><Default Extension="xml" ContentType="application/xml"/></Types>`},
		{"word/_rels/document.xml.rels", `<?xml version="1.0" encoding="UTF-8"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships"><Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/styles" Target="styles.xml"/></Relationships>`},
		{"word/document.xml", documentHeader + body + documentFooter},
		{"word/styles.xml", stylesXML},
	}
	for _, p := range parts {
		f, err := w.Create(p.name)
		require.NoError(t, err)
		_, err = f.Write([]byte(p.content))
		require.NoError(t, err)
	}
	for name, content := range extra {
		f, err := w.Create(name)
		require.NoError(t, err)
		_, err = f.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func readPart(t *testing.T, data []byte, name string) string {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	for _, f := range zr.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		require.NoError(t, err)
		defer rc.Close()
		content, err := io.ReadAll(rc)
		require.NoError(t, err)
		return string(content)
	}
	t.Fatalf("part %s not found", name)
	return ""
}

func annotated(t *testing.T, name string, content []byte) *domain.AnnotatedDocument {
	t.Helper()
	doc, err := docxseg.New().Segment(context.Background(), &domain.RawDocument{
		Name:     name,
		MIMEType: domain.MIMETypeDOCX,
		Content:  content,
	})
	require.NoError(t, err)
	return domain.NewAnnotatedDocument(doc)
}

func render(t *testing.T, doc *domain.AnnotatedDocument) []byte {
	t.Helper()
	files, err := New(WithClock(fixedClock)).Render(context.Background(), doc)
	require.NoError(t, err)
	require.Len(t, files, 1)
	return files[0].Content
}

func TestNew(t *testing.T) {
	r := New()
	require.NotNil(t, r)
	assert.Equal(t, []string{domain.MIMETypeDOCX}, r.SupportedMIMETypes())
	assert.Equal(t, DefaultAuthor, r.author)
}

func TestOutputName(t *testing.T) {
	assert.Equal(t, "Reviewed_aoa.docx", OutputName("aoa.docx"))
	assert.Equal(t, "Reviewed_board minutes.docx", OutputName("uploads/board minutes.docx"))
	assert.Equal(t, "Reviewed_memo.docx", OutputName("memo"))
}

func TestRender_SplitsRunAtHighlight(t *testing.T) {
	content := buildDOCX(t, `<w:p><w:r><w:t>The company shall pay.</w:t></w:r></w:p>`, nil)
	doc := annotated(t, "aoa.docx", content)
	_, err := doc.Add(0, domain.TextRange{Start: 4, End: 11}, "[HIGH] Missing amount")
	require.NoError(t, err)

	out := render(t, doc)
	body := readPart(t, out, "word/document.xml")

	want := `<w:p><w:r><w:t xml:space="preserve">The </w:t></w:r>` +
		`<w:commentRangeStart w:id="0"/>` +
		`<w:r><w:rPr><w:highlight w:val="yellow"/></w:rPr><w:t xml:space="preserve">company</w:t></w:r>` +
		`<w:commentRangeEnd w:id="0"/><w:r><w:commentReference w:id="0"/></w:r>` +
		`<w:r><w:t xml:space="preserve"> shall pay.</w:t></w:r></w:p>`
	assert.Equal(t, documentHeader+want+documentFooter, body)
}

func TestRender_WholeRunKeepsOriginalText(t *testing.T) {
	content := buildDOCX(t, `<w:p><w:r><w:t>Resolved.</w:t></w:r></w:p>`, nil)
	doc := annotated(t, "minutes.docx", content)
	_, err := doc.Add(0, domain.TextRange{Start: 0, End: 9}, "note")
	require.NoError(t, err)

	body := readPart(t, render(t, doc), "word/document.xml")
	assert.Contains(t, body, `<w:r><w:rPr><w:highlight w:val="yellow"/></w:rPr><w:t>Resolved.</w:t></w:r>`)
}

func TestRender_RangeAcrossRuns(t *testing.T) {
	content := buildDOCX(t,
		`<w:p><w:r><w:t xml:space="preserve">Governed by </w:t></w:r><w:r><w:rPr><w:i/></w:rPr><w:t>UAE Federal Courts</w:t></w:r></w:p>`, nil)
	doc := annotated(t, "aoa.docx", content)
	_, err := doc.Add(0, domain.TextRange{Start: 9, End: 15}, "jurisdiction")
	require.NoError(t, err)

	body := readPart(t, render(t, doc), "word/document.xml")

	assert.Equal(t, 1, bytes.Count([]byte(body), []byte(`<w:commentRangeStart w:id="0"/>`)))
	assert.Equal(t, 1, bytes.Count([]byte(body), []byte(`<w:commentRangeEnd w:id="0"/>`)))
	assert.Contains(t, body, `<w:rPr><w:highlight w:val="yellow"/></w:rPr><w:t xml:space="preserve">by </w:t>`)
	assert.Contains(t, body, `<w:rPr><w:i/><w:highlight w:val="yellow"/></w:rPr><w:t xml:space="preserve">UAE</w:t>`)
	assert.Contains(t, body, `<w:rPr><w:i/></w:rPr><w:t xml:space="preserve"> Federal Courts</w:t>`)
}

func TestRender_TextUnchangedAfterRoundTrip(t *testing.T) {
	content := buildDOCX(t,
		`<w:p><w:r><w:t>Articles of Association</w:t></w:r></w:p>`+
			`<w:p><w:r><w:t xml:space="preserve">Share capital &amp; </w:t></w:r><w:r><w:rPr><w:b/></w:rPr><w:t>transfers</w:t><w:tab/><w:t>apply</w:t></w:r></w:p>`+
			`<w:p/>`, nil)
	doc := annotated(t, "aoa.docx", content)
	_, err := doc.Add(1, domain.TextRange{Start: 6, End: 24}, "one")
	require.NoError(t, err)
	_, err = doc.Add(1, domain.TextRange{Start: 25, End: 28}, "two")
	require.NoError(t, err)

	out := render(t, doc)
	before := annotated(t, "aoa.docx", content)
	after := annotated(t, "Reviewed_aoa.docx", out)
	require.Len(t, after.Paragraphs, len(before.Paragraphs))
	for i := range before.Paragraphs {
		assert.Equal(t, before.Paragraphs[i].Text, after.Paragraphs[i].Text, "paragraph %d", i)
	}
}

func TestRender_UntouchedContentPreserved(t *testing.T) {
	first := `<w:p w:rsidR="00AB"><w:pPr><w:pStyle w:val="Title"/></w:pPr><w:r><w:t>Memorandum</w:t></w:r></w:p>`
	second := `<w:p><w:r><w:t>Objects of the company.</w:t></w:r></w:p>`
	content := buildDOCX(t, first+second, nil)
	doc := annotated(t, "memorandum.docx", content)
	_, err := doc.Add(1, domain.TextRange{Start: 0, End: 7}, "vague")
	require.NoError(t, err)

	out := render(t, doc)
	body := readPart(t, out, "word/document.xml")
	assert.Contains(t, body, documentHeader+first)
	assert.Contains(t, body, documentFooter)
	assert.Equal(t, stylesXML, readPart(t, out, "word/styles.xml"))
}

func TestRender_CreatesCommentsPart(t *testing.T) {
	content := buildDOCX(t, `<w:p><w:r><w:t>Capital is AED 1 &lt;million&gt;.</w:t></w:r></w:p>`, nil)
	doc := annotated(t, "aoa.docx", content)
	_, err := doc.Add(0, domain.TextRange{Start: 0, End: 7}, "[MEDIUM] Capital unclear\nSuggestion: state the amount", "second")
	require.NoError(t, err)

	out := render(t, doc)

	comments := readPart(t, out, "word/comments.xml")
	assert.Contains(t, comments, `<w:comment w:id="0" w:author="Compliance Review" w:date="2026-03-01T09:30:00Z" w:initials="CR">`)
	assert.Contains(t, comments, `<w:t xml:space="preserve">[MEDIUM] Capital unclear</w:t>`)
	assert.Contains(t, comments, `<w:t xml:space="preserve">Suggestion: state the amount</w:t>`)
	assert.Contains(t, comments, `<w:t xml:space="preserve">second</w:t>`)

	types := readPart(t, out, "[Content_Types].xml")
	assert.Contains(t, types, `<Override PartName="/word/comments.xml" ContentType="`+commentsContentType+`"/>`)

	rels := readPart(t, out, "word/_rels/document.xml.rels")
	assert.Contains(t, rels, `<Relationship Id="rId2" Type="`+commentsRelType+`" Target="comments.xml"/>`)
	assert.Contains(t, rels, `Id="rId1"`)
}

func TestRender_ExtendsExistingComments(t *testing.T) {
	existing := `<?xml version="1.0"?><w:comments xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">` +
		`<w:comment w:id="3" w:author="Counsel"><w:p><w:r><w:t>earlier</w:t></w:r></w:p></w:comment></w:comments>`
	content := buildDOCX(t,
		`<w:p><w:commentRangeStart w:id="3"/><w:r><w:t>Objects</w:t></w:r><w:commentRangeEnd w:id="3"/></w:p>`,
		map[string]string{"word/comments.xml": existing})
	doc := annotated(t, "memorandum.docx", content)
	_, err := doc.Add(0, domain.TextRange{Start: 0, End: 7}, "new")
	require.NoError(t, err)

	out := render(t, doc)
	comments := readPart(t, out, "word/comments.xml")
	assert.Contains(t, comments, `<w:comment w:id="3" w:author="Counsel">`)
	assert.Contains(t, comments, `<w:comment w:id="4" w:author="Compliance Review"`)
	assert.True(t, bytes.HasSuffix([]byte(comments), []byte(`</w:comment></w:comments>`)))

	rels := readPart(t, out, "word/_rels/document.xml.rels")
	assert.NotContains(t, rels, commentsRelType, "existing parts are not re-registered")
}

func TestRender_HighlightRespectsPropertyOrder(t *testing.T) {
	content := buildDOCX(t,
		`<w:p><w:r><w:rPr><w:b/><w:sz w:val="24"/><w:u w:val="single"/><w:lang w:val="en-GB"/></w:rPr><w:t>Directors</w:t></w:r></w:p>`, nil)
	doc := annotated(t, "aoa.docx", content)
	_, err := doc.Add(0, domain.TextRange{Start: 0, End: 9}, "x")
	require.NoError(t, err)

	body := readPart(t, render(t, doc), "word/document.xml")
	assert.Contains(t, body,
		`<w:rPr><w:b/><w:sz w:val="24"/><w:highlight w:val="yellow"/><w:u w:val="single"/><w:lang w:val="en-GB"/></w:rPr>`)
}

func TestRender_NonSplittableRunHighlightedWhole(t *testing.T) {
	content := buildDOCX(t,
		`<w:p><w:r><w:fldChar w:fldCharType="begin"/><w:t>PAGE 1</w:t></w:r></w:p>`, nil)
	doc := annotated(t, "aoa.docx", content)
	_, err := doc.Add(0, domain.TextRange{Start: 0, End: 4}, "x")
	require.NoError(t, err)

	body := readPart(t, render(t, doc), "word/document.xml")
	assert.Contains(t, body,
		`<w:commentRangeStart w:id="0"/><w:r><w:rPr><w:highlight w:val="yellow"/></w:rPr><w:fldChar w:fldCharType="begin"/><w:t>PAGE 1</w:t></w:r><w:commentRangeEnd w:id="0"/>`)
}

func TestRender_DocumentCommentsAnchorOnFirstParagraph(t *testing.T) {
	content := buildDOCX(t,
		`<w:p/><w:p><w:pPr><w:jc w:val="center"/></w:pPr><w:r><w:t>Minutes</w:t></w:r></w:p>`, nil)
	doc := annotated(t, "minutes.docx", content)
	doc.AddDocumentComment("[LOW] No date")

	out := render(t, doc)
	body := readPart(t, out, "word/document.xml")
	assert.Contains(t, body, `<w:p/><w:p><w:pPr><w:jc w:val="center"/></w:pPr>`+
		`<w:commentRangeStart w:id="0"/><w:commentRangeEnd w:id="0"/><w:r><w:commentReference w:id="0"/></w:r>`+
		`<w:r><w:t>Minutes</w:t></w:r></w:p>`)
	assert.Contains(t, readPart(t, out, "word/comments.xml"), `[LOW] No date`)
}

func TestRender_NoAnnotationsCopiesOriginal(t *testing.T) {
	content := buildDOCX(t, `<w:p><w:r><w:t>Clean</w:t></w:r></w:p>`, nil)
	doc := annotated(t, "clean.docx", content)

	files, err := New().Render(context.Background(), doc)
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "Reviewed_clean.docx", files[0].Name)
	assert.Equal(t, content, files[0].Content)
}

func TestRender_Deterministic(t *testing.T) {
	content := buildDOCX(t, `<w:p><w:r><w:t>The company shall pay.</w:t></w:r></w:p>`, nil)
	build := func() []byte {
		doc := annotated(t, "aoa.docx", content)
		_, err := doc.Add(0, domain.TextRange{Start: 4, End: 11}, "x")
		require.NoError(t, err)
		return render(t, doc)
	}
	assert.Equal(t, build(), build())
}

func TestRender_Errors(t *testing.T) {
	ctx := context.Background()
	r := New()

	_, err := r.Render(ctx, nil)
	assert.Error(t, err)

	_, err = r.Render(ctx, &domain.AnnotatedDocument{Name: "bad.docx", Raw: []byte("not a zip")})
	assert.True(t, errors.Is(err, domain.ErrMalformedDocument))

	content := buildDOCX(t, `<w:p><w:r><w:t>One</w:t></w:r></w:p>`, nil)
	doc := annotated(t, "one.docx", content)
	doc.Raw = buildDOCX(t, `<w:p/><w:p/>`, nil)
	_, err = r.Render(ctx, doc)
	assert.ErrorContains(t, err, "paragraphs")

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = r.Render(cancelled, annotated(t, "one.docx", content))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestHighlightProps(t *testing.T) {
	w := &paragraphWriter{prefix: "w"}
	hl := `<w:highlight w:val="yellow"/>`

	tests := []struct {
		name  string
		props string
		want  string
	}{
		{"absent", "", `<w:rPr>` + hl + `</w:rPr>`},
		{"self closing", `<w:rPr/>`, `<w:rPr>` + hl + `</w:rPr>`},
		{"appended", `<w:rPr><w:b/></w:rPr>`, `<w:rPr><w:b/>` + hl + `</w:rPr>`},
		{"before vertAlign", `<w:rPr><w:vertAlign w:val="superscript"/></w:rPr>`, `<w:rPr>` + hl + `<w:vertAlign w:val="superscript"/></w:rPr>`},
		{"no later elements", `<w:rPr><w:sz w:val="20"/></w:rPr>`, `<w:rPr><w:sz w:val="20"/>` + hl + `</w:rPr>`},
		{"existing kept", `<w:rPr><w:highlight w:val="green"/></w:rPr>`, `<w:rPr><w:highlight w:val="green"/></w:rPr>`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, w.highlightProps(tt.props))
		})
	}
}

func TestElementHelpers(t *testing.T) {
	assert.Equal(t, "w:r", elementName(`<w:r w:rsidR="00AB">`))
	assert.Equal(t, "w:r", elementName(`<w:r>`))
	assert.Equal(t, "w", elementPrefix(`<w:r>`))
	assert.Equal(t, "x", elementPrefix(`<x:r>`))
	assert.Equal(t, "w", elementPrefix(`<r>`))
	assert.Equal(t, []int{1, 2, 5}, compactInts([]int{1, 1, 2, 5, 5}))
	assert.Equal(t, 2, findElement(`<a<w:u/>`, "w:u"))
	assert.Equal(t, -1, findElement(`<w:uLine/>`, "w:u"))
	assert.Equal(t, "CR", initials("Compliance Review"))
}
