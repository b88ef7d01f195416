package ooxml

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
)

// WordprocessingML namespaces (transitional and strict).
const (
	NamespaceW       = "http://schemas.openxmlformats.org/wordprocessingml/2006/main"
	NamespaceWStrict = "http://purl.oclc.org/ooxml/wordprocessingml/main"
)

// Span is a half-open byte range into document.xml.
type Span struct {
	Start int
	End   int
}

// ContentKind classifies a text-bearing run child.
type ContentKind int

// Run child kinds.
const (
	ContentText ContentKind = iota
	ContentTab
	ContentBreak
)

// RunContent is one text-bearing child of a run.
type RunContent struct {
	Kind ContentKind

	// Raw is the element's source bytes.
	Raw string

	// Text is the visible text it contributes.
	Text string
}

// RunNode is a w:r element belonging to a top-level paragraph.
type RunNode struct {
	Span Span

	// Open is the raw start tag, e.g. `<w:r w:rsidR="00AB12">`.
	Open string

	// Props is the raw w:rPr element, empty when absent.
	Props string

	// TextStart and TextEnd locate the run's text within the paragraph text.
	TextStart int
	TextEnd   int

	// Contents are the text-bearing children in order.
	Contents []RunContent

	// Splittable is false when the run holds anything besides properties
	// and plain text children, such as drawings or field codes.
	Splittable bool
}

// ParagraphNode is a top-level w:p element.
type ParagraphNode struct {
	Span  Span
	Props string
	Text  string
	Runs  []RunNode
}

// IsW reports whether n is a WordprocessingML element with the given local name.
func IsW(n xml.Name, local string) bool {
	return n.Local == local && (n.Space == NamespaceW || n.Space == NamespaceWStrict)
}

type frame struct {
	name  xml.Name
	start int
}

// ParseBody scans document.xml and returns every w:p that is not nested in
// another w:p, in document order. Paragraphs inside tables are included;
// paragraphs inside text boxes contribute nothing to their host paragraph.
func ParseBody(data []byte) ([]ParagraphNode, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))

	var (
		paras []ParagraphNode
		stack []frame
		cur   *ParagraphNode
		run   *RunNode
		text  strings.Builder
		tbuf  strings.Builder
	)
	pDepth, rDepth := -1, -1
	nested := 0
	inText, sawBody := false, false

	for {
		start := int(dec.InputOffset())
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse document xml: %w", err)
		}
		end := int(dec.InputOffset())

		switch t := tok.(type) {
		case xml.StartElement:
			depth := len(stack)
			stack = append(stack, frame{name: t.Name, start: start})

			switch {
			case IsW(t.Name, "body"):
				sawBody = true
			case IsW(t.Name, "p"):
				if pDepth < 0 {
					pDepth = depth
					cur = &ParagraphNode{Span: Span{Start: start}}
					text.Reset()
				} else {
					nested++
					if run != nil {
						run.Splittable = false
					}
				}
			case pDepth < 0 || nested > 0:
			case IsW(t.Name, "r") && run == nil:
				rDepth = depth
				run = &RunNode{
					Span:       Span{Start: start},
					Open:       string(data[start:end]),
					TextStart:  text.Len(),
					Splittable: true,
				}
			case run != nil && depth == rDepth+1:
				switch {
				case IsW(t.Name, "t"):
					inText = true
					tbuf.Reset()
				case IsW(t.Name, "rPr"), IsW(t.Name, "tab"), IsW(t.Name, "br"), IsW(t.Name, "cr"):
				default:
					run.Splittable = false
				}
			}

		case xml.CharData:
			if inText && nested == 0 {
				tbuf.Write(t)
			}

		case xml.EndElement:
			if len(stack) == 0 {
				return nil, fmt.Errorf("parse document xml: unbalanced end element %s", t.Name.Local)
			}
			top := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			depth := len(stack)

			switch {
			case IsW(t.Name, "p") && depth == pDepth:
				cur.Span.End = end
				cur.Text = text.String()
				paras = append(paras, *cur)
				cur, pDepth = nil, -1
			case IsW(t.Name, "p") && pDepth >= 0:
				nested--
			case pDepth < 0 || nested > 0:
			case run != nil && depth == rDepth:
				run.Span.End = end
				run.TextEnd = text.Len()
				cur.Runs = append(cur.Runs, *run)
				run, rDepth = nil, -1
			case run != nil && depth == rDepth+1:
				raw := string(data[top.start:end])
				switch {
				case IsW(t.Name, "rPr"):
					run.Props = raw
				case IsW(t.Name, "t"):
					inText = false
					run.Contents = append(run.Contents, RunContent{Kind: ContentText, Raw: raw, Text: tbuf.String()})
					text.WriteString(tbuf.String())
				case IsW(t.Name, "tab"):
					run.Contents = append(run.Contents, RunContent{Kind: ContentTab, Raw: raw, Text: "\t"})
					text.WriteString("\t")
				case IsW(t.Name, "br"), IsW(t.Name, "cr"):
					run.Contents = append(run.Contents, RunContent{Kind: ContentBreak, Raw: raw, Text: "\n"})
					text.WriteString("\n")
				}
			case depth == pDepth+1 && IsW(t.Name, "pPr"):
				cur.Props = string(data[top.start:end])
			}
		}
	}

	if len(stack) != 0 {
		return nil, fmt.Errorf("parse document xml: unexpected end of input")
	}
	if !sawBody {
		return nil, fmt.Errorf("parse document xml: no w:body element")
	}
	return paras, nil
}

// EscapeText returns s escaped for use as XML character data.
func EscapeText(s string) string {
	var b strings.Builder
	_ = xml.EscapeText(&b, []byte(s))
	return b.String()
}
