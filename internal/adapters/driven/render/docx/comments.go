package docx

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/custodia-labs/docreview/internal/ooxml"
)

// DefaultAuthor is the author written on review comments.
const DefaultAuthor = "Compliance Review"

const (
	commentsRelType     = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/comments"
	commentsContentType = "application/vnd.openxmlformats-officedocument.wordprocessingml.comments+xml"
	relsNamespace       = "http://schemas.openxmlformats.org/package/2006/relationships"
)

var (
	idAttrPattern = regexp.MustCompile(`\bw:id="(\d+)"`)
	relIDPattern  = regexp.MustCompile(`\bId="rId(\d+)"`)
)

// commentsPart accumulates comments for word/comments.xml. Comment IDs
// continue after the highest annotation ID already in the package.
type commentsPart struct {
	existing []byte
	author   string
	date     string
	nextID   int
	entries  []string
}

func loadComments(pkg *ooxml.Package, body []byte, author string, now time.Time) (*commentsPart, error) {
	c := &commentsPart{
		author: author,
		date:   now.Format(time.RFC3339),
		nextID: maxID(body) + 1,
	}
	if pkg.Has(ooxml.CommentsPart) {
		data, err := pkg.Read(ooxml.CommentsPart)
		if err != nil {
			return nil, err
		}
		c.existing = data
		c.nextID = max(c.nextID, maxID(data)+1)
	}
	return c, nil
}

func maxID(data []byte) int {
	highest := -1
	for _, m := range idAttrPattern.FindAllSubmatch(data, -1) {
		if n, err := strconv.Atoi(string(m[1])); err == nil && n > highest {
			highest = n
		}
	}
	return highest
}

// add appends one comment holding the given texts and returns its ID.
// Each line of each text becomes its own comment paragraph.
func (c *commentsPart) add(texts ...string) int {
	id := c.nextID
	c.nextID++

	var b strings.Builder
	fmt.Fprintf(&b, `<w:comment w:id="%d" w:author="%s" w:date="%s" w:initials="%s">`,
		id, ooxml.EscapeText(c.author), c.date, ooxml.EscapeText(initials(c.author)))
	for _, text := range texts {
		for _, line := range strings.Split(text, "\n") {
			b.WriteString(`<w:p><w:r><w:t xml:space="preserve">`)
			b.WriteString(ooxml.EscapeText(line))
			b.WriteString(`</w:t></w:r></w:p>`)
		}
	}
	b.WriteString(`</w:comment>`)
	c.entries = append(c.entries, b.String())
	return id
}

func (c *commentsPart) empty() bool {
	return len(c.entries) == 0
}

func (c *commentsPart) count() int {
	return len(c.entries)
}

// write stores the comments part and, for a new part, registers it in the
// content types and the document relationships.
func (c *commentsPart) write(pkg *ooxml.Package) error {
	joined := strings.Join(c.entries, "")

	if c.existing != nil {
		end := strings.LastIndex(string(c.existing), "</")
		if end < 0 {
			return errors.New("comments part has no closing tag")
		}
		pkg.Put(ooxml.CommentsPart, []byte(string(c.existing[:end])+joined+string(c.existing[end:])))
		return nil
	}

	pkg.Put(ooxml.CommentsPart, []byte(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>`+"\n"+
		`<w:comments xmlns:w="`+ooxml.NamespaceW+`">`+joined+`</w:comments>`))

	if err := registerContentType(pkg); err != nil {
		return err
	}
	return registerRelationship(pkg)
}

func registerContentType(pkg *ooxml.Package) error {
	data, err := pkg.Read(ooxml.ContentTypesPart)
	if err != nil {
		return err
	}
	s := string(data)
	if strings.Contains(s, `PartName="/`+ooxml.CommentsPart+`"`) {
		return nil
	}
	end := strings.LastIndex(s, "</Types>")
	if end < 0 {
		return errors.New("content types part has no closing tag")
	}
	override := `<Override PartName="/` + ooxml.CommentsPart + `" ContentType="` + commentsContentType + `"/>`
	pkg.Put(ooxml.ContentTypesPart, []byte(s[:end]+override+s[end:]))
	return nil
}

func registerRelationship(pkg *ooxml.Package) error {
	if !pkg.Has(ooxml.DocumentRelsPart) {
		pkg.Put(ooxml.DocumentRelsPart, []byte(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>`+"\n"+
			`<Relationships xmlns="`+relsNamespace+`">`+relationship(1)+`</Relationships>`))
		return nil
	}

	data, err := pkg.Read(ooxml.DocumentRelsPart)
	if err != nil {
		return err
	}
	s := string(data)
	if strings.Contains(s, `Type="`+commentsRelType+`"`) {
		return nil
	}
	end := strings.LastIndex(s, "</Relationships>")
	if end < 0 {
		return errors.New("relationships part has no closing tag")
	}
	next := 1
	for _, m := range relIDPattern.FindAllStringSubmatch(s, -1) {
		if n, err := strconv.Atoi(m[1]); err == nil && n >= next {
			next = n + 1
		}
	}
	pkg.Put(ooxml.DocumentRelsPart, []byte(s[:end]+relationship(next)+s[end:]))
	return nil
}

func relationship(n int) string {
	return `<Relationship Id="rId` + strconv.Itoa(n) + `" Type="` + commentsRelType + `" Target="comments.xml"/>`
}

func initials(author string) string {
	var b strings.Builder
	for _, f := range strings.Fields(author) {
		b.WriteString(strings.ToUpper(f[:1]))
	}
	return b.String()
}
