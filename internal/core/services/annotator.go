package services

import (
	"fmt"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/custodia-labs/docreview/internal/core/domain"
	"github.com/custodia-labs/docreview/internal/logger"
)

// Annotator turns validated issues into highlight ranges and comments.
type Annotator struct{}

// NewAnnotator creates an annotator.
func NewAnnotator() *Annotator {
	return &Annotator{}
}

// pending is a highlight being assembled before it is anchored.
type pending struct {
	r        domain.TextRange
	comments []ordered
}

type ordered struct {
	seq  int
	text string
}

// Annotate anchors every issue on a fresh annotated copy of doc.
//
// Excerpts are located by exact match, then by whitespace-insensitive
// match, and otherwise the whole paragraph is highlighted. Overlapping
// highlights in a paragraph are merged into their union, with comments
// kept in issue order. Issues without a paragraph become document
// comments.
func (a *Annotator) Annotate(doc *domain.Document, issues []domain.Issue) (*domain.AnnotatedDocument, []domain.AnnotationNote) {
	ann := domain.NewAnnotatedDocument(doc)
	var notes []domain.AnnotationNote

	byPara := make(map[int][]pending)
	for seq, issue := range issues {
		comment := FormatComment(issue)
		if issue.ParagraphIndex == nil {
			ann.AddDocumentComment(comment)
			continue
		}

		idx := *issue.ParagraphIndex
		if idx < 0 || idx >= len(ann.Paragraphs) || ann.Paragraphs[idx].Text == "" {
			ann.AddDocumentComment(comment)
			notes = append(notes, domain.AnnotationNote{
				Kind:           domain.NoteConflictFallback,
				ParagraphIndex: idx,
				Message:        "paragraph has no text to highlight",
			})
			continue
		}

		text := ann.Paragraphs[idx].Text
		r, ok := LocateExcerpt(text, issue.Excerpt)
		if !ok {
			r = domain.TextRange{Start: 0, End: len(text)}
			msg := "no excerpt, highlighted whole paragraph"
			if strings.TrimSpace(issue.Excerpt) != "" {
				msg = fmt.Sprintf("excerpt %q not found, highlighted whole paragraph", truncate(issue.Excerpt, 60))
			}
			notes = append(notes, domain.AnnotationNote{
				Kind:           domain.NoteLocationFallback,
				ParagraphIndex: idx,
				Message:        msg,
			})
		}

		byPara[idx] = merge(byPara[idx], pending{r: r, comments: []ordered{{seq: seq, text: comment}}})
	}

	paras := make([]int, 0, len(byPara))
	for idx := range byPara {
		paras = append(paras, idx)
	}
	sort.Ints(paras)

	for _, idx := range paras {
		for _, p := range byPara[idx] {
			sort.SliceStable(p.comments, func(i, j int) bool { return p.comments[i].seq < p.comments[j].seq })
			texts := make([]string, len(p.comments))
			for i, c := range p.comments {
				texts[i] = c.text
			}
			if _, err := ann.Add(idx, p.r, texts...); err != nil {
				conflict := &domain.AnnotationConflictError{ParagraphIndex: idx, Err: err}
				logger.Warn("%s: %v", doc.Name, conflict)
				for _, t := range texts {
					ann.AddDocumentComment(t)
				}
				notes = append(notes, domain.AnnotationNote{
					Kind:           domain.NoteConflictFallback,
					ParagraphIndex: idx,
					Message:        err.Error(),
				})
			}
		}
	}
	return ann, notes
}

// merge folds p into the set, absorbing every highlight it overlaps.
// Absorbing can widen p into further highlights, so it repeats until stable.
func merge(set []pending, p pending) []pending {
	for {
		absorbed := false
		kept := set[:0:0]
		for _, q := range set {
			if q.r.Overlaps(p.r) {
				p.r = p.r.Union(q.r)
				p.comments = append(p.comments, q.comments...)
				absorbed = true
				continue
			}
			kept = append(kept, q)
		}
		set = kept
		if !absorbed {
			break
		}
	}
	return append(set, p)
}

// LocateExcerpt finds excerpt in text and returns its byte range.
// A whitespace-insensitive search is tried when the exact one fails.
func LocateExcerpt(text, excerpt string) (domain.TextRange, bool) {
	needle := strings.TrimSpace(excerpt)
	if needle == "" {
		return domain.TextRange{}, false
	}
	if i := strings.Index(text, needle); i >= 0 {
		return domain.TextRange{Start: i, End: i + len(needle)}, true
	}

	norm, starts, ends := collapseSpaces(text)
	want := strings.Join(strings.Fields(needle), " ")
	i := strings.Index(norm, want)
	if i < 0 {
		return domain.TextRange{}, false
	}
	return domain.TextRange{Start: starts[i], End: ends[i+len(want)-1]}, true
}

// collapseSpaces replaces each whitespace run with a single space. For
// every byte of the result, starts and ends give the original byte range
// it came from.
func collapseSpaces(s string) (string, []int, []int) {
	var b strings.Builder
	starts := make([]int, 0, len(s))
	ends := make([]int, 0, len(s))

	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		if unicode.IsSpace(r) {
			j := i + size
			for j < len(s) {
				r2, n := utf8.DecodeRuneInString(s[j:])
				if !unicode.IsSpace(r2) {
					break
				}
				j += n
			}
			b.WriteByte(' ')
			starts = append(starts, i)
			ends = append(ends, j)
			i = j
			continue
		}
		b.WriteString(s[i : i+size])
		for k := 0; k < size; k++ {
			starts = append(starts, i+k)
			ends = append(ends, i+k+1)
		}
		i += size
	}
	return b.String(), starts, ends
}

// FormatComment renders an issue as comment text.
func FormatComment(issue domain.Issue) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s", strings.ToUpper(string(issue.Severity)), issue.Description)
	if issue.Suggestion != nil {
		fmt.Fprintf(&b, "\nSuggestion: %s", *issue.Suggestion)
	}
	if issue.Citation != "" {
		fmt.Fprintf(&b, "\nCitation: %s", issue.Citation)
	}
	return b.String()
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n]) + "..."
}
