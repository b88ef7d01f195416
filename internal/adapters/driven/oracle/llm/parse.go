package llm

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/custodia-labs/docreview/internal/core/domain"
)

// finding is the wire shape requested from the model. Alternate key names
// seen in practice are accepted too.
type finding struct {
	Paragraph      json.RawMessage `json:"paragraph"`
	ParagraphIndex json.RawMessage `json:"paragraph_index"`
	Section        string          `json:"section"`
	OffendingText  string          `json:"offending_text"`
	Excerpt        string          `json:"excerpt"`
	Issue          string          `json:"issue"`
	Description    string          `json:"description"`
	Severity       string          `json:"severity"`
	Suggestion     string          `json:"suggestion"`
	Citation       string          `json:"citation"`
}

// ParseFindings extracts issue candidates from a model reply. It tolerates
// code fences and prose around the JSON: the array is taken from the first
// '[' to the last ']'. A bare object, or an object wrapping an array under
// any key, is also accepted. Anything else wraps domain.ErrOracleMalformed.
//
// Elements are decoded one at a time. An element with a bad paragraph or
// mistyped fields still yields a candidate, marked Malformed, so that
// validation drops it without losing its siblings.
func ParseFindings(reply string) ([]domain.IssueCandidate, error) {
	text := stripFences(strings.TrimSpace(reply))

	if start, end := strings.Index(text, "["), strings.LastIndex(text, "]"); start >= 0 && end > start {
		if elems, ok := findingsArray([]byte(text[start : end+1])); ok {
			return toCandidates(elems), nil
		}
	}

	if start, end := strings.Index(text, "{"), strings.LastIndex(text, "}"); start >= 0 && end > start {
		obj := []byte(text[start : end+1])
		if wrapped, ok := unwrapObject(obj); ok {
			return toCandidates(wrapped), nil
		}
	}

	return nil, fmt.Errorf("%w: no JSON findings array in reply", domain.ErrOracleMalformed)
}

// unwrapObject handles {"findings": [...]} and a single finding object.
func unwrapObject(obj []byte) ([]json.RawMessage, bool) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(obj, &fields); err != nil {
		return nil, false
	}
	for _, v := range fields {
		if arr, ok := findingsArray(v); ok {
			return arr, true
		}
	}
	if decodeFinding(obj).Description == "" {
		return nil, false
	}
	return []json.RawMessage{obj}, true
}

// findingsArray accepts a JSON array that is empty or holds at least one
// object, so bracketed prose such as "[3]" is not mistaken for findings.
func findingsArray(data []byte) ([]json.RawMessage, bool) {
	var elems []json.RawMessage
	if len(data) == 0 || data[0] != '[' || json.Unmarshal(data, &elems) != nil {
		return nil, false
	}
	if len(elems) == 0 {
		return elems, true
	}
	for _, e := range elems {
		if len(e) > 0 && e[0] == '{' {
			return elems, true
		}
	}
	return nil, false
}

func toCandidates(elems []json.RawMessage) []domain.IssueCandidate {
	out := make([]domain.IssueCandidate, 0, len(elems))
	for _, raw := range elems {
		out = append(out, decodeFinding(raw))
	}
	return out
}

// decodeFinding never fails; problems are recorded in Malformed.
func decodeFinding(raw json.RawMessage) domain.IssueCandidate {
	var f finding
	decodeErr := json.Unmarshal(raw, &f)

	c := domain.IssueCandidate{
		Description: firstNonEmpty(f.Issue, f.Description),
		Severity:    f.Severity,
		Suggestion:  f.Suggestion,
		Excerpt:     firstNonEmpty(f.OffendingText, f.Excerpt),
		Section:     f.Section,
		Citation:    f.Citation,
	}
	if decodeErr != nil {
		c.Malformed = describeDecodeError(decodeErr)
		return c
	}

	idx, err := paragraphIndex(f.Paragraph)
	if err == nil && idx == nil {
		idx, err = paragraphIndex(f.ParagraphIndex)
	}
	if err != nil {
		c.Malformed = err.Error()
		return c
	}
	c.ParagraphIndex = idx
	return c
}

func describeDecodeError(err error) string {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		if typeErr.Field == "" {
			return fmt.Sprintf("finding is a JSON %s, not an object", typeErr.Value)
		}
		return fmt.Sprintf("field %s is a JSON %s", typeErr.Field, typeErr.Value)
	}
	return err.Error()
}

// paragraphIndex accepts a number, a numeric string or null.
// Out-of-range values pass through; validation rejects them later.
func paragraphIndex(raw json.RawMessage) (*int, error) {
	s := strings.TrimSpace(string(raw))
	if s == "" || s == "null" {
		return nil, nil
	}
	if unq, err := strconv.Unquote(s); err == nil {
		s = strings.TrimSpace(strings.Trim(unq, "[]"))
		if s == "" {
			return nil, nil
		}
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f != float64(int(f)) {
		return nil, fmt.Errorf("paragraph %s is not an integer", string(raw))
	}
	return domain.IntPtr(int(f)), nil
}

// stripFences removes a surrounding ```json ... ``` block.
func stripFences(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	}
	if end := strings.LastIndex(s, "```"); end >= 0 {
		s = s[:end]
	}
	return strings.TrimSpace(s)
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
