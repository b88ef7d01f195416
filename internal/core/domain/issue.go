package domain

import "strings"

// Severity is the closed set of issue severities.
type Severity string

// Available severities, lowest first.
const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// AllSeverities returns the severities in ascending order.
func AllSeverities() []Severity {
	return []Severity{SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical}
}

// ParseSeverity maps a free-form label onto a Severity.
// Matching is case-insensitive and ignores surrounding whitespace.
func ParseSeverity(label string) (Severity, bool) {
	s := Severity(strings.ToLower(strings.TrimSpace(label)))
	if s.IsValid() {
		return s, true
	}
	return "", false
}

// IsValid returns true if the severity is recognised.
func (s Severity) IsValid() bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return true
	default:
		return false
	}
}

// Rank orders severities: low=1 through critical=4, unknown=0.
func (s Severity) Rank() int {
	switch s {
	case SeverityLow:
		return 1
	case SeverityMedium:
		return 2
	case SeverityHigh:
		return 3
	case SeverityCritical:
		return 4
	default:
		return 0
	}
}

// String returns the string representation.
func (s Severity) String() string {
	return string(s)
}

// IssueCandidate is a finding proposed by the oracle. Untrusted until validated.
type IssueCandidate struct {
	// DocumentRef names the target document (ID or filename). Empty means
	// the document under review.
	DocumentRef string `json:"document_ref,omitempty"`

	// ParagraphIndex is nil for whole-document findings.
	ParagraphIndex *int `json:"paragraph_index" validate:"omitnil,gte=0"`

	Description string `json:"description" validate:"required"`
	Severity    string `json:"severity" validate:"required,max=32"`
	Suggestion  string `json:"suggestion,omitempty"`

	// Excerpt is the offending text, used to locate the highlight.
	Excerpt string `json:"excerpt,omitempty"`

	// Section is the heading or clause the finding concerns.
	Section string `json:"section,omitempty"`

	// Citation references the regulation or corpus passage relied on.
	Citation string `json:"citation,omitempty"`

	// Malformed describes a decoding problem in the oracle's reply for
	// this candidate. A malformed candidate is always rejected.
	Malformed string `json:"-"`
}

// Issue is a validated, located finding.
type Issue struct {
	ParagraphIndex *int
	Severity       Severity
	Description    string
	Suggestion     *string
	Excerpt        string
	Section        string
	Citation       string
}

// ToCandidate converts an Issue back to candidate form for re-validation.
func (i Issue) ToCandidate(documentID string) IssueCandidate {
	c := IssueCandidate{
		DocumentRef: documentID,
		Description: i.Description,
		Severity:    string(i.Severity),
		Excerpt:     i.Excerpt,
		Section:     i.Section,
		Citation:    i.Citation,
	}
	if i.ParagraphIndex != nil {
		idx := *i.ParagraphIndex
		c.ParagraphIndex = &idx
	}
	if i.Suggestion != nil {
		c.Suggestion = *i.Suggestion
	}
	return c
}

// IntPtr returns a pointer to v.
func IntPtr(v int) *int {
	return &v
}

// ReviewStatus is the per-document outcome.
type ReviewStatus string

// Available review statuses.
const (
	ReviewOK       ReviewStatus = "ok"
	ReviewDegraded ReviewStatus = "degraded"
	ReviewFailed   ReviewStatus = "failed"
)

// DocumentReview is the outcome of reviewing one document.
type DocumentReview struct {
	DocumentID string
	Name       string
	Status     ReviewStatus
	Issues     []Issue

	// Rejected counts candidates dropped by validation.
	Rejected int

	// Cause is set when Status is failed, and preserves the underlying error.
	Cause error

	// Notes are non-fatal remarks, such as location fallbacks.
	Notes []string
}
