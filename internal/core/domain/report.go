package domain

import "time"

// ReportVersion is the current report schema version.
const ReportVersion = 1

// Report is the versioned findings report.
type Report struct {
	Version     int              `json:"version"`
	ProcessType string           `json:"processType"`
	GeneratedAt time.Time        `json:"generatedAt"`
	Checklist   ReportChecklist  `json:"checklist"`
	Documents   []ReportDocument `json:"documents"`
	Summary     ReportSummary    `json:"summary"`
}

// ReportChecklist is the checklist section of a report.
type ReportChecklist struct {
	Satisfied bool     `json:"satisfied"`
	Missing   []string `json:"missing"`
	Extra     []string `json:"extra"`
}

// ReportDocument is one document's entry in a report.
type ReportDocument struct {
	DocumentID string        `json:"documentId"`
	Name       string        `json:"name,omitempty"`
	Status     ReviewStatus  `json:"status"`
	Error      string        `json:"error,omitempty"`
	Issues     []ReportIssue `json:"issues"`
}

// ReportIssue is one issue in a report.
type ReportIssue struct {
	ParagraphIndex *int    `json:"paragraphIndex"`
	Severity       string  `json:"severity"`
	Description    string  `json:"description"`
	Suggestion     *string `json:"suggestion"`
}

// ReportSummary holds report totals.
type ReportSummary struct {
	BySeverity  SeverityCounts `json:"bySeverity"`
	OverallPass bool           `json:"overallPass"`
}

// SeverityCounts counts issues per severity.
type SeverityCounts struct {
	Low      int `json:"low"`
	Medium   int `json:"medium"`
	High     int `json:"high"`
	Critical int `json:"critical"`
}

// Add increments the counter for s.
func (c *SeverityCounts) Add(s Severity) {
	switch s {
	case SeverityLow:
		c.Low++
	case SeverityMedium:
		c.Medium++
	case SeverityHigh:
		c.High++
	case SeverityCritical:
		c.Critical++
	}
}

// Total returns the sum over all severities.
func (c SeverityCounts) Total() int {
	return c.Low + c.Medium + c.High + c.Critical
}
