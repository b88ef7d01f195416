package services

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/custodia-labs/docreview/internal/core/domain"
)

// BuildReport assembles the findings report. Documents keep upload order.
// Issues are ordered by paragraph (document-level first) then by
// descending severity. The build is pure: the same inputs and now always
// produce the same report.
func BuildReport(process domain.ProcessType, checklist *domain.ChecklistResult, reviews []domain.DocumentReview, now time.Time) *domain.Report {
	report := &domain.Report{
		Version:     domain.ReportVersion,
		ProcessType: process.String(),
		GeneratedAt: now.UTC(),
		Checklist: domain.ReportChecklist{
			Missing: []string{},
			Extra:   []string{},
		},
		Documents: make([]domain.ReportDocument, 0, len(reviews)),
	}

	if checklist != nil {
		report.Checklist.Satisfied = checklist.Satisfied
		for _, c := range checklist.Missing {
			report.Checklist.Missing = append(report.Checklist.Missing, string(c))
		}
		report.Checklist.Extra = append(report.Checklist.Extra, checklist.Extra...)
	}

	for _, rv := range reviews {
		entry := domain.ReportDocument{
			DocumentID: rv.DocumentID,
			Name:       rv.Name,
			Status:     rv.Status,
			Issues:     make([]domain.ReportIssue, 0, len(rv.Issues)),
		}
		if rv.Cause != nil {
			entry.Error = rv.Cause.Error()
		}

		issues := append([]domain.Issue(nil), rv.Issues...)
		SortIssues(issues)
		for _, is := range issues {
			report.Summary.BySeverity.Add(is.Severity)
			entry.Issues = append(entry.Issues, domain.ReportIssue{
				ParagraphIndex: is.ParagraphIndex,
				Severity:       string(is.Severity),
				Description:    is.Description,
				Suggestion:     is.Suggestion,
			})
		}
		report.Documents = append(report.Documents, entry)
	}

	report.Summary.OverallPass = report.Checklist.Satisfied && report.Summary.BySeverity.Critical == 0
	return report
}

// SortIssues orders issues in place: document-level issues first, then by
// ascending paragraph index and descending severity. Ties keep their order.
func SortIssues(issues []domain.Issue) {
	sort.SliceStable(issues, func(i, j int) bool {
		a, b := issues[i].ParagraphIndex, issues[j].ParagraphIndex
		switch {
		case a == nil && b != nil:
			return true
		case a != nil && b == nil:
			return false
		case a != nil && b != nil && *a != *b:
			return *a < *b
		}
		return issues[i].Severity.Rank() > issues[j].Severity.Rank()
	})
}

// EncodeReport serializes a report as indented JSON.
func EncodeReport(r *domain.Report) ([]byte, error) {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode report: %w", err)
	}
	return data, nil
}
