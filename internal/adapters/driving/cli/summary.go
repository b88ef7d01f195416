package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/custodia-labs/docreview/internal/core/domain"
	"github.com/custodia-labs/docreview/internal/core/ports/driving"
)

// printReviewSummary writes a human-readable summary of a review batch.
func printReviewSummary(w io.Writer, result *driving.ReviewResult, written []string) {
	st := NewStyles(w, nil)
	report := result.Report

	title := result.Definition.Title
	if title == "" {
		title = report.ProcessType
	}
	fmt.Fprintln(w, st.Title.Render("Compliance Review: "+title))
	fmt.Fprintln(w, st.Muted.Render("run "+result.RunID))
	fmt.Fprintln(w)

	if result.Checklist != nil {
		line := result.Checklist.Notification(result.Definition.Title)
		if result.Checklist.Satisfied {
			fmt.Fprintln(w, st.Success.Render("Checklist: ")+line)
		} else {
			fmt.Fprintln(w, st.Warning.Render("Checklist: ")+line)
		}
		if len(report.Checklist.Extra) > 0 {
			fmt.Fprintf(w, "  Unclassified: %s\n", strings.Join(report.Checklist.Extra, ", "))
		}
		fmt.Fprintln(w)
	}

	for i, doc := range report.Documents {
		name := doc.Name
		if name == "" {
			name = doc.DocumentID
		}
		status := string(doc.Status)
		switch doc.Status {
		case domain.ReviewOK:
			status = st.Success.Render(status)
		case domain.ReviewDegraded:
			status = st.Warning.Render(status)
		case domain.ReviewFailed:
			status = st.Error.Render(status)
		}
		fmt.Fprintf(w, "%s  %s  %s\n", st.Heading.Render(name), status, st.Muted.Render(pluralIssues(len(doc.Issues))))
		if doc.Error != "" {
			fmt.Fprintf(w, "  %s\n", st.Error.Render(doc.Error))
		}

		for _, issue := range doc.Issues {
			sev := domain.Severity(issue.Severity)
			where := "document"
			if issue.ParagraphIndex != nil {
				where = fmt.Sprintf("paragraph %d", *issue.ParagraphIndex+1)
			}
			fmt.Fprintf(w, "  %s %s: %s\n",
				st.Severity(sev).Render("["+strings.ToUpper(issue.Severity)+"]"),
				st.Muted.Render(where),
				issue.Description)
			if issue.Suggestion != nil && *issue.Suggestion != "" {
				fmt.Fprintf(w, "      Suggestion: %s\n", *issue.Suggestion)
			}
		}

		if i < len(result.Documents) {
			for _, note := range result.Documents[i].Review.Notes {
				fmt.Fprintf(w, "  %s\n", st.Muted.Render("note: "+note))
			}
		}
		fmt.Fprintln(w)
	}

	counts := report.Summary.BySeverity
	fmt.Fprintf(w, "Issues: %s  %s  %s  %s\n",
		st.Severity(domain.SeverityCritical).Render(fmt.Sprintf("critical %d", counts.Critical)),
		st.Severity(domain.SeverityHigh).Render(fmt.Sprintf("high %d", counts.High)),
		st.Severity(domain.SeverityMedium).Render(fmt.Sprintf("medium %d", counts.Medium)),
		st.Severity(domain.SeverityLow).Render(fmt.Sprintf("low %d", counts.Low)))

	if report.Summary.OverallPass {
		fmt.Fprintln(w, "Result: "+st.Success.Render("PASS"))
	} else {
		fmt.Fprintln(w, "Result: "+st.Error.Render("FAIL"))
	}

	for _, warning := range result.Warnings {
		fmt.Fprintln(w, st.Warning.Render("Warning: "+warning))
	}

	if len(written) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, st.Box.Render("Written:\n"+strings.Join(written, "\n")))
	}
}

func pluralIssues(n int) string {
	if n == 1 {
		return "1 issue"
	}
	return fmt.Sprintf("%d issues", n)
}
