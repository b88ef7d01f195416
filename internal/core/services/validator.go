package services

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/custodia-labs/docreview/internal/core/domain"
)

// CandidateValidator turns untrusted oracle candidates into issues.
// Struct tags on domain.IssueCandidate cover presence and shape; the
// document-dependent checks (paragraph range, target document) run here.
type CandidateValidator struct {
	validate *validator.Validate
}

// NewCandidateValidator creates a validator.
func NewCandidateValidator() *CandidateValidator {
	return &CandidateValidator{
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// Validate converts candidates to issues, dropping any that fail. Each
// dropped candidate yields a *domain.CandidateValidationError.
func (v *CandidateValidator) Validate(doc *domain.Document, candidates []domain.IssueCandidate) ([]domain.Issue, []error) {
	issues := make([]domain.Issue, 0, len(candidates))
	var rejected []error
	for i, c := range candidates {
		issue, err := v.validateOne(doc, i, c)
		if err != nil {
			rejected = append(rejected, err)
			continue
		}
		issues = append(issues, issue)
	}
	return issues, rejected
}

// Revalidate runs already-validated issues back through validation.
// Valid issues come back unchanged.
func (v *CandidateValidator) Revalidate(doc *domain.Document, issues []domain.Issue) ([]domain.Issue, []error) {
	candidates := make([]domain.IssueCandidate, len(issues))
	for i, issue := range issues {
		candidates[i] = issue.ToCandidate(doc.ID)
	}
	return v.Validate(doc, candidates)
}

func (v *CandidateValidator) validateOne(doc *domain.Document, i int, c domain.IssueCandidate) (domain.Issue, error) {
	if c.Malformed != "" {
		return domain.Issue{}, &domain.CandidateValidationError{Index: i, Field: "candidate", Reason: c.Malformed}
	}

	if err := v.validate.Struct(c); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			fe := fieldErrs[0]
			return domain.Issue{}, &domain.CandidateValidationError{
				Index:  i,
				Field:  fe.Field(),
				Reason: fmt.Sprintf("failed %q constraint", fe.Tag()),
			}
		}
		return domain.Issue{}, &domain.CandidateValidationError{Index: i, Field: "candidate", Reason: err.Error()}
	}

	description := strings.TrimSpace(c.Description)
	if description == "" {
		return domain.Issue{}, &domain.CandidateValidationError{Index: i, Field: "Description", Reason: "blank"}
	}

	severity, ok := domain.ParseSeverity(c.Severity)
	if !ok {
		return domain.Issue{}, &domain.CandidateValidationError{
			Index:  i,
			Field:  "Severity",
			Reason: fmt.Sprintf("unknown severity %q", c.Severity),
		}
	}

	if c.DocumentRef != "" && c.DocumentRef != doc.ID && c.DocumentRef != doc.Name {
		return domain.Issue{}, &domain.CandidateValidationError{
			Index:  i,
			Field:  "DocumentRef",
			Reason: fmt.Sprintf("refers to another document %q", c.DocumentRef),
		}
	}

	issue := domain.Issue{
		Severity:    severity,
		Description: description,
		Excerpt:     c.Excerpt,
		Section:     strings.TrimSpace(c.Section),
		Citation:    strings.TrimSpace(c.Citation),
	}
	if c.ParagraphIndex != nil {
		if !doc.HasParagraph(*c.ParagraphIndex) {
			return domain.Issue{}, &domain.CandidateValidationError{
				Index:  i,
				Field:  "ParagraphIndex",
				Reason: fmt.Sprintf("%d is outside 0..%d", *c.ParagraphIndex, doc.ParagraphCount()-1),
			}
		}
		issue.ParagraphIndex = domain.IntPtr(*c.ParagraphIndex)
	}
	if s := strings.TrimSpace(c.Suggestion); s != "" {
		issue.Suggestion = &s
	}
	return issue, nil
}
