package driving

import "github.com/custodia-labs/docreview/internal/core/domain"

// ChecklistService evaluates document completeness for a process.
type ChecklistService interface {
	// Evaluate classifies documents against the process checklist.
	// Returns domain.ErrUnknownProcessType for an undefined process and
	// *domain.AmbiguousClassificationError when a document matches several
	// categories.
	Evaluate(process domain.ProcessType, docs []*domain.Document) (*domain.ChecklistResult, error)

	// Definition returns the checklist for a process.
	Definition(process domain.ProcessType) (domain.ChecklistDefinition, error)

	// Definitions returns all configured checklists.
	Definitions() []domain.ChecklistDefinition
}
