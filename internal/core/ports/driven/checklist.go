package driven

import "github.com/custodia-labs/docreview/internal/core/domain"

// ChecklistSource supplies checklist definitions.
type ChecklistSource interface {
	// Load returns all definitions in configuration order.
	Load() ([]domain.ChecklistDefinition, error)
}
