package mcp

import (
	"net/http"

	"github.com/custodia-labs/docreview/internal/core/ports/driving"
)

// Ports aggregates all driving port interfaces required by the MCP server.
// This provides a single injection point for dependency injection.
type Ports struct {
	// Review runs review batches and checklist checks.
	Review driving.ReviewService

	// Index answers corpus queries. Optional.
	Index driving.IndexService

	// Checklist lists checklist definitions. Optional.
	Checklist driving.ChecklistService

	// Metrics is served at /metrics in HTTP mode. Optional.
	Metrics http.Handler
}

// Validate ensures all required ports are set.
// Returns an error if any required port is nil.
func (p *Ports) Validate() error {
	if p.Review == nil {
		return ErrMissingReviewService
	}
	return nil
}
