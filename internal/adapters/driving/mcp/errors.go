// Package mcp provides an MCP (Model Context Protocol) server adapter for docreview.
// It lets AI assistants run compliance reviews, check uploads against a
// process checklist and query the regulatory corpus.
package mcp

import "errors"

var (
	// ErrMissingReviewService is returned when the review service is not provided.
	ErrMissingReviewService = errors.New("mcp: review service is required")

	// ErrIndexUnavailable is returned by corpus tools when no index service is configured.
	ErrIndexUnavailable = errors.New("mcp: knowledge index is not configured")

	// ErrEmptyDocument is returned when a document input carries no content.
	ErrEmptyDocument = errors.New("mcp: document has no content")
)
