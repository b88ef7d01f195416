// Package domain defines the core business entities for docreview.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - Document: A segmented upload with addressable paragraphs
//   - Chunk: A reference-corpus passage with its embedding
//   - ChecklistDefinition: The documents a process requires
//   - IssueCandidate / Issue: Untrusted and validated findings
//   - AnnotatedDocument: A document plus highlight ranges and comments
//   - Report: The versioned findings report
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. It may only import
// the Go standard library. All other packages depend on domain,
// never the reverse.
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain
