package driven

import (
	"context"

	"github.com/custodia-labs/docreview/internal/core/domain"
)

// FindingsOracle proposes candidate compliance issues for a document.
// Its output is untrusted: callers validate every candidate.
//
// Errors are treated as transient and retried by the caller. Implementations
// should wrap unparseable payloads with domain.ErrOracleMalformed.
type FindingsOracle interface {
	ProposeIssues(ctx context.Context, req OracleRequest) ([]domain.IssueCandidate, error)
}

// OracleRequest is the input for one oracle call.
type OracleRequest struct {
	// Document is the document under review.
	Document *domain.Document

	// Context is the retrieved reference passages, best first. May be empty.
	Context []domain.ScoredChunk

	// Process is the declared process type, for prompt framing.
	Process domain.ProcessType

	// Jurisdiction names the regulatory regime, e.g. "ADGM".
	Jurisdiction string
}
