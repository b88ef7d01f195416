package driven

import (
	"time"

	"github.com/custodia-labs/docreview/internal/core/domain"
)

// ReviewMetrics records pipeline measurements. Implementations must be
// safe for concurrent use.
type ReviewMetrics interface {
	// ObserveDocument records one finished document review.
	ObserveDocument(status domain.ReviewStatus, issues int, elapsed time.Duration)

	// ObserveOracleCall records one oracle attempt; outcome is "ok", "error" or "malformed".
	ObserveOracleCall(outcome string, elapsed time.Duration)

	// ObserveRejectedCandidates records candidates dropped by validation.
	ObserveRejectedCandidates(n int)

	// ObserveBatch records one finished batch.
	ObserveBatch(documents int, elapsed time.Duration)

	// ObserveIndexBuild records one index build.
	ObserveIndexBuild(chunks int, elapsed time.Duration)
}
