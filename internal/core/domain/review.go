package domain

import "time"

// ReviewRun is the persisted summary of one review batch.
type ReviewRun struct {
	ID          string
	ProcessType ProcessType
	StartedAt   time.Time
	FinishedAt  time.Time

	DocumentCount int
	FailedCount   int
	IssueCount    int
	OverallPass   bool

	// Cancelled is set when the batch stopped before every document finished.
	Cancelled bool

	// Report is the JSON report as written.
	Report []byte
}

// Duration returns how long the run took.
func (r ReviewRun) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}
