package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/custodia-labs/docreview/internal/core/domain"
	"github.com/custodia-labs/docreview/internal/core/ports/driven"
)

// Verify interface compliance.
var _ driven.ReviewStore = (*reviewStore)(nil)

// defaultListLimit caps ListRuns when the caller passes no limit.
const defaultListLimit = 50

type reviewStore struct {
	store *Store
}

// SaveRun inserts or replaces a run by ID.
func (s *reviewStore) SaveRun(ctx context.Context, run domain.ReviewRun) error {
	if run.ID == "" {
		return fmt.Errorf("%w: run id is required", domain.ErrInvalidInput)
	}
	_, err := s.store.db.ExecContext(ctx, `
		INSERT INTO review_runs (id, process_type, started_at, finished_at,
			document_count, failed_count, issue_count, overall_pass, cancelled, report)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			process_type = excluded.process_type,
			started_at = excluded.started_at,
			finished_at = excluded.finished_at,
			document_count = excluded.document_count,
			failed_count = excluded.failed_count,
			issue_count = excluded.issue_count,
			overall_pass = excluded.overall_pass,
			cancelled = excluded.cancelled,
			report = excluded.report
	`,
		run.ID,
		string(run.ProcessType),
		run.StartedAt.UTC().UnixNano(),
		run.FinishedAt.UTC().UnixNano(),
		run.DocumentCount,
		run.FailedCount,
		run.IssueCount,
		boolToInt(run.OverallPass),
		boolToInt(run.Cancelled),
		run.Report,
	)
	if err != nil {
		return fmt.Errorf("saving run: %w", err)
	}
	return nil
}

// GetRun retrieves a run by ID.
func (s *reviewStore) GetRun(ctx context.Context, id string) (*domain.ReviewRun, error) {
	row := s.store.db.QueryRowContext(ctx, `
		SELECT id, process_type, started_at, finished_at, document_count,
			failed_count, issue_count, overall_pass, cancelled, report
		FROM review_runs WHERE id = ?
	`, id)

	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting run: %w", err)
	}
	return run, nil
}

// ListRuns returns runs ordered by start time, newest first.
func (s *reviewStore) ListRuns(ctx context.Context, limit int) ([]domain.ReviewRun, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}

	rows, err := s.store.db.QueryContext(ctx, `
		SELECT id, process_type, started_at, finished_at, document_count,
			failed_count, issue_count, overall_pass, cancelled, report
		FROM review_runs ORDER BY started_at DESC, id ASC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	defer rows.Close()

	var runs []domain.ReviewRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (*domain.ReviewRun, error) {
	var (
		run                 domain.ReviewRun
		processType         string
		started, finished   int64
		overallPass, cancel int
	)
	err := sc.Scan(
		&run.ID,
		&processType,
		&started,
		&finished,
		&run.DocumentCount,
		&run.FailedCount,
		&run.IssueCount,
		&overallPass,
		&cancel,
		&run.Report,
	)
	if err != nil {
		return nil, err
	}
	run.ProcessType = domain.ProcessType(processType)
	run.StartedAt = time.Unix(0, started).UTC()
	run.FinishedAt = time.Unix(0, finished).UTC()
	run.OverallPass = overallPass != 0
	run.Cancelled = cancel != 0
	return &run, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
