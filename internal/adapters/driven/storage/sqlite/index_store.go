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
var _ driven.IndexStore = (*indexStore)(nil)

type indexStore struct {
	store *Store
}

// SaveIndex replaces the stored manifest and chunks in one transaction.
func (s *indexStore) SaveIndex(ctx context.Context, manifest domain.IndexManifest, chunks []domain.Chunk) error {
	tx, err := s.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if _, err := tx.ExecContext(ctx, "DELETE FROM index_chunks"); err != nil {
		return fmt.Errorf("clearing chunks: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM index_manifest"); err != nil {
		return fmt.Errorf("clearing manifest: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO index_manifest (id, snapshot_id, embedding_model, dimensions,
			chunk_size, chunk_overlap, chunk_count, source_count, built_at)
		VALUES (1, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		manifest.SnapshotID,
		manifest.EmbeddingModel,
		manifest.Dimensions,
		manifest.ChunkSize,
		manifest.ChunkOverlap,
		manifest.ChunkCount,
		manifest.SourceCount,
		manifest.BuiltAt.UTC().UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("inserting manifest: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO index_chunks (source_id, ordinal, text, vector)
		VALUES (?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("preparing chunk insert: %w", err)
	}
	defer stmt.Close()

	for _, c := range chunks {
		if _, err := stmt.ExecContext(ctx, c.SourceID, c.Ordinal, c.Text, float32SliceToBytes(c.Vector)); err != nil {
			return fmt.Errorf("inserting chunk %s#%d: %w", c.SourceID, c.Ordinal, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing index: %w", err)
	}
	return nil
}

// LoadIndex reads the stored manifest and chunks in source order.
func (s *indexStore) LoadIndex(ctx context.Context) (*domain.IndexManifest, []domain.Chunk, error) {
	var (
		m       domain.IndexManifest
		builtAt int64
	)
	err := s.store.db.QueryRowContext(ctx, `
		SELECT snapshot_id, embedding_model, dimensions, chunk_size,
			chunk_overlap, chunk_count, source_count, built_at
		FROM index_manifest WHERE id = 1
	`).Scan(
		&m.SnapshotID,
		&m.EmbeddingModel,
		&m.Dimensions,
		&m.ChunkSize,
		&m.ChunkOverlap,
		&m.ChunkCount,
		&m.SourceCount,
		&builtAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, nil, fmt.Errorf("reading manifest: %w", err)
	}
	m.BuiltAt = time.Unix(0, builtAt).UTC()

	rows, err := s.store.db.QueryContext(ctx, `
		SELECT source_id, ordinal, text, vector
		FROM index_chunks ORDER BY source_id, ordinal
	`)
	if err != nil {
		return nil, nil, fmt.Errorf("reading chunks: %w", err)
	}
	defer rows.Close()

	chunks := make([]domain.Chunk, 0, m.ChunkCount)
	for rows.Next() {
		var (
			c      domain.Chunk
			vector []byte
		)
		if err := rows.Scan(&c.SourceID, &c.Ordinal, &c.Text, &vector); err != nil {
			return nil, nil, fmt.Errorf("scanning chunk: %w", err)
		}
		c.Vector = bytesToFloat32Slice(vector)
		chunks = append(chunks, c)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterating chunks: %w", err)
	}

	return &m, chunks, nil
}
