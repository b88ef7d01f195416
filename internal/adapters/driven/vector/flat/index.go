// Package flat provides an exact, brute-force knowledge index.
//
// Every query scores all chunks by cosine similarity. The index is
// immutable after Build, so concurrent queries need no locking; rebuilding
// produces a new Index that callers swap in atomically.
package flat

import (
	"context"
	"fmt"
	"math"
	"slices"

	"github.com/custodia-labs/docreview/internal/core/domain"
	"github.com/custodia-labs/docreview/internal/core/ports/driven"
)

// Ensure Index implements the interface.
var _ driven.KnowledgeIndex = (*Index)(nil)

// Index is an immutable in-memory vector index.
type Index struct {
	manifest domain.IndexManifest
	chunks   []domain.Chunk
	norms    []float64
	dims     int
}

// Empty returns an index with no chunks.
func Empty() *Index {
	return &Index{}
}

// Build validates and copies chunks into a new index. All vectors must
// share one non-zero dimension, and chunk keys must be unique.
func Build(chunks []domain.Chunk, manifest domain.IndexManifest) (*Index, error) {
	idx := &Index{
		manifest: manifest,
		chunks:   make([]domain.Chunk, len(chunks)),
		norms:    make([]float64, len(chunks)),
	}

	seen := make(map[domain.ChunkKey]struct{}, len(chunks))
	for i, c := range chunks {
		if len(c.Vector) == 0 {
			return nil, fmt.Errorf("%w: chunk %s#%d has no vector", domain.ErrInvalidInput, c.SourceID, c.Ordinal)
		}
		if idx.dims == 0 {
			idx.dims = len(c.Vector)
		}
		if len(c.Vector) != idx.dims {
			return nil, fmt.Errorf("%w: chunk %s#%d has dimension %d, want %d",
				domain.ErrInvalidInput, c.SourceID, c.Ordinal, len(c.Vector), idx.dims)
		}
		if _, dup := seen[c.Key()]; dup {
			return nil, fmt.Errorf("%w: duplicate chunk %s#%d", domain.ErrInvalidInput, c.SourceID, c.Ordinal)
		}
		seen[c.Key()] = struct{}{}

		c.Vector = append([]float32(nil), c.Vector...)
		idx.chunks[i] = c
		idx.norms[i] = norm(c.Vector)
	}

	idx.manifest.ChunkCount = len(chunks)
	if idx.dims > 0 {
		idx.manifest.Dimensions = idx.dims
	}
	return idx, nil
}

// Query returns the k most similar chunks.
func (x *Index) Query(ctx context.Context, vector []float32, k int) ([]domain.ScoredChunk, error) {
	if k <= 0 || len(x.chunks) == 0 {
		return []domain.ScoredChunk{}, nil
	}
	if len(vector) != x.dims {
		return nil, fmt.Errorf("%w: query dimension %d, index dimension %d", domain.ErrInvalidInput, len(vector), x.dims)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	qn := norm(vector)
	results := make([]domain.ScoredChunk, len(x.chunks))
	for i, c := range x.chunks {
		results[i] = domain.ScoredChunk{Chunk: c, Score: cosine(vector, qn, c.Vector, x.norms[i])}
	}

	slices.SortFunc(results, func(a, b domain.ScoredChunk) int {
		switch {
		case a.Less(b):
			return -1
		case b.Less(a):
			return 1
		default:
			return 0
		}
	})

	if k < len(results) {
		results = results[:k]
	}
	return results, nil
}

// Len returns the number of chunks.
func (x *Index) Len() int {
	return len(x.chunks)
}

// Dimensions returns the vector dimension, or 0 for an empty index.
func (x *Index) Dimensions() int {
	return x.dims
}

// Manifest describes how the index was built.
func (x *Index) Manifest() domain.IndexManifest {
	return x.manifest
}

// Chunks returns a copy of the indexed chunks in build order.
func (x *Index) Chunks() []domain.Chunk {
	return slices.Clone(x.chunks)
}

func norm(v []float32) float64 {
	var sum float64
	for _, f := range v {
		sum += float64(f) * float64(f)
	}
	return math.Sqrt(sum)
}

// cosine returns 0 when either vector has zero length.
func cosine(a []float32, an float64, b []float32, bn float64) float64 {
	if an == 0 || bn == 0 {
		return 0
	}
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return dot / (an * bn)
}

// Ensure Builder implements the interface.
var _ driven.IndexBuilder = Builder{}

// Builder constructs flat indexes for services that depend on the port.
type Builder struct{}

// Build returns a new flat index.
func (Builder) Build(chunks []domain.Chunk, manifest domain.IndexManifest) (driven.KnowledgeIndex, error) {
	idx, err := Build(chunks, manifest)
	if err != nil {
		return nil, err
	}
	return idx, nil
}

// Empty returns an empty flat index.
func (Builder) Empty() driven.KnowledgeIndex {
	return Empty()
}
