package domain

import "time"

// Chunk is a bounded span of reference-corpus text with its embedding.
// Chunks are immutable once the knowledge index is built.
type Chunk struct {
	// SourceID identifies the corpus file (its path relative to the corpus root).
	SourceID string

	// Ordinal is the 0-based position within the source.
	Ordinal int

	// Text is the chunk content.
	Text string

	// Vector is the embedding. All chunks in one index share a dimension.
	Vector []float32
}

// ChunkKey identifies a chunk within an index.
type ChunkKey struct {
	SourceID string
	Ordinal  int
}

// Key returns the chunk's identity.
func (c Chunk) Key() ChunkKey {
	return ChunkKey{SourceID: c.SourceID, Ordinal: c.Ordinal}
}

// ScoredChunk is a chunk returned from a similarity query.
type ScoredChunk struct {
	Chunk

	// Score is the similarity to the query vector (higher is closer).
	Score float64
}

// Less orders scored chunks by descending score, then ascending
// SourceID, then ascending Ordinal.
func (s ScoredChunk) Less(o ScoredChunk) bool {
	if s.Score != o.Score {
		return s.Score > o.Score
	}
	if s.SourceID != o.SourceID {
		return s.SourceID < o.SourceID
	}
	return s.Ordinal < o.Ordinal
}

// CorpusFile is one reference-corpus source file, already reduced to text.
type CorpusFile struct {
	// Path is relative to the corpus root and doubles as the chunk SourceID.
	Path string

	// Text is the extracted plain text.
	Text string

	// Hash is the hex SHA-256 of the raw file bytes.
	Hash string
}

// CorpusSnapshot identifies a corpus listing.
type CorpusSnapshot struct {
	// ID is a hash over the sorted (path, hash) listing.
	ID string

	Files []CorpusFile
}

// IndexManifest describes a built knowledge index.
type IndexManifest struct {
	// SnapshotID is the corpus snapshot the index was built from.
	SnapshotID string

	// EmbeddingModel is the model used for chunk vectors.
	EmbeddingModel string

	Dimensions   int
	ChunkSize    int
	ChunkOverlap int
	ChunkCount   int
	SourceCount  int
	BuiltAt      time.Time
}
