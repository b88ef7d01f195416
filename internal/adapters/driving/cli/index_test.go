package cli

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/docreview/internal/core/domain"
)

func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(args)
	defer func() {
		rootCmd.SetArgs(nil)
	}()

	err := rootCmd.Execute()
	return buf.String(), err
}

func TestIndexBuildCmd(t *testing.T) {
	ts, cleanup := setupTestServices()
	defer cleanup()

	output, err := runCommand(t, "index", "build")
	require.NoError(t, err)

	assert.True(t, ts.index.built)
	assert.Contains(t, output, "Indexed 42 chunks from 3 sources")
	assert.Contains(t, output, "nomic-embed-text (768 dimensions)")
}

func TestIndexBuildCmd_Error(t *testing.T) {
	ts, cleanup := setupTestServices()
	defer cleanup()
	ts.index.buildErr = errMockFailure

	_, err := runCommand(t, "index", "build")

	require.Error(t, err)
	assert.ErrorIs(t, err, errMockFailure)
}

func TestIndexStatusCmd(t *testing.T) {
	t.Run("fresh", func(t *testing.T) {
		_, cleanup := setupTestServices()
		defer cleanup()

		output, err := runCommand(t, "index", "status")
		require.NoError(t, err)

		assert.Contains(t, output, "Chunks: 42")
		assert.Contains(t, output, "Chunking: 1000 chars, 150 overlap")
		assert.Contains(t, output, "Status: up to date")
	})

	t.Run("stale", func(t *testing.T) {
		ts, cleanup := setupTestServices()
		defer cleanup()
		ts.index.freshErr = &domain.IndexStaleError{
			IndexSnapshot:  "snap-1",
			CorpusSnapshot: "snap-2",
			IndexModel:     "nomic-embed-text",
			CurrentModel:   "nomic-embed-text",
		}

		output, err := runCommand(t, "index", "status")
		require.NoError(t, err)

		assert.Contains(t, output, "Status: stale")
		assert.Contains(t, output, "docreview index build")
	})

	t.Run("empty", func(t *testing.T) {
		ts, cleanup := setupTestServices()
		defer cleanup()
		ts.index.index.size = 0

		output, err := runCommand(t, "index", "status")
		require.NoError(t, err)

		assert.Contains(t, output, "Index is empty")
	})

	t.Run("freshness error", func(t *testing.T) {
		ts, cleanup := setupTestServices()
		defer cleanup()
		ts.index.freshErr = errMockFailure

		_, err := runCommand(t, "index", "status")

		assert.ErrorIs(t, err, errMockFailure)
	})
}

func TestIndexQueryCmd(t *testing.T) {
	ts, cleanup := setupTestServices()
	defer cleanup()
	ts.index.results = []domain.ScoredChunk{
		{Chunk: domain.Chunk{SourceID: "companies-regulations.txt", Ordinal: 3, Text: "A company must have\n a registered office in ADGM."}, Score: 0.91},
	}

	output, err := runCommand(t, "index", "query", "registered office", "-n", "3")
	require.NoError(t, err)

	assert.Equal(t, 3, ts.index.lastK)
	assert.Contains(t, output, "companies-regulations.txt #3 (0.91)")
	assert.Contains(t, output, "A company must have a registered office in ADGM.")
}

func TestIndexQueryCmd_JSON(t *testing.T) {
	ts, cleanup := setupTestServices()
	defer cleanup()
	ts.index.results = []domain.ScoredChunk{
		{Chunk: domain.Chunk{SourceID: "a.txt", Ordinal: 0, Text: "passage"}, Score: 0.5},
	}

	output, err := runCommand(t, "index", "query", "office", "--json")
	require.NoError(t, err)

	assert.Equal(t, 5, ts.index.lastK)
	assert.Contains(t, output, `"source_id": "a.txt"`)
	assert.Contains(t, output, `"score": 0.5`)
}

func TestIndexQueryCmd_NoResults(t *testing.T) {
	_, cleanup := setupTestServices()
	defer cleanup()

	output, err := runCommand(t, "index", "query", "office")
	require.NoError(t, err)

	assert.Contains(t, output, "No passages found.")
}

func TestSnippet(t *testing.T) {
	assert.Equal(t, "a b c", snippet("a\n b\tc", 10))
	assert.Equal(t, "abcdefg...", snippet("abcdefghijklmnop", 10))
	assert.Equal(t, "ééé...", snippet("éééééééé", 6))
}
