package postprocessors

import (
	"context"
	"testing"

	"github.com/custodia-labs/docreview/internal/core/domain"
	"github.com/custodia-labs/docreview/internal/core/ports/driven"
	"github.com/custodia-labs/docreview/internal/postprocessors/chunker"
)

type registryMockProcessor struct {
	name string
}

func (m *registryMockProcessor) Name() string { return m.name }
func (m *registryMockProcessor) Process(_ context.Context, _ *domain.CorpusFile, chunks []domain.Chunk) ([]domain.Chunk, error) {
	return chunks, nil
}

func TestRegistry_RegisterAndBuild(t *testing.T) {
	r := NewRegistry()
	if r.Has("test") {
		t.Error("expected empty registry")
	}

	r.Register("test", func(cfg map[string]any) (driven.PostProcessor, error) {
		name := "default"
		if n, ok := cfg["name"].(string); ok {
			name = n
		}
		return &registryMockProcessor{name: name}, nil
	})

	if !r.Has("test") {
		t.Error("expected 'test' to be registered")
	}
	proc, err := r.Build("test", map[string]any{"name": "custom"})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if proc.Name() != "custom" {
		t.Errorf("expected name 'custom', got %q", proc.Name())
	}
}

func TestRegistry_Build_UnknownProcessor(t *testing.T) {
	if _, err := NewRegistry().Build("unknown", nil); err == nil {
		t.Error("expected error for unknown processor")
	}
	if _, err := NewRegistry().BuildPipeline(Stage{Name: "unknown"}); err == nil {
		t.Error("expected error for unknown stage")
	}
}

func TestRegisterDefaults(t *testing.T) {
	r := NewRegistry()
	RegisterDefaults(r)

	names := r.Names()
	if len(names) != 2 || names[0] != "chunker" || names[1] != "whitespace" {
		t.Errorf("unexpected defaults %v", names)
	}
}

func TestBuildChunker_Config(t *testing.T) {
	tests := []struct {
		name        string
		cfg         map[string]any
		wantSize    int
		wantOverlap int
	}{
		{"nil config", nil, chunker.DefaultChunkSize, chunker.DefaultChunkOverlap},
		{"size only keeps default overlap", map[string]any{"chunk_size": 500}, 500, chunker.DefaultChunkOverlap},
		{"explicit zero overlap", map[string]any{"chunk_size": int64(500), "overlap": 0}, 500, 0},
		{"float values", map[string]any{"chunk_size": float64(300), "overlap": float64(30)}, 300, 30},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			proc, err := buildChunker(tt.cfg)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			c := proc.(*chunker.Processor)
			if c.ChunkSize() != tt.wantSize || c.Overlap() != tt.wantOverlap {
				t.Errorf("expected %d/%d, got %d/%d", tt.wantSize, tt.wantOverlap, c.ChunkSize(), c.Overlap())
			}
		})
	}
}

func TestGetIntFromConfig(t *testing.T) {
	tests := []struct {
		name   string
		cfg    map[string]any
		want   int
		wantOK bool
	}{
		{"int value", map[string]any{"size": 100}, 100, true},
		{"int64 value", map[string]any{"size": int64(200)}, 200, true},
		{"float64 value", map[string]any{"size": float64(300)}, 300, true},
		{"string value", map[string]any{"size": "400"}, 0, false},
		{"missing key", map[string]any{"other": 100}, 0, false},
		{"nil config", nil, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := getIntFromConfig(tt.cfg, "size")
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("expected (%d, %v), got (%d, %v)", tt.want, tt.wantOK, got, ok)
			}
		})
	}
}
