package segmenters

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/custodia-labs/docreview/internal/core/domain"
	"github.com/custodia-labs/docreview/internal/core/ports/driven"
)

// Ensure Registry implements the interface.
var _ driven.SegmenterRegistry = (*Registry)(nil)

// Registry dispatches uploads to segmenters by MIME type, falling back to
// the filename extension when the upload carries no known MIME type.
type Registry struct {
	mu     sync.RWMutex
	byMIME map[string]driven.Segmenter
	byExt  map[string]driven.Segmenter
}

// NewRegistry creates a registry with the given segmenters.
func NewRegistry(segmenters ...driven.Segmenter) *Registry {
	r := &Registry{
		byMIME: make(map[string]driven.Segmenter),
		byExt:  make(map[string]driven.Segmenter),
	}
	for _, s := range segmenters {
		r.Register(s)
	}
	return r
}

// Register adds a segmenter. Later registrations win on conflicts.
func (r *Registry) Register(segmenter driven.Segmenter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range segmenter.SupportedMIMETypes() {
		r.byMIME[strings.ToLower(m)] = segmenter
	}
	for _, e := range segmenter.SupportedExtensions() {
		r.byExt[strings.ToLower(e)] = segmenter
	}
}

// For returns the segmenter for raw, or domain.ErrUnsupportedType.
func (r *Registry) For(raw *domain.RawDocument) (driven.Segmenter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	mime := strings.ToLower(strings.TrimSpace(raw.MIMEType))
	if i := strings.IndexByte(mime, ';'); i >= 0 {
		mime = strings.TrimSpace(mime[:i])
	}
	if s, ok := r.byMIME[mime]; ok {
		return s, nil
	}
	if s, ok := r.byExt[strings.ToLower(filepath.Ext(raw.Name))]; ok {
		return s, nil
	}
	return nil, fmt.Errorf("%w: %s", domain.ErrUnsupportedType, raw.Name)
}

// Segment dispatches raw to the matching segmenter.
func (r *Registry) Segment(ctx context.Context, raw *domain.RawDocument) (*domain.Document, error) {
	if raw == nil {
		return nil, domain.ErrInvalidInput
	}
	s, err := r.For(raw)
	if err != nil {
		return nil, err
	}
	return s.Segment(ctx, raw)
}

// SupportedMIMETypes returns all registered MIME types, sorted.
func (r *Registry) SupportedMIMETypes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	types := make([]string, 0, len(r.byMIME))
	for m := range r.byMIME {
		types = append(types, m)
	}
	sort.Strings(types)
	return types
}

// SupportedExtensions returns all registered extensions, sorted.
func (r *Registry) SupportedExtensions() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	exts := make([]string, 0, len(r.byExt))
	for e := range r.byExt {
		exts = append(exts, e)
	}
	sort.Strings(exts)
	return exts
}
