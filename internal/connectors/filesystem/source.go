// Package filesystem reads the reference corpus from a local directory.
package filesystem

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/custodia-labs/docreview/internal/core/domain"
	"github.com/custodia-labs/docreview/internal/core/ports/driven"
	"github.com/custodia-labs/docreview/internal/logger"
)

// Ensure Source implements the interface.
var _ driven.CorpusSource = (*Source)(nil)

// Source walks a directory tree and extracts text from every file a
// segmenter understands. Hidden files and directories are skipped.
type Source struct {
	rootPath   string
	segmenters driven.SegmenterRegistry
}

// New creates a corpus source rooted at rootPath.
func New(rootPath string, segmenters driven.SegmenterRegistry) *Source {
	return &Source{rootPath: rootPath, segmenters: segmenters}
}

// Root returns the corpus directory.
func (s *Source) Root() string {
	return s.rootPath
}

// Snapshot reads every supported file. Files that cannot be segmented are
// logged and left out; an unreadable root is an error.
func (s *Source) Snapshot(ctx context.Context) (*domain.CorpusSnapshot, error) {
	info, err := os.Stat(s.rootPath)
	if err != nil {
		return nil, fmt.Errorf("corpus root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: corpus root %s is not a directory", domain.ErrInvalidInput, s.rootPath)
	}

	var files []domain.CorpusFile
	err = filepath.WalkDir(s.rootPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if path != s.rootPath && isHidden(d.Name()) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}

		file, ok, err := s.readFile(ctx, path)
		if err != nil {
			return err
		}
		if ok {
			files = append(files, file)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk corpus: %w", err)
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return &domain.CorpusSnapshot{ID: SnapshotID(files), Files: files}, nil
}

func (s *Source) readFile(ctx context.Context, path string) (domain.CorpusFile, bool, error) {
	rel, err := filepath.Rel(s.rootPath, path)
	if err != nil {
		return domain.CorpusFile{}, false, err
	}
	rel = filepath.ToSlash(rel)

	content, err := os.ReadFile(path)
	if err != nil {
		return domain.CorpusFile{}, false, fmt.Errorf("read %s: %w", rel, err)
	}

	doc, err := s.segmenters.Segment(ctx, &domain.RawDocument{Name: rel, Content: content})
	switch {
	case errors.Is(err, domain.ErrUnsupportedType):
		logger.Debug("corpus: skipping unsupported file %s", rel)
		return domain.CorpusFile{}, false, nil
	case errors.Is(err, domain.ErrMalformedDocument):
		logger.Warn("corpus: skipping %v", err)
		return domain.CorpusFile{}, false, nil
	case err != nil:
		return domain.CorpusFile{}, false, err
	}

	sum := sha256.Sum256(content)
	return domain.CorpusFile{
		Path: rel,
		Text: doc.Text(),
		Hash: hex.EncodeToString(sum[:]),
	}, true, nil
}

// SnapshotID hashes the sorted (path, hash) listing.
func SnapshotID(files []domain.CorpusFile) string {
	h := sha256.New()
	for _, f := range files {
		h.Write([]byte(f.Path))
		h.Write([]byte{0})
		h.Write([]byte(f.Hash))
		h.Write([]byte{'\n'})
	}
	return hex.EncodeToString(h.Sum(nil))
}

func isHidden(name string) bool {
	return strings.HasPrefix(name, ".")
}
