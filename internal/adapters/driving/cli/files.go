package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/custodia-labs/docreview/internal/core/domain"
	"github.com/custodia-labs/docreview/internal/core/ports/driven"
)

// reportFileName is the report written next to the annotated copies.
const reportFileName = "report.json"

// uploadExtensions are picked up when a directory is passed as an upload.
var uploadExtensions = map[string]string{
	".docx":     domain.MIMETypeDOCX,
	".txt":      domain.MIMETypePlainText,
	".md":       domain.MIMETypeMarkdown,
	".markdown": domain.MIMETypeMarkdown,
}

// readUploads loads files in argument order. A directory contributes its
// supported files in name order; explicitly named files are always read,
// so unsupported types reach the review and fail there per document.
func readUploads(paths []string) ([]domain.RawDocument, error) {
	var docs []domain.RawDocument
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("reading upload: %w", err)
		}
		if !info.IsDir() {
			doc, err := readUpload(path)
			if err != nil {
				return nil, err
			}
			docs = append(docs, doc)
			continue
		}

		entries, err := os.ReadDir(path)
		if err != nil {
			return nil, fmt.Errorf("reading upload directory: %w", err)
		}
		names := make([]string, 0, len(entries))
		for _, e := range entries {
			if e.IsDir() || strings.HasPrefix(e.Name(), ".") || strings.HasPrefix(e.Name(), "~$") {
				continue
			}
			if _, ok := uploadExtensions[strings.ToLower(filepath.Ext(e.Name()))]; ok {
				names = append(names, e.Name())
			}
		}
		sort.Strings(names)
		for _, name := range names {
			doc, err := readUpload(filepath.Join(path, name))
			if err != nil {
				return nil, err
			}
			docs = append(docs, doc)
		}
	}
	if len(docs) == 0 {
		return nil, fmt.Errorf("%w: no documents to review", domain.ErrInvalidInput)
	}
	return docs, nil
}

func readUpload(path string) (domain.RawDocument, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return domain.RawDocument{}, fmt.Errorf("reading upload: %w", err)
	}
	return domain.RawDocument{
		Name:     filepath.Base(path),
		MIMEType: uploadExtensions[strings.ToLower(filepath.Ext(path))],
		Content:  content,
	}, nil
}

// writeOutputs writes the annotated copies and the report into dir and
// returns the written paths.
func writeOutputs(dir string, files []driven.RenderedFile, report []byte) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}
	written := make([]string, 0, len(files)+1)
	for _, f := range files {
		path := filepath.Join(dir, filepath.Base(f.Name))
		if err := os.WriteFile(path, f.Content, 0o644); err != nil {
			return written, fmt.Errorf("writing %s: %w", f.Name, err)
		}
		written = append(written, path)
	}
	if report != nil {
		path := filepath.Join(dir, reportFileName)
		if err := os.WriteFile(path, report, 0o644); err != nil {
			return written, fmt.Errorf("writing report: %w", err)
		}
		written = append(written, path)
	}
	return written, nil
}
