// Package ooxml reads and rewrites WordprocessingML packages (.docx).
//
// It exposes just enough structure for segmentation and annotation:
// the zip container with untouched parts preserved byte-for-byte, and a
// token-level scan of word/document.xml that records where every top-level
// paragraph and run lives in the source bytes.
package ooxml

import (
	"archive/zip"
	"bytes"
	"compress/flate"
	"errors"
	"fmt"
	"io"
	"time"
)

// Well-known part names.
const (
	DocumentPart     = "word/document.xml"
	CommentsPart     = "word/comments.xml"
	DocumentRelsPart = "word/_rels/document.xml.rels"
	ContentTypesPart = "[Content_Types].xml"
	CorePropsPart    = "docProps/core.xml"
)

// ErrPartNotFound is returned when a package has no part with the given name.
var ErrPartNotFound = errors.New("ooxml: part not found")

type part struct {
	header   zip.FileHeader
	raw      []byte
	data     []byte
	modified bool
}

// Package is an opened OOXML zip container.
type Package struct {
	parts []*part
	index map[string]*part
}

// Open reads a package from its zip bytes.
func Open(data []byte) (*Package, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open zip: %w", err)
	}

	pkg := &Package{index: make(map[string]*part, len(zr.File))}
	for _, f := range zr.File {
		rc, err := f.OpenRaw()
		if err != nil {
			return nil, fmt.Errorf("open part %q: %w", f.Name, err)
		}
		raw, err := io.ReadAll(rc)
		if err != nil {
			return nil, fmt.Errorf("read part %q: %w", f.Name, err)
		}
		p := &part{header: f.FileHeader, raw: raw}
		pkg.parts = append(pkg.parts, p)
		pkg.index[f.Name] = p
	}
	return pkg, nil
}

// Has reports whether the package contains a part.
func (p *Package) Has(name string) bool {
	_, ok := p.index[name]
	return ok
}

// Names returns part names in archive order.
func (p *Package) Names() []string {
	names := make([]string, len(p.parts))
	for i, pt := range p.parts {
		names[i] = pt.header.Name
	}
	return names
}

// Read returns the decompressed content of a part.
func (p *Package) Read(name string) ([]byte, error) {
	pt, ok := p.index[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrPartNotFound, name)
	}
	if pt.data != nil || pt.modified {
		return pt.data, nil
	}

	switch pt.header.Method {
	case zip.Store:
		pt.data = pt.raw
	case zip.Deflate:
		r := flateReader(pt.raw)
		defer r.Close()
		data, err := io.ReadAll(r)
		if err != nil {
			return nil, fmt.Errorf("inflate part %q: %w", name, err)
		}
		pt.data = data
	default:
		return nil, fmt.Errorf("part %q: %w", name, zip.ErrAlgorithm)
	}
	return pt.data, nil
}

// Put replaces a part's content, or appends a new part.
func (p *Package) Put(name string, data []byte) {
	if pt, ok := p.index[name]; ok {
		pt.data = data
		pt.modified = true
		return
	}
	pt := &part{
		header: zip.FileHeader{
			Name:     name,
			Method:   zip.Deflate,
			Modified: time.Date(1980, 1, 1, 0, 0, 0, 0, time.UTC),
		},
		data:     data,
		modified: true,
	}
	p.parts = append(p.parts, pt)
	p.index[name] = pt
}

// Bytes serialises the package. Unmodified parts are copied without
// recompression.
func (p *Package) Bytes() ([]byte, error) {
	buf := new(bytes.Buffer)
	zw := zip.NewWriter(buf)

	for _, pt := range p.parts {
		if !pt.modified {
			hdr := pt.header
			w, err := zw.CreateRaw(&hdr)
			if err != nil {
				return nil, fmt.Errorf("write part %q: %w", hdr.Name, err)
			}
			if _, err := w.Write(pt.raw); err != nil {
				return nil, fmt.Errorf("write part %q: %w", hdr.Name, err)
			}
			continue
		}

		hdr := zip.FileHeader{
			Name:     pt.header.Name,
			Method:   zip.Deflate,
			Modified: pt.header.Modified,
		}
		w, err := zw.CreateHeader(&hdr)
		if err != nil {
			return nil, fmt.Errorf("write part %q: %w", hdr.Name, err)
		}
		if _, err := w.Write(pt.data); err != nil {
			return nil, fmt.Errorf("write part %q: %w", hdr.Name, err)
		}
	}

	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("close zip: %w", err)
	}
	return buf.Bytes(), nil
}

func flateReader(raw []byte) io.ReadCloser {
	return flate.NewReader(bytes.NewReader(raw))
}
