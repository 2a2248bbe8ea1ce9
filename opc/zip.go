package opc

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/tsawler/sheetkit/format"
	"github.com/tsawler/sheetkit/xlerr"
)

// relationshipsXML represents .rels files.
type relationshipsXML struct {
	XMLName      xml.Name          `xml:"http://schemas.openxmlformats.org/package/2006/relationships Relationships"`
	Relationship []relationshipXML `xml:"Relationship"`
}

type relationshipXML struct {
	ID         string `xml:"Id,attr"`
	Type       string `xml:"Type,attr"`
	Target     string `xml:"Target,attr"`
	TargetMode string `xml:"TargetMode,attr,omitempty"`
}

// zipModTime is stamped on every entry so identical models produce
// identical archives.
var zipModTime = time.Date(1980, time.January, 1, 0, 0, 0, 0, time.UTC)

// maxPartSize bounds a single decompressed entry.
const maxPartSize = 1 << 30

// Open reads a package from r.
func Open(r io.ReaderAt, size int64) (*Package, error) {
	return OpenWithOptions(r, size, Options{})
}

// OpenFile reads a package from the named file.
func OpenFile(name string) (*Package, error) {
	return OpenFileWithOptions(name, Options{})
}

// OpenFileWithOptions reads a package from the named file using opts.
func OpenFileWithOptions(name string, opts Options) (*Package, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, xlerr.IO("open", name, err)
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return nil, xlerr.IO("open", name, err)
	}
	return OpenWithOptions(f, st.Size(), opts)
}

// OpenWithOptions reads a package from r using opts.
func OpenWithOptions(r io.ReaderAt, size int64, opts Options) (*Package, error) {
	if err := sniff(r, size); err != nil {
		return nil, err
	}

	zr, err := zip.NewReader(r, size)
	if err != nil {
		return nil, classifyZipError("open", "", err)
	}

	p := NewWithOptions(opts)
	var (
		manifestData []byte
		relsData     = make(map[string][]byte)
		relsNames    []string
		seen         = make(map[string]string)
	)

	for _, f := range zr.File {
		if strings.HasSuffix(f.Name, "/") {
			continue
		}
		name := NormalizeName(f.Name)
		if name == "" {
			continue
		}
		if prev, dup := seen[strings.ToLower(name)]; dup {
			return nil, xlerr.Format("open", name, fmt.Errorf("duplicate entry (also %s)", prev))
		}
		seen[strings.ToLower(name)] = name

		data, err := readEntry(f)
		if err != nil {
			return nil, classifyZipError("open", name, err)
		}

		switch {
		case strings.EqualFold(name, contentTypesName):
			manifestData = data
		default:
			if owner, ok := ownerOfRels(name); ok {
				relsData[owner] = data
				relsNames = append(relsNames, owner)
				continue
			}
			p.parts[name] = &Part{Name: name, Data: data}
			p.order = append(p.order, name)
			p.index[strings.ToLower(name)] = name
		}
	}

	if manifestData == nil {
		return nil, xlerr.Format("open", contentTypesName, errors.New("missing content type manifest"))
	}
	m, err := parseManifest(manifestData)
	if err != nil {
		return nil, xlerr.Format("open", contentTypesName, err)
	}
	for _, name := range p.order {
		part := p.parts[name]
		if ct, ok := m.lookup(name); ok {
			part.ContentType = ct
			continue
		}
		part.ContentType = DefaultContentType
		p.log.Warn("part has no registered content type", "part", name, "content_type", DefaultContentType)
	}

	for _, key := range relsNames {
		owner := key
		if owner != "" {
			actual, ok := p.lookup(owner)
			if !ok {
				p.log.Warn("dropping relationships of missing part", "part", RelsPartName(owner), "reason", "orphaned")
				continue
			}
			owner = actual
		}
		if err := p.loadRelationships(owner, relsData[key]); err != nil {
			return nil, err
		}
	}

	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Package) loadRelationships(owner string, data []byte) error {
	relsName := RelsPartName(owner)
	var rels relationshipsXML
	if err := xml.Unmarshal(data, &rels); err != nil {
		return xlerr.Format("open", relsName, err)
	}
	set := p.relSet(owner)
	for _, r := range rels.Relationship {
		mode := Internal
		if strings.EqualFold(r.TargetMode, "External") {
			mode = External
		}
		if r.ID == "" {
			return xlerr.Integrityf("open", relsName, "relationship without id")
		}
		if !set.add(Relationship{ID: r.ID, Type: r.Type, Target: r.Target, Mode: mode}) {
			return xlerr.Integrityf("open", relsName, "duplicate relationship id %q", r.ID)
		}
	}
	return nil
}

// sniff rejects compound-file containers with a precise message.
func sniff(r io.ReaderAt, size int64) error {
	head := make([]byte, 8)
	n, err := r.ReadAt(head, 0)
	if err != nil && err != io.EOF {
		return xlerr.IO("open", "", err)
	}
	if format.DetectFromMagic(head[:n]) != format.XLS {
		return nil
	}

	info, err := format.Inspect(r, size)
	if err != nil {
		return xlerr.Format("open", "", fmt.Errorf("unreadable compound file: %w", err))
	}
	if info.Format == format.Encrypted {
		return xlerr.Format("open", "", errors.New("package is encrypted"))
	}
	return xlerr.Format("open", "", errors.New("compound file is not an OPC package (legacy binary workbook?)"))
}

func readEntry(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	if f.UncompressedSize64 > maxPartSize {
		return nil, fmt.Errorf("entry of %d bytes exceeds limit: %w", f.UncompressedSize64, zip.ErrFormat)
	}
	var buf bytes.Buffer
	buf.Grow(int(f.UncompressedSize64))
	if _, err := io.Copy(&buf, io.LimitReader(rc, maxPartSize+1)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func classifyZipError(op, part string, err error) error {
	switch {
	case errors.Is(err, zip.ErrFormat), errors.Is(err, zip.ErrAlgorithm), errors.Is(err, zip.ErrChecksum),
		errors.Is(err, io.ErrUnexpectedEOF), errors.Is(err, io.EOF):
		return xlerr.Format(op, part, err)
	default:
		return xlerr.IO(op, part, err)
	}
}

// Save writes the package as a ZIP archive. Parts that cannot be reached
// from the package root are dropped first.
func (p *Package) Save(w io.Writer) error {
	if err := p.Validate(); err != nil {
		return err
	}
	p.prune()

	parts := make([]*Part, 0, len(p.order))
	for _, name := range p.order {
		parts = append(parts, p.parts[name])
	}

	zw := zip.NewWriter(w)
	ct, err := xml.Marshal(buildManifest(parts))
	if err != nil {
		return xlerr.Format("save", contentTypesName, err)
	}
	if err := writeEntry(zw, contentTypesName, withHeader(ct)); err != nil {
		return err
	}
	if err := p.writeRels(zw, ""); err != nil {
		return err
	}
	for _, part := range parts {
		if err := writeEntry(zw, part.Name, part.Data); err != nil {
			return err
		}
		if err := p.writeRels(zw, part.Name); err != nil {
			return err
		}
	}
	if err := zw.Close(); err != nil {
		return xlerr.IO("save", "", err)
	}
	return nil
}

// SaveFile writes the package to a temporary file next to name and renames
// it into place once complete.
func (p *Package) SaveFile(name string) (err error) {
	tmp, err := os.CreateTemp(filepath.Dir(name), "."+filepath.Base(name)+".*.tmp")
	if err != nil {
		return xlerr.IO("save", name, err)
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	if err = p.Save(tmp); err != nil {
		return err
	}
	if err = tmp.Sync(); err != nil {
		return xlerr.IO("save", name, err)
	}
	if err = tmp.Close(); err != nil {
		return xlerr.IO("save", name, err)
	}
	if err = os.Rename(tmp.Name(), name); err != nil {
		return xlerr.IO("save", name, err)
	}
	return nil
}

// prune removes parts (and their relationships) unreachable from the root.
func (p *Package) prune() {
	live := p.reachable()
	kept := p.order[:0]
	for _, name := range p.order {
		if live[name] {
			kept = append(kept, name)
			continue
		}
		p.log.Warn("dropping unreachable part", "part", name)
		delete(p.parts, name)
		delete(p.index, strings.ToLower(name))
		delete(p.rels, name)
	}
	p.order = kept
}

func (p *Package) writeRels(zw *zip.Writer, owner string) error {
	set, ok := p.rels[owner]
	if !ok || len(set.rels) == 0 {
		return nil
	}
	var out relationshipsXML
	for _, r := range set.sorted() {
		x := relationshipXML{ID: r.ID, Type: r.Type, Target: r.Target}
		if r.Mode == External {
			x.TargetMode = "External"
		}
		out.Relationship = append(out.Relationship, x)
	}
	data, err := xml.Marshal(out)
	if err != nil {
		return xlerr.Format("save", RelsPartName(owner), err)
	}
	return writeEntry(zw, RelsPartName(owner), withHeader(data))
}

func withHeader(body []byte) []byte {
	out := make([]byte, 0, len(xmlHeader)+len(body))
	out = append(out, xmlHeader...)
	return append(out, body...)
}

const xmlHeader = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` + "\n"

func writeEntry(zw *zip.Writer, name string, data []byte) error {
	fh := &zip.FileHeader{
		Name:     name,
		Method:   zip.Deflate,
		Modified: zipModTime,
	}
	fw, err := zw.CreateHeader(fh)
	if err != nil {
		return xlerr.IO("save", name, err)
	}
	if _, err := fw.Write(data); err != nil {
		return xlerr.IO("save", name, err)
	}
	return nil
}
