// Package opc implements the Open Packaging Conventions container used by
// spreadsheet files: a ZIP archive of named parts, a content-type manifest
// and per-part relationship lists.
//
// A Package is read completely into memory by Open. Parts are addressed by
// their name without the leading slash ("xl/workbook.xml"); lookups fall
// back to a case-insensitive match because producers disagree on case.
//
// Relationships are stored per owner part. The package root is the owner
// "". Save regenerates every relationships part and the manifest from the
// live model, so callers never edit those parts directly.
package opc

import (
	"fmt"
	"log/slog"
	"path"
	"strings"

	"github.com/tsawler/sheetkit/xlerr"
)

// Part is a named byte payload with a content type.
type Part struct {
	Name        string
	ContentType string
	Data        []byte
}

// Options configures loading and saving.
type Options struct {
	// Logger receives diagnostics about tolerated irregularities. Nil
	// discards them.
	Logger *slog.Logger
}

func (o Options) logger() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return slog.New(slog.DiscardHandler)
}

// Package is an in-memory OPC package. It is not safe for concurrent
// mutation; concurrent reads are fine.
type Package struct {
	parts map[string]*Part
	order []string
	index map[string]string // lower-cased name -> name
	rels  map[string]*relationshipSet

	log *slog.Logger
}

// New returns an empty package.
func New() *Package {
	return NewWithOptions(Options{})
}

// NewWithOptions returns an empty package using opts.
func NewWithOptions(opts Options) *Package {
	return &Package{
		parts: make(map[string]*Part),
		index: make(map[string]string),
		rels:  make(map[string]*relationshipSet),
		log:   opts.logger(),
	}
}

// SetLogger replaces the diagnostics logger. Nil discards.
func (p *Package) SetLogger(l *slog.Logger) {
	p.log = Options{Logger: l}.logger()
}

// Logger returns the package's diagnostics logger.
func (p *Package) Logger() *slog.Logger {
	return p.log
}

// NormalizeName strips the leading slash and cleans a part name.
func NormalizeName(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	name = strings.TrimPrefix(name, "/")
	if name == "" {
		return ""
	}
	name = path.Clean(name)
	if name == "." {
		return ""
	}
	return name
}

// lookup finds the stored name of a part, exact match first.
func (p *Package) lookup(name string) (string, bool) {
	name = NormalizeName(name)
	if _, ok := p.parts[name]; ok {
		return name, true
	}
	if actual, ok := p.index[strings.ToLower(name)]; ok {
		return actual, true
	}
	return "", false
}

// canonical returns the stored spelling of name if the part exists, or
// the normalized name otherwise.
func (p *Package) canonical(name string) string {
	if actual, ok := p.lookup(name); ok {
		return actual
	}
	return NormalizeName(name)
}

// AddPart stores a part, replacing the bytes and content type of an
// existing part with the same name.
func (p *Package) AddPart(name, contentType string, data []byte) error {
	name = NormalizeName(name)
	if name == "" {
		return xlerr.Valuef("add part", "empty part name")
	}
	if _, isRels := ownerOfRels(name); isRels {
		return xlerr.Valuef("add part", "%s is a relationships part; use AddRelationship", name)
	}
	if strings.EqualFold(name, contentTypesName) {
		return xlerr.Valuef("add part", "the content type manifest is generated on save")
	}
	if contentType == "" {
		contentType = DefaultContentType
	}

	if actual, ok := p.lookup(name); ok {
		part := p.parts[actual]
		part.ContentType = contentType
		part.Data = data
		return nil
	}

	p.parts[name] = &Part{Name: name, ContentType: contentType, Data: data}
	p.order = append(p.order, name)
	p.index[strings.ToLower(name)] = name
	return nil
}

// GetPart returns the bytes of a part. The slice is shared with the
// package and must not be modified.
func (p *Package) GetPart(name string) ([]byte, error) {
	part, ok := p.Part(name)
	if !ok {
		return nil, xlerr.Integrityf("get part", NormalizeName(name), "part does not exist")
	}
	return part.Data, nil
}

// Part returns the part with the given name.
func (p *Package) Part(name string) (*Part, bool) {
	actual, ok := p.lookup(name)
	if !ok {
		return nil, false
	}
	return p.parts[actual], true
}

// HasPart reports whether a part exists.
func (p *Package) HasPart(name string) bool {
	_, ok := p.lookup(name)
	return ok
}

// ContentType returns the content type of a part, or "" if absent.
func (p *Package) ContentType(name string) string {
	if part, ok := p.Part(name); ok {
		return part.ContentType
	}
	return ""
}

// RemovePart deletes a part together with its own relationships.
// Relationships from other parts that target it are left for the caller to
// remove; Validate reports them.
func (p *Package) RemovePart(name string) error {
	actual, ok := p.lookup(name)
	if !ok {
		return xlerr.Integrityf("remove part", NormalizeName(name), "part does not exist")
	}
	delete(p.parts, actual)
	delete(p.index, strings.ToLower(actual))
	delete(p.rels, actual)
	for i, n := range p.order {
		if n == actual {
			p.order = append(p.order[:i], p.order[i+1:]...)
			break
		}
	}
	return nil
}

// PartNames returns part names in load/insertion order.
func (p *Package) PartNames() []string {
	out := make([]string, len(p.order))
	copy(out, p.order)
	return out
}

// UniquePartName formats pattern, which must contain a single %d verb,
// with the smallest positive integer that yields an unused part name.
func (p *Package) UniquePartName(pattern string) string {
	for i := 1; ; i++ {
		name := NormalizeName(fmt.Sprintf(pattern, i))
		if !p.HasPart(name) {
			return name
		}
	}
}
