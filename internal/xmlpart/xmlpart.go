// Package xmlpart splits an XML part into the child elements a caller
// models and the ones it does not, and writes the part back with the
// unmodeled children reproduced byte for byte.
//
// The root start tag is kept as it appeared in the source, so every
// namespace declaration (including mc:Ignorable prefixes) that a preserved
// fragment relies on is still in scope when the part is written again.
package xmlpart

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strings"
)

// Relationship namespaces in transitional and strict documents.
const (
	NSRelationships       = "http://schemas.openxmlformats.org/officeDocument/2006/relationships"
	NSRelationshipsStrict = "http://purl.oclc.org/ooxml/officeDocument/relationships"
)

// IsRelationshipNamespace reports whether space is a relationship
// namespace.
func IsRelationshipNamespace(space string) bool {
	return space == NSRelationships || space == NSRelationshipsStrict
}

// Handler decodes a modeled child element. It must consume the element
// completely, for example with DecodeElement or Skip.
type Handler func(d *xml.Decoder, start xml.StartElement) error

// Child is a direct child of the root element. Raw is nil for children
// consumed by a Handler.
type Child struct {
	Name   xml.Name
	Raw    []byte
	RelIDs []string // relationship ids referenced anywhere inside Raw
}

// Modeled reports whether the child was consumed by a handler.
func (c Child) Modeled() bool {
	return c.Raw == nil
}

// Namespace is a namespace declaration.
type Namespace struct {
	Prefix string // "" for the default namespace
	URL    string
}

// Document is a parsed part.
type Document struct {
	Name     xml.Name
	Children []Child

	startTag []byte
	decls    map[string]string // prefix -> url
	added    []Namespace
}

// ErrNoRoot is returned for input without a root element.
var ErrNoRoot = errors.New("xmlpart: no root element")

// Parse reads data, calling handlers for root children in the root's
// namespace whose local name has an entry, and capturing every other child
// verbatim.
func Parse(data []byte, handlers map[string]Handler) (*Document, error) {
	data, err := toUTF8(data)
	if err != nil {
		return nil, err
	}

	d := xml.NewDecoder(bytes.NewReader(data))
	d.CharsetReader = passThrough

	doc, err := readRoot(d, data)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	for {
		off := d.InputOffset()
		tok, err := d.Token()
		if err == io.EOF {
			return nil, fmt.Errorf("xmlpart: unterminated <%s>", doc.Name.Local)
		}
		if err != nil {
			return nil, err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			if h, ok := handlers[t.Name.Local]; ok && t.Name.Space == doc.Name.Space {
				if err := h(d, t); err != nil {
					return nil, fmt.Errorf("xmlpart: <%s>: %w", t.Name.Local, err)
				}
				if !seen[t.Name.Local] {
					seen[t.Name.Local] = true
					doc.Children = append(doc.Children, Child{Name: t.Name})
				}
				continue
			}
			ids, err := relIDsWithin(d, t)
			if err != nil {
				return nil, err
			}
			raw := make([]byte, d.InputOffset()-off)
			copy(raw, data[off:d.InputOffset()])
			doc.Children = append(doc.Children, Child{Name: t.Name, Raw: raw, RelIDs: ids})
		case xml.EndElement:
			return doc, nil
		}
	}
}

func readRoot(d *xml.Decoder, data []byte) (*Document, error) {
	for {
		off := d.InputOffset()
		tok, err := d.Token()
		if err == io.EOF {
			return nil, ErrNoRoot
		}
		if err != nil {
			return nil, err
		}
		se, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}

		doc := &Document{
			Name:     se.Name,
			startTag: openTag(data[off:d.InputOffset()]),
			decls:    make(map[string]string),
		}
		for _, a := range se.Attr {
			switch {
			case a.Name.Space == "xmlns":
				doc.decls[a.Name.Local] = a.Value
			case a.Name.Space == "" && a.Name.Local == "xmlns":
				doc.decls[""] = a.Value
			}
		}
		return doc, nil
	}
}

// openTag turns a self-closing start tag into an open one.
func openTag(raw []byte) []byte {
	tag := make([]byte, len(raw))
	copy(tag, raw)
	if bytes.HasSuffix(tag, []byte("/>")) {
		tag = bytes.TrimRight(tag[:len(tag)-2], " \t\r\n")
		tag = append(tag, '>')
	}
	return tag
}

// relIDsWithin consumes the element started by start and returns every
// relationship-namespace attribute value found on it or its descendants.
func relIDsWithin(d *xml.Decoder, start xml.StartElement) ([]string, error) {
	ids := relAttrs(nil, start.Attr)
	for depth := 1; depth > 0; {
		tok, err := d.Token()
		if err != nil {
			return nil, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			depth++
			ids = relAttrs(ids, t.Attr)
		case xml.EndElement:
			depth--
		}
	}
	return ids, nil
}

func relAttrs(ids []string, attrs []xml.Attr) []string {
	for _, a := range attrs {
		if IsRelationshipNamespace(a.Name.Space) {
			ids = append(ids, a.Value)
		}
	}
	return ids
}

// NewDocument creates a document for a part that did not exist before.
func NewDocument(local string, ns ...Namespace) *Document {
	doc := &Document{decls: make(map[string]string)}
	var b strings.Builder
	b.WriteString("<" + local)
	for _, n := range ns {
		if n.Prefix == "" {
			doc.Name = xml.Name{Space: n.URL, Local: local}
			b.WriteString(` xmlns="` + escapeAttr(n.URL) + `"`)
		} else {
			b.WriteString(` xmlns:` + n.Prefix + `="` + escapeAttr(n.URL) + `"`)
		}
		doc.decls[n.Prefix] = n.URL
	}
	b.WriteString(">")
	if doc.Name.Local == "" {
		doc.Name.Local = local
	}
	doc.startTag = []byte(b.String())
	return doc
}

// Prefix returns the prefix bound to url on the root element. If none is,
// preferred (or a numbered variant of it, when preferred is taken) is
// declared and returned.
func (doc *Document) Prefix(url, preferred string) string {
	candidates := make([]string, 0, len(doc.decls))
	for p, u := range doc.decls {
		if u == url && p != "" {
			candidates = append(candidates, p)
		}
	}
	if len(candidates) > 0 {
		sort.Strings(candidates)
		return candidates[0]
	}

	prefix := preferred
	for i := 1; ; i++ {
		if _, taken := doc.decls[prefix]; !taken {
			break
		}
		prefix = fmt.Sprintf("%s%d", preferred, i)
	}
	doc.decls[prefix] = url
	doc.added = append(doc.added, Namespace{Prefix: prefix, URL: url})
	return prefix
}

// ElementPrefix returns the prefix used on the root element's own name,
// which children in the same namespace must carry too.
func (doc *Document) ElementPrefix() string {
	name := doc.tagName()
	if i := strings.IndexByte(name, ':'); i >= 0 {
		return name[:i]
	}
	return ""
}

func (doc *Document) tagName() string {
	tag := doc.startTag
	if len(tag) > 0 && tag[0] == '<' {
		tag = tag[1:]
	}
	end := bytes.IndexAny(tag, " \t\r\n/>")
	if end < 0 {
		end = len(tag)
	}
	return string(tag[:end])
}

// StartTag returns the root start tag including any declarations added by
// Prefix.
func (doc *Document) StartTag() []byte {
	if len(doc.added) == 0 {
		return doc.startTag
	}
	tag := doc.startTag[: len(doc.startTag)-1 : len(doc.startTag)-1]
	var b bytes.Buffer
	b.Write(tag)
	for _, n := range doc.added {
		b.WriteString(` xmlns:` + n.Prefix + `="` + escapeAttr(n.URL) + `"`)
	}
	b.WriteByte('>')
	return b.Bytes()
}

// EndTag returns the root end tag.
func (doc *Document) EndTag() []byte {
	return []byte("</" + doc.tagName() + ">")
}

// Has reports whether the document has a child with the given local name.
func (doc *Document) Has(local string) bool {
	for _, c := range doc.Children {
		if c.Name.Local == local {
			return true
		}
	}
	return false
}

// RelIDs returns the relationship ids referenced by preserved children.
func (doc *Document) RelIDs() []string {
	var ids []string
	for _, c := range doc.Children {
		ids = append(ids, c.RelIDs...)
	}
	return ids
}

// Raw returns the preserved children with the given local name.
func (doc *Document) Raw(local string) [][]byte {
	var out [][]byte
	for _, c := range doc.Children {
		if !c.Modeled() && c.Name.Local == local {
			out = append(out, c.Raw)
		}
	}
	return out
}

// SetAttr sets an unqualified attribute on the root start tag, replacing
// any existing value.
func (doc *Document) SetAttr(name, value string) {
	attr := " " + name + `="` + escapeAttr(value) + `"`
	if loc := rootAttr(name).FindIndex(doc.startTag); loc != nil {
		tag := make([]byte, 0, len(doc.startTag)+len(attr))
		tag = append(tag, doc.startTag[:loc[0]]...)
		tag = append(tag, attr...)
		doc.startTag = append(tag, doc.startTag[loc[1]:]...)
		return
	}
	end := len(doc.startTag) - 1
	tag := make([]byte, 0, len(doc.startTag)+len(attr))
	tag = append(tag, doc.startTag[:end]...)
	tag = append(tag, attr...)
	doc.startTag = append(tag, '>')
}

func rootAttr(name string) *regexp.Regexp {
	return regexp.MustCompile(`\s` + regexp.QuoteMeta(name) + `\s*=\s*("[^"]*"|'[^']*')`)
}

// QualifiedName renders name for writing inside the document, declaring
// its namespace on the root when needed.
func (doc *Document) QualifiedName(name xml.Name) string {
	switch name.Space {
	case "":
		return name.Local
	case nsXML:
		return "xml:" + name.Local
	case doc.Name.Space:
		if p := doc.ElementPrefix(); p != "" {
			return p + ":" + name.Local
		}
		return name.Local
	}
	return doc.Prefix(name.Space, "ns") + ":" + name.Local
}

const nsXML = "http://www.w3.org/XML/1998/namespace"

func escapeAttr(s string) string {
	var b strings.Builder
	xml.EscapeText(&b, []byte(s))
	return b.String()
}
