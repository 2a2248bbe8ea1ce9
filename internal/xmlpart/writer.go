package xmlpart

import (
	"encoding/xml"
	"sort"
	"strconv"

	"github.com/valyala/bytebufferpool"
)

// Header is the XML declaration written at the top of every part.
const Header = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` + "\n"

// Attr is an attribute to write. Attributes with an empty value are
// skipped unless Keep is set.
type Attr struct {
	Name  string
	Value string
	Keep  bool
}

// A builds an attribute that is omitted when empty.
func A(name, value string) Attr {
	return Attr{Name: name, Value: value}
}

// AInt builds an integer attribute that is always written.
func AInt(name string, v int) Attr {
	return Attr{Name: name, Value: strconv.Itoa(v), Keep: true}
}

// ABool builds a boolean attribute written as "1" when v is true and
// omitted otherwise.
func ABool(name string, v bool) Attr {
	if !v {
		return Attr{}
	}
	return Attr{Name: name, Value: "1"}
}

// Writer accumulates a part on a pooled buffer.
type Writer struct {
	buf    *bytebufferpool.ByteBuffer
	prefix string
}

// NewWriter returns a writer; call Release when done.
func NewWriter() *Writer {
	return &Writer{buf: bytebufferpool.Get()}
}

// SetElementPrefix makes Start, Empty, End and Element qualify names with
// prefix.
func (w *Writer) SetElementPrefix(prefix string) {
	w.prefix = prefix
}

// Release returns the buffer to the pool. The writer must not be used
// afterwards.
func (w *Writer) Release() {
	bytebufferpool.Put(w.buf)
	w.buf = nil
}

// Bytes returns a copy of the accumulated output.
func (w *Writer) Bytes() []byte {
	out := make([]byte, w.buf.Len())
	copy(out, w.buf.B)
	return out
}

// Len returns the number of bytes written.
func (w *Writer) Len() int {
	return w.buf.Len()
}

// Raw appends b unchanged.
func (w *Writer) Raw(b []byte) {
	w.buf.Write(b)
}

// RawString appends s unchanged.
func (w *Writer) RawString(s string) {
	w.buf.WriteString(s)
}

func (w *Writer) name(local string) {
	if w.prefix != "" {
		w.buf.WriteString(w.prefix)
		w.buf.WriteByte(':')
	}
	w.buf.WriteString(local)
}

func (w *Writer) attrs(attrs []Attr) {
	for _, a := range attrs {
		if a.Name == "" || (a.Value == "" && !a.Keep) {
			continue
		}
		w.buf.WriteByte(' ')
		w.buf.WriteString(a.Name)
		w.buf.WriteString(`="`)
		xml.EscapeText(w.buf, []byte(a.Value))
		w.buf.WriteByte('"')
	}
}

// Start writes a start tag.
func (w *Writer) Start(local string, attrs ...Attr) {
	w.buf.WriteByte('<')
	w.name(local)
	w.attrs(attrs)
	w.buf.WriteByte('>')
}

// Empty writes a self-closing element.
func (w *Writer) Empty(local string, attrs ...Attr) {
	w.buf.WriteByte('<')
	w.name(local)
	w.attrs(attrs)
	w.buf.WriteString("/>")
}

// End writes an end tag.
func (w *Writer) End(local string) {
	w.buf.WriteString("</")
	w.name(local)
	w.buf.WriteByte('>')
}

// Text writes escaped character data.
func (w *Writer) Text(s string) {
	xml.EscapeText(w.buf, []byte(s))
}

// Element writes <local attrs>text</local>.
func (w *Writer) Element(local, text string, attrs ...Attr) {
	w.Start(local, attrs...)
	w.Text(text)
	w.End(local)
}

// Section renders a modeled child. Render may write nothing, in which
// case the child is omitted.
type Section struct {
	Name   string
	Render func(w *Writer) error
}

// Write emits the document: header, root start tag, children in schema
// order and the end tag. Sections replace the modeled children of the
// same name; preserved children are copied through. order lists the
// schema's child sequence by local name. A child whose name is not in
// order stays behind the element it followed in the source.
func (doc *Document) Write(w *Writer, sections []Section, order []string) error {
	rank := make(map[string]int, len(order))
	for i, name := range order {
		rank[name] = i
	}

	type item struct {
		rank    int
		raw     []byte
		section *Section
	}

	bySection := make(map[string]int, len(sections))
	for i, s := range sections {
		bySection[s.Name] = i
	}
	used := make(map[string]bool, len(sections))

	var items []item
	current := -1
	for _, c := range doc.Children {
		if r, ok := rank[c.Name.Local]; ok && c.Name.Space == doc.Name.Space {
			current = r
		}
		if !c.Modeled() {
			items = append(items, item{rank: current, raw: c.Raw})
			continue
		}
		if i, ok := bySection[c.Name.Local]; ok && !used[c.Name.Local] {
			used[c.Name.Local] = true
			items = append(items, item{rank: current, section: &sections[i]})
		}
	}
	for i := range sections {
		if used[sections[i].Name] {
			continue
		}
		r, ok := rank[sections[i].Name]
		if !ok {
			r = len(order)
		}
		items = append(items, item{rank: r, section: &sections[i]})
	}

	sort.SliceStable(items, func(i, j int) bool { return items[i].rank < items[j].rank })

	w.RawString(Header)
	w.Raw(doc.StartTag())
	prefix := w.prefix
	w.SetElementPrefix(doc.ElementPrefix())
	defer w.SetElementPrefix(prefix)
	for _, it := range items {
		if it.section == nil {
			w.Raw(it.raw)
			continue
		}
		if err := it.section.Render(w); err != nil {
			return err
		}
	}
	w.Raw(doc.EndTag())
	return nil
}
