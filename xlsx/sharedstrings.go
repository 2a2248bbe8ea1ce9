package xlsx

import (
	"encoding/xml"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/tsawler/sheetkit/internal/xmlpart"
	"github.com/tsawler/sheetkit/xlerr"
)

// SharedStrings is the workbook's pool of cell strings. Interning is
// deduplicated by exact content; the table only grows.
//
// Methods are safe for concurrent use. Writers are serialized.
type SharedStrings struct {
	mu    sync.RWMutex
	items []sstItem
	index map[string]int // plain entries only
}

type sstItem struct {
	text string
	raw  []byte // inner XML of a rich-text <si>; nil for plain text
}

// NewSharedStrings returns an empty table.
func NewSharedStrings() *SharedStrings {
	return &SharedStrings{index: make(map[string]int)}
}

// Intern returns the index of s, appending it if the table does not hold
// it yet.
func (s *SharedStrings) Intern(str string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i, ok := s.index[str]; ok {
		return i
	}
	s.items = append(s.items, sstItem{text: str})
	i := len(s.items) - 1
	s.index[str] = i
	return i
}

// Get returns the text of entry i. Rich-text entries return their runs
// concatenated.
func (s *SharedStrings) Get(i int) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i < 0 || i >= len(s.items) {
		return "", xlerr.Integrityf("shared strings", "", "index %d out of range (table has %d entries)", i, len(s.items))
	}
	return s.items[i].text, nil
}

// Index returns the index of a plain entry with exactly the text s.
func (s *SharedStrings) Index(str string) (int, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.index[str]
	return i, ok
}

// Len returns the number of entries.
func (s *SharedStrings) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// IsRich reports whether entry i carries formatting runs.
func (s *SharedStrings) IsRich(i int) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return i >= 0 && i < len(s.items) && s.items[i].raw != nil
}

func (s *SharedStrings) snapshot() []sstItem {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.items[:len(s.items):len(s.items)]
}

func (s *SharedStrings) add(it sstItem) {
	s.items = append(s.items, it)
	if it.raw == nil {
		if _, dup := s.index[it.text]; !dup {
			s.index[it.text] = len(s.items) - 1
		}
	}
}

var sstOrder = []string{"si", "extLst"}

// parseSharedStrings loads the table and keeps the part's document for
// writing it back.
func parseSharedStrings(part string, data []byte) (*SharedStrings, *xmlpart.Document, error) {
	sst := NewSharedStrings()
	doc, err := xmlpart.Parse(data, map[string]xmlpart.Handler{
		"si": func(d *xml.Decoder, start xml.StartElement) error {
			var si siXML
			if err := d.DecodeElement(&si, &start); err != nil {
				return err
			}
			it := sstItem{text: si.text()}
			if !si.plain() {
				it.raw = []byte(si.Inner)
			}
			sst.add(it)
			return nil
		},
	})
	if err != nil {
		return nil, nil, xlerr.Format("load", part, err)
	}
	return sst, doc, nil
}

// sstPlan fixes the order in which entries are written: first use across
// sheets in sheet order, then row, then column. Unused entries are left
// out and identical plain entries collapse.
type sstPlan struct {
	items []sstItem
	remap map[int]int
	plain map[string]int
	order []int
	count int
}

func newSSTPlan(s *SharedStrings) *sstPlan {
	return &sstPlan{
		items: s.snapshot(),
		remap: make(map[int]int),
		plain: make(map[string]int),
	}
}

// use records a reference to entry i and returns its written index.
func (p *sstPlan) use(i int) int {
	p.count++
	if j, ok := p.remap[i]; ok {
		return j
	}
	it := p.items[i]
	j := len(p.order)
	if it.raw == nil {
		if k, ok := p.plain[it.text]; ok {
			p.remap[i] = k
			return k
		}
		p.plain[it.text] = j
	}
	p.order = append(p.order, i)
	p.remap[i] = j
	return j
}

// index returns the written index of entry i. use must have been called
// for it.
func (p *sstPlan) index(i int) int {
	return p.remap[i]
}

func (p *sstPlan) render(doc *xmlpart.Document) ([]byte, error) {
	doc.SetAttr("count", strconv.Itoa(p.count))
	doc.SetAttr("uniqueCount", strconv.Itoa(len(p.order)))

	w := xmlpart.NewWriter()
	defer w.Release()
	err := doc.Write(w, []xmlpart.Section{{
		Name: "si",
		Render: func(w *xmlpart.Writer) error {
			for _, i := range p.order {
				it := p.items[i]
				w.Start("si")
				if it.raw != nil {
					w.Raw(it.raw)
				} else {
					writeText(w, "t", it.text)
				}
				w.End("si")
			}
			return nil
		},
	}}, sstOrder)
	if err != nil {
		return nil, err
	}
	return w.Bytes(), nil
}

// writeText writes a <t>-like element, preserving surrounding whitespace.
func writeText(w *xmlpart.Writer, local, text string) {
	var attrs []xmlpart.Attr
	if text != strings.TrimSpace(text) {
		attrs = append(attrs, xmlpart.A("xml:space", "preserve"))
	}
	w.Element(local, escapeXString(text), attrs...)
}

var (
	xstringEscape = regexp.MustCompile(`_x[0-9A-Fa-f]{4}_`)
)

// unescapeXString decodes the _xHHHH_ escapes used for characters XML
// cannot carry.
func unescapeXString(s string) string {
	if !strings.Contains(s, "_x") {
		return s
	}
	return xstringEscape.ReplaceAllStringFunc(s, func(m string) string {
		n, err := strconv.ParseUint(m[2:6], 16, 16)
		if err != nil {
			return m
		}
		return string(rune(n))
	})
}

// escapeXString is the inverse of unescapeXString.
func escapeXString(s string) string {
	needs := strings.Contains(s, "_x")
	for i := 0; i < len(s) && !needs; i++ {
		c := s[i]
		needs = c < 0x20 && c != '\t' && c != '\n' && c != '\r'
	}
	if !needs {
		return s
	}
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c < 0x20 && c != '\t' && c != '\n' && c != '\r':
			fmt.Fprintf(&b, "_x%04X_", c)
		case c == '_' && xstringEscape.MatchString(s[i:min(i+7, len(s))]):
			b.WriteString("_x005F_")
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}
