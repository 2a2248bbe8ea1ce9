package xlsx

import (
	"encoding/xml"
	"sort"
	"strconv"
	"sync"

	"github.com/tiendc/go-deepcopy"
	"github.com/xuri/nfp"

	"github.com/tsawler/sheetkit/internal/xmlpart"
	"github.com/tsawler/sheetkit/numtext"
	"github.com/tsawler/sheetkit/xlerr"
)

// FirstCustomNumFmt is the smallest id given to custom number formats.
const FirstCustomNumFmt = 164

// builtInNumFmt lists the reserved number formats with a fixed code.
var builtInNumFmt = map[int]string{
	0:  "General",
	1:  "0",
	2:  "0.00",
	3:  "#,##0",
	4:  "#,##0.00",
	9:  "0%",
	10: "0.00%",
	11: "0.00E+00",
	12: "# ?/?",
	13: "# ??/??",
	14: "mm-dd-yy",
	15: "d-mmm-yy",
	16: "d-mmm",
	17: "mmm-yy",
	18: "h:mm AM/PM",
	19: "h:mm:ss AM/PM",
	20: "h:mm",
	21: "h:mm:ss",
	22: "m/d/yy h:mm",
	37: "#,##0 ;(#,##0)",
	38: "#,##0 ;[Red](#,##0)",
	39: "#,##0.00;(#,##0.00)",
	40: "#,##0.00;[Red](#,##0.00)",
	41: `_(* #,##0_);_(* \(#,##0\);_(* "-"_);_(@_)`,
	42: `_("$"* #,##0_);_("$"* \(#,##0\);_("$"* "-"_);_(@_)`,
	43: `_(* #,##0.00_);_(* \(#,##0.00\);_(* "-"??_);_(@_)`,
	44: `_("$"* #,##0.00_);_("$"* \(#,##0.00\);_("$"* "-"??_);_(@_)`,
	45: "mm:ss",
	46: "[h]:mm:ss",
	47: "mmss.0",
	48: "##0.0E+0",
	49: "@",
}

// builtInDateNumFmt reports reserved ids whose locale-dependent code is a
// date or time.
func builtInDateNumFmt(id int) bool {
	return (id >= 14 && id <= 22) || (id >= 27 && id <= 36) || (id >= 45 && id <= 47) ||
		(id >= 50 && id <= 58) || (id >= 71 && id <= 81)
}

// Color is a font, fill or border color.
type Color struct {
	Auto    bool
	RGB     string // ARGB hex such as "FF1F4E79"
	Theme   *int
	Indexed *int
	Tint    float64
}

// Font is a font record.
type Font struct {
	Bold      bool
	Italic    bool
	Strike    bool
	Condense  bool
	Extend    bool
	Outline   bool
	Shadow    bool
	Underline string // "single", "double", "singleAccounting", ...
	VertAlign string // "superscript", "subscript"
	Size      float64
	Color     *Color
	Name      string
	Family    int
	Charset   *int
	Scheme    string // "minor", "major"
}

// Fill is a fill record. Gradient fills read from a file are kept as they
// were written.
type Fill struct {
	Pattern string // patternType: "none", "solid", "gray125", ...
	FgColor *Color
	BgColor *Color

	gradient []byte
}

// IsGradient reports whether the fill is a gradient kept from a file.
func (f Fill) IsGradient() bool {
	return f.gradient != nil
}

// BorderEdge is one side of a border.
type BorderEdge struct {
	Style string // "thin", "medium", "dashed", ...
	Color *Color
}

func (e BorderEdge) isZero() bool {
	return e.Style == "" && e.Color == nil
}

// Border is a border record.
type Border struct {
	Left, Right, Top, Bottom, Diagonal BorderEdge
	Vertical, Horizontal               BorderEdge
	DiagonalUp, DiagonalDown           bool
}

// Alignment holds the alignment properties of a cell format.
type Alignment struct {
	Horizontal      string
	Vertical        string
	WrapText        bool
	ShrinkToFit     bool
	JustifyLastLine bool
	TextRotation    int
	Indent          int
	RelativeIndent  int
	ReadingOrder    int
}

// Protection holds the protection properties of a cell format.
type Protection struct {
	Locked bool
	Hidden bool
}

// CellFormat is a cell-format record: indices into the other tables plus
// alignment and protection.
type CellFormat struct {
	NumFmtID    int
	FontID      int
	FillID      int
	BorderID    int
	XfID        int // cell style record
	QuotePrefix bool
	Alignment   *Alignment
	Protection  *Protection

	attrs    []xml.Attr // attributes kept from the file, apply* flags included
	fromFile bool
}

// Style describes a complete cell format in terms of records instead of
// indices. Nil records use the defaults at index 0.
type Style struct {
	Font       *Font
	Fill       *Fill
	Border     *Border
	NumFmt     string // format code; when empty NumFmtID is used
	NumFmtID   int
	Alignment  *Alignment
	Protection *Protection
}

// StyleCounts reports the sizes of the style tables.
type StyleCounts struct {
	Fonts, Fills, Borders, NumFmts, CellFormats int
}

// StyleSheet holds the workbook's formatting tables. Each table is
// deduplicated and only grows, so indices stay valid for the lifetime of
// the workbook.
//
// Methods are safe for concurrent use. Writers are serialized.
type StyleSheet struct {
	mu  sync.RWMutex
	doc *xmlpart.Document

	fonts      []Font
	fontKeys   map[string]int
	fills      []Fill
	fillKeys   map[string]int
	borders    []Border
	borderKeys map[string]int
	xfs        []CellFormat
	xfKeys     map[string]int

	numFmts    map[int]string // declared in the part
	numFmtIDs  map[string]int
	nextNumFmt int

	styleXfs     int
	sectionAttrs map[string][]xml.Attr
}

var styleOrder = []string{
	"numFmts", "fonts", "fills", "borders", "cellStyleXfs", "cellXfs",
	"cellStyles", "dxfs", "tableStyles", "colors", "extLst",
}

const defaultStylesXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<styleSheet xmlns="http://schemas.openxmlformats.org/spreadsheetml/2006/main"><fonts count="1"><font><sz val="11"/><color theme="1"/><name val="Calibri"/><family val="2"/><scheme val="minor"/></font></fonts><fills count="2"><fill><patternFill patternType="none"/></fill><fill><patternFill patternType="gray125"/></fill></fills><borders count="1"><border><left/><right/><top/><bottom/><diagonal/></border></borders><cellStyleXfs count="1"><xf numFmtId="0" fontId="0" fillId="0" borderId="0"/></cellStyleXfs><cellXfs count="1"><xf numFmtId="0" fontId="0" fillId="0" borderId="0" xfId="0"/></cellXfs><cellStyles count="1"><cellStyle name="Normal" xfId="0" builtinId="0"/></cellStyles><dxfs count="0"/><tableStyles count="0" defaultTableStyle="TableStyleMedium2" defaultPivotStyle="PivotStyleLight16"/></styleSheet>`

// NewStyleSheet returns the standard default style sheet: Calibri 11, the
// none and gray125 fills, an empty border and one default cell format.
func NewStyleSheet() *StyleSheet {
	s, err := parseStyleSheet("", []byte(defaultStylesXML))
	if err != nil {
		panic("xlsx: default style sheet: " + err.Error())
	}
	return s
}

func newEmptyStyleSheet() *StyleSheet {
	return &StyleSheet{
		fontKeys:     make(map[string]int),
		fillKeys:     make(map[string]int),
		borderKeys:   make(map[string]int),
		xfKeys:       make(map[string]int),
		numFmts:      make(map[int]string),
		numFmtIDs:    make(map[string]int),
		nextNumFmt:   FirstCustomNumFmt,
		sectionAttrs: make(map[string][]xml.Attr),
	}
}

// parseStyleSheet loads a styles part and checks that every cell format
// points at existing records.
func parseStyleSheet(part string, data []byte) (*StyleSheet, error) {
	s := newEmptyStyleSheet()

	section := func(name, child string, decode func(d *xml.Decoder, start xml.StartElement) error) xmlpart.Handler {
		return func(d *xml.Decoder, start xml.StartElement) error {
			s.sectionAttrs[name] = keepAttrs(start.Attr, "count")
			for {
				tok, err := d.Token()
				if err != nil {
					return err
				}
				switch t := tok.(type) {
				case xml.StartElement:
					if t.Name.Local != child {
						if err := d.Skip(); err != nil {
							return err
						}
						continue
					}
					if err := decode(d, t); err != nil {
						return err
					}
				case xml.EndElement:
					return nil
				}
			}
		}
	}

	doc, err := xmlpart.Parse(data, map[string]xmlpart.Handler{
		"numFmts": section("numFmts", "numFmt", func(d *xml.Decoder, start xml.StartElement) error {
			var nf numFmtXML
			if err := d.DecodeElement(&nf, &start); err != nil {
				return err
			}
			s.declareNumFmt(nf.ID, nf.Code)
			return nil
		}),
		"fonts": section("fonts", "font", func(d *xml.Decoder, start xml.StartElement) error {
			var f fontXML
			if err := d.DecodeElement(&f, &start); err != nil {
				return err
			}
			s.appendFont(f.font())
			return nil
		}),
		"fills": section("fills", "fill", func(d *xml.Decoder, start xml.StartElement) error {
			var f fillXML
			if err := d.DecodeElement(&f, &start); err != nil {
				return err
			}
			s.appendFill(f.fill())
			return nil
		}),
		"borders": section("borders", "border", func(d *xml.Decoder, start xml.StartElement) error {
			var b borderXML
			if err := d.DecodeElement(&b, &start); err != nil {
				return err
			}
			s.appendBorder(b.border())
			return nil
		}),
		"cellXfs": section("cellXfs", "xf", func(d *xml.Decoder, start xml.StartElement) error {
			var x xfXML
			if err := d.DecodeElement(&x, &start); err != nil {
				return err
			}
			s.appendXf(x.cellFormat())
			return nil
		}),
	})
	if err != nil {
		return nil, xlerr.Format("load", part, err)
	}
	s.doc = doc

	for _, raw := range doc.Raw("cellStyleXfs") {
		var list struct {
			Xf []struct{} `xml:"xf"`
		}
		if err := xml.Unmarshal(raw, &list); err != nil {
			return nil, xlerr.Format("load", part, err)
		}
		s.styleXfs += len(list.Xf)
	}

	for i, xf := range s.xfs {
		if err := s.checkCellFormat(xf); err != nil {
			return nil, xlerr.Integrityf("load", part, "cell format %d: %v", i, err)
		}
	}
	return s, nil
}

// keepAttrs drops the named unqualified attributes.
func keepAttrs(attrs []xml.Attr, drop ...string) []xml.Attr {
	var out []xml.Attr
next:
	for _, a := range attrs {
		if a.Name.Space == "" {
			for _, d := range drop {
				if a.Name.Local == d {
					continue next
				}
			}
		}
		if a.Name.Space == "xmlns" || (a.Name.Space == "" && a.Name.Local == "xmlns") {
			continue
		}
		out = append(out, a)
	}
	return out
}

func (s *StyleSheet) declareNumFmt(id int, code string) {
	s.numFmts[id] = code
	if _, ok := s.numFmtIDs[code]; !ok {
		s.numFmtIDs[code] = id
	}
	if id >= s.nextNumFmt {
		s.nextNumFmt = id + 1
	}
}

func (s *StyleSheet) appendFont(f Font) int {
	k := recordKey(func(w *xmlpart.Writer) { renderFont(w, f) })
	s.fonts = append(s.fonts, f)
	i := len(s.fonts) - 1
	if _, ok := s.fontKeys[k]; !ok {
		s.fontKeys[k] = i
	}
	return i
}

func (s *StyleSheet) appendFill(f Fill) int {
	k := recordKey(func(w *xmlpart.Writer) { renderFill(w, f) })
	s.fills = append(s.fills, f)
	i := len(s.fills) - 1
	if _, ok := s.fillKeys[k]; !ok {
		s.fillKeys[k] = i
	}
	return i
}

func (s *StyleSheet) appendBorder(b Border) int {
	k := recordKey(func(w *xmlpart.Writer) { renderBorder(w, b) })
	s.borders = append(s.borders, b)
	i := len(s.borders) - 1
	if _, ok := s.borderKeys[k]; !ok {
		s.borderKeys[k] = i
	}
	return i
}

func (s *StyleSheet) appendXf(xf CellFormat) int {
	k := recordKey(func(w *xmlpart.Writer) { renderXf(w, xf) })
	s.xfs = append(s.xfs, xf)
	i := len(s.xfs) - 1
	if _, ok := s.xfKeys[k]; !ok {
		s.xfKeys[k] = i
	}
	return i
}

func recordKey(render func(w *xmlpart.Writer)) string {
	w := xmlpart.NewWriter()
	defer w.Release()
	render(w)
	return string(w.Bytes())
}

// clone returns a deep copy of a style record.
func clone[T any](v T) T {
	var out T
	if err := deepcopy.Copy(&out, &v); err != nil {
		return v
	}
	return out
}

// Font returns the index of a font equal to f, adding it if needed.
func (s *StyleSheet) Font(f Font) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := recordKey(func(w *xmlpart.Writer) { renderFont(w, f) })
	if i, ok := s.fontKeys[k]; ok {
		return i
	}
	return s.appendFont(clone(f))
}

// Fill returns the index of a fill equal to f, adding it if needed.
func (s *StyleSheet) Fill(f Fill) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := recordKey(func(w *xmlpart.Writer) { renderFill(w, f) })
	if i, ok := s.fillKeys[k]; ok {
		return i
	}
	return s.appendFill(clone(f))
}

// Border returns the index of a border equal to b, adding it if needed.
func (s *StyleSheet) Border(b Border) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := recordKey(func(w *xmlpart.Writer) { renderBorder(w, b) })
	if i, ok := s.borderKeys[k]; ok {
		return i
	}
	return s.appendBorder(clone(b))
}

// NumberFormat returns the id of a number format with exactly the given
// code. Built-in codes keep their reserved id; any other code gets the
// next unused id from 164 up.
func (s *StyleSheet) NumberFormat(code string) (int, error) {
	if code == "" {
		return 0, xlerr.Valuef("number format", "empty format code")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok := s.numFmtIDs[code]; ok {
		return id, nil
	}
	for id, c := range builtInNumFmt {
		if c == code {
			if _, redeclared := s.numFmts[id]; !redeclared {
				return id, nil
			}
		}
	}
	id := s.nextNumFmt
	s.declareNumFmt(id, code)
	return id, nil
}

// NumberFormatCode returns the code of a number format id.
func (s *StyleSheet) NumberFormatCode(id int) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.numFmtCode(id)
}

func (s *StyleSheet) numFmtCode(id int) (string, bool) {
	if code, ok := s.numFmts[id]; ok {
		return code, true
	}
	code, ok := builtInNumFmt[id]
	return code, ok
}

// CellFormat returns the index of a cell format equal to xf, adding it if
// needed. Every index in xf must name an existing record.
func (s *StyleSheet) CellFormat(xf CellFormat) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkCellFormat(xf); err != nil {
		return 0, xlerr.Integrityf("cell format", "", "%v", err)
	}
	k := recordKey(func(w *xmlpart.Writer) { renderXf(w, xf) })
	if i, ok := s.xfKeys[k]; ok {
		return i, nil
	}
	return s.appendXf(clone(xf)), nil
}

type boundsError struct {
	table string
	index int
	size  int
}

func (e *boundsError) Error() string {
	return e.table + " index " + strconv.Itoa(e.index) + " out of range (table has " + strconv.Itoa(e.size) + ")"
}

func (s *StyleSheet) checkCellFormat(xf CellFormat) error {
	switch {
	case xf.FontID < 0 || xf.FontID >= len(s.fonts):
		return &boundsError{"font", xf.FontID, len(s.fonts)}
	case xf.FillID < 0 || xf.FillID >= len(s.fills):
		return &boundsError{"fill", xf.FillID, len(s.fills)}
	case xf.BorderID < 0 || xf.BorderID >= len(s.borders):
		return &boundsError{"border", xf.BorderID, len(s.borders)}
	case xf.XfID < 0 || (s.styleXfs > 0 && xf.XfID >= s.styleXfs):
		return &boundsError{"cell style", xf.XfID, s.styleXfs}
	case xf.NumFmtID < 0:
		return &boundsError{"number format", xf.NumFmtID, len(s.numFmts)}
	}
	if _, declared := s.numFmts[xf.NumFmtID]; xf.NumFmtID >= FirstCustomNumFmt && !declared {
		return &boundsError{"number format", xf.NumFmtID, len(s.numFmts)}
	}
	return nil
}

// Style resolves every record of st and returns the index of the matching
// cell format.
func (s *StyleSheet) Style(st Style) (int, error) {
	var xf CellFormat
	if st.Font != nil {
		xf.FontID = s.Font(*st.Font)
	}
	if st.Fill != nil {
		xf.FillID = s.Fill(*st.Fill)
	}
	if st.Border != nil {
		xf.BorderID = s.Border(*st.Border)
	}
	xf.NumFmtID = st.NumFmtID
	if st.NumFmt != "" {
		id, err := s.NumberFormat(st.NumFmt)
		if err != nil {
			return 0, err
		}
		xf.NumFmtID = id
	}
	if st.Alignment != nil {
		a := *st.Alignment
		xf.Alignment = &a
	}
	if st.Protection != nil {
		p := *st.Protection
		xf.Protection = &p
	}
	return s.CellFormat(xf)
}

// FontAt returns a copy of font i.
func (s *StyleSheet) FontAt(i int) (Font, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i < 0 || i >= len(s.fonts) {
		return Font{}, xlerr.Integrityf("styles", "", "%v", &boundsError{"font", i, len(s.fonts)})
	}
	return clone(s.fonts[i]), nil
}

// FillAt returns a copy of fill i.
func (s *StyleSheet) FillAt(i int) (Fill, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i < 0 || i >= len(s.fills) {
		return Fill{}, xlerr.Integrityf("styles", "", "%v", &boundsError{"fill", i, len(s.fills)})
	}
	return clone(s.fills[i]), nil
}

// BorderAt returns a copy of border i.
func (s *StyleSheet) BorderAt(i int) (Border, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i < 0 || i >= len(s.borders) {
		return Border{}, xlerr.Integrityf("styles", "", "%v", &boundsError{"border", i, len(s.borders)})
	}
	return clone(s.borders[i]), nil
}

// CellFormatAt returns a copy of cell format i.
func (s *StyleSheet) CellFormatAt(i int) (CellFormat, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i < 0 || i >= len(s.xfs) {
		return CellFormat{}, xlerr.Integrityf("styles", "", "%v", &boundsError{"cell format", i, len(s.xfs)})
	}
	return clone(s.xfs[i]), nil
}

// Counts returns the number of records in each table.
func (s *StyleSheet) Counts() StyleCounts {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return StyleCounts{
		Fonts:       len(s.fonts),
		Fills:       len(s.fills),
		Borders:     len(s.borders),
		NumFmts:     len(s.numFmts),
		CellFormats: len(s.xfs),
	}
}

func (s *StyleSheet) cellFormats() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.xfs)
}

// IsDateFormat reports whether cell format styleIndex displays numbers as
// dates or times.
func (s *StyleSheet) IsDateFormat(styleIndex int) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if styleIndex < 0 || styleIndex >= len(s.xfs) {
		return false
	}
	id := s.xfs[styleIndex].NumFmtID
	code, declared := s.numFmts[id]
	if !declared {
		if builtInDateNumFmt(id) {
			return true
		}
		code = builtInNumFmt[id]
	}
	return IsDateFormatCode(code)
}

// IsDateFormatCode reports whether the first section of a number format
// code contains date or time tokens.
func IsDateFormatCode(code string) bool {
	if code == "" {
		return false
	}
	ps := nfp.NumberFormatParser()
	sections := ps.Parse(code)
	if len(sections) == 0 {
		return false
	}
	for _, tok := range sections[0].Items {
		if tok.TType == nfp.TokenTypeDateTimes || tok.TType == nfp.TokenTypeElapsedDateTimes {
			return true
		}
	}
	return false
}

// render writes the styles part.
func (s *StyleSheet) render() ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	w := xmlpart.NewWriter()
	defer w.Release()

	start := func(w *xmlpart.Writer, name string, count int) {
		attrs := []xmlpart.Attr{xmlpart.AInt("count", count)}
		for _, a := range s.sectionAttrs[name] {
			attrs = append(attrs, xmlpart.A(s.doc.QualifiedName(a.Name), a.Value))
		}
		w.Start(name, attrs...)
	}

	sections := []xmlpart.Section{
		{Name: "numFmts", Render: func(w *xmlpart.Writer) error {
			if len(s.numFmts) == 0 {
				return nil
			}
			ids := make([]int, 0, len(s.numFmts))
			for id := range s.numFmts {
				ids = append(ids, id)
			}
			sort.Ints(ids)
			start(w, "numFmts", len(ids))
			for _, id := range ids {
				w.Empty("numFmt", xmlpart.AInt("numFmtId", id), xmlpart.Attr{Name: "formatCode", Value: s.numFmts[id], Keep: true})
			}
			w.End("numFmts")
			return nil
		}},
		{Name: "fonts", Render: func(w *xmlpart.Writer) error {
			start(w, "fonts", len(s.fonts))
			for _, f := range s.fonts {
				renderFont(w, f)
			}
			w.End("fonts")
			return nil
		}},
		{Name: "fills", Render: func(w *xmlpart.Writer) error {
			start(w, "fills", len(s.fills))
			for _, f := range s.fills {
				renderFill(w, f)
			}
			w.End("fills")
			return nil
		}},
		{Name: "borders", Render: func(w *xmlpart.Writer) error {
			start(w, "borders", len(s.borders))
			for _, b := range s.borders {
				renderBorder(w, b)
			}
			w.End("borders")
			return nil
		}},
		{Name: "cellXfs", Render: func(w *xmlpart.Writer) error {
			start(w, "cellXfs", len(s.xfs))
			for _, xf := range s.xfs {
				s.renderXfQualified(w, xf)
			}
			w.End("cellXfs")
			return nil
		}},
	}
	if err := s.doc.Write(w, sections, styleOrder); err != nil {
		return nil, err
	}
	return w.Bytes(), nil
}

func num(v float64) string {
	s, err := numtext.Format(v)
	if err != nil {
		return "0"
	}
	return s
}

func colorAttrs(c *Color) []xmlpart.Attr {
	attrs := []xmlpart.Attr{xmlpart.ABool("auto", c.Auto)}
	if c.Indexed != nil {
		attrs = append(attrs, xmlpart.AInt("indexed", *c.Indexed))
	}
	attrs = append(attrs, xmlpart.A("rgb", c.RGB))
	if c.Theme != nil {
		attrs = append(attrs, xmlpart.AInt("theme", *c.Theme))
	}
	if c.Tint != 0 {
		attrs = append(attrs, xmlpart.A("tint", num(c.Tint)))
	}
	return attrs
}

func renderColor(w *xmlpart.Writer, local string, c *Color) {
	if c == nil {
		return
	}
	w.Empty(local, colorAttrs(c)...)
}

func flag(w *xmlpart.Writer, local string, on bool) {
	if on {
		w.Empty(local)
	}
}

func renderFont(w *xmlpart.Writer, f Font) {
	w.Start("font")
	flag(w, "b", f.Bold)
	flag(w, "i", f.Italic)
	flag(w, "strike", f.Strike)
	flag(w, "condense", f.Condense)
	flag(w, "extend", f.Extend)
	flag(w, "outline", f.Outline)
	flag(w, "shadow", f.Shadow)
	switch f.Underline {
	case "":
	case "single":
		w.Empty("u")
	default:
		w.Empty("u", xmlpart.A("val", f.Underline))
	}
	if f.VertAlign != "" {
		w.Empty("vertAlign", xmlpart.A("val", f.VertAlign))
	}
	if f.Size != 0 {
		w.Empty("sz", xmlpart.A("val", num(f.Size)))
	}
	renderColor(w, "color", f.Color)
	if f.Name != "" {
		w.Empty("name", xmlpart.A("val", f.Name))
	}
	if f.Family != 0 {
		w.Empty("family", xmlpart.AInt("val", f.Family))
	}
	if f.Charset != nil {
		w.Empty("charset", xmlpart.AInt("val", *f.Charset))
	}
	if f.Scheme != "" {
		w.Empty("scheme", xmlpart.A("val", f.Scheme))
	}
	w.End("font")
}

func renderFill(w *xmlpart.Writer, f Fill) {
	w.Start("fill")
	if f.gradient != nil {
		w.Raw(f.gradient)
	} else if f.FgColor == nil && f.BgColor == nil {
		w.Empty("patternFill", xmlpart.A("patternType", f.Pattern))
	} else {
		w.Start("patternFill", xmlpart.A("patternType", f.Pattern))
		renderColor(w, "fgColor", f.FgColor)
		renderColor(w, "bgColor", f.BgColor)
		w.End("patternFill")
	}
	w.End("fill")
}

func renderEdge(w *xmlpart.Writer, local string, e BorderEdge) {
	if e.Color == nil {
		w.Empty(local, xmlpart.A("style", e.Style))
		return
	}
	w.Start(local, xmlpart.A("style", e.Style))
	renderColor(w, "color", e.Color)
	w.End(local)
}

func renderBorder(w *xmlpart.Writer, b Border) {
	w.Start("border", xmlpart.ABool("diagonalUp", b.DiagonalUp), xmlpart.ABool("diagonalDown", b.DiagonalDown))
	renderEdge(w, "left", b.Left)
	renderEdge(w, "right", b.Right)
	renderEdge(w, "top", b.Top)
	renderEdge(w, "bottom", b.Bottom)
	renderEdge(w, "diagonal", b.Diagonal)
	if !b.Vertical.isZero() {
		renderEdge(w, "vertical", b.Vertical)
	}
	if !b.Horizontal.isZero() {
		renderEdge(w, "horizontal", b.Horizontal)
	}
	w.End("border")
}

func xfAttrs(xf CellFormat) []xmlpart.Attr {
	attrs := []xmlpart.Attr{
		xmlpart.AInt("numFmtId", xf.NumFmtID),
		xmlpart.AInt("fontId", xf.FontID),
		xmlpart.AInt("fillId", xf.FillID),
		xmlpart.AInt("borderId", xf.BorderID),
		xmlpart.AInt("xfId", xf.XfID),
		xmlpart.ABool("quotePrefix", xf.QuotePrefix),
	}
	if !xf.fromFile {
		attrs = append(attrs,
			xmlpart.ABool("applyNumberFormat", xf.NumFmtID != 0),
			xmlpart.ABool("applyFont", xf.FontID != 0),
			xmlpart.ABool("applyFill", xf.FillID != 0),
			xmlpart.ABool("applyBorder", xf.BorderID != 0),
			xmlpart.ABool("applyAlignment", xf.Alignment != nil),
			xmlpart.ABool("applyProtection", xf.Protection != nil),
		)
	}
	return attrs
}

func renderXfBody(w *xmlpart.Writer, xf CellFormat, attrs []xmlpart.Attr) {
	if xf.Alignment == nil && xf.Protection == nil {
		w.Empty("xf", attrs...)
		return
	}
	w.Start("xf", attrs...)
	if a := xf.Alignment; a != nil {
		w.Empty("alignment",
			xmlpart.A("horizontal", a.Horizontal),
			xmlpart.A("vertical", a.Vertical),
			intAttr("textRotation", a.TextRotation),
			xmlpart.ABool("wrapText", a.WrapText),
			intAttr("indent", a.Indent),
			intAttr("relativeIndent", a.RelativeIndent),
			xmlpart.ABool("justifyLastLine", a.JustifyLastLine),
			xmlpart.ABool("shrinkToFit", a.ShrinkToFit),
			intAttr("readingOrder", a.ReadingOrder),
		)
	}
	if p := xf.Protection; p != nil {
		locked := xmlpart.Attr{}
		if !p.Locked {
			locked = xmlpart.A("locked", "0")
		}
		w.Empty("protection", locked, xmlpart.ABool("hidden", p.Hidden))
	}
	w.End("xf")
}

// renderXf renders the record with file attributes in their local form;
// it is used for dedup keys.
func renderXf(w *xmlpart.Writer, xf CellFormat) {
	attrs := xfAttrs(xf)
	for _, a := range xf.attrs {
		name := a.Name.Local
		if a.Name.Space != "" {
			name = a.Name.Space + ":" + name
		}
		attrs = append(attrs, xmlpart.Attr{Name: name, Value: a.Value, Keep: true})
	}
	renderXfBody(w, xf, attrs)
}

func (s *StyleSheet) renderXfQualified(w *xmlpart.Writer, xf CellFormat) {
	attrs := xfAttrs(xf)
	for _, a := range xf.attrs {
		attrs = append(attrs, xmlpart.Attr{Name: s.doc.QualifiedName(a.Name), Value: a.Value, Keep: true})
	}
	renderXfBody(w, xf, attrs)
}

// intAttr omits zero values.
func intAttr(name string, v int) xmlpart.Attr {
	if v == 0 {
		return xmlpart.Attr{}
	}
	return xmlpart.AInt(name, v)
}
