package xlsx

import (
	"encoding/xml"
	"iter"
	"slices"
	"strings"
	"time"

	"github.com/tsawler/sheetkit/internal/xmlpart"
	"github.com/tsawler/sheetkit/numtext"
	"github.com/tsawler/sheetkit/opc"
	"github.com/tsawler/sheetkit/xlerr"
)

// RowProps overrides the defaults of one row.
type RowProps struct {
	Height       float64 // points; 0 uses the sheet default
	CustomHeight bool
	Hidden       bool
	OutlineLevel int
	Collapsed    bool
	StyleIndex   int
	CustomFormat bool

	attrs []xml.Attr
}

func (p *RowProps) isZero() bool {
	return p.Height == 0 && !p.CustomHeight && !p.Hidden && p.OutlineLevel == 0 &&
		!p.Collapsed && p.StyleIndex == 0 && !p.CustomFormat && len(p.attrs) == 0
}

// ColProps overrides the defaults of one column.
type ColProps struct {
	Width        float64 // characters; 0 uses the sheet default
	CustomWidth  bool
	Hidden       bool
	BestFit      bool
	Phonetic     bool
	OutlineLevel int
	Collapsed    bool
	StyleIndex   int
}

// Hyperlink is a link attached to a cell or range.
type Hyperlink struct {
	Ref      string
	URL      string // external target; empty for links inside the workbook
	Location string // place inside the workbook, for example "Sheet2!A1"
	Display  string
	Tooltip  string

	rid   string
	attrs []xml.Attr
}

type sharedGroup struct {
	anchor Coord
	ref    Range
	text   string
}

// Worksheet is a sparse cell grid. Absent coordinates are empty cells with
// the default style.
//
// A Worksheet belongs to its Workbook and shares its locking rules: it is
// not safe for concurrent mutation.
type Worksheet struct {
	wb    *Workbook
	entry *sheetEntry
	part  string
	doc   *xmlpart.Document
	relNS string

	cells  map[Coord]*Cell
	rows   map[int]*RowProps
	cols   map[int]ColProps
	merges []Range
	links  []*Hyperlink
	groups map[int]*sharedGroup

	drawingRID   string
	drawingAttrs []xml.Attr
	drawing      *Drawing
}

func newWorksheet(wb *Workbook, entry *sheetEntry, part string) *Worksheet {
	return &Worksheet{
		wb:     wb,
		entry:  entry,
		part:   part,
		relNS:  nsRelationships,
		cells:  make(map[Coord]*Cell),
		rows:   make(map[int]*RowProps),
		cols:   make(map[int]ColProps),
		groups: make(map[int]*sharedGroup),
	}
}

// Name returns the sheet name.
func (ws *Worksheet) Name() string {
	return ws.entry.info.Name
}

// Part returns the name of the package part holding the sheet.
func (ws *Worksheet) Part() string {
	return ws.part
}

// Set stores v at ref.
func (ws *Worksheet) Set(ref string, v Value) error {
	at, err := ParseCoord(ref)
	if err != nil {
		return err
	}
	return ws.set(at, v)
}

// SetAt stores v at the 1-based row and column.
func (ws *Worksheet) SetAt(row, col int, v Value) error {
	at := Coord{Row: row, Col: col}
	if !at.valid() {
		return xlerr.Valuef("set cell", "row %d column %d is outside the grid", row, col)
	}
	return ws.set(at, v)
}

func (ws *Worksheet) set(at Coord, v Value) error {
	if v.err != nil {
		return v.err
	}
	if r, ok := ws.mergeAt(at); ok && r.Min != at {
		return xlerr.Integrityf("set cell", ws.part, "%s is covered by merged range %s; only %s holds a value", at, r, r.Min)
	}

	ws.releaseGroup(at)

	c := ws.cells[at]
	if c == nil {
		c = &Cell{}
	}
	style := c.StyleIndex
	*c = Cell{StyleIndex: style}

	switch v.kind {
	case CellTypeNumber:
		c.Type = CellTypeNumber
		c.Number = v.num
	case CellTypeSharedString:
		c.Type = CellTypeSharedString
		c.SST = ws.wb.sst.Intern(v.text)
	case CellTypeInlineString:
		c.Type = CellTypeInlineString
		c.Text = v.text
	case CellTypeBoolean:
		c.Type = CellTypeBoolean
		c.Bool = v.b
	case CellTypeError:
		c.Type = CellTypeError
		c.Text = v.text
	case CellTypeFormula:
		c.Type = CellTypeFormula
		c.Formula = &Formula{Text: v.text}
	}
	ws.store(at, c)
	return nil
}

// store puts c in the grid, or removes the coordinate when c is
// equivalent to an absent cell.
func (ws *Worksheet) store(at Coord, c *Cell) {
	if c.elidable() {
		delete(ws.cells, at)
		return
	}
	ws.cells[at] = c
}

// SetNumberText parses text as a number and stores it at ref.
func (ws *Worksheet) SetNumberText(ref, text string) error {
	v, err := numtext.Parse(text)
	if err != nil {
		return err
	}
	return ws.Set(ref, Number(v))
}

// SetTime stores t as a date serial. A cell whose format does not already
// display dates gets the built-in date-time format.
func (ws *Worksheet) SetTime(ref string, t time.Time) error {
	at, err := ParseCoord(ref)
	if err != nil {
		return err
	}
	serial, err := TimeToSerial(t, ws.wb.date1904)
	if err != nil {
		return err
	}
	if err := ws.set(at, Number(serial)); err != nil {
		return err
	}
	c := ws.cells[at]
	if ws.wb.styles.IsDateFormat(c.StyleIndex) {
		return nil
	}
	xf, err := ws.wb.styles.CellFormatAt(c.StyleIndex)
	if err != nil {
		return err
	}
	xf.NumFmtID = 22
	xf.attrs = nil
	xf.fromFile = false
	idx, err := ws.wb.styles.CellFormat(xf)
	if err != nil {
		return err
	}
	c.StyleIndex = idx
	return nil
}

// Cell returns the cell at ref. Shared strings are resolved into Text.
func (ws *Worksheet) Cell(ref string) (Cell, error) {
	at, err := ParseCoord(ref)
	if err != nil {
		return Cell{}, err
	}
	return ws.cellAt(at)
}

// CellAt returns the cell at the 1-based row and column. An unreadable
// shared string leaves Text empty.
func (ws *Worksheet) CellAt(row, col int) Cell {
	c, _ := ws.cellAt(Coord{Row: row, Col: col})
	return c
}

func (ws *Worksheet) cellAt(at Coord) (Cell, error) {
	c, ok := ws.cells[at]
	if !ok {
		return Cell{}, nil
	}
	out := c.clone()
	if out.Type == CellTypeSharedString {
		text, err := ws.wb.sst.Get(out.SST)
		if err != nil {
			return out, err
		}
		out.Text = text
	}
	return out, nil
}

// Value returns the display text of the cell at ref.
func (ws *Worksheet) Value(ref string) (string, error) {
	c, err := ws.Cell(ref)
	if err != nil {
		return "", err
	}
	return displayText(c), nil
}

// SetStyle sets the cell-format index of the cell at ref.
func (ws *Worksheet) SetStyle(ref string, style int) error {
	at, err := ParseCoord(ref)
	if err != nil {
		return err
	}
	if n := ws.wb.styles.cellFormats(); style < 0 || style >= n {
		return xlerr.Integrityf("set style", ws.part, "cell format %d out of range (table has %d)", style, n)
	}
	c := ws.cells[at]
	if c == nil {
		c = &Cell{}
	}
	c.StyleIndex = style
	ws.store(at, c)
	return nil
}

// Dimension returns the smallest range holding every stored cell. ok is
// false for a sheet without cells.
func (ws *Worksheet) Dimension() (r Range, ok bool) {
	for at := range ws.cells {
		if !ok {
			r = Range{Min: at, Max: at}
			ok = true
			continue
		}
		r.Min.Row = min(r.Min.Row, at.Row)
		r.Min.Col = min(r.Min.Col, at.Col)
		r.Max.Row = max(r.Max.Row, at.Row)
		r.Max.Col = max(r.Max.Col, at.Col)
	}
	return r, ok
}

func (ws *Worksheet) sortedCoords() []Coord {
	out := make([]Coord, 0, len(ws.cells))
	for at := range ws.cells {
		out = append(out, at)
	}
	slices.SortFunc(out, func(a, b Coord) int {
		if a.Row != b.Row {
			return a.Row - b.Row
		}
		return a.Col - b.Col
	})
	return out
}

// Cells iterates over the stored cells in row-major order.
func (ws *Worksheet) Cells() iter.Seq2[Coord, Cell] {
	return func(yield func(Coord, Cell) bool) {
		for _, at := range ws.sortedCoords() {
			c, _ := ws.cellAt(at)
			if !yield(at, c) {
				return
			}
		}
	}
}

// Rows returns the numbers of the rows holding cells or properties, in
// ascending order.
func (ws *Worksheet) Rows() []int {
	seen := make(map[int]bool, len(ws.rows))
	for at := range ws.cells {
		seen[at.Row] = true
	}
	for r := range ws.rows {
		seen[r] = true
	}
	out := make([]int, 0, len(seen))
	for r := range seen {
		out = append(out, r)
	}
	slices.Sort(out)
	return out
}

// Merge merges the cells of ref. The top-left cell keeps its value; the
// values of the others are cleared and their styles kept.
func (ws *Worksheet) Merge(ref string) error {
	r, err := ParseRange(ref)
	if err != nil {
		return err
	}
	if r.Min == r.Max {
		return xlerr.Valuef("merge", "%s is a single cell", ref)
	}
	for _, m := range ws.merges {
		if m.Overlaps(r) {
			return xlerr.Integrityf("merge", ws.part, "%s overlaps merged range %s", r, m)
		}
	}
	for at := range ws.cells {
		if at != r.Min && r.Contains(at) {
			ws.clearValue(at)
		}
	}
	ws.merges = append(ws.merges, r)
	return nil
}

func (ws *Worksheet) clearValue(at Coord) {
	ws.releaseGroup(at)
	c := ws.cells[at]
	if c == nil {
		return
	}
	*c = Cell{StyleIndex: c.StyleIndex}
	ws.store(at, c)
}

// Unmerge removes the merged range ref.
func (ws *Worksheet) Unmerge(ref string) error {
	r, err := ParseRange(ref)
	if err != nil {
		return err
	}
	for i, m := range ws.merges {
		if m == r {
			ws.merges = slices.Delete(ws.merges, i, i+1)
			return nil
		}
	}
	return xlerr.Valuef("unmerge", "%s is not a merged range", ref)
}

// MergedRanges returns the merged ranges in the order they were added.
func (ws *Worksheet) MergedRanges() []Range {
	return slices.Clone(ws.merges)
}

func (ws *Worksheet) mergeAt(at Coord) (Range, bool) {
	for _, m := range ws.merges {
		if m.Contains(at) {
			return m, true
		}
	}
	return Range{}, false
}

// SetSharedFormula fills ref with one formula. The top-left cell holds the
// text; every other cell refers to it and reads as the formula shifted by
// its offset. The group id is returned.
func (ws *Worksheet) SetSharedFormula(ref, formula string) (int, error) {
	r, err := ParseRange(ref)
	if err != nil {
		return 0, err
	}
	v := FormulaValue(formula)
	if v.err != nil {
		return 0, v.err
	}
	for _, m := range ws.merges {
		if !m.Overlaps(r) {
			continue
		}
		for row := m.Min.Row; row <= m.Max.Row; row++ {
			for col := m.Min.Col; col <= m.Max.Col; col++ {
				at := Coord{Row: row, Col: col}
				if at != m.Min && r.Contains(at) {
					return 0, xlerr.Integrityf("set shared formula", ws.part, "%s is covered by merged range %s", at, m)
				}
			}
		}
	}

	group := 0
	for g := range ws.groups {
		group = max(group, g+1)
	}
	for at, c := range ws.cells {
		if c.Formula != nil && c.Formula.Kind == FormulaShared {
			group = max(group, c.Formula.Group+1)
		}
		if r.Contains(at) {
			ws.releaseGroup(at)
		}
	}

	for row := r.Min.Row; row <= r.Max.Row; row++ {
		for col := r.Min.Col; col <= r.Max.Col; col++ {
			at := Coord{Row: row, Col: col}
			f := &Formula{Kind: FormulaShared, Group: group}
			if at == r.Min {
				f.Text = v.text
				f.Ref = r.String()
			}
			c := &Cell{Type: CellTypeFormula, Formula: f}
			if old := ws.cells[at]; old != nil {
				c.StyleIndex = old.StyleIndex
			}
			ws.cells[at] = c
		}
	}
	ws.groups[group] = &sharedGroup{anchor: r.Min, ref: r, text: v.text}
	return group, nil
}

// releaseGroup turns the members of the shared formula anchored at at
// into ordinary formulas, so the anchor can be overwritten.
func (ws *Worksheet) releaseGroup(at Coord) {
	c := ws.cells[at]
	if c == nil || c.Formula == nil || c.Formula.Kind != FormulaShared {
		return
	}
	g, ok := ws.groups[c.Formula.Group]
	if !ok || g.anchor != at {
		return
	}
	for pos, m := range ws.cells {
		if pos == at || m.Formula == nil || m.Formula.Kind != FormulaShared || m.Formula.Group != c.Formula.Group {
			continue
		}
		m.Formula = &Formula{
			Text:       ShiftFormula(g.text, pos.Row-at.Row, pos.Col-at.Col),
			Result:     m.Formula.Result,
			ResultType: m.Formula.ResultType,
		}
	}
	delete(ws.groups, c.Formula.Group)
}

// FormulaAt returns the formula of the cell at ref without the leading
// "=". Members of a shared formula get the anchor's formula shifted to
// their position. Cells without a formula return "".
func (ws *Worksheet) FormulaAt(ref string) (string, error) {
	at, err := ParseCoord(ref)
	if err != nil {
		return "", err
	}
	c := ws.cells[at]
	if c == nil || c.Formula == nil {
		return "", nil
	}
	f := c.Formula
	if f.Kind != FormulaShared || f.Text != "" {
		return f.Text, nil
	}
	g, ok := ws.groups[f.Group]
	if !ok {
		return "", xlerr.Integrityf("formula", ws.part, "%s refers to missing shared formula %d", at, f.Group)
	}
	return ShiftFormula(g.text, at.Row-g.anchor.Row, at.Col-g.anchor.Col), nil
}

// SetRow replaces the properties of a row.
func (ws *Worksheet) SetRow(row int, p RowProps) error {
	if row < 1 || row > MaxRows {
		return xlerr.Valuef("set row", "row %d is outside the grid", row)
	}
	if err := ws.checkStyle("set row", p.StyleIndex); err != nil {
		return err
	}
	if p.isZero() {
		delete(ws.rows, row)
		return nil
	}
	ws.rows[row] = &p
	return nil
}

// Row returns the properties of a row.
func (ws *Worksheet) Row(row int) RowProps {
	if p, ok := ws.rows[row]; ok {
		return *p
	}
	return RowProps{}
}

// SetColumn replaces the properties of a column.
func (ws *Worksheet) SetColumn(col int, p ColProps) error {
	if col < 1 || col > MaxColumns {
		return xlerr.Valuef("set column", "column %d is outside the grid", col)
	}
	if err := ws.checkStyle("set column", p.StyleIndex); err != nil {
		return err
	}
	if p == (ColProps{}) {
		delete(ws.cols, col)
		return nil
	}
	ws.cols[col] = p
	return nil
}

// Column returns the properties of a column.
func (ws *Worksheet) Column(col int) ColProps {
	return ws.cols[col]
}

func (ws *Worksheet) checkStyle(op string, style int) error {
	if n := ws.wb.styles.cellFormats(); style < 0 || style >= n {
		return xlerr.Integrityf(op, ws.part, "cell format %d out of range (table has %d)", style, n)
	}
	return nil
}

// SetHyperlink links ref to an external target, replacing an existing
// link on the same reference.
func (ws *Worksheet) SetHyperlink(ref, target string) error {
	r, err := ParseRange(ref)
	if err != nil {
		return err
	}
	id, err := ws.wb.pkg.AddRelationship(ws.part, opc.RelTypeHyperlink, target, opc.External)
	if err != nil {
		return err
	}
	ws.dropLink(r.String())
	ws.links = append(ws.links, &Hyperlink{Ref: r.String(), rid: id})
	return nil
}

// SetInternalLink links ref to a location inside the workbook.
func (ws *Worksheet) SetInternalLink(ref, location string) error {
	r, err := ParseRange(ref)
	if err != nil {
		return err
	}
	if location == "" {
		return xlerr.Valuef("set link", "empty location")
	}
	ws.dropLink(r.String())
	ws.links = append(ws.links, &Hyperlink{Ref: r.String(), Location: location})
	return nil
}

// Hyperlinks returns the sheet's links with external targets resolved.
func (ws *Worksheet) Hyperlinks() ([]Hyperlink, error) {
	out := make([]Hyperlink, 0, len(ws.links))
	for _, l := range ws.links {
		h := *l
		if l.rid != "" {
			rel, err := ws.wb.pkg.Resolve(ws.part, l.rid)
			if err != nil {
				return nil, err
			}
			h.URL = rel.Target
		}
		out = append(out, h)
	}
	return out, nil
}

// RemoveHyperlink removes the link on ref.
func (ws *Worksheet) RemoveHyperlink(ref string) error {
	r, err := ParseRange(ref)
	if err != nil {
		return err
	}
	if !ws.dropLink(r.String()) {
		return xlerr.Valuef("remove hyperlink", "no hyperlink on %s", ref)
	}
	return nil
}

func (ws *Worksheet) dropLink(ref string) bool {
	for i, l := range ws.links {
		if !strings.EqualFold(l.Ref, ref) {
			continue
		}
		if l.rid != "" {
			if err := ws.wb.pkg.RemoveRelationship(ws.part, l.rid); err != nil {
				ws.wb.log.Debug("hyperlink relationship already gone", "part", ws.part, "id", l.rid)
			}
		}
		ws.links = slices.Delete(ws.links, i, i+1)
		return true
	}
	return false
}

// HasDrawing reports whether the sheet references a drawing part.
func (ws *Worksheet) HasDrawing() bool {
	return ws.drawingRID != ""
}
