package xlsx

import (
	"encoding/xml"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/tsawler/sheetkit/internal/xmlpart"
	"github.com/tsawler/sheetkit/numtext"
	"github.com/tsawler/sheetkit/xlerr"
)

const nsSpreadsheetMLStrict = "http://purl.oclc.org/ooxml/spreadsheetml/main"

// worksheetOrder is the child sequence of CT_Worksheet.
var worksheetOrder = []string{
	"sheetPr", "dimension", "sheetViews", "sheetFormatPr", "cols", "sheetData",
	"sheetCalcPr", "sheetProtection", "protectedRanges", "scenarios", "autoFilter",
	"sortState", "dataConsolidate", "customSheetViews", "mergeCells", "phoneticPr",
	"conditionalFormatting", "dataValidations", "hyperlinks", "printOptions",
	"pageMargins", "pageSetup", "headerFooter", "rowBreaks", "colBreaks",
	"customProperties", "cellWatches", "ignoredErrors", "smartTags", "drawing",
	"legacyDrawing", "legacyDrawingHF", "drawingHF", "picture", "oleObjects",
	"controls", "webPublishItems", "tableParts", "extLst",
}

func newSheetDocument() *xmlpart.Document {
	return xmlpart.NewDocument("worksheet",
		xmlpart.Namespace{URL: nsSpreadsheetML},
		xmlpart.Namespace{Prefix: "r", URL: nsRelationships},
	)
}

// parse loads the sheet part. The shared string table and the style sheet
// must be loaded already; they are only read.
func (ws *Worksheet) parse(data []byte) error {
	doc, err := xmlpart.Parse(data, map[string]xmlpart.Handler{
		"dimension": func(d *xml.Decoder, _ xml.StartElement) error {
			return d.Skip()
		},
		"sheetData": func(d *xml.Decoder, _ xml.StartElement) error {
			return ws.parseSheetData(d)
		},
		"cols": func(d *xml.Decoder, start xml.StartElement) error {
			var cols struct {
				Col []colXML `xml:"col"`
			}
			if err := d.DecodeElement(&cols, &start); err != nil {
				return err
			}
			return ws.loadCols(cols.Col)
		},
		"mergeCells": func(d *xml.Decoder, start xml.StartElement) error {
			var mc struct {
				Cells []mergeCellXML `xml:"mergeCell"`
			}
			if err := d.DecodeElement(&mc, &start); err != nil {
				return err
			}
			return ws.loadMerges(mc.Cells)
		},
		"hyperlinks": func(d *xml.Decoder, start xml.StartElement) error {
			var hl struct {
				Links []hyperlinkXML `xml:"hyperlink"`
			}
			if err := d.DecodeElement(&hl, &start); err != nil {
				return err
			}
			for _, h := range hl.Links {
				id, rest := relID(h.Attrs)
				ws.links = append(ws.links, &Hyperlink{
					Ref:      h.Ref,
					Location: h.Location,
					Display:  h.Display,
					Tooltip:  h.Tooltip,
					rid:      id,
					attrs:    rest,
				})
			}
			return nil
		},
		"drawing": func(d *xml.Decoder, start xml.StartElement) error {
			var dr drawingRefXML
			if err := d.DecodeElement(&dr, &start); err != nil {
				return err
			}
			ws.drawingRID, ws.drawingAttrs = relID(dr.Attrs)
			return nil
		},
	})
	if err != nil {
		var xe *xlerr.Error
		if errors.As(err, &xe) {
			return xe
		}
		return xlerr.Format("load", ws.part, err)
	}
	ws.doc = doc
	if doc.Name.Space == nsSpreadsheetMLStrict {
		ws.relNS = xmlpart.NSRelationshipsStrict
	}

	ids := doc.RelIDs()
	for _, l := range ws.links {
		if l.rid != "" {
			ids = append(ids, l.rid)
		}
	}
	if ws.drawingRID != "" {
		ids = append(ids, ws.drawingRID)
	}
	for _, id := range ids {
		if _, err := ws.wb.pkg.Resolve(ws.part, id); err != nil {
			return xlerr.Integrityf("load", ws.part, "relationship %q is not declared", id)
		}
	}
	return nil
}

func (ws *Worksheet) parseSheetData(d *xml.Decoder) error {
	prev := 0
	for {
		tok, err := d.Token()
		if err != nil {
			return err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local != "row" {
				if err := d.Skip(); err != nil {
					return err
				}
				continue
			}
			var r rowXML
			if err := d.DecodeElement(&r, &t); err != nil {
				return err
			}
			if r.R == 0 {
				r.R = prev + 1
			}
			if r.R < 1 || r.R > MaxRows {
				return xlerr.Format("load", ws.part, fmt.Errorf("row number %d is outside the grid", r.R))
			}
			prev = r.R
			if err := ws.loadRow(r); err != nil {
				return err
			}
		case xml.EndElement:
			return nil
		}
	}
}

func (ws *Worksheet) checkLoadedStyle(at string, style int) error {
	if n := ws.wb.styles.cellFormats(); style < 0 || style >= n {
		return xlerr.Integrityf("load", ws.part, "%s uses cell format %d (table has %d)", at, style, n)
	}
	return nil
}

func (ws *Worksheet) loadRow(r rowXML) error {
	if err := ws.checkLoadedStyle("row "+strconv.Itoa(r.R), r.S); err != nil {
		return err
	}
	props := RowProps{
		CustomHeight: xmlBool(r.CustomHeight),
		Hidden:       xmlBool(r.Hidden),
		OutlineLevel: r.OutlineLevel,
		Collapsed:    xmlBool(r.Collapsed),
		StyleIndex:   r.S,
		CustomFormat: xmlBool(r.CustomFormat),
		attrs:        r.Attrs,
	}
	props.Height, _ = strconv.ParseFloat(r.Ht, 64)
	if !props.isZero() {
		ws.rows[r.R] = &props
	}

	col := 0
	for _, x := range r.Cells {
		at := Coord{Row: r.R, Col: col + 1}
		if x.R != "" {
			var err error
			if at, err = ParseCoord(x.R); err != nil {
				return xlerr.Format("load", ws.part, fmt.Errorf("cell reference %q: %v", x.R, err))
			}
		}
		if !at.valid() {
			return xlerr.Format("load", ws.part, fmt.Errorf("cell %d in row %d is outside the grid", at.Col, r.R))
		}
		col = at.Col
		c, err := ws.loadCell(at, x)
		if err != nil {
			return err
		}
		ws.store(at, c)
	}
	return nil
}

func (ws *Worksheet) loadCell(at Coord, x cellXML) (*Cell, error) {
	if err := ws.checkLoadedStyle(at.String(), x.S); err != nil {
		return nil, err
	}
	c := &Cell{StyleIndex: x.S, attrs: x.Attrs}
	v, hasV := "", x.V != nil
	if hasV {
		v = *x.V
	}

	if x.F != nil {
		f := &Formula{
			Text:       x.F.Text,
			Kind:       formulaKind(x.F.T),
			Ref:        x.F.Ref,
			Result:     v,
			ResultType: x.T,
			attrs:      x.F.Attrs,
		}
		if x.F.Si != nil {
			f.Group = *x.F.Si
		}
		if f.Kind == FormulaShared && f.Text != "" {
			ref := Range{Min: at, Max: at}
			if f.Ref != "" {
				var err error
				if ref, err = ParseRange(f.Ref); err != nil {
					return nil, xlerr.Format("load", ws.part, fmt.Errorf("shared formula range of %s: %v", at, err))
				}
			}
			ws.groups[f.Group] = &sharedGroup{anchor: at, ref: ref, text: f.Text}
		}
		c.Type = CellTypeFormula
		c.Formula = f
		return c, nil
	}

	switch x.T {
	case "s":
		if !hasV {
			return c, nil
		}
		idx, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return nil, xlerr.Format("load", ws.part, fmt.Errorf("%s: shared string index %q is not a number", at, v))
		}
		if n := ws.wb.sst.Len(); idx < 0 || idx >= n {
			return nil, xlerr.Integrityf("load", ws.part, "%s uses shared string %d (table has %d)", at, idx, n)
		}
		c.Type = CellTypeSharedString
		c.SST = idx
	case "b":
		if hasV {
			c.Type = CellTypeBoolean
			c.Bool = xmlBool(strings.TrimSpace(v))
		}
	case "e":
		if hasV {
			c.Type = CellTypeError
			c.Text = v
		}
	case "str":
		if hasV {
			c.Type = CellTypeInlineString
			c.Text = unescapeXString(v)
		}
	case "inlineStr":
		if x.Is != nil {
			c.Type = CellTypeInlineString
			c.Text = x.Is.text()
			if !x.Is.plain() {
				c.rich = []byte(x.Is.Inner)
			}
		}
	case "d":
		if hasV {
			serial, err := isoSerial(v, ws.wb.date1904)
			if err != nil {
				return nil, xlerr.Format("load", ws.part, fmt.Errorf("%s: invalid date %q", at, v))
			}
			c.Type = CellTypeNumber
			c.Number = serial
		}
	case "", "n":
		if hasV && strings.TrimSpace(v) != "" {
			n, err := numtext.Parse(v)
			if err != nil {
				return nil, xlerr.Format("load", ws.part, fmt.Errorf("%s: invalid number %q", at, v))
			}
			c.Type = CellTypeNumber
			c.Number = n
		}
	default:
		return nil, xlerr.Format("load", ws.part, fmt.Errorf("%s: unknown cell type %q", at, x.T))
	}
	return c, nil
}

func (ws *Worksheet) loadCols(cols []colXML) error {
	for _, x := range cols {
		if x.Min < 1 || x.Max < x.Min || x.Max > MaxColumns {
			return xlerr.Format("load", ws.part, fmt.Errorf("column span %d-%d is invalid", x.Min, x.Max))
		}
		if err := ws.checkLoadedStyle("column "+strconv.Itoa(x.Min), x.Style); err != nil {
			return err
		}
		p := ColProps{
			CustomWidth:  xmlBool(x.CustomWidth),
			Hidden:       xmlBool(x.Hidden),
			BestFit:      xmlBool(x.BestFit),
			OutlineLevel: x.OutlineLevel,
			Collapsed:    xmlBool(x.Collapsed),
			StyleIndex:   x.Style,
		}
		p.Width, _ = strconv.ParseFloat(x.Width, 64)
		for _, a := range x.Attrs {
			if a.Name.Local == "phonetic" {
				p.Phonetic = xmlBool(a.Value)
			}
		}
		if p == (ColProps{}) {
			continue
		}
		for i := x.Min; i <= x.Max; i++ {
			ws.cols[i] = p
		}
	}
	return nil
}

func (ws *Worksheet) loadMerges(cells []mergeCellXML) error {
	for _, mc := range cells {
		r, err := ParseRange(mc.Ref)
		if err != nil {
			return xlerr.Format("load", ws.part, fmt.Errorf("merged range %q: %v", mc.Ref, err))
		}
		for _, m := range ws.merges {
			if m.Overlaps(r) {
				return xlerr.Integrityf("load", ws.part, "merged range %s overlaps %s", r, m)
			}
		}
		ws.merges = append(ws.merges, r)
	}
	return nil
}

// prepare registers the sheet's shared strings with plan in row-major
// order and returns that order for render.
func (ws *Worksheet) prepare(plan *sstPlan) []Coord {
	order := ws.sortedCoords()
	for _, at := range order {
		if c := ws.cells[at]; c.Type == CellTypeSharedString {
			plan.use(c.SST)
		}
	}
	return order
}

// render serializes the sheet. It only reads the shared tables, so sheets
// may be rendered concurrently once plan is complete.
func (ws *Worksheet) render(order []Coord, plan *sstPlan) ([]byte, error) {
	doc := ws.doc
	prefix := doc.ElementPrefix()
	body := func(fn func(w *xmlpart.Writer)) []byte {
		w := xmlpart.NewWriter()
		defer w.Release()
		w.SetElementPrefix(prefix)
		fn(w)
		return w.Bytes()
	}

	sections := []xmlpart.Section{
		rawSection("dimension", body(ws.renderDimension)),
		rawSection("sheetData", body(func(w *xmlpart.Writer) { ws.renderSheetData(w, order, plan) })),
	}
	if len(ws.cols) > 0 {
		sections = append(sections, rawSection("cols", body(ws.renderCols)))
	}
	if len(ws.merges) > 0 {
		sections = append(sections, rawSection("mergeCells", body(ws.renderMerges)))
	}
	if len(ws.links) > 0 {
		sections = append(sections, rawSection("hyperlinks", body(ws.renderLinks)))
	}
	if ws.drawingRID != "" {
		sections = append(sections, rawSection("drawing", body(func(w *xmlpart.Writer) {
			attrs := append([]xmlpart.Attr{xmlpart.A(ws.relAttr(), ws.drawingRID)}, qualified(doc, ws.drawingAttrs)...)
			w.Empty("drawing", attrs...)
		})))
	}

	w := xmlpart.NewWriter()
	defer w.Release()
	if err := doc.Write(w, sections, worksheetOrder); err != nil {
		return nil, err
	}
	return w.Bytes(), nil
}

func rawSection(name string, b []byte) xmlpart.Section {
	return xmlpart.Section{Name: name, Render: func(w *xmlpart.Writer) error {
		w.Raw(b)
		return nil
	}}
}

func (ws *Worksheet) relAttr() string {
	return ws.doc.Prefix(ws.relNS, "r") + ":id"
}

// qualified renders unmodeled attributes for writing inside doc.
func qualified(doc *xmlpart.Document, attrs []xml.Attr) []xmlpart.Attr {
	out := make([]xmlpart.Attr, 0, len(attrs))
	for _, a := range attrs {
		if a.Name.Space == "xmlns" || (a.Name.Space == "" && a.Name.Local == "xmlns") {
			continue
		}
		out = append(out, xmlpart.Attr{Name: doc.QualifiedName(a.Name), Value: a.Value, Keep: true})
	}
	return out
}

func (ws *Worksheet) renderDimension(w *xmlpart.Writer) {
	ref := "A1"
	if r, ok := ws.Dimension(); ok {
		ref = r.String()
	}
	w.Empty("dimension", xmlpart.A("ref", ref))
}

func (ws *Worksheet) renderSheetData(w *xmlpart.Writer, order []Coord, plan *sstPlan) {
	w.Start("sheetData")
	i := 0
	for _, r := range ws.Rows() {
		attrs := ws.rowAttrs(r)
		j := i
		for j < len(order) && order[j].Row == r {
			j++
		}
		if j == i {
			w.Empty("row", attrs...)
			continue
		}
		w.Start("row", attrs...)
		for _, at := range order[i:j] {
			ws.renderCell(w, at, ws.cells[at], plan)
		}
		w.End("row")
		i = j
	}
	w.End("sheetData")
}

func (ws *Worksheet) rowAttrs(r int) []xmlpart.Attr {
	attrs := []xmlpart.Attr{xmlpart.AInt("r", r)}
	p, ok := ws.rows[r]
	if !ok {
		return attrs
	}
	ht := ""
	if p.Height > 0 {
		ht = num(p.Height)
	}
	attrs = append(attrs,
		intAttr("s", p.StyleIndex),
		xmlpart.ABool("customFormat", p.CustomFormat),
		xmlpart.A("ht", ht),
		xmlpart.ABool("hidden", p.Hidden),
		xmlpart.ABool("customHeight", p.CustomHeight),
		intAttr("outlineLevel", p.OutlineLevel),
		xmlpart.ABool("collapsed", p.Collapsed),
	)
	return append(attrs, qualified(ws.doc, p.attrs)...)
}

func (ws *Worksheet) renderCell(w *xmlpart.Writer, at Coord, c *Cell, plan *sstPlan) {
	attrs := []xmlpart.Attr{xmlpart.A("r", at.String()), intAttr("s", c.StyleIndex)}
	var t string
	switch c.Type {
	case CellTypeSharedString:
		t = "s"
	case CellTypeInlineString:
		t = "inlineStr"
	case CellTypeBoolean:
		t = "b"
	case CellTypeError:
		t = "e"
	case CellTypeFormula:
		t = c.Formula.ResultType
	}
	attrs = append(attrs, xmlpart.A("t", t))
	attrs = append(attrs, qualified(ws.doc, c.attrs)...)

	switch c.Type {
	case CellTypeEmpty:
		w.Empty("c", attrs...)
		return
	case CellTypeNumber:
		w.Start("c", attrs...)
		w.Element("v", num(c.Number))
	case CellTypeSharedString:
		w.Start("c", attrs...)
		w.Element("v", strconv.Itoa(plan.index(c.SST)))
	case CellTypeInlineString:
		w.Start("c", attrs...)
		w.Start("is")
		if c.rich != nil {
			w.Raw(c.rich)
		} else {
			writeText(w, "t", c.Text)
		}
		w.End("is")
	case CellTypeBoolean:
		w.Start("c", attrs...)
		v := "0"
		if c.Bool {
			v = "1"
		}
		w.Element("v", v)
	case CellTypeError:
		w.Start("c", attrs...)
		w.Element("v", c.Text)
	case CellTypeFormula:
		w.Start("c", attrs...)
		ws.renderFormula(w, c.Formula)
		if c.Formula.Result != "" {
			w.Element("v", c.Formula.Result)
		}
	}
	w.End("c")
}

func (ws *Worksheet) renderFormula(w *xmlpart.Writer, f *Formula) {
	attrs := []xmlpart.Attr{xmlpart.A("t", f.Kind.attr())}
	switch f.Kind {
	case FormulaShared:
		if f.Text != "" {
			attrs = append(attrs, xmlpart.A("ref", f.Ref))
		}
		attrs = append(attrs, xmlpart.AInt("si", f.Group))
	case FormulaArray, FormulaDataTable:
		attrs = append(attrs, xmlpart.A("ref", f.Ref))
	}
	attrs = append(attrs, qualified(ws.doc, f.attrs)...)
	if f.Text == "" {
		w.Empty("f", attrs...)
		return
	}
	w.Element("f", f.Text, attrs...)
}

func (ws *Worksheet) renderCols(w *xmlpart.Writer) {
	keys := make([]int, 0, len(ws.cols))
	for k := range ws.cols {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	w.Start("cols")
	for i := 0; i < len(keys); {
		p := ws.cols[keys[i]]
		j := i
		for j+1 < len(keys) && keys[j+1] == keys[j]+1 && ws.cols[keys[j+1]] == p {
			j++
		}
		width := ""
		if p.Width > 0 {
			width = num(p.Width)
		}
		w.Empty("col",
			xmlpart.AInt("min", keys[i]),
			xmlpart.AInt("max", keys[j]),
			xmlpart.A("width", width),
			intAttr("style", p.StyleIndex),
			xmlpart.ABool("hidden", p.Hidden),
			xmlpart.ABool("bestFit", p.BestFit),
			xmlpart.ABool("customWidth", p.CustomWidth),
			xmlpart.ABool("phonetic", p.Phonetic),
			intAttr("outlineLevel", p.OutlineLevel),
			xmlpart.ABool("collapsed", p.Collapsed),
		)
		i = j + 1
	}
	w.End("cols")
}

func (ws *Worksheet) renderMerges(w *xmlpart.Writer) {
	w.Start("mergeCells", xmlpart.AInt("count", len(ws.merges)))
	for _, m := range ws.merges {
		w.Empty("mergeCell", xmlpart.A("ref", m.String()))
	}
	w.End("mergeCells")
}

func (ws *Worksheet) renderLinks(w *xmlpart.Writer) {
	w.Start("hyperlinks")
	for _, l := range ws.links {
		attrs := []xmlpart.Attr{xmlpart.A("ref", l.Ref)}
		if l.rid != "" {
			attrs = append(attrs, xmlpart.A(ws.relAttr(), l.rid))
		}
		attrs = append(attrs,
			xmlpart.A("location", l.Location),
			xmlpart.A("display", l.Display),
			xmlpart.A("tooltip", l.Tooltip),
		)
		attrs = append(attrs, qualified(ws.doc, l.attrs)...)
		w.Empty("hyperlink", attrs...)
	}
	w.End("hyperlinks")
}
