// Package xlsx reads and writes spreadsheet workbooks stored as Office Open
// XML packages.
//
// A Workbook owns the shared string table, the style sheet and an ordered
// list of sheets. Worksheets are sparse cell grids. Everything the package
// does not model (sheet views, conditional formats, charts, VBA projects,
// custom XML and so on) is carried through a load/save cycle unchanged.
package xlsx

import (
	"encoding/xml"
	"strconv"
	"strings"

	"github.com/tsawler/sheetkit/internal/xmlpart"
)

// XML namespaces used in XLSX files.
const (
	nsSpreadsheetML = "http://schemas.openxmlformats.org/spreadsheetml/2006/main"
	nsRelationships = "http://schemas.openxmlformats.org/officeDocument/2006/relationships"
	nsDrawingML     = "http://schemas.openxmlformats.org/drawingml/2006/main"
	nsSheetDrawing  = "http://schemas.openxmlformats.org/drawingml/2006/spreadsheetDrawing"
	nsCoreProps     = "http://schemas.openxmlformats.org/package/2006/metadata/core-properties"
	nsDC            = "http://purl.org/dc/elements/1.1/"
	nsDCTerms       = "http://purl.org/dc/terms/"
	nsXSI           = "http://www.w3.org/2001/XMLSchema-instance"
)

// Content types of the parts the package writes.
const (
	ctWorkbook       = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet.main+xml"
	ctWorksheet      = "application/vnd.openxmlformats-officedocument.spreadsheetml.worksheet+xml"
	ctSharedStrings  = "application/vnd.openxmlformats-officedocument.spreadsheetml.sharedStrings+xml"
	ctStyles         = "application/vnd.openxmlformats-officedocument.spreadsheetml.styles+xml"
	ctDrawing        = "application/vnd.openxmlformats-officedocument.drawing+xml"
	ctCoreProperties = "application/vnd.openxmlformats-package.core-properties+xml"
)

// xmlBool interprets xsd:boolean.
func xmlBool(s string) bool {
	return s == "1" || s == "true"
}

// workbook.xml

type sheetRefXML struct {
	Name    string     `xml:"name,attr"`
	SheetID int        `xml:"sheetId,attr"`
	State   string     `xml:"state,attr"`
	Attrs   []xml.Attr `xml:",any,attr"` // r:id and anything else
}

type definedNameXML struct {
	Name         string     `xml:"name,attr"`
	LocalSheetID *int       `xml:"localSheetId,attr"`
	Hidden       string     `xml:"hidden,attr"`
	Comment      string     `xml:"comment,attr"`
	Attrs        []xml.Attr `xml:",any,attr"`
	Value        string     `xml:",chardata"`
}

type workbookPrXML struct {
	Date1904 string `xml:"date1904,attr"`
}

// sharedStrings.xml

type textXML struct {
	Value string `xml:",chardata"`
}

type runXML struct {
	T textXML `xml:"t"`
}

type siXML struct {
	T          *textXML   `xml:"t"`
	R          []runXML   `xml:"r"`
	RPh        []struct{} `xml:"rPh"`
	PhoneticPr *struct{}  `xml:"phoneticPr"`
	Inner      string     `xml:",innerxml"`
}

func (si *siXML) plain() bool {
	return len(si.R) == 0 && len(si.RPh) == 0 && si.PhoneticPr == nil
}

func (si *siXML) text() string {
	var b strings.Builder
	if si.T != nil {
		b.WriteString(si.T.Value)
	}
	for _, r := range si.R {
		b.WriteString(r.T.Value)
	}
	return unescapeXString(b.String())
}

// worksheets

type colXML struct {
	Min          int        `xml:"min,attr"`
	Max          int        `xml:"max,attr"`
	Width        string     `xml:"width,attr"`
	Style        int        `xml:"style,attr"`
	Hidden       string     `xml:"hidden,attr"`
	BestFit      string     `xml:"bestFit,attr"`
	CustomWidth  string     `xml:"customWidth,attr"`
	OutlineLevel int        `xml:"outlineLevel,attr"`
	Collapsed    string     `xml:"collapsed,attr"`
	Attrs        []xml.Attr `xml:",any,attr"`
}

type rowXML struct {
	R            int        `xml:"r,attr"`
	Spans        string     `xml:"spans,attr"`
	S            int        `xml:"s,attr"`
	CustomFormat string     `xml:"customFormat,attr"`
	Ht           string     `xml:"ht,attr"`
	Hidden       string     `xml:"hidden,attr"`
	CustomHeight string     `xml:"customHeight,attr"`
	OutlineLevel int        `xml:"outlineLevel,attr"`
	Collapsed    string     `xml:"collapsed,attr"`
	Attrs        []xml.Attr `xml:",any,attr"`
	Cells        []cellXML  `xml:"c"`
}

type cellXML struct {
	R     string      `xml:"r,attr"`
	S     int         `xml:"s,attr"`
	T     string      `xml:"t,attr"`
	Attrs []xml.Attr  `xml:",any,attr"`
	F     *formulaXML `xml:"f"`
	V     *string     `xml:"v"`
	Is    *siXML      `xml:"is"`
}

type formulaXML struct {
	T     string     `xml:"t,attr"`
	Ref   string     `xml:"ref,attr"`
	Si    *int       `xml:"si,attr"`
	Attrs []xml.Attr `xml:",any,attr"`
	Text  string     `xml:",chardata"`
}

type mergeCellXML struct {
	Ref string `xml:"ref,attr"`
}

type hyperlinkXML struct {
	Ref      string     `xml:"ref,attr"`
	Location string     `xml:"location,attr"`
	Display  string     `xml:"display,attr"`
	Tooltip  string     `xml:"tooltip,attr"`
	Attrs    []xml.Attr `xml:",any,attr"` // r:id
}

type drawingRefXML struct {
	Attrs []xml.Attr `xml:",any,attr"`
}

// relID splits the relationship id attribute off attrs.
func relID(attrs []xml.Attr) (string, []xml.Attr) {
	var id string
	var rest []xml.Attr
	for _, a := range attrs {
		if a.Name.Local == "id" && xmlpart.IsRelationshipNamespace(a.Name.Space) {
			id = a.Value
			continue
		}
		rest = append(rest, a)
	}
	return id, rest
}

// styles.xml

type numFmtXML struct {
	ID   int    `xml:"numFmtId,attr"`
	Code string `xml:"formatCode,attr"`
}

type valXML struct {
	Val *string `xml:"val,attr"`
}

func (v *valXML) flag() bool {
	return v != nil && (v.Val == nil || xmlBool(*v.Val))
}

func (v *valXML) str() string {
	if v == nil || v.Val == nil {
		return ""
	}
	return *v.Val
}

func (v *valXML) intVal() int {
	n, _ := strconv.Atoi(v.str())
	return n
}

type colorXML struct {
	Auto    string `xml:"auto,attr"`
	Indexed *int   `xml:"indexed,attr"`
	RGB     string `xml:"rgb,attr"`
	Theme   *int   `xml:"theme,attr"`
	Tint    string `xml:"tint,attr"`
}

func (c *colorXML) color() *Color {
	if c == nil {
		return nil
	}
	out := &Color{Auto: xmlBool(c.Auto), RGB: c.RGB, Indexed: c.Indexed, Theme: c.Theme}
	out.Tint, _ = strconv.ParseFloat(c.Tint, 64)
	return out
}

type fontXML struct {
	B         *valXML   `xml:"b"`
	I         *valXML   `xml:"i"`
	Strike    *valXML   `xml:"strike"`
	Condense  *valXML   `xml:"condense"`
	Extend    *valXML   `xml:"extend"`
	Outline   *valXML   `xml:"outline"`
	Shadow    *valXML   `xml:"shadow"`
	U         *valXML   `xml:"u"`
	VertAlign *valXML   `xml:"vertAlign"`
	Sz        *valXML   `xml:"sz"`
	Color     *colorXML `xml:"color"`
	Name      *valXML   `xml:"name"`
	Family    *valXML   `xml:"family"`
	Charset   *valXML   `xml:"charset"`
	Scheme    *valXML   `xml:"scheme"`
}

func (f *fontXML) font() Font {
	out := Font{
		Bold:      f.B.flag(),
		Italic:    f.I.flag(),
		Strike:    f.Strike.flag(),
		Condense:  f.Condense.flag(),
		Extend:    f.Extend.flag(),
		Outline:   f.Outline.flag(),
		Shadow:    f.Shadow.flag(),
		VertAlign: f.VertAlign.str(),
		Color:     f.Color.color(),
		Name:      f.Name.str(),
		Family:    f.Family.intVal(),
		Scheme:    f.Scheme.str(),
	}
	if f.U != nil {
		out.Underline = f.U.str()
		if out.Underline == "" {
			out.Underline = "single"
		}
		if out.Underline == "none" {
			out.Underline = ""
		}
	}
	if f.Sz != nil {
		out.Size, _ = strconv.ParseFloat(f.Sz.str(), 64)
	}
	if f.Charset != nil {
		cs := f.Charset.intVal()
		out.Charset = &cs
	}
	return out
}

type patternFillXML struct {
	PatternType string    `xml:"patternType,attr"`
	FgColor     *colorXML `xml:"fgColor"`
	BgColor     *colorXML `xml:"bgColor"`
}

type fillXML struct {
	PatternFill  *patternFillXML `xml:"patternFill"`
	GradientFill *struct{}       `xml:"gradientFill"`
	Inner        string          `xml:",innerxml"`
}

func (f *fillXML) fill() Fill {
	if f.GradientFill != nil {
		return Fill{gradient: []byte(strings.TrimSpace(f.Inner))}
	}
	if f.PatternFill == nil {
		return Fill{}
	}
	return Fill{
		Pattern: f.PatternFill.PatternType,
		FgColor: f.PatternFill.FgColor.color(),
		BgColor: f.PatternFill.BgColor.color(),
	}
}

type edgeXML struct {
	Style string    `xml:"style,attr"`
	Color *colorXML `xml:"color"`
}

func (e *edgeXML) edge() BorderEdge {
	if e == nil {
		return BorderEdge{}
	}
	return BorderEdge{Style: e.Style, Color: e.Color.color()}
}

type borderXML struct {
	DiagonalUp   string   `xml:"diagonalUp,attr"`
	DiagonalDown string   `xml:"diagonalDown,attr"`
	Left         *edgeXML `xml:"left"`
	Start        *edgeXML `xml:"start"`
	Right        *edgeXML `xml:"right"`
	End          *edgeXML `xml:"end"`
	Top          *edgeXML `xml:"top"`
	Bottom       *edgeXML `xml:"bottom"`
	Diagonal     *edgeXML `xml:"diagonal"`
	Vertical     *edgeXML `xml:"vertical"`
	Horizontal   *edgeXML `xml:"horizontal"`
}

func (b *borderXML) border() Border {
	left, right := b.Left, b.Right
	if left == nil {
		left = b.Start
	}
	if right == nil {
		right = b.End
	}
	return Border{
		Left:         left.edge(),
		Right:        right.edge(),
		Top:          b.Top.edge(),
		Bottom:       b.Bottom.edge(),
		Diagonal:     b.Diagonal.edge(),
		Vertical:     b.Vertical.edge(),
		Horizontal:   b.Horizontal.edge(),
		DiagonalUp:   xmlBool(b.DiagonalUp),
		DiagonalDown: xmlBool(b.DiagonalDown),
	}
}

type alignmentXML struct {
	Horizontal      string `xml:"horizontal,attr"`
	Vertical        string `xml:"vertical,attr"`
	TextRotation    int    `xml:"textRotation,attr"`
	WrapText        string `xml:"wrapText,attr"`
	Indent          int    `xml:"indent,attr"`
	RelativeIndent  int    `xml:"relativeIndent,attr"`
	JustifyLastLine string `xml:"justifyLastLine,attr"`
	ShrinkToFit     string `xml:"shrinkToFit,attr"`
	ReadingOrder    int    `xml:"readingOrder,attr"`
}

type protectionXML struct {
	Locked *string `xml:"locked,attr"`
	Hidden string  `xml:"hidden,attr"`
}

type xfXML struct {
	NumFmtID    int            `xml:"numFmtId,attr"`
	FontID      int            `xml:"fontId,attr"`
	FillID      int            `xml:"fillId,attr"`
	BorderID    int            `xml:"borderId,attr"`
	XfID        int            `xml:"xfId,attr"`
	QuotePrefix string         `xml:"quotePrefix,attr"`
	Attrs       []xml.Attr     `xml:",any,attr"`
	Alignment   *alignmentXML  `xml:"alignment"`
	Protection  *protectionXML `xml:"protection"`
}

func (x *xfXML) cellFormat() CellFormat {
	xf := CellFormat{
		NumFmtID:    x.NumFmtID,
		FontID:      x.FontID,
		FillID:      x.FillID,
		BorderID:    x.BorderID,
		XfID:        x.XfID,
		QuotePrefix: xmlBool(x.QuotePrefix),
		attrs:       x.Attrs,
		fromFile:    true,
	}
	if a := x.Alignment; a != nil {
		xf.Alignment = &Alignment{
			Horizontal:      a.Horizontal,
			Vertical:        a.Vertical,
			WrapText:        xmlBool(a.WrapText),
			ShrinkToFit:     xmlBool(a.ShrinkToFit),
			JustifyLastLine: xmlBool(a.JustifyLastLine),
			TextRotation:    a.TextRotation,
			Indent:          a.Indent,
			RelativeIndent:  a.RelativeIndent,
			ReadingOrder:    a.ReadingOrder,
		}
	}
	if p := x.Protection; p != nil {
		xf.Protection = &Protection{
			Locked: p.Locked == nil || xmlBool(*p.Locked),
			Hidden: xmlBool(p.Hidden),
		}
	}
	return xf
}

// docProps/core.xml

type corePropertiesXML struct {
	XMLName        xml.Name `xml:"coreProperties"`
	Title          string   `xml:"title"`
	Subject        string   `xml:"subject"`
	Creator        string   `xml:"creator"`
	Keywords       string   `xml:"keywords"`
	Description    string   `xml:"description"`
	LastModifiedBy string   `xml:"lastModifiedBy"`
	Revision       string   `xml:"revision"`
	Category       string   `xml:"category"`
	ContentStatus  string   `xml:"contentStatus"`
	Created        string   `xml:"created"`
	Modified       string   `xml:"modified"`
}
