package xlsx

import (
	"encoding/xml"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/text/cases"

	"github.com/tsawler/sheetkit/internal/xmlpart"
	"github.com/tsawler/sheetkit/opc"
	"github.com/tsawler/sheetkit/xlerr"
)

// Visibility is the state of a sheet tab.
type Visibility int

const (
	Visible Visibility = iota
	Hidden
	// VeryHidden sheets can only be shown again programmatically.
	VeryHidden
)

func (v Visibility) attr() string {
	switch v {
	case Hidden:
		return "hidden"
	case VeryHidden:
		return "veryHidden"
	default:
		return ""
	}
}

func visibility(state string) Visibility {
	switch state {
	case "hidden":
		return Hidden
	case "veryHidden":
		return VeryHidden
	default:
		return Visible
	}
}

// SheetKind distinguishes worksheets from the other sheet types a
// workbook may list.
type SheetKind int

const (
	KindWorksheet SheetKind = iota
	KindChartsheet
	KindOther // dialog and macro sheets
)

// SheetInfo describes one entry of the workbook's sheet list.
type SheetInfo struct {
	Name       string
	SheetID    int
	Path       string // part name
	Visibility Visibility
	Kind       SheetKind
}

type sheetEntry struct {
	info  SheetInfo
	rid   string
	attrs []xml.Attr
	ws    *Worksheet
}

// DefinedName is a named formula or range. Scope is the name of the sheet
// the name is local to, or "" for a workbook-wide name.
type DefinedName struct {
	Name    string
	Scope   string
	Value   string
	Hidden  bool
	Comment string
}

type definedName struct {
	DefinedName
	sheet *sheetEntry
	attrs []xml.Attr
}

func (n *definedName) public() DefinedName {
	out := n.DefinedName
	out.Scope = ""
	if n.sheet != nil {
		out.Scope = n.sheet.info.Name
	}
	return out
}

// CoreProperties is the package's descriptive metadata.
type CoreProperties struct {
	Title          string
	Subject        string
	Creator        string
	Keywords       string
	Description    string
	LastModifiedBy string
	Revision       string
	Category       string
	ContentStatus  string
	Created        time.Time
	Modified       time.Time
}

// Workbook is a spreadsheet document: an ordered list of sheets sharing
// one string table and one style sheet.
//
// A Workbook is not safe for concurrent mutation. Distinct workbooks are
// independent.
type Workbook struct {
	pkg  *opc.Package
	opts Options
	log  *slog.Logger

	part  string
	doc   *xmlpart.Document
	relNS string

	sheets []*sheetEntry
	names  []*definedName

	sst     *SharedStrings
	sstPart string
	sstDoc  *xmlpart.Document

	styles     *StyleSheet
	stylesPart string

	props      CoreProperties
	propsPart  string
	propsDirty bool

	date1904 bool
}

// New returns a workbook with one empty sheet named Sheet1.
func New() *Workbook {
	wb, err := NewWithOptions(DefaultOptions())
	if err != nil {
		panic("xlsx: new workbook: " + err.Error())
	}
	return wb
}

// NewWithOptions returns a workbook with one empty sheet named Sheet1.
func NewWithOptions(opts Options) (*Workbook, error) {
	log := opts.logger()
	wb := &Workbook{
		pkg:    opc.NewWithOptions(opc.Options{Logger: log}),
		opts:   opts,
		log:    log,
		part:   "xl/workbook.xml",
		relNS:  nsRelationships,
		sst:    NewSharedStrings(),
		styles: NewStyleSheet(),
		doc: xmlpart.NewDocument("workbook",
			xmlpart.Namespace{URL: nsSpreadsheetML},
			xmlpart.Namespace{Prefix: "r", URL: nsRelationships},
		),
	}
	if err := wb.pkg.AddPart(wb.part, ctWorkbook, nil); err != nil {
		return nil, err
	}
	if _, err := wb.pkg.AddRelationship("", opc.RelTypeOfficeDocument, wb.part, opc.Internal); err != nil {
		return nil, err
	}
	if _, err := wb.AddSheet("Sheet1"); err != nil {
		return nil, err
	}
	return wb, nil
}

// Package returns the underlying package. Parts the workbook models are
// rewritten from the model on save.
func (wb *Workbook) Package() *opc.Package {
	return wb.pkg
}

// SharedStrings returns the workbook's string table.
func (wb *Workbook) SharedStrings() *SharedStrings {
	return wb.sst
}

// Styles returns the workbook's style sheet.
func (wb *Workbook) Styles() *StyleSheet {
	return wb.styles
}

// Date1904 reports whether date serials count from 1904-01-01.
func (wb *Workbook) Date1904() bool {
	return wb.date1904
}

// Sheets returns the sheet list in tab order.
func (wb *Workbook) Sheets() []SheetInfo {
	out := make([]SheetInfo, len(wb.sheets))
	for i, e := range wb.sheets {
		out[i] = e.info
	}
	return out
}

func (wb *Workbook) lookup(name string) (int, *sheetEntry) {
	fold := cases.Fold()
	key := fold.String(name)
	for i, e := range wb.sheets {
		if fold.String(e.info.Name) == key {
			return i, e
		}
	}
	return -1, nil
}

func (wb *Workbook) entry(name string) (*sheetEntry, error) {
	_, e := wb.lookup(name)
	if e == nil {
		return nil, fmt.Errorf("%w: %q", ErrSheetNotFound, name)
	}
	return e, nil
}

// Worksheet returns the worksheet with the given name, compared without
// regard to case.
func (wb *Workbook) Worksheet(name string) (*Worksheet, error) {
	e, err := wb.entry(name)
	if err != nil {
		return nil, err
	}
	if e.ws == nil {
		return nil, fmt.Errorf("%w: %q", ErrNotWorksheet, e.info.Name)
	}
	return e.ws, nil
}

// WorksheetAt returns the worksheet at tab position i.
func (wb *Workbook) WorksheetAt(i int) (*Worksheet, error) {
	if i < 0 || i >= len(wb.sheets) {
		return nil, fmt.Errorf("%w: index %d", ErrSheetNotFound, i)
	}
	e := wb.sheets[i]
	if e.ws == nil {
		return nil, fmt.Errorf("%w: %q", ErrNotWorksheet, e.info.Name)
	}
	return e.ws, nil
}

// ValidateSheetName checks the rules a sheet name must follow: 1 to 31
// characters, none of []:*?/\ and no apostrophe at either end.
func ValidateSheetName(name string) error {
	if n := utf8.RuneCountInString(name); n == 0 || n > 31 {
		return xlerr.Valuef("sheet name", "%q must be 1 to 31 characters long", name)
	}
	if strings.ContainsAny(name, `[]:*?/\`) {
		return xlerr.Valuef("sheet name", `%q contains one of []:*?/\`, name)
	}
	if strings.HasPrefix(name, "'") || strings.HasSuffix(name, "'") {
		return xlerr.Valuef("sheet name", "%q begins or ends with an apostrophe", name)
	}
	return nil
}

func (wb *Workbook) checkNewName(name string, except *sheetEntry) error {
	if err := ValidateSheetName(name); err != nil {
		return err
	}
	if _, e := wb.lookup(name); e != nil && e != except {
		return xlerr.Valuef("sheet name", "a sheet named %q already exists", e.info.Name)
	}
	return nil
}

// AddSheet appends an empty worksheet.
func (wb *Workbook) AddSheet(name string) (*Worksheet, error) {
	if err := wb.checkNewName(name, nil); err != nil {
		return nil, err
	}
	id := 0
	for _, e := range wb.sheets {
		id = max(id, e.info.SheetID)
	}

	part := wb.pkg.UniquePartName("xl/worksheets/sheet%d.xml")
	e := &sheetEntry{info: SheetInfo{Name: name, SheetID: id + 1, Path: part, Kind: KindWorksheet}}
	ws := newWorksheet(wb, e, part)
	ws.doc = newSheetDocument()
	e.ws = ws

	data, err := ws.render(nil, newSSTPlan(wb.sst))
	if err != nil {
		return nil, err
	}
	if err := wb.pkg.AddPart(part, ctWorksheet, data); err != nil {
		return nil, err
	}
	rid, err := wb.pkg.AddRelationship(wb.part, opc.RelTypeWorksheet, part, opc.Internal)
	if err != nil {
		return nil, err
	}
	e.rid = rid
	wb.sheets = append(wb.sheets, e)
	return ws, nil
}

func (wb *Workbook) visibleCount(except *sheetEntry) int {
	n := 0
	for _, e := range wb.sheets {
		if e != except && e.info.Visibility == Visible {
			n++
		}
	}
	return n
}

// RemoveSheet deletes a sheet together with the names scoped to it. The
// last visible sheet cannot be removed.
func (wb *Workbook) RemoveSheet(name string) error {
	i, e := wb.lookup(name)
	if e == nil {
		return fmt.Errorf("%w: %q", ErrSheetNotFound, name)
	}
	if wb.visibleCount(e) == 0 {
		return xlerr.Valuef("remove sheet", "%q is the last visible sheet", e.info.Name)
	}
	if err := wb.pkg.RemoveRelationship(wb.part, e.rid); err != nil {
		return err
	}
	wb.sheets = append(wb.sheets[:i], wb.sheets[i+1:]...)

	kept := wb.names[:0]
	for _, n := range wb.names {
		if n.sheet != e {
			kept = append(kept, n)
		}
	}
	wb.names = kept
	wb.shiftBookViews(i)
	wb.log.Debug("sheet removed", "sheet", e.info.Name, "part", e.info.Path)
	return nil
}

var sheetIndexAttr = regexp.MustCompile(`\b(activeTab|firstSheet)(\s*=\s*)(?:"(\d+)"|'(\d+)')`)

// shiftBookViews keeps the sheet indexes held by the preserved bookViews
// pointing at the same sheets after the sheet at removed is dropped.
func (wb *Workbook) shiftBookViews(removed int) {
	last := len(wb.sheets) - 1
	for i, c := range wb.doc.Children {
		if c.Modeled() || c.Name.Local != "bookViews" {
			continue
		}
		wb.doc.Children[i].Raw = sheetIndexAttr.ReplaceAllFunc(c.Raw, func(m []byte) []byte {
			sub := sheetIndexAttr.FindSubmatch(m)
			digits := sub[3]
			if digits == nil {
				digits = sub[4]
			}
			n, err := strconv.Atoi(string(digits))
			if err != nil {
				return m
			}
			if n > removed {
				n--
			}
			n = min(n, last)
			return []byte(string(sub[1]) + string(sub[2]) + `"` + strconv.Itoa(n) + `"`)
		})
	}
}

// RenameSheet changes a sheet's name. Formulas that mention the old name
// are not rewritten.
func (wb *Workbook) RenameSheet(oldName, newName string) error {
	e, err := wb.entry(oldName)
	if err != nil {
		return err
	}
	if err := wb.checkNewName(newName, e); err != nil {
		return err
	}
	e.info.Name = newName
	return nil
}

// SetVisibility shows or hides a sheet. At least one sheet stays visible.
func (wb *Workbook) SetVisibility(name string, v Visibility) error {
	e, err := wb.entry(name)
	if err != nil {
		return err
	}
	if v != Visible && wb.visibleCount(e) == 0 {
		return xlerr.Valuef("set visibility", "%q is the last visible sheet", e.info.Name)
	}
	e.info.Visibility = v
	return nil
}

// DefinedNames returns the workbook's defined names in file order.
func (wb *Workbook) DefinedNames() []DefinedName {
	out := make([]DefinedName, len(wb.names))
	for i, n := range wb.names {
		out[i] = n.public()
	}
	return out
}

func (wb *Workbook) findName(name string, scope *sheetEntry) int {
	for i, n := range wb.names {
		if n.sheet == scope && strings.EqualFold(n.Name, name) {
			return i
		}
	}
	return -1
}

func (wb *Workbook) scope(name string) (*sheetEntry, error) {
	if name == "" {
		return nil, nil
	}
	return wb.entry(name)
}

// SetDefinedName adds a name or replaces the one with the same name and
// scope.
func (wb *Workbook) SetDefinedName(n DefinedName) error {
	if n.Name == "" || strings.ContainsAny(n.Name, " !") {
		return xlerr.Valuef("defined name", "invalid name %q", n.Name)
	}
	n.Value = strings.TrimPrefix(n.Value, "=")
	if n.Value == "" {
		return xlerr.Valuef("defined name", "%q has no value", n.Name)
	}
	sheet, err := wb.scope(n.Scope)
	if err != nil {
		return err
	}
	dn := &definedName{DefinedName: n, sheet: sheet}
	if i := wb.findName(n.Name, sheet); i >= 0 {
		dn.attrs = wb.names[i].attrs
		wb.names[i] = dn
		return nil
	}
	wb.names = append(wb.names, dn)
	return nil
}

// RemoveDefinedName deletes a name. scope is a sheet name or "" for a
// workbook-wide name.
func (wb *Workbook) RemoveDefinedName(name, scope string) error {
	sheet, err := wb.scope(scope)
	if err != nil {
		return err
	}
	i := wb.findName(name, sheet)
	if i < 0 {
		return xlerr.Valuef("remove defined name", "no name %q in scope %q", name, scope)
	}
	wb.names = append(wb.names[:i], wb.names[i+1:]...)
	return nil
}

// Properties returns the core properties.
func (wb *Workbook) Properties() CoreProperties {
	return wb.props
}

// SetProperties replaces the core properties. They are written on the
// next save.
func (wb *Workbook) SetProperties(p CoreProperties) {
	wb.props = p
	wb.propsDirty = true
}

// GetCell returns the cell at ref on the named sheet.
func (wb *Workbook) GetCell(sheet, ref string) (Cell, error) {
	ws, err := wb.Worksheet(sheet)
	if err != nil {
		return Cell{}, err
	}
	return ws.Cell(ref)
}

// SetCellValue stores v at ref on the named sheet.
func (wb *Workbook) SetCellValue(sheet, ref string, v Value) error {
	ws, err := wb.Worksheet(sheet)
	if err != nil {
		return err
	}
	return ws.Set(ref, v)
}

// SetCellStyle sets the cell-format index of ref on the named sheet.
func (wb *Workbook) SetCellStyle(sheet, ref string, style int) error {
	ws, err := wb.Worksheet(sheet)
	if err != nil {
		return err
	}
	return ws.SetStyle(ref, style)
}

// AttachImage places an image on the named sheet and returns the drawing
// relationship id naming it.
func (wb *Workbook) AttachImage(sheet string, img []byte, anchor ImageAnchor) (string, error) {
	ws, err := wb.Worksheet(sheet)
	if err != nil {
		return "", err
	}
	return ws.AttachImage(img, anchor)
}
