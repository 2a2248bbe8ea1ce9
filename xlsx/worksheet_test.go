package xlsx

import (
	"errors"
	"fmt"
	"maps"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/tsawler/sheetkit/xlerr"
)

func newSheet(t *testing.T) (*Workbook, *Worksheet) {
	t.Helper()
	wb := New()
	ws, err := wb.Worksheet("Sheet1")
	if err != nil {
		t.Fatal(err)
	}
	return wb, ws
}

func TestWorksheet_SetAndGet(t *testing.T) {
	_, ws := newSheet(t)

	tests := []struct {
		ref  string
		v    Value
		typ  CellType
		text string
	}{
		{"A1", Number(3.5), CellTypeNumber, "3.5"},
		{"B1", String("hello"), CellTypeSharedString, "hello"},
		{"C1", InlineString("inline"), CellTypeInlineString, "inline"},
		{"D1", Bool(true), CellTypeBoolean, "TRUE"},
		{"E1", ErrorCode("#REF!"), CellTypeError, "#REF!"},
		{"F1", FormulaValue("=A1*2"), CellTypeFormula, ""},
	}
	for _, tt := range tests {
		t.Run(tt.ref, func(t *testing.T) {
			if err := ws.Set(tt.ref, tt.v); err != nil {
				t.Fatalf("Set: %v", err)
			}
			c, err := ws.Cell(tt.ref)
			if err != nil {
				t.Fatal(err)
			}
			if c.Type != tt.typ {
				t.Errorf("Type = %v, want %v", c.Type, tt.typ)
			}
			if got, _ := ws.Value(tt.ref); got != tt.text {
				t.Errorf("Value = %q, want %q", got, tt.text)
			}
		})
	}
	if f, _ := ws.FormulaAt("F1"); f != "A1*2" {
		t.Errorf("FormulaAt(F1) = %q", f)
	}
}

func TestWorksheet_InvalidValues(t *testing.T) {
	_, ws := newSheet(t)
	for _, v := range []Value{Number(math.NaN()), Number(math.Inf(1)), ErrorCode("#OOPS"), FormulaValue("=")} {
		wantKind(t, ws.Set("A1", v), xlerr.KindValue)
	}
	wantKind(t, ws.Set("ZZZZ1", Number(1)), xlerr.KindValue)
	wantKind(t, ws.SetAt(0, 1, Number(1)), xlerr.KindValue)
	wantKind(t, ws.SetNumberText("A1", "1,5"), xlerr.KindValue)
	if err := ws.SetNumberText("A1", " 2.5E2 "); err != nil {
		t.Fatal(err)
	}
	if c := ws.CellAt(1, 1); c.Number != 250 {
		t.Errorf("A1 = %v", c.Number)
	}
}

func TestWorksheet_EmptyKeepsStyle(t *testing.T) {
	wb, ws := newSheet(t)
	style, err := wb.Styles().Style(Style{NumFmt: "0.000"})
	if err != nil {
		t.Fatal(err)
	}
	_ = ws.Set("A1", Number(1))
	if err := ws.SetStyle("A1", style); err != nil {
		t.Fatal(err)
	}
	_ = ws.Set("A1", Number(2))
	if c, _ := ws.Cell("A1"); c.StyleIndex != style {
		t.Errorf("style lost on overwrite: %d", c.StyleIndex)
	}
	_ = ws.Set("A1", Empty())
	c, _ := ws.Cell("A1")
	if !c.IsEmpty() || c.StyleIndex != style {
		t.Errorf("A1 = %+v", c)
	}
	if _, ok := ws.Dimension(); !ok {
		t.Error("styled empty cell was dropped")
	}

	_ = ws.Set("B2", Number(1))
	_ = ws.Set("B2", Empty())
	if r, _ := ws.Dimension(); r.String() != "A1" {
		t.Errorf("Dimension() = %s, want A1", r)
	}
}

func TestWorksheet_DimensionAndIteration(t *testing.T) {
	_, ws := newSheet(t)
	if _, ok := ws.Dimension(); ok {
		t.Error("empty sheet has a dimension")
	}
	_ = ws.Set("C5", Number(1))
	_ = ws.Set("B2", Number(2))
	_ = ws.Set("E3", Number(3))
	r, ok := ws.Dimension()
	if !ok || r.String() != "B2:E5" {
		t.Errorf("Dimension() = %s, %v", r, ok)
	}

	var refs []string
	for at := range ws.Cells() {
		refs = append(refs, at.String())
	}
	if got := strings.Join(refs, ","); got != "B2,E3,C5" {
		t.Errorf("Cells() order = %s", got)
	}

	_ = ws.SetRow(9, RowProps{Hidden: true})
	rows := ws.Rows()
	if len(rows) != 4 || rows[3] != 9 {
		t.Errorf("Rows() = %v", rows)
	}
}

func TestWorksheet_Merge(t *testing.T) {
	_, ws := newSheet(t)
	_ = ws.Set("A1", String("keep"))
	_ = ws.Set("B1", String("drop"))
	_ = ws.Set("B2", Number(5))

	if err := ws.Merge("A1:B2"); err != nil {
		t.Fatal(err)
	}
	if v, _ := ws.Value("A1"); v != "keep" {
		t.Errorf("anchor = %q", v)
	}
	for _, ref := range []string{"B1", "B2"} {
		if c, _ := ws.Cell(ref); !c.IsEmpty() {
			t.Errorf("%s not cleared: %+v", ref, c)
		}
	}

	grid := func() map[Coord]string {
		out := make(map[Coord]string)
		for at, c := range ws.Cells() {
			out[at] = fmt.Sprintf("%+v", c)
		}
		return out
	}
	before := grid()
	wantKind(t, ws.Set("B2", Number(1)), xlerr.KindIntegrity)
	if after := grid(); !maps.Equal(before, after) {
		t.Errorf("rejected write changed the grid: %v -> %v", before, after)
	}
	if c, _ := ws.Cell("B2"); !c.IsEmpty() {
		t.Errorf("rejected write left a value in B2: %+v", c)
	}
	if v, _ := ws.Value("A1"); v != "keep" {
		t.Errorf("anchor after rejected write = %q", v)
	}
	if m := ws.MergedRanges(); len(m) != 1 || m[0].String() != "A1:B2" {
		t.Errorf("MergedRanges() after rejected write = %v", m)
	}
	if err := ws.Set("A1", Number(1)); err != nil {
		t.Errorf("writing the anchor: %v", err)
	}
	wantKind(t, ws.Merge("B2:C3"), xlerr.KindIntegrity)
	wantKind(t, ws.Merge("D4"), xlerr.KindValue)
	if err := ws.Merge("C1:D1"); err != nil {
		t.Errorf("adjacent merge: %v", err)
	}

	if err := ws.Unmerge("A1:B2"); err != nil {
		t.Fatal(err)
	}
	if err := ws.Set("B2", Number(1)); err != nil {
		t.Errorf("after unmerge: %v", err)
	}
	wantKind(t, ws.Unmerge("A1:B2"), xlerr.KindValue)
	if m := ws.MergedRanges(); len(m) != 1 || m[0].String() != "C1:D1" {
		t.Errorf("MergedRanges() = %v", m)
	}
}

func TestWorksheet_SharedFormula(t *testing.T) {
	_, ws := newSheet(t)
	group, err := ws.SetSharedFormula("C1:C3", "A1+B1")
	if err != nil {
		t.Fatal(err)
	}
	want := map[string]string{"C1": "A1+B1", "C2": "A2+B2", "C3": "A3+B3"}
	for ref, w := range want {
		if got, _ := ws.FormulaAt(ref); got != w {
			t.Errorf("FormulaAt(%s) = %q, want %q", ref, got, w)
		}
	}
	if c, _ := ws.Cell("C2"); c.Formula.Kind != FormulaShared || c.Formula.Group != group || c.Formula.Text != "" {
		t.Errorf("C2 formula = %+v", c.Formula)
	}

	next, err := ws.SetSharedFormula("D1:D2", "C1*2")
	if err != nil {
		t.Fatal(err)
	}
	if next == group {
		t.Error("groups share an id")
	}

	// Overwriting the anchor turns the members into ordinary formulas.
	_ = ws.Set("C1", Number(0))
	if got, _ := ws.FormulaAt("C3"); got != "A3+B3" {
		t.Errorf("released member = %q", got)
	}
	if c, _ := ws.Cell("C3"); c.Formula.Kind != FormulaNormal {
		t.Errorf("member still shared: %+v", c.Formula)
	}

	got := roundTrip(t, ws.wb)
	gs, _ := got.Worksheet("Sheet1")
	if f, _ := gs.FormulaAt("D2"); f != "C2*2" {
		t.Errorf("after reload D2 = %q", f)
	}
	if f, _ := gs.FormulaAt("C2"); f != "A2+B2" {
		t.Errorf("after reload C2 = %q", f)
	}
}

func TestWorksheet_SharedFormulaOverMerge(t *testing.T) {
	_, ws := newSheet(t)
	_ = ws.Merge("A2:B2")
	if _, err := ws.SetSharedFormula("B1:B3", "1"); !errors.Is(err, xlerr.ErrIntegrity) {
		t.Errorf("SetSharedFormula over covered cell = %v", err)
	}
	if _, err := ws.SetSharedFormula("A1:A3", "ROW()"); err != nil {
		t.Errorf("anchor column: %v", err)
	}
}

func TestWorksheet_SetTime(t *testing.T) {
	wb, ws := newSheet(t)
	when := time.Date(2024, time.March, 15, 12, 0, 0, 0, time.UTC)
	if err := ws.SetTime("A1", when); err != nil {
		t.Fatal(err)
	}
	c, _ := ws.Cell("A1")
	if c.Number != 45366.5 {
		t.Errorf("serial = %v", c.Number)
	}
	if !wb.Styles().IsDateFormat(c.StyleIndex) {
		t.Errorf("style %d is not a date format", c.StyleIndex)
	}

	// An existing date format is kept.
	dateStyle, _ := wb.Styles().Style(Style{NumFmt: "yyyy-mm-dd"})
	_ = ws.SetStyle("B1", dateStyle)
	_ = ws.SetTime("B1", when)
	if c, _ := ws.Cell("B1"); c.StyleIndex != dateStyle {
		t.Errorf("B1 style = %d, want %d", c.StyleIndex, dateStyle)
	}

	wantKind(t, ws.SetTime("C1", time.Date(1800, 1, 1, 0, 0, 0, 0, time.UTC)), xlerr.KindValue)
}

func TestWorksheet_RowsAndColumns(t *testing.T) {
	_, ws := newSheet(t)
	wantKind(t, ws.SetRow(0, RowProps{Height: 10}), xlerr.KindValue)
	wantKind(t, ws.SetColumn(MaxColumns+1, ColProps{Width: 10}), xlerr.KindValue)
	wantKind(t, ws.SetColumn(1, ColProps{StyleIndex: 5}), xlerr.KindIntegrity)

	for c := 2; c <= 4; c++ {
		_ = ws.SetColumn(c, ColProps{Width: 12, CustomWidth: true})
	}
	_ = ws.SetColumn(6, ColProps{Hidden: true})
	_ = ws.SetColumn(6, ColProps{})
	if ws.Column(6) != (ColProps{}) {
		t.Error("zero props did not reset column 6")
	}

	data, err := ws.render(ws.prepare(newSSTPlan(ws.wb.sst)), newSSTPlan(ws.wb.sst))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `<col min="2" max="4" width="12" customWidth="1"/>`) {
		t.Errorf("columns not coalesced:\n%s", data)
	}
}

func TestWorksheet_Hyperlinks(t *testing.T) {
	wb, ws := newSheet(t)
	if err := ws.SetHyperlink("A1", "https://example.com/docs"); err != nil {
		t.Fatal(err)
	}
	if err := ws.SetInternalLink("B2", "Sheet1!Z99"); err != nil {
		t.Fatal(err)
	}
	wantKind(t, ws.SetHyperlink("C3", "http://exa mple.com"), xlerr.KindValue)

	links, err := ws.Hyperlinks()
	if err != nil {
		t.Fatal(err)
	}
	if len(links) != 2 || links[0].URL != "https://example.com/docs" || links[1].Location != "Sheet1!Z99" {
		t.Fatalf("Hyperlinks() = %+v", links)
	}

	// Replacing a link releases its relationship.
	if err := ws.SetHyperlink("A1", "https://example.com/other"); err != nil {
		t.Fatal(err)
	}
	if n := len(wb.Package().Relationships(ws.Part())); n != 1 {
		t.Errorf("sheet has %d relationships, want 1", n)
	}

	got := roundTrip(t, wb)
	gs, _ := got.Worksheet("Sheet1")
	links, err = gs.Hyperlinks()
	if err != nil {
		t.Fatal(err)
	}
	byRef := make(map[string]Hyperlink)
	for _, l := range links {
		byRef[l.Ref] = l
	}
	if len(links) != 2 || byRef["A1"].URL != "https://example.com/other" || byRef["B2"].Location != "Sheet1!Z99" {
		t.Errorf("after reload Hyperlinks() = %+v", links)
	}

	if err := gs.RemoveHyperlink("A1"); err != nil {
		t.Fatal(err)
	}
	wantKind(t, gs.RemoveHyperlink("A1"), xlerr.KindValue)
	if n := len(got.Package().Relationships(gs.Part())); n != 0 {
		t.Errorf("relationship left behind: %d", n)
	}
}
