package xlsx

import (
	"strings"
	"testing"

	"github.com/tsawler/sheetkit/xlerr"
)

func TestNewStyleSheet(t *testing.T) {
	s := NewStyleSheet()
	got := s.Counts()
	want := StyleCounts{Fonts: 1, Fills: 2, Borders: 1, CellFormats: 1}
	if got != want {
		t.Errorf("Counts = %+v, want %+v", got, want)
	}
	f, err := s.FontAt(0)
	if err != nil {
		t.Fatal(err)
	}
	if f.Name != "Calibri" || f.Size != 11 {
		t.Errorf("default font = %+v", f)
	}
	if fill, _ := s.FillAt(1); fill.Pattern != "gray125" {
		t.Errorf("fill 1 pattern = %q, want gray125", fill.Pattern)
	}
}

func TestStyleSheet_Dedup(t *testing.T) {
	s := NewStyleSheet()
	bold := Font{Bold: true, Size: 11, Name: "Calibri"}
	a := s.Font(bold)
	b := s.Font(bold)
	if a != b || a != 1 {
		t.Errorf("Font twice gave %d and %d, want 1 both times", a, b)
	}

	red := Fill{Pattern: "solid", FgColor: &Color{RGB: "FFFF0000"}}
	if s.Fill(red) != s.Fill(Fill{Pattern: "solid", FgColor: &Color{RGB: "FFFF0000"}}) {
		t.Error("equal fills got different indices")
	}

	thin := Border{Left: BorderEdge{Style: "thin"}}
	if s.Border(thin) != s.Border(thin) {
		t.Error("equal borders got different indices")
	}

	st := Style{Font: &bold, Fill: &red, NumFmt: "0.000"}
	x1, err := s.Style(st)
	if err != nil {
		t.Fatal(err)
	}
	x2, err := s.Style(Style{Font: &Font{Bold: true, Size: 11, Name: "Calibri"}, Fill: &red, NumFmt: "0.000"})
	if err != nil {
		t.Fatal(err)
	}
	if x1 != x2 {
		t.Errorf("equal styles got %d and %d", x1, x2)
	}
	got := s.Counts()
	want := StyleCounts{Fonts: 2, Fills: 3, Borders: 2, NumFmts: 1, CellFormats: 2}
	if got != want {
		t.Errorf("Counts = %+v, want %+v", got, want)
	}
}

func TestStyleSheet_RecordsAreCopied(t *testing.T) {
	s := NewStyleSheet()
	c := &Color{RGB: "FF00FF00"}
	i := s.Font(Font{Size: 9, Color: c})
	c.RGB = "FF000000"
	f, err := s.FontAt(i)
	if err != nil {
		t.Fatal(err)
	}
	if f.Color == nil || f.Color.RGB != "FF00FF00" {
		t.Errorf("stored font changed through caller's pointer: %+v", f.Color)
	}
	f.Color.RGB = "FFFFFFFF"
	again, _ := s.FontAt(i)
	if again.Color.RGB != "FF00FF00" {
		t.Error("FontAt returned shared state")
	}
}

func TestStyleSheet_NumberFormat(t *testing.T) {
	s := NewStyleSheet()
	tests := []struct {
		code string
		want int
	}{
		{"0.00", 2},
		{"mm-dd-yy", 14},
		{"yyyy-mm-dd", FirstCustomNumFmt},
		{"#,##0.000", FirstCustomNumFmt + 1},
		{"yyyy-mm-dd", FirstCustomNumFmt},
		{"YYYY-MM-DD", FirstCustomNumFmt + 2},
	}
	for _, tt := range tests {
		got, err := s.NumberFormat(tt.code)
		if err != nil {
			t.Fatalf("NumberFormat(%q): %v", tt.code, err)
		}
		if got != tt.want {
			t.Errorf("NumberFormat(%q) = %d, want %d", tt.code, got, tt.want)
		}
	}
	if code, ok := s.NumberFormatCode(FirstCustomNumFmt + 1); !ok || code != "#,##0.000" {
		t.Errorf("NumberFormatCode = %q, %v", code, ok)
	}
	_, err := s.NumberFormat("")
	wantKind(t, err, xlerr.KindValue)
}

func TestStyleSheet_CellFormatBounds(t *testing.T) {
	s := NewStyleSheet()
	tests := []CellFormat{
		{FontID: 3},
		{FillID: -1},
		{BorderID: 2},
		{NumFmtID: 200},
		{XfID: 4},
	}
	for _, xf := range tests {
		_, err := s.CellFormat(xf)
		wantKind(t, err, xlerr.KindIntegrity)
	}
	_, err := s.CellFormatAt(9)
	wantKind(t, err, xlerr.KindIntegrity)
}

func TestStyleSheet_IsDateFormat(t *testing.T) {
	s := NewStyleSheet()
	date, err := s.Style(Style{NumFmtID: 14})
	if err != nil {
		t.Fatal(err)
	}
	custom, err := s.Style(Style{NumFmt: "dd/mm/yyyy hh:mm"})
	if err != nil {
		t.Fatal(err)
	}
	money, err := s.Style(Style{NumFmt: `"$"#,##0.00`})
	if err != nil {
		t.Fatal(err)
	}
	if !s.IsDateFormat(date) || !s.IsDateFormat(custom) {
		t.Error("date formats not recognized")
	}
	if s.IsDateFormat(0) || s.IsDateFormat(money) || s.IsDateFormat(99) {
		t.Error("non-date format reported as date")
	}
}

func TestIsDateFormatCode(t *testing.T) {
	tests := []struct {
		code string
		want bool
	}{
		{"yyyy-mm-dd", true},
		{"h:mm:ss AM/PM", true},
		{"[h]:mm:ss", true},
		{"0.00", false},
		{"General", false},
		{`"day"0`, false},
		{"", false},
	}
	for _, tt := range tests {
		if got := IsDateFormatCode(tt.code); got != tt.want {
			t.Errorf("IsDateFormatCode(%q) = %v, want %v", tt.code, got, tt.want)
		}
	}
}

func TestStyleSheet_ParseRejectsDanglingIndex(t *testing.T) {
	data := strings.Replace(defaultStylesXML,
		`<xf numFmtId="0" fontId="0" fillId="0" borderId="0" xfId="0"/></cellXfs>`,
		`<xf numFmtId="0" fontId="7" fillId="0" borderId="0" xfId="0"/></cellXfs>`, 1)
	_, err := parseStyleSheet("xl/styles.xml", []byte(data))
	wantKind(t, err, xlerr.KindIntegrity)
}

func TestStyleSheet_RenderRoundTrip(t *testing.T) {
	s := NewStyleSheet()
	id, err := s.Style(Style{
		Font:      &Font{Italic: true, Size: 14, Name: "Arial"},
		Border:    &Border{Bottom: BorderEdge{Style: "double", Color: &Color{RGB: "FF112233"}}},
		NumFmt:    "0.0%",
		Alignment: &Alignment{Horizontal: "center", WrapText: true},
	})
	if err != nil {
		t.Fatal(err)
	}
	data, err := s.render()
	if err != nil {
		t.Fatal(err)
	}
	back, err := parseStyleSheet("xl/styles.xml", data)
	if err != nil {
		t.Fatalf("reparse: %v\n%s", err, data)
	}
	if back.Counts() != s.Counts() {
		t.Errorf("counts after reparse = %+v, want %+v", back.Counts(), s.Counts())
	}
	xf, err := back.CellFormatAt(id)
	if err != nil {
		t.Fatal(err)
	}
	if xf.Alignment == nil || xf.Alignment.Horizontal != "center" || !xf.Alignment.WrapText {
		t.Errorf("alignment lost: %+v", xf.Alignment)
	}
	if code, _ := back.NumberFormatCode(xf.NumFmtID); code != "0.0%" {
		t.Errorf("number format = %q", code)
	}
	f, _ := back.FontAt(xf.FontID)
	if !f.Italic || f.Name != "Arial" || f.Size != 14 {
		t.Errorf("font = %+v", f)
	}
	b, _ := back.BorderAt(xf.BorderID)
	if b.Bottom.Style != "double" || b.Bottom.Color == nil || b.Bottom.Color.RGB != "FF112233" {
		t.Errorf("border = %+v", b)
	}
}
