package sheetkit

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/tsawler/sheetkit/xlerr"
	"github.com/tsawler/sheetkit/xlsx"
)

// testWorkbookPath writes a small workbook with a visible sheet, a hidden
// sheet and a second visible sheet, and returns its path.
func testWorkbookPath(t *testing.T) string {
	t.Helper()
	wb := xlsx.New()
	set := func(sheet, ref string, v xlsx.Value) {
		t.Helper()
		if err := wb.SetCellValue(sheet, ref, v); err != nil {
			t.Fatalf("SetCellValue(%s!%s): %v", sheet, ref, err)
		}
	}
	set("Sheet1", "A1", xlsx.String("Item"))
	set("Sheet1", "B1", xlsx.String("Price"))
	set("Sheet1", "A2", xlsx.String("Widget"))
	set("Sheet1", "B2", xlsx.Number(9.99))

	for _, name := range []string{"Secret", "Totals"} {
		if _, err := wb.AddSheet(name); err != nil {
			t.Fatal(err)
		}
	}
	set("Secret", "A1", xlsx.String("classified"))
	set("Totals", "A1", xlsx.Number(1e20))
	if err := wb.SetVisibility("Secret", xlsx.Hidden); err != nil {
		t.Fatal(err)
	}

	path := filepath.Join(t.TempDir(), "book.xlsx")
	if err := wb.SaveFile(path); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestOpen(t *testing.T) {
	// Test with non-existent file
	_, _, err := Open("nonexistent.xlsx").Text()
	if err == nil {
		t.Fatal("expected error for non-existent file")
	}
	if !errors.Is(err, xlerr.ErrIO) {
		t.Errorf("expected an IO error, got %v", err)
	}
}

func TestOpen_UnsupportedFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.xlsx")
	if err := os.WriteFile(path, []byte("just some text"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, _, err := Open(path).Text()
	if !errors.Is(err, xlerr.ErrFormat) {
		t.Errorf("expected a format error, got %v", err)
	}
}

func TestBasicTextExtraction(t *testing.T) {
	path := testWorkbookPath(t)

	text, warnings, err := Open(path).Text()
	if err != nil {
		t.Fatalf("failed to extract text: %v", err)
	}
	want := "Item\tPrice\nWidget\t9.99\n\n1e+20"
	if text != want {
		t.Errorf("text = %q, want %q", text, want)
	}
	if len(warnings) != 1 || warnings[0].Sheet != "Secret" {
		t.Errorf("warnings = %v, want one for the hidden sheet", warnings)
	}
	if strings.Contains(text, "classified") {
		t.Error("hidden sheet content leaked")
	}
}

func TestSheetSelection(t *testing.T) {
	path := testWorkbookPath(t)

	text, _, err := Open(path).Sheets("Totals").Sheets("Sheet1").IncludeHeaders().Delimiter(",").Text()
	if err != nil {
		t.Fatal(err)
	}
	want := "=== Totals ===\n1e+20\n\n=== Sheet1 ===\nItem,Price\nWidget,9.99"
	if text != want {
		t.Errorf("text = %q, want %q", text, want)
	}

	hidden, _, err := Open(path).Sheets("Secret").Text()
	if err != nil {
		t.Fatal(err)
	}
	if hidden != "classified" {
		t.Errorf("selected hidden sheet = %q", hidden)
	}

	_, _, err = Open(path).Sheets("Nope").Text()
	if !errors.Is(err, xlsx.ErrSheetNotFound) {
		t.Errorf("expected ErrSheetNotFound, got %v", err)
	}
}

func TestIncludeHidden(t *testing.T) {
	path := testWorkbookPath(t)
	text, warnings, err := Open(path).IncludeHidden().Text()
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(text, "classified") {
		t.Error("hidden sheet missing")
	}
	if len(warnings) != 0 {
		t.Errorf("unexpected warnings: %v", warnings)
	}
}

func TestToMarkdown(t *testing.T) {
	path := testWorkbookPath(t)
	md, _, err := Open(path).Sheets("Sheet1").ToMarkdown()
	if err != nil {
		t.Fatal(err)
	}
	want := "## Sheet1\n\n| Item | Price |\n|---|---|\n| Widget | 9.99 |"
	if md != want {
		t.Errorf("markdown = %q, want %q", md, want)
	}
}

func TestImmutability(t *testing.T) {
	path := testWorkbookPath(t)
	base := Open(path)
	withHeaders := base.IncludeHeaders()
	only := base.Sheets("Totals")

	if base.options.includeHeaders {
		t.Error("IncludeHeaders modified the original extractor")
	}
	if len(base.options.sheets) != 0 {
		t.Error("Sheets modified the original extractor")
	}
	if !withHeaders.options.includeHeaders || len(only.options.sheets) != 1 {
		t.Error("configuration not applied to the new extractor")
	}

	a := only.Sheets("Sheet1")
	b := only.Sheets("Secret")
	if a.options.sheets[1] != "Sheet1" || b.options.sheets[1] != "Secret" {
		t.Error("chained extractors share their sheet list")
	}
}

func TestEmptyDelimiter(t *testing.T) {
	_, _, err := Open("whatever.xlsx").Delimiter("").Text()
	if !errors.Is(err, xlerr.ErrValue) {
		t.Errorf("expected a value error, got %v", err)
	}
}

func TestSheetNamesAndCells(t *testing.T) {
	path := testWorkbookPath(t)
	ext := Open(path)
	names, err := ext.SheetNames()
	if err != nil {
		t.Fatal(err)
	}
	if strings.Join(names, ",") != "Sheet1,Secret,Totals" {
		t.Errorf("names = %v", names)
	}
	if n, _ := ext.SheetCount(); n != 3 {
		t.Errorf("SheetCount = %d", n)
	}
	if v, err := ext.CellText("Sheet1", "B2"); err != nil || v != "9.99" {
		t.Errorf("CellText = %q, %v", v, err)
	}
}

func TestFromWorkbook(t *testing.T) {
	wb := xlsx.New()
	if err := wb.SetCellValue("Sheet1", "B2", xlsx.Bool(true)); err != nil {
		t.Fatal(err)
	}
	text := MustText(FromWorkbook(wb).Text())
	if text != "TRUE" {
		t.Errorf("text = %q", text)
	}
	got, err := FromWorkbook(wb).Workbook()
	if err != nil || got != wb {
		t.Errorf("Workbook() = %p, %v; want %p", got, err, wb)
	}
}

func TestWarningsDoNotAccumulate(t *testing.T) {
	wb, err := xlsx.OpenFile(testWorkbookPath(t))
	if err != nil {
		t.Fatal(err)
	}
	ex := FromWorkbook(wb)
	for i := 0; i < 3; i++ {
		_, warnings, err := ex.Text()
		if err != nil {
			t.Fatalf("call %d: %v", i, err)
		}
		if len(warnings) != 1 || warnings[0].Sheet != "Secret" {
			t.Errorf("call %d: warnings = %v, want one for the hidden sheet", i, warnings)
		}
	}
	_, warnings, err := ex.ToMarkdown()
	if err != nil {
		t.Fatal(err)
	}
	if len(warnings) != 1 {
		t.Errorf("ToMarkdown warnings = %v, want one", warnings)
	}
}

func TestMust(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("Must did not panic on error")
		}
	}()
	Must(Open("nonexistent.xlsx").SheetNames())
}

func TestFormatWarnings(t *testing.T) {
	got := FormatWarnings([]Warning{
		{Sheet: "Chart1", Message: "not a worksheet, skipped"},
		{Message: "general"},
	})
	want := "Chart1: not a worksheet, skipped\ngeneral"
	if got != want {
		t.Errorf("FormatWarnings = %q, want %q", got, want)
	}
}
