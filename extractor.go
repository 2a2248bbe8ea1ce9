package sheetkit

import (
	"errors"
	"fmt"
	"os"

	"github.com/tsawler/sheetkit/format"
	"github.com/tsawler/sheetkit/xlerr"
	"github.com/tsawler/sheetkit/xlsx"
)

// Extractor provides a fluent interface for reading workbook content.
// Each configuration method returns a new Extractor instance, making it
// safe for concurrent use and allowing method chaining.
type Extractor struct {
	// Source
	filename string
	format   format.Format

	wb       *xlsx.Workbook
	ownsBook bool // true if we loaded the workbook and may drop it

	// Configuration
	options ExtractOptions

	// Accumulated error (fail-fast)
	err error
}

// clone creates a shallow copy of the Extractor with a deep copy of options.
func (e *Extractor) clone() *Extractor {
	return &Extractor{
		filename: e.filename,
		format:   e.format,
		wb:       e.wb,
		ownsBook: e.ownsBook,
		options:  e.options.clone(),
		err:      e.err,
	}
}

// ensureWorkbook loads the workbook if it is not loaded yet.
func (e *Extractor) ensureWorkbook() error {
	if e.wb != nil {
		return nil
	}
	if e.filename == "" {
		return fmt.Errorf("no filename specified")
	}

	f, err := os.Open(e.filename)
	if err != nil {
		return xlerr.IO("open", e.filename, err)
	}
	defer f.Close()
	st, err := f.Stat()
	if err != nil {
		return xlerr.IO("open", e.filename, err)
	}

	e.format, err = format.DetectFromReader(f, st.Size())
	if err != nil {
		return fmt.Errorf("failed to detect format: %w", err)
	}
	if !e.format.IsWorkbook() {
		return xlerr.Format("open", e.filename, fmt.Errorf("unsupported file format: %s", e.format))
	}

	wb, err := xlsx.OpenWithOptions(f, st.Size(), e.options.workbookOptions())
	if err != nil {
		return fmt.Errorf("failed to open workbook: %w", err)
	}
	e.wb = wb
	e.ownsBook = true
	return nil
}

// Close releases the workbook if the Extractor loaded it. It is safe to
// call Close multiple times.
func (e *Extractor) Close() error {
	if e.ownsBook {
		e.wb = nil
		e.ownsBook = false
	}
	return nil
}

// ============================================================================
// Configuration Methods (return new Extractor instance)
// ============================================================================

// Sheets selects sheets by name, in the order given. Multiple calls are
// cumulative.
//
// Example:
//
//	text, _, err := sheetkit.Open("book.xlsx").Sheets("Summary").Text()
func (e *Extractor) Sheets(names ...string) *Extractor {
	newExt := e.clone()
	newExt.options.sheets = append(newExt.options.sheets, names...)
	return newExt
}

// IncludeHidden also extracts hidden and very hidden worksheets when no
// sheets are selected by name.
func (e *Extractor) IncludeHidden() *Extractor {
	newExt := e.clone()
	newExt.options.includeHidden = true
	return newExt
}

// IncludeHeaders writes a "=== name ===" line before each sheet in Text
// output.
func (e *Extractor) IncludeHeaders() *Extractor {
	newExt := e.clone()
	newExt.options.includeHeaders = true
	return newExt
}

// Delimiter sets the cell separator of Text output. An empty delimiter
// records an error returned by the terminal operation.
//
// Example:
//
//	csvish, _, err := sheetkit.Open("book.xlsx").Delimiter(",").Text()
func (e *Extractor) Delimiter(d string) *Extractor {
	newExt := e.clone()
	if d == "" {
		newExt.err = xlerr.Valuef("delimiter", "empty delimiter")
		return newExt
	}
	newExt.options.delimiter = d
	return newExt
}

// Concurrency bounds how many worksheets are parsed at once when the file
// is loaded.
func (e *Extractor) Concurrency(n int) *Extractor {
	newExt := e.clone()
	newExt.options.concurrency = n
	return newExt
}

// ============================================================================
// Terminal Operations
// ============================================================================

// Text returns the display text of the selected worksheets, one line per
// row. This is a terminal operation that releases a workbook the
// Extractor loaded.
//
// Example:
//
//	text, warnings, err := sheetkit.Open("book.xlsx").IncludeHeaders().Text()
func (e *Extractor) Text() (string, []Warning, error) {
	if e.err != nil {
		return "", nil, e.err
	}
	if err := e.ensureWorkbook(); err != nil {
		return "", nil, err
	}
	defer e.Close()

	names, warnings, err := e.resolveSheets()
	if err != nil {
		return "", warnings, err
	}
	if len(names) == 0 {
		return "", warnings, nil
	}
	text, err := e.wb.Text(xlsx.ExportOptions{
		Sheets:         names,
		IncludeHeaders: e.options.includeHeaders,
		Delimiter:      e.options.delimiter,
	})
	if err != nil {
		return "", warnings, err
	}
	return text, warnings, nil
}

// ToMarkdown returns the selected worksheets as Markdown tables. This is
// a terminal operation that releases a workbook the Extractor loaded.
func (e *Extractor) ToMarkdown() (string, []Warning, error) {
	if e.err != nil {
		return "", nil, e.err
	}
	if err := e.ensureWorkbook(); err != nil {
		return "", nil, err
	}
	defer e.Close()

	names, warnings, err := e.resolveSheets()
	if err != nil {
		return "", warnings, err
	}
	if len(names) == 0 {
		return "", warnings, nil
	}
	md, err := e.wb.Markdown(xlsx.ExportOptions{Sheets: names})
	if err != nil {
		return "", warnings, err
	}
	return md, warnings, nil
}

// SheetNames returns the names of every sheet in tab order, including
// hidden sheets and chart sheets. It does not release the workbook.
func (e *Extractor) SheetNames() ([]string, error) {
	if e.err != nil {
		return nil, e.err
	}
	if err := e.ensureWorkbook(); err != nil {
		return nil, err
	}
	infos := e.wb.Sheets()
	names := make([]string, len(infos))
	for i, s := range infos {
		names[i] = s.Name
	}
	return names, nil
}

// SheetCount returns the number of sheets in the workbook.
func (e *Extractor) SheetCount() (int, error) {
	names, err := e.SheetNames()
	return len(names), err
}

// CellText returns the display text of one cell.
//
// Example:
//
//	total, err := sheetkit.Open("book.xlsx").CellText("Summary", "B12")
func (e *Extractor) CellText(sheet, ref string) (string, error) {
	if e.err != nil {
		return "", e.err
	}
	if err := e.ensureWorkbook(); err != nil {
		return "", err
	}
	ws, err := e.wb.Worksheet(sheet)
	if err != nil {
		return "", err
	}
	return ws.Value(ref)
}

// Workbook returns the underlying workbook, loading it if needed. The
// Extractor keeps no claim on it afterwards.
func (e *Extractor) Workbook() (*xlsx.Workbook, error) {
	if e.err != nil {
		return nil, e.err
	}
	if err := e.ensureWorkbook(); err != nil {
		return nil, err
	}
	e.ownsBook = false
	return e.wb, nil
}

// resolveSheets returns the worksheet names to extract and a warning for
// every sheet that is skipped.
func (e *Extractor) resolveSheets() ([]string, []Warning, error) {
	if len(e.options.sheets) > 0 {
		for _, name := range e.options.sheets {
			if _, err := e.wb.Worksheet(name); err != nil {
				if errors.Is(err, xlsx.ErrNotWorksheet) {
					return nil, nil, fmt.Errorf("sheet %q cannot be extracted: %w", name, err)
				}
				return nil, nil, err
			}
		}
		return e.options.sheets, nil, nil
	}

	var names []string
	var warnings []Warning
	for _, s := range e.wb.Sheets() {
		switch {
		case s.Kind != xlsx.KindWorksheet:
			warnings = append(warnings, Warning{Sheet: s.Name, Message: "not a worksheet, skipped"})
		case s.Visibility != xlsx.Visible && !e.options.includeHidden:
			warnings = append(warnings, Warning{Sheet: s.Name, Message: "hidden sheet skipped"})
		default:
			names = append(names, s.Name)
		}
	}
	return names, warnings, nil
}
