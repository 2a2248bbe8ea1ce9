// Package sheetkit provides a fluent API for reading the contents of
// spreadsheet workbooks.
//
// Basic usage:
//
//	text, warnings, err := sheetkit.Open("report.xlsx").Text()
//	if err != nil {
//	    // handle error
//	}
//	if len(warnings) > 0 {
//	    log.Println("Warnings:", sheetkit.FormatWarnings(warnings))
//	}
//
// With options:
//
//	md, _, err := sheetkit.Open("report.xlsx").
//	    Sheets("Summary", "Q3").
//	    ToMarkdown()
//
// The xlsx package underneath reads, edits and writes workbooks; the opc
// package gives access to the raw parts and relationships.
package sheetkit

import (
	"github.com/tsawler/sheetkit/xlsx"
)

// Open returns an Extractor for the named workbook file. The file is read
// on the first terminal operation.
//
// Example:
//
//	text, warnings, err := sheetkit.Open("report.xlsx").Text()
func Open(filename string) *Extractor {
	return &Extractor{
		filename: filename,
		options:  defaultOptions(),
	}
}

// FromWorkbook creates an Extractor over an already loaded or built
// workbook.
//
// Example:
//
//	wb := xlsx.New()
//	_ = wb.SetCellValue("Sheet1", "A1", xlsx.String("hello"))
//	text, _, err := sheetkit.FromWorkbook(wb).Text()
func FromWorkbook(wb *xlsx.Workbook) *Extractor {
	return &Extractor{
		wb:      wb,
		options: defaultOptions(),
	}
}

// Must is a helper that wraps a call to a function returning (T, error)
// and panics if the error is non-nil. It is intended for use in scripts
// or tests where error handling would be cumbersome.
//
// Example:
//
//	names := sheetkit.Must(sheetkit.Open("report.xlsx").SheetNames())
func Must[T any](val T, err error) T {
	if err != nil {
		panic(err)
	}
	return val
}

// MustText is a helper that wraps a call to Text() or ToMarkdown() and
// panics if the error is non-nil. It discards warnings and returns just
// the value.
//
// Example:
//
//	text := sheetkit.MustText(sheetkit.Open("report.xlsx").Text())
func MustText[T any](val T, _ []Warning, err error) T {
	if err != nil {
		panic(err)
	}
	return val
}
