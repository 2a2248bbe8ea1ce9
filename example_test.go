package sheetkit_test

import (
	"fmt"
	"log"

	"github.com/tsawler/sheetkit"
	"github.com/tsawler/sheetkit/xlsx"
)

// These examples show the README code samples. Those reading files are
// compiled but not run.

func Example_extractText() {
	text, warnings, err := sheetkit.Open("report.xlsx").Text()
	if err != nil {
		log.Fatal(err)
	}

	fmt.Println(text)

	for _, w := range warnings {
		fmt.Println("Warning:", w.Message)
	}
}

func Example_extractWithOptions() {
	text, warnings, err := sheetkit.Open("report.xlsx").
		Sheets("Summary", "Q3"). // Specific sheets, in this order
		IncludeHeaders().        // "=== name ===" before each sheet
		Delimiter(",").
		Text()
	_ = text
	_ = warnings
	_ = err
}

func Example_extractMarkdown() {
	markdown, warnings, err := sheetkit.Open("report.xlsx").ToMarkdown()
	_ = markdown
	_ = warnings
	_ = err
}

func Example_buildWorkbook() {
	wb := xlsx.New()
	ws, err := wb.Worksheet("Sheet1")
	if err != nil {
		log.Fatal(err)
	}
	_ = ws.Set("A1", xlsx.String("Total"))
	_ = ws.Set("B1", xlsx.Number(1234.5))
	_ = ws.Set("B2", xlsx.FormulaValue("B1*2"))

	bold, err := wb.Styles().Style(xlsx.Style{Font: &xlsx.Font{Bold: true, Size: 11, Name: "Calibri"}})
	if err != nil {
		log.Fatal(err)
	}
	_ = ws.SetStyle("A1", bold)

	fmt.Println(sheetkit.MustText(sheetkit.FromWorkbook(wb).Delimiter(" ").Text()))
	// Output:
	// Total 1234.5
}
