package xlsx

import (
	"strings"
)

// ExportOptions selects what Text and Markdown render.
type ExportOptions struct {
	// Sheets limits the output to the named sheets, in the given order.
	// Empty means every worksheet in tab order.
	Sheets []string

	// IncludeHeaders writes a "=== name ===" line before each sheet in
	// Text output.
	IncludeHeaders bool

	// Delimiter separates cells in Text output. Default is a tab.
	Delimiter string
}

// grid is the rectangular display text of a sheet's used area.
type grid struct {
	name string
	rows [][]string
}

func (wb *Workbook) exportSheets(opts ExportOptions) ([]*Worksheet, error) {
	if len(opts.Sheets) == 0 {
		var out []*Worksheet
		for _, e := range wb.sheets {
			if e.ws != nil {
				out = append(out, e.ws)
			}
		}
		return out, nil
	}
	out := make([]*Worksheet, 0, len(opts.Sheets))
	for _, name := range opts.Sheets {
		ws, err := wb.Worksheet(name)
		if err != nil {
			return nil, err
		}
		out = append(out, ws)
	}
	return out, nil
}

// grid renders the bounding box of the cells that display something.
// Cells hidden under a merge are left blank.
func (ws *Worksheet) grid() grid {
	g := grid{name: ws.Name()}
	var bounds Range
	found := false
	text := make(map[Coord]string)
	for at, c := range ws.Cells() {
		s := displayText(c)
		if s == "" {
			continue
		}
		if m, ok := ws.mergeAt(at); ok && m.Min != at {
			continue
		}
		text[at] = s
		if !found {
			bounds = Range{Min: at, Max: at}
			found = true
			continue
		}
		bounds.Min.Row = min(bounds.Min.Row, at.Row)
		bounds.Min.Col = min(bounds.Min.Col, at.Col)
		bounds.Max.Row = max(bounds.Max.Row, at.Row)
		bounds.Max.Col = max(bounds.Max.Col, at.Col)
	}
	if !found {
		return g
	}
	for r := bounds.Min.Row; r <= bounds.Max.Row; r++ {
		row := make([]string, 0, bounds.Max.Col-bounds.Min.Col+1)
		for c := bounds.Min.Col; c <= bounds.Max.Col; c++ {
			row = append(row, text[Coord{Row: r, Col: c}])
		}
		g.rows = append(g.rows, row)
	}
	return g
}

// Text returns the display text of the workbook's worksheets, one line per
// row and one delimiter between cells.
func (wb *Workbook) Text(opts ExportOptions) (string, error) {
	sheets, err := wb.exportSheets(opts)
	if err != nil {
		return "", err
	}
	delimiter := opts.Delimiter
	if delimiter == "" {
		delimiter = "\t"
	}

	var result strings.Builder
	for i, ws := range sheets {
		if i > 0 {
			result.WriteString("\n\n")
		}
		g := ws.grid()
		if opts.IncludeHeaders {
			result.WriteString("=== ")
			result.WriteString(g.name)
			result.WriteString(" ===\n")
		}
		for r, row := range g.rows {
			if r > 0 {
				result.WriteString("\n")
			}
			result.WriteString(strings.Join(row, delimiter))
		}
	}
	return result.String(), nil
}

// Markdown returns the worksheets as Markdown tables, each under a level
// two heading. The first used row becomes the table header.
func (wb *Workbook) Markdown(opts ExportOptions) (string, error) {
	sheets, err := wb.exportSheets(opts)
	if err != nil {
		return "", err
	}

	var result strings.Builder
	for i, ws := range sheets {
		if i > 0 {
			result.WriteString("\n\n")
		}
		g := ws.grid()
		result.WriteString("## ")
		result.WriteString(g.name)
		result.WriteString("\n\n")
		if len(g.rows) == 0 {
			continue
		}

		writeMarkdownRow(&result, g.rows[0])
		result.WriteString("|")
		for range g.rows[0] {
			result.WriteString("---|")
		}
		result.WriteString("\n")
		for _, row := range g.rows[1:] {
			writeMarkdownRow(&result, row)
		}
	}
	return strings.TrimSpace(result.String()), nil
}

func writeMarkdownRow(b *strings.Builder, row []string) {
	b.WriteString("|")
	for _, s := range row {
		b.WriteString(" ")
		b.WriteString(escapeMarkdown(s))
		b.WriteString(" |")
	}
	b.WriteString("\n")
}

// escapeMarkdown escapes special markdown characters in table cells.
func escapeMarkdown(s string) string {
	s = strings.ReplaceAll(s, "|", "\\|")
	s = strings.ReplaceAll(s, "\n", " ")
	return s
}
