package sheetkit

import "strings"

// Warning is a non-fatal issue found while extracting.
type Warning struct {
	Sheet   string
	Message string
}

func (w Warning) String() string {
	if w.Sheet == "" {
		return w.Message
	}
	return w.Sheet + ": " + w.Message
}

// FormatWarnings joins warnings into one line each.
func FormatWarnings(warnings []Warning) string {
	lines := make([]string, len(warnings))
	for i, w := range warnings {
		lines[i] = w.String()
	}
	return strings.Join(lines, "\n")
}
