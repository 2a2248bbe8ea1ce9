package xlsx

import "errors"

var (
	// ErrSheetNotFound is returned when no sheet has the requested name or
	// position.
	ErrSheetNotFound = errors.New("xlsx: sheet not found")

	// ErrNotWorksheet is returned when a sheet exists but is a chart sheet
	// or another kind without a cell grid.
	ErrNotWorksheet = errors.New("xlsx: sheet is not a worksheet")
)
