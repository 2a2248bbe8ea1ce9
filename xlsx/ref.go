package xlsx

import (
	"strconv"
	"strings"

	"github.com/tsawler/sheetkit/xlerr"
)

// Grid limits of a worksheet.
const (
	MaxRows    = 1048576
	MaxColumns = 16384
)

// Coord is a 1-based cell coordinate.
type Coord struct {
	Row int
	Col int
}

// String returns the A1-style reference.
func (c Coord) String() string {
	return CellRef(c.Row, c.Col)
}

func (c Coord) valid() bool {
	return c.Row >= 1 && c.Row <= MaxRows && c.Col >= 1 && c.Col <= MaxColumns
}

// Range is an inclusive rectangle of cells.
type Range struct {
	Min Coord
	Max Coord
}

// String returns the reference, collapsing single cells to "A1".
func (r Range) String() string {
	if r.Min == r.Max {
		return r.Min.String()
	}
	return r.Min.String() + ":" + r.Max.String()
}

// Contains reports whether c lies inside r.
func (r Range) Contains(c Coord) bool {
	return c.Row >= r.Min.Row && c.Row <= r.Max.Row && c.Col >= r.Min.Col && c.Col <= r.Max.Col
}

// Overlaps reports whether r and o share at least one cell.
func (r Range) Overlaps(o Range) bool {
	return r.Min.Row <= o.Max.Row && o.Min.Row <= r.Max.Row &&
		r.Min.Col <= o.Max.Col && o.Min.Col <= r.Max.Col
}

// Cells returns the number of cells in r.
func (r Range) Cells() int {
	return (r.Max.Row - r.Min.Row + 1) * (r.Max.Col - r.Min.Col + 1)
}

// ParseCoord parses a reference like "A1", "$B$7" or "xfd1048576".
func ParseCoord(ref string) (Coord, error) {
	col, row, err := splitRef(ref)
	if err != nil {
		return Coord{}, err
	}
	c := Coord{Row: row, Col: col}
	if !c.valid() {
		return Coord{}, xlerr.Valuef("parse reference", "%q is outside the grid", ref)
	}
	return c, nil
}

// ParseRange parses "A1:D10" or a single cell reference. The corners may
// be given in any order.
func ParseRange(ref string) (Range, error) {
	first, second, found := strings.Cut(ref, ":")
	a, err := ParseCoord(first)
	if err != nil {
		return Range{}, err
	}
	if !found {
		return Range{Min: a, Max: a}, nil
	}
	b, err := ParseCoord(second)
	if err != nil {
		return Range{}, err
	}
	return Range{
		Min: Coord{Row: min(a.Row, b.Row), Col: min(a.Col, b.Col)},
		Max: Coord{Row: max(a.Row, b.Row), Col: max(a.Col, b.Col)},
	}, nil
}

// splitRef separates the column letters from the row number, ignoring
// absolute markers.
func splitRef(ref string) (col, row int, err error) {
	if ref == "" {
		return 0, 0, xlerr.Valuef("parse reference", "empty cell reference")
	}
	s := strings.TrimPrefix(ref, "$")

	i := 0
	for i < len(s) && isLetter(s[i]) {
		i++
	}
	if i == 0 {
		return 0, 0, xlerr.Valuef("parse reference", "invalid cell reference %q: no column letters", ref)
	}
	letters := s[:i]
	digits := strings.TrimPrefix(s[i:], "$")
	if digits == "" {
		return 0, 0, xlerr.Valuef("parse reference", "invalid cell reference %q: no row number", ref)
	}

	col, err = ColumnNumber(letters)
	if err != nil {
		return 0, 0, err
	}
	for j := 0; j < len(digits); j++ {
		if digits[j] < '0' || digits[j] > '9' {
			return 0, 0, xlerr.Valuef("parse reference", "invalid row in %q", ref)
		}
	}
	row, err = strconv.Atoi(digits)
	if err != nil || row < 1 {
		return 0, 0, xlerr.Valuef("parse reference", "invalid row in %q", ref)
	}
	return col, row, nil
}

// ColumnNumber converts column letters to a 1-based column number.
// A=1, B=2, ..., Z=26, AA=27.
func ColumnNumber(letters string) (int, error) {
	if letters == "" || len(letters) > 3 {
		return 0, xlerr.Valuef("parse column", "invalid column %q", letters)
	}
	n := 0
	for i := 0; i < len(letters); i++ {
		c := letters[i]
		if c >= 'a' && c <= 'z' {
			c -= 'a' - 'A'
		}
		if c < 'A' || c > 'Z' {
			return 0, xlerr.Valuef("parse column", "invalid column %q", letters)
		}
		n = n*26 + int(c-'A') + 1
	}
	if n > MaxColumns {
		return 0, xlerr.Valuef("parse column", "column %q is outside the grid", letters)
	}
	return n, nil
}

// ColumnName converts a 1-based column number to letters. It returns ""
// for numbers below 1.
func ColumnName(n int) string {
	if n < 1 {
		return ""
	}
	var buf [8]byte
	i := len(buf)
	for n > 0 {
		n--
		i--
		buf[i] = byte('A' + n%26)
		n /= 26
	}
	return string(buf[i:])
}

// CellRef creates a reference string from 1-based row and column numbers.
func CellRef(row, col int) string {
	return ColumnName(col) + strconv.Itoa(row)
}

func isLetter(c byte) bool {
	return (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z')
}
