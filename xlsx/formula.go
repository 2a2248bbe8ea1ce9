package xlsx

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/xuri/efp"
)

var (
	cellPart = regexp.MustCompile(`^(\$?)([A-Za-z]{1,3})(\$?)([0-9]+)$`)
	colPart  = regexp.MustCompile(`^(\$?)([A-Za-z]{1,3})$`)
	rowPart  = regexp.MustCompile(`^(\$?)([0-9]+)$`)
)

// ShiftFormula moves the relative references in formula by dRow rows and
// dCol columns, the way a formula changes when it is copied. Absolute
// references stay put; references pushed off the grid become #REF!.
// Text literals, names and functions are left untouched.
func ShiftFormula(formula string, dRow, dCol int) string {
	if dRow == 0 && dCol == 0 {
		return formula
	}
	ps := efp.ExcelParser()
	tokens := ps.Parse(formula)

	var b strings.Builder
	cursor := 0
	for _, tok := range tokens {
		if tok.TType != efp.TokenTypeOperand || tok.TSubType != efp.TokenSubTypeRange {
			continue
		}
		ref := tok.TValue
		if i := strings.LastIndexByte(ref, '!'); i >= 0 {
			ref = ref[i+1:]
		}
		if ref == "" || strings.ContainsAny(ref, "[]") {
			continue
		}
		shifted, ok := shiftRef(ref, dRow, dCol)
		if !ok {
			continue
		}
		pos := locateRef(formula, cursor, ref)
		if pos < 0 {
			continue
		}
		b.WriteString(formula[cursor:pos])
		b.WriteString(shifted)
		cursor = pos + len(ref)
	}
	b.WriteString(formula[cursor:])
	return b.String()
}

// locateRef finds ref in formula at or after from, outside string literals,
// quoted sheet names and brackets, and not embedded in a longer word.
func locateRef(formula string, from int, ref string) int {
	for i := from; i < len(formula); i++ {
		switch formula[i] {
		case '"', '\'':
			i = skipQuoted(formula, i)
			continue
		case '[':
			if j := strings.IndexByte(formula[i:], ']'); j >= 0 {
				i += j
			}
			continue
		}
		if !strings.HasPrefix(formula[i:], ref) {
			continue
		}
		if i > 0 && isWordByte(formula[i-1]) {
			continue
		}
		if end := i + len(ref); end < len(formula) && (isWordByte(formula[end]) || formula[end] == '(') {
			continue
		}
		return i
	}
	return -1
}

// skipQuoted returns the index of the quote closing the literal opened at i.
// Doubled quotes are escapes.
func skipQuoted(s string, i int) int {
	q := s[i]
	for j := i + 1; j < len(s); j++ {
		if s[j] != q {
			continue
		}
		if j+1 < len(s) && s[j+1] == q {
			j++
			continue
		}
		return j
	}
	return len(s)
}

func isWordByte(c byte) bool {
	return isLetter(c) || (c >= '0' && c <= '9') || c == '_' || c == '.' || c == '$'
}

// shiftRef shifts a cell, range, whole-column or whole-row reference. ok
// is false when ref is not a reference (for example a defined name).
func shiftRef(ref string, dRow, dCol int) (string, bool) {
	first, second, isRange := strings.Cut(ref, ":")
	if !isRange {
		m := cellPart.FindStringSubmatch(ref)
		if m == nil {
			return ref, false
		}
		return shiftCell(m, dRow, dCol), true
	}

	if a, b := cellPart.FindStringSubmatch(first), cellPart.FindStringSubmatch(second); a != nil && b != nil {
		sa, sb := shiftCell(a, dRow, dCol), shiftCell(b, dRow, dCol)
		if sa == "#REF!" || sb == "#REF!" {
			return "#REF!", true
		}
		return sa + ":" + sb, true
	}
	if a, b := colPart.FindStringSubmatch(first), colPart.FindStringSubmatch(second); a != nil && b != nil {
		sa, okA := shiftCol(a[1], a[2], dCol)
		sb, okB := shiftCol(b[1], b[2], dCol)
		if !okA || !okB {
			return "#REF!", true
		}
		return sa + ":" + sb, true
	}
	if a, b := rowPart.FindStringSubmatch(first), rowPart.FindStringSubmatch(second); a != nil && b != nil {
		sa, okA := shiftRow(a[1], a[2], dRow)
		sb, okB := shiftRow(b[1], b[2], dRow)
		if !okA || !okB {
			return "#REF!", true
		}
		return sa + ":" + sb, true
	}
	return ref, false
}

func shiftCell(m []string, dRow, dCol int) string {
	col, okC := shiftCol(m[1], m[2], dCol)
	row, okR := shiftRow(m[3], m[4], dRow)
	if !okC || !okR {
		return "#REF!"
	}
	return col + row
}

func shiftCol(abs, letters string, d int) (string, bool) {
	if abs == "$" {
		return abs + letters, true
	}
	n, err := ColumnNumber(letters)
	if err != nil {
		return "", false
	}
	n += d
	if n < 1 || n > MaxColumns {
		return "", false
	}
	return ColumnName(n), true
}

func shiftRow(abs, digits string, d int) (string, bool) {
	if abs == "$" {
		return abs + digits, true
	}
	n, err := strconv.Atoi(digits)
	if err != nil {
		return "", false
	}
	n += d
	if n < 1 || n > MaxRows {
		return "", false
	}
	return strconv.Itoa(n), true
}
