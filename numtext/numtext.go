// Package numtext converts float64 values to and from the decimal text used
// for numbers inside spreadsheet parts.
//
// Output follows the spreadsheet application's own serialization: at most 15
// significant figures, no trailing zeros, '.' as the decimal separator, no
// digit grouping, and exponential notation only outside the range the
// application writes in fixed notation. The conversion works on the raw
// digit sequence produced by strconv and never consults the host locale.
package numtext

import (
	"bytes"
	"math"
	"strconv"
	"strings"

	"github.com/tsawler/sheetkit/xlerr"
)

// Precision is the number of significant figures the application keeps.
const Precision = 15

// Decimal exponents in [minFixedExp, maxFixedExp] are written in fixed
// notation, everything else as d.ddde±XX.
const (
	minFixedExp = -4
	maxFixedExp = Precision - 1
)

// Codec formats and parses numbers with a configurable decimal separator.
// The zero value uses '.'.
type Codec struct {
	// DecimalSeparator replaces '.' in output and is accepted in its place
	// on input. Empty means ".".
	DecimalSeparator string
}

// Default is the codec used for package content.
var Default = Codec{}

// Format renders v with the default codec.
func Format(v float64) (string, error) {
	return Default.Format(v)
}

// Parse reads s with the default codec.
func Parse(s string) (float64, error) {
	return Default.Parse(s)
}

func (c Codec) separator() string {
	if c.DecimalSeparator == "" {
		return "."
	}
	return c.DecimalSeparator
}

// Format renders v as text.
func (c Codec) Format(v float64) (string, error) {
	b, err := c.AppendFormat(make([]byte, 0, 24), v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// AppendFormat appends the text form of v to dst.
func (c Codec) AppendFormat(dst []byte, v float64) ([]byte, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return dst, xlerr.Valuef("format number", "%v is not representable", v)
	}
	if v == 0 {
		return append(dst, '0'), nil
	}

	digits, exp := decompose(v)
	if v < 0 {
		dst = append(dst, '-')
	}
	sep := c.separator()

	if exp < minFixedExp || exp > maxFixedExp {
		dst = append(dst, digits[0])
		if len(digits) > 1 {
			dst = append(dst, sep...)
			dst = append(dst, digits[1:]...)
		}
		dst = append(dst, 'e')
		if exp < 0 {
			dst = append(dst, '-')
			exp = -exp
		} else {
			dst = append(dst, '+')
		}
		if exp < 10 {
			dst = append(dst, '0')
		}
		return strconv.AppendInt(dst, int64(exp), 10), nil
	}

	if exp < 0 {
		dst = append(dst, '0')
		dst = append(dst, sep...)
		for i := -1; i > exp; i-- {
			dst = append(dst, '0')
		}
		return append(dst, digits...), nil
	}

	intLen := exp + 1
	if len(digits) <= intLen {
		dst = append(dst, digits...)
		for i := len(digits); i < intLen; i++ {
			dst = append(dst, '0')
		}
		return dst, nil
	}
	dst = append(dst, digits[:intLen]...)
	dst = append(dst, sep...)
	return append(dst, digits[intLen:]...), nil
}

// decompose rounds |v| to Precision significant digits and returns the
// digit string without trailing zeros and the decimal exponent of the first
// digit.
func decompose(v float64) ([]byte, int) {
	var buf [32]byte
	s := strconv.AppendFloat(buf[:0], math.Abs(v), 'e', Precision-1, 64)

	// s is d.dddddddddddddde±XX[X]
	e := bytes.IndexByte(s, 'e')
	exp, _ := strconv.Atoi(string(s[e+1:]))

	digits := make([]byte, 0, Precision)
	digits = append(digits, s[0])
	digits = append(digits, s[2:e]...)
	end := len(digits)
	for end > 1 && digits[end-1] == '0' {
		end--
	}
	return digits[:end], exp
}

// Parse reads a number in the codec's grammar:
//
//	[+-]? (digits [sep digits?] | sep digits) ([eE] [+-]? digits)?
//
// Surrounding ASCII whitespace is ignored.
func (c Codec) Parse(s string) (float64, error) {
	text := strings.Trim(s, " \t\r\n")
	sep := c.separator()

	var b strings.Builder
	b.Grow(len(text))
	i := 0
	if i < len(text) && (text[i] == '+' || text[i] == '-') {
		b.WriteByte(text[i])
		i++
	}

	intDigits := 0
	for i < len(text) && isDigit(text[i]) {
		b.WriteByte(text[i])
		i++
		intDigits++
	}

	fracDigits := 0
	if strings.HasPrefix(text[i:], sep) {
		b.WriteByte('.')
		i += len(sep)
		for i < len(text) && isDigit(text[i]) {
			b.WriteByte(text[i])
			i++
			fracDigits++
		}
	}
	if intDigits == 0 && fracDigits == 0 {
		return 0, syntaxError(s)
	}

	if i < len(text) && (text[i] == 'e' || text[i] == 'E') {
		b.WriteByte('e')
		i++
		if i < len(text) && (text[i] == '+' || text[i] == '-') {
			b.WriteByte(text[i])
			i++
		}
		expDigits := 0
		for i < len(text) && isDigit(text[i]) {
			b.WriteByte(text[i])
			i++
			expDigits++
		}
		if expDigits == 0 {
			return 0, syntaxError(s)
		}
	}
	if i != len(text) {
		return 0, syntaxError(s)
	}

	v, err := strconv.ParseFloat(b.String(), 64)
	if err != nil {
		return 0, xlerr.Valuef("parse number", "%q is out of range", s)
	}
	return v, nil
}

func syntaxError(s string) error {
	return xlerr.Valuef("parse number", "%q is not a number", s)
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}
