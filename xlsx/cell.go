package xlsx

import (
	"encoding/xml"
	"math"

	"github.com/tsawler/sheetkit/numtext"
	"github.com/tsawler/sheetkit/xlerr"
)

// CellType represents the type of data in a cell.
type CellType int

const (
	// CellTypeEmpty indicates an empty cell.
	CellTypeEmpty CellType = iota
	// CellTypeNumber indicates a numeric value.
	CellTypeNumber
	// CellTypeSharedString indicates an index into the shared string table.
	CellTypeSharedString
	// CellTypeInlineString indicates a string stored in the cell itself.
	CellTypeInlineString
	// CellTypeBoolean indicates a boolean value.
	CellTypeBoolean
	// CellTypeError indicates an error literal such as #DIV/0!.
	CellTypeError
	// CellTypeFormula indicates a formula with an optional cached result.
	CellTypeFormula
)

// String returns the string representation of the cell type.
func (t CellType) String() string {
	switch t {
	case CellTypeEmpty:
		return "empty"
	case CellTypeNumber:
		return "number"
	case CellTypeSharedString:
		return "shared string"
	case CellTypeInlineString:
		return "inline string"
	case CellTypeBoolean:
		return "boolean"
	case CellTypeError:
		return "error"
	case CellTypeFormula:
		return "formula"
	default:
		return "unknown"
	}
}

// FormulaKind is the t attribute of a formula.
type FormulaKind int

const (
	FormulaNormal FormulaKind = iota
	FormulaShared
	FormulaArray
	FormulaDataTable
)

func (k FormulaKind) attr() string {
	switch k {
	case FormulaShared:
		return "shared"
	case FormulaArray:
		return "array"
	case FormulaDataTable:
		return "dataTable"
	default:
		return ""
	}
}

func formulaKind(attr string) FormulaKind {
	switch attr {
	case "shared":
		return FormulaShared
	case "array":
		return FormulaArray
	case "dataTable":
		return FormulaDataTable
	default:
		return FormulaNormal
	}
}

// Formula is the formula of a cell.
type Formula struct {
	Text  string // without the leading "="; empty for shared group members
	Kind  FormulaKind
	Group int    // shared formula group (si); meaningful for FormulaShared
	Ref   string // range of an array formula or a shared formula anchor

	// Result is the cached value as written in the file and ResultType its
	// cell type attribute: "" for numbers, "str", "b" or "e".
	Result     string
	ResultType string

	attrs []xml.Attr
}

func (f *Formula) clone() *Formula {
	if f == nil {
		return nil
	}
	c := *f
	c.attrs = append([]xml.Attr(nil), f.attrs...)
	return &c
}

// Cell is the content of one grid position.
type Cell struct {
	Type       CellType
	Number     float64
	Text       string // string value, error literal or, for shared strings, the resolved text
	Bool       bool
	SST        int // shared string index
	Formula    *Formula
	StyleIndex int

	rich  []byte     // inner XML of a rich inline string
	attrs []xml.Attr // unmodeled <c> attributes
}

// IsEmpty reports whether the cell holds no value.
func (c Cell) IsEmpty() bool {
	return c.Type == CellTypeEmpty
}

// elidable reports whether the cell is equivalent to an absent one.
func (c *Cell) elidable() bool {
	return c.Type == CellTypeEmpty && c.StyleIndex == 0 && len(c.attrs) == 0
}

func (c *Cell) clone() Cell {
	out := *c
	out.Formula = c.Formula.clone()
	return out
}

// errorLiterals are the error values a cell may hold.
var errorLiterals = map[string]bool{
	"#NULL!":        true,
	"#DIV/0!":       true,
	"#VALUE!":       true,
	"#REF!":         true,
	"#NAME?":        true,
	"#NUM!":         true,
	"#N/A":          true,
	"#GETTING_DATA": true,
	"#SPILL!":       true,
	"#CALC!":        true,
	"#FIELD!":       true,
	"#BLOCKED!":     true,
	"#CONNECT!":     true,
	"#BUSY!":        true,
	"#UNKNOWN!":     true,
	"#EXTERNAL!":    true,
	"#PYTHON!":      true,
}

// Value is a value to store in a cell. Build one with Number, String,
// InlineString, Bool, ErrorCode, FormulaValue or Empty.
type Value struct {
	kind CellType
	num  float64
	text string
	b    bool
	err  error
}

// Number returns a numeric value. NaN and infinities are rejected when the
// value is stored.
func Number(v float64) Value {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return Value{err: xlerr.Valuef("set cell", "%v is not a finite number", v)}
	}
	return Value{kind: CellTypeNumber, num: v}
}

// String returns a string value kept in the shared string table.
func String(s string) Value {
	return Value{kind: CellTypeSharedString, text: s}
}

// InlineString returns a string value stored in the cell.
func InlineString(s string) Value {
	return Value{kind: CellTypeInlineString, text: s}
}

// Bool returns a boolean value.
func Bool(b bool) Value {
	return Value{kind: CellTypeBoolean, b: b}
}

// ErrorCode returns an error literal such as "#N/A".
func ErrorCode(code string) Value {
	if !errorLiterals[code] {
		return Value{err: xlerr.Valuef("set cell", "%q is not an error literal", code)}
	}
	return Value{kind: CellTypeError, text: code}
}

// FormulaValue returns a formula. A leading "=" is dropped.
func FormulaValue(text string) Value {
	if len(text) > 0 && text[0] == '=' {
		text = text[1:]
	}
	if text == "" {
		return Value{err: xlerr.Valuef("set cell", "empty formula")}
	}
	return Value{kind: CellTypeFormula, text: text}
}

// Empty returns the empty value. Storing it clears the cell but keeps its
// style.
func Empty() Value {
	return Value{kind: CellTypeEmpty}
}

// Type returns the cell type the value produces.
func (v Value) Type() CellType {
	return v.kind
}

// displayText renders the value of c the way it reads in a cell.
func displayText(c Cell) string {
	switch c.Type {
	case CellTypeNumber:
		s, err := numtext.Format(c.Number)
		if err != nil {
			return ""
		}
		return s
	case CellTypeSharedString, CellTypeInlineString, CellTypeError:
		return c.Text
	case CellTypeBoolean:
		return boolText(c.Bool)
	case CellTypeFormula:
		if c.Formula == nil {
			return ""
		}
		if c.Formula.ResultType == "b" {
			return boolText(c.Formula.Result == "1" || c.Formula.Result == "true")
		}
		return c.Formula.Result
	default:
		return ""
	}
}

func boolText(b bool) string {
	if b {
		return "TRUE"
	}
	return "FALSE"
}
