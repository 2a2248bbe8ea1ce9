package xlsx

import "testing"

func TestShiftFormula(t *testing.T) {
	tests := []struct {
		name       string
		formula    string
		dRow, dCol int
		want       string
	}{
		{"no offset", "A1+B2", 0, 0, "A1+B2"},
		{"cells", "A1+B2", 1, 1, "B2+C3"},
		{"range in function", "SUM(A1:A10)", 2, 0, "SUM(A3:A12)"},
		{"absolute parts fixed", "$A$1+A$1+$A1", 1, 1, "$A$1+B$1+$A2"},
		{"pushed above the grid", "A1*2", -1, 0, "#REF!*2"},
		{"pushed left of the grid", "SUM(A1:B2)", 0, -1, "SUM(#REF!)"},
		{"string literal untouched", `"A1"&A1`, 0, 1, `"A1"&B1`},
		{"sheet qualified", "Sheet2!B2*2", 1, 0, "Sheet2!B3*2"},
		{"quoted sheet", "'My Sheet'!C3+1", 0, 2, "'My Sheet'!E3+1"},
		{"whole columns", "SUM(A:A)", 0, 1, "SUM(B:B)"},
		{"defined name untouched", "Total*A1", 0, 1, "Total*B1"},
		{"function names untouched", "LOG10(A1)", 1, 0, "LOG10(A2)"},
		{"last column", "XFD1", 0, 1, "#REF!"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ShiftFormula(tt.formula, tt.dRow, tt.dCol)
			if got != tt.want {
				t.Errorf("ShiftFormula(%q, %d, %d) = %q, want %q", tt.formula, tt.dRow, tt.dCol, got, tt.want)
			}
		})
	}
}

func TestShiftRef(t *testing.T) {
	tests := []struct {
		ref    string
		want   string
		wantOK bool
	}{
		{"B2", "C4", true},
		{"B2:D5", "C4:E7", true},
		{"$B$2:D5", "$B$2:E7", true},
		{"B:C", "C:D", true},
		{"2:3", "4:5", true},
		{"Revenue", "Revenue", false},
		{"A1B", "A1B", false},
	}
	for _, tt := range tests {
		got, ok := shiftRef(tt.ref, 2, 1)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("shiftRef(%q) = %q, %v; want %q, %v", tt.ref, got, ok, tt.want, tt.wantOK)
		}
	}
}
