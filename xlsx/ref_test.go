package xlsx

import (
	"errors"
	"testing"

	"github.com/tsawler/sheetkit/xlerr"
)

func TestParseCoord(t *testing.T) {
	tests := []struct {
		ref     string
		wantRow int
		wantCol int
		wantErr bool
	}{
		{"A1", 1, 1, false},
		{"B1", 1, 2, false},
		{"Z1", 1, 26, false},
		{"AA1", 1, 27, false},
		{"AZ1", 1, 52, false},
		{"BA1", 1, 53, false},
		{"A10", 10, 1, false},
		{"C100", 100, 3, false},
		{"$C$100", 100, 3, false},
		{"c$100", 100, 3, false},
		{"XFD1048576", 1048576, 16384, false}, // Max cell
		{"XFE1", 0, 0, true},
		{"A1048577", 0, 0, true},
		{"", 0, 0, true},
		{"1", 0, 0, true},
		{"A", 0, 0, true},
		{"A0", 0, 0, true},
		{"A-1", 0, 0, true},
		{"A1B", 0, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.ref, func(t *testing.T) {
			c, err := ParseCoord(tt.ref)
			if tt.wantErr {
				if err == nil {
					t.Errorf("ParseCoord(%q) expected error, got %v", tt.ref, c)
				} else if !errors.Is(err, xlerr.ErrValue) {
					t.Errorf("ParseCoord(%q) error = %v, want a value error", tt.ref, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseCoord(%q) unexpected error: %v", tt.ref, err)
			}
			if c.Row != tt.wantRow || c.Col != tt.wantCol {
				t.Errorf("ParseCoord(%q) = %+v, want row %d col %d", tt.ref, c, tt.wantRow, tt.wantCol)
			}
		})
	}
}

func TestColumnNumber(t *testing.T) {
	tests := []struct {
		col  string
		want int
	}{
		{"A", 1},
		{"B", 2},
		{"Z", 26},
		{"AA", 27},
		{"AB", 28},
		{"AZ", 52},
		{"BA", 53},
		{"ZZ", 702},
		{"AAA", 703},
		{"XFD", 16384},
		{"a", 1}, // Lowercase
		{"aa", 27},
	}

	for _, tt := range tests {
		t.Run(tt.col, func(t *testing.T) {
			got, err := ColumnNumber(tt.col)
			if err != nil {
				t.Fatalf("ColumnNumber(%q) error: %v", tt.col, err)
			}
			if got != tt.want {
				t.Errorf("ColumnNumber(%q) = %d, want %d", tt.col, got, tt.want)
			}
		})
	}

	for _, bad := range []string{"", "A1", "XFE", "ABCD"} {
		if _, err := ColumnNumber(bad); err == nil {
			t.Errorf("ColumnNumber(%q) expected error", bad)
		}
	}
}

func TestColumnName(t *testing.T) {
	tests := []struct {
		n    int
		want string
	}{
		{1, "A"},
		{2, "B"},
		{26, "Z"},
		{27, "AA"},
		{28, "AB"},
		{52, "AZ"},
		{53, "BA"},
		{702, "ZZ"},
		{703, "AAA"},
		{16384, "XFD"},
		{0, ""},
		{-1, ""},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := ColumnName(tt.n); got != tt.want {
				t.Errorf("ColumnName(%d) = %q, want %q", tt.n, got, tt.want)
			}
		})
	}
}

func TestColumnRoundTrip(t *testing.T) {
	for n := 1; n <= MaxColumns; n++ {
		got, err := ColumnNumber(ColumnName(n))
		if err != nil || got != n {
			t.Fatalf("round trip of %d gave %d, %v", n, got, err)
		}
	}
}

func TestCellRef(t *testing.T) {
	tests := []struct {
		row, col int
		want     string
	}{
		{1, 1, "A1"},
		{1, 2, "B1"},
		{10, 1, "A10"},
		{100, 27, "AA100"},
	}

	for _, tt := range tests {
		if got := CellRef(tt.row, tt.col); got != tt.want {
			t.Errorf("CellRef(%d, %d) = %q, want %q", tt.row, tt.col, got, tt.want)
		}
	}
}

func TestParseRange(t *testing.T) {
	tests := []struct {
		ref     string
		want    Range
		wantErr bool
	}{
		{"A1:D10", Range{Coord{1, 1}, Coord{10, 4}}, false},
		{"B2:C3", Range{Coord{2, 2}, Coord{3, 3}}, false},
		{"D10:A1", Range{Coord{1, 1}, Coord{10, 4}}, false},
		{"B10:D1", Range{Coord{1, 2}, Coord{10, 4}}, false},
		{"$A$1:$B$2", Range{Coord{1, 1}, Coord{2, 2}}, false},
		{"C5", Range{Coord{5, 3}, Coord{5, 3}}, false},
		{"A1:", Range{}, true},
		{":B2", Range{}, true},
		{"A1:B2:C3", Range{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.ref, func(t *testing.T) {
			got, err := ParseRange(tt.ref)
			if tt.wantErr {
				if err == nil {
					t.Errorf("ParseRange(%q) expected error, got %v", tt.ref, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseRange(%q) unexpected error: %v", tt.ref, err)
			}
			if got != tt.want {
				t.Errorf("ParseRange(%q) = %+v, want %+v", tt.ref, got, tt.want)
			}
		})
	}
}

func TestRange(t *testing.T) {
	r := Range{Coord{2, 2}, Coord{4, 3}}
	if r.String() != "B2:C4" {
		t.Errorf("String() = %q", r.String())
	}
	if (Range{Coord{1, 1}, Coord{1, 1}}).String() != "A1" {
		t.Error("single cell range should render as A1")
	}
	if r.Cells() != 6 {
		t.Errorf("Cells() = %d, want 6", r.Cells())
	}
	if !r.Contains(Coord{3, 3}) || r.Contains(Coord{5, 3}) || r.Contains(Coord{2, 1}) {
		t.Error("Contains() is wrong")
	}

	overlap := []struct {
		other Range
		want  bool
	}{
		{Range{Coord{4, 3}, Coord{6, 6}}, true},
		{Range{Coord{1, 1}, Coord{2, 2}}, true},
		{Range{Coord{5, 1}, Coord{6, 6}}, false},
		{Range{Coord{1, 4}, Coord{9, 9}}, false},
		{Range{Coord{1, 1}, Coord{9, 9}}, true},
	}
	for _, tt := range overlap {
		if got := r.Overlaps(tt.other); got != tt.want {
			t.Errorf("Overlaps(%v) = %v, want %v", tt.other, got, tt.want)
		}
		if got := tt.other.Overlaps(r); got != tt.want {
			t.Errorf("Overlaps is not symmetric for %v", tt.other)
		}
	}
}
