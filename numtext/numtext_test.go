package numtext

import (
	"errors"
	"math"
	"math/rand"
	"strconv"
	"strings"
	"testing"

	"github.com/tsawler/sheetkit/xlerr"
)

func TestFormat(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{0, "0"},
		{math.Copysign(0, -1), "0"},
		{1, "1"},
		{-1, "-1"},
		{1234.56, "1234.56"},
		{0.1, "0.1"},
		{0.1 + 0.2, "0.3"},
		{100, "100"},
		{1e14, "100000000000000"},
		{123456789012345, "123456789012345"},
		{1e15, "1e+15"},
		{1234567890123456789, "1.23456789012346e+18"},
		{0.0001, "0.0001"},
		{0.00012345, "0.00012345"},
		{0.00001, "1e-05"},
		{1.5e-10, "1.5e-10"},
		{-2.5e-7, "-2.5e-07"},
		{1e100, "1e+100"},
		{1.7976931348623157e308, "1.79769313486232e+308"},
		{5e-324, "4.94065645841247e-324"},
		{3.141592653589793, "3.14159265358979"},
		{2.0 / 3.0, "0.666666666666667"},
		{999999999999999.9, "1e+15"},
		{-1234.5, "-1234.5"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			got, err := Format(tt.in)
			if err != nil {
				t.Fatalf("Format(%v) unexpected error: %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("Format(%v) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestFormat_NonFinite(t *testing.T) {
	for _, v := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		_, err := Format(v)
		if !errors.Is(err, xlerr.ErrValue) {
			t.Errorf("Format(%v) error = %v, want value error", v, err)
		}
	}
}

// The output must match the renderer's %.15g layout in the C locale.
func TestFormat_MatchesFifteenDigitG(t *testing.T) {
	r := rand.New(rand.NewSource(42))
	for i := 0; i < 20000; i++ {
		v := (r.Float64()*2 - 1) * math.Pow(10, float64(r.Intn(40)-20))
		got, err := Format(v)
		if err != nil {
			t.Fatalf("Format(%v) unexpected error: %v", v, err)
		}
		want := strconv.FormatFloat(v, 'g', Precision, 64)
		if want == "-0" {
			want = "0"
		}
		if got != want {
			t.Fatalf("Format(%v) = %q, want %q", v, got, want)
		}
	}
}

func TestRoundTrip(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	for i := 0; i < 50000; i++ {
		exp := r.Float64()*30 - 15
		v := math.Pow(10, exp)
		if r.Intn(2) == 0 {
			v = -v
		}

		text, err := Format(v)
		if err != nil {
			t.Fatalf("Format(%v) unexpected error: %v", v, err)
		}
		back, err := Parse(text)
		if err != nil {
			t.Fatalf("Parse(%q) unexpected error: %v", text, err)
		}

		want := strconv.FormatFloat(v, 'e', Precision-1, 64)
		got := strconv.FormatFloat(back, 'e', Precision-1, 64)
		if got != want {
			t.Fatalf("round trip of %v via %q = %v; 15 significant figures differ (%s vs %s)", v, text, back, got, want)
		}
	}
}

func TestRoundTrip_ShortValuesExact(t *testing.T) {
	for _, v := range []float64{0.1, 0.2, 0.3, 1234.56, 1e-15, 1e15, 42, -7.25, 6.02214076e23} {
		text, err := Format(v)
		if err != nil {
			t.Fatal(err)
		}
		back, err := Parse(text)
		if err != nil {
			t.Fatal(err)
		}
		if back != v {
			t.Errorf("Parse(Format(%v)) = %v via %q", v, back, text)
		}
	}
}

func TestFormat_LocaleIndependent(t *testing.T) {
	r := rand.New(rand.NewSource(1))
	for i := 0; i < 10000; i++ {
		v := (r.Float64() - 0.5) * 2e6
		text, err := Format(v)
		if err != nil {
			t.Fatal(err)
		}
		if strings.ContainsRune(text, ',') {
			t.Fatalf("Format(%v) = %q contains a comma", v, text)
		}
	}
}

func TestParse(t *testing.T) {
	tests := []struct {
		in      string
		want    float64
		wantErr bool
	}{
		{"0", 0, false},
		{"1234.56", 1234.56, false},
		{"-0.5", -0.5, false},
		{"+3", 3, false},
		{".5", 0.5, false},
		{"5.", 5, false},
		{"1e+15", 1e15, false},
		{"1E-05", 1e-5, false},
		{"2.5e3", 2500, false},
		{" 42\n", 42, false},
		{"", 0, true},
		{"-", 0, true},
		{".", 0, true},
		{"abc", 0, true},
		{"1,5", 0, true},
		{"1 000", 0, true},
		{"1e", 0, true},
		{"1e+", 0, true},
		{"0x1p-2", 0, true},
		{"Inf", 0, true},
		{"NaN", 0, true},
		{"1_000", 0, true},
		{"1e400", 0, true},
		{"-1e400", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := Parse(tt.in)
			if tt.wantErr {
				if !errors.Is(err, xlerr.ErrValue) {
					t.Errorf("Parse(%q) error = %v, want value error", tt.in, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Parse(%q) unexpected error: %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("Parse(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestCodec_DecimalSeparator(t *testing.T) {
	c := Codec{DecimalSeparator: ","}

	got, err := c.Format(1234.56)
	if err != nil {
		t.Fatal(err)
	}
	if got != "1234,56" {
		t.Errorf("Format = %q, want %q", got, "1234,56")
	}

	got, err = c.Format(1.5e20)
	if err != nil {
		t.Fatal(err)
	}
	if got != "1,5e+20" {
		t.Errorf("Format = %q, want %q", got, "1,5e+20")
	}

	v, err := c.Parse("0,25")
	if err != nil {
		t.Fatal(err)
	}
	if v != 0.25 {
		t.Errorf("Parse = %v, want 0.25", v)
	}

	if _, err := c.Parse("0.25"); err == nil {
		t.Error("Parse(\"0.25\") with ',' separator should fail")
	}

	// The default codec is unaffected by the override.
	if _, err := Parse("0,25"); err == nil {
		t.Error("default Parse accepted a comma")
	}
}

func TestAppendFormat(t *testing.T) {
	dst := []byte("v=")
	dst, err := Default.AppendFormat(dst, 0.25)
	if err != nil {
		t.Fatal(err)
	}
	if string(dst) != "v=0.25" {
		t.Errorf("AppendFormat = %q", dst)
	}
}
