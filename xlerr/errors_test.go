package xlerr

import (
	"errors"
	"fmt"
	"io"
	"testing"
)

func TestErrorIs(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
		not  []error
	}{
		{"io", IO("open", "", io.ErrUnexpectedEOF), ErrIO, []error{ErrFormat, ErrIntegrity, ErrValue}},
		{"format", Format("open", "xl/workbook.xml", io.EOF), ErrFormat, []error{ErrIO, ErrIntegrity}},
		{"integrity", Integrityf("open", "xl/worksheets/sheet1.xml", "missing relationship %q", "rId9"), ErrIntegrity, []error{ErrValue}},
		{"value", Valuef("parse", "not a number: %q", "abc"), ErrValue, []error{ErrIO}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !errors.Is(tt.err, tt.want) {
				t.Errorf("errors.Is(%v, %v) = false", tt.err, tt.want)
			}
			for _, n := range tt.not {
				if errors.Is(tt.err, n) {
					t.Errorf("errors.Is(%v, %v) = true", tt.err, n)
				}
			}
		})
	}
}

func TestErrorWrapped(t *testing.T) {
	base := Integrityf("open", "xl/_rels/workbook.xml.rels", "dangling target")
	wrapped := fmt.Errorf("loading sheet: %w", base)

	if !errors.Is(wrapped, ErrIntegrity) {
		t.Error("wrapped error lost its kind")
	}
	if got := KindOf(wrapped); got != KindIntegrity {
		t.Errorf("KindOf() = %v, want %v", got, KindIntegrity)
	}
	if got := KindOf(io.EOF); got != 0 {
		t.Errorf("KindOf(io.EOF) = %v, want 0", got)
	}
}

func TestErrorUnwrap(t *testing.T) {
	err := IO("save", "out.xlsx", io.ErrShortWrite)
	if !errors.Is(err, io.ErrShortWrite) {
		t.Error("cause not reachable through Unwrap")
	}
}

func TestErrorMessage(t *testing.T) {
	err := Format("open", "xl/styles.xml", errors.New("unexpected EOF"))
	want := "open: format error in xl/styles.xml: unexpected EOF"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestKind_String(t *testing.T) {
	tests := []struct {
		kind Kind
		want string
	}{
		{KindIO, "io"},
		{KindFormat, "format"},
		{KindIntegrity, "integrity"},
		{KindValue, "value"},
		{Kind(42), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.kind.String(); got != tt.want {
			t.Errorf("Kind(%d).String() = %q, want %q", tt.kind, got, tt.want)
		}
	}
}
