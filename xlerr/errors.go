// Package xlerr defines the error taxonomy shared by the sheetkit packages.
//
// Every error returned by the engine can be classified with errors.Is against
// one of the four kind sentinels:
//
//   - [ErrIO]: the container could not be read or written.
//   - [ErrFormat]: malformed ZIP or XML structure; aborts a load.
//   - [ErrIntegrity]: dangling relationship, out-of-bounds table index,
//     overlapping merge and similar model corruption.
//   - [ErrValue]: a local, recoverable problem with a single value, such as
//     text that is not a number.
package xlerr

import (
	"errors"
	"fmt"
)

// Kind classifies an [Error].
type Kind int

const (
	// KindIO indicates an unreadable or unwritable container.
	KindIO Kind = iota + 1
	// KindFormat indicates malformed ZIP or XML structure.
	KindFormat
	// KindIntegrity indicates an inconsistent document model.
	KindIntegrity
	// KindValue indicates an invalid individual value.
	KindValue
)

// Kind sentinels. Use errors.Is(err, xlerr.ErrIntegrity) and friends.
var (
	ErrIO        = errors.New("i/o error")
	ErrFormat    = errors.New("format error")
	ErrIntegrity = errors.New("integrity error")
	ErrValue     = errors.New("value error")
)

// String returns the name of the kind.
func (k Kind) String() string {
	switch k {
	case KindIO:
		return "io"
	case KindFormat:
		return "format"
	case KindIntegrity:
		return "integrity"
	case KindValue:
		return "value"
	default:
		return "unknown"
	}
}

func (k Kind) sentinel() error {
	switch k {
	case KindIO:
		return ErrIO
	case KindFormat:
		return ErrFormat
	case KindIntegrity:
		return ErrIntegrity
	case KindValue:
		return ErrValue
	default:
		return nil
	}
}

// Error is a classified error raised by the engine.
type Error struct {
	Kind Kind
	Op   string // operation, e.g. "open", "save", "parse"
	Part string // package part name, if the error concerns one
	Err  error
}

func (e *Error) Error() string {
	msg := e.Kind.String() + " error"
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Part != "" {
		msg += fmt.Sprintf(" in %s", e.Part)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is the sentinel for e's kind.
func (e *Error) Is(target error) bool {
	s := e.Kind.sentinel()
	return s != nil && target == s
}

// IO wraps err as an I/O error.
func IO(op, part string, err error) error {
	return &Error{Kind: KindIO, Op: op, Part: part, Err: err}
}

// Format wraps err as a format error.
func Format(op, part string, err error) error {
	return &Error{Kind: KindFormat, Op: op, Part: part, Err: err}
}

// Integrityf returns an integrity error with a formatted message.
func Integrityf(op, part, format string, args ...any) error {
	return &Error{Kind: KindIntegrity, Op: op, Part: part, Err: fmt.Errorf(format, args...)}
}

// Valuef returns a value error with a formatted message.
func Valuef(op, format string, args ...any) error {
	return &Error{Kind: KindValue, Op: op, Err: fmt.Errorf(format, args...)}
}

// KindOf returns the kind of the first *Error in err's chain, or 0.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}
