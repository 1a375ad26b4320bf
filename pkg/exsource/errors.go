package exsource

import (
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
)

// Code classifies a connector failure.
type Code int

const (
	// CodeInternal is anything unanticipated. It always wraps the underlying fault.
	CodeInternal Code = iota
	// CodeTransport is a download failure: DNS, connection, timeout or non-success status.
	CodeTransport
	// CodeFileOpen is a missing archive entry or an unparseable document.
	CodeFileOpen
	// CodeNotFound is a schema or table absent at resolution time.
	CodeNotFound
	// CodeRead is a row or cell extraction failure other than a type conflict.
	CodeRead
	// CodeTypeMismatch is well-formed cell content not coercible to the requested type.
	CodeTypeMismatch
)

func (c Code) String() string {
	switch c {
	case CodeTransport:
		return "transport error"
	case CodeFileOpen:
		return "file open error"
	case CodeNotFound:
		return "not found"
	case CodeRead:
		return "read error"
	case CodeTypeMismatch:
		return "type mismatch"
	default:
		return "internal error"
	}
}

// Sentinels for errors.Is. Any *Error matches the sentinel of its Code.
var (
	ErrInternal     = &Error{Code: CodeInternal}
	ErrTransport    = &Error{Code: CodeTransport}
	ErrFileOpen     = &Error{Code: CodeFileOpen}
	ErrNotFound     = &Error{Code: CodeNotFound}
	ErrRead         = &Error{Code: CodeRead}
	ErrTypeMismatch = &Error{Code: CodeTypeMismatch}
)

// Error is the error type surfaced by every connector component.
// Context fields are filled in as the error crosses component boundaries;
// empty fields are omitted from the message.
type Error struct {
	Code    Code
	Message string

	URL    string
	Schema string
	Table  string
	Sheet  string
	Column string
	// Ordinal is the zero-based column position, -1 when unknown.
	Ordinal int
	// Row is the 1-based physical row number, 0 when unknown.
	Row  int
	Cell string
	Type string
	// Value is a best-effort rendering of the offending cell.
	Value string

	Err error
}

// NewError creates an Error with the given code and message.
func NewError(code Code, err error, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Ordinal: -1,
		Err:     err,
	}
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Code.String())
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}

	var ctx []string
	add := func(key, val string) {
		if val != "" {
			ctx = append(ctx, key+"="+val)
		}
	}
	add("url", e.URL)
	add("schema", e.Schema)
	add("table", e.Table)
	if e.Sheet != e.Table {
		add("sheet", e.Sheet)
	}
	add("column", e.Column)
	if e.Ordinal >= 0 && e.Column != "" {
		add("index", fmt.Sprint(e.Ordinal))
	}
	add("cell", e.Cell)
	if e.Row > 0 {
		add("row", fmt.Sprint(e.Row))
	}
	add("type", e.Type)
	if e.Value != "" {
		add("value", fmt.Sprintf("%q", e.Value))
	}
	if len(ctx) > 0 {
		b.WriteString(" [")
		b.WriteString(strings.Join(ctx, " "))
		b.WriteString("]")
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is a sentinel (or any *Error) with the same code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// Context carries the request identity attached to errors.
type Context struct {
	URL    string
	Schema string
	Table  string
}

// WithContext fills empty identity fields on err. Non-*Error values are
// wrapped as CodeInternal first, so every error leaving a component is typed.
func WithContext(err error, c Context) error {
	if err == nil {
		return nil
	}
	var e *Error
	if !errors.As(err, &e) || isSentinel(e) {
		e = NewError(CodeOf(err), err, "unexpected failure")
		err = e
	}
	if e.URL == "" {
		e.URL = c.URL
	}
	if e.Schema == "" {
		e.Schema = c.Schema
	}
	if e.Table == "" {
		e.Table = c.Table
	}
	return err
}

func isSentinel(e *Error) bool {
	switch e {
	case ErrInternal, ErrTransport, ErrFileOpen, ErrNotFound, ErrRead, ErrTypeMismatch:
		return true
	}
	return false
}

// CodeOf returns the Code of err, CodeInternal for untyped errors.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}
