package bridgeerr

import (
	"errors"
	"fmt"
	"strings"
)

// Kind categorizes the error.
type Kind string

const (
	KindConnection  Kind = "connection"
	KindMarshal     Kind = "marshal"
	KindCookFailure Kind = "cook_failure"
	KindTranslation Kind = "translation"
	KindCancelled   Kind = "cancelled"
)

// Sentinels for errors.Is matching by kind.
var (
	ErrConnection  = &Error{Kind: KindConnection}
	ErrMarshal     = &Error{Kind: KindMarshal}
	ErrCookFailure = &Error{Kind: KindCookFailure}
	ErrTranslation = &Error{Kind: KindTranslation}
	ErrCancelled   = &Error{Kind: KindCancelled}
)

// Error is the structured error type used throughout the bridge.
type Error struct {
	Kind     Kind
	Op       string
	Instance string
	Param    string
	Detail   string
	Cause    error
	// Fatal marks errors that invalidate the whole session rather than a
	// single cook.
	Fatal bool
}

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Kind))
	b.WriteByte(']')

	if e.Op != "" {
		b.WriteByte(' ')
		b.WriteString(e.Op)
	}
	if e.Instance != "" {
		b.WriteString(" instance=")
		b.WriteString(e.Instance)
	}
	if e.Param != "" {
		b.WriteString(" param=")
		b.WriteString(e.Param)
	}
	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}
	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an *Error of the same kind. A target with an
// Op set also has to match the operation.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Kind != e.Kind {
		return false
	}
	return t.Op == "" || t.Op == e.Op
}

// KindOf returns the kind of the first *Error in err's chain, or "" if there
// is none.
func KindOf(err error) Kind {
	var be *Error
	if errors.As(err, &be) {
		return be.Kind
	}
	return ""
}

// IsFatal reports whether err carries a fatal bridge error.
func IsFatal(err error) bool {
	var be *Error
	if errors.As(err, &be) {
		return be.Fatal
	}
	return false
}

// Builder provides structured error construction.
type Builder struct {
	err Error
}

// New creates a new error builder.
func New(kind Kind) *Builder {
	return &Builder{err: Error{Kind: kind}}
}

// Op sets the operation that failed.
func (b *Builder) Op(op string) *Builder {
	b.err.Op = op
	return b
}

// Instance sets the asset instance the error belongs to.
func (b *Builder) Instance(id string) *Builder {
	b.err.Instance = id
	return b
}

// Param sets the parameter name.
func (b *Builder) Param(name string) *Builder {
	b.err.Param = name
	return b
}

// Cause sets the underlying error.
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Fatal marks the error as session-wide.
func (b *Builder) Fatal() *Builder {
	b.err.Fatal = true
	return b
}

// Detail sets the human-readable detail message.
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error.
func (b *Builder) Build() *Error {
	e := b.err
	return &e
}

// Cancelled creates a cancellation error for an instance.
func Cancelled(instance, detail string) *Error {
	return &Error{Kind: KindCancelled, Instance: instance, Detail: detail}
}

// Connection creates a connection error wrapping cause.
func Connection(op string, cause error) *Error {
	return &Error{Kind: KindConnection, Op: op, Cause: cause}
}
