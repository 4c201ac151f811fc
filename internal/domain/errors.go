package domain

import (
	"errors"
	"fmt"
)

// Kind classifies a failure for the dispatcher boundary.
type Kind int

const (
	KindInternal Kind = iota
	KindDecode
	KindSerialization
	KindParse
	KindUnknownOperation
	KindArgument
	KindRender
)

func (k Kind) String() string {
	switch k {
	case KindDecode:
		return "decode"
	case KindSerialization:
		return "serialization"
	case KindParse:
		return "parse"
	case KindUnknownOperation:
		return "unknown_operation"
	case KindArgument:
		return "argument"
	case KindRender:
		return "render"
	default:
		return "internal"
	}
}

var (
	// ErrUnknownOperation signals that the envelope names no registered operation.
	ErrUnknownOperation = errors.New("no such operation")
	// ErrMissingArgument signals that a required keyword argument was not supplied.
	ErrMissingArgument = errors.New("missing required argument")
	// ErrEnvelopeTooLarge signals that the request envelope exceeds the configured limit.
	ErrEnvelopeTooLarge = errors.New("envelope too large")
	// ErrNotPDF signals that an engine produced or received bytes without the PDF signature.
	ErrNotPDF = errors.New("not a PDF document")
	// ErrNoPages signals a PDF without any page to rasterize.
	ErrNoPages = errors.New("PDF has no pages")
	// ErrPDFTooLarge signals a rendered PDF above the configured size limit.
	ErrPDFTooLarge = errors.New("PDF exceeds allowed size")
)

// Error carries a Kind and the operation that failed.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Op == "" {
		return e.Err.Error()
	}
	return e.Op + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

// E wraps err with a kind. A nil err yields nil.
func E(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// Errorf builds a kinded error from a format string; %w verbs are honored.
func Errorf(kind Kind, op, format string, args ...any) error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

// KindOf returns the kind of the outermost *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}
