package agent

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a failed gateway call.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	// KindTransport covers network failures, non-2xx statuses and exhausted retries.
	KindTransport
	// KindMalformed means the response was expected to be JSON and could not be parsed.
	KindMalformed
	// KindShape means the JSON parsed but did not have an accepted shape.
	KindShape
	// KindEmpty means the provider answered with no usable content.
	KindEmpty
)

func (k ErrorKind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindMalformed:
		return "malformed"
	case KindShape:
		return "shape"
	case KindEmpty:
		return "empty"
	default:
		return "unknown"
	}
}

// ErrInvalidOutput matches any malformed or wrongly shaped model output via errors.Is.
var ErrInvalidOutput = errors.New("invalid llm output")

// Error is the failure half of every gateway result.
type Error struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s failure", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s failure: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	return target == ErrInvalidOutput && (e.Kind == KindMalformed || e.Kind == KindShape)
}

// KindOf returns the kind of the first *Error in err's chain, or KindUnknown.
func KindOf(err error) ErrorKind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return KindUnknown
}

func newError(kind ErrorKind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// statusError is returned for non-2xx provider responses.
type statusError struct {
	Code int
	Body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("API error (status %d): %s", e.Code, e.Body)
}
