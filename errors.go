package linkbender

import (
	"errors"
	"fmt"
)

// Kind classifies why a scrape ended in the Errored state
type Kind int

const (
	// KindInvalidInput is a missing or malformed URL or an out-of-range preference
	KindInvalidInput Kind = iota + 1
	// KindFetchFailed is a transport error or non-2xx response from the target site
	KindFetchFailed
	// KindAnnotationFailed is a transport or provider error from the annotation client
	KindAnnotationFailed
	// KindMalformedAnnotation is annotation output that is not a JSON object
	KindMalformedAnnotation
	// KindStoreFailure is a read or write error from the scrape store or tag ledger
	KindStoreFailure
)

func (k Kind) String() string {
	switch k {
	case KindInvalidInput:
		return "invalid_input"
	case KindFetchFailed:
		return "fetch_failed"
	case KindAnnotationFailed:
		return "annotation_failed"
	case KindMalformedAnnotation:
		return "malformed_annotation"
	case KindStoreFailure:
		return "store_failure"
	default:
		return "unknown"
	}
}

// Error is returned by the orchestrator for every failed scrape
type Error struct {
	Kind  Kind
	State State // state the pipeline was in when it failed
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s in state %s: %v", e.Kind, e.State, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the Kind carried by err, or 0 if err is not an *Error
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

// IsKind reports whether err is an *Error of the given kind
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

func fail(kind Kind, state State, err error) *Error {
	return &Error{Kind: kind, State: state, Err: err}
}
