package search

import (
	"errors"
	"fmt"

	"safekids-search/internal/llm"
	"safekids-search/internal/query"
	"safekids-search/internal/store"
)

// Kind classifies a failure so the orchestrator can decide between retry,
// fallback and surfacing.
type Kind string

const (
	KindTimeout     Kind = "timeout"     // model attempt hit its deadline
	KindUpstream    Kind = "upstream"    // model endpoint unreachable or unreadable
	KindStatus      Kind = "status"      // model endpoint answered non-2xx
	KindMalformed   Kind = "malformed"   // model answer is not JSON
	KindInvalid     Kind = "invalid"     // model answer violates the query contract
	KindStore       Kind = "store"       // datastore query failed
	KindUnavailable Kind = "unavailable" // AI path and fallback both failed
)

// Error is a classified search failure.
type Error struct {
	Kind Kind
	Op   string
	// Err is the cause. For KindUnavailable it is the first AI-path error.
	Err error
	// Fallback is the fallback failure, set only for KindUnavailable.
	Fallback error
}

func (e *Error) Error() string {
	if e.Fallback != nil {
		return fmt.Sprintf("search %s (%s): %v; fallback: %v", e.Op, e.Kind, e.Err, e.Fallback)
	}
	return fmt.Sprintf("search %s (%s): %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() []error {
	out := make([]error, 0, 2)
	if e.Err != nil {
		out = append(out, e.Err)
	}
	if e.Fallback != nil {
		out = append(out, e.Fallback)
	}
	return out
}

// IsUnavailable reports whether err means no result could be produced at all.
func IsUnavailable(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == KindUnavailable
}

// classify wraps err in an *Error, keeping an existing classification.
func classify(op string, err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}

	var (
		se *llm.StatusError
		ve *query.ValidationError
	)
	kind := KindUpstream
	switch {
	case errors.Is(err, llm.ErrTimeout):
		kind = KindTimeout
	case errors.As(err, &se):
		kind = KindStatus
	case errors.Is(err, query.ErrMalformed):
		kind = KindMalformed
	case errors.As(err, &ve):
		kind = KindInvalid
	case errors.Is(err, store.ErrUnavailable):
		kind = KindStore
	}
	return &Error{Kind: kind, Op: op, Err: err}
}
