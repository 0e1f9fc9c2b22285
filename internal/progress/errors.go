package progress

import (
	"errors"
	"fmt"
)

// Error kinds. Callers test for them with errors.Is.
var (
	ErrNotFound            = errors.New("not found")
	ErrInvalidInput        = errors.New("invalid input")
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
	ErrConcurrencyConflict = errors.New("concurrency conflict")
)

// Error attaches an error kind and the failing operation to an underlying cause.
type Error struct {
	Kind error
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %v", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %v: %v", e.Op, e.Kind, e.Err)
}

// Unwrap exposes both the kind and the cause so errors.Is matches either.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// NotFound reports an unknown child, challenge or completion.
func NotFound(op, format string, args ...interface{}) error {
	return &Error{Kind: ErrNotFound, Op: op, Err: fmt.Errorf(format, args...)}
}

// InvalidInput reports input rejected before any mutation.
func InvalidInput(op, format string, args ...interface{}) error {
	return &Error{Kind: ErrInvalidInput, Op: op, Err: fmt.Errorf(format, args...)}
}

// Upstream classifies a collaborator failure as retryable, unless it already
// carries a kind.
func Upstream(op string, err error) error {
	if err == nil {
		return nil
	}
	if Classified(err) {
		return err
	}
	return &Error{Kind: ErrUpstreamUnavailable, Op: op, Err: err}
}

// Classified reports whether err already carries one of the error kinds.
func Classified(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrUpstreamUnavailable) ||
		errors.Is(err, ErrConcurrencyConflict)
}
