package apperr

import "errors"

// Error kinds shared by every domain package. Domain sentinels wrap one of
// these so handlers can map them to HTTP statuses with errors.Is.
var (
	ErrInvalidInput      = errors.New("invalid input")
	ErrCapacityExceeded  = errors.New("capacity exceeded")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrNotFound          = errors.New("not found")
)

// Error is a domain error tagged with one of the kinds above.
type Error struct {
	kind error
	msg  string
}

func New(kind error, msg string) *Error {
	return &Error{kind: kind, msg: msg}
}

func (e *Error) Error() string { return e.msg }

func (e *Error) Unwrap() error { return e.kind }

// Kind returns the kind err belongs to, or nil for unclassified errors.
func Kind(err error) error {
	for _, k := range []error{ErrInvalidInput, ErrCapacityExceeded, ErrInvalidTransition, ErrNotFound} {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}
