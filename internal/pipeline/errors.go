package pipeline

import (
	"errors"
)

// Failure kinds. Callers classify with errors.Is and pick a user-facing
// message; the wrapped cause stays available for logs.
var (
	// ErrRemote is a network or platform API failure.
	ErrRemote = errors.New("remote communication failed")
	// ErrDecode is an unsupported or corrupt image payload.
	ErrDecode = errors.New("image decode failed")
	// ErrNoMedia means the event was expected to carry media but did not.
	ErrNoMedia = errors.New("no media found")
	// ErrLocal is a temp-storage allocation or IO failure.
	ErrLocal = errors.New("local resource failure")
)

// wrap ties a step failure to its kind so both errors.Is(err, kind) and
// errors.Is(err, cause) hold.
func wrap(kind error, op string, cause error) error {
	return &stepError{kind: kind, op: op, cause: cause}
}

type stepError struct {
	kind  error
	op    string
	cause error
}

func (e *stepError) Error() string {
	if e.cause == nil {
		return e.op + ": " + e.kind.Error()
	}
	return e.op + ": " + e.cause.Error()
}

func (e *stepError) Unwrap() []error {
	if e.cause == nil {
		return []error{e.kind}
	}
	return []error{e.kind, e.cause}
}
