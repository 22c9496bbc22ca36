package directory

import "errors"

// ErrNoMatch is returned when the directory has no entry for the query.
// It is terminal: retrying the same lookup will not produce a match.
var ErrNoMatch = errors.New("no directory match")

// TransientError wraps failures worth retrying: network errors, rate
// limiting, server errors, and malformed responses.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string {
	return "transient lookup error: " + e.Err.Error()
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// NewTransientError creates a new transient lookup error
func NewTransientError(err error) error {
	return &TransientError{Err: err}
}

// IsTransient reports whether err should be retried
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}
