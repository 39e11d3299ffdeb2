package standup

import (
	"errors"
	"fmt"
)

// Error kinds. Use errors.Is to test an error returned by any standupscot component against them
var (
	// ErrStoreUnavailable is the kind of any persistence read or write failure
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrPlatformUnavailable is the kind of any chat platform failure, including platform-reported api errors
	ErrPlatformUnavailable = errors.New("platform unavailable")

	// ErrNotFound is the kind of a failure to find a requested user, channel or record
	ErrNotFound = errors.New("not found")

	// ErrNoContent signals that a formatting operation received an empty input and that the caller
	// must substitute a placeholder message
	ErrNoContent = errors.New("no content")
)

// Error is a failure of a given kind raised by the operation Op
type Error struct {
	Kind error
	Op   string
	Err  error
}

// Error returns the description of the failure
func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %v", e.Op, e.Kind)
	}

	return fmt.Sprintf("%s: %v: %v", e.Op, e.Kind, e.Err)
}

// Unwrap returns the underlying cause
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether the error is of the target kind
func (e *Error) Is(target error) bool {
	return e.Kind == target
}

// StoreUnavailable returns a new ErrStoreUnavailable error for op caused by err
func StoreUnavailable(op string, err error) error {
	return &Error{Kind: ErrStoreUnavailable, Op: op, Err: err}
}

// PlatformUnavailable returns a new ErrPlatformUnavailable error for op caused by err
func PlatformUnavailable(op string, err error) error {
	return &Error{Kind: ErrPlatformUnavailable, Op: op, Err: err}
}

// NotFound returns a new ErrNotFound error for op
func NotFound(op string, format string, a ...interface{}) error {
	return &Error{Kind: ErrNotFound, Op: op, Err: fmt.Errorf(format, a...)}
}
