package errors

import (
	"errors"
	"strings"
)

var (
	ErrNotFound = errors.New("not found")
	ErrInvalid  = errors.New("invalid")
	ErrConflict = errors.New("conflict")
	ErrTooMany  = errors.New("too many requests")
	ErrInternal = errors.New("internal")
)

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}

// FetchExhaustedError is returned when every applicable fetch strategy declined.
type FetchExhaustedError struct {
	Attempted []string
	Causes    []error
}

func (e *FetchExhaustedError) Error() string {
	if len(e.Attempted) == 0 {
		return "fetch exhausted: no strategy supports this source"
	}
	return "fetch exhausted: all strategies failed [" + strings.Join(e.Attempted, ", ") + "]"
}

func (e *FetchExhaustedError) Unwrap() []error {
	return e.Causes
}

func IsFetchExhausted(err error) bool {
	var target *FetchExhaustedError
	return errors.As(err, &target)
}
