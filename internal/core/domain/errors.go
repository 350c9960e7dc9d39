package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidState = errors.New("invalid state")
)

// NotFoundError reports a lookup that resolved to zero or several records.
type NotFoundError struct {
	Kind string
	Key  string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no known %s with key %q", e.Kind, e.Key)
}

func (e *NotFoundError) Unwrap() error {
	return ErrNotFound
}

// InvalidStateError reports a stored record that misses a required field
// or carries a value out of its domain.
type InvalidStateError struct {
	Entity string
	Id     string
	Field  string
	Reason string
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("%s %s: invalid field %s: %s", e.Entity, e.Id, e.Field, e.Reason)
}

func (e *InvalidStateError) Unwrap() error {
	return ErrInvalidState
}
