// Package errors holds the failure classes shared by the loaders, the
// registry and the API. Every concrete type unwraps to one of four sentinels
// so callers classify with errors.Is and never switch on types.
package errors

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidInput = errors.New("invalid input")
	// ErrUnavailable covers dataset sources that are missing, unreadable or
	// malformed.
	ErrUnavailable = errors.New("unavailable")
	ErrUnsupported = errors.New("unsupported")
)

// NotFoundError names the kind of thing that was missing ("translation").
type NotFoundError struct {
	Resource string
	ID       string
	Err      error
}

func NewNotFound(resource, id string) *NotFoundError {
	return &NotFoundError{Resource: resource, ID: id}
}

func (e *NotFoundError) Error() string {
	if e.ID == "" {
		return e.Resource + " not found"
	}
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

func (e *NotFoundError) Unwrap() error {
	if e.Err == nil {
		return ErrNotFound
	}
	return e.Err
}

// IOError is a source that could not be opened or read. It matches both its
// cause and ErrUnavailable.
type IOError struct {
	Operation string
	Path      string
	Err       error
}

func NewIO(operation, path string, err error) *IOError {
	return &IOError{Operation: operation, Path: path, Err: err}
}

func (e *IOError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("failed to %s: %v", e.Operation, e.Err)
	}
	return fmt.Sprintf("failed to %s %s: %v", e.Operation, e.Path, e.Err)
}

func (e *IOError) Unwrap() []error { return []error{e.Err, ErrUnavailable} }

// ParseError is a source that was read but is not a valid dataset.
type ParseError struct {
	Format  string
	Path    string
	Message string
	Err     error
}

func NewParse(format, path, message string) *ParseError {
	return &ParseError{Format: format, Path: path, Message: message}
}

func (e *ParseError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("failed to parse %s: %s", e.Format, e.Message)
	}
	return fmt.Sprintf("failed to parse %s at %s: %s", e.Format, e.Path, e.Message)
}

func (e *ParseError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrUnavailable}
	}
	return []error{e.Err, ErrUnavailable}
}

// UnsupportedError is an operation or format this build cannot perform.
type UnsupportedError struct {
	Feature string
	Reason  string
}

func NewUnsupported(feature, reason string) *UnsupportedError {
	return &UnsupportedError{Feature: feature, Reason: reason}
}

func (e *UnsupportedError) Error() string {
	if e.Reason == "" {
		return "unsupported " + e.Feature
	}
	return fmt.Sprintf("unsupported %s: %s", e.Feature, e.Reason)
}

func (e *UnsupportedError) Unwrap() error { return ErrUnsupported }
