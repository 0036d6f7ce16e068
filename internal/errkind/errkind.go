// Package errkind classifies engine failures.
//
// Use errors.Is against the sentinels, or KindOf to get the classification:
//
//	if errors.Is(err, errkind.ErrNotFound) { ... }
package errkind

import (
	"errors"
	"fmt"
)

// Sentinel errors, one per Kind.
var (
	ErrNotFound         = errors.New("not found")
	ErrInvalidInput     = errors.New("invalid input")
	ErrTransientStorage = errors.New("transient storage error")
	ErrComputation      = errors.New("computation error")
)

// Kind is the classification of an engine error.
type Kind int

const (
	Unknown Kind = iota
	NotFound
	InvalidInput
	TransientStorage
	Computation
)

var kindNames = [...]string{
	Unknown:          "Unknown",
	NotFound:         "NotFound",
	InvalidInput:     "InvalidInput",
	TransientStorage: "TransientStorage",
	Computation:      "Computation",
}

// String returns the kind name.
func (k Kind) String() string {
	if k < Unknown || k > Computation {
		return fmt.Sprintf("Kind(%d)", int(k))
	}
	return kindNames[k]
}

func (k Kind) sentinel() error {
	switch k {
	case NotFound:
		return ErrNotFound
	case InvalidInput:
		return ErrInvalidInput
	case TransientStorage:
		return ErrTransientStorage
	case Computation:
		return ErrComputation
	}
	return nil
}

// KindOf returns the classification of err. nil and unclassified errors are Unknown.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return Unknown
	case errors.Is(err, ErrNotFound):
		return NotFound
	case errors.Is(err, ErrInvalidInput):
		return InvalidInput
	case errors.Is(err, ErrTransientStorage):
		return TransientStorage
	case errors.Is(err, ErrComputation):
		return Computation
	}
	return Unknown
}

// New returns an error of the given kind with a formatted message.
func New(kind Kind, format string, args ...any) error {
	msg := fmt.Sprintf(format, args...)
	if s := kind.sentinel(); s != nil {
		return fmt.Errorf("%s: %w", msg, s)
	}
	return errors.New(msg)
}

// Wrap classifies cause as kind. Both the sentinel and cause stay reachable through errors.Is.
// An error that is already classified keeps its original kind.
func Wrap(kind Kind, cause error, msg string) error {
	if cause == nil {
		return nil
	}
	if KindOf(cause) != Unknown {
		return fmt.Errorf("%s: %w", msg, cause)
	}
	s := kind.sentinel()
	if s == nil {
		return fmt.Errorf("%s: %w", msg, cause)
	}
	return fmt.Errorf("%s: %w: %w", msg, s, cause)
}
