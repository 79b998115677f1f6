package core

import (
	"errors"
	"fmt"
)

// ValidationError reports a record that fails an invariant. It is returned
// before any storage is touched.
type ValidationError struct {
	Field string
	Msg   string
	Err   error
}

func (e *ValidationError) Error() string {
	switch {
	case e.Msg != "":
		return e.Msg
	case e.Field != "":
		return fmt.Sprintf("invalid %s", e.Field)
	default:
		return "validation error"
	}
}

func (e *ValidationError) Unwrap() error { return e.Err }

// StorageError reports that the backing medium could not be read or
// written, or that existing data is malformed.
type StorageError struct {
	Op    string
	Table string
	Err   error
}

func (e *StorageError) Error() string {
	if e.Table == "" {
		return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("storage %s %s: %v", e.Op, e.Table, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// ErrMalformedData marks existing data that does not match the declared layout.
var ErrMalformedData = errors.New("malformed existing data")

func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

func IsStorage(err error) bool {
	var s *StorageError
	return errors.As(err, &s)
}

// ValidationMessages flattens err, which may be a single ValidationError or
// an errors.Join of several, into user-facing messages.
func ValidationMessages(err error) []string {
	if err == nil {
		return nil
	}
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		var out []string
		for _, e := range joined.Unwrap() {
			out = append(out, ValidationMessages(e)...)
		}
		return out
	}
	var v *ValidationError
	if errors.As(err, &v) {
		return []string{v.Error()}
	}
	return []string{err.Error()}
}
