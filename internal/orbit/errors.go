package orbit

import (
	"errors"
	"fmt"
)

var (
	// ErrConfiguration marks missing orbit definitions and malformed
	// element sets.
	ErrConfiguration = errors.New("configuration error")
	// ErrUnsupportedOrbit marks states without a closed elliptic form.
	ErrUnsupportedOrbit = errors.New("unsupported orbit")
)

// ElementError reports a problem with one element of a representation.
type ElementError struct {
	Kind     error
	Category Category
	Field    string
	Msg      string
}

func (e *ElementError) Error() string {
	if e == nil {
		return ""
	}
	if e.Field == "" {
		return fmt.Sprintf("%s: %s: %s", e.Kind, e.Category, e.Msg)
	}
	return fmt.Sprintf("%s: %s.%s: %s", e.Kind, e.Category, e.Field, e.Msg)
}

func (e *ElementError) Unwrap() error { return e.Kind }

func elementErrorf(kind error, c Category, field, format string, args ...any) error {
	return &ElementError{Kind: kind, Category: c, Field: field, Msg: fmt.Sprintf(format, args...)}
}
