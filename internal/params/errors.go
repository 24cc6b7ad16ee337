package params

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidNumber         = errors.New("not a number")
	ErrNonFinite             = errors.New("not a finite number")
	ErrNotPositive           = errors.New("must be a positive integer")
	ErrMalformedSeedSolution = errors.New("malformed seed solution")
	ErrMissingSeedSolution   = errors.New("seed solution required")
)

// ValidationError reports a single rejected field.
type ValidationError struct {
	Field  string
	Value  string
	Err    error
	Detail string
}

func (e *ValidationError) Error() string {
	msg := fmt.Sprintf("%s: %v", e.Field, e.Err)
	if e.Value != "" {
		msg = fmt.Sprintf("%s %q: %v", e.Field, e.Value, e.Err)
	}
	if e.Detail != "" {
		msg += " (" + e.Detail + ")"
	}
	return msg
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// Fields returns the names of all rejected fields in err, in report order.
func Fields(err error) []string {
	var out []string
	collect(err, &out)
	return out
}

func collect(err error, out *[]string) {
	switch e := err.(type) {
	case nil:
	case *ValidationError:
		*out = append(*out, e.Field)
	case interface{ Unwrap() []error }:
		for _, inner := range e.Unwrap() {
			collect(inner, out)
		}
	default:
		var ve *ValidationError
		if errors.As(err, &ve) {
			*out = append(*out, ve.Field)
		}
	}
}
