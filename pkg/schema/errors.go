package schema

import (
	"errors"
	"fmt"
	"strings"
)

// ValidationError is one violation found by Validate. Key is the dotted
// path of the offending argument.
type ValidationError struct {
	Key    string
	Reason string
	Value  any
}

func (e *ValidationError) Error() string {
	msg := fmt.Sprintf("field %q: %s", e.Key, e.Reason)
	if e.Value != nil {
		msg += fmt.Sprintf(" (got %T)", e.Value)
	}
	return msg
}

// AggregateError carries every violation of one Validate call.
type AggregateError struct {
	Errors []error
}

func (e *AggregateError) Error() string {
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%d validation errors: ", len(e.Errors))
	for i, err := range e.Errors {
		if i > 0 {
			b.WriteString("; ")
		}
		b.WriteString(err.Error())
	}
	return b.String()
}

// Unwrap exposes the individual violations to errors.Is and errors.As.
func (e *AggregateError) Unwrap() []error { return e.Errors }

// ValidationErrors lists the violations in err, or nil when err carries none.
func ValidationErrors(err error) []error {
	var agg *AggregateError
	if errors.As(err, &agg) {
		return agg.Errors
	}
	var one *ValidationError
	if errors.As(err, &one) {
		return []error{one}
	}
	return nil
}
