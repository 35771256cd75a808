package schema

import (
	"fmt"
	"sort"
	"strconv"
)

// Schema describes the arguments of one tool.
// Fields not listed in Properties are allowed and left unchecked.
type Schema struct {
	Properties map[string]Type
	Required   []string
}

// Validate checks if data conforms to the schema.
// Returns an *AggregateError with all validation failures found, ordered by
// field name.
func Validate(s Schema, data map[string]any) error {
	var errs []error

	for _, name := range s.Required {
		if _, exists := data[name]; !exists {
			errs = append(errs, &ValidationError{Key: name, Reason: "required"})
		}
	}

	names := make([]string, 0, len(s.Properties))
	for name := range s.Properties {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		value, exists := data[name]
		if !exists || value == nil {
			continue
		}
		if err := s.Properties[name].Validate(value); err != nil {
			// Nested objects report their own paths.
			if _, isObject := s.Properties[name].(*ObjectType); isObject {
				nested := ValidationErrors(err)
				for _, n := range nested {
					if ve, ok := n.(*ValidationError); ok {
						errs = append(errs, &ValidationError{Key: name + "." + ve.Key, Reason: ve.Reason, Value: ve.Value})
					}
				}
				continue
			}
			errs = append(errs, &ValidationError{Key: name, Reason: err.Error(), Value: value})
		}
	}

	if len(errs) > 0 {
		return &AggregateError{Errors: errs}
	}
	return nil
}

// Conform returns a copy of data with scalar values converted toward their
// declared types: numbers and booleans become strings where a string is
// expected, and numeric strings become numbers where a number is expected.
// Values that cannot be converted are kept for Validate to report.
func Conform(s Schema, data map[string]any) map[string]any {
	if data == nil {
		return nil
	}
	out := make(map[string]any, len(data))
	for k, v := range data {
		t, ok := s.Properties[k]
		if !ok {
			out[k] = v
			continue
		}
		out[k] = conformValue(t, v)
	}
	return out
}

func conformValue(t Type, v any) any {
	switch tt := t.(type) {
	case *StringType:
		switch val := v.(type) {
		case int, int64, bool:
			return fmt.Sprint(val)
		case float64:
			return strconv.FormatFloat(val, 'f', -1, 64)
		}
	case *IntegerType:
		if s, ok := v.(string); ok {
			if n, err := strconv.ParseInt(s, 10, 64); err == nil {
				return n
			}
		}
	case *NumberType:
		if s, ok := v.(string); ok {
			if f, err := strconv.ParseFloat(s, 64); err == nil {
				return f
			}
		}
	case *BoolType:
		if s, ok := v.(string); ok {
			if b, err := strconv.ParseBool(s); err == nil {
				return b
			}
		}
	case *ObjectType:
		if m, ok := v.(map[string]any); ok {
			return Conform(tt.Schema, m)
		}
	case *ArrayType:
		if items, ok := v.([]any); ok {
			out := make([]any, len(items))
			for i, item := range items {
				out[i] = conformValue(tt.Elem, item)
			}
			return out
		}
	}
	return v
}
