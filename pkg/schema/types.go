package schema

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
)

// Type defines the contract for field validation.
type Type interface {
	// Name returns the JSON Schema name of the type (e.g., "string", "integer").
	Name() string
	// Validate checks if a value conforms to this type.
	Validate(value any) error
}

// StringType validates string values.
type StringType struct{}

func (t *StringType) Name() string { return "string" }

func (t *StringType) Validate(value any) error {
	if _, ok := value.(string); !ok {
		return fmt.Errorf("expected string, got %T", value)
	}
	return nil
}

// IntegerType validates whole numbers. Floats with no fractional part are
// accepted since JSON decoding yields float64.
type IntegerType struct{}

func (t *IntegerType) Name() string { return "integer" }

func (t *IntegerType) Validate(value any) error {
	switch v := value.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return nil
	case float64:
		if v == math.Trunc(v) && !math.IsInf(v, 0) {
			return nil
		}
		return fmt.Errorf("expected integer, got %v", v)
	case json.Number:
		if _, err := v.Int64(); err == nil {
			return nil
		}
		return fmt.Errorf("expected integer, got %s", v)
	}
	return fmt.Errorf("expected integer, got %T", value)
}

// NumberType validates any numeric value.
type NumberType struct{}

func (t *NumberType) Name() string { return "number" }

func (t *NumberType) Validate(value any) error {
	switch v := value.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		return nil
	case json.Number:
		if _, err := v.Float64(); err == nil {
			return nil
		}
	}
	return fmt.Errorf("expected number, got %T", value)
}

// BoolType validates boolean values.
type BoolType struct{}

func (t *BoolType) Name() string { return "boolean" }

func (t *BoolType) Validate(value any) error {
	if _, ok := value.(bool); !ok {
		return fmt.Errorf("expected boolean, got %T", value)
	}
	return nil
}

// ArrayType validates slices whose elements all match Elem.
type ArrayType struct {
	Elem Type
}

func (t *ArrayType) Name() string {
	return fmt.Sprintf("array of %s", t.Elem.Name())
}

func (t *ArrayType) Validate(value any) error {
	rv := reflect.ValueOf(value)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return fmt.Errorf("expected array, got %T", value)
	}
	for i := 0; i < rv.Len(); i++ {
		if err := t.Elem.Validate(rv.Index(i).Interface()); err != nil {
			return fmt.Errorf("element %d: %w", i, err)
		}
	}
	return nil
}

// ObjectType validates nested objects against their own schema.
type ObjectType struct {
	Schema Schema
}

func (t *ObjectType) Name() string { return "object" }

func (t *ObjectType) Validate(value any) error {
	m, ok := value.(map[string]any)
	if !ok {
		return fmt.Errorf("expected object, got %T", value)
	}
	return Validate(t.Schema, m)
}

// AnyType accepts every value.
type AnyType struct{}

func (t *AnyType) Name() string { return "any" }

func (t *AnyType) Validate(value any) error { return nil }

// --- Factory Functions ---

// String creates a string type validator.
func String() Type { return &StringType{} }

// Integer creates an integer type validator.
func Integer() Type { return &IntegerType{} }

// Number creates a number type validator.
func Number() Type { return &NumberType{} }

// Bool creates a boolean type validator.
func Bool() Type { return &BoolType{} }

// Array creates an array type validator for elements of the given type.
func Array(elem Type) Type { return &ArrayType{Elem: elem} }

// Object creates a nested object validator.
func Object(s Schema) Type { return &ObjectType{Schema: s} }

// Any creates a validator that accepts every value.
func Any() Type { return &AnyType{} }
