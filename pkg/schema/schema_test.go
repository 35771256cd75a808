package schema

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTypes(t *testing.T) {
	tests := []struct {
		name  string
		typ   Type
		value any
		ok    bool
	}{
		{"string", String(), "x", true},
		{"string rejects int", String(), 3, false},
		{"integer int", Integer(), 3, true},
		{"integer whole float", Integer(), 3.0, true},
		{"integer fractional float", Integer(), 3.5, false},
		{"integer json.Number", Integer(), json.Number("42"), true},
		{"integer string", Integer(), "3", false},
		{"number float", Number(), 2.5, true},
		{"number int", Number(), 2, true},
		{"number string", Number(), "2.5", false},
		{"bool", Bool(), true, true},
		{"bool string", Bool(), "true", false},
		{"array of strings", Array(String()), []any{"a", "b"}, true},
		{"array typed slice", Array(String()), []string{"a"}, true},
		{"array bad element", Array(String()), []any{"a", 1}, false},
		{"array not slice", Array(String()), "a", false},
		{"object", Object(Schema{Properties: map[string]Type{"id": String()}}), map[string]any{"id": "1"}, true},
		{"object not map", Object(Schema{}), "x", false},
		{"any", Any(), struct{}{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.typ.Validate(tt.value)
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestValidate_Success(t *testing.T) {
	s := Schema{
		Properties: map[string]Type{
			"query":  String(),
			"limit":  Integer(),
			"strict": Bool(),
			"tags":   Array(String()),
		},
		Required: []string{"query"},
	}

	err := Validate(s, map[string]any{
		"query": "standings",
		"limit": 10,
		"tags":  []any{"sports"},
		"extra": "unchecked",
	})
	assert.NoError(t, err)
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	s := Schema{
		Properties: map[string]Type{
			"query": String(),
			"limit": Integer(),
			"meta": Object(Schema{
				Properties: map[string]Type{"page": Integer()},
				Required:   []string{"page"},
			}),
		},
		Required: []string{"query"},
	}

	err := Validate(s, map[string]any{
		"limit": "ten",
		"meta":  map[string]any{},
	})
	require.Error(t, err)

	errs := ValidationErrors(err)
	require.Len(t, errs, 3)

	keys := make([]string, len(errs))
	for i, e := range errs {
		ve, ok := e.(*ValidationError)
		require.True(t, ok)
		keys[i] = ve.Key
	}
	assert.Equal(t, []string{"query", "limit", "meta.page"}, keys)
	assert.Contains(t, err.Error(), "3 validation errors")
}

func TestValidate_NilValueIsAbsent(t *testing.T) {
	s := Schema{Properties: map[string]Type{"q": String()}}
	assert.NoError(t, Validate(s, map[string]any{"q": nil}))
}

func TestConform(t *testing.T) {
	s := Schema{Properties: map[string]Type{
		"year":  String(),
		"ratio": String(),
		"limit": Integer(),
		"score": Number(),
		"on":    Bool(),
		"ids":   Array(String()),
		"page":  Object(Schema{Properties: map[string]Type{"n": Integer()}}),
	}}

	got := Conform(s, map[string]any{
		"year":  2024,
		"ratio": 0.5,
		"limit": "10",
		"score": "1.5",
		"on":    "true",
		"ids":   []any{1, "b"},
		"page":  map[string]any{"n": "2"},
		"other": 7,
	})

	assert.Equal(t, map[string]any{
		"year":  "2024",
		"ratio": "0.5",
		"limit": int64(10),
		"score": 1.5,
		"on":    true,
		"ids":   []any{"1", "b"},
		"page":  map[string]any{"n": int64(2)},
		"other": 7,
	}, got)
	assert.NoError(t, Validate(s, got))
}

func TestConform_KeepsUnconvertible(t *testing.T) {
	s := Schema{Properties: map[string]Type{"limit": Integer()}}
	got := Conform(s, map[string]any{"limit": "ten"})
	assert.Equal(t, "ten", got["limit"])
	assert.Error(t, Validate(s, got))
	assert.Nil(t, Conform(s, nil))
}

func TestFromJSONSchema(t *testing.T) {
	var doc map[string]any
	require.NoError(t, json.Unmarshal([]byte(`{
		"type": "object",
		"properties": {
			"q": {"type": "string", "description": "query"},
			"limit": {"type": "integer"},
			"tags": {"type": "array", "items": {"type": "string"}},
			"filter": {"type": "object", "properties": {"from": {"type": "string"}}, "required": ["from"]},
			"blob": {"type": "object"},
			"either": {"type": ["string", "null"]}
		},
		"required": ["q"]
	}`), &doc))

	s, err := FromJSONSchema(doc)
	require.NoError(t, err)
	assert.Equal(t, []string{"q"}, s.Required)
	assert.Equal(t, "string", s.Properties["q"].Name())
	assert.Equal(t, "integer", s.Properties["limit"].Name())
	assert.Equal(t, "array of string", s.Properties["tags"].Name())
	assert.Equal(t, "object", s.Properties["filter"].Name())
	assert.Equal(t, "any", s.Properties["blob"].Name())
	assert.Equal(t, "any", s.Properties["either"].Name())

	err = Validate(s, map[string]any{"q": "x", "filter": map[string]any{}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"filter.from"`)
}

func TestFromJSONSchema_Empty(t *testing.T) {
	s, err := FromJSONSchema(nil)
	require.NoError(t, err)
	assert.NoError(t, Validate(s, map[string]any{"anything": 1}))
}

func TestFromJSONSchema_Malformed(t *testing.T) {
	_, err := FromJSONSchema(map[string]any{"properties": "nope"})
	assert.Error(t, err)

	_, err = FromJSONSchema(map[string]any{"required": []any{1}})
	assert.Error(t, err)

	_, err = FromJSONSchema(map[string]any{"required": "q"})
	assert.Error(t, err)
}
