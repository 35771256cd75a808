package domain

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Tool defines metadata about a tool exposed by a backend.
// Parameters holds the JSON schema of the arguments.
type Tool struct {
	Name        string         `json:"name" yaml:"name" mapstructure:"name"`
	Description string         `json:"description" yaml:"description" mapstructure:"description"`
	Parameters  map[string]any `json:"parameters,omitempty" yaml:"parameters,omitempty" mapstructure:"parameters"`
}

// ParameterNames returns the property names declared by the schema.
func (t Tool) ParameterNames() []string {
	props, _ := t.Parameters["properties"].(map[string]any)
	names := make([]string, 0, len(props))
	for name := range props {
		names = append(names, name)
	}
	return names
}

// WrapsInput reports whether the tool expects its arguments nested under a
// single "input" parameter.
func (t Tool) WrapsInput() bool {
	names := t.ParameterNames()
	return len(names) == 1 && names[0] == "input"
}

// ToolResult is the uniform result of a tool call.
type ToolResult struct {
	// Text is the text body returned by the backend.
	Text string `json:"text"`
	// Structured holds the decoded payload when the body was JSON.
	Structured any `json:"structured,omitempty"`
}

// NewToolResult normalizes an arbitrary payload into a ToolResult.
// Strings holding a JSON object or array are decoded into Structured.
func NewToolResult(v any) ToolResult {
	switch val := v.(type) {
	case nil:
		return ToolResult{}
	case ToolResult:
		return val
	case string:
		res := ToolResult{Text: val}
		trimmed := strings.TrimSpace(val)
		if strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "[") {
			var decoded any
			if err := json.Unmarshal([]byte(trimmed), &decoded); err == nil {
				res.Structured = decoded
			}
		}
		return res
	case []byte:
		return NewToolResult(string(val))
	case fmt.Stringer:
		return ToolResult{Text: val.String()}
	}

	data, err := json.Marshal(v)
	if err != nil {
		return ToolResult{Text: fmt.Sprint(v)}
	}
	var decoded any
	_ = json.Unmarshal(data, &decoded)
	switch decoded.(type) {
	case map[string]any, []any:
		return ToolResult{Text: string(data), Structured: decoded}
	}
	return ToolResult{Text: fmt.Sprint(v)}
}

// Display returns the human-facing text of the result.
// A structured object with a "markdown" field is rendered through that field.
func (r ToolResult) Display() string {
	if obj, ok := r.Structured.(map[string]any); ok {
		if md, ok := obj["markdown"].(string); ok {
			return md
		}
	}
	return r.Text
}
