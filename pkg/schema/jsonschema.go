package schema

import "fmt"

// FromJSONSchema builds a Schema from an object JSON schema such as the
// "inputSchema" of an MCP tool. A nil or empty document yields an empty
// Schema that accepts everything.
func FromJSONSchema(doc map[string]any) (Schema, error) {
	s := Schema{Properties: map[string]Type{}}
	if len(doc) == 0 {
		return s, nil
	}

	if raw, ok := doc["properties"]; ok && raw != nil {
		props, ok := raw.(map[string]any)
		if !ok {
			return Schema{}, fmt.Errorf("properties must be an object, got %T", raw)
		}
		for name, p := range props {
			prop, _ := p.(map[string]any)
			t, err := typeOf(prop)
			if err != nil {
				return Schema{}, fmt.Errorf("property %s: %w", name, err)
			}
			s.Properties[name] = t
		}
	}

	switch req := doc["required"].(type) {
	case nil:
	case []string:
		s.Required = append(s.Required, req...)
	case []any:
		for _, r := range req {
			name, ok := r.(string)
			if !ok {
				return Schema{}, fmt.Errorf("required entries must be strings, got %T", r)
			}
			s.Required = append(s.Required, name)
		}
	default:
		return Schema{}, fmt.Errorf("required must be an array, got %T", req)
	}
	return s, nil
}

func typeOf(prop map[string]any) (Type, error) {
	name, _ := prop["type"].(string)
	switch name {
	case "string":
		return String(), nil
	case "integer":
		return Integer(), nil
	case "number":
		return Number(), nil
	case "boolean":
		return Bool(), nil
	case "array":
		items, _ := prop["items"].(map[string]any)
		elem, err := typeOf(items)
		if err != nil {
			return nil, err
		}
		return Array(elem), nil
	case "object":
		if _, ok := prop["properties"]; !ok {
			return Any(), nil
		}
		nested, err := FromJSONSchema(prop)
		if err != nil {
			return nil, err
		}
		return Object(nested), nil
	}
	// Missing, union or unknown types are not checked.
	return Any(), nil
}
