// Package schema validates tool arguments against the JSON schema a
// backend publishes for the tool.
//
// Only the subset of JSON Schema that tool listings use in practice is
// understood: "type" (string, integer, number, boolean, array, object),
// "properties", "required" and "items". Anything else validates as any
// value.
//
// Basic usage:
//
//	s, err := schema.FromJSONSchema(tool.Parameters)
//	if err != nil {
//	    // The published schema is malformed
//	}
//	args = schema.Conform(s, args)
//	if err := schema.Validate(s, args); err != nil {
//	    for _, e := range schema.ValidationErrors(err) {
//	        // Handle each field error
//	    }
//	}
//
// Conform exists because the call line format cannot tell the string "2024"
// from the number 2024; it converts scalars toward the declared type before
// validation.
package schema
