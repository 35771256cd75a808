package workflow

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// RequirementSpec declares a required step.
// It is satisfied once one of Tools succeeded and, when Match is set, the
// recorded output matched the regular expression.
type RequirementSpec struct {
	Name  string   `yaml:"name" json:"name" mapstructure:"name"`
	Tools []string `yaml:"tools" json:"tools" mapstructure:"tools"`
	Match string   `yaml:"match,omitempty" json:"match,omitempty" mapstructure:"match"`
}

// CaptureSpec declares an identifier to carry forward between steps.
// Field is a dotted path into the structured result; Pattern is a regular
// expression whose first group is taken from the result text.
type CaptureSpec struct {
	Tool    string   `yaml:"tool" json:"tool" mapstructure:"tool"`
	Field   string   `yaml:"field,omitempty" json:"field,omitempty" mapstructure:"field"`
	Pattern string   `yaml:"pattern,omitempty" json:"pattern,omitempty" mapstructure:"pattern"`
	As      string   `yaml:"as" json:"as" mapstructure:"as"`
	Into    []string `yaml:"into,omitempty" json:"into,omitempty" mapstructure:"into"` // Tools that receive the value as an argument
}

// Definition is the declarative form of a workflow.
type Definition struct {
	Requirements []RequirementSpec `yaml:"requirements" json:"requirements" mapstructure:"requirements"`
	Captures     []CaptureSpec     `yaml:"captures" json:"captures" mapstructure:"captures"`
	// Guidance maps a tool name to a text/template rendered with captured values
	// and appended to the next query after that tool succeeds.
	Guidance map[string]string `yaml:"guidance" json:"guidance" mapstructure:"guidance"`
}

// Load reads a Definition from a YAML or JSON file.
func Load(path string) (Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Definition{}, fmt.Errorf("failed to read workflow: %w", err)
	}

	var def Definition
	// YAML is a superset of JSON, so one decoder serves both formats.
	if err := yaml.Unmarshal(data, &def); err != nil {
		return Definition{}, fmt.Errorf("failed to parse workflow %s: %w", path, err)
	}
	return def, nil
}

// LoadFile loads and compiles a workflow file.
func LoadFile(path string) (*Workflow, error) {
	def, err := Load(path)
	if err != nil {
		return nil, err
	}
	return Compile(def)
}
