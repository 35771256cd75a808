package workflow

import (
	"fmt"
	"regexp"
	"slices"
	"strings"
	"text/template"

	"github.com/aretw0/cortex/pkg/domain"
)

// Predicate decides whether a requirement is met by the memory trace.
type Predicate func(trace []domain.MemoryItem) bool

// Requirement is a step that must be satisfied before a terminal answer is accepted.
type Requirement struct {
	Name      string
	Satisfied Predicate
}

// ToolSucceeded is satisfied once any of the tools produced a memory item.
// With no tools it is satisfied by any item.
func ToolSucceeded(tools ...string) Predicate {
	return func(trace []domain.MemoryItem) bool {
		for _, item := range trace {
			if matchesTool(item, tools) {
				return true
			}
		}
		return false
	}
}

// TextMatches is satisfied once an item from one of the tools matches re.
func TextMatches(re *regexp.Regexp, tools ...string) Predicate {
	return func(trace []domain.MemoryItem) bool {
		for _, item := range trace {
			if matchesTool(item, tools) && re.MatchString(item.Text) {
				return true
			}
		}
		return false
	}
}

func matchesTool(item domain.MemoryItem, tools []string) bool {
	if len(tools) == 0 {
		return true
	}
	for _, t := range tools {
		if item.ToolName == t {
			return true
		}
	}
	return false
}

type capture struct {
	tool    string
	field   string
	pattern *regexp.Regexp
	as      string
	into    []string
}

// Workflow is a compiled Definition. It is immutable and safe to share
// between sessions; per-session bookkeeping lives in State.
type Workflow struct {
	requirements []Requirement
	captures     []capture
	guidance     map[string]*template.Template
}

// Compile validates def and builds a Workflow from it.
func Compile(def Definition) (*Workflow, error) {
	wf := &Workflow{guidance: make(map[string]*template.Template)}

	for i, rd := range def.Requirements {
		if rd.Name == "" {
			return nil, fmt.Errorf("requirement %d: name is required", i)
		}
		pred := ToolSucceeded(rd.Tools...)
		if rd.Match != "" {
			re, err := regexp.Compile(rd.Match)
			if err != nil {
				return nil, fmt.Errorf("requirement %s: invalid match: %w", rd.Name, err)
			}
			pred = TextMatches(re, rd.Tools...)
		}
		wf.requirements = append(wf.requirements, Requirement{Name: rd.Name, Satisfied: pred})
	}

	for i, cd := range def.Captures {
		if cd.Tool == "" || cd.As == "" {
			return nil, fmt.Errorf("capture %d: tool and as are required", i)
		}
		if cd.Field == "" && cd.Pattern == "" {
			return nil, fmt.Errorf("capture %s: one of field or pattern is required", cd.As)
		}
		c := capture{tool: cd.Tool, field: cd.Field, as: cd.As, into: cd.Into}
		if cd.Pattern != "" {
			re, err := regexp.Compile(cd.Pattern)
			if err != nil {
				return nil, fmt.Errorf("capture %s: invalid pattern: %w", cd.As, err)
			}
			if re.NumSubexp() < 1 {
				return nil, fmt.Errorf("capture %s: pattern needs a capture group", cd.As)
			}
			c.pattern = re
		}
		wf.captures = append(wf.captures, c)
	}

	for tool, text := range def.Guidance {
		tmpl, err := template.New(tool).Option("missingkey=zero").Parse(text)
		if err != nil {
			return nil, fmt.Errorf("guidance for %s: %w", tool, err)
		}
		wf.guidance[tool] = tmpl
	}

	return wf, nil
}

// Require returns a copy of w with one more programmatic requirement.
// w itself is left unchanged.
func (w *Workflow) Require(name string, pred Predicate) *Workflow {
	next := &Workflow{guidance: make(map[string]*template.Template)}
	if w != nil {
		next.requirements = slices.Clone(w.requirements)
		next.captures = w.captures
		next.guidance = w.guidance
	}
	next.requirements = append(next.requirements, Requirement{Name: name, Satisfied: pred})
	return next
}

// Requirements returns the names of every declared requirement.
func (w *Workflow) Requirements() []string {
	if w == nil {
		return nil
	}
	names := make([]string, len(w.requirements))
	for i, r := range w.requirements {
		names[i] = r.Name
	}
	return names
}

// NewState creates the gate state of a new session.
// A nil Workflow yields a state with no requirements.
func (w *Workflow) NewState() *State {
	if w == nil {
		w = &Workflow{}
	}
	return &State{
		wf:        w,
		satisfied: make(map[string]bool),
		vars:      make(map[string]string),
		attempts:  make(map[string]int),
		retries:   make(map[int]int),
	}
}

// lookupField walks a dotted path through decoded JSON objects.
func lookupField(v any, path string) (string, bool) {
	current := v
	for _, part := range strings.Split(path, ".") {
		obj, ok := current.(map[string]any)
		if !ok {
			return "", false
		}
		current, ok = obj[part]
		if !ok {
			return "", false
		}
	}
	switch val := current.(type) {
	case nil:
		return "", false
	case string:
		return val, val != ""
	case float64:
		if val == float64(int64(val)) {
			return fmt.Sprint(int64(val)), true
		}
		return fmt.Sprint(val), true
	default:
		return fmt.Sprint(val), true
	}
}
