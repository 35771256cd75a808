package workflow

import (
	"bytes"
	"maps"
	"slices"

	"github.com/aretw0/cortex/pkg/domain"
)

// State is the per-session gate record: which requirements are satisfied,
// which identifiers were captured, and how often calls and steps were attempted.
// It is owned by a single session and is not safe for concurrent use.
type State struct {
	wf        *Workflow
	satisfied map[string]bool
	vars      map[string]string
	attempts  map[string]int
	retries   map[int]int
}

// Observe updates the state after a successful call recorded as item.
// trace must already include item.
func (s *State) Observe(item domain.MemoryItem, trace []domain.MemoryItem) {
	for _, req := range s.wf.requirements {
		if !s.satisfied[req.Name] && req.Satisfied(trace) {
			s.satisfied[req.Name] = true
		}
	}

	for _, c := range s.wf.captures {
		if c.tool != item.ToolName {
			continue
		}
		if c.field != "" {
			if val, ok := lookupField(item.Structured, c.field); ok {
				s.vars[c.as] = val
				continue
			}
		}
		if c.pattern != nil {
			if m := c.pattern.FindStringSubmatch(item.Text); m != nil && m[1] != "" {
				s.vars[c.as] = m[1]
			}
		}
	}
}

// Missing returns the unsatisfied requirements in declaration order.
func (s *State) Missing() []string {
	var missing []string
	for _, req := range s.wf.requirements {
		if !s.satisfied[req.Name] {
			missing = append(missing, req.Name)
		}
	}
	return missing
}

// Satisfied reports whether the named requirement has been met.
func (s *State) Satisfied(name string) bool {
	return s.satisfied[name]
}

// Vars returns a copy of the captured identifiers.
func (s *State) Vars() map[string]string {
	return maps.Clone(s.vars)
}

// Augment returns args with captured identifiers filled in for tools that
// declared them. Arguments already present win. args is never modified; a
// copy is made on the first insertion.
func (s *State) Augment(tool string, args map[string]any) map[string]any {
	out := args
	copied := false
	for _, c := range s.wf.captures {
		val, ok := s.vars[c.as]
		if !ok || !slices.Contains(c.into, tool) {
			continue
		}
		if _, exists := out[c.as]; exists {
			continue
		}
		if !copied {
			out = maps.Clone(args)
			if out == nil {
				out = make(map[string]any)
			}
			copied = true
		}
		out[c.as] = val
	}
	return out
}

// Guidance renders the guidance text declared for tool, or "" if none.
func (s *State) Guidance(tool string) string {
	tmpl, ok := s.wf.guidance[tool]
	if !ok {
		return ""
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, s.vars); err != nil {
		return ""
	}
	return buf.String()
}

// RecordAttempt counts a dispatch of the call fingerprint and returns the new total.
func (s *State) RecordAttempt(fingerprint string) int {
	s.attempts[fingerprint]++
	return s.attempts[fingerprint]
}

// Attempts returns how often the fingerprint was dispatched.
func (s *State) Attempts(fingerprint string) int {
	return s.attempts[fingerprint]
}

// RecordRetry counts a failed attempt at step and returns the new total.
func (s *State) RecordRetry(step int) int {
	s.retries[step]++
	return s.retries[step]
}

// Retries returns the failed attempts recorded for step.
func (s *State) Retries(step int) int {
	return s.retries[step]
}
