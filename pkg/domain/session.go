package domain

import "time"

// Outcome classifies how a session terminated.
type Outcome string

const (
	OutcomeSuccess Outcome = "success" // Gated terminal answer accepted
	OutcomePartial Outcome = "partial" // Step budget exhausted
	OutcomeAbort   Outcome = "abort"   // Failure or loop-detection ceiling hit
	OutcomeError   Outcome = "error"   // Unexpected failure at the outer boundary
)

// Default bounds applied when a Profile field is left at zero.
const (
	DefaultMaxSteps               = 5
	DefaultMaxRetriesPerStep      = 3
	DefaultMaxConsecutiveFailures = 3
	DefaultMaxToolAttempts        = 3
	DefaultRepeatLimit            = 2
	DefaultFingerprintWidth       = 50
	DefaultMemoryTopK             = 3
)

// MemoryConfig controls how memory is queried on every step.
type MemoryConfig struct {
	TopK int    `json:"top_k" yaml:"top_k" mapstructure:"top_k"`
	Kind string `json:"kind,omitempty" yaml:"kind,omitempty" mapstructure:"kind"` // Optional type filter
	// Global disables the session filter so items from earlier sessions are visible.
	Global bool `json:"global,omitempty" yaml:"global,omitempty" mapstructure:"global"`
}

// Profile bounds the work a single session may perform.
type Profile struct {
	MaxSteps               int          `json:"max_steps" yaml:"max_steps" mapstructure:"max_steps"`
	MaxRetriesPerStep      int          `json:"max_retries_per_step" yaml:"max_retries_per_step" mapstructure:"max_retries_per_step"`
	MaxConsecutiveFailures int          `json:"max_consecutive_failures" yaml:"max_consecutive_failures" mapstructure:"max_consecutive_failures"`
	MaxToolAttempts        int          `json:"max_tool_attempts" yaml:"max_tool_attempts" mapstructure:"max_tool_attempts"`
	RepeatLimit            int          `json:"repeat_limit" yaml:"repeat_limit" mapstructure:"repeat_limit"`
	FingerprintWidth       int          `json:"fingerprint_width" yaml:"fingerprint_width" mapstructure:"fingerprint_width"`
	Memory                 MemoryConfig `json:"memory" yaml:"memory" mapstructure:"memory"`
}

// DefaultProfile returns the profile used when nothing is configured.
func DefaultProfile() Profile {
	return Profile{}.WithDefaults()
}

// WithDefaults returns a copy of p where every zero field holds its default.
func (p Profile) WithDefaults() Profile {
	if p.MaxSteps <= 0 {
		p.MaxSteps = DefaultMaxSteps
	}
	if p.MaxRetriesPerStep <= 0 {
		p.MaxRetriesPerStep = DefaultMaxRetriesPerStep
	}
	if p.MaxConsecutiveFailures <= 0 {
		p.MaxConsecutiveFailures = DefaultMaxConsecutiveFailures
	}
	if p.MaxToolAttempts <= 0 {
		p.MaxToolAttempts = DefaultMaxToolAttempts
	}
	if p.RepeatLimit <= 0 {
		p.RepeatLimit = DefaultRepeatLimit
	}
	if p.FingerprintWidth <= 0 {
		p.FingerprintWidth = DefaultFingerprintWidth
	}
	if p.Memory.TopK <= 0 {
		p.Memory.TopK = DefaultMemoryTopK
	}
	return p
}

// Session is the working state of one request.
// It is owned by a single loop invocation and never shared.
type Session struct {
	ID      string
	Input   string // Original request text
	Step    int    // Zero-based index of the current step
	Profile Profile

	// Trace is append-only. Use Record to extend it.
	Trace []MemoryItem

	// ToolsUsed lists distinct tool names in first-use order.
	ToolsUsed []string

	Answer  string
	Outcome Outcome
}

// NewSession creates a session for input bounded by profile.
func NewSession(id, input string, profile Profile) *Session {
	return &Session{
		ID:      id,
		Input:   input,
		Profile: profile.WithDefaults(),
		Trace:   []MemoryItem{},
	}
}

// Record appends item to the trace and notes the tool as used.
func (s *Session) Record(item MemoryItem) {
	s.Trace = append(s.Trace, item)
	if item.ToolName == "" {
		return
	}
	for _, name := range s.ToolsUsed {
		if name == item.ToolName {
			return
		}
	}
	s.ToolsUsed = append(s.ToolsUsed, item.ToolName)
}

// Advance moves to the next step.
func (s *Session) Advance() {
	s.Step++
}

// LastStep reports whether the current step is the final one allowed.
func (s *Session) LastStep() bool {
	return s.Step >= s.Profile.MaxSteps-1
}

// Terminate stores the final answer. Only the first call has effect.
func (s *Session) Terminate(answer string, outcome Outcome) {
	if s.Terminated() {
		return
	}
	s.Answer = answer
	s.Outcome = outcome
}

// Terminated reports whether an answer has been set.
func (s *Session) Terminated() bool {
	return s.Outcome != ""
}

// MemoryItem records the outcome of one tool call.
type MemoryItem struct {
	Text      string    `json:"text"`
	Kind      string    `json:"kind"`
	ToolName  string    `json:"tool_name,omitempty"`
	Query     string    `json:"query,omitempty"` // Query that produced the call
	Tags      []string  `json:"tags,omitempty"`
	SessionID string    `json:"session_id"`
	Timestamp time.Time `json:"timestamp"`

	// Structured holds the decoded tool payload when it was JSON.
	Structured any `json:"structured,omitempty"`
}

// KindToolOutput marks items produced by a successful tool call.
const KindToolOutput = "tool_output"

// MemoryQuery selects items from a memory store.
type MemoryQuery struct {
	Text      string
	TopK      int
	Kind      string // Empty matches every kind
	SessionID string // Empty matches every session
}

// Perception is the structured view of the current query.
type Perception struct {
	Input      string   `json:"input" mapstructure:"input"`
	Intent     string   `json:"intent" mapstructure:"intent"`
	Entities   []string `json:"entities" mapstructure:"entities"`
	ToolHint   string   `json:"tool_hint,omitempty" mapstructure:"tool_hint"`
	ScopeLimit int      `json:"scope_limit,omitempty" mapstructure:"scope_limit"`
	ScopeType  string   `json:"scope_type,omitempty" mapstructure:"scope_type"`
}
