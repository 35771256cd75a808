package domain

// ActionKind tags the variant held by an Action.
type ActionKind string

const (
	ActionCall     ActionKind = "call"
	ActionTerminal ActionKind = "terminal"
)

// UnknownAnswer is the degraded answer used when a planner produces nothing usable.
const UnknownAnswer = "unknown"

// Action is a single planner decision.
// A call carries Tool and Args; a terminal carries Answer.
// Raw keeps the originating line when the action came from text and may
// still need parsing (Tool is empty in that case).
type Action struct {
	Kind   ActionKind     `json:"kind"`
	Tool   string         `json:"tool,omitempty"`
	Args   map[string]any `json:"args,omitempty"`
	Answer string         `json:"answer,omitempty"`
	Raw    string         `json:"raw,omitempty"`
}

// Call builds a tool call action.
func Call(tool string, args map[string]any) Action {
	if args == nil {
		args = map[string]any{}
	}
	return Action{Kind: ActionCall, Tool: tool, Args: args}
}

// Terminal builds a terminal action.
func Terminal(answer string) Action {
	return Action{Kind: ActionTerminal, Answer: answer}
}

// IsTerminal reports whether the action ends the session.
func (a Action) IsTerminal() bool {
	return a.Kind == ActionTerminal
}
