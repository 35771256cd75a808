package runtime

import (
	"fmt"
	"strings"
)

// Headers of the queries the loop writes for itself. Perceiver output that
// repeats them is treated as an echo.
const (
	headerTask   = "Original user task:"
	headerResult = "Your last tool produced this result"
)

const maxResultChars = 1000

func (s *session) nextQuery(tool, display string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s\n\n", headerTask, s.s.Input)
	fmt.Fprintf(&b, "Tools used so far: %s\n\n", strings.Join(s.s.ToolsUsed, ", "))
	fmt.Fprintf(&b, "%s (%s):\n%s\n\n", headerResult, tool, truncate(display, maxResultChars))

	if g := s.gate.Guidance(tool); g != "" {
		b.WriteString(g + "\n\n")
	}
	if s.perception.ScopeLimit > 0 {
		fmt.Fprintf(&b, "Limit the answer to the %s %d entries.\n\n", s.perception.ScopeType, s.perception.ScopeLimit)
	}

	fmt.Fprintf(&b, "Step %d of %d.", s.s.Step+1, s.s.Profile.MaxSteps)
	if missing := s.gate.Missing(); len(missing) > 0 {
		fmt.Fprintf(&b, " Required steps still missing: %s.", strings.Join(missing, ", "))
	}
	b.WriteString("\nIf the task is fully done, reply with 'TERMINAL: <answer>'. Otherwise call the next tool.")
	return b.String()
}

func (s *session) correctiveQuery(missing []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s\n\n", headerTask, s.s.Input)
	fmt.Fprintf(&b, "You tried to finish, but these required steps are not done yet: %s.\n", strings.Join(missing, ", "))
	if len(s.s.ToolsUsed) > 0 {
		fmt.Fprintf(&b, "Tools used so far: %s.\n", strings.Join(s.s.ToolsUsed, ", "))
	}
	fmt.Fprintf(&b, "Step %d of %d. Call the tools that complete them.", s.s.Step+2, s.s.Profile.MaxSteps)
	return b.String()
}

func (s *session) errorQuery(tool, msg string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s\n\n", headerTask, s.s.Input)
	if tool != "" {
		fmt.Fprintf(&b, "The previous call to %s failed: %s\n", tool, msg)
	} else {
		fmt.Fprintf(&b, "The previous action could not be used: %s\n", msg)
	}
	b.WriteString("Fix the arguments or try a different tool.")
	return b.String()
}
