package cognition

import (
	"fmt"
	"sort"
	"strings"
	"text/template"

	"github.com/aretw0/cortex/pkg/domain"
)

var funcs = template.FuncMap{
	"join":  strings.Join,
	"tools": describeTools,
	"sub":   func(a, b int) int { return a - b },
}

const plannerPrompt = `You are an agent that solves a request one tool call at a time.

Reply with exactly one line in one of these forms:
CALL: tool_name|param=value|nested.param=value
TERMINAL: <the final answer itself, not a description of it>

Step {{ .Step }} of {{ .MaxSteps }} ({{ sub .MaxSteps .Step }} remaining after this one).
{{- if le (sub .MaxSteps .Step) 1 }}
This is one of the last steps. Finish the task now if you can.
{{- end }}
Tools already used: {{ if .ToolsUsed }}{{ join .ToolsUsed ", " }}{{ else }}none{{ end }}

Relevant memory:
{{- range .Memories }}
- {{ .Text }}
{{- else }}
none
{{- end }}

Available tools:
{{ tools .Tools }}

Request: {{ .Input }}
Intent: {{ with .Perception.Intent }}{{ . }}{{ else }}unknown{{ end }}
{{- with .Perception.ToolHint }}
Tool hint: {{ . }}
{{- end }}
{{- if .Perception.ScopeLimit }}
Scope: {{ .Perception.ScopeType }} {{ .Perception.ScopeLimit }}
{{- end }}

Current instructions:
{{ .Query }}
`

const perceiverPrompt = `Extract structured facts from the text below.

Available tools: {{ join .ToolNames ", " }}

Text: {{ printf "%q" .Text }}

Return only a JSON object with these keys:
- "intent": a short phrase describing what the user wants
- "entities": a list of keywords or values
- "tool_hint": the name of the most useful tool, or null
- "scope_limit": a number when the user asks for a bounded list, or null
- "scope_type": what the limit applies to (for example "top"), or null
`

// describeTools renders one line per tool: name(params): description.
func describeTools(tools []domain.Tool) string {
	if len(tools) == 0 {
		return "none"
	}
	lines := make([]string, 0, len(tools))
	for _, t := range tools {
		params := t.ParameterNames()
		sort.Strings(params)
		line := fmt.Sprintf("- %s(%s)", t.Name, strings.Join(params, ", "))
		if t.Description != "" {
			line += ": " + t.Description
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}
