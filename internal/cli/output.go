package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"os"
	"slices"
	"strings"

	"github.com/aretw0/cortex"
	"github.com/aretw0/cortex/internal/presentation/tui"
	"github.com/aretw0/cortex/pkg/domain"
)

// ResultJSON is the machine-readable form of a finished session.
type ResultJSON struct {
	SessionID string            `json:"session_id"`
	Answer    string            `json:"answer"`
	Outcome   domain.Outcome    `json:"outcome"`
	Steps     int               `json:"steps"`
	Cycles    int               `json:"cycles"`
	ToolsUsed []string          `json:"tools_used"`
	Vars      map[string]string `json:"vars,omitempty"`
}

// WriteJSON writes res as one indented JSON document.
func WriteJSON(w io.Writer, res cortex.Result) error {
	tools := res.ToolsUsed
	if tools == nil {
		tools = []string{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(ResultJSON{
		SessionID: res.SessionID,
		Answer:    res.Answer,
		Outcome:   res.Outcome,
		Steps:     res.Steps,
		Cycles:    res.Cycles,
		ToolsUsed: tools,
		Vars:      res.Vars,
	})
}

// Summary renders res as markdown: the answer followed by a status footer.
func Summary(res cortex.Result) string {
	var b strings.Builder
	b.WriteString(res.Answer)
	b.WriteString("\n\n---\n\n")
	fmt.Fprintf(&b, "*%s* after %d step(s)", res.Outcome, res.Steps)
	if len(res.ToolsUsed) > 0 {
		fmt.Fprintf(&b, " using `%s`", strings.Join(res.ToolsUsed, "`, `"))
	}
	b.WriteString("\n")
	for _, k := range slices.Sorted(maps.Keys(res.Vars)) {
		fmt.Fprintf(&b, "\n- %s: %s", k, res.Vars[k])
	}
	return b.String()
}

// WriteAnswer prints the summary of res to w. Markdown is rendered with
// glamour when out is a terminal and printed as-is otherwise.
func WriteAnswer(w io.Writer, out *os.File, res cortex.Result) error {
	render := tui.Plain
	if out != nil && tui.IsTerminal(out) {
		render = tui.NewRenderer(tui.Width(out, 80))
	}
	text, err := render(Summary(res))
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, strings.TrimRight(text, "\n"))
	return err
}
