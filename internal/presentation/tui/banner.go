package tui

import (
	"fmt"
	"io"

	"github.com/muesli/termenv"
)

// PrintBanner writes the cortex banner to w using the colors the terminal
// supports.
func PrintBanner(w io.Writer) {
	p := termenv.NewOutput(w).ColorProfile()
	lines := []struct {
		text  string
		color string
	}{
		{`   ___ ___  _ __| |_ _____ __`, "#38bdf8"},
		{`  / __/ _ \| '__| __/ _ \ \/ /`, "#60a5fa"},
		{` | (_| (_) | |  | ||  __/>  < `, "#818cf8"},
		{`  \___\___/|_|   \__\___/_/\_\`, "#a78bfa"},
	}

	fmt.Fprintln(w)
	for _, l := range lines {
		fmt.Fprintln(w, termenv.String(l.text).Foreground(p.Color(l.color)))
	}
	fmt.Fprintln(w)
}
