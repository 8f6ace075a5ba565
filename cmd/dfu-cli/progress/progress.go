// Package progress renders the upload/download/erase progress dfu.Progress
// reports, as a bubbles progress bar when stderr is a terminal and as plain
// percentage lines otherwise.
package progress

import (
	"fmt"
	"os"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
)

var stageStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))

// Reporter implements dfu.Progress, rendering to stderr.
type Reporter struct {
	bar       progress.Model
	isTTY     bool
	stage     string
	lastWidth int
}

// New builds a Reporter. TTY detection happens once at construction.
func New() *Reporter {
	return &Reporter{
		bar:   progress.New(progress.WithDefaultGradient()),
		isTTY: isatty.IsTerminal(os.Stderr.Fd()),
	}
}

// Stage announces a new phase and resets the line.
func (r *Reporter) Stage(name string) {
	if r.stage != "" {
		fmt.Fprintln(os.Stderr)
	}
	r.stage = name
	if r.isTTY {
		fmt.Fprintln(os.Stderr, stageStyle.Render(name+"..."))
	} else {
		fmt.Fprintf(os.Stderr, "%s...\n", name)
	}
}

// Update renders current/total, overwriting the previous line on a TTY.
func (r *Reporter) Update(current, total int) {
	if total <= 0 {
		return
	}
	pct := float64(current) / float64(total)
	if pct > 1 {
		pct = 1
	}

	if r.isTTY {
		line := r.bar.ViewAs(pct)
		fmt.Fprintf(os.Stderr, "\r%s", line)
		if w := lipgloss.Width(line); w < r.lastWidth {
			fmt.Fprint(os.Stderr, spaces(r.lastWidth-w))
		}
		r.lastWidth = lipgloss.Width(line)
		return
	}

	fmt.Fprintf(os.Stderr, "\r  %3.0f%% (%d/%d)", pct*100, current, total)
}

// Done terminates the current stage's line.
func (r *Reporter) Done() {
	if r.stage != "" {
		fmt.Fprintln(os.Stderr)
	}
}

func spaces(n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = ' '
	}
	return string(b)
}
