package console

import (
	"fmt"
	"io"
	"sync"
	"time"

	"sharehub/pkg/types"

	"github.com/charmbracelet/lipgloss"
)

// Pane renders status and log lines to a terminal, taking the place of the
// colored log pane a GUI would show. It holds no core state and no core
// locks; the coordinator only ever writes into it.
type Pane struct {
	mu  sync.Mutex
	out io.Writer

	statusStyle  lipgloss.Style
	infoStyle    lipgloss.Style
	errorStyle   lipgloss.Style
	successStyle lipgloss.Style
	timeStyle    lipgloss.Style
}

// NewPane creates a pane writing to out, usually os.Stdout.
func NewPane(out io.Writer) *Pane {
	return &Pane{
		out: out,
		statusStyle: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#7571f9")),
		infoStyle:    lipgloss.NewStyle().Foreground(lipgloss.Color("#00d2d3")),
		errorStyle:   lipgloss.NewStyle().Foreground(lipgloss.Color("#ff6b6b")),
		successStyle: lipgloss.NewStyle().Foreground(lipgloss.Color("#42c767")),
		timeStyle:    lipgloss.NewStyle().Foreground(lipgloss.Color("#6c757d")),
	}
}

// SetStatus replaces the current status line.
func (p *Pane) SetStatus(text string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintln(p.out, p.statusStyle.Render("▸ "+text))
}

// AddLog appends a timestamped, colored log entry.
func (p *Pane) AddLog(level types.LogLevel, text string) {
	style := p.infoStyle
	switch level {
	case types.LogError:
		style = p.errorStyle
	case types.LogSuccess:
		style = p.successStyle
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	stamp := p.timeStyle.Render(time.Now().Format("2006-01-02 15:04:05"))
	fmt.Fprintf(p.out, "%s %s\n", stamp, style.Render(fmt.Sprintf("[%s] %s", level, text)))
}
