package lint

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

var (
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#e53935")).Bold(true)
	warningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFC107")).Bold(true)
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#8BC34A")).Bold(true)
	pathStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#2196F3"))
	ruleStyle    = lipgloss.NewStyle().Faint(true)
)

// Render formats the report for a terminal, one finding per line.
func (r *Report) Render() string {
	if r.Clean() {
		return fmt.Sprintf("%s %d files checked, no problems\n",
			successStyle.Render("✓"), r.Checked)
	}

	var b strings.Builder
	for _, f := range r.Findings {
		label := warningStyle.Render("warning")
		if f.Severity == SeverityError {
			label = errorStyle.Render("error")
		}
		fmt.Fprintf(&b, "%s  %s  %s  %s\n",
			pathStyle.Render(f.Path), label, f.Message, ruleStyle.Render(f.Rule))
	}

	fmt.Fprintf(&b, "\n%d %s, %d %s (%d files checked in %s)\n",
		r.Errors, plural(r.Errors, "error", "errors"),
		r.Warnings, plural(r.Warnings, "warning", "warnings"),
		r.Checked, r.Duration.Round(time.Millisecond))
	return b.String()
}

// JSON emits the machine-readable report.
func (r *Report) JSON() ([]byte, error) {
	return json.MarshalIndent(r, "", "  ")
}

func plural(n int, singular, pluralForm string) string {
	if n == 1 {
		return singular
	}
	return pluralForm
}
