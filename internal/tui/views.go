package tui

import (
	"fmt"
	"strings"

	"github.com/AvengeMedia/dankcenter/internal/policy"
)

const defaultLogLines = 10

func (m Model) View() string {
	var b strings.Builder

	b.WriteString(m.renderHeader())
	b.WriteString("\n\n")

	switch m.state {
	case StateStarting:
		b.WriteString(fmt.Sprintf("%s %s", m.spinner.View(), m.styles.Normal.Render("Preparing...")))
		b.WriteString("\n\n")
		b.WriteString(m.styles.Subtle.Render("Ctrl+C: Cancel"))
	case StateStreaming:
		b.WriteString(m.viewStreaming())
	case StateDone:
		b.WriteString(m.viewDone())
	}

	b.WriteString("\n")
	return b.String()
}

func (m Model) renderHeader() string {
	verb := "Installing"
	if m.op.Kind == policy.Uninstall {
		verb = "Removing"
	}
	title := m.styles.Title.Render(fmt.Sprintf("%s %s", verb, m.op.Name))
	badge := m.styles.Badge.Render(m.op.Source.Label())
	return title + " " + badge
}

func (m Model) viewStreaming() string {
	var b strings.Builder

	status := LastMeaningfulLine(m.lines)
	if status == "" {
		status = "Working..."
	}
	b.WriteString(fmt.Sprintf("%s %s", m.spinner.View(), m.styles.Normal.Render(m.truncate(status))))
	b.WriteString("\n")

	if m.command != "" {
		b.WriteString(m.styles.Subtle.Render("$ " + m.command))
		b.WriteString("\n")
	}

	if len(m.lines) > 0 {
		b.WriteString("\n")
		b.WriteString(m.styles.Subtle.Render("Live Output:"))
		b.WriteString("\n")
		b.WriteString(m.styles.LogBox.Render(strings.Join(m.tail(), "\n")))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(m.input.View())
	b.WriteString("\n\n")
	b.WriteString(m.styles.Subtle.Render("Enter: Send input, Ctrl+C: Cancel"))

	return b.String()
}

func (m Model) viewDone() string {
	var b strings.Builder

	if m.outcome == nil {
		return ""
	}

	if m.outcome.Success {
		b.WriteString(m.styles.Success.Render("✓ " + m.outcome.Message))
	} else if m.cancelled {
		b.WriteString(m.styles.Warning.Render("✗ " + m.outcome.Message))
	} else {
		b.WriteString(m.styles.Error.Render("✗ Operation failed"))
		b.WriteString("\n\n")
		b.WriteString(m.styles.LogBox.Render(m.outcome.Message))
	}

	b.WriteString("\n\n")
	b.WriteString(m.styles.Subtle.Render("Enter/q: Exit"))
	return b.String()
}

// tail returns the log lines that fit the window.
func (m Model) tail() []string {
	n := defaultLogLines
	if m.height > 0 {
		// header, status, command, input and help take about a dozen rows
		n = max(m.height-12, 3)
	}
	start := max(len(m.lines)-n, 0)

	out := make([]string, 0, len(m.lines)-start)
	for _, l := range m.lines[start:] {
		out = append(out, m.truncate(l))
	}
	return out
}

func (m Model) truncate(s string) string {
	limit := m.width - 6
	if limit <= 0 {
		return s
	}
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit-1]) + "…"
}
