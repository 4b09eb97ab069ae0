package main

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/voxform/voxform/pkg/core/types"
)

var (
	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#00ff9f")).
			Padding(0, 1)
	titleStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#00ff9f"))
	labelStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#6e7681"))
	valueStyle     = lipgloss.NewStyle()
	highlightStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#ffd866"))
	roleStyle      = lipgloss.NewStyle().Bold(true)
)

// renderRecord draws the record side panel. Recently changed fields are
// highlighted until their 2-second window expires.
func renderRecord(title string, record *types.Record) string {
	recent := make(map[string]bool)
	for _, name := range record.RecentlyChanged() {
		recent[name] = true
	}

	width := 0
	for _, f := range record.Fields() {
		if len(f.Label) > width {
			width = len(f.Label)
		}
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render(title))
	b.WriteString("\n")
	for _, f := range record.Fields() {
		label := labelStyle.Render(padRight(f.Label, width))
		value := record.Get(f.Name)
		if value == "" {
			value = "-"
		}
		style := valueStyle
		if recent[f.Name] {
			style = highlightStyle
		}
		b.WriteString(label + "  " + style.Render(value) + "\n")
	}
	return panelStyle.Render(strings.TrimRight(b.String(), "\n"))
}

func renderTurn(turn types.Turn) string {
	role := "you"
	if turn.Role == types.RoleAssistant {
		role = "voxform"
	}
	return roleStyle.Render(role+":") + " " + turn.Text
}

func padRight(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return s + strings.Repeat(" ", width-len(s))
}
