package cli

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/nidhogg/honeycomb/internal/agent"
	"github.com/nidhogg/honeycomb/internal/task"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("62"))
	idStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	agentStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))

	statusPending   = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	statusAssigned  = lipgloss.NewStyle().Foreground(lipgloss.Color("226"))
	statusCompleted = lipgloss.NewStyle().Foreground(lipgloss.Color("46"))
	statusFailed    = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
)

func renderTaskStatus(s task.Status) string {
	switch s {
	case task.StatusAssigned:
		return statusAssigned.Render(string(s))
	case task.StatusCompleted:
		return statusCompleted.Render(string(s))
	case task.StatusFailed:
		return statusFailed.Render(string(s))
	default:
		return statusPending.Render(string(s))
	}
}

func renderAgentStatus(s agent.Status) string {
	if s == agent.StatusBusy {
		return statusAssigned.Render(string(s))
	}
	return statusCompleted.Render(string(s))
}
