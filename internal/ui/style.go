package ui

import "github.com/charmbracelet/lipgloss"

var (
	openStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("4"))
	completedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	archivedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	errorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	pendingStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	priorityHigh   = lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Bold(true)
	priorityLow    = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	labelStyle     = lipgloss.NewStyle().Bold(true)
)

// StyleStatus colors a status cell.
func StyleStatus(status string) string {
	switch status {
	case "open":
		return openStyle.Render(status)
	case "completed":
		return completedStyle.Render(status)
	case "archived":
		return archivedStyle.Render(status)
	default:
		return status
	}
}

// StylePriority colors a priority cell. High priorities stand out, low
// priorities recede.
func StylePriority(priority int, cell string) string {
	switch {
	case priority >= 5:
		return priorityHigh.Render(cell)
	case priority <= 2:
		return priorityLow.Render(cell)
	default:
		return cell
	}
}

// StyleError colors an inline error message.
func StyleError(message string) string {
	return errorStyle.Render(message)
}

// StylePending marks a cell whose entity has a request in flight.
func StylePending(cell string) string {
	return pendingStyle.Render(cell)
}

// StyleLabel renders a detail-view field label.
func StyleLabel(label string) string {
	return labelStyle.Render(label)
}
