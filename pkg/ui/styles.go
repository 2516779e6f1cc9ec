package ui

import "github.com/charmbracelet/lipgloss"

var (
	headerStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	countStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("63")).Bold(true)
	selfLabelStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("118"))
	otherLabelStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("213"))
	timeStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	noticeStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("246")).Italic(true)
	typingStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("63")).Italic(true)
	okStatusStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("118")).Bold(true)
	badStatusStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	alertStyle      = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("196")).
			Padding(1, 2)
	blocksHintStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)
