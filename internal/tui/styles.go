package tui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("15")).Background(lipgloss.Color("25")).Padding(0, 1)
	headerStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	nameStyle    = lipgloss.NewStyle().Bold(true)
	roomStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10"))
	selectStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("5")).Bold(true)
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	warningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
)

type frameMsg []byte

type disconnectedMsg struct{}

// waitForFrame turns the next relay frame into a message. A nil source
// never produces one.
func waitForFrame(frames <-chan []byte) tea.Cmd {
	if frames == nil {
		return nil
	}
	return func() tea.Msg {
		raw, ok := <-frames
		if !ok {
			return disconnectedMsg{}
		}
		return frameMsg(raw)
	}
}
