package tui

import (
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/zull0910/tunos/internal/display"
)

type displayModel struct {
	screen  *display.Screen
	frames  <-chan []byte
	width   int
	offline bool
}

func NewDisplay(screen *display.Screen, frames <-chan []byte) tea.Model {
	return displayModel{screen: screen, frames: frames}
}

func (m displayModel) Init() tea.Cmd {
	return waitForFrame(m.frames)
}

func (m displayModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil
	case frameMsg:
		m.screen.ApplyFrame(msg)
		return m, waitForFrame(m.frames)
	case disconnectedMsg:
		m.offline = true
		return m, nil
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m displayModel) View() string {
	nameWidth := 32
	if m.width > 0 {
		nameWidth = max(16, m.width-16)
	}
	nameCol := lipgloss.NewStyle().Width(nameWidth)
	roomCol := lipgloss.NewStyle().Width(12).Align(lipgloss.Right)

	var b strings.Builder
	b.WriteString(titleStyle.Render("Sistema de Turnos"))
	b.WriteString("\n\n")
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top,
		nameCol.Render(headerStyle.Render("PACIENTE")),
		roomCol.Render(headerStyle.Render("CONSULTORIO")),
	))
	b.WriteString("\n")

	tickets := m.screen.Board().Tickets()
	if len(tickets) == 0 {
		b.WriteString(mutedStyle.Render("Sin llamados"))
		b.WriteString("\n")
	}
	for _, ticket := range tickets {
		b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top,
			nameCol.Render(nameStyle.Render(ticket.PatientName)),
			roomCol.Render(roomStyle.Render(ticket.Room)),
		))
		b.WriteString("\n")
	}
	if m.offline {
		b.WriteString("\n" + errorStyle.Render("sin conexión con el relay"))
	}
	return b.String()
}
