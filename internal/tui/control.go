package tui

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/zull0910/tunos/internal/control"
	"github.com/zull0910/tunos/internal/protocol"
)

type controlModel struct {
	ctrl   *control.Controller
	frames <-chan []byte

	input   textinput.Model
	rooms   []string
	roomIdx int

	status  string
	warning string
	err     string
	offline bool
}

// NewControl builds the operator screen. frames is only drained so the
// relay can tell when the connection is gone.
func NewControl(ctrl *control.Controller, frames <-chan []byte) tea.Model {
	ti := textinput.New()
	ti.Placeholder = "Nombre del paciente"
	ti.CharLimit = 80
	ti.Width = 40
	ti.Focus()

	rooms := ctrl.Rooms()
	if len(rooms) == 0 {
		rooms = []string{"1"}
	}
	return controlModel{ctrl: ctrl, frames: frames, input: ti, rooms: rooms}
}

func (m controlModel) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, waitForFrame(m.frames))
}

func (m controlModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case frameMsg:
		return m, waitForFrame(m.frames)
	case disconnectedMsg:
		m.offline = true
		return m, nil
	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m controlModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	_, active := m.ctrl.Active()
	switch msg.String() {
	case "ctrl+c":
		return m, tea.Quit
	case "up":
		if !active {
			m.roomIdx = (m.roomIdx - 1 + len(m.rooms)) % len(m.rooms)
		}
		return m, nil
	case "down", "tab":
		if !active {
			m.roomIdx = (m.roomIdx + 1) % len(m.rooms)
		}
		return m, nil
	case "enter":
		if active {
			return m, nil
		}
		return m.call(), nil
	case "esc":
		return m.finish("cancelado", m.ctrl.Cancel), nil
	case "ctrl+s":
		return m.finish("atendido", m.ctrl.Complete), nil
	}
	if active {
		return m, nil
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m controlModel) call() controlModel {
	m.err, m.warning = "", ""
	ticket, err := m.ctrl.IssueCall(m.input.Value(), m.rooms[m.roomIdx])
	var verr *control.ValidationError
	switch {
	case errors.As(err, &verr):
		m.err = verr.Message
		return m
	case errors.Is(err, control.ErrNotDelivered):
		m.warning = "el llamado no llegó a las pantallas"
	case err != nil:
		m.err = err.Error()
		return m
	}
	m.status = fmt.Sprintf("Llamando a %s al consultorio %s", ticket.PatientName, ticket.Room)
	m.input.SetValue("")
	return m
}

func (m controlModel) finish(label string, finish func() (protocol.Ticket, bool, error)) controlModel {
	ticket, changed, err := finish()
	if !changed {
		return m
	}
	m.err, m.warning = "", ""
	if errors.Is(err, control.ErrNotDelivered) {
		m.warning = "las pantallas no recibieron el cambio"
	}
	m.status = fmt.Sprintf("%s %s", ticket.PatientName, label)
	return m
}

func (m controlModel) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Sistema de Turnos · Control"))
	b.WriteString("\n\n")

	active, isActive := m.ctrl.Active()
	if isActive {
		b.WriteString(headerStyle.Render("En llamado"))
		b.WriteString("\n  ")
		b.WriteString(nameStyle.Render(active.PatientName))
		b.WriteString("  consultorio ")
		b.WriteString(roomStyle.Render(active.Room))
		b.WriteString("\n\n")
		b.WriteString(mutedStyle.Render("esc cancelar · ctrl+s atender · ctrl+c salir"))
	} else {
		b.WriteString(headerStyle.Render("Paciente"))
		b.WriteString("\n")
		b.WriteString(m.input.View())
		b.WriteString("\n\n")
		b.WriteString(headerStyle.Render("Consultorio"))
		b.WriteString("\n")
		for i, room := range m.rooms {
			if i == m.roomIdx {
				b.WriteString(selectStyle.Render("> " + room))
			} else {
				b.WriteString("  " + room)
			}
			b.WriteString("\n")
		}
		b.WriteString("\n")
		b.WriteString(mutedStyle.Render("enter llamar · ↑/↓ consultorio · ctrl+c salir"))
	}
	b.WriteString("\n")

	if m.status != "" {
		b.WriteString("\n" + m.status)
	}
	if m.err != "" {
		b.WriteString("\n" + errorStyle.Render(m.err))
	}
	if m.warning != "" {
		b.WriteString("\n" + warningStyle.Render(m.warning))
	}
	if m.offline {
		b.WriteString("\n" + errorStyle.Render("sin conexión con el relay"))
	}
	return b.String() + "\n"
}
