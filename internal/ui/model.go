// Package ui is the bubbletea/lipgloss terminal presentation layer,
// adapted from the teacher's internal/ui (its matrix-styled handshake
// screen and dual progress bars) to the session states this SDK's
// outbound.ShareSession and inbound.ReceiveRequest actually emit.
package ui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Phase is a coarse view-layer grouping of the sender/receiver states; the
// model doesn't need to distinguish StateRequesting from StateConnecting
// for rendering purposes, for instance.
type Phase int

const (
	PhaseHandshake Phase = iota
	PhaseTransferring
	PhaseDone
	PhaseDeclined
	PhaseCancelled
	PhaseError
)

type Role int

const (
	RoleSender Role = iota
	RoleReceiver
)

// Messages the transfer goroutine sends into the bubbletea program.
type StatusMsg string
type ErrorMsg error
type MediumMsg string // "WiFi" or "BLE"
type ProgressMsg struct {
	Fraction float64
}
type DeclinedMsg struct{}
type CancelledMsg struct{}
type DoneMsg struct{ Paths []string }

type Model struct {
	Role     Role
	Phase    Phase
	PeerName string
	LinkOrID string

	Spinner  spinner.Model
	Progress progress.Model

	Medium string
	Status string
	Err    error
	Paths  []string
}

// NewModel mirrors the teacher's NewModel constructor shape (role,
// display name, a short identifying string), substituting the share
// request id / convenience link for the teacher's pairing code.
func NewModel(role Role, peerName, linkOrID string) Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(ColorSecondary)

	p := progress.New(
		progress.WithGradient(string(ColorPrimary), string(ColorSecondary)),
		progress.WithWidth(40),
	)

	return Model{
		Role:     role,
		Phase:    PhaseHandshake,
		PeerName: peerName,
		LinkOrID: linkOrID,
		Spinner:  s,
		Progress: p,
		Status:   "Connecting...",
	}
}

func (m Model) Init() tea.Cmd {
	return m.Spinner.Tick
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyEsc {
			return m, tea.Quit
		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.Spinner, cmd = m.Spinner.Update(msg)
		return m, cmd

	case progress.FrameMsg:
		newProgress, cmd := m.Progress.Update(msg)
		m.Progress = newProgress.(progress.Model)
		return m, cmd

	case StatusMsg:
		m.Status = string(msg)

	case MediumMsg:
		m.Medium = string(msg)

	case ProgressMsg:
		m.Phase = PhaseTransferring
		cmd := m.Progress.SetPercent(msg.Fraction)
		return m, cmd

	case DeclinedMsg:
		m.Phase = PhaseDeclined
		return m, tea.Quit

	case CancelledMsg:
		m.Phase = PhaseCancelled
		return m, tea.Quit

	case DoneMsg:
		m.Phase = PhaseDone
		m.Paths = msg.Paths
		return m, tea.Quit

	case ErrorMsg:
		m.Phase = PhaseError
		m.Err = msg
		return m, tea.Quit
	}

	return m, nil
}

func (m Model) View() string {
	if m.Err != nil {
		return ContainerStyle.Render(
			lipgloss.JoinVertical(lipgloss.Left,
				ErrorStyle.Render("Error"),
				fmt.Sprintf("%v", m.Err),
			),
		)
	}

	var content string
	switch m.Phase {
	case PhaseHandshake:
		header := TitleStyle.Render("InterShare")
		info := ""
		if m.LinkOrID != "" {
			info = ViewCode(m.LinkOrID)
		}
		status := StatusStyle.Render(m.Status)
		content = lipgloss.JoinVertical(lipgloss.Center, header, info, m.Spinner.View(), status)

	case PhaseTransferring:
		medium := m.Medium
		if medium == "" {
			medium = "..."
		}
		telemetry := lipgloss.JoinHorizontal(lipgloss.Top,
			StatLabelStyle.Render("PEER"), StatValueStyle.Render(m.PeerName),
			lipgloss.NewStyle().Width(4).Render(""),
			StatLabelStyle.Render("MEDIUM"), StatValueStyle.Render(medium),
		)
		content = lipgloss.JoinVertical(lipgloss.Center,
			TitleStyle.Render("Transfer In Progress"), telemetry, " ", m.Progress.View())

	case PhaseDeclined:
		content = ErrorStyle.Render("Declined by peer")

	case PhaseCancelled:
		content = ErrorStyle.Render("Cancelled")

	case PhaseDone:
		content = TitleStyle.Render("Transfer Complete!")
	}

	return ContainerStyle.Render(content)
}
