// Package interactive provides a terminal UI for watching a running
// DHCP client or server, built the same way NIAC's operator console
// was: a bubbletea model ticking once a second over a small read-only
// view of the daemon's state (SPEC_FULL §2 item 5, "vulcan lease").
package interactive

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/vulcan-rs/vulcan/pkg/client"
	"github.com/vulcan-rs/vulcan/pkg/server"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("170")).
			Background(lipgloss.Color("235")).
			Padding(0, 1)

	boundStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("82")).
			Bold(true)

	pendingStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("220"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true)

	statsStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("246"))

	helpKeyStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("86"))
)

// ClientView is the read-only slice of client.Engine the TUI polls.
type ClientView interface {
	State() client.DhcpState
	Lease() client.LeaseState
}

// ServerView is the read-only slice of server.Dispatcher the TUI polls.
type ServerView interface {
	Leases() map[server.StorageKey]server.Lease
}

type tickMsg time.Time

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg { return tickMsg(t) })
}

type model struct {
	iface     string
	clientVw  ClientView
	serverVw  ServerView
	startTime time.Time
	uptime    time.Duration
	showHelp  bool
}

func (m model) Init() tea.Cmd {
	return tea.Batch(tickCmd(), tea.EnterAltScreen)
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "h", "?":
			m.showHelp = !m.showHelp
		}
		return m, nil
	case tickMsg:
		m.uptime = time.Since(m.startTime)
		return m, tickCmd()
	}
	return m, nil
}

func (m model) View() string {
	var s strings.Builder

	s.WriteString(titleStyle.Render(fmt.Sprintf(" vulcan lease - %s ", m.iface)))
	s.WriteString("\n\n")
	s.WriteString(statsStyle.Render(fmt.Sprintf("Uptime: %s", formatDuration(m.uptime))))
	s.WriteString("\n\n")

	if m.clientVw != nil {
		s.WriteString(m.renderClient())
	}
	if m.serverVw != nil {
		s.WriteString(m.renderServer())
	}

	if m.showHelp {
		s.WriteString("\n")
		s.WriteString(m.renderHelp())
	}

	s.WriteString("\n\nControls: ")
	s.WriteString(helpKeyStyle.Render("[h]"))
	s.WriteString(" Help  ")
	s.WriteString(lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Render("[q]"))
	s.WriteString(" Quit")

	return s.String()
}

func (m model) renderClient() string {
	state := m.clientVw.State()
	lease := m.clientVw.Lease()

	style := pendingStyle
	if state == client.Bound {
		style = boundStyle
	}

	var s strings.Builder
	s.WriteString(fmt.Sprintf("State:   %s\n", style.Render(state.String())))
	if lease.OfferedIP != nil {
		s.WriteString(fmt.Sprintf("Address: %s\n", lease.OfferedIP))
	}
	if lease.ServerIdentifier != nil {
		s.WriteString(fmt.Sprintf("Server:  %s\n", lease.ServerIdentifier))
	}
	if lease.OfferedLeaseTime > 0 {
		s.WriteString(fmt.Sprintf("Lease:   %ds\n", lease.OfferedLeaseTime))
	}
	return s.String()
}

func (m model) renderServer() string {
	leases := m.serverVw.Leases()

	var s strings.Builder
	s.WriteString(fmt.Sprintf("Committed leases: %d\n\n", len(leases)))
	for key, l := range leases {
		s.WriteString(fmt.Sprintf("  %-17s %-15s %ds\n", key.HardwareAddr, l.IPAddr, l.LeaseSeconds))
	}
	return s.String()
}

func (m model) renderHelp() string {
	var s strings.Builder
	s.WriteString("Keyboard shortcuts:\n")
	s.WriteString("  [h] toggle this help\n")
	s.WriteString("  [q] quit\n")
	return s.String()
}

func formatDuration(d time.Duration) string {
	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60
	return fmt.Sprintf("%02d:%02d:%02d", hours, minutes, seconds)
}

// Run starts the TUI. Exactly one of clientVw/serverVw should be
// non-nil, matching whichever role this process runs.
func Run(iface string, clientVw ClientView, serverVw ServerView) error {
	m := model{iface: iface, clientVw: clientVw, serverVw: serverVw, startTime: time.Now()}
	p := tea.NewProgram(m, tea.WithAltScreen())
	_, err := p.Run()
	return err
}
