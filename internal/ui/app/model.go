package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	sessiondto "timetrack/internal/modules/session/dto"
	apperrors "timetrack/internal/platform/errors"
	"timetrack/internal/ui/components"
	"timetrack/internal/ui/theme"
	sessionsview "timetrack/internal/ui/views/sessions"
)

// ─── ports ───────────────────────────────────────────────────────────────────

type sessionPort interface {
	Start(ctx context.Context, name string) (sessiondto.SessionOutput, error)
	Stop(ctx context.Context, sessionID string) (bool, error)
	Restart(ctx context.Context, sessionID string) (bool, error)
	Remove(ctx context.Context, sessionID string) (bool, error)
	List(ctx context.Context, all bool) ([]sessiondto.SessionOutput, error)
	Stats(ctx context.Context, sessionID string) (sessiondto.StatisticsOutput, error)
	StartActivity(ctx context.Context, sessionID string) (sessiondto.ActivityOutput, error)
	StopRunningActivity(ctx context.Context, sessionID string) (bool, error)
	SwitchActivity(ctx context.Context, sessionID string) (sessiondto.SwitchOutput, error)
	PersistErr() error
}

// PaletteHints must stay in sync with the switch in executePalette.
var PaletteHints = []string{
	"start <name>",
	"stop",
	"restart",
	"remove",
	"activity:start",
	"activity:stop",
	"track",
}

// ─── async messages ───────────────────────────────────────────────────────────

type tickMsg time.Time

type actionDoneMsg struct {
	status string
	err    error
}

type trackedMsg struct {
	sessionID string
	out       sessiondto.SwitchOutput
	err       error
}

// ─── key bindings ─────────────────────────────────────────────────────────────

type keyMap struct {
	StartActivity key.Binding
	StopActivity  key.Binding
	StopSession   key.Binding
	Restart       key.Binding
	Track         key.Binding
	Help          key.Binding
	Palette       key.Binding
	Quit          key.Binding
}

func defaultKeys() keyMap {
	return keyMap{
		StartActivity: key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "start activity")),
		StopActivity:  key.NewBinding(key.WithKeys("x"), key.WithHelp("x", "stop activity")),
		StopSession:   key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "stop session")),
		Restart:       key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "restart session")),
		Track:         key.NewBinding(key.WithKeys("t"), key.WithHelp("t", "toggle auto-track")),
		Help:          key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
		Palette:       key.NewBinding(key.WithKeys(":"), key.WithHelp(":", "palette")),
		Quit:          key.NewBinding(key.WithKeys("ctrl+c", "q"), key.WithHelp("q", "quit")),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Help, k.Palette, k.Track, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.StartActivity, k.StopActivity},
		{k.StopSession, k.Restart, k.Track},
		{k.Help, k.Palette, k.Quit},
	}
}

// ─── model ───────────────────────────────────────────────────────────────────

// Model is the root of the watch view. It refreshes the session list on every
// tick and, while auto-tracking, polls the focused window for one session.
type Model struct {
	session  sessionPort
	view     sessionsview.Model
	interval time.Duration

	keys     keyMap
	help     help.Model
	showHelp bool
	palette  components.Palette
	tracking string
	status   string
	width    int
	height   int
}

func NewModel(session sessionPort, interval time.Duration) Model {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return Model{
		session:  session,
		view:     sessionsview.New(session),
		interval: interval,
		keys:     defaultKeys(),
		help:     help.New(),
		palette:  components.NewPalette(PaletteHints),
		status:   "ready",
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.view.Init(), m.tick())
}

// Tracking returns the id of the auto-tracked session, or "".
func (m Model) Tracking() string { return m.tracking }

// Status returns the current status-bar message.
func (m Model) Status() string { return m.status }

// ─── update ───────────────────────────────────────────────────────────────────

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	// The palette intercepts all input while open.
	if m.palette.Visible() {
		var cmd tea.Cmd
		m.palette, cmd = m.palette.Update(msg)
		return m, cmd
	}

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.palette.SetWidth(min(m.width-4, 80))
		m.help.Width = m.width
		var cmd tea.Cmd
		m.view, cmd = m.view.Update(tea.WindowSizeMsg{Width: m.width, Height: m.height - 3})
		return m, cmd

	case tickMsg:
		cmds = append(cmds, m.view.Refresh(), m.tick())
		if m.tracking != "" {
			cmds = append(cmds, m.trackCmd(m.tracking))
		}
		return m, tea.Batch(cmds...)

	case trackedMsg:
		switch {
		case msg.err != nil:
			m.status = "auto-track stopped: " + msg.err.Error()
			if errors.Is(msg.err, apperrors.ErrNotFound) || errors.Is(msg.err, apperrors.ErrInvalidState) {
				m.tracking = ""
			}
		case msg.out.Switched:
			m.status = fmt.Sprintf("tracking %s  %s", msg.out.Activity.ApplicationName, msg.out.Activity.FilePath)
			cmds = append(cmds, m.view.Refresh())
		}
		return m, tea.Batch(cmds...)

	case actionDoneMsg:
		if msg.err != nil {
			m.status = msg.err.Error()
		} else {
			m.status = msg.status
		}
		return m, m.view.Refresh()

	case components.PaletteSubmitMsg:
		return m.executePalette(msg.Input)

	case components.PaletteCancelMsg:
		m.status = "ready"
		return m, nil

	case tea.KeyMsg:
		if m.showHelp {
			if msg.String() == "?" || msg.String() == "esc" {
				m.showHelp = false
			}
			return m, nil
		}
		if m.view.Filtering() {
			break
		}

		selected, hasSelection := m.view.SelectedSessionID()
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Help):
			m.showHelp = true
			return m, nil
		case key.Matches(msg, m.keys.Palette):
			return m, m.palette.Open()
		case key.Matches(msg, m.keys.StartActivity) && hasSelection:
			return m, m.startActivityCmd(selected)
		case key.Matches(msg, m.keys.StopActivity) && hasSelection:
			return m, m.stopActivityCmd(selected)
		case key.Matches(msg, m.keys.StopSession) && hasSelection:
			return m, m.boolCmd(m.session.Stop, selected, "session stopped", "session not found or already stopped")
		case key.Matches(msg, m.keys.Restart) && hasSelection:
			return m, m.boolCmd(m.session.Restart, selected, "session restarted", "session not found or already active")
		case key.Matches(msg, m.keys.Track) && hasSelection:
			return m.toggleTracking(selected)
		}
	}

	var cmd tea.Cmd
	m.view, cmd = m.view.Update(msg)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

// ─── view ────────────────────────────────────────────────────────────────────

func (m Model) View() string {
	header := m.renderHeader()
	statusBar := m.renderStatusBar()
	contentH := m.height - lipgloss.Height(header) - lipgloss.Height(statusBar)
	if contentH < 1 {
		contentH = 1
	}

	var content string
	switch {
	case m.showHelp:
		content = lipgloss.NewStyle().Width(m.width).Height(contentH).
			Render(m.help.View(m.keys))
	case m.palette.Visible():
		content = lipgloss.Place(m.width, contentH,
			lipgloss.Center, lipgloss.Center, m.palette.View())
	default:
		content = m.view.View()
	}
	return lipgloss.JoinVertical(lipgloss.Left, header, content, statusBar)
}

func (m Model) renderHeader() string {
	bar := "timetrack  " + theme.Hot.Render(" watch ")
	if m.tracking != "" {
		bar += "  " + theme.Running.Render("● auto-tracking "+shortID(m.tracking))
	}
	return lipgloss.NewStyle().Background(theme.Mantle).Width(m.width).Render(bar) + "\n"
}

func (m Model) renderStatusBar() string {
	left := m.status
	right := theme.Muted.Render("?:help  :::palette  t:track  q:quit")
	gap := m.width - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 1 {
		gap = 1
	}
	bar := left + strings.Repeat(" ", gap) + right
	return "\n" + lipgloss.NewStyle().Background(theme.Mantle).Width(m.width).Render(bar)
}

// ─── palette execution ────────────────────────────────────────────────────────

func (m Model) executePalette(input string) (tea.Model, tea.Cmd) {
	parts := strings.Fields(input)
	if len(parts) == 0 {
		return m, nil
	}
	if parts[0] == "start" {
		name := strings.TrimSpace(strings.TrimPrefix(input, parts[0]))
		if name == "" {
			m.status = "usage: start <name>"
			return m, nil
		}
		return m, m.startSessionCmd(name)
	}

	selected, ok := m.view.SelectedSessionID()
	if !ok {
		m.status = "no session selected"
		return m, nil
	}
	switch parts[0] {
	case "stop":
		return m, m.boolCmd(m.session.Stop, selected, "session stopped", "session not found or already stopped")
	case "restart":
		return m, m.boolCmd(m.session.Restart, selected, "session restarted", "session not found or already active")
	case "remove":
		if m.tracking == selected {
			m.tracking = ""
		}
		return m, m.boolCmd(m.session.Remove, selected, "session removed", "session not found")
	case "activity:start":
		return m, m.startActivityCmd(selected)
	case "activity:stop":
		return m, m.stopActivityCmd(selected)
	case "track":
		return m.toggleTracking(selected)
	default:
		m.status = "unknown command: " + parts[0]
	}
	return m, nil
}

func (m Model) toggleTracking(sessionID string) (tea.Model, tea.Cmd) {
	if m.tracking == sessionID {
		m.tracking = ""
		m.status = "auto-track off"
		return m, m.stopActivityCmd(sessionID)
	}
	m.tracking = sessionID
	m.status = "auto-track on"
	return m, m.trackCmd(sessionID)
}

// ─── async commands ───────────────────────────────────────────────────────────

func (m Model) tick() tea.Cmd {
	return tea.Tick(m.interval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m Model) trackCmd(sessionID string) tea.Cmd {
	return func() tea.Msg {
		out, err := m.session.SwitchActivity(context.Background(), sessionID)
		if err == nil {
			err = m.session.PersistErr()
		}
		return trackedMsg{sessionID: sessionID, out: out, err: err}
	}
}

func (m Model) startSessionCmd(name string) tea.Cmd {
	return func() tea.Msg {
		out, err := m.session.Start(context.Background(), name)
		if err != nil {
			return actionDoneMsg{err: err}
		}
		return m.done("session started: " + out.ID)
	}
}

func (m Model) startActivityCmd(sessionID string) tea.Cmd {
	return func() tea.Msg {
		out, err := m.session.StartActivity(context.Background(), sessionID)
		if err != nil {
			return actionDoneMsg{err: err}
		}
		return m.done(fmt.Sprintf("activity started: %s  %s", out.ApplicationName, out.FilePath))
	}
}

func (m Model) stopActivityCmd(sessionID string) tea.Cmd {
	return m.boolCmd(m.session.StopRunningActivity, sessionID, "activity stopped", "no running activity")
}

func (m Model) boolCmd(op func(context.Context, string) (bool, error), sessionID, okStatus, missStatus string) tea.Cmd {
	return func() tea.Msg {
		ok, err := op(context.Background(), sessionID)
		if err != nil {
			return actionDoneMsg{err: err}
		}
		if !ok {
			return actionDoneMsg{status: missStatus}
		}
		return m.done(okStatus)
	}
}

func (m Model) done(status string) actionDoneMsg {
	if err := m.session.PersistErr(); err != nil {
		return actionDoneMsg{err: fmt.Errorf("save failed: %w", err)}
	}
	return actionDoneMsg{status: status}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
