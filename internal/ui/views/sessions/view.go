package sessions

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	sessiondto "timetrack/internal/modules/session/dto"
	"timetrack/internal/ui/theme"
)

// ─── port ────────────────────────────────────────────────────────────────────

type Port interface {
	List(ctx context.Context, all bool) ([]sessiondto.SessionOutput, error)
	Stats(ctx context.Context, sessionID string) (sessiondto.StatisticsOutput, error)
}

// ─── messages ────────────────────────────────────────────────────────────────

type SessionsLoadedMsg struct {
	Sessions []sessiondto.SessionOutput
	Err      error
}

type StatsLoadedMsg struct {
	SessionID string
	Stats     sessiondto.StatisticsOutput
	Err       error
}

// ─── list item ───────────────────────────────────────────────────────────────

type sessionItem struct {
	session sessiondto.SessionOutput
}

func (i sessionItem) Title() string { return i.session.Name }
func (i sessionItem) Description() string {
	return fmt.Sprintf("%s  %s", statusLabel(i.session.IsActive), i.session.Duration.Round(time.Second))
}
func (i sessionItem) FilterValue() string { return i.session.Name + " " + i.session.ID }

// ─── model ───────────────────────────────────────────────────────────────────

// Model lists every session on the left and details the selected one on the
// right. The parent refreshes it on each tick.
type Model struct {
	port     Port
	list     list.Model
	preview  viewport.Model
	spinner  spinner.Model
	sessions map[string]sessiondto.SessionOutput
	stats    sessiondto.StatisticsOutput
	loading  bool
	width    int
	height   int
}

func New(port Port) Model {
	delegate := list.NewDefaultDelegate()
	delegate.Styles.SelectedTitle = delegate.Styles.SelectedTitle.Foreground(theme.Lavender).BorderForeground(theme.Lavender)
	delegate.Styles.SelectedDesc = delegate.Styles.SelectedDesc.Foreground(theme.Sapphire).BorderForeground(theme.Lavender)

	l := list.New(nil, delegate, 0, 0)
	l.Title = "Sessions"
	l.Styles.Title = theme.Title
	l.SetShowStatusBar(true)
	l.SetFilteringEnabled(true)
	l.SetShowHelp(false)

	vp := viewport.New(0, 0)
	vp.Style = lipgloss.NewStyle().
		Background(theme.Mantle).
		Foreground(theme.Text).
		Padding(1)

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(theme.Lavender)

	return Model{
		port:     port,
		list:     l,
		preview:  vp,
		spinner:  sp,
		sessions: map[string]sessiondto.SessionOutput{},
		loading:  true,
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.Refresh(), m.spinner.Tick)
}

// Refresh reloads the session list; the selection follows the session id.
func (m Model) Refresh() tea.Cmd {
	return func() tea.Msg {
		sessions, err := m.port.List(context.Background(), true)
		return SessionsLoadedMsg{Sessions: sessions, Err: err}
	}
}

func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resize()

	case SessionsLoadedMsg:
		m.loading = false
		if msg.Err != nil {
			m.list.Title = "Sessions: " + msg.Err.Error()
			return m, nil
		}
		m.list.Title = "Sessions"
		selected, _ := m.SelectedSessionID()
		items := make([]list.Item, len(msg.Sessions))
		m.sessions = make(map[string]sessiondto.SessionOutput, len(msg.Sessions))
		for i, s := range msg.Sessions {
			items[i] = sessionItem{session: s}
			m.sessions[s.ID] = s
		}
		cmds = append(cmds, m.list.SetItems(items))
		for i, s := range msg.Sessions {
			if s.ID == selected {
				m.list.Select(i)
				break
			}
		}
		if id, ok := m.SelectedSessionID(); ok {
			cmds = append(cmds, m.loadStatsCmd(id))
		} else {
			m.preview.SetContent(m.renderDetail())
		}

	case StatsLoadedMsg:
		if current, ok := m.SelectedSessionID(); ok && current == msg.SessionID {
			if msg.Err == nil {
				m.stats = msg.Stats
			}
			m.preview.SetContent(m.renderDetail())
		}

	case spinner.TickMsg:
		if m.loading {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			cmds = append(cmds, cmd)
		}
	}

	if !m.loading {
		var lCmd tea.Cmd
		prevIdx := m.list.Index()
		m.list, lCmd = m.list.Update(msg)
		cmds = append(cmds, lCmd)
		if m.list.Index() != prevIdx {
			if id, ok := m.SelectedSessionID(); ok {
				m.stats = sessiondto.StatisticsOutput{}
				cmds = append(cmds, m.loadStatsCmd(id))
			}
		}

		var vCmd tea.Cmd
		m.preview, vCmd = m.preview.Update(msg)
		cmds = append(cmds, vCmd)
	}

	return m, tea.Batch(cmds...)
}

func (m Model) View() string {
	if m.loading {
		return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center,
			m.spinner.View()+" Loading sessions…")
	}

	listW := m.width * 4 / 10
	detailW := m.width - listW

	listPane := lipgloss.NewStyle().
		Width(listW).
		Height(m.height).
		Render(m.list.View())

	detailPane := theme.Pane.
		Padding(0).
		Width(detailW - 2).
		Height(m.height - 2).
		Render(m.preview.View())

	return lipgloss.JoinHorizontal(lipgloss.Top, listPane, detailPane)
}

// SelectedSessionID returns the current selection's session ID, if any.
func (m Model) SelectedSessionID() (string, bool) {
	if item, ok := m.list.SelectedItem().(sessionItem); ok {
		return item.session.ID, true
	}
	return "", false
}

// Selected returns the last loaded state of the selected session.
func (m Model) Selected() (sessiondto.SessionOutput, bool) {
	id, ok := m.SelectedSessionID()
	if !ok {
		return sessiondto.SessionOutput{}, false
	}
	s, ok := m.sessions[id]
	return s, ok
}

// Filtering reports whether the list's search filter is currently active.
func (m Model) Filtering() bool {
	return m.list.FilterState() == list.Filtering
}

// ─── private ─────────────────────────────────────────────────────────────────

func (m *Model) resize() {
	listW := m.width * 4 / 10
	detailW := m.width - listW
	m.list.SetSize(listW, m.height)
	m.preview.Width = detailW - 4
	m.preview.Height = m.height - 4
}

const maxActivityRows = 12

func (m Model) renderDetail() string {
	s, ok := m.Selected()
	if !ok {
		return theme.Muted.Render("No sessions yet. Press : and type start <name>")
	}
	var sb strings.Builder
	sb.WriteString(theme.Title.Render(s.Name) + "\n\n")
	sb.WriteString(theme.Muted.Render("id:       ") + s.ID + "\n")
	sb.WriteString(theme.Muted.Render("status:   ") + statusLabel(s.IsActive) + "\n")
	sb.WriteString(theme.Muted.Render("started:  ") + s.StartTime.Format("2006-01-02 15:04:05") + "\n")
	if s.EndTime != nil {
		sb.WriteString(theme.Muted.Render("ended:    ") + s.EndTime.Format("2006-01-02 15:04:05") + "\n")
	}
	sb.WriteString(theme.Muted.Render("duration: ") + s.Duration.Round(time.Second).String() + "\n")
	sb.WriteString(theme.Muted.Render("active:   ") + m.stats.TotalActive.Round(time.Second).String() + "\n")

	if len(s.Activities) > 0 {
		sb.WriteString("\n" + theme.Title.Render("Activities") + "\n")
		start := 0
		if len(s.Activities) > maxActivityRows {
			start = len(s.Activities) - maxActivityRows
			sb.WriteString(theme.Muted.Render(fmt.Sprintf("  … %d earlier", start)) + "\n")
		}
		for _, a := range s.Activities[start:] {
			marker := "  "
			if a.Running {
				marker = theme.Running.Render("● ")
			}
			sb.WriteString(fmt.Sprintf("%s%s  %s  %s  %s\n", marker, a.StartTime.Format("15:04:05"), a.ApplicationName, theme.Muted.Render(a.FilePath), a.Duration.Round(time.Second)))
		}
	}
	writeTotals(&sb, "Applications", m.stats.Applications)
	writeTotals(&sb, "Files", m.stats.Files)

	sb.WriteString("\n" + theme.Muted.Render("a: start activity  x: stop activity  s: stop  r: restart  t: auto-track"))
	return sb.String()
}

func writeTotals(sb *strings.Builder, title string, totals []sessiondto.TotalOutput) {
	if len(totals) == 0 {
		return
	}
	sb.WriteString("\n" + theme.Title.Render(title) + "\n")
	for _, t := range totals {
		sb.WriteString(fmt.Sprintf("  %-32s %s\n", t.Key, t.Duration.Round(time.Second)))
	}
}

func statusLabel(active bool) string {
	return theme.Status(active)
}

func (m Model) loadStatsCmd(id string) tea.Cmd {
	return func() tea.Msg {
		stats, err := m.port.Stats(context.Background(), id)
		return StatsLoadedMsg{SessionID: id, Stats: stats, Err: err}
	}
}
