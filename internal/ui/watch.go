package ui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/muurk/botrelay/internal/relay"
)

// DefaultWatchInterval is how often the watch screen polls.
const DefaultWatchInterval = 2 * time.Second

// StatusFunc fetches the current server status.
type StatusFunc func(ctx context.Context) (*relay.Status, error)

type statusMsg struct {
	seq    int
	status *relay.Status
	err    error
	at     time.Time
}

type pollTickMsg struct {
	seq int
}

type watchKeyMap struct {
	Refresh key.Binding
	Quit    key.Binding
}

func (k watchKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Refresh, k.Quit}
}

func (k watchKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{{k.Refresh, k.Quit}}
}

// WatchModel polls a server and shows its connected devices until the user
// quits.
type WatchModel struct {
	Server   string
	Interval time.Duration

	fetch StatusFunc

	Status     *relay.Status
	Err        error
	LastUpdate time.Time
	Loading    bool

	// seq identifies the newest poll; stale replies and ticks are dropped
	// so a manual refresh does not start a second polling chain.
	seq int

	Width   int
	Spinner spinner.Model
	Help    help.Model
	Keys    watchKeyMap
}

// NewWatchModel creates a watch screen for server using fetch.
func NewWatchModel(server string, interval time.Duration, fetch StatusFunc) WatchModel {
	if interval <= 0 {
		interval = DefaultWatchInterval
	}

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = SpinnerStyle

	return WatchModel{
		Server:   server,
		Interval: interval,
		fetch:    fetch,
		Loading:  true, // Init starts the first poll
		Width:    GetTerminalWidth(),
		Spinner:  s,
		Help:     help.New(),
		Keys: watchKeyMap{
			Refresh: key.NewBinding(
				key.WithKeys("r"),
				key.WithHelp("r", "refresh"),
			),
			Quit: key.NewBinding(
				key.WithKeys("q", "esc", "ctrl+c"),
				key.WithHelp("q", "quit"),
			),
		},
	}
}

// Init implements tea.Model
func (m WatchModel) Init() tea.Cmd {
	return tea.Batch(m.Spinner.Tick, m.poll(m.seq))
}

func (m WatchModel) poll(seq int) tea.Cmd {
	fetch, timeout := m.fetch, m.Interval
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		status, err := fetch(ctx)
		return statusMsg{seq: seq, status: status, err: err, at: time.Now()}
	}
}

// Update implements tea.Model
func (m WatchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.Keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.Keys.Refresh):
			if m.Loading {
				return m, nil
			}
			m.seq++
			m.Loading = true
			return m, m.poll(m.seq)
		}

	case tea.WindowSizeMsg:
		m.Width = clampWidth(msg.Width, nil)
		m.Help.Width = msg.Width

	case statusMsg:
		if msg.seq != m.seq {
			return m, nil
		}
		m.Loading = false
		m.Err = msg.err
		if msg.err == nil {
			m.Status = msg.status
		}
		m.LastUpdate = msg.at
		seq := m.seq
		return m, tea.Tick(m.Interval, func(time.Time) tea.Msg {
			return pollTickMsg{seq: seq}
		})

	case pollTickMsg:
		if msg.seq != m.seq || m.Loading {
			return m, nil
		}
		m.seq++
		m.Loading = true
		return m, m.poll(m.seq)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.Spinner, cmd = m.Spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

// View implements tea.Model
func (m WatchModel) View() string {
	var b strings.Builder

	b.WriteString(NewHeader("Device Monitor", "botrelay-ctl watch", map[string]string{
		"Server":   m.Server,
		"Interval": m.Interval.String(),
	}).SetWidth(m.Width).Render())
	b.WriteString("\n")

	switch {
	case m.Status != nil:
		b.WriteString(DeviceTable(m.Status, m.Width))
	case m.Err == nil:
		b.WriteString(FooterStyle.Render(m.Spinner.View() + " Connecting to " + m.Server))
	}
	b.WriteString("\n")

	if m.Err != nil {
		b.WriteString(ErrorMessageStyle.Render(fmt.Sprintf("  %s  %v", FailureMarker, m.Err)))
		b.WriteString("\n")
	}

	if !m.LastUpdate.IsZero() {
		line := "Updated " + m.LastUpdate.Format("15:04:05")
		if m.Loading {
			line = m.Spinner.View() + " " + line
		}
		b.WriteString(FooterStyle.Render(line))
		b.WriteString("\n")
	}

	b.WriteString(FooterStyle.Render(m.Help.View(m.Keys)))
	b.WriteString("\n")
	return b.String()
}
