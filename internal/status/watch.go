package status

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/1broseidon/wincoord/internal/ipc"
)

// Client is what the watch view needs from the daemon.
type Client interface {
	GetStatus() (*ipc.StatusData, error)
	Show(slot string) error
	Hide(slot string) error
	Close(slot string) error
}

const DefaultInterval = time.Second

type statusMsg struct {
	data *ipc.StatusData
	err  error
}

type tickMsg struct{}

type actionMsg struct {
	verb string
	slot string
	err  error
}

var (
	statusBarStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("235")).
			Foreground(lipgloss.Color("250")).
			Padding(0, 1)
	errorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
	helpStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("241")).Padding(0, 1)
)

// Model is the bubbletea model behind "wincoord watch".
type Model struct {
	client   Client
	interval time.Duration

	table     table.Model
	data      *ipc.StatusData
	err       error
	lastEvent string

	width  int
	height int
}

// NewModel creates a watch model polling client every interval.
func NewModel(client Client, interval time.Duration) Model {
	if interval <= 0 {
		interval = DefaultInterval
	}
	cols := make([]table.Column, len(headers))
	for i, h := range headers {
		cols[i] = table.Column{Title: h, Width: columnWidths[i]}
	}

	styles := table.DefaultStyles()
	styles.Header = styles.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("62")).
		BorderBottom(true).
		Bold(true)
	styles.Selected = styles.Selected.
		Foreground(lipgloss.Color("15")).
		Background(lipgloss.Color("62"))

	return Model{
		client:   client,
		interval: interval,
		table: table.New(
			table.WithColumns(cols),
			table.WithFocused(true),
			table.WithHeight(10),
			table.WithStyles(styles),
		),
	}
}

var columnWidths = []int{16, 10, 12, 22, 8}

func (m Model) fetch() tea.Msg {
	data, err := m.client.GetStatus()
	return statusMsg{data: data, err: err}
}

func (m Model) tick() tea.Cmd {
	return tea.Tick(m.interval, func(time.Time) tea.Msg { return tickMsg{} })
}

func (m Model) act(verb string, fn func(string) error) tea.Cmd {
	row := m.table.SelectedRow()
	if len(row) == 0 {
		return nil
	}
	slot := row[0]
	return func() tea.Msg {
		return actionMsg{verb: verb, slot: slot, err: fn(slot)}
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return m.fetch
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		case "r":
			return m, m.fetch
		case "s":
			return m, m.act("show", m.client.Show)
		case "h":
			return m, m.act("hide", m.client.Hide)
		case "x":
			return m, m.act("close", m.client.Close)
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		if h := msg.Height - 5; h > 2 {
			m.table.SetHeight(h)
		}
		return m, nil

	case statusMsg:
		m.err = msg.err
		if msg.err == nil {
			m.data = msg.data
			m.table.SetRows(toTableRows(Rows(msg.data)))
		}
		return m, m.tick()

	case tickMsg:
		return m, m.fetch

	case actionMsg:
		if msg.err != nil {
			m.lastEvent = fmt.Sprintf("%s %s: %v", msg.verb, msg.slot, msg.err)
		} else {
			m.lastEvent = fmt.Sprintf("%s %s", msg.verb, msg.slot)
		}
		return m, m.fetch
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func toTableRows(rows [][]string) []table.Row {
	out := make([]table.Row, len(rows))
	for i, r := range rows {
		out[i] = table.Row(r)
	}
	return out
}

// View implements tea.Model.
func (m Model) View() string {
	var bar string
	switch {
	case m.err != nil:
		bar = errorStyle.Render("● " + m.err.Error())
	case m.data == nil:
		bar = "connecting..."
	default:
		bar = Summary(m.data)
	}
	if m.lastEvent != "" {
		bar += "  " + m.lastEvent
	}
	if m.width > 0 {
		bar = statusBarStyle.Width(m.width).Render(bar)
	} else {
		bar = statusBarStyle.Render(bar)
	}

	help := helpStyle.Render("↑/↓: select  s: show  h: hide  x: close  r: refresh  q: quit")
	return lipgloss.JoinVertical(lipgloss.Left, bar, m.table.View(), help)
}

// Watch runs the watch view until the user quits.
func Watch(client Client, interval time.Duration) error {
	p := tea.NewProgram(NewModel(client, interval), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
