// Package status renders the daemon's slot table for the status and watch
// commands.
package status

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/1broseidon/wincoord/internal/coordinator"
	"github.com/1broseidon/wincoord/internal/ipc"
)

var headers = []string{"SLOT", "STATE", "WINDOW", "BOUNDS", "VISIBLE"}

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("15")).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("250")).Padding(0, 1)
	openStyle   = cellStyle.Foreground(lipgloss.Color("42"))
	idleStyle   = cellStyle.Foreground(lipgloss.Color("241"))
	borderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("62"))
)

// State describes a slot in one word.
func State(s coordinator.SlotStatus) string {
	switch {
	case s.Pending:
		return "opening"
	case !s.Open:
		return "closed"
	case s.Minimized:
		return "minimized"
	default:
		return "open"
	}
}

// Rows flattens a status snapshot into table cells, one row per slot.
func Rows(data *ipc.StatusData) [][]string {
	rows := make([][]string, 0, len(data.Slots))
	for _, s := range data.Slots {
		window, bounds, visible := "-", "-", "-"
		if s.Open {
			window = fmt.Sprintf("0x%x", uint32(s.WindowID))
			bounds = fmt.Sprintf("%dx%d+%d+%d", s.Bounds.Width, s.Bounds.Height, s.Bounds.X, s.Bounds.Y)
			visible = "no"
			if s.Visible {
				visible = "yes"
			}
		}
		rows = append(rows, []string{string(s.Slot), State(s), window, bounds, visible})
	}
	return rows
}

// Summary is the line printed under the table.
func Summary(data *ipc.StatusData) string {
	uptime := time.Duration(data.UptimeSeconds) * time.Second
	return fmt.Sprintf("%d open, daemon up %s", data.OpenCount, uptime)
}

// RenderTable draws the snapshot as a bordered, coloured table.
func RenderTable(data *ipc.StatusData) string {
	rows := Rows(data)
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(borderStyle).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			if col == 1 && row >= 0 && row < len(rows) {
				if rows[row][1] == "closed" {
					return idleStyle
				}
				return openStyle
			}
			return cellStyle
		})
	return t.String() + "\n" + Summary(data)
}

// WritePlain writes the snapshot as aligned plain text, for pipes and logs.
func WritePlain(w io.Writer, data *ipc.StatusData) error {
	all := append([][]string{headers}, Rows(data)...)
	widths := make([]int, len(headers))
	for _, r := range all {
		for i, cell := range r {
			if len(cell) > widths[i] {
				widths[i] = len(cell)
			}
		}
	}

	var b strings.Builder
	for _, r := range all {
		for i, cell := range r {
			if i == len(r)-1 {
				b.WriteString(cell)
				continue
			}
			b.WriteString(cell)
			b.WriteString(strings.Repeat(" ", widths[i]-len(cell)+2))
		}
		b.WriteByte('\n')
	}
	b.WriteString(Summary(data))
	b.WriteByte('\n')

	_, err := io.WriteString(w, b.String())
	return err
}
