// Package mailboxes renders the table of watched mailboxes.
package mailboxes

import (
	"strconv"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/mail-notifier/internal/keys"
	"github.com/nhle/mail-notifier/internal/theme"
)

// Row is the display data of one mailbox.
type Row struct {
	Label  string
	Unread uint32
	Total  uint32
	// Known is false until the first counts arrive.
	Known   bool
	State   string
	Changed string
	Detail  string
}

// Model is the mailbox table view component.
type Model struct {
	table  table.Model
	width  int
	height int
}

// New creates an empty table bound to the given navigation keys.
func New(k *keys.KeyMap, width, height int) Model {
	km := table.DefaultKeyMap()
	km.LineUp = k.Up
	km.LineDown = k.Down

	styles := table.DefaultStyles()
	styles.Header = styles.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(theme.ColorBorder).
		BorderBottom(true).
		Bold(true)
	styles.Selected = styles.Selected.
		Foreground(theme.ColorWhite).
		Background(theme.ColorBlue).
		Bold(false)

	t := table.New(
		table.WithColumns(columns(width)),
		table.WithFocused(true),
		table.WithHeight(max(height-1, 1)),
		table.WithKeyMap(km),
		table.WithStyles(styles),
	)

	return Model{table: t, width: width, height: height}
}

func columns(width int) []table.Column {
	fixed := []table.Column{
		{Title: "Unread", Width: 8},
		{Title: "Total", Width: 8},
		{Title: "State", Width: 12},
		{Title: "Changed", Width: 16},
	}

	used := 0
	for _, c := range fixed {
		used += c.Width + 2
	}
	rest := max(width-used-2, 20)
	label := max(rest/2, 16)

	return append(
		[]table.Column{{Title: "Mailbox", Width: label}},
		append(fixed, table.Column{Title: "Details", Width: max(rest-label, 10)})...,
	)
}

// SetRows replaces the table contents, keeping the cursor position.
func (m *Model) SetRows(rows []Row) {
	out := make([]table.Row, len(rows))
	for i, r := range rows {
		out[i] = cells(r)
	}
	m.table.SetRows(out)
}

// cells renders one row. Counts show "-" until known. Cells stay unstyled:
// the table truncates them by rune width, which would cut escape codes.
func cells(r Row) table.Row {
	unread, total := "-", "-"
	if r.Known {
		unread = strconv.FormatUint(uint64(r.Unread), 10)
		total = strconv.FormatUint(uint64(r.Total), 10)
	}
	return table.Row{r.Label, unread, total, r.State, r.Changed, r.Detail}
}

// Update handles navigation keys.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

// View renders the table.
func (m Model) View() string {
	return m.table.View()
}

// SetSize updates the table dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.table.SetColumns(columns(width))
	m.table.SetWidth(width)
	m.table.SetHeight(max(height-1, 1))
}
