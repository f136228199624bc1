package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"github.com/nhle/mail-notifier/internal/engine"
	"github.com/nhle/mail-notifier/internal/keys"
	"github.com/nhle/mail-notifier/internal/monitor"
	"github.com/nhle/mail-notifier/internal/source"
	"github.com/nhle/mail-notifier/internal/source/email"
	"github.com/nhle/mail-notifier/internal/supervisor"
	"github.com/nhle/mail-notifier/internal/theme"
	"github.com/nhle/mail-notifier/internal/ui"
	helpview "github.com/nhle/mail-notifier/internal/ui/help"
	"github.com/nhle/mail-notifier/internal/ui/mailboxes"
)

// Monitor states shown in the table.
const (
	stateConnecting = "connecting"
	stateWatching   = "watching"
	stateRetrying   = "retrying"
	stateStopped    = "stopped"
)

type countsMsg engine.Update[uuid.UUID, monitor.Counts]

type eventMsg engine.Update[uuid.UUID, engine.Event]

type tickMsg time.Time

// entry is the live state of one watched mailbox.
type entry struct {
	id        uuid.UUID
	label     string
	counts    monitor.Counts
	known     bool
	state     string
	changedAt time.Time
	retryAt   time.Time
	lastErr   error
	authError bool
}

// Config wires the model to the monitoring engine.
type Config struct {
	Mailboxes  []email.Mailbox
	Workload   engine.Workload[email.Mailbox, monitor.Counts]
	Interrupts *email.Interrupter
	Logger     *slog.Logger
}

// Model is the root Bubble Tea model: one table row per mailbox, fed by the
// engine's update and event channels.
type Model struct {
	layout   ui.Layout
	keys     *keys.KeyMap
	table    mailboxes.Model
	helpView helpview.Model
	showHelp bool
	ready    bool
	message  string

	entries map[uuid.UUID]*entry
	order   []uuid.UUID

	updates    <-chan engine.Update[uuid.UUID, monitor.Counts]
	events     <-chan engine.Update[uuid.UUID, engine.Event]
	interrupts *email.Interrupter
	stop       func()
	now        func() time.Time
}

// New spawns one monitor per mailbox and returns the model showing them.
// The monitors run until the model quits.
func New(ctx context.Context, cfg Config) Model {
	updates := make(chan engine.Update[uuid.UUID, monitor.Counts])
	events := make(chan engine.Update[uuid.UUID, engine.Event])

	m := newModel(keys.DefaultKeyMap())
	m.updates = updates
	m.events = events
	m.interrupts = cfg.Interrupts

	ctx, cancel := context.WithCancel(ctx)
	group := engine.Spawn(ctx, engine.Params[email.Mailbox, uuid.UUID, monitor.Counts]{
		Items: cfg.Mailboxes,
		Register: func(mb email.Mailbox) uuid.UUID {
			return m.register(mb.Label())
		},
		Workload: cfg.Workload,
		Updates:  updates,
		Events:   events,
		Logger:   cfg.Logger,
	})
	m.stop = func() {
		cancel()
		group.Stop()
	}

	return m
}

func newModel(k *keys.KeyMap) Model {
	return Model{
		keys:     k,
		table:    mailboxes.New(k, 80, 24),
		helpView: helpview.New(k, 80, 24),
		entries:  make(map[uuid.UUID]*entry),
		stop:     func() {},
		now:      time.Now,
	}
}

// register adds a row. It only runs inside New, before the model is
// copied anywhere.
func (m *Model) register(label string) uuid.UUID {
	id := uuid.New()
	m.entries[id] = &entry{id: id, label: label, state: stateConnecting}
	m.order = append(m.order, id)
	return id
}

// Init starts listening to the engine.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.waitForCounts(),
		m.waitForEvent(),
		tick(),
	)
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.layout = ui.NewLayout(msg.Width, msg.Height)
		m.ready = true
		m.table.SetSize(m.layout.ContentWidth(), m.layout.ContentHeight())
		m.helpView.SetSize(m.layout.ContentWidth(), m.layout.ContentHeight())
		m.refreshRows()
		return m, nil

	case countsMsg:
		if e, ok := m.entries[msg.Entry]; ok {
			e.counts = msg.Payload
			e.known = true
			e.state = stateWatching
			e.changedAt = m.now()
			e.lastErr = nil
			e.authError = false
		}
		m.refreshRows()
		return m, m.waitForCounts()

	case eventMsg:
		if e, ok := m.entries[msg.Entry]; ok {
			m.applyEvent(e, msg.Payload)
		}
		m.refreshRows()
		return m, m.waitForEvent()

	case tickMsg:
		m.refreshRows()
		return m, tick()

	case tea.KeyMsg:
		m.message = ""
		switch {
		case key.Matches(msg, m.keys.Quit):
			m.stop()
			return m, tea.Quit

		case key.Matches(msg, m.keys.Back):
			if m.showHelp {
				m.showHelp = false
				return m, nil
			}
			m.stop()
			return m, tea.Quit

		case key.Matches(msg, m.keys.Help):
			m.showHelp = !m.showHelp
			return m, nil

		case key.Matches(msg, m.keys.Refresh):
			m.interrupts.Interrupt()
			m.message = "refresh requested"
			return m, nil
		}
	}

	if m.showHelp {
		return m, nil
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m *Model) applyEvent(e *entry, ev engine.Event) {
	switch ev.Kind {
	case supervisor.Started:
		e.state = stateConnecting
	case supervisor.Error, supervisor.Panicked:
		e.state = stateRetrying
		e.lastErr = ev.Reason()
		e.authError = source.IsAuthError(ev.Err)
		e.retryAt = m.now().Add(ev.NextRetryIn)
	case supervisor.Done:
		e.state = stateStopped
	}
}

func (m *Model) refreshRows() {
	now := m.now()
	rows := make([]mailboxes.Row, 0, len(m.order))
	for _, id := range m.order {
		e := m.entries[id]
		row := mailboxes.Row{
			Label:  e.label,
			Unread: e.counts.Unread,
			Total:  e.counts.Total,
			Known:  e.known,
			State:  e.state,
		}
		if !e.changedAt.IsZero() {
			row.Changed = humanize.RelTime(e.changedAt, now, "ago", "from now")
		}
		if e.lastErr != nil {
			detail := e.lastErr.Error()
			if e.authError {
				detail = "auth: " + detail
			}
			if e.state == stateRetrying && e.retryAt.After(now) {
				detail = fmt.Sprintf("retry %s: %s", humanize.RelTime(e.retryAt, now, "ago", "from now"), detail)
			}
			row.Detail = detail
		}
		rows = append(rows, row)
	}
	m.table.SetRows(rows)
}

// summary returns the header text: total unread across mailboxes and how
// many monitors are in each state, colored by state.
func (m Model) summary() string {
	var unread uint64
	byState := make(map[string]int)
	for _, e := range m.entries {
		unread += uint64(e.counts.Unread)
		byState[e.state]++
	}

	text := theme.UnreadStyle.Inherit(theme.HeaderStyle).
		Render(humanize.Comma(int64(unread)) + " unread")
	for _, state := range summaryStates {
		if n := byState[state]; n > 0 {
			text += theme.StateStyle(state).Inherit(theme.HeaderStyle).
				Render(fmt.Sprintf("%d %s", n, state))
		}
	}
	return text
}

var summaryStates = []string{stateWatching, stateConnecting, stateRetrying, stateStopped}

// View renders the whole screen.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}

	header := m.layout.RenderHeader("Mail Notifier", m.summary())

	content := m.table.View()
	if m.showHelp {
		content = m.helpView.View()
	}

	statusBar := m.layout.RenderStatusBar(m.keyHints(), m.message)
	return m.layout.RenderWithFrame(header, content, statusBar)
}

func (m Model) keyHints() string {
	if m.showHelp {
		return "? close help | esc back"
	}
	return "q quit | r refresh | j/k move | ? help"
}

func (m Model) waitForCounts() tea.Cmd {
	ch := m.updates
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		u, ok := <-ch
		if !ok {
			return nil
		}
		return countsMsg(u)
	}
}

func (m Model) waitForEvent() tea.Cmd {
	ch := m.events
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		u, ok := <-ch
		if !ok {
			return nil
		}
		return eventMsg(u)
	}
}

func tick() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}
