package app

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"

	"github.com/nhle/mail-notifier/internal/engine"
	"github.com/nhle/mail-notifier/internal/imaputf7"
	"github.com/nhle/mail-notifier/internal/keys"
	"github.com/nhle/mail-notifier/internal/monitor"
	"github.com/nhle/mail-notifier/internal/source"
	"github.com/nhle/mail-notifier/internal/source/email"
	"github.com/nhle/mail-notifier/internal/supervisor"
)

var epoch = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

func newTestModel(t *testing.T, labels ...string) (Model, []uuid.UUID) {
	t.Helper()

	m := newModel(keys.DefaultKeyMap())
	m.now = func() time.Time { return epoch }

	ids := make([]uuid.UUID, len(labels))
	for i, label := range labels {
		ids[i] = m.register(label)
	}

	next, _ := m.Update(tea.WindowSizeMsg{Width: 160, Height: 20})
	return next.(Model), ids
}

func update(t *testing.T, m Model, msg tea.Msg) Model {
	t.Helper()

	next, _ := m.Update(msg)
	return next.(Model)
}

func TestRegisterSeedsRows(t *testing.T) {
	m, ids := newTestModel(t, "work/INBOX", "home/INBOX")

	if len(m.order) != 2 || m.order[0] != ids[0] || m.order[1] != ids[1] {
		t.Fatalf("order = %v, want %v", m.order, ids)
	}
	for _, id := range ids {
		if got := m.entries[id].state; got != stateConnecting {
			t.Errorf("initial state = %q, want %q", got, stateConnecting)
		}
	}

	view := m.View()
	for _, want := range []string{"work/INBOX", "home/INBOX", "Mail Notifier", "0 unread"} {
		if !strings.Contains(view, want) {
			t.Errorf("View() does not contain %q", want)
		}
	}
}

func TestCountsUpdateOnlyTheirEntry(t *testing.T) {
	m, ids := newTestModel(t, "work/INBOX", "home/INBOX")

	m = update(t, m, countsMsg{Entry: ids[1], Payload: monitor.Counts{Total: 1200, Unread: 1100}})

	work, home := m.entries[ids[0]], m.entries[ids[1]]
	if work.known {
		t.Error("counts for home changed the work entry")
	}
	if !home.known || home.counts != (monitor.Counts{Total: 1200, Unread: 1100}) {
		t.Errorf("home counts = %+v, known %v", home.counts, home.known)
	}
	if home.state != stateWatching {
		t.Errorf("home state = %q, want %q", home.state, stateWatching)
	}
	if !home.changedAt.Equal(epoch) {
		t.Errorf("changedAt = %v, want %v", home.changedAt, epoch)
	}
	if !strings.Contains(m.View(), "1,100 unread") {
		t.Error("header does not show the humanized unread total")
	}
}

func TestUnknownEntryIsIgnored(t *testing.T) {
	m, _ := newTestModel(t, "work/INBOX")

	m = update(t, m, countsMsg{Entry: uuid.New(), Payload: monitor.Counts{Total: 1}})
	m = update(t, m, eventMsg{Entry: uuid.New(), Payload: engine.Event{Kind: supervisor.Started}})

	if len(m.entries) != 1 {
		t.Errorf("got %d entries, want 1", len(m.entries))
	}
}

func TestEventsDriveState(t *testing.T) {
	m, ids := newTestModel(t, "work/INBOX")
	id := ids[0]

	m = update(t, m, eventMsg{Entry: id, Payload: engine.Event{Kind: supervisor.Started}})
	if got := m.entries[id].state; got != stateConnecting {
		t.Errorf("after Started state = %q, want %q", got, stateConnecting)
	}

	authErr := &source.AuthError{Server: "work", Message: "bad password", Err: errors.New("NO")}
	m = update(t, m, eventMsg{Entry: id, Payload: engine.Event{
		Kind:        supervisor.Error,
		Err:         authErr,
		NextRetryIn: 4 * time.Second,
	}})

	e := m.entries[id]
	if e.state != stateRetrying {
		t.Errorf("after Error state = %q, want %q", e.state, stateRetrying)
	}
	if !e.authError {
		t.Error("auth failure not flagged")
	}
	if !e.retryAt.Equal(epoch.Add(4 * time.Second)) {
		t.Errorf("retryAt = %v, want %v", e.retryAt, epoch.Add(4*time.Second))
	}
	view := m.View()
	if !strings.Contains(view, "1 retrying") {
		t.Error("header does not count the failing monitor")
	}
	if !strings.Contains(view, "auth:") {
		t.Error("table does not show the auth failure")
	}

	m = update(t, m, countsMsg{Entry: id, Payload: monitor.Counts{Total: 3}})
	if e := m.entries[id]; e.state != stateWatching || e.lastErr != nil {
		t.Errorf("after counts state = %q, lastErr = %v, want watching without error", e.state, e.lastErr)
	}
}

func TestSummaryCountsStates(t *testing.T) {
	m, ids := newTestModel(t, "work/INBOX", "home/INBOX", "home/Spam")

	m = update(t, m, countsMsg{Entry: ids[0], Payload: monitor.Counts{Total: 10, Unread: 2}})
	m = update(t, m, eventMsg{Entry: ids[2], Payload: engine.Event{
		Kind:        supervisor.Error,
		Err:         errors.New("connection reset"),
		NextRetryIn: time.Second,
	}})

	summary := m.summary()
	for _, want := range []string{"2 unread", "1 watching", "1 connecting", "1 retrying"} {
		if !strings.Contains(summary, want) {
			t.Errorf("summary %q does not contain %q", summary, want)
		}
	}
	if strings.Contains(summary, "stopped") {
		t.Errorf("summary %q mentions a state no monitor is in", summary)
	}
}

func TestRefreshKey(t *testing.T) {
	m, _ := newTestModel(t, "work/INBOX")
	m.interrupts = &email.Interrupter{}

	m = update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("r")})
	if m.message != "refresh requested" {
		t.Errorf("message = %q, want refresh notice", m.message)
	}

	m = update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("j")})
	if m.message != "" {
		t.Errorf("message = %q, want it cleared by the next key", m.message)
	}
}

func TestHelpToggle(t *testing.T) {
	m, _ := newTestModel(t, "work/INBOX")

	m = update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("?")})
	if !m.showHelp || !strings.Contains(m.View(), "Keyboard Shortcuts") {
		t.Fatal("? did not open help")
	}

	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	m = next.(Model)
	if m.showHelp {
		t.Error("esc did not close help")
	}
	if cmd != nil {
		t.Error("esc in help should not quit")
	}
}

func TestQuitStopsMonitors(t *testing.T) {
	m, _ := newTestModel(t, "work/INBOX")
	stopped := false
	m.stop = func() { stopped = true }

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	if !stopped {
		t.Error("quit did not stop the monitors")
	}
	if cmd == nil {
		t.Fatal("quit returned no command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("quit command does not quit the program")
	}
}

func TestNewBridgesEngine(t *testing.T) {
	work := &email.Server{Name: "work"}
	mailboxes := []email.Mailbox{
		{Server: work, Name: imaputf7.Encode("INBOX")},
		{Server: work, Name: imaputf7.Encode("Entwürfe")},
	}
	workload := engine.WorkloadFunc[email.Mailbox, monitor.Counts](
		func(ctx context.Context, mb email.Mailbox, notify func(monitor.Counts)) error {
			notify(monitor.Counts{Total: uint32(len(mb.Label()))})
			<-ctx.Done()
			return ctx.Err()
		},
	)

	m := New(context.Background(), Config{Mailboxes: mailboxes, Workload: workload})
	defer m.stop()
	m.now = func() time.Time { return epoch }

	if len(m.order) != 2 {
		t.Fatalf("registered %d entries, want 2", len(m.order))
	}

	for range mailboxes {
		msg := m.waitForEvent()()
		ev, ok := msg.(eventMsg)
		if !ok || ev.Payload.Kind != supervisor.Started {
			t.Fatalf("first engine message = %#v, want a Started event", msg)
		}
		m = update(t, m, ev)
	}
	for range mailboxes {
		msg := m.waitForCounts()()
		if _, ok := msg.(countsMsg); !ok {
			t.Fatalf("engine message = %#v, want counts", msg)
		}
		m = update(t, m, msg)
	}

	for _, id := range m.order {
		e := m.entries[id]
		if !e.known || e.counts.Total != uint32(len(e.label)) {
			t.Errorf("entry %q counts = %+v, want total %d", e.label, e.counts, len(e.label))
		}
	}
}
