package mailboxes

import (
	"strings"
	"testing"

	"github.com/nhle/mail-notifier/internal/keys"
)

func TestCells(t *testing.T) {
	tests := []struct {
		name       string
		row        Row
		wantUnread string
		wantTotal  string
	}{
		{
			name:       "unknown counts",
			row:        Row{Label: "work/INBOX", State: "connecting"},
			wantUnread: "-",
			wantTotal:  "-",
		},
		{
			name:       "known counts",
			row:        Row{Label: "work/INBOX", Unread: 3, Total: 120, Known: true, State: "watching"},
			wantUnread: "3",
			wantTotal:  "120",
		},
		{
			name:       "known empty mailbox",
			row:        Row{Label: "work/Archive", Known: true, State: "retrying"},
			wantUnread: "0",
			wantTotal:  "0",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := cells(tt.row)
			if len(got) != 6 {
				t.Fatalf("cells() has %d columns, want 6", len(got))
			}
			if got[0] != tt.row.Label {
				t.Errorf("label = %q, want %q", got[0], tt.row.Label)
			}
			if got[1] != tt.wantUnread || got[2] != tt.wantTotal {
				t.Errorf("counts = %q/%q, want %q/%q", got[1], got[2], tt.wantUnread, tt.wantTotal)
			}
			if got[3] != tt.row.State {
				t.Errorf("state = %q, want %q", got[3], tt.row.State)
			}
		})
	}
}

func TestViewShowsRows(t *testing.T) {
	m := New(keys.DefaultKeyMap(), 120, 10)
	m.SetRows([]Row{
		{Label: "work/INBOX", Unread: 7, Total: 42, Known: true, State: "watching"},
		{Label: "home/Spam", State: "connecting"},
	})

	view := m.View()
	for _, want := range []string{"Mailbox", "work/INBOX", "42", "home/Spam", "watching", "connecting"} {
		if !strings.Contains(view, want) {
			t.Errorf("View() missing %q:\n%s", want, view)
		}
	}
}
