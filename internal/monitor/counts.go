package monitor

import (
	"fmt"

	"github.com/emersion/go-imap/v2"
)

// Counts is the message total and unread count of one mailbox.
type Counts struct {
	Total  uint32
	Unread uint32
}

func (c Counts) String() string {
	return fmt.Sprintf("total=%d unread=%d", c.Total, c.Unread)
}

// statusOptions is the STATUS (MESSAGES UNSEEN) query.
var statusOptions = imap.StatusOptions{
	NumMessages: true,
	NumUnseen:   true,
}

// countsFromStatus builds Counts from a STATUS reply. A missing MESSAGES
// item is a malformed reply; a missing UNSEEN item counts as zero.
func countsFromStatus(data *imap.StatusData) (Counts, error) {
	if data == nil || data.NumMessages == nil {
		return Counts{}, ErrMalformedStatus
	}

	counts := Counts{Total: *data.NumMessages}
	if data.NumUnseen != nil {
		counts.Unread = *data.NumUnseen
	}
	return counts, nil
}
