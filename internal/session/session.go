package session

import (
	"time"

	"kmle-tutor/backend/internal/models"
)

// Entry is one message in the in-memory mirror of the active subject's
// transcript. It carries the store-assigned record ID so deletion is
// ID-keyed rather than content-keyed.
type Entry struct {
	RecordID  uint      `json:"record_id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
	// Image is a session-only data URL for an attached image. It is never
	// written to the transcript store.
	Image    string `json:"image,omitempty"`
	Included bool   `json:"included"`
}

// Session is the transient view of one authenticated user's conversation:
// the active subject and the ordered mirror of its stored transcript.
// Entry order must match store order exactly after any reconciliation.
type Session struct {
	Username string  `json:"username"`
	Subject  string  `json:"subject"`
	Entries  []Entry `json:"entries"`
}

// entryFromRecord builds a mirror entry from a stored record. Inclusion
// defaults to true.
func entryFromRecord(rec models.ChatRecord) Entry {
	return Entry{
		RecordID:  rec.ID,
		Role:      rec.Role,
		Content:   rec.Content,
		Timestamp: rec.Timestamp,
		Included:  true,
	}
}
