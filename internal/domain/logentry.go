package domain

import "time"

// EntryKind classifies a log entry. The set is fixed.
type EntryKind string

const (
	EntrySent     EntryKind = "sent"
	EntryReceived EntryKind = "received"
	EntryStatus   EntryKind = "status"
	EntryError    EntryKind = "error"
)

// Valid reports whether k is one of the known entry kinds.
func (k EntryKind) Valid() bool {
	switch k {
	case EntrySent, EntryReceived, EntryStatus, EntryError:
		return true
	}
	return false
}

// LogEntry is an immutable record in the session message log.
type LogEntry struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Kind      EntryKind `json:"kind"`
	Content   string    `json:"content"`
}
