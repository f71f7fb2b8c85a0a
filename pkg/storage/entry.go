package storage

import (
	"time"
)

// Entry is a payload stored in Redis.
type Entry struct {
	// Name is the persisted name, e.g. "cn.gif"
	Name string `json:"name"`

	// Data is the payload
	Data []byte `json:"data"`

	// Size is len(Data) at save time
	Size int `json:"size"`

	// SavedAt is when the payload was stored
	SavedAt time.Time `json:"saved_at"`
}

// NewEntry creates an entry for payload stamped with the current time.
func NewEntry(name string, payload []byte) *Entry {
	return &Entry{
		Name:    name,
		Data:    payload,
		Size:    len(payload),
		SavedAt: time.Now().UTC(),
	}
}

// Valid reports whether the recorded size matches the payload.
func (e *Entry) Valid() bool {
	return e.Name != "" && e.Size == len(e.Data)
}

// Age returns the time since the entry was stored.
func (e *Entry) Age() time.Duration {
	return time.Since(e.SavedAt)
}
