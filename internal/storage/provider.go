// Package storage maps plan keys onto daily-note files in the vault.
package storage

import (
	"time"

	"github.com/starford/planpanel/internal/plan"
)

// Entry describes one daily note found on disk.
type Entry struct {
	Key       plan.Key  `json:"date"`
	Path      string    `json:"path"`
	Checksum  string    `json:"checksum"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Provider is the interface for daily-note file operations.
type Provider interface {
	// Path returns the absolute file path of the note for key.
	Path(key plan.Key) (string, error)
	// Read returns the raw bytes of the note for key. A missing note yields
	// an error matching apperr.ErrNotFound.
	Read(key plan.Key) ([]byte, error)
	// Write atomically replaces the note for key.
	Write(key plan.Key, content []byte) error
	// List returns every daily note under the daily directory.
	List() ([]Entry, error)
	// Lock serializes writers of one key and returns the unlock function.
	Lock(key plan.Key) (unlock func())
	// KeyForPath maps an absolute note path back to its key.
	KeyForPath(abs string) (plan.Key, bool)
	// DailyRoot is the absolute directory holding the daily notes.
	DailyRoot() string
}
