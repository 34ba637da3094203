// Package plan defines the domain types shared by the sync engine, the
// remote client and the plan microservice.
package plan

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// KeyLayout is the time layout of a document key.
const KeyLayout = "2006-01-02"

// Key identifies which daily plan document is being viewed (YYYY-MM-DD).
type Key string

// ParseKey validates s as a calendar date key.
func ParseKey(s string) (Key, error) {
	s = strings.TrimSpace(s)
	if _, err := time.Parse(KeyLayout, s); err != nil {
		return "", fmt.Errorf("plan: invalid date %q, want YYYY-MM-DD", s)
	}
	return Key(s), nil
}

// KeyFor returns the key of the calendar day containing t, shifted by
// offsetDays (0 is today, -1 yesterday).
func KeyFor(t time.Time, offsetDays int) Key {
	return Key(t.AddDate(0, 0, offsetDays).Format(KeyLayout))
}

// Time returns the midnight of the key's day in UTC.
func (k Key) Time() (time.Time, error) {
	return time.Parse(KeyLayout, string(k))
}

// Add returns the key days after k. Invalid keys are returned unchanged.
func (k Key) Add(days int) Key {
	t, err := k.Time()
	if err != nil {
		return k
	}
	return Key(t.AddDate(0, 0, days).Format(KeyLayout))
}

func (k Key) String() string { return string(k) }

// Document is the committed plan text for a key plus its file metadata.
type Document struct {
	Key     Key    `json:"date"`
	Content string `json:"content"`
	Path    string `json:"file,omitempty"`
	Exists  bool   `json:"exists"`
	IsEmpty bool   `json:"empty"`
}

// Missing returns the well-defined empty, nonexistent document for key.
func Missing(key Key) Document {
	return Document{Key: key, Exists: false, IsEmpty: true}
}

// IsBlank reports whether content holds nothing but whitespace.
func IsBlank(content string) bool {
	return strings.TrimSpace(content) == ""
}

// Status reflects the outcome of the most recent remote operation.
// LastSavedAt is the zero time until a save succeeds.
type Status struct {
	Loading     bool
	Error       string
	LastSavedAt time.Time
}

// Remote is the opaque two-operation capability of the remote plan store.
type Remote interface {
	// Fetch returns the current document for key.
	Fetch(ctx context.Context, key Key) (Document, error)
	// Save persists content as the plan for key and returns the stored document.
	Save(ctx context.Context, key Key, content string) (Document, error)
}
