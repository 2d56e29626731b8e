// internal/model/models.go
package model

import "time"

// Repository is a read-only snapshot of an upstream repository listing entry.
// LastUpdated is kept as the raw upstream string; parsing happens where the
// value is compared.
type Repository struct {
	Slug        string `json:"slug"`
	LastUpdated string `json:"last_updated"`
}

// Commit is one changeset descriptor from the upstream history API. Commits
// are consumed one page at a time and never persisted. The parsed timestamps
// preserve their upstream wall-clock renderings; RawUTCTimestamp keeps the
// exact wire string for outgoing events.
type Commit struct {
	Node            string
	RawAuthor       string
	UTCTimestamp    time.Time
	LocalTimestamp  time.Time
	RawUTCTimestamp string
}

// Event is the outgoing notification for a single qualifying commit. The
// JSON keys are the downstream wire format and must not change.
type Event struct {
	System    string `json:"system"`
	Timestamp string `json:"timestamp"`
	Username  string `json:"username"`
	Data      string `json:"data"`
	IsUTC     bool   `json:"is_utc"`
	TZInfo    string `json:"tzinfo"`
}
