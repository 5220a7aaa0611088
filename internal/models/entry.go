// Package models defines the row shapes persisted by the importer and the
// revision ledger.
package models

import "time"

// Entry statuses. Anything other than StatusOpen means the catalog no
// longer serves the entry; the remote error code is stored verbatim.
const (
	StatusOpen   = "open"
	StatusClosed = "closed"
)

// Entry is one catalog entry (a plugin). Rows are written once per slug;
// re-imports of a known slug are skipped, not updated.
type Entry struct {
	ID   string
	Name string
	// Slug is the stable catalog identifier, unique across the store.
	Slug string
	// CurrentVersion is nil for closed entries.
	CurrentVersion *string
	Status         string
	// Updated holds last_updated for open entries and the closed date for
	// closed ones.
	Updated  *time.Time
	PulledAt time.Time
}

// EntryFile is one distributable version artifact of an open entry.
// Created in the same transaction as its owning Entry, never independently.
type EntryFile struct {
	ID      string
	EntryID string
	FileURL string
	// Type tags where the artifact is served from; always "remote-cdn".
	Type    string
	Version string
}

// Revision is the per-action ledger record: the last repository revision
// successfully processed for that sync action.
type Revision struct {
	ID       string
	Action   string
	Revision int
}
