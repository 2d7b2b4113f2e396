package models

import "time"

// CatalogEntry wraps an imported legacy record for human review. The raw
// legacy row is kept as an opaque JSON payload; everything else is the
// mutable review/migration state. Entries are never deleted, only archived.
type CatalogEntry struct {
	ID           int64      `json:"id"`
	ExternalID   int64      `json:"external_id"`
	Payload      string     `json:"-"` // canonical Property as JSON
	Status       string     `json:"status"`
	PhotoCount   int        `json:"photo_count"`
	PhotoURLs    []string   `json:"photo_urls"` // ordered, first = thumbnail source
	ThumbnailURL string     `json:"thumbnail_url,omitempty"`
	ReviewedBy   string     `json:"reviewed_by,omitempty"`
	Notes        string     `json:"notes,omitempty"`
	ContentID    string     `json:"content_repository_id,omitempty"`
	MigratedAt   *time.Time `json:"migrated_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}
