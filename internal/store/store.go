// To handle all database interactions. This is our
// data access layer, keeping SQL queries separate from business logic.

package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/andrevros/imovelsync/internal/catalog"
	"github.com/andrevros/imovelsync/internal/models"
)

// Store provides all functions to interact with the database.
type Store struct {
	db *sql.DB
}

// New creates a new Store instance.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

const entryColumns = `id, external_id, payload, status, photo_count, photo_urls,
	thumbnail_url, reviewed_by, notes, content_repository_id, migrated_at, created_at, updated_at`

// InsertEntry creates a new catalog entry in status pending. The payload
// is the canonical property serialized as JSON.
func (s *Store) InsertEntry(externalID int64, payload string, photoCount int) (*models.CatalogEntry, error) {
	now := time.Now()
	res, err := s.db.Exec(`
		INSERT INTO catalog_entries (external_id, payload, status, photo_count, photo_urls, created_at, updated_at)
		VALUES (?, ?, ?, ?, '[]', ?, ?)`,
		externalID, payload, catalog.StatusPending, photoCount, now, now)
	if err != nil {
		return nil, err
	}
	id, _ := res.LastInsertId()
	return &models.CatalogEntry{
		ID:         id,
		ExternalID: externalID,
		Payload:    payload,
		Status:     catalog.StatusPending,
		PhotoCount: photoCount,
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}

// ExistsByExternalID reports whether a legacy record was already imported.
func (s *Store) ExistsByExternalID(externalID int64) (bool, error) {
	var one int
	err := s.db.QueryRow("SELECT 1 FROM catalog_entries WHERE external_id = ?", externalID).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// GetEntry retrieves a catalog entry by its primary key.
func (s *Store) GetEntry(id int64) (*models.CatalogEntry, error) {
	row := s.db.QueryRow("SELECT "+entryColumns+" FROM catalog_entries WHERE id = ?", id)
	return scanEntry(row)
}

// GetEntryByExternalID retrieves a catalog entry by the legacy record id.
func (s *Store) GetEntryByExternalID(externalID int64) (*models.CatalogEntry, error) {
	row := s.db.QueryRow("SELECT "+entryColumns+" FROM catalog_entries WHERE external_id = ?", externalID)
	return scanEntry(row)
}

// ListEntries returns a page of entries, optionally filtered by status,
// ordered by external id.
func (s *Store) ListEntries(status string, page, perPage int) ([]*models.CatalogEntry, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 50
	}
	query := "SELECT " + entryColumns + " FROM catalog_entries"
	args := []interface{}{}
	if status != "" {
		query += " WHERE status = ?"
		args = append(args, status)
	}
	query += " ORDER BY external_id ASC LIMIT ? OFFSET ?"
	args = append(args, perPage, (page-1)*perPage)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*models.CatalogEntry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// CountEntries counts entries, optionally filtered by status.
func (s *Store) CountEntries(status string) (int, error) {
	var count int
	var err error
	if status == "" {
		err = s.db.QueryRow("SELECT COUNT(*) FROM catalog_entries").Scan(&count)
	} else {
		err = s.db.QueryRow("SELECT COUNT(*) FROM catalog_entries WHERE status = ?", status).Scan(&count)
	}
	return count, err
}

// ListEntriesNeedingPhotos returns entries that declare photos but have
// no migrated URLs yet. Archived entries are included (their transfer is
// capped by the pipeline); migrated ones can no longer change.
func (s *Store) ListEntriesNeedingPhotos() ([]*models.CatalogEntry, error) {
	rows, err := s.db.Query("SELECT "+entryColumns+` FROM catalog_entries
		WHERE photo_count > 0 AND photo_urls = '[]' AND status != ?
		ORDER BY external_id ASC`, catalog.StatusMigrated)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*models.CatalogEntry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// TransitionStatus validates and applies a status change. The UPDATE is
// guarded on the expected current status so a concurrent change loses
// cleanly instead of overwriting.
func (s *Store) TransitionStatus(id int64, from, to string) error {
	if err := catalog.Transition(from, to); err != nil {
		return err
	}
	res, err := s.db.Exec(
		"UPDATE catalog_entries SET status = ?, updated_at = ? WHERE id = ? AND status = ?",
		to, time.Now(), id, from)
	if err != nil {
		return err
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return fmt.Errorf("entry %d is no longer %q: %w", id, from, catalog.ErrInvalidTransition)
	}
	return nil
}

// SetReview applies a review decision (approved or rejected) together
// with the reviewer audit fields in one statement.
func (s *Store) SetReview(id int64, to, reviewedBy, notes string) error {
	if to == catalog.StatusRejected && notes == "" {
		return catalog.ErrReasonRequired
	}
	if err := catalog.Transition(catalog.StatusReviewing, to); err != nil {
		return err
	}
	res, err := s.db.Exec(`
		UPDATE catalog_entries SET status = ?, reviewed_by = ?, notes = ?, updated_at = ?
		WHERE id = ? AND status = ?`,
		to, reviewedBy, notes, time.Now(), id, catalog.StatusReviewing)
	if err != nil {
		return err
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return fmt.Errorf("entry %d is not under review: %w", id, catalog.ErrInvalidTransition)
	}
	return nil
}

// ArchiveEntry moves an entry to archived from any non-migrated status.
func (s *Store) ArchiveEntry(id int64) error {
	res, err := s.db.Exec(
		"UPDATE catalog_entries SET status = ?, updated_at = ? WHERE id = ? AND status != ? AND status != ?",
		catalog.StatusArchived, time.Now(), id, catalog.StatusMigrated, catalog.StatusArchived)
	if err != nil {
		return err
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return fmt.Errorf("entry %d cannot be archived: %w", id, catalog.ErrInvalidTransition)
	}
	return nil
}

// UpdatePhotoResults persists the migrated photo URLs and the thumbnail
// in a single write, so a crash mid-transfer leaves the entry either
// fully un-migrated or fully migrated, never half-written.
func (s *Store) UpdatePhotoResults(id int64, urls []string, thumbnailURL string) error {
	encoded, err := json.Marshal(urls)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(`
		UPDATE catalog_entries SET photo_urls = ?, thumbnail_url = ?, updated_at = ?
		WHERE id = ?`,
		string(encoded), thumbnailURL, time.Now(), id)
	return err
}

// MarkMigrated flips an approved entry to migrated and records the
// content repository document id. The WHERE clause on status is the
// concurrency gate: if the entry is not approved anymore (or was already
// migrated by a concurrent run) zero rows are affected and the caller
// gets ErrNotApproved.
func (s *Store) MarkMigrated(id int64, contentID string) error {
	now := time.Now()
	res, err := s.db.Exec(`
		UPDATE catalog_entries SET status = ?, content_repository_id = ?, migrated_at = ?, updated_at = ?
		WHERE id = ? AND status = ?`,
		catalog.StatusMigrated, contentID, now, now, id, catalog.StatusApproved)
	if err != nil {
		return err
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return fmt.Errorf("entry %d: %w", id, catalog.ErrNotApproved)
	}
	return nil
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanEntry(row scanner) (*models.CatalogEntry, error) {
	var entry models.CatalogEntry
	var photoURLs string
	var thumbnail, reviewedBy, notes, contentID sql.NullString
	var migratedAt sql.NullTime
	err := row.Scan(&entry.ID, &entry.ExternalID, &entry.Payload, &entry.Status,
		&entry.PhotoCount, &photoURLs, &thumbnail, &reviewedBy, &notes, &contentID,
		&migratedAt, &entry.CreatedAt, &entry.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(photoURLs), &entry.PhotoURLs); err != nil {
		return nil, fmt.Errorf("entry %d has corrupt photo_urls: %w", entry.ID, err)
	}
	entry.ThumbnailURL = thumbnail.String
	entry.ReviewedBy = reviewedBy.String
	entry.Notes = notes.String
	entry.ContentID = contentID.String
	if migratedAt.Valid {
		entry.MigratedAt = &migratedAt.Time
	}
	return &entry, nil
}
