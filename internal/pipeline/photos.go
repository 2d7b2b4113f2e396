// This file implements the photo migration pass: probe the legacy file
// server for each catalog entry, copy whatever photos exist into object
// storage, derive a thumbnail, and persist the results in one write.
// The pass is idempotent at every level, so it can be re-run after any
// interruption without duplicating work.

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"path"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/andrevros/imovelsync/internal/catalog"
	"github.com/andrevros/imovelsync/internal/legacy"
	"github.com/andrevros/imovelsync/internal/models"
	"github.com/andrevros/imovelsync/internal/objectstore"
	"github.com/andrevros/imovelsync/internal/retry"
)

// probeDepth is how many leading sequence numbers are probed before a
// record is declared photoless. Legacy photo sets always start at 1, so
// three misses in a row means there is nothing to copy.
const probeDepth = 3

// recordTimeout bounds the total transfer work for one record.
const recordTimeout = 60 * time.Second

// PhotoSource is the legacy side of the pipeline.
type PhotoSource interface {
	Exists(ctx context.Context, propertyID int64, seq int) (bool, error)
	Fetch(ctx context.Context, propertyID int64, seq int) ([]byte, error)
}

// PhotoStore is the catalog side of the pipeline.
type PhotoStore interface {
	ListEntriesNeedingPhotos() ([]*models.CatalogEntry, error)
	UpdatePhotoResults(id int64, photoURLs []string, thumbnailURL string) error
}

// PhotoOptions tunes one photo migration pass.
type PhotoOptions struct {
	Workers          int
	MaxPhotos        int
	ArchivedPhotoCap int
	Namespace        string
	DryRun           bool
}

// PhotoSummary is the result of one pass. WouldMigrate is only filled by
// dry runs, which probe but never transfer.
type PhotoSummary struct {
	Total        int `json:"total"`
	Migrated     int `json:"migrated"`
	WouldMigrate int `json:"would_migrate,omitempty"`
	Skipped      int `json:"skipped"`
	Unavailable  int `json:"unavailable"`
	Failed       int `json:"failed"`
}

// FailureRate is the fraction of attempted records that failed.
func (s *PhotoSummary) FailureRate() float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(s.Failed) / float64(s.Total)
}

// PhotoMigrator runs the photo pass.
type PhotoMigrator struct {
	store  PhotoStore
	source PhotoSource
	assets objectstore.Store
	cache  *Cache
	opts   PhotoOptions
}

func NewPhotoMigrator(store PhotoStore, source PhotoSource, assets objectstore.Store, cache *Cache, opts PhotoOptions) *PhotoMigrator {
	if opts.Workers <= 0 {
		opts.Workers = 5
	}
	if opts.MaxPhotos <= 0 {
		opts.MaxPhotos = 20
	}
	if opts.ArchivedPhotoCap <= 0 {
		opts.ArchivedPhotoCap = 3
	}
	return &PhotoMigrator{store: store, source: source, assets: assets, cache: cache, opts: opts}
}

// Run migrates photos for every entry that still needs them, with a
// bounded worker pool. When the pass ends with nothing left to do, the
// progress cache is deleted so the next run starts clean.
func (m *PhotoMigrator) Run(ctx context.Context, onProgress func(done, total int)) (*PhotoSummary, error) {
	entries, err := m.store.ListEntriesNeedingPhotos()
	if err != nil {
		return nil, fmt.Errorf("list entries needing photos: %w", err)
	}

	// One prefix listing up front: photos that already made it into
	// object storage on a previous pass (whose cache or catalog write was
	// lost) are reconciled instead of re-fetched from the legacy server.
	stored := m.listStored(ctx)

	summary := &PhotoSummary{Total: len(entries)}
	var mu sync.Mutex
	var done int

	jobQueue := make(chan *models.CatalogEntry, m.opts.Workers)
	var wg sync.WaitGroup

	for i := 0; i < m.opts.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for entry := range jobQueue {
				outcome := m.migrateOne(ctx, entry, stored[entry.ExternalID])
				mu.Lock()
				switch outcome {
				case outcomeMigrated:
					summary.Migrated++
				case outcomeWouldMigrate:
					summary.WouldMigrate++
				case outcomeSkipped:
					summary.Skipped++
				case outcomeUnavailable:
					summary.Unavailable++
				case outcomeFailed:
					summary.Failed++
				}
				done++
				if onProgress != nil {
					onProgress(done, summary.Total)
				}
				mu.Unlock()
			}
		}()
	}

	for _, entry := range entries {
		if ctx.Err() != nil {
			break
		}
		jobQueue <- entry
	}
	close(jobQueue)
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return summary, err
	}

	// A fully settled catalog makes the cache dead weight.
	if m.opts.DryRun {
		return summary, nil
	}
	remaining, err := m.store.ListEntriesNeedingPhotos()
	if err == nil && len(remaining) == 0 && m.cache != nil {
		if err := m.cache.Delete(); err != nil {
			log.Printf("Could not delete progress cache: %v", err)
		}
	}

	return summary, nil
}

type outcome int

const (
	outcomeMigrated outcome = iota
	outcomeWouldMigrate
	outcomeSkipped
	outcomeUnavailable
	outcomeFailed
)

func (m *PhotoMigrator) migrateOne(ctx context.Context, entry *models.CatalogEntry, storedKeys []string) outcome {
	// Idempotence: results already persisted, or a previous pass settled
	// this id in the cache.
	if len(entry.PhotoURLs) > 0 {
		return outcomeSkipped
	}
	if m.cache != nil && m.cache.IsSettled(entry.ExternalID) {
		return outcomeSkipped
	}

	if !m.opts.DryRun && m.reconcile(entry, storedKeys) {
		return outcomeMigrated
	}

	ctx, cancel := context.WithTimeout(ctx, recordTimeout)
	defer cancel()

	found, err := m.probe(ctx, entry.ExternalID)
	if err != nil {
		log.Printf("Probe failed for record %d: %v", entry.ExternalID, err)
		return outcomeFailed
	}
	if !found {
		if m.cache != nil && !m.opts.DryRun {
			if err := m.cache.MarkUnavailable(entry.ExternalID); err != nil {
				log.Printf("Could not cache unavailable record %d: %v", entry.ExternalID, err)
			}
		}
		return outcomeUnavailable
	}

	if m.opts.DryRun {
		log.Printf("[dry-run] record %d has photos on the legacy server", entry.ExternalID)
		return outcomeWouldMigrate
	}

	urls, thumbnailURL, err := m.transfer(ctx, entry)
	if err != nil {
		log.Printf("Photo transfer failed for record %d: %v", entry.ExternalID, err)
		return outcomeFailed
	}

	// Single write: either all results land or none do.
	if err := m.store.UpdatePhotoResults(entry.ID, urls, thumbnailURL); err != nil {
		log.Printf("Could not persist photo results for record %d: %v", entry.ExternalID, err)
		return outcomeFailed
	}

	if m.cache != nil {
		if err := m.cache.MarkMigrated(entry.ExternalID); err != nil {
			log.Printf("Could not cache migrated record %d: %v", entry.ExternalID, err)
		}
	}
	return outcomeMigrated
}

// listStored scans the storage namespace once and groups keys by record.
// Keys come back in lexicographic order, which matches sequence order
// under the zero-padded layout.
func (m *PhotoMigrator) listStored(ctx context.Context) map[int64][]string {
	keys, err := m.assets.List(ctx, m.opts.Namespace+"/")
	if err != nil {
		log.Printf("Could not list stored photos: %v", err)
		return nil
	}
	stored := make(map[int64][]string)
	for _, key := range keys {
		rest := strings.TrimPrefix(key, m.opts.Namespace+"/")
		idPart, _, ok := strings.Cut(rest, "/")
		if !ok {
			continue
		}
		externalID, err := strconv.ParseInt(idPart, 10, 64)
		if err != nil {
			continue
		}
		stored[externalID] = append(stored[externalID], key)
	}
	return stored
}

// reconcile persists results for a record whose full photo set is
// already in object storage. Partially stored records fall through to a
// normal transfer, which overwrites the partial set harmlessly.
func (m *PhotoMigrator) reconcile(entry *models.CatalogEntry, storedKeys []string) bool {
	var urls []string
	thumbnailURL := ""
	for _, key := range storedKeys {
		if path.Base(key) == "thumb.jpg" {
			thumbnailURL = m.assets.URL(key)
			continue
		}
		urls = append(urls, m.assets.URL(key))
	}
	if len(urls) == 0 || len(urls) < m.expectedPhotos(entry) {
		return false
	}

	if err := m.store.UpdatePhotoResults(entry.ID, urls, thumbnailURL); err != nil {
		log.Printf("Could not reconcile stored photos for record %d: %v", entry.ExternalID, err)
		return false
	}
	if m.cache != nil {
		if err := m.cache.MarkMigrated(entry.ExternalID); err != nil {
			log.Printf("Could not cache migrated record %d: %v", entry.ExternalID, err)
		}
	}
	log.Printf("Record %d reconciled from object storage (%d photos)", entry.ExternalID, len(urls))
	return true
}

func (m *PhotoMigrator) expectedPhotos(entry *models.CatalogEntry) int {
	expected := entry.PhotoCount
	if expected > m.opts.MaxPhotos {
		expected = m.opts.MaxPhotos
	}
	if entry.Status == catalog.StatusArchived && expected > m.opts.ArchivedPhotoCap {
		expected = m.opts.ArchivedPhotoCap
	}
	return expected
}

// probe checks the first few sequence slots. Legacy photo sets start at
// 001, so if none of them answer, the record has no photos at all.
func (m *PhotoMigrator) probe(ctx context.Context, externalID int64) (bool, error) {
	for seq := 1; seq <= probeDepth; seq++ {
		var exists bool
		err := retry.Do(ctx, func() error {
			var probeErr error
			exists, probeErr = m.source.Exists(ctx, externalID, seq)
			return probeErr
		})
		if err != nil {
			return false, err
		}
		if exists {
			return true, nil
		}
	}
	return false, nil
}

// transfer copies every photo the record claims to have. Gaps in the
// sequence are tolerated, single photo failures are logged and skipped,
// and the returned URLs keep legacy display order.
func (m *PhotoMigrator) transfer(ctx context.Context, entry *models.CatalogEntry) ([]string, string, error) {
	// Archived listings keep a small evidence set, not the full gallery.
	expected := m.expectedPhotos(entry)

	var urls []string
	var firstPhoto []byte

	for seq := 1; seq <= expected; seq++ {
		var data []byte
		err := retry.DoIf(ctx, func(err error) bool {
			return !errors.Is(err, legacy.ErrNotFound)
		}, func() error {
			var fetchErr error
			data, fetchErr = m.source.Fetch(ctx, entry.ExternalID, seq)
			return fetchErr
		})
		if errors.Is(err, legacy.ErrNotFound) {
			continue // gap in the sequence
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil, "", ctx.Err()
			}
			log.Printf("Skipping photo %s: %v", legacy.PhotoFilename(entry.ExternalID, seq), err)
			continue
		}

		key := objectstore.PhotoKey(m.opts.Namespace, entry.ExternalID, seq)
		url, err := m.assets.Put(ctx, key, data, "image/jpeg")
		if err != nil {
			if ctx.Err() != nil {
				return nil, "", ctx.Err()
			}
			log.Printf("Skipping photo %s: %v", key, err)
			continue
		}
		urls = append(urls, url)
		if firstPhoto == nil {
			firstPhoto = data
		}
	}

	if len(urls) == 0 {
		return nil, "", fmt.Errorf("no photos could be transferred")
	}

	thumbnailURL := ""
	if thumb, err := GenerateThumbnail(firstPhoto); err != nil {
		// A broken first image costs the thumbnail, not the migration.
		log.Printf("Thumbnail generation failed for record %d: %v", entry.ExternalID, err)
	} else {
		key := objectstore.ThumbnailKey(m.opts.Namespace, entry.ExternalID)
		if url, err := m.assets.Put(ctx, key, thumb, "image/jpeg"); err != nil {
			log.Printf("Thumbnail upload failed for record %d: %v", entry.ExternalID, err)
		} else {
			thumbnailURL = url
		}
	}

	return urls, thumbnailURL, nil
}
