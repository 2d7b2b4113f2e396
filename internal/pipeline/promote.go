// This file implements promotion: turning an approved catalog entry into
// a content repository document. Promotion is guarded twice. GateMigration
// rejects anything not approved before any side effect, and MarkMigrated
// is a conditional update so a concurrent promoter loses cleanly.

package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"path"
	"sync"

	"github.com/andrevros/imovelsync/internal/catalog"
	"github.com/andrevros/imovelsync/internal/contentrepo"
	"github.com/andrevros/imovelsync/internal/models"
	"github.com/andrevros/imovelsync/internal/objectstore"
	"github.com/andrevros/imovelsync/internal/retry"
)

// PromoteStore is the catalog and task side of promotion.
type PromoteStore interface {
	ListEntries(status string, page, perPage int) ([]*models.CatalogEntry, error)
	MarkMigrated(id int64, contentID string) error
	CreateTask(entryID int64) (*models.MigrationTask, error)
	MarkTaskProcessing(id int64) error
	UpdateTaskProgress(id int64, progress int) error
	CompleteTask(id int64) error
	FailTask(id int64, message string) error
}

// ContentRepo is the destination side of promotion.
type ContentRepo interface {
	UploadAsset(ctx context.Context, filename string, data []byte) (*contentrepo.AssetRef, error)
	CreateDocument(ctx context.Context, doc *contentrepo.Document) (string, error)
}

// PromoteOptions tunes one promotion pass.
type PromoteOptions struct {
	Workers   int
	Namespace string
	DryRun    bool
}

// PromoteSummary is the result of one promotion pass. WouldPromote is
// only filled by dry runs.
type PromoteSummary struct {
	Total        int `json:"total"`
	Promoted     int `json:"promoted"`
	WouldPromote int `json:"would_promote,omitempty"`
	Failed       int `json:"failed"`
}

// FailureRate is the fraction of attempted promotions that failed.
func (s *PromoteSummary) FailureRate() float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(s.Failed) / float64(s.Total)
}

// Promoter migrates approved entries into the content repository.
type Promoter struct {
	store  PromoteStore
	assets objectstore.Store
	repo   ContentRepo
	opts   PromoteOptions
}

func NewPromoter(store PromoteStore, assets objectstore.Store, repo ContentRepo, opts PromoteOptions) *Promoter {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	return &Promoter{store: store, assets: assets, repo: repo, opts: opts}
}

// Run promotes every approved entry with a bounded worker pool. Records
// are independent: each gets its own task record and the guarded status
// flip, so concurrent promotions never double-migrate. Failures are
// isolated: a failed entry gets a failed task record and stays approved
// for a later retry.
func (p *Promoter) Run(ctx context.Context, onProgress func(done, total int)) (*PromoteSummary, error) {
	const batchSize = 200

	var entries []*models.CatalogEntry
	for page := 1; ; page++ {
		batch, err := p.store.ListEntries(catalog.StatusApproved, page, batchSize)
		if err != nil {
			return nil, fmt.Errorf("list approved entries: %w", err)
		}
		entries = append(entries, batch...)
		if len(batch) < batchSize {
			break
		}
	}

	summary := &PromoteSummary{Total: len(entries)}
	var mu sync.Mutex
	var done int

	jobQueue := make(chan *models.CatalogEntry, p.opts.Workers)
	var wg sync.WaitGroup

	for i := 0; i < p.opts.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for entry := range jobQueue {
				var would, failed bool
				if p.opts.DryRun {
					if err := catalog.GateMigration(entry.Status); err != nil {
						log.Printf("[dry-run] record %d not eligible: %v", entry.ExternalID, err)
						failed = true
					} else {
						log.Printf("[dry-run] record %d would be promoted", entry.ExternalID)
						would = true
					}
				} else if err := p.Promote(ctx, entry); err != nil {
					log.Printf("Promotion failed for record %d: %v", entry.ExternalID, err)
					failed = true
				}

				mu.Lock()
				switch {
				case would:
					summary.WouldPromote++
				case failed:
					summary.Failed++
				default:
					summary.Promoted++
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
	return summary, nil
}

// Promote migrates a single entry. The status gate runs before the task
// record is created, so ineligible entries leave no trace.
func (p *Promoter) Promote(ctx context.Context, entry *models.CatalogEntry) error {
	if err := catalog.GateMigration(entry.Status); err != nil {
		return err
	}

	task, err := p.store.CreateTask(entry.ID)
	if err != nil {
		return fmt.Errorf("create task: %w", err)
	}
	if err := p.store.MarkTaskProcessing(task.ID); err != nil {
		return fmt.Errorf("mark task processing: %w", err)
	}

	contentID, err := p.promote(ctx, entry, task.ID)
	if err != nil {
		if failErr := p.store.FailTask(task.ID, err.Error()); failErr != nil {
			log.Printf("Could not record task failure for record %d: %v", entry.ExternalID, failErr)
		}
		return err
	}

	if err := p.store.CompleteTask(task.ID); err != nil {
		log.Printf("Could not complete task for record %d: %v", entry.ExternalID, err)
	}
	log.Printf("Record %d promoted as document %s", entry.ExternalID, contentID)
	return nil
}

func (p *Promoter) promote(ctx context.Context, entry *models.CatalogEntry, taskID int64) (string, error) {
	var prop models.Property
	if err := json.Unmarshal([]byte(entry.Payload), &prop); err != nil {
		return "", fmt.Errorf("decode payload: %w", err)
	}

	refs, err := p.uploadPhotos(ctx, entry, taskID)
	if err != nil {
		return "", err
	}

	doc := &contentrepo.Document{
		Property: &prop,
		Blocks:   contentrepo.BlocksFromLegacyHTML(prop.Desc),
		Assets:   refs,
	}

	var contentID string
	err = retry.Do(ctx, func() error {
		var createErr error
		contentID, createErr = p.repo.CreateDocument(ctx, doc)
		return createErr
	})
	if err != nil {
		return "", fmt.Errorf("create document: %w", err)
	}

	// The conditional update is the final arbiter under concurrency.
	if err := p.store.MarkMigrated(entry.ID, contentID); err != nil {
		return "", err
	}
	return contentID, nil
}

// uploadPhotos replays the entry's stored photos from object storage into
// the content repository, preserving order. The thumbnail stays in object
// storage; the repository derives its own renditions.
func (p *Promoter) uploadPhotos(ctx context.Context, entry *models.CatalogEntry, taskID int64) ([]contentrepo.AssetRef, error) {
	prefix := fmt.Sprintf("%s/%d/", p.opts.Namespace, entry.ExternalID)
	keys, err := p.assets.List(ctx, prefix)
	if err != nil {
		return nil, fmt.Errorf("list stored photos: %w", err)
	}

	var refs []contentrepo.AssetRef
	for i, key := range keys {
		if path.Base(key) == "thumb.jpg" {
			continue
		}
		data, err := p.assets.Get(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("read stored photo %s: %w", key, err)
		}

		filename := fmt.Sprintf("%d_%s", entry.ExternalID, path.Base(key))
		var ref *contentrepo.AssetRef
		err = retry.Do(ctx, func() error {
			var upErr error
			ref, upErr = p.repo.UploadAsset(ctx, filename, data)
			return upErr
		})
		if err != nil {
			return nil, fmt.Errorf("upload asset %s: %w", key, err)
		}
		refs = append(refs, *ref)

		if len(keys) > 0 {
			progress := (i + 1) * 90 / len(keys)
			if err := p.store.UpdateTaskProgress(taskID, progress); err != nil {
				log.Printf("Could not update task progress: %v", err)
			}
		}
	}
	return refs, nil
}
