// Package importer feeds transformed records into the catalog. Every
// record is an independent unit of work: a failure on one never rolls
// back or halts the others, and re-running over the same dump is a no-op
// because existing external ids are skipped.
package importer

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sort"

	"github.com/andrevros/imovelsync/internal/models"
)

// CatalogStore is the slice of the data layer the importer needs.
type CatalogStore interface {
	ExistsByExternalID(externalID int64) (bool, error)
	InsertEntry(externalID int64, payload string, photoCount int) (*models.CatalogEntry, error)
}

// RecordError ties a failure to the legacy id it belongs to, so batch
// summaries can name the offending record.
type RecordError struct {
	ExternalID int64  `json:"external_id"`
	Message    string `json:"message"`
}

// Summary is the result of one import run.
type Summary struct {
	Total     int           `json:"total"`
	Processed int           `json:"processed"`
	Skipped   int           `json:"skipped"`
	Failed    int           `json:"failed"`
	Errors    []RecordError `json:"errors,omitempty"`
}

// ProgressFunc receives per-record progress: records done so far and the
// total for this run.
type ProgressFunc func(done, total int)

type Importer struct {
	store CatalogStore
}

func New(store CatalogStore) *Importer {
	return &Importer{store: store}
}

// Import inserts each record as its own unit of work. Duplicates count
// as skipped (success), per-record failures are logged with the external
// id and counted, and the loop always continues.
func (im *Importer) Import(ctx context.Context, records []*models.Property, onProgress ProgressFunc) (*Summary, error) {
	summary := &Summary{Total: len(records)}
	for i, rec := range records {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		im.importOne(rec, summary)
		if onProgress != nil {
			onProgress(i+1, summary.Total)
		}
	}
	return summary, nil
}

// ImportWithCheckpoint is the resumable variant. The checkpoint file is
// rewritten after every single record, so a crash loses at most the one
// in-flight record, and a restart processes exactly the records with
// id > last_processed_id.
func (im *Importer) ImportWithCheckpoint(ctx context.Context, records []*models.Property, checkpointPath string, onProgress ProgressFunc) (*Summary, error) {
	cp, err := LoadCheckpoint(checkpointPath)
	if err != nil {
		return nil, fmt.Errorf("load checkpoint: %w", err)
	}
	if cp.LastProcessedID > 0 {
		log.Printf("Resuming import after record %d (%d already processed)", cp.LastProcessedID, cp.TotalProcessed)
	}

	// Ascending ids make the checkpoint watermark meaningful.
	sorted := make([]*models.Property, len(records))
	copy(sorted, records)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].SourceID < sorted[j].SourceID })

	var remaining []*models.Property
	for _, rec := range sorted {
		if rec.SourceID > cp.LastProcessedID {
			remaining = append(remaining, rec)
		}
	}

	summary := &Summary{Total: len(remaining)}
	for i, rec := range remaining {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		failedBefore := summary.Failed
		im.importOne(rec, summary)

		cp.LastProcessedID = rec.SourceID
		cp.TotalProcessed++
		if summary.Failed > failedBefore {
			cp.TotalFailed++
			cp.Errors = append(cp.Errors, summary.Errors[len(summary.Errors)-1])
		}
		if err := cp.Save(checkpointPath); err != nil {
			return summary, fmt.Errorf("persist checkpoint: %w", err)
		}
		if onProgress != nil {
			onProgress(i+1, summary.Total)
		}
	}
	return summary, nil
}

func (im *Importer) importOne(rec *models.Property, summary *Summary) {
	if rec == nil || rec.SourceID <= 0 {
		// Validation failure: dropped, never retried.
		summary.Failed++
		summary.Errors = append(summary.Errors, RecordError{Message: "record has no usable identifier"})
		return
	}

	exists, err := im.store.ExistsByExternalID(rec.SourceID)
	if err != nil {
		im.recordFailure(summary, rec.SourceID, fmt.Errorf("existence check: %w", err))
		return
	}
	if exists {
		summary.Skipped++
		return
	}

	payload, err := json.Marshal(rec)
	if err != nil {
		im.recordFailure(summary, rec.SourceID, fmt.Errorf("encode payload: %w", err))
		return
	}
	if _, err := im.store.InsertEntry(rec.SourceID, string(payload), rec.PhotoCount); err != nil {
		im.recordFailure(summary, rec.SourceID, err)
		return
	}
	summary.Processed++
}

func (im *Importer) recordFailure(summary *Summary, externalID int64, err error) {
	log.Printf("Import failed for record %d: %v", externalID, err)
	summary.Failed++
	summary.Errors = append(summary.Errors, RecordError{ExternalID: externalID, Message: err.Error()})
}

// FailureRate is the fraction of this run's records that failed.
func (s *Summary) FailureRate() float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(s.Failed) / float64(s.Total)
}
