package importer_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/andrevros/imovelsync/internal/importer"
	"github.com/andrevros/imovelsync/internal/models"
	"github.com/andrevros/imovelsync/internal/store"
	"github.com/andrevros/imovelsync/internal/testutil"
)

func record(id int64) *models.Property {
	return &models.Property{
		SourceID:   id,
		Slug:       "casa-teste",
		Type:       models.TypeCasa,
		Intent:     models.IntentVenda,
		Title:      "Casa Teste",
		PhotoCount: 2,
	}
}

func TestImportIdempotence(t *testing.T) {
	db := testutil.SetupTestDB(t)
	s := store.New(db)
	im := importer.New(s)

	records := []*models.Property{record(1), record(2), record(3)}

	first, err := im.Import(context.Background(), records, nil)
	if err != nil {
		t.Fatalf("first import failed: %v", err)
	}
	if first.Processed != 3 || first.Skipped != 0 || first.Failed != 0 {
		t.Errorf("first run summary wrong: %+v", first)
	}

	second, err := im.Import(context.Background(), records, nil)
	if err != nil {
		t.Fatalf("second import failed: %v", err)
	}
	if second.Skipped != 3 || second.Processed != 0 || second.Failed != 0 {
		t.Errorf("re-run must skip everything: %+v", second)
	}

	count, _ := s.CountEntries("")
	if count != 3 {
		t.Errorf("expected 3 entries after two runs, got %d", count)
	}
}

func TestImportRecordsFailuresAndContinues(t *testing.T) {
	db := testutil.SetupTestDB(t)
	s := store.New(db)
	im := importer.New(s)

	records := []*models.Property{record(1), nil, record(2)}

	summary, err := im.Import(context.Background(), records, nil)
	if err != nil {
		t.Fatalf("import failed: %v", err)
	}
	if summary.Processed != 2 || summary.Failed != 1 {
		t.Errorf("summary wrong: %+v", summary)
	}
	if len(summary.Errors) != 1 {
		t.Fatalf("expected 1 recorded error, got %d", len(summary.Errors))
	}
	if summary.FailureRate() < 0.3 || summary.FailureRate() > 0.4 {
		t.Errorf("failure rate wrong: %f", summary.FailureRate())
	}
}

func TestImportProgressCallback(t *testing.T) {
	db := testutil.SetupTestDB(t)
	im := importer.New(store.New(db))

	var calls []int
	_, err := im.Import(context.Background(), []*models.Property{record(1), record(2)}, func(done, total int) {
		if total != 2 {
			t.Errorf("expected total 2, got %d", total)
		}
		calls = append(calls, done)
	})
	if err != nil {
		t.Fatalf("import failed: %v", err)
	}
	if len(calls) != 2 || calls[0] != 1 || calls[1] != 2 {
		t.Errorf("progress calls wrong: %v", calls)
	}
}

func TestCheckpointResumability(t *testing.T) {
	db := testutil.SetupTestDB(t)
	s := store.New(db)
	im := importer.New(s)
	cpPath := filepath.Join(t.TempDir(), "checkpoint.json")

	all := []*models.Property{record(10), record(20), record(30), record(40)}

	// First pass over a partial batch, as if the run died after two records.
	summary, err := im.ImportWithCheckpoint(context.Background(), all[:2], cpPath, nil)
	if err != nil {
		t.Fatalf("partial import failed: %v", err)
	}
	if summary.Processed != 2 {
		t.Errorf("partial summary wrong: %+v", summary)
	}

	cp, err := importer.LoadCheckpoint(cpPath)
	if err != nil {
		t.Fatalf("LoadCheckpoint failed: %v", err)
	}
	if cp.LastProcessedID != 20 || cp.TotalProcessed != 2 {
		t.Errorf("checkpoint wrong: %+v", cp)
	}

	// Resume with the full batch: only ids above the watermark run.
	resumed, err := im.ImportWithCheckpoint(context.Background(), all, cpPath, nil)
	if err != nil {
		t.Fatalf("resumed import failed: %v", err)
	}
	if resumed.Total != 2 || resumed.Processed != 2 || resumed.Skipped != 0 {
		t.Errorf("resume must only touch unprocessed records: %+v", resumed)
	}

	cp, _ = importer.LoadCheckpoint(cpPath)
	if cp.LastProcessedID != 40 || cp.TotalProcessed != 4 {
		t.Errorf("final checkpoint wrong: %+v", cp)
	}

	count, _ := s.CountEntries("")
	if count != 4 {
		t.Errorf("expected 4 entries total, got %d", count)
	}
}

func TestCheckpointSortsUnorderedInput(t *testing.T) {
	db := testutil.SetupTestDB(t)
	im := importer.New(store.New(db))
	cpPath := filepath.Join(t.TempDir(), "checkpoint.json")

	unordered := []*models.Property{record(30), record(10), record(20)}
	if _, err := im.ImportWithCheckpoint(context.Background(), unordered, cpPath, nil); err != nil {
		t.Fatalf("import failed: %v", err)
	}

	cp, _ := importer.LoadCheckpoint(cpPath)
	if cp.LastProcessedID != 30 {
		t.Errorf("watermark must be the highest id, got %d", cp.LastProcessedID)
	}
}

func TestDeleteCheckpoint(t *testing.T) {
	cpPath := filepath.Join(t.TempDir(), "checkpoint.json")
	cp := &importer.Checkpoint{LastProcessedID: 5}
	if err := cp.Save(cpPath); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if err := importer.DeleteCheckpoint(cpPath); err != nil {
		t.Fatalf("DeleteCheckpoint failed: %v", err)
	}
	if _, err := os.Stat(cpPath); !os.IsNotExist(err) {
		t.Error("checkpoint file should be gone")
	}
	// Deleting again is not an error.
	if err := importer.DeleteCheckpoint(cpPath); err != nil {
		t.Errorf("second delete failed: %v", err)
	}

	fresh, err := importer.LoadCheckpoint(cpPath)
	if err != nil {
		t.Fatalf("LoadCheckpoint after delete failed: %v", err)
	}
	if fresh.LastProcessedID != 0 {
		t.Errorf("missing checkpoint must load as fresh start: %+v", fresh)
	}
}
