package pipeline_test

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"path/filepath"
	"strings"
	"testing"

	"github.com/andrevros/imovelsync/internal/catalog"
	"github.com/andrevros/imovelsync/internal/legacy"
	"github.com/andrevros/imovelsync/internal/objectstore"
	"github.com/andrevros/imovelsync/internal/pipeline"
	"github.com/andrevros/imovelsync/internal/store"
	"github.com/andrevros/imovelsync/internal/testutil"
)

// fakeSource serves photos from a map keyed by legacy filename.
type fakeSource struct {
	photos map[string][]byte
}

func (f *fakeSource) Exists(_ context.Context, id int64, seq int) (bool, error) {
	_, ok := f.photos[legacy.PhotoFilename(id, seq)]
	return ok, nil
}

func (f *fakeSource) Fetch(_ context.Context, id int64, seq int) ([]byte, error) {
	data, ok := f.photos[legacy.PhotoFilename(id, seq)]
	if !ok {
		return nil, legacy.ErrNotFound
	}
	return data, nil
}

// testImage is a decodable PNG, so thumbnail generation succeeds.
func testImage(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 400, 300))
	img.Set(0, 0, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode test image: %v", err)
	}
	return buf.Bytes()
}

func newCache(t *testing.T) *pipeline.Cache {
	t.Helper()
	c, err := pipeline.LoadCache(filepath.Join(t.TempDir(), "cache.json"))
	if err != nil {
		t.Fatalf("LoadCache failed: %v", err)
	}
	return c
}

func TestMigratePartialPhotoSet(t *testing.T) {
	db := testutil.SetupTestDB(t)
	s := store.New(db)
	entry, _ := s.InsertEntry(482, "{}", 5)

	img := testImage(t)
	// Photos 2 and 4 are gone from the legacy server.
	source := &fakeSource{photos: map[string][]byte{
		"482_001.jpg": img,
		"482_003.jpg": img,
		"482_005.jpg": img,
	}}
	assets := objectstore.NewMemStore()

	m := pipeline.NewPhotoMigrator(s, source, assets, newCache(t), pipeline.PhotoOptions{
		Workers:   1,
		Namespace: "listings",
	})
	summary, err := m.Run(context.Background(), nil)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if summary.Migrated != 1 || summary.Failed != 0 {
		t.Fatalf("summary wrong: %+v", summary)
	}

	got, _ := s.GetEntry(entry.ID)
	if len(got.PhotoURLs) != 3 {
		t.Fatalf("expected exactly 3 urls, got %v", got.PhotoURLs)
	}
	for i, want := range []string{"001", "003", "005"} {
		if !strings.Contains(got.PhotoURLs[i], want) {
			t.Errorf("url %d = %q, want sequence %s", i, got.PhotoURLs[i], want)
		}
	}
	if got.ThumbnailURL == "" {
		t.Error("expected a thumbnail url")
	}
	if _, err := assets.Get(context.Background(), objectstore.ThumbnailKey("listings", 482)); err != nil {
		t.Errorf("thumbnail object missing: %v", err)
	}
}

func TestMigrateMarksUnavailable(t *testing.T) {
	db := testutil.SetupTestDB(t)
	s := store.New(db)
	s.InsertEntry(700, "{}", 4)

	cache := newCache(t)
	m := pipeline.NewPhotoMigrator(s, &fakeSource{photos: map[string][]byte{}}, objectstore.NewMemStore(), cache, pipeline.PhotoOptions{
		Workers:   1,
		Namespace: "listings",
	})
	summary, err := m.Run(context.Background(), nil)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if summary.Unavailable != 1 {
		t.Errorf("summary wrong: %+v", summary)
	}
	if !cache.IsSettled(700) {
		t.Error("photoless record must be settled in the cache")
	}

	// A second pass skips it without probing again.
	summary, err = m.Run(context.Background(), nil)
	if err != nil {
		t.Fatalf("second Run failed: %v", err)
	}
	if summary.Skipped != 1 || summary.Unavailable != 0 {
		t.Errorf("second pass must skip via cache: %+v", summary)
	}
}

func TestMigrateSkipsEntriesWithResults(t *testing.T) {
	db := testutil.SetupTestDB(t)
	s := store.New(db)
	entry, _ := s.InsertEntry(10, "{}", 2)
	s.UpdatePhotoResults(entry.ID, []string{"mem://done"}, "")

	m := pipeline.NewPhotoMigrator(s, &fakeSource{photos: map[string][]byte{}}, objectstore.NewMemStore(), newCache(t), pipeline.PhotoOptions{
		Workers:   1,
		Namespace: "listings",
	})
	summary, err := m.Run(context.Background(), nil)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	// Entries with persisted urls never appear in the work list at all.
	if summary.Total != 0 {
		t.Errorf("expected empty work list, got %+v", summary)
	}
}

func TestArchivedEntriesKeepFewerPhotos(t *testing.T) {
	db := testutil.SetupTestDB(t)
	s := store.New(db)
	entry, _ := s.InsertEntry(55, "{}", 6)
	if err := s.ArchiveEntry(entry.ID); err != nil {
		t.Fatalf("ArchiveEntry failed: %v", err)
	}
	got, _ := s.GetEntry(entry.ID)
	if got.Status != catalog.StatusArchived {
		t.Fatalf("setup wrong: %+v", got)
	}

	img := testImage(t)
	photos := make(map[string][]byte)
	for seq := 1; seq <= 6; seq++ {
		photos[fmt.Sprintf("55_%03d.jpg", seq)] = img
	}

	m := pipeline.NewPhotoMigrator(s, &fakeSource{photos: photos}, objectstore.NewMemStore(), newCache(t), pipeline.PhotoOptions{
		Workers:          1,
		ArchivedPhotoCap: 3,
		Namespace:        "listings",
	})
	if _, err := m.Run(context.Background(), nil); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	got, _ = s.GetEntry(entry.ID)
	if len(got.PhotoURLs) != 3 {
		t.Errorf("archived entry must keep at most 3 photos, got %d", len(got.PhotoURLs))
	}
}

func TestDryRunProbesWithoutSideEffects(t *testing.T) {
	db := testutil.SetupTestDB(t)
	s := store.New(db)
	entry, _ := s.InsertEntry(300, "{}", 2)

	assets := objectstore.NewMemStore()
	cache := newCache(t)
	m := pipeline.NewPhotoMigrator(s, &fakeSource{photos: map[string][]byte{
		"300_001.jpg": testImage(t),
	}}, assets, cache, pipeline.PhotoOptions{
		Workers:   1,
		Namespace: "listings",
		DryRun:    true,
	})
	summary, err := m.Run(context.Background(), nil)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	// A dry run reports what it would do, never what it did.
	if summary.WouldMigrate != 1 || summary.Migrated != 0 {
		t.Errorf("summary wrong: %+v", summary)
	}
	if assets.Len() != 0 {
		t.Error("dry run must not upload anything")
	}
	got, _ := s.GetEntry(entry.ID)
	if len(got.PhotoURLs) != 0 {
		t.Errorf("dry run must not persist results: %+v", got)
	}
	if cache.IsSettled(300) {
		t.Error("dry run must not touch the cache")
	}
}

func TestReconcileFromObjectStore(t *testing.T) {
	db := testutil.SetupTestDB(t)
	s := store.New(db)
	entry, _ := s.InsertEntry(900, "{}", 2)

	// Photos landed in object storage on an earlier pass, but the catalog
	// write was lost. The legacy server no longer answers at all.
	assets := objectstore.NewMemStore()
	ctx := context.Background()
	assets.Put(ctx, objectstore.PhotoKey("listings", 900, 1), []byte("a"), "image/jpeg")
	assets.Put(ctx, objectstore.PhotoKey("listings", 900, 2), []byte("b"), "image/jpeg")
	assets.Put(ctx, objectstore.ThumbnailKey("listings", 900), []byte("t"), "image/jpeg")

	m := pipeline.NewPhotoMigrator(s, &fakeSource{photos: map[string][]byte{}}, assets, newCache(t), pipeline.PhotoOptions{
		Workers:   1,
		Namespace: "listings",
	})
	summary, err := m.Run(ctx, nil)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if summary.Migrated != 1 || summary.Unavailable != 0 {
		t.Fatalf("expected reconciliation, got %+v", summary)
	}

	got, _ := s.GetEntry(entry.ID)
	if len(got.PhotoURLs) != 2 || got.ThumbnailURL == "" {
		t.Errorf("reconciled entry wrong: %+v", got)
	}
}

func TestCacheDeletedWhenPassCompletes(t *testing.T) {
	db := testutil.SetupTestDB(t)
	s := store.New(db)
	s.InsertEntry(1, "{}", 1)

	cachePath := filepath.Join(t.TempDir(), "cache.json")
	cache, _ := pipeline.LoadCache(cachePath)

	m := pipeline.NewPhotoMigrator(s, &fakeSource{photos: map[string][]byte{"1_001.jpg": testImage(t)}}, objectstore.NewMemStore(), cache, pipeline.PhotoOptions{
		Workers:   1,
		Namespace: "listings",
	})
	if _, err := m.Run(context.Background(), nil); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	// Everything settled: the cache file must be gone.
	if cache.IsSettled(1) {
		t.Error("completed pass must clear the cache")
	}
}
