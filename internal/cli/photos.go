package cli

import (
	"fmt"
	"log"
	"time"

	"github.com/spf13/cobra"

	"github.com/andrevros/imovelsync/internal/legacy"
	"github.com/andrevros/imovelsync/internal/pipeline"
	"github.com/andrevros/imovelsync/internal/store"
)

var (
	photosWorkers int
	photosDryRun  bool
	photosNoCache bool
)

var photosCmd = &cobra.Command{
	Use:   "photos",
	Short: "Migrate listing photos from the legacy file server",
	Long: `Sweep the catalog for entries without migrated photos, probe the old
file server for each one, and copy whatever photos exist into object
storage. A thumbnail is derived from the first photo.

Progress is cached on disk: records already migrated or known to have
no photos are skipped on the next run. The cache is removed
automatically once nothing is left to do.

Examples:
  imovelsync photos
  imovelsync photos --workers 10
  imovelsync photos --dry-run`,
	Args: cobra.NoArgs,
	RunE: runPhotos,
}

func init() {
	photosCmd.Flags().IntVar(&photosWorkers, "workers", 0, "concurrent transfer workers (default from config)")
	photosCmd.Flags().BoolVar(&photosDryRun, "dry-run", false, "probe only, do not transfer or persist anything")
	photosCmd.Flags().BoolVar(&photosNoCache, "no-cache", false, "ignore and rebuild the progress cache")
}

func runPhotos(cmd *cobra.Command, args []string) error {
	cfg := app.Config()

	cache, err := pipeline.LoadCache(cfg.Cache.Path)
	if err != nil {
		return fmt.Errorf("load progress cache: %w", err)
	}
	if photosNoCache {
		if err := cache.Delete(); err != nil {
			return fmt.Errorf("discard progress cache: %w", err)
		}
	}

	workers := cfg.Pipeline.Workers
	if photosWorkers > 0 {
		workers = photosWorkers
	}

	m := pipeline.NewPhotoMigrator(
		store.New(app.DB()),
		legacy.NewWithTimeouts(cfg.Legacy.BaseURL,
			time.Duration(cfg.Legacy.ProbeTimeoutS)*time.Second,
			time.Duration(cfg.Legacy.FetchTimeoutS)*time.Second),
		app.Assets(),
		cache,
		pipeline.PhotoOptions{
			Workers:          workers,
			MaxPhotos:        cfg.Pipeline.MaxPhotos,
			ArchivedPhotoCap: cfg.Pipeline.ArchivedPhotoCap,
			Namespace:        cfg.Storage.Namespace,
			DryRun:           photosDryRun,
		},
	)

	summary, err := m.Run(cmd.Context(), func(done, total int) {
		if total > 0 && done%100 == 0 {
			log.Printf("Processed %d/%d entries...", done, total)
		}
	})
	if err != nil {
		return fmt.Errorf("photo migration: %w", err)
	}

	if photosDryRun {
		log.Printf("Dry run finished: %d would migrate, %d skipped, %d without photos, %d failed.",
			summary.WouldMigrate, summary.Skipped, summary.Unavailable, summary.Failed)
	} else {
		log.Printf("Photo migration finished: %d migrated, %d skipped, %d without photos, %d failed.",
			summary.Migrated, summary.Skipped, summary.Unavailable, summary.Failed)
	}

	return checkFailureRate(summary.FailureRate())
}
