// This file wires the pipeline stages up as background jobs and
// schedules the recurring photo sweep.

package jobs

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/andrevros/imovelsync/internal/contentrepo"
	"github.com/andrevros/imovelsync/internal/legacy"
	"github.com/andrevros/imovelsync/internal/models"
	"github.com/andrevros/imovelsync/internal/pipeline"
	"github.com/andrevros/imovelsync/internal/store"
)

const (
	JobPhotoMigration  = "photo-migration"
	JobPromoteApproved = "promote-approved"
)

// RegisterAll registers the standard background jobs with the manager.
func RegisterAll(jm *JobManager) {
	jm.Register(JobPhotoMigration, "Photo Migration", RunPhotoMigration)
	jm.Register(JobPromoteApproved, "Promote Approved Listings", RunPromoteApproved)
}

// StartJobs starts the background job scheduler.
func StartJobs(app JobContext) {
	s := gocron.NewScheduler(time.UTC)
	s.SingletonModeAll()

	startPhotoSweepJob(s, app)

	log.Println("Starting background job scheduler...")
	s.StartAsync()
}

func startPhotoSweepJob(s *gocron.Scheduler, app JobContext) {
	interval := app.Config().ScanInterval
	if interval == 0 {
		log.Println("Photo sweep interval is 0, scheduled sweeps are disabled.")
		return
	}

	log.Printf("Scheduling job: '%s' to run every %d minutes.", JobPhotoMigration, interval)

	_, err := s.Every(interval).Minutes().Do(func() {
		log.Println("Scheduler is triggering job:", JobPhotoMigration)
		// Submit through the manager so scheduled and manually triggered
		// runs can't overlap.
		if err := app.JobManager().RunJob(JobPhotoMigration, app); err != nil {
			log.Printf("Scheduled job '%s' could not start: %v", JobPhotoMigration, err)
		}
	})
	if err != nil {
		log.Printf("Error scheduling '%s' job: %v", JobPhotoMigration, err)
	}
}

// RunPhotoMigration sweeps the catalog for entries still missing photos
// and migrates them from the legacy file server.
func RunPhotoMigration(ctx JobContext) {
	cfg := ctx.Config()
	broadcast(ctx, JobPhotoMigration, "Starting photo migration sweep...", 0, false)

	cache, err := pipeline.LoadCache(cfg.Cache.Path)
	if err != nil {
		broadcast(ctx, JobPhotoMigration, "Could not load progress cache: "+err.Error(), 0, true)
		return
	}

	m := pipeline.NewPhotoMigrator(
		store.New(ctx.DB()),
		legacy.NewWithTimeouts(cfg.Legacy.BaseURL,
			time.Duration(cfg.Legacy.ProbeTimeoutS)*time.Second,
			time.Duration(cfg.Legacy.FetchTimeoutS)*time.Second),
		ctx.Assets(),
		cache,
		pipeline.PhotoOptions{
			Workers:          cfg.Pipeline.Workers,
			MaxPhotos:        cfg.Pipeline.MaxPhotos,
			ArchivedPhotoCap: cfg.Pipeline.ArchivedPhotoCap,
			Namespace:        cfg.Storage.Namespace,
		},
	)

	summary, err := m.Run(context.Background(), func(done, total int) {
		progress := 0.0
		if total > 0 {
			progress = float64(done) / float64(total) * 100
		}
		broadcast(ctx, JobPhotoMigration, "Migrating photos...", progress, false)
	})
	if err != nil {
		broadcast(ctx, JobPhotoMigration, "Photo migration failed: "+err.Error(), 0, true)
		return
	}

	msg := summaryMessage("Photo migration finished", summary.Migrated, summary.Skipped+summary.Unavailable, summary.Failed)
	broadcast(ctx, JobPhotoMigration, msg, 100, true)
}

// RunPromoteApproved promotes every approved catalog entry into the
// content repository.
func RunPromoteApproved(ctx JobContext) {
	cfg := ctx.Config()
	broadcast(ctx, JobPromoteApproved, "Starting promotion of approved listings...", 0, false)

	p := pipeline.NewPromoter(
		store.New(ctx.DB()),
		ctx.Assets(),
		contentrepo.New(cfg.ContentRepo.BaseURL, cfg.ContentRepo.Token),
		pipeline.PromoteOptions{
			Workers:   cfg.Pipeline.Workers,
			Namespace: cfg.Storage.Namespace,
		},
	)

	summary, err := p.Run(context.Background(), func(done, total int) {
		progress := 0.0
		if total > 0 {
			progress = float64(done) / float64(total) * 100
		}
		broadcast(ctx, JobPromoteApproved, "Promoting approved listings...", progress, false)
	})
	if err != nil {
		broadcast(ctx, JobPromoteApproved, "Promotion failed: "+err.Error(), 0, true)
		return
	}

	msg := summaryMessage("Promotion finished", summary.Promoted, 0, summary.Failed)
	broadcast(ctx, JobPromoteApproved, msg, 100, true)
}

func summaryMessage(prefix string, done, skipped, failed int) string {
	return fmt.Sprintf("%s: %d done, %d skipped, %d failed.", prefix, done, skipped, failed)
}

func broadcast(ctx JobContext, jobID, message string, progress float64, done bool) {
	ctx.WsHub().BroadcastJSON(models.ProgressUpdate{
		JobID:    jobID,
		Message:  message,
		Progress: progress,
		Done:     done,
	})
}
