package cli

import (
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"github.com/andrevros/imovelsync/internal/contentrepo"
	"github.com/andrevros/imovelsync/internal/pipeline"
	"github.com/andrevros/imovelsync/internal/store"
)

var (
	promoteWorkers int
	promoteDryRun  bool
)

var promoteCmd = &cobra.Command{
	Use:   "promote",
	Short: "Promote approved listings into the content repository",
	Long: `Create a content repository document for every approved catalog
entry. The entry's migrated photos are uploaded as repository assets and
its description is converted to rich text blocks.

Each promotion is tracked as a migration task; failures leave the entry
approved so the run can be repeated.

Examples:
  imovelsync promote
  imovelsync promote --workers 4
  imovelsync promote --dry-run`,
	Args: cobra.NoArgs,
	RunE: runPromote,
}

func init() {
	promoteCmd.Flags().IntVar(&promoteWorkers, "workers", 0, "concurrent promotion workers (default from config)")
	promoteCmd.Flags().BoolVar(&promoteDryRun, "dry-run", false, "report eligible entries, do not promote anything")
}

func runPromote(cmd *cobra.Command, args []string) error {
	cfg := app.Config()
	if cfg.ContentRepo.BaseURL == "" && !promoteDryRun {
		return fmt.Errorf("contentrepo.base_url is not configured")
	}

	workers := cfg.Pipeline.Workers
	if promoteWorkers > 0 {
		workers = promoteWorkers
	}

	p := pipeline.NewPromoter(
		store.New(app.DB()),
		app.Assets(),
		contentrepo.New(cfg.ContentRepo.BaseURL, cfg.ContentRepo.Token),
		pipeline.PromoteOptions{
			Workers:   workers,
			Namespace: cfg.Storage.Namespace,
			DryRun:    promoteDryRun,
		},
	)

	summary, err := p.Run(cmd.Context(), func(done, total int) {
		log.Printf("Promoted %d/%d entries...", done, total)
	})
	if err != nil {
		return fmt.Errorf("promotion: %w", err)
	}

	if promoteDryRun {
		log.Printf("Dry run finished: %d entries would be promoted.", summary.WouldPromote)
	} else {
		log.Printf("Promotion finished: %d promoted, %d failed.", summary.Promoted, summary.Failed)
	}

	return checkFailureRate(summary.FailureRate())
}
