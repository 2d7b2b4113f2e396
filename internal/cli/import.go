package cli

import (
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/andrevros/imovelsync/internal/dump"
	"github.com/andrevros/imovelsync/internal/importer"
	"github.com/andrevros/imovelsync/internal/models"
	"github.com/andrevros/imovelsync/internal/store"
	"github.com/andrevros/imovelsync/internal/transform"
)

var (
	importNoResume       bool
	importIncludeDeleted bool
	importDryRun         bool
)

var importCmd = &cobra.Command{
	Use:   "import <dump file>",
	Short: "Import a legacy database dump into the review catalog",
	Long: `Parse a legacy SQL dump, transform each row into a canonical listing
record, and insert it into the review catalog in status pending.

The import checkpoints after every record; an interrupted run resumes
where it stopped. Records already in the catalog are skipped, so
re-importing the same dump is safe.

Examples:
  imovelsync import backup_2009.sql
  imovelsync import backup_2009.sql --no-resume
  imovelsync import backup_2009.sql --dry-run`,
	Args: cobra.ExactArgs(1),
	RunE: runImport,
}

func init() {
	importCmd.Flags().BoolVar(&importNoResume, "no-resume", false, "discard the checkpoint and start over")
	importCmd.Flags().BoolVar(&importIncludeDeleted, "include-deleted", false, "also import rows flagged deleted in the dump")
	importCmd.Flags().BoolVar(&importDryRun, "dry-run", false, "parse and transform only, do not touch the catalog or checkpoint")
}

func runImport(cmd *cobra.Command, args []string) error {
	path := args[0]
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open dump: %w", err)
	}
	defer file.Close()

	parser := dump.New()
	parser.IncludeDeleted = importIncludeDeleted

	var records []*models.Property
	var invalid int
	stats, err := parser.ParseReader(file, func(row *models.LegacyProperty) {
		record := transform.Record(row)
		if record == nil {
			invalid++
			return
		}
		records = append(records, record)
	})
	if err != nil {
		return fmt.Errorf("parse dump: %w", err)
	}

	log.Printf("Parsed %s: %d statements, %d rows, %d malformed, %d deleted.",
		path, stats.Statements, stats.Rows, stats.Malformed, stats.Deleted)
	if invalid > 0 {
		log.Printf("%d rows had no usable identifier and were dropped.", invalid)
	}

	if importDryRun {
		log.Printf("Dry run finished: %d records would be imported.", len(records))
		return nil
	}

	checkpointPath := app.Config().Importer.CheckpointPath
	if importNoResume {
		if err := importer.DeleteCheckpoint(checkpointPath); err != nil {
			return fmt.Errorf("discard checkpoint: %w", err)
		}
	}

	im := importer.New(store.New(app.DB()))
	summary, err := im.ImportWithCheckpoint(cmd.Context(), records, checkpointPath, func(done, total int) {
		if total > 0 && done%500 == 0 {
			log.Printf("Imported %d/%d records...", done, total)
		}
	})
	if err != nil {
		return fmt.Errorf("import: %w", err)
	}

	log.Printf("Import finished: %d processed, %d skipped, %d failed.",
		summary.Processed, summary.Skipped, summary.Failed)
	for _, recErr := range summary.Errors {
		log.Printf("  record %d: %s", recErr.ExternalID, recErr.Message)
	}

	return checkFailureRate(summary.FailureRate())
}

// checkFailureRate makes batch runs fail loudly when too large a share
// of records failed, instead of quietly reporting partial success.
func checkFailureRate(rate float64) error {
	threshold := app.Config().Pipeline.FailureThreshold
	if threshold > 0 && rate > threshold {
		return fmt.Errorf("failure rate %.1f%% exceeds threshold %.1f%%", rate*100, threshold*100)
	}
	return nil
}
