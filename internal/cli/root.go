// Package cli provides the command-line interface for imovelsync.
package cli

import (
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/andrevros/imovelsync/internal/core"
)

// Version is set at build time.
var Version = "0.1.0"

var app *core.App

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "imovelsync",
	Short: "Legacy real estate listings migration tool",
	Long: `Imovelsync migrates a legacy real estate agency's listings into a
modern content repository.

The migration runs in stages: import parses the legacy database dump
into a review catalog, photos copies listing photos from the old file
server into object storage, promote turns approved listings into
content repository documents, and serve runs the review API.`,
	Version: Version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "version" || cmd.Name() == "help" {
			return nil
		}
		var err error
		app, err = core.New(Version)
		return err
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if app != nil {
			app.Close()
		}
	},
}

// Execute adds all child commands to the root command and runs it.
func Execute() error {
	log.SetOutput(os.Stdout)
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(photosCmd)
	rootCmd.AddCommand(promoteCmd)
	rootCmd.AddCommand(serveCmd)
}
