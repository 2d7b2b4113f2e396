package cli

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/andrevros/imovelsync/internal/api"
	"github.com/andrevros/imovelsync/internal/auth"
	"github.com/andrevros/imovelsync/internal/dump"
	"github.com/andrevros/imovelsync/internal/importer"
	"github.com/andrevros/imovelsync/internal/jobs"
	"github.com/andrevros/imovelsync/internal/models"
	"github.com/andrevros/imovelsync/internal/store"
	"github.com/andrevros/imovelsync/internal/transform"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the review API server",
	Long: `Start the web server that backs the catalog review UI: session
authentication, catalog and task endpoints, admin job triggers and a
websocket with live migration progress.

With inbox.enabled, a directory watcher imports any legacy dump dropped
into the inbox. With scan_interval set, the photo migration sweep runs
on a schedule.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	st := store.New(app.DB())

	// --- First User Provisioning ---
	userCount, err := st.CountUsers()
	if err != nil {
		return fmt.Errorf("could not check user count: %w", err)
	}
	if userCount == 0 {
		log.Println("No users found. Creating default admin account.")
		password := generateRandomPassword(12)
		passwordHash, _ := auth.HashPassword(password)
		if _, err := st.CreateUser("admin", passwordHash, "admin"); err != nil {
			return fmt.Errorf("could not create default admin user: %w", err)
		}
		log.Println("==================================================")
		log.Println("Default admin user created.")
		log.Printf("Username: admin")
		log.Printf("Password: %s", password)
		log.Println("Please change this password immediately.")
		log.Println("==================================================")
	}

	// Scheduled photo sweeps.
	jobs.StartJobs(app)

	// Dump inbox: new files trigger an import automatically.
	if app.Config().Inbox.Enabled {
		watcher := importer.NewInboxWatcher(app.Config().Inbox.Path, importDumpFile)
		if err := watcher.Start(); err != nil {
			return fmt.Errorf("could not start inbox watcher: %w", err)
		}
		defer watcher.Stop()
	}

	server := api.NewServer(app)
	addr := fmt.Sprintf(":%d", app.Config().Port)
	httpServer := &http.Server{
		Addr:    addr,
		Handler: server.Router(),
	}

	// --- Graceful Shutdown ---
	go func() {
		log.Printf("Starting web server on %s", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Could not start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Println("Server exiting.")
	return nil
}

// importDumpFile is the inbox watcher callback: parse, transform and
// import one dropped dump file.
func importDumpFile(path string) {
	log.Printf("Importing dump from inbox: %s", path)

	file, err := os.Open(path)
	if err != nil {
		log.Printf("Could not open inbox dump %s: %v", path, err)
		return
	}
	defer file.Close()

	var records []*models.Property
	if _, err := dump.New().ParseReader(file, func(row *models.LegacyProperty) {
		if record := transform.Record(row); record != nil {
			records = append(records, record)
		}
	}); err != nil {
		log.Printf("Could not parse inbox dump %s: %v", path, err)
		return
	}

	im := importer.New(store.New(app.DB()))
	summary, err := im.Import(context.Background(), records, nil)
	if err != nil {
		log.Printf("Inbox import failed for %s: %v", path, err)
		return
	}
	log.Printf("Inbox import of %s finished: %d processed, %d skipped, %d failed.",
		path, summary.Processed, summary.Skipped, summary.Failed)
}

func generateRandomPassword(length int) string {
	const charset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	seededRand := rand.New(rand.NewSource(time.Now().UnixNano()))
	b := make([]byte, length)
	for i := range b {
		b[i] = charset[seededRand.Intn(len(charset))]
	}
	return string(b)
}
