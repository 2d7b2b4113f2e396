// Package core assembles the shared application components: config,
// database, websocket hub, object storage and the job manager. Both the
// server and the CLI build on an App.
package core

import (
	"context"
	"database/sql"
	"fmt"
	"log"

	"github.com/andrevros/imovelsync/internal/assets"
	"github.com/andrevros/imovelsync/internal/config"
	"github.com/andrevros/imovelsync/internal/db"
	"github.com/andrevros/imovelsync/internal/jobs"
	"github.com/andrevros/imovelsync/internal/objectstore"
	"github.com/andrevros/imovelsync/internal/websocket"
)

// App holds the core components of the application that are shared
// between the server and the CLI. It implements jobs.JobContext.
type App struct {
	config     *config.Config
	db         *sql.DB
	wsHub      *websocket.Hub
	jobManager *jobs.JobManager
	assets     objectstore.Store
	version    string
}

// New sets up and returns a new App instance. It loads configuration,
// opens the database, runs migrations and wires the shared components.
func New(version string) (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	database, err := db.InitDB(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	if err := db.RunMigrations(database, assets.MigrationsFS); err != nil {
		// We can't proceed without a valid database schema.
		database.Close()
		return nil, fmt.Errorf("failed to run database migrations: %w", err)
	}

	var store objectstore.Store
	if cfg.Storage.Bucket != "" {
		store, err = objectstore.NewS3Store(context.Background(), cfg)
		if err != nil {
			database.Close()
			return nil, fmt.Errorf("failed to initialize object storage: %w", err)
		}
	} else {
		log.Println("No storage bucket configured, using in-memory object store.")
		store = objectstore.NewMemStore()
	}

	hub := websocket.NewHub()
	go hub.Run()

	app := &App{
		config:  cfg,
		db:      database,
		wsHub:   hub,
		assets:  store,
		version: version,
	}
	app.jobManager = jobs.NewManager(app)
	jobs.RegisterAll(app.jobManager)

	log.Println("Core application setup complete.")
	return app, nil
}

// NewWithComponents assembles an App from pre-built parts. Used by tests
// and anywhere the standard setup does not apply.
func NewWithComponents(cfg *config.Config, database *sql.DB, hub *websocket.Hub, store objectstore.Store) *App {
	app := &App{
		config:  cfg,
		db:      database,
		wsHub:   hub,
		assets:  store,
		version: "dev",
	}
	app.jobManager = jobs.NewManager(app)
	jobs.RegisterAll(app.jobManager)
	return app
}

func (a *App) Config() *config.Config       { return a.config }
func (a *App) DB() *sql.DB                  { return a.db }
func (a *App) WsHub() *websocket.Hub        { return a.wsHub }
func (a *App) JobManager() *jobs.JobManager { return a.jobManager }
func (a *App) Assets() objectstore.Store    { return a.assets }
func (a *App) Version() string              { return a.version }

// Close gracefully closes the application's resources.
func (a *App) Close() {
	if a.db != nil {
		a.db.Close()
	}
}
