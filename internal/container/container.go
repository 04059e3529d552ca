package container

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"strings"

	"goparam/adapters/excel"
	"goparam/adapters/postgres"
	"goparam/adapters/postgres/migrations"
	"goparam/adapters/ragcheck"
	"goparam/adapters/report"
	"goparam/app"
	"goparam/internal/api"
	"goparam/internal/config"
	"goparam/internal/errors"
	"goparam/internal/rng"
	"goparam/ports"
	"goparam/ui"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

// Container holds all application dependencies and manages their lifecycle
type Container struct {
	Config *config.Config

	// Infrastructure
	DB *sqlx.DB

	// Adapters
	Source ports.RunSource
	Repo   ports.RunRepository
	Writer *report.FileWriter

	// Application
	Service *app.AnalysisService
	Events  *api.EventHub
	Handler *api.AnalysisHandler
}

// New wires the file-based components. The database is attached by
// InitWithDatabase when configured.
func New(cfg *config.Config, formats ...report.Format) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	c := &Container{
		Config: cfg,
		Source: NewRunSource(cfg.Paths),
		Writer: report.NewFileWriter(cfg.Paths.OutputDir, formats...),
	}
	c.buildService()
	return c, nil
}

// NewRunSource picks the spreadsheet reader when a data file is configured,
// else the ragcheck report directory reader
func NewRunSource(paths config.PathConfig) ports.RunSource {
	if paths.DataFile != "" {
		ext := strings.ToLower(filepath.Ext(paths.DataFile))
		if ext == ".json" {
			return ragcheck.NewReportReader(filepath.Dir(paths.DataFile))
		}
		return excel.NewDataReader(paths.DataFile)
	}
	return ragcheck.NewReportReader(paths.ReportsDir)
}

// InitWithDatabase connects, migrates and attaches the run repository.
// It is a no-op without DATABASE_URL.
func (c *Container) InitWithDatabase(ctx context.Context) error {
	if !c.Config.Database.Enabled() {
		log.Printf("No DATABASE_URL configured, run sets will not be persisted")
		return nil
	}

	db, err := sqlx.Connect("postgres", c.Config.Database.URL)
	if err != nil {
		return errors.DatabaseError("failed to connect to database", err)
	}
	if c.Config.Database.MaxOpenConns > 0 {
		db.SetMaxOpenConns(c.Config.Database.MaxOpenConns)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return errors.DatabaseError("database connection test failed", err)
	}
	if err := migrations.NewMigrator(db.DB).Up(ctx); err != nil {
		db.Close()
		return errors.DatabaseError("database migration failed", err)
	}

	c.DB = db
	c.Repo = postgres.NewRunRepository(db)
	c.buildService()
	log.Printf("Container initialized with database connection")
	return nil
}

func (c *Container) buildService() {
	var writers []ports.ReportWriter
	if c.Writer != nil {
		writers = append(writers, c.Writer)
	}
	c.Service = app.NewAnalysisService(c.Config.Analysis, rng.NewSource(), c.Source, c.Repo, writers...)
}

// HTTPHandler builds the gin API and mounts it inside the chi report browser
func (c *Container) HTTPHandler() (*ui.App, error) {
	gin.SetMode(c.Config.Server.GinMode)
	engine := gin.New()
	engine.Use(gin.Logger(), gin.Recovery())

	c.Events = api.NewEventHub()
	c.Handler = api.NewAnalysisHandler(c.Service, c.Repo, c.Events)
	c.Handler.RegisterRoutes(engine)

	return ui.NewApp(ui.Config{
		Port:      c.Config.Server.Port,
		OutputDir: c.Config.Paths.OutputDir,
	}, c.Handler.Latest, c.Repo, engine)
}

// Shutdown releases the database and event hub
func (c *Container) Shutdown(ctx context.Context) error {
	if c.Events != nil {
		c.Events.Close()
	}
	if c.DB != nil {
		return c.DB.Close()
	}
	return nil
}
