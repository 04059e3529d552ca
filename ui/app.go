package ui

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"goparam/adapters/report"
	"goparam/domain/analysis"
	"goparam/domain/core"
	"goparam/ports"
)

//go:embed templates/*.html
var embeddedFiles embed.FS

// LatestFunc returns the most recent in-memory report, or nil
type LatestFunc func() *analysis.Report

// Config holds UI application configuration
type Config struct {
	Port      string
	OutputDir string // directory the report writer renders into
}

// App is the report browser: it serves the latest HTML report, stored
// reports by ID, the list of run sets and the rendered output files.
type App struct {
	config    Config
	router    *chi.Mux
	templates *template.Template
	latest    LatestFunc
	repo      ports.RunRepository
}

// NewApp creates the UI. latest, repo and api may be nil; api is mounted
// under /api when given.
func NewApp(config Config, latest LatestFunc, repo ports.RunRepository, api http.Handler) (*App, error) {
	templates, err := template.ParseFS(embeddedFiles, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}

	app := &App{
		config:    config,
		router:    chi.NewRouter(),
		templates: templates,
		latest:    latest,
		repo:      repo,
	}
	app.setupMiddleware()
	app.setupRoutes(api)
	return app, nil
}

func (a *App) setupMiddleware() {
	a.router.Use(middleware.Logger)
	a.router.Use(middleware.Recoverer)
	a.router.Use(middleware.Compress(5))
}

func (a *App) setupRoutes(api http.Handler) {
	a.router.Get("/", a.handleIndex)
	a.router.Get("/runsets", a.handleRunSets)
	a.router.Get("/reports/{id}", a.handleReport)
	if a.config.OutputDir != "" {
		files := http.FileServer(http.Dir(a.config.OutputDir))
		a.router.Handle("/files/*", http.StripPrefix("/files/", files))
	}
	if api != nil {
		a.router.Handle("/api/*", api)
	}
}

// Handler exposes the router
func (a *App) Handler() http.Handler {
	return a.router
}

// Start serves until ctx is cancelled
func (a *App) Start(ctx context.Context) error {
	port := a.config.Port
	if port == "" {
		port = "8080"
	}
	srv := &http.Server{Addr: ":" + port, Handler: a.router, ReadHeaderTimeout: 10 * time.Second}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("Starting goparam server on :%s", port)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

// handleIndex serves the in-memory latest report, falling back to the
// last rendered report.html in the output directory.
func (a *App) handleIndex(w http.ResponseWriter, r *http.Request) {
	if a.latest != nil {
		if rep := a.latest(); rep != nil {
			writeHTML(w, report.HTML(rep))
			return
		}
	}
	if a.config.OutputDir != "" {
		page, err := os.ReadFile(filepath.Join(a.config.OutputDir, report.HTMLFile))
		if err == nil {
			writeHTML(w, page)
			return
		}
	}
	a.renderTemplate(w, "empty.html", map[string]interface{}{"Title": "goparam"})
}

func (a *App) handleReport(w http.ResponseWriter, r *http.Request) {
	if a.repo == nil {
		http.Error(w, "no report store configured", http.StatusNotFound)
		return
	}
	id, err := core.ParseReportID(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	rep, err := a.repo.GetReport(r.Context(), id)
	if err != nil {
		status := http.StatusInternalServerError
		if core.IsNotFoundError(err) {
			status = http.StatusNotFound
		}
		http.Error(w, err.Error(), status)
		return
	}
	writeHTML(w, report.HTML(rep))
}

func (a *App) handleRunSets(w http.ResponseWriter, r *http.Request) {
	data := map[string]interface{}{"Title": "Run sets"}
	if a.repo == nil {
		data["Message"] = "No database configured."
		a.renderTemplate(w, "runsets.html", data)
		return
	}
	sets, err := a.repo.ListRunSets(r.Context())
	if err != nil {
		log.Printf("[UI] list run sets: %v", err)
		http.Error(w, "failed to list run sets", http.StatusInternalServerError)
		return
	}
	data["RunSets"] = sets
	data["Message"] = "No run sets stored yet."
	a.renderTemplate(w, "runsets.html", data)
}

func writeHTML(w http.ResponseWriter, page []byte) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if _, err := w.Write(page); err != nil {
		log.Printf("[UI] write response: %v", err)
	}
}

func (a *App) renderTemplate(w http.ResponseWriter, templateName string, data interface{}) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := a.templates.ExecuteTemplate(w, templateName, data); err != nil {
		log.Printf("Template error: %v", err)
		http.Error(w, "Template error", http.StatusInternalServerError)
	}
}
