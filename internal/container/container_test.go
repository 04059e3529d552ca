package container

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"goparam/adapters/excel"
	"goparam/adapters/ragcheck"
	"goparam/adapters/report"
	"goparam/app"
	"goparam/internal/config"
	"goparam/internal/testkit"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRunSource(t *testing.T) {
	assert.IsType(t, &ragcheck.ReportReader{}, NewRunSource(config.PathConfig{ReportsDir: "reports"}))
	assert.IsType(t, &excel.DataReader{}, NewRunSource(config.PathConfig{DataFile: "runs.xlsx"}))
	assert.IsType(t, &excel.DataReader{}, NewRunSource(config.PathConfig{DataFile: "runs.csv"}))
	assert.IsType(t, &ragcheck.ReportReader{}, NewRunSource(config.PathConfig{DataFile: "reports/ragcheck_1.json"}))
}

func TestContainer_AnalyzesReportDirectory(t *testing.T) {
	gen := testkit.DefaultRunConfig()
	gen.Random = 24
	reports := t.TempDir()
	_, err := ragcheck.WriteReports(reports, testkit.NewRunGenerator(gen).Generate())
	require.NoError(t, err)

	cfg := config.Default()
	cfg.Paths.ReportsDir = reports
	cfg.Paths.OutputDir = filepath.Join(t.TempDir(), "out")
	cfg.Analysis.Simulations = 10

	c, err := New(cfg)
	require.NoError(t, err)
	require.NoError(t, c.InitWithDatabase(context.Background()))
	assert.Nil(t, c.Repo)

	rep, err := c.Service.Run(context.Background(), app.AnalysisRequest{})
	require.NoError(t, err)
	assert.Equal(t, 24, rep.Summary.Runs)

	for _, name := range []string{report.MarkdownFile, report.HTMLFile, report.JSONFile, report.SuggestionsFile} {
		_, err := os.Stat(filepath.Join(cfg.Paths.OutputDir, name))
		assert.NoError(t, err, name)
	}
	require.NoError(t, c.Shutdown(context.Background()))
}

func TestContainer_HTTPHandler(t *testing.T) {
	cfg := config.Default()
	cfg.Server.GinMode = "test"
	cfg.Paths.OutputDir = t.TempDir()
	c, err := New(cfg, report.FormatJSON)
	require.NoError(t, err)

	ui, err := c.HTTPHandler()
	require.NoError(t, err)
	defer c.Shutdown(context.Background())

	w := httptest.NewRecorder()
	ui.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	ui.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "No report has been produced yet")
}
