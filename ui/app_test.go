package ui

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"goparam/adapters/report"
	"goparam/domain/analysis"
	"goparam/domain/core"
	"goparam/domain/run"
	"goparam/ports"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockRepository struct {
	mock.Mock
}

func (m *mockRepository) SaveRunSet(ctx context.Context, name, source string, records run.Collection) (*ports.RunSetInfo, error) {
	args := m.Called(ctx, name, source, records)
	return args.Get(0).(*ports.RunSetInfo), args.Error(1)
}

func (m *mockRepository) GetRunSet(ctx context.Context, id core.RunSetID) (run.Collection, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(run.Collection), args.Error(1)
}

func (m *mockRepository) ListRunSets(ctx context.Context) ([]ports.RunSetInfo, error) {
	args := m.Called(ctx)
	return args.Get(0).([]ports.RunSetInfo), args.Error(1)
}

func (m *mockRepository) SaveReport(ctx context.Context, runSetID core.RunSetID, rep *analysis.Report) error {
	return m.Called(ctx, runSetID, rep).Error(0)
}

func (m *mockRepository) GetReport(ctx context.Context, id core.ReportID) (*analysis.Report, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*analysis.Report), args.Error(1)
}

func serve(t *testing.T, app *App, path string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	app.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func TestIndex_Empty(t *testing.T) {
	app, err := NewApp(Config{}, nil, nil, nil)
	require.NoError(t, err)
	w := serve(t, app, "/")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "No report has been produced yet")
}

func TestIndex_LatestInMemory(t *testing.T) {
	latest := func() *analysis.Report { return &analysis.Report{Target: "llm_recall"} }
	app, err := NewApp(Config{}, latest, nil, nil)
	require.NoError(t, err)
	w := serve(t, app, "/")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Parameter analysis: llm_recall")
}

func TestIndex_FallsBackToOutputDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, report.HTMLFile), []byte("<p>rendered earlier</p>"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, report.SuggestionsFile), []byte("rank\n1\n"), 0o644))

	app, err := NewApp(Config{OutputDir: dir}, func() *analysis.Report { return nil }, nil, nil)
	require.NoError(t, err)
	assert.Contains(t, serve(t, app, "/").Body.String(), "rendered earlier")

	w := serve(t, app, "/files/"+report.SuggestionsFile)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "rank\n1\n", w.Body.String())
}

func TestRunSets(t *testing.T) {
	repo := &mockRepository{}
	repo.On("ListRunSets", mock.Anything).Return([]ports.RunSetInfo{
		{ID: "rs-1", Name: "nightly", Source: "reports/", Runs: 18, DataHash: core.Hash("0123456789abcdef")},
	}, nil)
	app, err := NewApp(Config{}, nil, repo, nil)
	require.NoError(t, err)

	w := serve(t, app, "/runsets")
	assert.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, "nightly")
	assert.Contains(t, body, "0123456789ab")
	repo.AssertExpectations(t)
}

func TestRunSets_NoDatabase(t *testing.T) {
	app, err := NewApp(Config{}, nil, nil, nil)
	require.NoError(t, err)
	assert.Contains(t, serve(t, app, "/runsets").Body.String(), "No database configured")
}

func TestReportByID(t *testing.T) {
	repo := &mockRepository{}
	repo.On("GetReport", mock.Anything, core.ReportID("rep-1")).Return(&analysis.Report{Target: "graph_mrr"}, nil)
	repo.On("GetReport", mock.Anything, core.ReportID("gone")).Return(nil, fmt.Errorf("%w: gone", core.ErrReportNotFound))
	app, err := NewApp(Config{}, nil, repo, nil)
	require.NoError(t, err)

	w := serve(t, app, "/reports/rep-1")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "graph_mrr")
	assert.Equal(t, http.StatusNotFound, serve(t, app, "/reports/gone").Code)
}

func TestMountsAPI(t *testing.T) {
	api := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "api:"+r.URL.Path)
	})
	app, err := NewApp(Config{}, nil, nil, api)
	require.NoError(t, err)
	assert.Equal(t, "api:/api/health", serve(t, app, "/api/health").Body.String())
}
