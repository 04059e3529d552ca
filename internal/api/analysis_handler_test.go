package api

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"goparam/app"
	"goparam/domain/analysis"
	"goparam/domain/core"
	"goparam/domain/run"
	"goparam/internal/config"
	"goparam/internal/errors"
	"goparam/internal/rng"
	"goparam/internal/testkit"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockAnalyzer struct {
	mock.Mock
}

func (m *mockAnalyzer) Run(ctx context.Context, req app.AnalysisRequest) (*analysis.Report, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*analysis.Report), args.Error(1)
}

func newRouter(h *AnalysisHandler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	h.RegisterRoutes(r)
	return r
}

func post(t *testing.T, r http.Handler, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/api/analyze", bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func get(r http.Handler, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func TestParsePhases(t *testing.T) {
	p, err := ParsePhases(nil)
	require.NoError(t, err)
	assert.Equal(t, app.AllPhases(), p)

	p, err = ParsePhases([]string{"causal"})
	require.NoError(t, err)
	assert.Equal(t, app.Phases{Causal: true}, p)

	_, err = ParsePhases([]string{"shap"})
	assert.Equal(t, errors.CodeInvalidInput, errors.GetCode(err))
}

func TestAnalyze_PassesRequestThrough(t *testing.T) {
	analyzer := &mockAnalyzer{}
	report := &analysis.Report{ID: core.ReportID("rep-1"), Target: "llm_recall"}
	analyzer.On("Run", mock.Anything, mock.MatchedBy(func(req app.AnalysisRequest) bool {
		return req.Target == "llm_recall" && req.ModelKind == "gbt" && req.Seed == 7 &&
			req.Phases == app.Phases{Importance: true, Recommend: true} && len(req.Records) == 3
	})).Return(report, nil)

	h := NewAnalysisHandler(analyzer, nil, nil)
	r := newRouter(h)
	w := post(t, r, AnalyzeRequest{
		Target: "llm_recall",
		Model:  "gbt",
		Seed:   7,
		Phases: []string{"importance", "recommend"},
		Runs:   syntheticRuns(3),
	})

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var got analysis.Report
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, core.ReportID("rep-1"), got.ID)
	assert.Same(t, report, h.Latest())
	analyzer.AssertExpectations(t)

	w = get(r, "/api/reports/latest")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "rep-1")
}

func TestAnalyze_NoRunsUsesSource(t *testing.T) {
	analyzer := &mockAnalyzer{}
	analyzer.On("Run", mock.Anything, mock.MatchedBy(func(req app.AnalysisRequest) bool {
		return req.Records == nil
	})).Return(&analysis.Report{}, nil)

	w := post(t, newRouter(NewAnalysisHandler(analyzer, nil, nil)), AnalyzeRequest{})
	assert.Equal(t, http.StatusOK, w.Code)
	analyzer.AssertExpectations(t)
}

func TestAnalyze_ErrorStatuses(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"invalid", errors.InvalidInput("unknown target"), http.StatusBadRequest, errors.CodeInvalidInput},
		{"insufficient", errors.InsufficientData("no usable runs"), http.StatusUnprocessableEntity, errors.CodeInsufficientData},
		{"internal", stderrors.New("boom"), http.StatusInternalServerError, "UNKNOWN"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			analyzer := &mockAnalyzer{}
			analyzer.On("Run", mock.Anything, mock.Anything).Return(nil, tc.err)
			w := post(t, newRouter(NewAnalysisHandler(analyzer, nil, nil)), AnalyzeRequest{})
			assert.Equal(t, tc.status, w.Code)
			var body map[string]string
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, tc.code, body["code"])
		})
	}
}

func TestAnalyze_BadBody(t *testing.T) {
	r := newRouter(NewAnalysisHandler(&mockAnalyzer{}, nil, nil))
	req := httptest.NewRequest(http.MethodPost, "/api/analyze", bytes.NewBufferString("{"))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = post(t, r, AnalyzeRequest{Phases: []string{"everything"}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetReport_NotFound(t *testing.T) {
	r := newRouter(NewAnalysisHandler(&mockAnalyzer{}, nil, nil))
	assert.Equal(t, http.StatusNotFound, get(r, "/api/reports/latest").Code)
	assert.Equal(t, http.StatusNotFound, get(r, "/api/reports/abc").Code)
	assert.Equal(t, http.StatusOK, get(r, "/api/health").Code)
}

func TestAnalyze_PublishesEvents(t *testing.T) {
	hub := NewEventHub()
	defer hub.Close()
	events := hub.Subscribe()
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 5*time.Millisecond)

	analyzer := &mockAnalyzer{}
	analyzer.On("Run", mock.Anything, mock.Anything).Return(&analysis.Report{ID: core.ReportID("rep-9")}, nil)
	w := post(t, newRouter(NewAnalysisHandler(analyzer, nil, hub)), AnalyzeRequest{})
	require.Equal(t, http.StatusOK, w.Code)

	var got []AnalysisEvent
	for len(got) < 2 {
		select {
		case e := <-events:
			got = append(got, e)
		case <-time.After(time.Second):
			t.Fatalf("timed out after %d events", len(got))
		}
	}
	assert.Equal(t, EventStarted, got[0].EventType)
	assert.Equal(t, EventCompleted, got[1].EventType)
	assert.Equal(t, "rep-9", got[1].ReportID)
	assert.Equal(t, got[0].RequestID, got[1].RequestID)

	hub.Unsubscribe(events)
	require.Eventually(t, func() bool { return hub.ClientCount() == 0 }, time.Second, 5*time.Millisecond)
}

func TestAnalyze_EndToEnd(t *testing.T) {
	cfg := config.Default().Analysis
	cfg.Simulations = 10
	svc := app.NewAnalysisService(cfg, rng.NewSource(), nil, nil)
	r := newRouter(NewAnalysisHandler(svc, nil, nil))

	w := post(t, r, AnalyzeRequest{Runs: syntheticRuns(24), Candidates: 3})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var report analysis.Report
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &report))
	assert.Equal(t, "llm_f1", report.Target)
	assert.Equal(t, 24, report.Summary.Runs)
	require.NotNil(t, report.Recommendation)
	assert.LessOrEqual(t, len(report.Recommendation.Candidates), 3)
	require.NotNil(t, report.Causal)
}

func syntheticRuns(n int) run.Collection {
	cfg := testkit.DefaultRunConfig()
	cfg.Random = n
	return testkit.NewRunGenerator(cfg).Generate()
}
