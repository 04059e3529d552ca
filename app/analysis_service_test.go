package app

import (
	"context"
	stderrors "errors"
	"testing"

	"goparam/domain/analysis"
	"goparam/domain/core"
	"goparam/domain/run"
	"goparam/internal/config"
	"goparam/internal/errors"
	"goparam/internal/rng"
	"goparam/internal/testkit"
	"goparam/ports"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockRunSource struct {
	mock.Mock
}

func (m *mockRunSource) Load(ctx context.Context) ([]run.Record, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]run.Record), args.Error(1)
}

func (m *mockRunSource) Describe() string {
	return m.Called().String(0)
}

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

func (m *mockRepository) SaveReport(ctx context.Context, runSetID core.RunSetID, report *analysis.Report) error {
	return m.Called(ctx, runSetID, report).Error(0)
}

func (m *mockRepository) GetReport(ctx context.Context, id core.ReportID) (*analysis.Report, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(*analysis.Report), args.Error(1)
}

type captureWriter struct {
	reports []*analysis.Report
}

func (w *captureWriter) Write(ctx context.Context, report *analysis.Report) ([]string, error) {
	w.reports = append(w.reports, report)
	return []string{"memory"}, nil
}

func syntheticRuns(n int) []run.Record {
	cfg := testkit.DefaultRunConfig()
	cfg.Random = n
	return testkit.NewRunGenerator(cfg).Generate()
}

func newService(source ports.RunSource, repo ports.RunRepository, writers ...ports.ReportWriter) *AnalysisService {
	cfg := config.Default().Analysis
	cfg.Simulations = 20
	return NewAnalysisService(cfg, rng.NewSource(), source, repo, writers...)
}

func TestAnalysisService_RunFromSource(t *testing.T) {
	records := append(syntheticRuns(30), run.Record{Label: "broken", Params: map[string]run.Value{"top_k": run.Number(5)}})
	source := &mockRunSource{}
	source.On("Load", mock.Anything).Return(records, nil)
	source.On("Describe").Return("memory")
	repo := &mockRepository{}
	repo.On("SaveRunSet", mock.Anything, "nightly", "memory", mock.Anything).
		Return(&ports.RunSetInfo{ID: core.RunSetID("rs-1")}, nil)
	repo.On("SaveReport", mock.Anything, core.RunSetID("rs-1"), mock.Anything).Return(nil)
	writer := &captureWriter{}

	report, err := newService(source, repo, writer).Run(context.Background(), AnalysisRequest{Name: "nightly"})
	require.NoError(t, err)

	assert.NotEmpty(t, report.ID)
	assert.Equal(t, "llm_f1", report.Target)
	assert.Equal(t, 30, report.Summary.Runs)
	require.Len(t, report.Summary.Excluded, 1)
	assert.Equal(t, "broken", report.Summary.Excluded[0].Label)

	require.NotNil(t, report.Importance)
	assert.True(t, report.Importance.Outcome.Ran())
	assert.NotEmpty(t, report.Importance.Ranking)
	assert.Len(t, report.Importance.ByParameter, 4)

	require.NotNil(t, report.Recommendation)
	assert.Equal(t, "surrogate", report.Recommendation.Source)
	assert.NotEmpty(t, report.Recommendation.Candidates)

	require.NotNil(t, report.Causal)
	assert.True(t, report.Causal.Outcome.Ran())
	assert.Equal(t, "query_mode", report.Causal.Treatment)

	require.Len(t, writer.reports, 1)
	assert.Same(t, report, writer.reports[0])
	source.AssertExpectations(t)
	repo.AssertExpectations(t)
}

func TestAnalysisService_Reproducible(t *testing.T) {
	records := syntheticRuns(24)
	svc := newService(nil, nil)

	a, err := svc.Run(context.Background(), AnalysisRequest{Records: records})
	require.NoError(t, err)
	b, err := svc.Run(context.Background(), AnalysisRequest{Records: records})
	require.NoError(t, err)

	assert.NotEqual(t, a.ID, b.ID)
	assert.Equal(t, a.Fingerprint, b.Fingerprint)
	assert.Equal(t, a.Importance, b.Importance)
	assert.Equal(t, a.Recommendation, b.Recommendation)
	assert.Equal(t, a.Causal, b.Causal)
}

func TestAnalysisService_SelectedPhases(t *testing.T) {
	report, err := newService(nil, nil).Run(context.Background(), AnalysisRequest{
		Records: syntheticRuns(20),
		Phases:  Phases{Causal: true},
	})
	require.NoError(t, err)
	assert.Nil(t, report.Importance)
	assert.Nil(t, report.Recommendation)
	assert.NotNil(t, report.Causal)
}

func TestAnalysisService_UnknownTarget(t *testing.T) {
	_, err := newService(nil, nil).Run(context.Background(), AnalysisRequest{Records: syntheticRuns(10), Target: "bleu"})
	require.Error(t, err)
	assert.Equal(t, errors.CodeInvalidInput, errors.GetCode(err))
	assert.Contains(t, err.Error(), "llm_f1")
}

func TestAnalysisService_SourceFailure(t *testing.T) {
	source := &mockRunSource{}
	source.On("Load", mock.Anything).Return(nil, stderrors.New("disk gone"))
	source.On("Describe").Return("reports/")

	_, err := newService(source, nil).Run(context.Background(), AnalysisRequest{})
	require.Error(t, err)
	assert.Equal(t, errors.CodeIOError, errors.GetCode(err))
}

func TestAnalysisService_NoUsableRuns(t *testing.T) {
	_, err := newService(nil, nil).Run(context.Background(), AnalysisRequest{Records: []run.Record{{Label: "empty"}}})
	require.Error(t, err)
	assert.Equal(t, errors.CodeInsufficientData, errors.GetCode(err))
}

func TestAnalysisService_SmallDataDeclinesCausal(t *testing.T) {
	report, err := newService(nil, nil).Run(context.Background(), AnalysisRequest{Records: syntheticRuns(4)})
	require.NoError(t, err)
	assert.Equal(t, analysis.StatusDeclined, report.Causal.Outcome.Status)
	require.NotNil(t, report.Importance)
	assert.True(t, report.Importance.Model.LowConfidence)
}

func TestSummarize(t *testing.T) {
	records := run.Collection(syntheticRuns(12))
	s := Summarize(records, nil, "llm_f1")
	assert.Equal(t, 12, s.Runs)
	assert.Len(t, s.Metrics, 3)
	assert.Len(t, s.Params, 4)
	assert.False(t, s.From.After(s.To))
	assert.NotEmpty(t, s.BestLabel)
	for _, p := range s.Params {
		if p.Name == "query_mode" {
			assert.False(t, p.Numeric)
		} else {
			assert.True(t, p.Numeric)
		}
	}
}

func TestTopCandidates(t *testing.T) {
	rec := &analysis.Recommendation{Candidates: []analysis.Candidate{
		{Rank: 1, Params: map[string]run.Value{"b": run.Number(2), "a": run.Category("x")}},
		{Rank: 2, Params: map[string]run.Value{"a": run.Category("y")}},
	}}
	assert.Equal(t, []string{"a=x b=2"}, TopCandidates(rec, 1))
	assert.Len(t, TopCandidates(rec, 5), 2)
	assert.Nil(t, TopCandidates(nil, 3))
}

func TestAnalysisService_RecommendSkipsRunsWithoutTarget(t *testing.T) {
	gen := testkit.NewRunGenerator(testkit.DefaultRunConfig())
	records := gen.Generate()
	names := records.ParamNames()
	bestKey := run.ConfigKey(gen.BestConfig(), names)
	stripped := false
	for _, r := range records {
		if run.ConfigKey(r.Params, names) == bestKey {
			delete(r.Metrics, "llm_f1")
			stripped = true
		}
	}
	require.True(t, stripped)

	report, err := newService(nil, nil).Run(context.Background(), AnalysisRequest{
		Records: records,
		Phases:  Phases{Importance: true, Recommend: true},
	})
	require.NoError(t, err)
	require.NotNil(t, report.Recommendation)

	ran := records.ConfigKeys(names)
	for _, c := range report.Recommendation.Candidates {
		key := run.ConfigKey(c.Params, names)
		assert.NotEqual(t, bestKey, key)
		assert.NotContains(t, ran, key)
	}
}
