package app

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"goparam/domain/analysis"
	"goparam/domain/core"
	"goparam/domain/run"
	"goparam/internal"
	"goparam/internal/attribution"
	"goparam/internal/causal"
	"goparam/internal/config"
	"goparam/internal/errors"
	"goparam/internal/features"
	"goparam/internal/search"
	"goparam/internal/surrogate"
	"goparam/ports"

	"golang.org/x/sync/errgroup"
)

// Phases selects which analysis phases run
type Phases struct {
	Importance bool
	Recommend  bool
	Causal     bool
}

// AllPhases enables every phase
func AllPhases() Phases {
	return Phases{Importance: true, Recommend: true, Causal: true}
}

// AnalysisRequest defines the inputs for one analysis invocation. Zero
// values fall back to the service's configured defaults.
type AnalysisRequest struct {
	Records    []run.Record // analysed as given when non-nil, else loaded from the source
	Name       string       // run set name used when persisting
	Target     string
	ModelKind  string
	Seed       int64
	Candidates int
	Treatment  string
	Phases     Phases
}

// AnalysisService runs the parameter analysis over one run collection:
// surrogate importance, candidate recommendation and causal estimation.
type AnalysisService struct {
	source  ports.RunSource
	repo    ports.RunRepository
	writers []ports.ReportWriter
	rngPort ports.RNGPort
	cfg     config.AnalysisConfig
	logger  *internal.Logger
}

// NewAnalysisService creates an analysis service. source, repo and writers
// are optional.
func NewAnalysisService(cfg config.AnalysisConfig, rngPort ports.RNGPort, source ports.RunSource, repo ports.RunRepository, writers ...ports.ReportWriter) *AnalysisService {
	return &AnalysisService{
		source:  source,
		repo:    repo,
		writers: writers,
		rngPort: rngPort,
		cfg:     cfg,
		logger:  internal.DefaultLogger.With("analysis"),
	}
}

// Run executes the requested phases and assembles the report. Phase failures
// are recorded as declined outcomes; only unusable input, I/O and
// cancellation return an error.
func (s *AnalysisService) Run(ctx context.Context, req AnalysisRequest) (*analysis.Report, error) {
	start := time.Now()
	req = s.withDefaults(req)
	if s.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.Timeout)
		defer cancel()
	}

	raw, origin, err := s.load(ctx, req)
	if err != nil {
		return nil, err
	}
	records, excluded := run.Sanitize(raw)
	for _, ex := range excluded {
		s.logger.Warn("excluding run %s: %s", ex.Label, ex.Reason)
	}
	if len(records) == 0 {
		return nil, errors.InsufficientData(fmt.Sprintf("no usable runs in %s (%d excluded)", origin, len(excluded)))
	}
	if !records.HasMetric(req.Target) {
		return nil, errors.InvalidInput(fmt.Sprintf("target metric %q not found; available: %s", req.Target, strings.Join(records.MetricNames(), ", ")))
	}

	report := &analysis.Report{
		ID:          core.ReportID(core.NewID()),
		Fingerprint: run.NewAnalysisFingerprint(records, req.Target, req.ModelKind, req.Seed),
		Target:      req.Target,
		CreatedAt:   core.Now(),
		Summary:     Summarize(records, excluded, req.Target),
	}
	s.logger.Info("analysing %d runs from %s, target %s (fingerprint %s)", len(records), origin, req.Target, report.Fingerprint.Fingerprint.Short())

	g, gctx := errgroup.WithContext(ctx)
	if req.Phases.Importance || req.Phases.Recommend {
		g.Go(func() error {
			fit, imp, err := s.importance(gctx, records, req)
			if err != nil {
				return err
			}
			if req.Phases.Importance {
				report.Importance = imp
			}
			if !req.Phases.Recommend {
				return nil
			}
			rec, err := s.recommend(gctx, records, fit, req)
			if err != nil {
				return err
			}
			report.Recommendation = rec
			return nil
		})
	}
	if req.Phases.Causal {
		g.Go(func() error {
			opts := causal.Options{
				Treatment:       req.Treatment,
				Seed:            s.rngPort.DeriveSeed("causal", req.Seed),
				Simulations:     s.cfg.Simulations,
				PassRatio:       s.cfg.PassRatio,
				PlaceboRatio:    s.cfg.PlaceboRatio,
				SubsetFraction:  s.cfg.SubsetFraction,
				Counterfactuals: s.cfg.Counterfactuals,
			}
			est, err := causal.Estimate(gctx, records, req.Target, opts)
			if err != nil {
				return err
			}
			report.Causal = est
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, errors.Wrap(err, "analysis interrupted")
	}

	if err := s.persist(ctx, req, origin, records, report); err != nil {
		return nil, err
	}
	for _, w := range s.writers {
		paths, err := w.Write(ctx, report)
		if err != nil {
			return nil, errors.Wrap(err, "failed to write report")
		}
		for _, p := range paths {
			s.logger.Info("wrote %s", p)
		}
	}

	s.logger.Info("analysis %s finished in %s", report.ID, time.Since(start).Round(time.Millisecond))
	return report, nil
}

func (s *AnalysisService) withDefaults(req AnalysisRequest) AnalysisRequest {
	if req.Target == "" {
		req.Target = s.cfg.Target
	}
	if req.ModelKind == "" {
		req.ModelKind = s.cfg.ModelKind
	}
	if req.Seed == 0 {
		req.Seed = s.cfg.Seed
	}
	if req.Candidates <= 0 {
		req.Candidates = s.cfg.Candidates
	}
	if req.Treatment == "" {
		req.Treatment = s.cfg.Treatment
	}
	if req.Phases == (Phases{}) {
		req.Phases = AllPhases()
	}
	return req
}

func (s *AnalysisService) load(ctx context.Context, req AnalysisRequest) ([]run.Record, string, error) {
	if req.Records != nil {
		return req.Records, "request", nil
	}
	if s.source == nil {
		return nil, "", errors.InvalidInput("no run records given and no run source configured")
	}
	records, err := s.source.Load(ctx)
	if err != nil {
		return nil, "", errors.IOError("load runs from "+s.source.Describe(), err)
	}
	return records, s.source.Describe(), nil
}

// importance fits the surrogate and attributes its predictions. An
// unusable table or failed fit declines the phase; the returned fit is nil
// in that case.
func (s *AnalysisService) importance(ctx context.Context, records run.Collection, req AnalysisRequest) (*surrogate.Fit, *analysis.ImportanceReport, error) {
	report := &analysis.ImportanceReport{Outcome: analysis.Success()}
	rows, y := records.WithTarget(req.Target)

	table, err := features.Encode(rows, rows.ParamNames())
	if err != nil {
		report.Outcome = analysis.Declined(err.Error())
		s.logger.Warn("importance skipped: %v", err)
		return nil, report, nil
	}

	opts := surrogate.DefaultOptions()
	opts.ModelKind = req.ModelKind
	opts.Seed = s.rngPort.DeriveSeed("surrogate", req.Seed)
	fit, err := surrogate.Train(ctx, table, y, opts)
	if err != nil {
		if ctx.Err() != nil {
			return nil, nil, ctx.Err()
		}
		report.Outcome = analysis.Declined(err.Error())
		s.logger.Warn("importance skipped: %v", err)
		return nil, report, nil
	}
	report.Outcome = fit.Outcome
	report.Model = fit.Summary

	result, err := attribution.Attribute(ctx, fit.Model, fit.Table)
	if err != nil {
		if ctx.Err() != nil {
			return nil, nil, ctx.Err()
		}
		report.Outcome.Warn(fmt.Sprintf("attribution failed: %v", err))
		return fit, report, nil
	}
	report.Ranking = result.Ranking()
	report.ByParameter = result.ByParameter()
	report.Dependence = result.Dependence(s.cfg.TopDependence)
	report.Partial = result.Partial(s.cfg.TopDependence)
	return fit, report, nil
}

func (s *AnalysisService) recommend(ctx context.Context, records run.Collection, fit *surrogate.Fit, req AnalysisRequest) (*analysis.Recommendation, error) {
	sp := search.InferSpace(records)
	history := search.HistoryFromRecords(records, sp, req.Target)

	var scorer search.Scorer
	if fit != nil {
		scorer = search.SurrogateScorer(fit.Model, fit.Table)
	}
	opts := search.DefaultOptions(req.Candidates)
	opts.Seed = s.rngPort.DeriveSeed("search", req.Seed)
	opts.Existing = records.ConfigKeys(sp.Names())
	rec, err := search.Recommend(ctx, sp, history, scorer, opts)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return &analysis.Recommendation{Outcome: analysis.Declined(err.Error()), Space: sp}, nil
	}
	if fit == nil {
		rec.Outcome.Warn("no surrogate available: candidates ranked by sampler acquisition")
	}
	return rec, nil
}

func (s *AnalysisService) persist(ctx context.Context, req AnalysisRequest, origin string, records run.Collection, report *analysis.Report) error {
	if s.repo == nil {
		return nil
	}
	name := req.Name
	if name == "" {
		name = fmt.Sprintf("%s-%s", req.Target, report.Fingerprint.DataHash.Short())
	}
	info, err := s.repo.SaveRunSet(ctx, name, origin, records)
	if err != nil {
		return errors.Wrap(err, "failed to save run set")
	}
	if err := s.repo.SaveReport(ctx, info.ID, report); err != nil {
		return errors.Wrap(err, "failed to save report")
	}
	return nil
}

// TopCandidates returns the first n candidate configurations in rank order,
// each rendered as name=value pairs sorted by name.
func TopCandidates(rec *analysis.Recommendation, n int) []string {
	if rec == nil {
		return nil
	}
	var out []string
	for i, c := range rec.Candidates {
		if i == n {
			break
		}
		names := make([]string, 0, len(c.Params))
		for k := range c.Params {
			names = append(names, k)
		}
		sort.Strings(names)
		parts := make([]string, len(names))
		for j, k := range names {
			parts[j] = k + "=" + c.Params[k].String()
		}
		out = append(out, strings.Join(parts, " "))
	}
	return out
}
