package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"

	"goparam/adapters/excel"
	"goparam/adapters/postgres/migrations"
	"goparam/adapters/ragcheck"
	"goparam/adapters/report"
	"goparam/app"
	"goparam/domain/analysis"
	"goparam/domain/run"
	"goparam/internal/config"
	"goparam/internal/container"
	"goparam/internal/testkit"

	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/spf13/cobra"
)

// analysisFlags are shared by analyze, recommend and causal
type analysisFlags struct {
	reports    string
	data       string
	out        string
	target     string
	model      string
	seed       int64
	candidates int
	treatment  string
	formats    []string
	name       string
}

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	rootCmd := &cobra.Command{
		Use:          "goparam",
		Short:        "Parameter importance, recommendations and causal effects for experiment runs",
		SilenceUsage: true,
	}

	rootCmd.AddCommand(
		newAnalyzeCmd(),
		newRecommendCmd(),
		newCausalCmd(),
		newGenerateCmd(),
		newServeCmd(),
		newMigrateCmd(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func (f *analysisFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.reports, "reports", "", "Directory searched recursively for ragcheck_*.json (default REPORTS_DIR)")
	cmd.Flags().StringVar(&f.data, "data", "", "Spreadsheet (.xlsx/.csv) of runs instead of a report directory")
	cmd.Flags().StringVar(&f.out, "out", "", "Output directory for rendered reports (default OUTPUT_DIR)")
	cmd.Flags().StringVar(&f.target, "target", "", "Target metric (default GOPARAM_TARGET or llm_f1)")
	cmd.Flags().StringVar(&f.model, "model", "", "Surrogate model: rf|gbt")
	cmd.Flags().Int64Var(&f.seed, "seed", 0, "Random seed for deterministic operations (default GOPARAM_SEED or 42)")
	cmd.Flags().IntVar(&f.candidates, "candidates", 0, "Number of suggested configurations")
	cmd.Flags().StringVar(&f.treatment, "treatment", "", "Treatment parameter for the causal phase (auto-selected when empty)")
	cmd.Flags().StringSliceVar(&f.formats, "format", nil, "Report formats: md,html,json,csv (default all)")
	cmd.Flags().StringVar(&f.name, "name", "", "Run set name used when persisting to the database")
}

// build loads configuration, applies flag overrides and wires the container
func (f *analysisFlags) build(ctx context.Context) (*container.Container, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if f.reports != "" {
		cfg.Paths.ReportsDir = f.reports
	}
	if f.data != "" {
		cfg.Paths.DataFile = f.data
	}
	if f.out != "" {
		cfg.Paths.OutputDir = f.out
	}

	var formats []report.Format
	for _, name := range f.formats {
		formats = append(formats, report.Format(strings.TrimSpace(name)))
	}
	c, err := container.New(cfg, formats...)
	if err != nil {
		return nil, err
	}
	if err := c.InitWithDatabase(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

func (f *analysisFlags) request(phases app.Phases) app.AnalysisRequest {
	return app.AnalysisRequest{
		Name:       f.name,
		Target:     f.target,
		ModelKind:  f.model,
		Seed:       f.seed,
		Candidates: f.candidates,
		Treatment:  f.treatment,
		Phases:     phases,
	}
}

func (f *analysisFlags) run(cmd *cobra.Command, phases app.Phases, show func(io.Writer, *analysis.Report)) error {
	ctx := cmd.Context()
	c, err := f.build(ctx)
	if err != nil {
		return err
	}
	defer c.Shutdown(context.Background())

	rep, err := c.Service.Run(ctx, f.request(phases))
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	printSummary(out, rep)
	show(out, rep)
	fmt.Fprintf(out, "\nReports written to %s\n", c.Writer.Dir())
	return nil
}

func newAnalyzeCmd() *cobra.Command {
	var f analysisFlags
	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Run importance, recommendation and causal phases",
		Long: `Load runs, fit the surrogate, attribute the target to parameters,
recommend unseen configurations and estimate the effect of one treatment.

Example: goparam analyze --reports ../reports --target llm_f1 --model rf --seed 42`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return f.run(cmd, app.AllPhases(), func(w io.Writer, r *analysis.Report) {
				printImportance(w, r.Importance)
				printCandidates(w, r.Target, r.Recommendation)
				printCausal(w, r.Causal)
			})
		},
	}
	f.register(cmd)
	return cmd
}

func newRecommendCmd() *cobra.Command {
	var f analysisFlags
	cmd := &cobra.Command{
		Use:   "recommend",
		Short: "Suggest unseen configurations likely to improve the target",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return f.run(cmd, app.Phases{Recommend: true}, func(w io.Writer, r *analysis.Report) {
				printCandidates(w, r.Target, r.Recommendation)
			})
		},
	}
	f.register(cmd)
	return cmd
}

func newCausalCmd() *cobra.Command {
	var f analysisFlags
	cmd := &cobra.Command{
		Use:   "causal",
		Short: "Estimate the average treatment effect of one parameter with refutations",
		Long: `Estimate the effect of a binarized treatment on the target with
confounder adjustment, three refutation checks and counterfactuals.

Example: goparam causal --reports ../reports --treatment query_mode`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return f.run(cmd, app.Phases{Causal: true}, func(w io.Writer, r *analysis.Report) {
				printCausal(w, r.Causal)
			})
		},
	}
	f.register(cmd)
	return cmd
}

func newGenerateCmd() *cobra.Command {
	var out, format string
	var random, replicates int
	var seed int64
	var treatment bool

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Write synthetic runs with known parameter effects",
		Long: `Generate synthetic runs whose score is a sum of programmed parameter
bonuses plus noise, so analysis output can be checked against ground truth.

Example: goparam generate --out reports/fake --format ragcheck`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := testkit.DefaultRunConfig()
			if treatment {
				cfg = testkit.TreatmentRunConfig()
			}
			cfg.Seed = seed
			cfg.Random = random
			if replicates > 0 {
				cfg.Replicates = replicates
			}
			gen := testkit.NewRunGenerator(cfg)
			runs := gen.Generate()

			w := cmd.OutOrStdout()
			switch format {
			case "ragcheck":
				paths, err := ragcheck.WriteReports(out, runs)
				if err != nil {
					return err
				}
				fmt.Fprintf(w, "Wrote %d ragcheck reports to %s\n", len(paths), out)
			case "xlsx":
				path := filepath.Join(out, "runs.xlsx")
				if err := os.MkdirAll(out, 0o755); err != nil {
					return err
				}
				if err := excel.WriteRuns(path, runs); err != nil {
					return err
				}
				fmt.Fprintf(w, "Wrote %d runs to %s\n", len(runs), path)
			default:
				return fmt.Errorf("unknown format %q (want ragcheck or xlsx)", format)
			}

			fmt.Fprintf(w, "\nExpected importance ranking: %s\n", strings.Join(gen.ExpectedRanking(), " > "))
			fmt.Fprintf(w, "Best configuration:          %s\n", formatParams(gen.BestConfig()))
			return nil
		},
	}

	cmd.Flags().StringVar(&out, "out", "reports/fake", "Output directory")
	cmd.Flags().StringVar(&format, "format", "ragcheck", "Output format: ragcheck|xlsx")
	cmd.Flags().IntVar(&random, "random", 0, "Draw this many random configurations instead of the full factorial")
	cmd.Flags().IntVar(&replicates, "replicates", 0, "Repeat the design this many times")
	cmd.Flags().Int64Var(&seed, "seed", 42, "Random seed for the noise")
	cmd.Flags().BoolVar(&treatment, "treatment", false, "Use the binary treatment design (+0.20 for param_reranker=on)")
	return cmd
}

func newServeCmd() *cobra.Command {
	var f analysisFlags
	var port string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the JSON API and the report browser",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			c, err := f.build(ctx)
			if err != nil {
				return err
			}
			defer c.Shutdown(context.Background())
			if port != "" {
				c.Config.Server.Port = port
			}

			server, err := c.HTTPHandler()
			if err != nil {
				return err
			}
			return server.Start(ctx)
		},
	}
	f.register(cmd)
	cmd.Flags().StringVar(&port, "port", "", "Listen port (default PORT or 8080)")
	return cmd
}

func newMigrateCmd() *cobra.Command {
	var status bool
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations to DATABASE_URL",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			url := os.Getenv("DATABASE_URL")
			if url == "" {
				return fmt.Errorf("DATABASE_URL environment variable is required")
			}
			db, err := sqlx.Connect("postgres", url)
			if err != nil {
				return fmt.Errorf("failed to connect to database: %w", err)
			}
			defer db.Close()

			m := migrations.NewMigrator(db.DB)
			if !status {
				if err := m.Up(cmd.Context()); err != nil {
					return err
				}
			}
			states, err := m.Status(cmd.Context())
			if err != nil {
				return err
			}
			for _, s := range states {
				state := "pending"
				if s.Applied {
					state = "applied"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "  %s: %s\n", s.Name, state)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&status, "status", false, "Only show migration status")
	return cmd
}

func printSummary(w io.Writer, r *analysis.Report) {
	s := r.Summary
	line := strings.Repeat("═", 55)
	fmt.Fprintln(w, line)
	fmt.Fprintf(w, "  Runs analysed : %d", s.Runs)
	if len(s.Excluded) > 0 {
		fmt.Fprintf(w, " (%d excluded)", len(s.Excluded))
	}
	fmt.Fprintln(w)
	if !s.From.IsZero() && !s.To.IsZero() {
		fmt.Fprintf(w, "  Period        : %s to %s\n", s.From.Time().Format("2006-01-02"), s.To.Time().Format("2006-01-02"))
	}
	for _, m := range s.Metrics {
		fmt.Fprintf(w, "  %-20s  mean=%.3f  max=%.3f  min=%.3f\n", m.Name, m.Mean, m.Max, m.Min)
	}
	if s.BestLabel != "" {
		fmt.Fprintf(w, "  Best run      : %s (%s %.4f)\n", s.BestLabel, r.Target, s.BestValue)
	}
	fmt.Fprintln(w, line)
}

func printOutcome(w io.Writer, title string, o analysis.Outcome) bool {
	fmt.Fprintf(w, "\n%s: %s", title, o.Status)
	if o.Reason != "" {
		fmt.Fprintf(w, " (%s)", o.Reason)
	}
	fmt.Fprintln(w)
	for _, warn := range o.Warnings {
		fmt.Fprintf(w, "  [WARN] %s\n", warn)
	}
	return o.Ran()
}

func printImportance(w io.Writer, imp *analysis.ImportanceReport) {
	if imp == nil || !printOutcome(w, "Parameter importance", imp.Outcome) {
		return
	}
	if imp.Model.HasCV {
		fmt.Fprintf(w, "  %s surrogate, CV R² %.3f ± %.3f\n", imp.Model.Kind, imp.Model.CVR2, imp.Model.CVR2Std)
	}
	for i, p := range imp.ByParameter {
		fmt.Fprintf(w, "  %d. %-32s %.4f\n", i+1, p.Param, p.Importance)
	}
}

func printCandidates(w io.Writer, target string, rec *analysis.Recommendation) {
	if rec == nil || !printOutcome(w, "Suggested configurations", rec.Outcome) {
		return
	}
	for i, line := range app.TopCandidates(rec, len(rec.Candidates)) {
		c := rec.Candidates[i]
		if c.HasPrediction {
			fmt.Fprintf(w, "  %d. predicted %s %.4f  %s\n", c.Rank, target, c.Predicted, line)
		} else {
			fmt.Fprintf(w, "  %d. %s\n", c.Rank, line)
		}
	}
}

func printCausal(w io.Writer, c *analysis.CausalEstimate) {
	if c == nil || !printOutcome(w, "Causal effect", c.Outcome) {
		return
	}
	fmt.Fprintf(w, "  Treatment %s (%d/%d treated)\n", c.Rule, c.Treated, c.Rows)
	fmt.Fprintf(w, "  ATE %+.4f  se %.4f  p %.4f\n", c.ATE, c.StdErr, c.PValue)
	for _, r := range c.Refutations {
		verdict := "passed"
		if !r.Passed {
			verdict = "FAILED"
		}
		fmt.Fprintf(w, "  %-20s new effect %+.4f  %s\n", r.Method, r.NewEffect, verdict)
	}
}

func formatParams(params map[string]run.Value) string {
	names := make([]string, 0, len(params))
	for k := range params {
		names = append(names, k)
	}
	sort.Strings(names)
	parts := make([]string, len(names))
	for i, n := range names {
		parts[i] = n + "=" + params[n].String()
	}
	return strings.Join(parts, " ")
}
