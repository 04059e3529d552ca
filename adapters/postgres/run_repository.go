package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"goparam/domain/analysis"
	"goparam/domain/core"
	"goparam/domain/run"
	"goparam/ports"

	"github.com/jmoiron/sqlx"
)

// runRepository implements ports.RunRepository on the run_sets, runs and
// analysis_reports tables. Parameters and metrics are stored as JSONB.
type runRepository struct {
	db *sqlx.DB
}

// NewRunRepository creates a new run repository
func NewRunRepository(db *sqlx.DB) ports.RunRepository {
	return &runRepository{db: db}
}

type runSetRow struct {
	ID        string    `db:"id"`
	Name      string    `db:"name"`
	Source    string    `db:"source"`
	Runs      int       `db:"runs"`
	DataHash  string    `db:"data_hash"`
	CreatedAt time.Time `db:"created_at"`
}

func (r runSetRow) info() ports.RunSetInfo {
	return ports.RunSetInfo{
		ID:        core.RunSetID(r.ID),
		Name:      r.Name,
		Source:    r.Source,
		Runs:      r.Runs,
		DataHash:  core.Hash(r.DataHash),
		CreatedAt: core.NewTimestamp(r.CreatedAt),
	}
}

type runRow struct {
	RunSetID  string       `db:"run_set_id"`
	Position  int          `db:"position"`
	Label     string       `db:"label"`
	RunAt     sql.NullTime `db:"run_at"`
	Source    string       `db:"source"`
	TestCases int          `db:"test_cases"`
	Params    []byte       `db:"params"`
	Metrics   []byte       `db:"metrics"`
}

func toRunRow(id core.RunSetID, position int, rec run.Record) (runRow, error) {
	params, err := json.Marshal(rec.Params)
	if err != nil {
		return runRow{}, fmt.Errorf("failed to marshal params of %s: %w", rec.Label, err)
	}
	metrics, err := json.Marshal(rec.Metrics)
	if err != nil {
		return runRow{}, fmt.Errorf("failed to marshal metrics of %s: %w", rec.Label, err)
	}
	row := runRow{
		RunSetID:  id.String(),
		Position:  position,
		Label:     rec.Label,
		Source:    rec.Source,
		TestCases: rec.TestCases,
		Params:    params,
		Metrics:   metrics,
	}
	if !rec.Timestamp.IsZero() {
		row.RunAt = sql.NullTime{Time: rec.Timestamp.Time(), Valid: true}
	}
	return row, nil
}

func (r runRow) record() (run.Record, error) {
	rec := run.Record{
		Label:     r.Label,
		Source:    r.Source,
		TestCases: r.TestCases,
	}
	if r.RunAt.Valid {
		rec.Timestamp = core.NewTimestamp(r.RunAt.Time)
	}
	if len(r.Params) > 0 {
		if err := json.Unmarshal(r.Params, &rec.Params); err != nil {
			return run.Record{}, fmt.Errorf("failed to unmarshal params of %s: %w", r.Label, err)
		}
	}
	if len(r.Metrics) > 0 {
		if err := json.Unmarshal(r.Metrics, &rec.Metrics); err != nil {
			return run.Record{}, fmt.Errorf("failed to unmarshal metrics of %s: %w", r.Label, err)
		}
	}
	return rec, nil
}

// SaveRunSet stores the records in one transaction, preserving order
func (r *runRepository) SaveRunSet(ctx context.Context, name, source string, records run.Collection) (*ports.RunSetInfo, error) {
	set := runSetRow{
		ID:        core.NewID().String(),
		Name:      name,
		Source:    source,
		Runs:      len(records),
		DataHash:  records.ContentHash().String(),
		CreatedAt: time.Now().UTC(),
	}

	rows := make([]runRow, len(records))
	for i, rec := range records {
		row, err := toRunRow(core.RunSetID(set.ID), i, rec)
		if err != nil {
			return nil, err
		}
		rows[i] = row
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.NamedExecContext(ctx, `INSERT INTO run_sets (id, name, source, runs, data_hash, created_at)
		VALUES (:id, :name, :source, :runs, :data_hash, :created_at)`, set)
	if err != nil {
		return nil, fmt.Errorf("failed to create run set: %w", err)
	}

	if len(rows) > 0 {
		_, err = tx.NamedExecContext(ctx, `INSERT INTO runs (
			run_set_id, position, label, run_at, source, test_cases, params, metrics
		) VALUES (
			:run_set_id, :position, :label, :run_at, :source, :test_cases, :params, :metrics
		)`, rows)
		if err != nil {
			return nil, fmt.Errorf("failed to insert runs: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit run set: %w", err)
	}

	info := set.info()
	return &info, nil
}

// GetRunSet loads the records of a run set in their stored order
func (r *runRepository) GetRunSet(ctx context.Context, id core.RunSetID) (run.Collection, error) {
	var exists bool
	if err := r.db.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM run_sets WHERE id = $1)`, id.String()); err != nil {
		return nil, fmt.Errorf("failed to look up run set: %w", err)
	}
	if !exists {
		return nil, fmt.Errorf("%w: %s", core.ErrRunSetNotFound, id)
	}

	var rows []runRow
	err := r.db.SelectContext(ctx, &rows, `SELECT
		run_set_id, position, label, run_at, source, test_cases, params, metrics
	FROM runs WHERE run_set_id = $1 ORDER BY position`, id.String())
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}

	out := make(run.Collection, len(rows))
	for i, row := range rows {
		rec, err := row.record()
		if err != nil {
			return nil, err
		}
		out[i] = rec
	}
	return out, nil
}

// ListRunSets returns every stored run set, newest first
func (r *runRepository) ListRunSets(ctx context.Context) ([]ports.RunSetInfo, error) {
	var rows []runSetRow
	err := r.db.SelectContext(ctx, &rows, `SELECT id, name, source, runs, data_hash, created_at
	FROM run_sets ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query run sets: %w", err)
	}
	out := make([]ports.RunSetInfo, len(rows))
	for i, row := range rows {
		out[i] = row.info()
	}
	return out, nil
}

// SaveReport stores the report body as JSONB next to its run set
func (r *runRepository) SaveReport(ctx context.Context, runSetID core.RunSetID, report *analysis.Report) error {
	body, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}

	query := `INSERT INTO analysis_reports (id, run_set_id, target, fingerprint, body, created_at)
	VALUES ($1, $2, $3, $4, $5, $6)
	ON CONFLICT (id) DO UPDATE SET body = EXCLUDED.body`

	createdAt := report.CreatedAt.Time()
	if report.CreatedAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err = r.db.ExecContext(ctx, query,
		report.ID.String(), runSetID.String(), report.Target,
		report.Fingerprint.Fingerprint.String(), body, createdAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save report: %w", err)
	}
	return nil
}

// GetReport loads a stored report
func (r *runRepository) GetReport(ctx context.Context, id core.ReportID) (*analysis.Report, error) {
	var body []byte
	err := r.db.GetContext(ctx, &body, `SELECT body FROM analysis_reports WHERE id = $1`, id.String())
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", core.ErrReportNotFound, id)
		}
		return nil, fmt.Errorf("failed to get report: %w", err)
	}

	var report analysis.Report
	if err := json.Unmarshal(body, &report); err != nil {
		return nil, fmt.Errorf("failed to unmarshal report: %w", err)
	}
	return &report, nil
}
