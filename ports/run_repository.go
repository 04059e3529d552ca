package ports

import (
	"context"

	"goparam/domain/analysis"
	"goparam/domain/core"
	"goparam/domain/run"
)

// RunSetInfo describes a stored run set
type RunSetInfo struct {
	ID        core.RunSetID  `json:"id" db:"id"`
	Name      string         `json:"name" db:"name"`
	Source    string         `json:"source" db:"source"`
	Runs      int            `json:"runs" db:"runs"`
	DataHash  core.Hash      `json:"data_hash" db:"data_hash"`
	CreatedAt core.Timestamp `json:"created_at" db:"created_at"`
}

// RunRepository persists run sets and analysis reports
type RunRepository interface {
	SaveRunSet(ctx context.Context, name, source string, records run.Collection) (*RunSetInfo, error)
	GetRunSet(ctx context.Context, id core.RunSetID) (run.Collection, error)
	ListRunSets(ctx context.Context) ([]RunSetInfo, error)
	SaveReport(ctx context.Context, runSetID core.RunSetID, report *analysis.Report) error
	GetReport(ctx context.Context, id core.ReportID) (*analysis.Report, error)
}
