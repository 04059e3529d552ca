package ports

import (
	"context"

	"goparam/domain/run"
)

// RunSource loads run records from somewhere (report files, spreadsheets, a database)
type RunSource interface {
	// Load returns the records in a stable order
	Load(ctx context.Context) ([]run.Record, error)

	// Describe names the source for logs and reports
	Describe() string
}
