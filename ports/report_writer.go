package ports

import (
	"context"

	"goparam/domain/analysis"
)

// ReportWriter renders a finished analysis somewhere (files, HTTP responses)
type ReportWriter interface {
	// Write returns the paths or identifiers of what was produced
	Write(ctx context.Context, report *analysis.Report) ([]string, error)
}
