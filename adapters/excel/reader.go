package excel

import (
	"context"
	"encoding/csv"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"goparam/domain/core"
	"goparam/domain/run"

	"github.com/xuri/excelize/v2"
)

// MetricPrefix marks a column as a metric regardless of its name
const MetricPrefix = "metric_"

// DataReader loads run records from an Excel or CSV table with a header row.
// Columns named label, timestamp, source or test_cases are metadata;
// columns prefixed metric_ or named after a known metric are scores;
// everything else is a parameter.
type DataReader struct {
	filePath string
	fileType string // "xlsx" or "csv"
	sheet    string
}

// NewDataReader creates a reader that handles both Excel and CSV files
func NewDataReader(filePath string) *DataReader {
	ext := strings.ToLower(filepath.Ext(filePath))
	fileType := "xlsx"
	if ext == ".csv" {
		fileType = "csv"
	}
	return &DataReader{filePath: filePath, fileType: fileType, sheet: "Sheet1"}
}

// Describe names the source
func (r *DataReader) Describe() string {
	return r.filePath
}

// Load reads every data row as a run record, in file order
func (r *DataReader) Load(ctx context.Context) ([]run.Record, error) {
	log.Printf("[DataReader] Starting to read %s file: %s", r.fileType, r.filePath)

	if _, err := os.Stat(r.filePath); os.IsNotExist(err) {
		return nil, fmt.Errorf("%s file not found: %s", strings.ToUpper(r.fileType), r.filePath)
	}

	var rows [][]string
	var err error
	switch r.fileType {
	case "csv":
		rows, err = r.readCSV()
	case "xlsx":
		rows, err = r.readExcel()
	default:
		return nil, fmt.Errorf("unsupported file type: %s", r.fileType)
	}
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(rows) < 2 {
		return nil, fmt.Errorf("%s file must have at least a header row and one data row", strings.ToUpper(r.fileType))
	}
	return r.processRows(rows), nil
}

func (r *DataReader) readExcel() ([][]string, error) {
	start := time.Now()
	f, err := excelize.OpenFile(r.filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open Excel file: %w", err)
	}
	defer f.Close()

	rows, err := f.GetRows(r.sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", r.sheet, err)
	}
	log.Printf("[DataReader] %s read in %.2fms (%d rows)", r.sheet, float64(time.Since(start).Nanoseconds())/1e6, len(rows))
	return rows, nil
}

func (r *DataReader) readCSV() ([][]string, error) {
	file, err := os.Open(r.filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open CSV file: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	start := time.Now()
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV file: %w", err)
	}
	log.Printf("[DataReader] CSV file read in %.2fms (%d rows)", float64(time.Since(start).Nanoseconds())/1e6, len(rows))
	return rows, nil
}

type columnRole int

const (
	roleParam columnRole = iota
	roleMetric
	roleLabel
	roleTimestamp
	roleSource
	roleTestCases
)

func classify(header string) (columnRole, string) {
	lower := strings.ToLower(header)
	switch lower {
	case "label", "run", "run_label":
		return roleLabel, ""
	case "timestamp":
		return roleTimestamp, ""
	case "source":
		return roleSource, ""
	case "test_cases", "total_test_cases":
		return roleTestCases, ""
	}
	if strings.HasPrefix(lower, MetricPrefix) {
		return roleMetric, header[len(MetricPrefix):]
	}
	if run.IsKnownMetric(lower) {
		return roleMetric, lower
	}
	return roleParam, header
}

// processRows converts raw string rows into run records. Empty parameter
// cells are missing values; unparseable metric cells are skipped.
func (r *DataReader) processRows(rows [][]string) []run.Record {
	headers := make([]string, len(rows[0]))
	for i, h := range rows[0] {
		headers[i] = strings.TrimSpace(h)
	}

	var records []run.Record
	for i, row := range rows[1:] {
		rec := run.Record{
			Label:   fmt.Sprintf("row_%d", i+2),
			Params:  make(map[string]run.Value),
			Metrics: make(map[string]float64),
			Source:  r.filePath,
		}
		for j, cell := range row {
			if j >= len(headers) || headers[j] == "" {
				continue
			}
			cell = strings.TrimSpace(cell)
			role, name := classify(headers[j])
			switch role {
			case roleLabel:
				if cell != "" {
					rec.Label = cell
				}
			case roleTimestamp:
				if ts, ok := core.ParseTimestamp(cell); ok {
					rec.Timestamp = ts
				}
			case roleSource:
				if cell != "" {
					rec.Source = cell
				}
			case roleTestCases:
				rec.TestCases, _ = strconv.Atoi(cell)
			case roleMetric:
				if f, err := strconv.ParseFloat(cell, 64); err == nil {
					rec.Metrics[name] = f
				}
			default:
				if cell != "" {
					rec.Params[name] = run.ParseValue(cell)
				}
			}
		}
		records = append(records, rec)
	}

	log.Printf("[DataReader] %s file processed (%d columns, %d rows)", strings.ToUpper(r.fileType), len(headers), len(records))
	return records
}
