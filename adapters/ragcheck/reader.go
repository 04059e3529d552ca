// Package ragcheck reads and writes ragcheck evaluation reports
// (ragcheck_*.json) as run records.
package ragcheck

import (
	"context"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"goparam/domain/core"
	"goparam/domain/run"

	"github.com/tidwall/gjson"
)

// ParamPrefix is prepended to lower-cased runParameters keys
const ParamPrefix = "param_"

// metricPaths maps record metric names to report summary paths
var metricPaths = []struct {
	name string
	path string
}{
	{"llm_f1", "summary.llm.avgF1"},
	{"llm_recall", "summary.llm.avgRecall"},
	{"llm_precision", "summary.llm.avgPrecision"},
	{"llm_mrr", "summary.llm.avgMrr"},
	{"llm_hitrate", "summary.llm.avgHitRate"},
	{"graph_recall", "summary.graph.avgRecallAtK"},
	{"graph_mrr", "summary.graph.avgMrr"},
	{"graph_ndcg", "summary.graph.avgNdcgAtK"},
}

// ReportReader loads every ragcheck report below a directory
type ReportReader struct {
	dir string
}

// NewReportReader creates a reader rooted at dir
func NewReportReader(dir string) *ReportReader {
	return &ReportReader{dir: dir}
}

// Describe names the source
func (r *ReportReader) Describe() string {
	return r.dir
}

// Load parses the reports in path order. Unreadable files and reports
// without configuration or summary are skipped with a log line.
func (r *ReportReader) Load(ctx context.Context) ([]run.Record, error) {
	files, err := FindReports(r.dir)
	if err != nil {
		return nil, err
	}
	log.Printf("[ReportReader] found %d report file(s) in %s", len(files), r.dir)

	var records []run.Record
	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			log.Printf("[ReportReader] %s: read failed (%v), skipped", filepath.Base(path), err)
			continue
		}
		rec, err := ParseReport(data, path)
		if err != nil {
			log.Printf("[ReportReader] %s: %v, skipped", filepath.Base(path), err)
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}

// FindReports returns every ragcheck_*.json below dir, excluding comparison
// reports, sorted by path.
func FindReports(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		name := d.Name()
		if ok, _ := filepath.Match("ragcheck_*.json", name); ok && !strings.Contains(name, "comparison") {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", dir, err)
	}
	sort.Strings(files)
	return files, nil
}

// ParseReport converts one report document into a run record
func ParseReport(data []byte, path string) (run.Record, error) {
	if !gjson.ValidBytes(data) {
		return run.Record{}, fmt.Errorf("%w: invalid JSON", core.ErrMalformedRecord)
	}
	doc := gjson.ParseBytes(data)
	cfg := doc.Get("configuration")
	if !cfg.Exists() || !doc.Get("summary").Exists() {
		return run.Record{}, fmt.Errorf("%w: missing configuration or summary", core.ErrMalformedRecord)
	}

	rec := run.Record{
		Label:     cfg.Get("runLabel").String(),
		Params:    make(map[string]run.Value),
		Metrics:   make(map[string]float64),
		Source:    path,
		TestCases: int(doc.Get("summary.totalTestCases").Int()),
	}
	if rec.Label == "" {
		rec.Label = filepath.Base(filepath.Dir(path))
	}
	if ts, ok := core.ParseTimestamp(doc.Get("timestamp").String()); ok {
		rec.Timestamp = ts
	}

	rec.Params["query_mode"] = run.Category("unknown")
	if mode := cfg.Get("queryMode"); mode.Exists() {
		rec.Params["query_mode"] = run.ParseValue(mode.String())
	}
	if topK := cfg.Get("topK"); topK.Exists() && topK.Type == gjson.Number {
		rec.Params["top_k"] = run.Number(topK.Float())
	}
	cfg.Get("runParameters").ForEach(func(key, value gjson.Result) bool {
		rec.Params[ParamPrefix+strings.ToLower(key.String())] = run.ParseValue(value.String())
		return true
	})

	for _, m := range metricPaths {
		if v := doc.Get(m.path); v.Type == gjson.Number {
			rec.Metrics[m.name] = v.Float()
		}
	}
	return rec, nil
}
