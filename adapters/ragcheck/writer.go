package ragcheck

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"goparam/domain/run"
)

type reportFile struct {
	Timestamp     string        `json:"timestamp"`
	Configuration configuration `json:"configuration"`
	Summary       summary       `json:"summary"`
	Results       []interface{} `json:"results"`
}

type configuration struct {
	RunLabel        string            `json:"runLabel"`
	RunParameters   map[string]string `json:"runParameters"`
	QueryMode       string            `json:"queryMode,omitempty"`
	TopK            *int              `json:"topK,omitempty"`
	RunsPerTestCase int               `json:"runsPerTestCase"`
}

type summary struct {
	Graph          map[string]float64 `json:"graph,omitempty"`
	LLM            map[string]float64 `json:"llm,omitempty"`
	TotalTestCases int                `json:"totalTestCases"`
}

// WriteReports stores one ragcheck_<timestamp>.json per record in dir so
// that ReportReader loads them back. Parameters other than query_mode and
// top_k go to runParameters under their upper-cased name without the
// param_ prefix.
func WriteReports(dir string, records run.Collection) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", dir, err)
	}

	var paths []string
	used := make(map[string]bool)
	for i, r := range records {
		doc := toReport(r)
		data, err := json.MarshalIndent(doc, "", "  ")
		if err != nil {
			return paths, fmt.Errorf("failed to encode %s: %w", r.Label, err)
		}

		name := fileName(r, i)
		for used[name] {
			name = strings.TrimSuffix(name, ".json") + "_" + fmt.Sprint(i) + ".json"
		}
		used[name] = true

		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return paths, fmt.Errorf("failed to write %s: %w", path, err)
		}
		paths = append(paths, path)
	}
	log.Printf("[ReportWriter] wrote %d report(s) to %s", len(paths), dir)
	return paths, nil
}

func fileName(r run.Record, i int) string {
	if r.Timestamp.IsZero() {
		return fmt.Sprintf("ragcheck_%04d.json", i+1)
	}
	return "ragcheck_" + r.Timestamp.Time().UTC().Format("20060102_150405") + ".json"
}

func toReport(r run.Record) reportFile {
	cfg := configuration{
		RunLabel:        r.Label,
		RunParameters:   make(map[string]string),
		RunsPerTestCase: 1,
	}
	for _, name := range r.ParamNames() {
		v, ok := r.Param(name)
		if !ok {
			continue
		}
		switch name {
		case "query_mode":
			cfg.QueryMode = v.String()
		case "top_k":
			if f, ok := v.Float(); ok {
				k := int(f)
				cfg.TopK = &k
				continue
			}
			cfg.RunParameters["TOP_K"] = v.String()
		default:
			cfg.RunParameters[strings.ToUpper(strings.TrimPrefix(name, ParamPrefix))] = v.String()
		}
	}

	sum := summary{
		Graph:          make(map[string]float64),
		LLM:            make(map[string]float64),
		TotalTestCases: r.TestCases,
	}
	for _, m := range metricPaths {
		v, ok := r.Metric(m.name)
		if !ok {
			continue
		}
		parts := strings.Split(m.path, ".")
		if parts[1] == "graph" {
			sum.Graph[parts[2]] = v
		} else {
			sum.LLM[parts[2]] = v
		}
	}

	return reportFile{
		Timestamp:     r.Timestamp.Format(),
		Configuration: cfg,
		Summary:       sum,
		Results:       []interface{}{},
	}
}
