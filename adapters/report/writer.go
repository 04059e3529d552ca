package report

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"

	"goparam/domain/analysis"
	"goparam/ports"
)

// Output file names inside the writer's directory
const (
	MarkdownFile       = "report.md"
	HTMLFile           = "report.html"
	JSONFile           = "report.json"
	SuggestionsFile    = "suggested_configs.csv"
	CounterfactualFile = "counterfactuals.csv"
	ImportanceFile     = "feature_importance.csv"
)

// Format selects one rendering
type Format string

const (
	FormatMarkdown Format = "md"
	FormatHTML     Format = "html"
	FormatJSON     Format = "json"
	FormatCSV      Format = "csv"
)

// AllFormats lists every rendering the file writer supports
func AllFormats() []Format {
	return []Format{FormatMarkdown, FormatHTML, FormatJSON, FormatCSV}
}

// FileWriter renders reports into a directory, replacing the previous
// report's files.
type FileWriter struct {
	dir     string
	formats map[Format]bool
}

var _ ports.ReportWriter = (*FileWriter)(nil)

// NewFileWriter writes the given formats, or all of them when none are given
func NewFileWriter(dir string, formats ...Format) *FileWriter {
	if len(formats) == 0 {
		formats = AllFormats()
	}
	set := make(map[Format]bool, len(formats))
	for _, f := range formats {
		set[f] = true
	}
	return &FileWriter{dir: dir, formats: set}
}

// Dir is the output directory
func (w *FileWriter) Dir() string {
	return w.dir
}

// Write renders the report and returns the written paths
func (w *FileWriter) Write(ctx context.Context, r *analysis.Report) ([]string, error) {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	var paths []string
	write := func(name string, render func(io.Writer) error) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		var buf bytes.Buffer
		if err := render(&buf); err != nil {
			return fmt.Errorf("failed to render %s: %w", name, err)
		}
		path := filepath.Join(w.dir, name)
		if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
			return fmt.Errorf("failed to write %s: %w", path, err)
		}
		paths = append(paths, path)
		return nil
	}

	if w.formats[FormatMarkdown] {
		if err := write(MarkdownFile, func(out io.Writer) error {
			_, err := io.WriteString(out, Markdown(r))
			return err
		}); err != nil {
			return paths, err
		}
	}
	if w.formats[FormatHTML] {
		if err := write(HTMLFile, func(out io.Writer) error {
			_, err := out.Write(HTML(r))
			return err
		}); err != nil {
			return paths, err
		}
	}
	if w.formats[FormatJSON] {
		if err := write(JSONFile, func(out io.Writer) error {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(r)
		}); err != nil {
			return paths, err
		}
	}
	if w.formats[FormatCSV] {
		if r.Importance != nil && r.Importance.Outcome.Ran() {
			if err := write(ImportanceFile, func(out io.Writer) error { return WriteImportance(out, r.Importance) }); err != nil {
				return paths, err
			}
		}
		if r.Recommendation != nil && len(r.Recommendation.Candidates) > 0 {
			if err := write(SuggestionsFile, func(out io.Writer) error { return WriteSuggestions(out, r.Target, r.Recommendation) }); err != nil {
				return paths, err
			}
		}
		if r.Causal != nil && len(r.Causal.Counterfactuals) > 0 {
			if err := write(CounterfactualFile, func(out io.Writer) error { return WriteCounterfactuals(out, r.Causal) }); err != nil {
				return paths, err
			}
		}
	}

	log.Printf("[ReportWriter] wrote %d file(s) for report %s to %s", len(paths), r.ID, w.dir)
	return paths, nil
}
