package engine

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"

	"github.com/dejo1307/stabilitymcp/internal/baseline"
	"github.com/dejo1307/stabilitymcp/internal/config"
	"github.com/dejo1307/stabilitymcp/internal/schema"
	"github.com/dejo1307/stabilitymcp/internal/stability"
)

// ErrNoReport is returned when an operation needs a report but no composable qualifies.
var ErrNoReport = errors.New("no composables to report")

// Engine drives one compilation unit: records flow into the collector, the
// report is exported, validated and checked against the baseline.
type Engine struct {
	cfg       *config.Config
	collector *stability.Collector
}

// ExportResult summarizes an export.
type ExportResult struct {
	Path    string `json:"path"`
	Count   int    `json:"count"`   // composables in the report
	Written bool   `json:"written"` // false when nothing qualified
}

// CheckResult is the outcome of a baseline comparison.
type CheckResult struct {
	BaselinePath string            `json:"baseline_path"`
	HasBaseline  bool              `json:"has_baseline"`
	Changes      []baseline.Change `json:"changes"`
	Diff         string            `json:"diff,omitempty"`
}

// New creates an Engine whose collector writes to cfg.Output.Report.
func New(cfg *config.Config) (*Engine, error) {
	if cfg.Output.Report == "" {
		return nil, fmt.Errorf("output report path is required")
	}
	return &Engine{
		cfg:       cfg,
		collector: stability.NewCollector(cfg.Output.Report),
	}, nil
}

// Collector returns the engine's collector.
func (e *Engine) Collector() *stability.Collector {
	return e.collector
}

// Config returns the engine config.
func (e *Engine) Config() *config.Config {
	return e.cfg
}

// Record forwards one function record to the collector.
func (e *Engine) Record(f stability.FunctionRecord) {
	e.collector.Record(f)
}

// Ingest streams records from a JSONL file into the collector. An empty path
// uses the configured input.
func (e *Engine) Ingest(ctx context.Context, path string) (int, error) {
	if path == "" {
		path = e.cfg.Input
	}

	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("opening records %s: %w", path, err)
	}
	defer f.Close()

	n := 0
	err = stability.ReadJSONL(f, func(rec stability.FunctionRecord) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		e.collector.Record(rec)
		n++
		return nil
	})
	if err != nil {
		return n, fmt.Errorf("ingesting %s: %w", path, err)
	}
	log.Printf("[engine] ingested %d records from %s", n, path)
	return n, nil
}

// Export writes the report and, when configured, validates the written file.
func (e *Engine) Export() (ExportResult, error) {
	res := ExportResult{Path: e.collector.Path()}

	report, ok := e.collector.Report()
	if !ok {
		log.Printf("[engine] %v (%d records seen), %s left untouched", ErrNoReport, e.collector.Count(), res.Path)
		return res, nil
	}

	if err := e.collector.WriteReport(report); err != nil {
		return res, err
	}
	res.Count = len(report.Composables)
	res.Written = true
	log.Printf("[engine] wrote %s (%d composables, %d records seen)", res.Path, res.Count, e.collector.Count())

	if e.cfg.Validate {
		if err := schema.ValidateFile(res.Path); err != nil {
			return res, err
		}
	}
	return res, nil
}

// CurrentDocument returns the encoded report Export would write.
func (e *Engine) CurrentDocument() ([]byte, error) {
	report, ok := e.collector.Report()
	if !ok {
		return nil, ErrNoReport
	}
	return stability.Encode(report)
}

// Check compares the current report with the configured baseline. A missing
// baseline compares against an empty report.
func (e *Engine) Check() (CheckResult, error) {
	res := CheckResult{BaselinePath: e.cfg.Baseline.Path}

	base, ok, err := baseline.Load(e.cfg.Baseline.Path)
	if err != nil {
		return res, err
	}
	res.HasBaseline = ok

	current, _ := e.collector.Report()
	res.Changes = baseline.Compare(base, current, e.cfg.IsIgnored)
	if len(res.Changes) == 0 {
		return res, nil
	}

	var baseDoc []byte
	if ok {
		if baseDoc, err = os.ReadFile(e.cfg.Baseline.Path); err != nil {
			return res, fmt.Errorf("reading baseline: %w", err)
		}
	}
	curDoc, err := e.CurrentDocument()
	if err != nil && !errors.Is(err, ErrNoReport) {
		return res, err
	}
	res.Diff, err = baseline.UnifiedDiff(baseDoc, curDoc, e.cfg.Baseline.ContextLines)
	if err != nil {
		return res, err
	}
	log.Printf("[engine] %d stability changes against %s", len(res.Changes), res.BaselinePath)
	return res, nil
}

// UpdateBaseline replaces the baseline with the current report.
func (e *Engine) UpdateBaseline() error {
	doc, err := e.CurrentDocument()
	if err != nil {
		return err
	}
	if err := baseline.Update(e.cfg.Baseline.Path, doc); err != nil {
		return err
	}
	log.Printf("[engine] updated baseline %s", e.cfg.Baseline.Path)
	return nil
}
