package engine

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dejo1307/stabilitymcp/internal/baseline"
	"github.com/dejo1307/stabilitymcp/internal/config"
	"github.com/dejo1307/stabilitymcp/internal/stability"
)

// --- helpers ---

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Input = filepath.Join(dir, "records.jsonl")
	cfg.Output.Report = filepath.Join(dir, "build", "stability", "report.json")
	cfg.Baseline.Path = filepath.Join(dir, "stability", "baseline.json")

	eng, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return eng
}

func composable(name string, skippable bool, params ...stability.ParameterRecord) stability.FunctionRecord {
	return stability.FunctionRecord{
		QualifiedName: name,
		SimpleName:    name[strings.LastIndex(name, ".")+1:],
		Visibility:    "public",
		Skippable:     skippable,
		Restartable:   true,
		ReturnType:    "Unit",
		Parameters:    params,
	}
}

func writeRecords(t *testing.T, path string, records ...stability.FunctionRecord) {
	t.Helper()
	var buf bytes.Buffer
	if err := stability.WriteJSONL(&buf, records); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
}

// --- tests ---

func TestNew_RequiresReportPath(t *testing.T) {
	cfg := config.Default()
	cfg.Output.Report = ""
	if _, err := New(cfg); err == nil {
		t.Error("New with empty report path succeeded")
	}
}

func TestIngestAndExport(t *testing.T) {
	eng := newTestEngine(t)
	writeRecords(t, eng.Config().Input,
		composable("app.Screen", true, stability.ParameterRecord{Name: "state", Type: "UiState", Stability: stability.Stable}),
		composable("app.<anonymous>.Item", true),
		composable("app.Header", false),
	)

	n, err := eng.Ingest(context.Background(), "")
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if n != 3 {
		t.Errorf("Ingest read %d records, want 3", n)
	}

	res, err := eng.Export()
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if !res.Written || res.Count != 2 || res.Path != eng.Config().Output.Report {
		t.Errorf("Export = %+v, want 2 composables written to %s", res, eng.Config().Output.Report)
	}

	r, err := stability.ReadReportFile(res.Path)
	if err != nil {
		t.Fatal(err)
	}
	if r.Composables[0].QualifiedName != "app.Header" || r.Composables[1].QualifiedName != "app.Screen" {
		t.Errorf("report order = %v", r.Composables)
	}
}

func TestIngest_CanceledContext(t *testing.T) {
	eng := newTestEngine(t)
	writeRecords(t, eng.Config().Input, composable("a.A", true))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := eng.Ingest(ctx, ""); !errors.Is(err, context.Canceled) {
		t.Errorf("Ingest = %v, want context.Canceled", err)
	}
	if eng.Collector().Count() != 0 {
		t.Errorf("collector has %d records after canceled ingest", eng.Collector().Count())
	}
}

func TestIngest_RejectsMissingStability(t *testing.T) {
	eng := newTestEngine(t)
	line := `{"qualifiedName":"app.Card","simpleName":"Card","parameters":[{"name":"x","type":"Int"}]}` + "\n"
	if err := os.WriteFile(eng.Config().Input, []byte(line), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := eng.Ingest(context.Background(), ""); !errors.Is(err, stability.ErrInvalidStability) {
		t.Fatalf("Ingest = %v, want ErrInvalidStability", err)
	}
	res, err := eng.Export()
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if res.Written {
		t.Errorf("Export wrote %s from a rejected record", res.Path)
	}
}

func TestIngest_MissingFile(t *testing.T) {
	eng := newTestEngine(t)
	if _, err := eng.Ingest(context.Background(), ""); err == nil {
		t.Error("Ingest of missing file succeeded")
	}
}

func TestExport_NothingQualifies(t *testing.T) {
	eng := newTestEngine(t)
	eng.Record(composable("a.<anonymous>", true))

	res, err := eng.Export()
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if res.Written || res.Count != 0 {
		t.Errorf("Export = %+v, want nothing written", res)
	}
	if _, err := os.Stat(res.Path); !os.IsNotExist(err) {
		t.Errorf("report exists after empty export (err=%v)", err)
	}
}

func TestCheck(t *testing.T) {
	eng := newTestEngine(t)
	eng.Config().Baseline.Ignore = []string{"app.preview."}
	eng.Record(composable("app.Card", true, stability.ParameterRecord{Name: "item", Type: "Item", Stability: stability.Stable}))

	// No baseline yet: everything is new.
	res, err := eng.Check()
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if res.HasBaseline || len(res.Changes) != 1 || res.Changes[0].Kind != baseline.KindAdded {
		t.Fatalf("Check without baseline = %+v", res)
	}
	if !strings.Contains(res.Diff, "+++ current") {
		t.Errorf("diff missing header:\n%s", res.Diff)
	}

	if err := eng.UpdateBaseline(); err != nil {
		t.Fatalf("UpdateBaseline: %v", err)
	}
	res, err = eng.Check()
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if !res.HasBaseline || len(res.Changes) != 0 || res.Diff != "" {
		t.Errorf("Check after baseline update = %+v, want clean", res)
	}

	// A later compilation where the parameter became unstable.
	eng2, _ := New(eng.Config())
	eng2.Record(composable("app.Card", false, stability.ParameterRecord{Name: "item", Type: "Item", Stability: stability.Unstable}))
	eng2.Record(composable("app.preview.CardPreview", true))

	res, err = eng2.Check()
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if len(res.Changes) != 1 || res.Changes[0].Kind != baseline.KindChanged {
		t.Fatalf("Check changes = %v, want one change", res.Changes)
	}
	if !strings.Contains(res.Diff, `-          "stability": "STABLE"`) {
		t.Errorf("diff does not show stability change:\n%s", res.Diff)
	}
}

func TestUpdateBaseline_NoReport(t *testing.T) {
	eng := newTestEngine(t)
	if err := eng.UpdateBaseline(); !errors.Is(err, ErrNoReport) {
		t.Errorf("UpdateBaseline = %v, want ErrNoReport", err)
	}
}
