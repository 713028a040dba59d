package baseline

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/dejo1307/stabilitymcp/internal/stability"
)

// --- helpers ---

func fn(name string, skippable bool, params ...stability.ParameterRecord) stability.FunctionRecord {
	return stability.FunctionRecord{
		QualifiedName: name,
		Visibility:    "public",
		Skippable:     skippable,
		Restartable:   true,
		ReturnType:    "Unit",
		Parameters:    append([]stability.ParameterRecord{}, params...),
	}
}

func p(name string, st stability.Stability) stability.ParameterRecord {
	return stability.ParameterRecord{Name: name, Type: "T", Stability: st}
}

func report(ff ...stability.FunctionRecord) stability.Report {
	return stability.Report{Composables: ff}
}

// --- tests ---

func TestCompare(t *testing.T) {
	base := report(
		fn("app.Card", true, p("title", stability.Stable)),
		fn("app.Gone", true),
		fn("app.List", true, p("items", stability.Stable)),
		fn("app.Same", true),
	)
	cur := report(
		fn("app.Card", true, p("title", stability.Stable)),
		fn("app.List", false, p("items", stability.Unstable)),
		fn("app.New", true),
		fn("app.Same", true),
	)

	got := Compare(base, cur, nil)
	want := []Change{
		{Kind: KindRemoved, QualifiedName: "app.Gone"},
		{Kind: KindChanged, QualifiedName: "app.List", Details: []string{
			"skippable true -> false",
			"param items STABLE -> UNSTABLE",
		}},
		{Kind: KindAdded, QualifiedName: "app.New"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Compare =\n%v\nwant\n%v", got, want)
	}
}

func TestCompare_Identical(t *testing.T) {
	r := report(fn("a.A", true, p("x", stability.Runtime)), fn("a.B", false))
	if got := Compare(r, r, nil); len(got) != 0 {
		t.Errorf("Compare(r, r) = %v, want no changes", got)
	}
}

func TestCompare_Ignore(t *testing.T) {
	base := report(fn("app.preview.Card", true))
	cur := report(fn("app.preview.Card", false), fn("app.preview.Other", true))

	ignore := func(name string) bool { return strings.HasPrefix(name, "app.preview.") }
	if got := Compare(base, cur, ignore); len(got) != 0 {
		t.Errorf("Compare with ignore = %v, want none", got)
	}
}

func TestCompare_DuplicatesPositional(t *testing.T) {
	base := report(fn("a.Dup", true))
	cur := report(fn("a.Dup", true), fn("a.Dup", false))

	got := Compare(base, cur, nil)
	want := []Change{{Kind: KindAdded, QualifiedName: "a.Dup"}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Compare = %v, want %v", got, want)
	}
}

func TestCompare_ParameterCountAndType(t *testing.T) {
	base := report(fn("a.F", true, p("x", stability.Stable)))
	cur := report(fn("a.F", true, p("x", stability.Stable), p("y", stability.Stable)))

	got := Compare(base, cur, nil)
	if len(got) != 1 || !reflect.DeepEqual(got[0].Details, []string{"parameters 1 -> 2"}) {
		t.Errorf("Compare = %v", got)
	}

	retyped := report(fn("a.F", true, stability.ParameterRecord{Type: "Long", Stability: stability.Stable}))
	got = Compare(base, retyped, nil)
	if len(got) != 1 || got[0].Details[0] != "param #0 type T -> Long" {
		t.Errorf("Compare = %v", got)
	}
}

func TestChangeString(t *testing.T) {
	c := Change{Kind: KindChanged, QualifiedName: "a.F", Details: []string{"x", "y"}}
	if got := c.String(); got != "changed a.F: x; y" {
		t.Errorf("String() = %q", got)
	}
	if got := (Change{Kind: KindAdded, QualifiedName: "a.G"}).String(); got != "added a.G" {
		t.Errorf("String() = %q", got)
	}
}

func TestUnifiedDiff(t *testing.T) {
	old := []byte("{\n  \"a\": 1,\n  \"b\": 2\n}\n")
	cur := []byte("{\n  \"a\": 1,\n  \"b\": 3\n}\n")

	got, err := UnifiedDiff(old, cur, 0)
	if err != nil {
		t.Fatalf("UnifiedDiff: %v", err)
	}
	for _, want := range []string{"--- baseline", "+++ current", "-  \"b\": 2", "+  \"b\": 3"} {
		if !strings.Contains(got, want) {
			t.Errorf("diff missing %q:\n%s", want, got)
		}
	}

	same, err := UnifiedDiff(old, old, 3)
	if err != nil || same != "" {
		t.Errorf("UnifiedDiff(identical) = %q, %v; want empty", same, err)
	}
}

func TestLoadAndUpdate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stability", "baseline.json")

	_, ok, err := Load(path)
	if err != nil || ok {
		t.Fatalf("Load(missing) = ok %v, err %v; want false, nil", ok, err)
	}

	doc, err := stability.Encode(report(fn("a.A", true)))
	if err != nil {
		t.Fatal(err)
	}
	if err := Update(path, doc); err != nil {
		t.Fatalf("Update: %v", err)
	}

	r, ok, err := Load(path)
	if err != nil || !ok {
		t.Fatalf("Load = ok %v, err %v", ok, err)
	}
	if len(r.Composables) != 1 || r.Composables[0].QualifiedName != "a.A" {
		t.Errorf("Load = %+v", r)
	}

	if err := os.WriteFile(path, []byte("not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, _, err := Load(path); err == nil {
		t.Error("Load(corrupt) succeeded")
	}
}
