// Package baseline compares a freshly computed stability report against a
// checked-in baseline so CI can fail on unreviewed stability changes.
package baseline

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	difflib "github.com/pmezard/go-difflib/difflib"

	"github.com/dejo1307/stabilitymcp/internal/stability"
)

// ErrDrift is returned by callers that treat any change as a failure.
var ErrDrift = errors.New("stability changed since baseline")

// Change kinds.
const (
	KindAdded   = "added"
	KindRemoved = "removed"
	KindChanged = "changed"
)

// Change describes one difference between baseline and current report.
type Change struct {
	Kind          string   `json:"kind"`
	QualifiedName string   `json:"qualifiedName"`
	Details       []string `json:"details,omitempty"`
}

func (c Change) String() string {
	if len(c.Details) == 0 {
		return fmt.Sprintf("%s %s", c.Kind, c.QualifiedName)
	}
	return fmt.Sprintf("%s %s: %s", c.Kind, c.QualifiedName, strings.Join(c.Details, "; "))
}

// Load reads a baseline report. A missing file is not an error; ok is false.
func Load(path string) (report stability.Report, ok bool, err error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return stability.Report{}, false, nil
	}
	r, err := stability.ReadReportFile(path)
	if err != nil {
		return stability.Report{}, false, err
	}
	return r, true, nil
}

// Update writes doc as the new baseline, creating parent directories.
func Update(path string, doc []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating baseline dir: %w", err)
	}
	if err := os.WriteFile(path, doc, 0o644); err != nil {
		return fmt.Errorf("writing baseline %s: %w", path, err)
	}
	return nil
}

// Compare returns the changes from base to current, skipping qualified names
// for which ignore returns true (ignore may be nil). Functions sharing a
// qualified name are compared in order of appearance.
func Compare(base, current stability.Report, ignore func(string) bool) []Change {
	baseBy := groupByName(base, ignore)
	curBy := groupByName(current, ignore)

	names := make(map[string]struct{}, len(baseBy)+len(curBy))
	for n := range baseBy {
		names[n] = struct{}{}
	}
	for n := range curBy {
		names[n] = struct{}{}
	}

	var changes []Change
	for name := range names {
		b, c := baseBy[name], curBy[name]
		n := len(b)
		if len(c) > n {
			n = len(c)
		}
		for i := 0; i < n; i++ {
			switch {
			case i >= len(b):
				changes = append(changes, Change{Kind: KindAdded, QualifiedName: name})
			case i >= len(c):
				changes = append(changes, Change{Kind: KindRemoved, QualifiedName: name})
			default:
				if details := diffFunction(b[i], c[i]); len(details) > 0 {
					changes = append(changes, Change{Kind: KindChanged, QualifiedName: name, Details: details})
				}
			}
		}
	}

	sort.SliceStable(changes, func(i, j int) bool {
		if changes[i].QualifiedName != changes[j].QualifiedName {
			return changes[i].QualifiedName < changes[j].QualifiedName
		}
		return changes[i].Kind < changes[j].Kind
	})
	return changes
}

func groupByName(r stability.Report, ignore func(string) bool) map[string][]stability.FunctionRecord {
	out := make(map[string][]stability.FunctionRecord, len(r.Composables))
	for _, f := range r.Composables {
		if ignore != nil && ignore(f.QualifiedName) {
			continue
		}
		out[f.QualifiedName] = append(out[f.QualifiedName], f)
	}
	return out
}

// diffFunction lists the field-level differences between two records of the
// same function. Display-only fields are ignored except the return type.
func diffFunction(old, cur stability.FunctionRecord) []string {
	var details []string
	if old.Skippable != cur.Skippable {
		details = append(details, fmt.Sprintf("skippable %t -> %t", old.Skippable, cur.Skippable))
	}
	if old.Restartable != cur.Restartable {
		details = append(details, fmt.Sprintf("restartable %t -> %t", old.Restartable, cur.Restartable))
	}
	if old.ReturnType != cur.ReturnType {
		details = append(details, fmt.Sprintf("returnType %s -> %s", old.ReturnType, cur.ReturnType))
	}
	if len(old.Parameters) != len(cur.Parameters) {
		details = append(details, fmt.Sprintf("parameters %d -> %d", len(old.Parameters), len(cur.Parameters)))
		return details
	}
	for i := range old.Parameters {
		op, cp := old.Parameters[i], cur.Parameters[i]
		label := cp.Name
		if label == "" {
			label = fmt.Sprintf("#%d", i)
		}
		if op.Type != cp.Type {
			details = append(details, fmt.Sprintf("param %s type %s -> %s", label, op.Type, cp.Type))
		}
		if op.Stability != cp.Stability {
			details = append(details, fmt.Sprintf("param %s %s -> %s", label, op.Stability, cp.Stability))
		}
	}
	return details
}

// UnifiedDiff renders a unified diff between the baseline and current report
// documents. It returns "" when they are identical.
func UnifiedDiff(baseDoc, currentDoc []byte, contextLines int) (string, error) {
	if contextLines <= 0 {
		contextLines = 3
	}
	u := difflib.UnifiedDiff{
		A:        difflib.SplitLines(string(baseDoc)),
		B:        difflib.SplitLines(string(currentDoc)),
		FromFile: "baseline",
		ToFile:   "current",
		Context:  contextLines,
	}
	s, err := difflib.GetUnifiedDiffString(u)
	if err != nil {
		return "", fmt.Errorf("computing diff: %w", err)
	}
	return s, nil
}
