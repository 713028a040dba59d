package stability

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

// Collector accumulates composable function records for one compilation unit
// and exports them as a deterministic JSON report.
type Collector struct {
	mu      sync.Mutex
	path    string
	records []FunctionRecord
}

// NewCollector creates a collector bound to the given report path.
func NewCollector(path string) *Collector {
	return &Collector{path: path}
}

// Path returns the destination report path.
func (c *Collector) Path() string {
	return c.path
}

// Record appends a function record. Records are not validated.
func (c *Collector) Record(f FunctionRecord) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.records = append(c.records, f)
}

// Count returns the number of records seen so far, anonymous ones included.
func (c *Collector) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.records)
}

// Records returns a copy of every recorded function in insertion order,
// anonymous ones included.
func (c *Collector) Records() []FunctionRecord {
	c.mu.Lock()
	defer c.mu.Unlock()
	result := make([]FunctionRecord, len(c.records))
	copy(result, c.records)
	return result
}

// Report returns the report Export would write: anonymous functions removed,
// ordered by qualified name with ties in insertion order. The bool is false
// when no record qualifies.
func (c *Collector) Report() (Report, bool) {
	c.mu.Lock()
	kept := make([]FunctionRecord, 0, len(c.records))
	for _, f := range c.records {
		if f.IsAnonymous() {
			continue
		}
		if f.Parameters == nil {
			f.Parameters = []ParameterRecord{}
		}
		kept = append(kept, f)
	}
	c.mu.Unlock()

	if len(kept) == 0 {
		return Report{}, false
	}

	sort.SliceStable(kept, func(i, j int) bool {
		return kept[i].QualifiedName < kept[j].QualifiedName
	})
	return Report{Composables: kept}, true
}

// Export writes the report to the collector's path, creating missing parent
// directories. When nothing qualifies it does nothing: no directory is
// created and an existing file is left as is. Export does not reset the
// collector and may be called repeatedly.
func (c *Collector) Export() error {
	report, ok := c.Report()
	if !ok {
		return nil
	}
	return c.WriteReport(report)
}

// WriteReport writes r to the collector's path, creating missing parent
// directories. Callers that already hold a snapshot from Report use it so
// that what they inspect is exactly what gets written.
func (c *Collector) WriteReport(r Report) error {
	data, err := Encode(r)
	if err != nil {
		return err
	}

	dir := filepath.Dir(c.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating report dir %s: %w", dir, err)
	}
	if err := os.WriteFile(c.path, data, 0o644); err != nil {
		return fmt.Errorf("writing report %s: %w", c.path, err)
	}
	return nil
}

// Encode serializes a report with two-space indentation. HTML escaping is off
// so generic type names stay readable.
func Encode(r Report) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(r); err != nil {
		return nil, fmt.Errorf("encoding report: %w", err)
	}
	return buf.Bytes(), nil
}
