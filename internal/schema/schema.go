// Package schema validates stability report documents against the embedded
// JSON Schema.
package schema

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

//go:embed report.schema.json
var reportSchema []byte

// ErrSchemaViolation is returned when a document does not match the report schema.
var ErrSchemaViolation = errors.New("report does not match schema")

// Schema returns the raw report schema.
func Schema() []byte {
	return reportSchema
}

// Validate checks a report document. Violations are returned as a single
// error listing every failing field, sorted.
func Validate(doc []byte) error {
	result, err := gojsonschema.Validate(
		gojsonschema.NewBytesLoader(reportSchema),
		gojsonschema.NewBytesLoader(doc),
	)
	if err != nil {
		return fmt.Errorf("validating report: %w", err)
	}
	if result.Valid() {
		return nil
	}

	msgs := make([]string, 0, len(result.Errors()))
	for _, verr := range result.Errors() {
		msgs = append(msgs, fmt.Sprintf("%s: %s", verr.Field(), verr.Description()))
	}
	sort.Strings(msgs)
	return fmt.Errorf("%w:\n  %s", ErrSchemaViolation, strings.Join(msgs, "\n  "))
}

// ValidateFile reads and validates the report at path.
func ValidateFile(path string) error {
	doc, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading report %s: %w", path, err)
	}
	if err := Validate(doc); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}
