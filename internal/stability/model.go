package stability

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Stability classifies whether a parameter value can be treated as unchanged
// across invocations for skip/restart purposes.
type Stability string

// Stability values. The set is closed.
const (
	Stable   Stability = "STABLE"
	Unstable Stability = "UNSTABLE"
	Runtime  Stability = "RUNTIME"
)

// ErrInvalidStability is returned when decoding a stability outside the closed set.
var ErrInvalidStability = errors.New("invalid stability")

// ParseStability converts s into a Stability.
func ParseStability(s string) (Stability, error) {
	switch st := Stability(s); st {
	case Stable, Unstable, Runtime:
		return st, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidStability, s)
	}
}

// Valid reports whether s is one of the three known values.
func (s Stability) Valid() bool {
	_, err := ParseStability(string(s))
	return err == nil
}

func (s Stability) String() string {
	return string(s)
}

// UnmarshalText rejects anything outside the closed set, so a malformed
// stability cannot enter through JSON.
func (s *Stability) UnmarshalText(text []byte) error {
	st, err := ParseStability(string(text))
	if err != nil {
		return err
	}
	*s = st
	return nil
}

// AnonymousMarker appears in the qualified name of compiler-synthesized
// functions. Records containing it anywhere are left out of the report.
const AnonymousMarker = "<anonymous>"

// ParameterRecord is one parameter's stability finding.
type ParameterRecord struct {
	Name      string    `json:"name"`
	Type      string    `json:"type"`
	Stability Stability `json:"stability"`
	Reason    *string   `json:"reason,omitempty"` // nil when no reason was recorded
}

// UnmarshalJSON requires the stability key; a missing or null stability is
// rejected with ErrInvalidStability like any other value outside the set.
func (p *ParameterRecord) UnmarshalJSON(data []byte) error {
	type plain ParameterRecord
	var v struct {
		plain
		Stability *Stability `json:"stability"`
	}
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	if v.Stability == nil {
		return fmt.Errorf("%w: parameter %q has no stability", ErrInvalidStability, v.Name)
	}
	*p = ParameterRecord(v.plain)
	p.Stability = *v.Stability
	return nil
}

// FunctionRecord describes one analyzed composable function.
type FunctionRecord struct {
	QualifiedName string            `json:"qualifiedName"`
	SimpleName    string            `json:"simpleName"`
	Visibility    string            `json:"visibility"`
	Skippable     bool              `json:"skippable"`
	Restartable   bool              `json:"restartable"`
	ReturnType    string            `json:"returnType"`
	Parameters    []ParameterRecord `json:"parameters"`
}

// IsAnonymous reports whether the record belongs to a compiler-synthesized function.
func (f FunctionRecord) IsAnonymous() bool {
	return strings.Contains(f.QualifiedName, AnonymousMarker)
}

// Report is the serialized artifact.
type Report struct {
	Composables []FunctionRecord `json:"composables"`
}

// Reason returns a pointer to s, for building ParameterRecords inline.
func Reason(s string) *string {
	return &s
}
