package stability

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
)

// WriteJSONL writes records as JSONL, one function per line.
func WriteJSONL(w io.Writer, records []FunctionRecord) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	for _, f := range records {
		if err := enc.Encode(f); err != nil {
			return fmt.Errorf("encoding record %q: %w", f.QualifiedName, err)
		}
	}
	return nil
}

// ReadJSONL decodes records from r and passes each one to fn in stream order.
// Blank lines are skipped.
func ReadJSONL(r io.Reader, fn func(FunctionRecord) error) error {
	scanner := bufio.NewScanner(r)
	// Allow large lines
	scanner.Buffer(make([]byte, 0, 1024*1024), 10*1024*1024)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var f FunctionRecord
		if err := json.Unmarshal(line, &f); err != nil {
			return fmt.Errorf("decoding record on line %d: %w", lineNum, err)
		}
		if err := fn(f); err != nil {
			return err
		}
	}
	return scanner.Err()
}
