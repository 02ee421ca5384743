// Package submission renders and writes the fixed-format prediction file.
//
// Layout, one entry per line:
//
//	identity
//	identifier
//	fit-quality score
//	model label
//	prediction for test row 1
//	...
//	prediction for test row N
package submission

import (
	"bufio"
	"fmt"
	"io"
	"strconv"

	"github.com/Noofbiz/carPrice/output"
)

// ModelLabel is the model-family label written on line 4.
const ModelLabel = "Random Forest"

// Record is the content of a submission file.
type Record struct {
	Identity    string
	ID          string
	Score       float64
	ModelLabel  string
	Predictions []float64
}

// FormatFloat renders v in its shortest round-trip form.
func FormatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// Lines returns the file content line by line.
func (r Record) Lines() []string {
	label := r.ModelLabel
	if label == "" {
		label = ModelLabel
	}
	lines := make([]string, 0, 4+len(r.Predictions))
	lines = append(lines, r.Identity, r.ID, FormatFloat(r.Score), label)
	for _, p := range r.Predictions {
		lines = append(lines, FormatFloat(p))
	}
	return lines
}

// WriteTo writes the record to w, newline-terminated.
func (r Record) WriteTo(w io.Writer) (int64, error) {
	bw := bufio.NewWriter(w)
	var n int64
	for _, line := range r.Lines() {
		k, err := bw.WriteString(line + "\n")
		n += int64(k)
		if err != nil {
			return n, err
		}
	}
	return n, bw.Flush()
}

// Write replaces the file at path with the record. The file appears only
// once fully written.
func Write(path string, r Record) error {
	if err := output.WriteAtomic(path, func(w io.Writer) error {
		_, err := r.WriteTo(w)
		return err
	}); err != nil {
		return fmt.Errorf("failed to write submission: %w", err)
	}
	return nil
}
