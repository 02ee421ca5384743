package preprocess

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/gomlx/gomlx/pkg/core/tensors"

	"github.com/Noofbiz/carPrice/output"
)

// Save writes the state as indented JSON to path, atomically.
func (st *State) Save(path string) error {
	return output.WriteAtomic(path, func(w io.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(st)
	})
}

// LoadState reads a state previously written by Save.
func LoadState(path string) (*State, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open recipe %s: %w", path, err)
	}
	defer f.Close()

	var st State
	if err := json.NewDecoder(f).Decode(&st); err != nil {
		return nil, fmt.Errorf("failed to decode recipe %s: %w", path, err)
	}
	if len(st.Columns) == 0 {
		return nil, fmt.Errorf("recipe %s: %w", path, ErrNoPredictors)
	}
	return &st, nil
}

// ToTensor converts the encoded rows into a [rows, cols] float32 gomlx
// tensor.
func (m *Matrix) ToTensor() (*tensors.Tensor, error) {
	if len(m.Rows) == 0 || len(m.Columns) == 0 {
		return nil, fmt.Errorf("cannot build tensor from empty %dx%d matrix", len(m.Rows), len(m.Columns))
	}
	rows := make([][]float32, len(m.Rows))
	for i, r := range m.Rows {
		row := make([]float32, len(r))
		for j, v := range r {
			row[j] = float32(v)
		}
		rows[i] = row
	}
	return tensors.FromAnyValue(rows), nil
}

// DumpTensor saves the matrix as a gomlx tensor file at path.
func (m *Matrix) DumpTensor(path string) error {
	t, err := m.ToTensor()
	if err != nil {
		return err
	}
	if err := t.Save(path); err != nil {
		return fmt.Errorf("failed to save tensor %s: %w", path, err)
	}
	return nil
}
