// Package preprocess fits imputation and one-hot encoding statistics on a
// training frame and applies them, unchanged, to any frame with the same
// predictor columns.
//
// Fit and Apply are pure: the fitted State is an explicit value that can be
// inspected, serialized and reused, and Apply never learns anything from the
// frame it encodes.
package preprocess

import (
	"errors"
	"fmt"
	"sort"

	"github.com/Noofbiz/carPrice/datasets"
	"github.com/Noofbiz/carPrice/features"
)

// UnknownLevel is the synthetic level that missing categorical values map to.
const UnknownLevel = "Unknown"

var (
	// ErrEmptyTraining is returned by Fit for a frame with no rows.
	ErrEmptyTraining = errors.New("empty training data")
	// ErrNoPredictors is returned by Fit when every encoded column is constant.
	ErrNoPredictors = errors.New("no predictors after preprocessing")
	// ErrSchemaMismatch is returned by Apply when a frame lacks a fitted column.
	ErrSchemaMismatch = errors.New("schema mismatch")
)

// NumericStat is the fitted imputation value of one numeric predictor.
type NumericStat struct {
	Name     string  `json:"name"`
	Median   float64 `json:"median"`
	Observed int     `json:"observed"`
}

// Vocabulary is the fitted level set of one categorical predictor, sorted,
// with UnknownLevel last.
type Vocabulary struct {
	Name   string   `json:"name"`
	Levels []string `json:"levels"`
}

// State is everything Fit learns from the training frame.
type State struct {
	Numeric     []NumericStat `json:"numeric"`
	Categorical []Vocabulary  `json:"categorical"`
	// Columns are the encoded columns kept after zero-variance removal, in
	// output order.
	Columns []string `json:"columns"`
	// Dropped are the encoded columns removed as constant on training data.
	Dropped []string `json:"dropped"`
}

// Matrix is an encoded design matrix. Rows follow the input row order.
type Matrix struct {
	Columns  []string
	Rows     [][]float64
	Response []float64
}

// NumRows returns the number of encoded rows.
func (m *Matrix) NumRows() int { return len(m.Rows) }

// NumCols returns the number of encoded columns.
func (m *Matrix) NumCols() int { return len(m.Columns) }

// IndicatorName is the encoded column name of one categorical level.
func IndicatorName(field, level string) string {
	return field + "_" + level
}

// Fit learns medians, vocabularies and constant columns from a training
// frame.
func Fit(frame *features.Frame) (*State, error) {
	if frame == nil || frame.Len == 0 {
		return nil, ErrEmptyTraining
	}

	st := &State{}
	for _, name := range frame.NumericOrder {
		col, ok := frame.Numeric[name]
		if !ok || len(col) != frame.Len {
			return nil, fmt.Errorf("%w: numeric column %q", ErrSchemaMismatch, name)
		}
		med, n := median(col)
		st.Numeric = append(st.Numeric, NumericStat{Name: name, Median: med, Observed: n})
	}
	for _, name := range frame.CategoricalOrder {
		col, ok := frame.Categorical[name]
		if !ok || len(col) != frame.Len {
			return nil, fmt.Errorf("%w: categorical column %q", ErrSchemaMismatch, name)
		}
		st.Categorical = append(st.Categorical, Vocabulary{Name: name, Levels: levels(col)})
	}

	// Encode every candidate column once, then keep the ones that vary.
	full, err := st.encode(frame, st.allColumns())
	if err != nil {
		return nil, err
	}
	for j, name := range full.Columns {
		if constant(full.Rows, j) {
			st.Dropped = append(st.Dropped, name)
			continue
		}
		st.Columns = append(st.Columns, name)
	}
	if len(st.Columns) == 0 {
		return nil, ErrNoPredictors
	}
	return st, nil
}

// Apply encodes a frame using the fitted state. The result has exactly the
// state's Columns, in order. The response is carried over when present.
func Apply(st *State, frame *features.Frame) (*Matrix, error) {
	if st == nil {
		return nil, errors.New("nil preprocessing state")
	}
	return st.encode(frame, st.Columns)
}

// allColumns lists every encoded column before zero-variance removal.
func (st *State) allColumns() []string {
	var cols []string
	for _, ns := range st.Numeric {
		cols = append(cols, ns.Name)
	}
	for _, v := range st.Categorical {
		for _, level := range v.Levels {
			cols = append(cols, IndicatorName(v.Name, level))
		}
	}
	return cols
}

// encode builds the rows of frame restricted to keep, which must be a subset
// of allColumns in the same relative order.
func (st *State) encode(frame *features.Frame, keep []string) (*Matrix, error) {
	if frame == nil {
		return nil, fmt.Errorf("%w: nil frame", ErrSchemaMismatch)
	}
	for _, ns := range st.Numeric {
		if col, ok := frame.Numeric[ns.Name]; !ok || len(col) != frame.Len {
			return nil, fmt.Errorf("%w: numeric column %q missing", ErrSchemaMismatch, ns.Name)
		}
	}
	for _, v := range st.Categorical {
		if col, ok := frame.Categorical[v.Name]; !ok || len(col) != frame.Len {
			return nil, fmt.Errorf("%w: categorical column %q missing", ErrSchemaMismatch, v.Name)
		}
	}
	if frame.Response != nil && len(frame.Response) != frame.Len {
		return nil, fmt.Errorf("%w: response has %d values for %d rows", ErrSchemaMismatch, len(frame.Response), frame.Len)
	}

	kept := make(map[string]bool, len(keep))
	for _, c := range keep {
		kept[c] = true
	}

	m := &Matrix{
		Columns: append([]string(nil), keep...),
		Rows:    make([][]float64, frame.Len),
	}
	if frame.Response != nil {
		m.Response = append([]float64(nil), frame.Response...)
	}

	for i := 0; i < frame.Len; i++ {
		row := make([]float64, 0, len(keep))
		for _, ns := range st.Numeric {
			if !kept[ns.Name] {
				continue
			}
			v := frame.Numeric[ns.Name][i]
			if datasets.IsMissingValue(v) {
				v = ns.Median
			}
			row = append(row, v)
		}
		for _, voc := range st.Categorical {
			level := frame.Categorical[voc.Name][i]
			if level == "" {
				level = UnknownLevel
			}
			// Levels outside the vocabulary leave every indicator at zero.
			for _, l := range voc.Levels {
				if !kept[IndicatorName(voc.Name, l)] {
					continue
				}
				if l == level {
					row = append(row, 1)
				} else {
					row = append(row, 0)
				}
			}
		}
		m.Rows[i] = row
	}
	return m, nil
}

// median returns the median of the observed values of col and how many were
// observed. Even counts average the two middle values; a column with no
// observed value has median 0.
func median(col []float64) (float64, int) {
	obs := make([]float64, 0, len(col))
	for _, v := range col {
		if !datasets.IsMissingValue(v) {
			obs = append(obs, v)
		}
	}
	n := len(obs)
	if n == 0 {
		return 0, 0
	}
	sort.Float64s(obs)
	if n%2 == 1 {
		return obs[n/2], n
	}
	return (obs[n/2-1] + obs[n/2]) / 2, n
}

// levels returns the sorted distinct non-missing values of col followed by
// UnknownLevel.
func levels(col []string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, v := range col {
		if v == "" || v == UnknownLevel || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	sort.Strings(out)
	return append(out, UnknownLevel)
}

func constant(rows [][]float64, j int) bool {
	for i := 1; i < len(rows); i++ {
		if rows[i][j] != rows[0][j] {
			return false
		}
	}
	return true
}
