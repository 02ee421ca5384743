package datasets

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
)

// RawRecord is one listing row exactly as read from the CSV file, keyed by
// the declared column name.
type RawRecord map[string]string

// LoadRecords reads every row of the CSV file at path after validating its
// header against schema. withResponse selects the training layout (response
// column present) or the test layout (response column absent).
func LoadRecords(path string, schema Schema, withResponse bool) ([]RawRecord, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open CSV %s: %w", path, err)
	}
	defer file.Close()

	records, err := ReadRecords(file, schema, withResponse)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", path, err)
	}
	return records, nil
}

// ReadRecords is LoadRecords over an arbitrary reader.
func ReadRecords(r io.Reader, schema Schema, withResponse bool) ([]RawRecord, error) {
	reader := csv.NewReader(r)

	header, err := reader.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("%w: empty file, no header", ErrSchema)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	colIndex, err := schema.ColumnIndex(header, withResponse)
	if err != nil {
		return nil, err
	}

	// The csv reader pins FieldsPerRecord to the header width, so ragged
	// rows surface as read errors below.
	var out []RawRecord
	for row := 1; ; row++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read row %d: %w", row, err)
		}

		raw := make(RawRecord, len(colIndex))
		for name, idx := range colIndex {
			raw[name] = record[idx]
		}
		out = append(out, raw)
	}

	return out, nil
}
