package datasets

import (
	"math"
	"time"
)

// Record is a normalized listing. Every declared field lands in exactly one
// of the maps according to its Kind:
//   - Numeric holds numeric, integer and mixed fields; NaN marks missing.
//   - Categorical holds categorical and text fields; "" marks missing.
//   - Dates holds date fields; a zero time marks missing.
type Record struct {
	Numeric     map[string]float64
	Categorical map[string]string
	Dates       map[string]time.Time
}

// Num returns a numeric field, or the missing marker when absent.
func (r Record) Num(name string) float64 {
	v, ok := r.Numeric[name]
	if !ok {
		return Missing()
	}
	return v
}

// Date returns a date field and whether it is present.
func (r Record) Date(name string) (time.Time, bool) {
	t, ok := r.Dates[name]
	if !ok || t.IsZero() {
		return time.Time{}, false
	}
	return t, true
}

// Normalize parses a raw record into typed fields. It never fails:
// malformed values degrade to missing and are left to imputation.
func Normalize(schema Schema, raw RawRecord) Record {
	rec := Record{
		Numeric:     make(map[string]float64),
		Categorical: make(map[string]string),
		Dates:       make(map[string]time.Time),
	}

	for _, f := range schema.Fields {
		s, ok := raw[f.Name]
		if !ok {
			// Absent columns (e.g. price in a test row) are skipped rather
			// than recorded as missing.
			continue
		}
		switch f.Kind {
		case KindNumeric:
			rec.Numeric[f.Name] = parseFloat(s)
		case KindInteger:
			rec.Numeric[f.Name] = parseInteger(s)
		case KindMixed:
			rec.Numeric[f.Name] = ParseMixedNumeric(s)
		case KindDate:
			t, _ := ParseDate(s)
			rec.Dates[f.Name] = t
		case KindCategorical, KindText:
			rec.Categorical[f.Name] = NormalizeText(s)
		}
	}
	return rec
}

// NormalizeAll normalizes raws in order.
func NormalizeAll(schema Schema, raws []RawRecord) []Record {
	out := make([]Record, len(raws))
	for i, raw := range raws {
		out[i] = Normalize(schema, raw)
	}
	return out
}

// MissingCounts counts, per declared field, the records in which the field
// is missing after normalization. Fields never missing are omitted.
func MissingCounts(schema Schema, records []Record) map[string]int {
	counts := make(map[string]int)
	for _, rec := range records {
		for _, f := range schema.Fields {
			missing := false
			switch f.Kind {
			case KindNumeric, KindInteger, KindMixed:
				v, ok := rec.Numeric[f.Name]
				missing = ok && math.IsNaN(v)
			case KindDate:
				t, ok := rec.Dates[f.Name]
				missing = ok && t.IsZero()
			case KindCategorical, KindText:
				v, ok := rec.Categorical[f.Name]
				missing = ok && v == ""
			}
			if missing {
				counts[f.Name]++
			}
		}
	}
	return counts
}
