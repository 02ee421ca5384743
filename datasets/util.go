package datasets

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"
)

// MissingToken is the placeholder the listing files use for "no value".
const MissingToken = "--"

var (
	// numberRegexp captures the first signed decimal number, with an optional exponent.
	numberRegexp = regexp.MustCompile(`[-+]?(?:\d+(?:\.\d*)?|\.\d+)(?:[eE][-+]?\d+)?`)

	// dateLayouts are tried in order when parsing date fields.
	dateLayouts = []string{
		"2006-01-02",
		time.RFC3339,
		"2006-01-02 15:04:05",
		"01/02/2006",
	}
)

// IsMissing reports whether a raw value stands for a missing value.
func IsMissing(s string) bool {
	s = strings.TrimSpace(s)
	return s == "" || s == MissingToken
}

// Missing returns the numeric missing-value marker.
func Missing() float64 { return math.NaN() }

// IsMissingValue reports whether v is the numeric missing-value marker.
func IsMissingValue(v float64) bool { return math.IsNaN(v) }

// parseFloat parses an already-numeric field. Anything unparseable is
// missing.
func parseFloat(s string) float64 {
	if IsMissing(s) {
		return Missing()
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsInf(v, 0) {
		return Missing()
	}
	return v
}

// parseInteger parses a whole number; fractional values are missing.
func parseInteger(s string) float64 {
	v := parseFloat(s)
	if IsMissingValue(v) || v != math.Trunc(v) {
		return Missing()
	}
	return v
}

// ParseMixedNumeric extracts the first numeric token from a mixed
// number/text value such as "35.1 in" or "5 seats". Thousands separators
// are dropped before matching. Values without a token are missing.
func ParseMixedNumeric(s string) float64 {
	if IsMissing(s) {
		return Missing()
	}
	cleaned := strings.ReplaceAll(s, ",", "")
	match := numberRegexp.FindString(cleaned)
	if match == "" {
		return Missing()
	}
	v, err := strconv.ParseFloat(match, 64)
	if err != nil || math.IsInf(v, 0) {
		return Missing()
	}
	return v
}

// ParseDate parses a calendar date. ok is false for missing or malformed
// input.
func ParseDate(s string) (t time.Time, ok bool) {
	if IsMissing(s) {
		return time.Time{}, false
	}
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// NormalizeText trims a label and collapses internal whitespace. Missing
// tokens become the empty string.
func NormalizeText(s string) string {
	if IsMissing(s) {
		return ""
	}
	fields := strings.FieldsFunc(s, unicode.IsSpace)
	return strings.Join(fields, " ")
}
