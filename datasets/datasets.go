package datasets

import (
	"errors"
	"fmt"
	"strings"
)

// This file declares the input schema of the used-vehicle listing files.
//
// The column set is fixed and known up front: loading validates the header
// of each CSV against the schema and refuses files with missing, duplicated
// or undeclared columns. Nothing is inferred from the data itself.
//
// Layout and intended usage:
//
// VehicleSchema
//   - Training files carry every declared column plus the response (price).
//   - Test files carry every declared column and must NOT carry the response.
//   - Column order inside a file is free; values are addressed by name.

// ErrSchema is returned (wrapped) whenever an input file does not match the
// declared schema.
var ErrSchema = errors.New("schema error")

// Kind describes how the raw text of a field is interpreted by the
// normalizer.
type Kind int

const (
	// KindNumeric fields are already numeric in the raw file.
	KindNumeric Kind = iota
	// KindInteger fields are whole numbers (e.g. model year).
	KindInteger
	// KindMixed fields mix a number with text ("35.1 in", "5 seats"); the
	// first numeric token is kept.
	KindMixed
	// KindDate fields hold calendar dates.
	KindDate
	// KindCategorical fields are low-cardinality labels used as predictors.
	KindCategorical
	// KindText fields are free text identifiers that are never encoded.
	KindText
)

func (k Kind) String() string {
	switch k {
	case KindNumeric:
		return "numeric"
	case KindInteger:
		return "integer"
	case KindMixed:
		return "mixed"
	case KindDate:
		return "date"
	case KindCategorical:
		return "categorical"
	case KindText:
		return "text"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Field is one declared input column.
type Field struct {
	Name string
	Kind Kind
}

// Schema is the declared list of input columns. Response names the column
// that is only present in training files.
type Schema struct {
	Fields   []Field
	Response string
}

// Column names of the vehicle listing files.
const (
	ColPrice              = "price"
	ColListedDate         = "listed_date"
	ColYear               = "year"
	ColBackLegroom        = "back_legroom"
	ColFrontLegroom       = "front_legroom"
	ColFuelTankVolume     = "fuel_tank_volume"
	ColHeight             = "height"
	ColLength             = "length"
	ColWidth              = "width"
	ColWheelbase          = "wheelbase"
	ColMaximumSeating     = "maximum_seating"
	ColHorsepower         = "horsepower"
	ColEngineDisplacement = "engine_displacement"
	ColCityFuelEconomy    = "city_fuel_economy"
	ColHighwayFuelEconomy = "highway_fuel_economy"
	ColMileage            = "mileage"
	ColBodyType           = "body_type"
	ColFuelType           = "fuel_type"
	ColTransmission       = "transmission"
	ColWheelSystem        = "wheel_system"
	ColIsNew              = "is_new"
	ColMakeName           = "make_name"
	ColModelName          = "model_name"
	ColTrimName           = "trim_name"
	ColExteriorColor      = "exterior_color"
	ColInteriorColor      = "interior_color"
	ColCity               = "city"
	ColTorque             = "torque"
	ColPower              = "power"
)

// VehicleSchema is the fixed schema of the listing files.
var VehicleSchema = Schema{
	Response: ColPrice,
	Fields: []Field{
		{ColPrice, KindNumeric},
		{ColListedDate, KindDate},
		{ColYear, KindInteger},
		{ColBackLegroom, KindMixed},
		{ColFrontLegroom, KindMixed},
		{ColFuelTankVolume, KindMixed},
		{ColHeight, KindMixed},
		{ColLength, KindMixed},
		{ColWidth, KindMixed},
		{ColWheelbase, KindMixed},
		{ColMaximumSeating, KindMixed},
		{ColHorsepower, KindNumeric},
		{ColEngineDisplacement, KindNumeric},
		{ColCityFuelEconomy, KindNumeric},
		{ColHighwayFuelEconomy, KindNumeric},
		{ColMileage, KindNumeric},
		{ColBodyType, KindCategorical},
		{ColFuelType, KindCategorical},
		{ColTransmission, KindCategorical},
		{ColWheelSystem, KindCategorical},
		{ColIsNew, KindCategorical},
		{ColMakeName, KindText},
		{ColModelName, KindText},
		{ColTrimName, KindText},
		{ColExteriorColor, KindText},
		{ColInteriorColor, KindText},
		{ColCity, KindText},
		{ColTorque, KindText},
		{ColPower, KindText},
	},
}

// Field looks up a declared field by name.
func (s Schema) Field(name string) (Field, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// Columns returns the names expected in a file header, in declaration
// order. The response column is only included when withResponse is set.
func (s Schema) Columns(withResponse bool) []string {
	out := make([]string, 0, len(s.Fields))
	for _, f := range s.Fields {
		if f.Name == s.Response && !withResponse {
			continue
		}
		out = append(out, f.Name)
	}
	return out
}

// ColumnIndex validates a CSV header against the schema and returns the
// position of every expected column. Header names are compared after
// trimming and lower-casing.
func (s Schema) ColumnIndex(header []string, withResponse bool) (map[string]int, error) {
	expected := make(map[string]bool)
	for _, name := range s.Columns(withResponse) {
		expected[name] = true
	}

	colIndex := make(map[string]int, len(header))
	for i, col := range header {
		name := strings.TrimSpace(strings.ToLower(col))
		if i == 0 {
			name = strings.TrimPrefix(name, "\ufeff")
		}
		if _, dup := colIndex[name]; dup {
			return nil, fmt.Errorf("%w: duplicate column %q", ErrSchema, name)
		}
		if !expected[name] {
			if name == s.Response {
				return nil, fmt.Errorf("%w: response column %q not allowed here", ErrSchema, name)
			}
			return nil, fmt.Errorf("%w: unexpected column %q", ErrSchema, name)
		}
		colIndex[name] = i
	}

	for _, name := range s.Columns(withResponse) {
		if _, ok := colIndex[name]; !ok {
			return nil, fmt.Errorf("%w: required column %q not found", ErrSchema, name)
		}
	}
	return colIndex, nil
}
