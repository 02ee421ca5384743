// Package features derives engineered predictors from normalized listings
// and assembles the columnar frame consumed by preprocessing.
package features

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/Noofbiz/carPrice/datasets"
)

// Engineered feature names.
const (
	Age          = "age"
	PowerDensity = "power_density"
	AvgMPG       = "avg_mpg"
	Footprint    = "footprint"
)

// ErrInvalidResponse is returned when a training row has no usable price.
var ErrInvalidResponse = errors.New("invalid response")

// DropList names the normalized fields removed from the predictor set after
// synthesis: inputs of engineered features and free-text identifiers.
var DropList = []string{
	datasets.ColListedDate,
	datasets.ColYear,
	datasets.ColHorsepower,
	datasets.ColEngineDisplacement,
	datasets.ColCityFuelEconomy,
	datasets.ColHighwayFuelEconomy,
	datasets.ColLength,
	datasets.ColWidth,
	datasets.ColMakeName,
	datasets.ColModelName,
	datasets.ColTrimName,
	datasets.ColExteriorColor,
	datasets.ColInteriorColor,
	datasets.ColCity,
	datasets.ColTorque,
	datasets.ColPower,
}

// IsDropped reports whether a normalized field is excluded from the
// predictor set.
func IsDropped(name string) bool {
	for _, d := range DropList {
		if d == name {
			return true
		}
	}
	return false
}

// NumericPredictors lists the numeric predictor columns in frame order.
var NumericPredictors = []string{
	datasets.ColBackLegroom,
	datasets.ColFrontLegroom,
	datasets.ColFuelTankVolume,
	datasets.ColHeight,
	datasets.ColWheelbase,
	datasets.ColMaximumSeating,
	datasets.ColMileage,
	Age,
	PowerDensity,
	AvgMPG,
	Footprint,
}

// CategoricalPredictors lists the categorical predictor columns in frame order.
var CategoricalPredictors = []string{
	datasets.ColBodyType,
	datasets.ColFuelType,
	datasets.ColTransmission,
	datasets.ColWheelSystem,
	datasets.ColIsNew,
}

// Synthesize returns a copy of rec with the engineered features appended.
// rec itself is not modified. An engineered value is missing whenever one of
// its inputs is missing.
func Synthesize(rec datasets.Record) datasets.Record {
	out := datasets.Record{
		Numeric:     make(map[string]float64, len(rec.Numeric)+4),
		Categorical: make(map[string]string, len(rec.Categorical)),
		Dates:       make(map[string]time.Time, len(rec.Dates)),
	}
	for k, v := range rec.Numeric {
		out.Numeric[k] = v
	}
	for k, v := range rec.Categorical {
		out.Categorical[k] = v
	}
	for k, v := range rec.Dates {
		out.Dates[k] = v
	}

	out.Numeric[Age] = age(rec)
	out.Numeric[PowerDensity] = powerDensity(rec.Num(datasets.ColHorsepower), rec.Num(datasets.ColEngineDisplacement))
	out.Numeric[AvgMPG] = avgMPG(rec.Num(datasets.ColCityFuelEconomy), rec.Num(datasets.ColHighwayFuelEconomy))
	out.Numeric[Footprint] = footprint(rec.Num(datasets.ColLength), rec.Num(datasets.ColWidth))
	return out
}

// age is listing year minus model year. Negative ages pass through.
func age(rec datasets.Record) float64 {
	listed, ok := rec.Date(datasets.ColListedDate)
	year := rec.Num(datasets.ColYear)
	if !ok || datasets.IsMissingValue(year) {
		return datasets.Missing()
	}
	return float64(listed.Year()) - year
}

// powerDensity is horsepower per litre. Displacement arrives in cubic
// centimetres.
func powerDensity(hp, cc float64) float64 {
	if datasets.IsMissingValue(hp) || datasets.IsMissingValue(cc) || cc <= 0 {
		return datasets.Missing()
	}
	return hp / (cc / 1000)
}

func avgMPG(city, highway float64) float64 {
	if datasets.IsMissingValue(city) || datasets.IsMissingValue(highway) {
		return datasets.Missing()
	}
	return (city + highway) / 2
}

func footprint(length, width float64) float64 {
	if datasets.IsMissingValue(length) || datasets.IsMissingValue(width) {
		return datasets.Missing()
	}
	return length * width
}

// Frame is a columnar view of the predictors of a set of listings, in input
// row order. Response holds log(price) and is nil for test frames.
type Frame struct {
	Len              int
	NumericOrder     []string
	CategoricalOrder []string
	Numeric          map[string][]float64
	Categorical      map[string][]string
	Response         []float64
}

// NewFrame returns an empty frame with the predictor columns declared.
func NewFrame(n int) *Frame {
	f := &Frame{
		Len:              n,
		NumericOrder:     append([]string(nil), NumericPredictors...),
		CategoricalOrder: append([]string(nil), CategoricalPredictors...),
		Numeric:          make(map[string][]float64, len(NumericPredictors)),
		Categorical:      make(map[string][]string, len(CategoricalPredictors)),
	}
	for _, name := range f.NumericOrder {
		f.Numeric[name] = make([]float64, n)
	}
	for _, name := range f.CategoricalOrder {
		f.Categorical[name] = make([]string, n)
	}
	return f
}

// Build synthesizes features for every record and gathers the predictor
// columns. With withResponse set, each record must carry a positive price,
// which becomes the natural-log response.
func Build(records []datasets.Record, withResponse bool) (*Frame, error) {
	f := NewFrame(len(records))
	if withResponse {
		f.Response = make([]float64, len(records))
	}

	for i, rec := range records {
		syn := Synthesize(rec)
		for _, name := range f.NumericOrder {
			f.Numeric[name][i] = syn.Num(name)
		}
		for _, name := range f.CategoricalOrder {
			f.Categorical[name][i] = syn.Categorical[name]
		}
		if withResponse {
			price := rec.Num(datasets.ColPrice)
			if datasets.IsMissingValue(price) || price <= 0 {
				return nil, fmt.Errorf("%w: row %d has price %v", ErrInvalidResponse, i+1, price)
			}
			f.Response[i] = math.Log(price)
		}
	}
	return f, nil
}
