package pipeline

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Noofbiz/carPrice/config"
	"github.com/Noofbiz/carPrice/datasets"
	"github.com/Noofbiz/carPrice/features"
	"github.com/Noofbiz/carPrice/preprocess"
	"github.com/Noofbiz/carPrice/submission"
)

var bodyTypes = []string{"Sedan", "SUV / Crossover", "Pickup Truck", "--"}

// listing generates one plausible row; newer, low-mileage cars cost more.
func listing(rng *rand.Rand, withResponse bool) map[string]string {
	year := 2008 + rng.Intn(13)
	mileage := rng.Intn(150000)
	hp := 120 + rng.Intn(250)
	body := bodyTypes[rng.Intn(len(bodyTypes))]
	price := 8000 + float64(year-2008)*1500 - float64(mileage)*0.05 + float64(hp)*40
	row := map[string]string{
		datasets.ColListedDate:         "2020-07-17",
		datasets.ColYear:               fmt.Sprint(year),
		datasets.ColBackLegroom:        fmt.Sprintf("%.1f in", 33+rng.Float64()*5),
		datasets.ColFrontLegroom:       fmt.Sprintf("%.1f in", 40+rng.Float64()*3),
		datasets.ColFuelTankVolume:     fmt.Sprintf("%.1f gal", 12+rng.Float64()*10),
		datasets.ColHeight:             fmt.Sprintf("%.1f in", 55+rng.Float64()*15),
		datasets.ColLength:             fmt.Sprintf("%.1f in", 170+rng.Float64()*40),
		datasets.ColWidth:              fmt.Sprintf("%.1f in", 70+rng.Float64()*10),
		datasets.ColWheelbase:          fmt.Sprintf("%.1f in", 100+rng.Float64()*20),
		datasets.ColMaximumSeating:     fmt.Sprintf("%d seats", 4+rng.Intn(4)),
		datasets.ColHorsepower:         fmt.Sprint(hp),
		datasets.ColEngineDisplacement: fmt.Sprint(1500 + 100*rng.Intn(40)),
		datasets.ColCityFuelEconomy:    fmt.Sprint(15 + rng.Intn(20)),
		datasets.ColHighwayFuelEconomy: fmt.Sprint(20 + rng.Intn(20)),
		datasets.ColMileage:            fmt.Sprint(mileage),
		datasets.ColBodyType:           body,
		datasets.ColFuelType:           "Gasoline",
		datasets.ColTransmission:       []string{"A", "M", "CVT"}[rng.Intn(3)],
		datasets.ColWheelSystem:        []string{"FWD", "AWD", "4WD"}[rng.Intn(3)],
		datasets.ColIsNew:              fmt.Sprint(year == 2020),
		datasets.ColMakeName:           "Make",
		datasets.ColModelName:          "Model",
		datasets.ColTrimName:           "Base",
		datasets.ColExteriorColor:      "Black",
		datasets.ColInteriorColor:      "Gray",
		datasets.ColCity:               "Springfield",
		datasets.ColTorque:             "200 lb-ft @ 4,000 RPM",
		datasets.ColPower:              fmt.Sprintf("%d hp @ 6,000 RPM", hp),
	}
	if withResponse {
		row[datasets.ColPrice] = fmt.Sprintf("%.0f", price)
	}
	return row
}

func writeListings(t *testing.T, path string, withResponse bool, rows []map[string]string) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	w := csv.NewWriter(f)
	cols := datasets.VehicleSchema.Columns(withResponse)
	require.NoError(t, w.Write(cols))
	for _, r := range rows {
		rec := make([]string, len(cols))
		for i, c := range cols {
			rec[i] = r[c]
		}
		require.NoError(t, w.Write(rec))
	}
	w.Flush()
	require.NoError(t, w.Error())
}

// fixture writes a train and test file and returns a config pointing at them.
func fixture(t *testing.T, nTrain, nTest int) *config.Config {
	t.Helper()
	dir := t.TempDir()
	rng := rand.New(rand.NewSource(11))

	train := make([]map[string]string, nTrain)
	for i := range train {
		train[i] = listing(rng, true)
	}
	test := make([]map[string]string, nTest)
	for i := range test {
		test[i] = listing(rng, false)
	}
	writeListings(t, filepath.Join(dir, "train.csv"), true, train)
	writeListings(t, filepath.Join(dir, "test.csv"), false, test)

	cfg := config.New()
	cfg.TrainPath = filepath.Join(dir, "train.csv")
	cfg.TestPath = filepath.Join(dir, "test.csv")
	cfg.OutDir = filepath.Join(dir, "out")
	cfg.Trees = 25
	cfg.MinNodeSize = 5
	cfg.Identity = "Jane Analyst"
	cfg.Identifier = "ja123"
	return cfg
}

func TestRun_EndToEnd(t *testing.T) {
	cfg := fixture(t, 120, 15)
	cfg.DumpMatrices = true

	var trees atomic.Int64
	res, err := Run(context.Background(), cfg, Options{OnTreeDone: func(int) { trees.Add(1) }})
	require.NoError(t, err)
	assert.Equal(t, int64(25), trees.Load())

	require.Len(t, res.Predictions, 15)
	require.Len(t, res.Fitted, 120)
	assert.Greater(t, res.RSquared, 0.5)
	assert.LessOrEqual(t, res.RSquared, 1.0)

	b, err := os.ReadFile(res.SubmissionPath)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSuffix(string(b), "\n"), "\n")
	require.Len(t, lines, 4+15)
	assert.Equal(t, "Jane Analyst", lines[0])
	assert.Equal(t, "ja123", lines[1])
	assert.Equal(t, submission.FormatFloat(res.RSquared), lines[2])
	assert.Equal(t, "Random Forest", lines[3])
	for i, p := range res.Predictions {
		assert.Equal(t, submission.FormatFloat(p), lines[4+i])
		// Log prices of the generated listings sit roughly between e^8 and e^11.
		assert.True(t, p > 8 && p < 11.5, "prediction %d out of range: %v", i, p)
	}

	for _, path := range []string{res.PlotPath, res.RecipePath, res.MetricsPath, cfg.MatrixPath(SplitTrain), cfg.MatrixPath(SplitTest)} {
		_, err := os.Stat(path)
		assert.NoError(t, err, path)
	}

	st, err := preprocess.LoadState(res.RecipePath)
	require.NoError(t, err)
	assert.Equal(t, res.State.Columns, st.Columns)
	for _, col := range st.Columns {
		for _, dropped := range features.DropList {
			assert.NotEqual(t, dropped, col)
		}
	}

	prom, err := os.ReadFile(res.MetricsPath)
	require.NoError(t, err)
	assert.Contains(t, string(prom), "carprice_trees_fitted_total 25")
	assert.Contains(t, string(prom), `carprice_rows_loaded{split="test"} 15`)
}

func TestRun_DeterministicUnderFixedSeed(t *testing.T) {
	cfg := fixture(t, 80, 10)
	a, err := Run(context.Background(), cfg, Options{})
	require.NoError(t, err)

	cfg.OutDir = filepath.Join(t.TempDir(), "second")
	cfg.Workers = 3
	b, err := Run(context.Background(), cfg, Options{})
	require.NoError(t, err)

	require.Len(t, b.Predictions, len(a.Predictions))
	for i := range a.Predictions {
		assert.Equal(t, math.Float64bits(a.Predictions[i]), math.Float64bits(b.Predictions[i]), "row %d", i)
	}
	assert.Equal(t, a.RSquared, b.RSquared)
}

func TestRun_PreservesTestRowOrder(t *testing.T) {
	cfg := fixture(t, 80, 8)
	a, err := Run(context.Background(), cfg, Options{})
	require.NoError(t, err)

	// Rewrite the test file with its rows reversed.
	f, err := os.Open(cfg.TestPath)
	require.NoError(t, err)
	records, err := csv.NewReader(f).ReadAll()
	f.Close()
	require.NoError(t, err)
	header, rows := records[0], records[1:]
	for i, j := 0, len(rows)-1; i < j; i, j = i+1, j-1 {
		rows[i], rows[j] = rows[j], rows[i]
	}
	out, err := os.Create(cfg.TestPath)
	require.NoError(t, err)
	w := csv.NewWriter(out)
	require.NoError(t, w.WriteAll(append([][]string{header}, rows...)))
	out.Close()

	b, err := Run(context.Background(), cfg, Options{})
	require.NoError(t, err)
	n := len(a.Predictions)
	for i := range a.Predictions {
		assert.Equal(t, a.Predictions[i], b.Predictions[n-1-i], "row %d", i)
	}
}

func TestRun_Errors(t *testing.T) {
	t.Run("schema mismatch leaves no submission", func(t *testing.T) {
		cfg := fixture(t, 40, 5)
		// A test file that carries the response column is rejected.
		cfg.TestPath = cfg.TrainPath
		_, err := Run(context.Background(), cfg, Options{})
		require.Error(t, err)
		assert.True(t, errors.Is(err, datasets.ErrSchema))
		_, statErr := os.Stat(cfg.SubmissionPath())
		assert.True(t, errors.Is(statErr, os.ErrNotExist))
	})

	t.Run("empty training file", func(t *testing.T) {
		cfg := fixture(t, 40, 5)
		writeListings(t, cfg.TrainPath, true, nil)
		_, err := Run(context.Background(), cfg, Options{})
		assert.True(t, errors.Is(err, preprocess.ErrEmptyTraining))
	})

	t.Run("invalid price", func(t *testing.T) {
		cfg := fixture(t, 40, 5)
		row := listing(rand.New(rand.NewSource(1)), true)
		row[datasets.ColPrice] = "--"
		writeListings(t, cfg.TrainPath, true, []map[string]string{row})
		_, err := Run(context.Background(), cfg, Options{})
		assert.True(t, errors.Is(err, features.ErrInvalidResponse))
	})

	t.Run("invalid config", func(t *testing.T) {
		cfg := fixture(t, 40, 5)
		cfg.Trees = 0
		_, err := Run(context.Background(), cfg, Options{})
		assert.True(t, errors.Is(err, config.ErrInvalidConfig))
	})
}
