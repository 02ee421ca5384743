// Package pipeline runs one end-to-end pass: load, normalize, synthesize,
// encode, fit, predict, then write the submission, recipe, plot and metrics.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Noofbiz/carPrice/config"
	"github.com/Noofbiz/carPrice/datasets"
	"github.com/Noofbiz/carPrice/diagnostics"
	"github.com/Noofbiz/carPrice/features"
	"github.com/Noofbiz/carPrice/forest"
	"github.com/Noofbiz/carPrice/metrics"
	"github.com/Noofbiz/carPrice/output"
	"github.com/Noofbiz/carPrice/preprocess"
	"github.com/Noofbiz/carPrice/submission"
)

// Split names used in logs and metrics.
const (
	SplitTrain = "train"
	SplitTest  = "test"
)

// Options carries the collaborators of a run. Zero values are usable.
type Options struct {
	Logger  *slog.Logger
	Metrics *metrics.Manager
	// OnTreeDone is forwarded to the forest; see forest.Config.
	OnTreeDone func(done int)
}

// Result summarizes a successful run.
type Result struct {
	// Predictions are log-price predictions in test-row order.
	Predictions []float64
	// Fitted are in-sample predictions in training-row order.
	Fitted   []float64
	RSquared float64
	State    *preprocess.State

	SubmissionPath string
	PlotPath       string
	RecipePath     string
	MetricsPath    string
}

// Run executes the pipeline described by cfg.
func Run(ctx context.Context, cfg *config.Config, opts Options) (*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	m := opts.Metrics
	if m == nil {
		m = metrics.NewManager()
	}

	start := time.Now()
	trainRecs, err := loadSplit(cfg.TrainPath, true, SplitTrain, log, m)
	if err != nil {
		return nil, err
	}
	testRecs, err := loadSplit(cfg.TestPath, false, SplitTest, log, m)
	if err != nil {
		return nil, err
	}
	m.ObserveStage("load", time.Since(start))

	start = time.Now()
	trainFrame, err := features.Build(trainRecs, true)
	if err != nil {
		return nil, fmt.Errorf("failed to build training features: %w", err)
	}
	testFrame, err := features.Build(testRecs, false)
	if err != nil {
		return nil, fmt.Errorf("failed to build test features: %w", err)
	}
	m.ObserveStage("features", time.Since(start))

	start = time.Now()
	state, err := preprocess.Fit(trainFrame)
	if err != nil {
		return nil, fmt.Errorf("failed to fit preprocessing: %w", err)
	}
	trainX, err := preprocess.Apply(state, trainFrame)
	if err != nil {
		return nil, fmt.Errorf("failed to encode training data: %w", err)
	}
	testX, err := preprocess.Apply(state, testFrame)
	if err != nil {
		return nil, fmt.Errorf("failed to encode test data: %w", err)
	}
	m.ObserveStage("preprocess", time.Since(start))
	m.RecordColumns(len(state.Columns), len(state.Dropped))
	log.Info("encoded predictors", "columns", len(state.Columns), "dropped", len(state.Dropped))
	log.Debug("zero-variance columns", "names", state.Dropped)

	if err := output.EnsureDir(cfg.OutDir); err != nil {
		return nil, fmt.Errorf("failed to create output directory %s: %w", cfg.OutDir, err)
	}
	res := &Result{
		State:          state,
		SubmissionPath: cfg.SubmissionPath(),
		PlotPath:       cfg.PlotPath(),
		RecipePath:     cfg.RecipePath(),
		MetricsPath:    cfg.MetricsPath(),
	}

	if err := state.Save(res.RecipePath); err != nil {
		return nil, fmt.Errorf("failed to write recipe: %w", err)
	}
	log.Info("wrote preprocessing recipe", "path", res.RecipePath)

	if cfg.DumpMatrices {
		dumpMatrix(cfg.MatrixPath(SplitTrain), trainX, log)
		dumpMatrix(cfg.MatrixPath(SplitTest), testX, log)
	}

	start = time.Now()
	onTree := func(done int) {
		m.IncTrees()
		if opts.OnTreeDone != nil {
			opts.OnTreeDone(done)
		}
	}
	model, err := forest.Fit(ctx, forest.Config{
		NumTrees:    cfg.Trees,
		MaxFeatures: cfg.MaxFeatures,
		MinNodeSize: cfg.MinNodeSize,
		Seed:        cfg.Seed,
		Workers:     cfg.Workers,
		OnTreeDone:  onTree,
	}, trainX.Rows, trainX.Response)
	if err != nil {
		return nil, err
	}
	m.ObserveStage("fit", time.Since(start))
	log.Info("fitted random forest",
		"trees", len(model.Trees),
		"mtry", model.Config.MaxFeatures,
		"min_node_size", model.Config.MinNodeSize,
		"seed", cfg.Seed,
		"elapsed", time.Since(start).Round(time.Millisecond))

	start = time.Now()
	if res.Fitted, err = model.Predict(trainX.Rows); err != nil {
		return nil, fmt.Errorf("failed to predict training rows: %w", err)
	}
	if res.Predictions, err = model.Predict(testX.Rows); err != nil {
		return nil, fmt.Errorf("failed to predict test rows: %w", err)
	}
	m.ObserveStage("predict", time.Since(start))

	if res.RSquared, err = diagnostics.RSquared(trainX.Response, res.Fitted); err != nil {
		return nil, fmt.Errorf("failed to score fit: %w", err)
	}
	m.RecordRSquared(res.RSquared)
	log.Info("in-sample fit", "r_squared", res.RSquared)

	if err := diagnostics.CalibrationPlot(res.PlotPath, trainX.Response, res.Fitted); err != nil {
		return nil, fmt.Errorf("failed to render calibration plot: %w", err)
	}
	log.Info("wrote calibration plot", "path", res.PlotPath)

	err = submission.Write(res.SubmissionPath, submission.Record{
		Identity:    cfg.Identity,
		ID:          cfg.Identifier,
		Score:       res.RSquared,
		ModelLabel:  submission.ModelLabel,
		Predictions: res.Predictions,
	})
	if err != nil {
		return nil, err
	}
	log.Info("wrote submission", "path", res.SubmissionPath, "predictions", len(res.Predictions))

	m.MarkSuccess(time.Now())
	if err := m.WriteTextfile(res.MetricsPath); err != nil {
		return nil, err
	}
	log.Info("wrote metrics", "path", res.MetricsPath)

	return res, nil
}

// loadSplit reads and normalizes one input file.
func loadSplit(path string, withResponse bool, split string, log *slog.Logger, m *metrics.Manager) ([]datasets.Record, error) {
	raws, err := datasets.LoadRecords(path, datasets.VehicleSchema, withResponse)
	if err != nil {
		return nil, err
	}
	recs := datasets.NormalizeAll(datasets.VehicleSchema, raws)
	missing := datasets.MissingCounts(datasets.VehicleSchema, recs)

	m.RecordRows(split, len(recs))
	m.RecordMissing(split, missing)
	log.Info("loaded listings", "split", split, "path", path, "rows", len(recs))
	for field, n := range missing {
		log.Debug("missing values", "split", split, "field", field, "count", n)
	}
	return recs, nil
}

// dumpMatrix writes an encoded matrix as a tensor file. Failures are logged
// and do not abort the run.
func dumpMatrix(path string, x *preprocess.Matrix, log *slog.Logger) {
	if err := x.DumpTensor(path); err != nil {
		log.Warn("skipped matrix dump", "path", path, "err", err)
		return
	}
	log.Info("wrote encoded matrix", "path", path, "rows", x.NumRows(), "cols", x.NumCols())
}
