// Package forest implements a random-forest regressor: bagged regression
// trees with a random feature subset drawn at every split, averaged at
// prediction time.
package forest

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"runtime"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

var (
	// ErrEmptyData is returned by Fit when there are no training rows.
	ErrEmptyData = errors.New("no training rows")
	// ErrNoFeatures is returned by Fit when rows have zero columns.
	ErrNoFeatures = errors.New("no predictor columns")
	// ErrShapeMismatch is returned for ragged rows, a response of the wrong
	// length or a prediction matrix with the wrong width.
	ErrShapeMismatch = errors.New("shape mismatch")
)

// Config holds the forest hyperparameters.
type Config struct {
	// NumTrees is the number of trees. Default 700.
	NumTrees int

	// MaxFeatures is the number of candidate features drawn at each split.
	// Zero means floor(sqrt(p)), at least 1.
	MaxFeatures int

	// MinNodeSize is the minimum number of samples on each side of a split.
	// Default 10.
	MinNodeSize int

	// Seed drives bootstrap sampling and feature draws. Tree i uses Seed+i,
	// so results do not depend on Workers.
	Seed int64

	// Workers bounds how many trees are fitted at once. Zero means GOMAXPROCS.
	Workers int

	// OnTreeDone, if set, is called after each tree is fitted with the number
	// of trees done so far. It may be called from several goroutines.
	OnTreeDone func(done int)
}

// Forest is a fitted random forest.
type Forest struct {
	Config      Config
	NumFeatures int
	Trees       []*Tree
}

func (cfg Config) withDefaults(p int) Config {
	if cfg.NumTrees <= 0 {
		cfg.NumTrees = 700
	}
	if cfg.MinNodeSize <= 0 {
		cfg.MinNodeSize = 10
	}
	if cfg.MaxFeatures <= 0 {
		cfg.MaxFeatures = int(math.Floor(math.Sqrt(float64(p))))
	}
	if cfg.MaxFeatures < 1 {
		cfg.MaxFeatures = 1
	}
	if cfg.MaxFeatures > p {
		cfg.MaxFeatures = p
	}
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.GOMAXPROCS(0)
	}
	return cfg
}

// Fit trains a forest on rows x with response y. The fit is canceled when
// ctx is done.
func Fit(ctx context.Context, cfg Config, x [][]float64, y []float64) (*Forest, error) {
	n := len(x)
	if n == 0 {
		return nil, ErrEmptyData
	}
	if len(y) != n {
		return nil, fmt.Errorf("%w: %d rows but %d responses", ErrShapeMismatch, n, len(y))
	}
	p := len(x[0])
	if p == 0 {
		return nil, ErrNoFeatures
	}
	for i, row := range x {
		if len(row) != p {
			return nil, fmt.Errorf("%w: row %d has %d columns, want %d", ErrShapeMismatch, i, len(row), p)
		}
	}

	cfg = cfg.withDefaults(p)
	f := &Forest{
		Config:      cfg,
		NumFeatures: p,
		Trees:       make([]*Tree, cfg.NumTrees),
	}

	var done atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Workers)
	for t := 0; t < cfg.NumTrees; t++ {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			rng := rand.New(rand.NewSource(cfg.Seed + int64(t)))
			sample := make([]int, n)
			for i := range sample {
				sample[i] = rng.Intn(n)
			}
			f.Trees[t] = buildTree(x, y, sample, cfg.MaxFeatures, cfg.MinNodeSize, rng)
			d := done.Add(1)
			if cfg.OnTreeDone != nil {
				cfg.OnTreeDone(int(d))
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to fit forest: %w", err)
	}
	return f, nil
}

// Predict returns the mean tree prediction for each row of x, in row order.
func (f *Forest) Predict(x [][]float64) ([]float64, error) {
	out := make([]float64, len(x))
	for i, row := range x {
		if len(row) != f.NumFeatures {
			return nil, fmt.Errorf("%w: row %d has %d columns, model expects %d", ErrShapeMismatch, i, len(row), f.NumFeatures)
		}
		var sum float64
		for _, t := range f.Trees {
			sum += t.Predict(row)
		}
		out[i] = sum / float64(len(f.Trees))
	}
	return out, nil
}
