// Package diagnostics scores in-sample fit quality and renders the
// calibration plot of true versus predicted response.
package diagnostics

import (
	"errors"
	"fmt"
	"image/color"
	"math"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// ErrTooFewPoints is returned when fewer than two points are scored.
var ErrTooFewPoints = errors.New("need at least two points")

// RSquared returns the coefficient of determination of pred against truth.
func RSquared(truth, pred []float64) (float64, error) {
	if len(truth) != len(pred) {
		return 0, fmt.Errorf("length mismatch: %d true values, %d predictions", len(truth), len(pred))
	}
	if len(truth) < 2 {
		return 0, ErrTooFewPoints
	}
	return stat.RSquaredFrom(pred, truth, nil), nil
}

// CalibrationPlot writes a PNG scatter of truth (x) against pred (y) with the
// identity line overlaid. Both axes share one range so the line sits on the
// diagonal.
func CalibrationPlot(path string, truth, pred []float64) error {
	if len(truth) != len(pred) {
		return fmt.Errorf("length mismatch: %d true values, %d predictions", len(truth), len(pred))
	}
	if len(truth) == 0 {
		return ErrTooFewPoints
	}

	pts := make(plotter.XYs, len(truth))
	for i := range truth {
		pts[i].X = truth[i]
		pts[i].Y = pred[i]
	}

	p := plot.New()
	p.Title.Text = "Calibration: predicted vs true log price"
	p.X.Label.Text = "true log(price)"
	p.Y.Label.Text = "predicted log(price)"

	sc, err := plotter.NewScatter(pts)
	if err != nil {
		return err
	}
	sc.GlyphStyle.Color = color.RGBA{R: 20, G: 80, B: 200, A: 140}
	sc.GlyphStyle.Radius = vg.Points(1.8)
	p.Add(sc)
	p.Legend.Add("training rows", sc)

	identity := plotter.NewFunction(func(x float64) float64 { return x })
	identity.Color = color.RGBA{R: 200, G: 30, B: 30, A: 255}
	identity.Width = vg.Points(1.2)
	identity.Dashes = []vg.Length{vg.Points(4), vg.Points(3)}
	p.Add(identity)
	p.Legend.Add("y = x", identity)
	p.Legend.Top = true
	p.Legend.Left = true

	lo, hi := autoRange(pts)
	p.X.Min, p.X.Max = lo, hi
	p.Y.Min, p.Y.Max = lo, hi
	p.Add(plotter.NewGrid())

	if err := p.Save(6*vg.Inch, 6*vg.Inch, path); err != nil {
		return fmt.Errorf("failed to save plot %s: %w", path, err)
	}
	return nil
}

// autoRange returns one padded range covering both coordinates of xs.
func autoRange(xs plotter.XYs) (lo, hi float64) {
	if len(xs) == 0 {
		return -1, 1
	}
	lo = math.Inf(1)
	hi = math.Inf(-1)
	for _, p := range xs {
		lo = math.Min(lo, math.Min(p.X, p.Y))
		hi = math.Max(hi, math.Max(p.X, p.Y))
	}
	pad := (hi - lo) * 0.06
	if pad == 0 {
		pad = 1.0
	}
	return lo - pad, hi + pad
}
