// Package plotting renders diagnostic figures for a fitted pipeline: the
// singular-value decay that guides rank selection, and per-fold
// cross-validation errors.
package plotting

import (
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/sciforge/gorom/pkg/errors"
	"github.com/sciforge/gorom/reduction"
	"github.com/sciforge/gorom/rom"
)

// SingularValueDecay writes a semi-log plot of the fitted POD spectrum with
// the retained rank marked, to any format supported by the file extension
// (png, svg, pdf).
func SingularValueDecay(pod *reduction.POD, path string) error {
	sv := pod.SingularValues()
	if len(sv) == 0 {
		return errors.NewNotFittedError("POD", "plotting.SingularValueDecay")
	}

	p := plot.New()
	p.Title.Text = "Singular value decay"
	p.X.Label.Text = "mode"
	p.Y.Label.Text = "singular value"
	p.Y.Scale = plot.LogScale{}
	p.Y.Tick.Marker = plot.LogTicks{Prec: -1}

	pts := make(plotter.XYs, 0, len(sv))
	for i, s := range sv {
		if s <= 0 {
			break // log scale cannot show the zero tail
		}
		pts = append(pts, plotter.XY{X: float64(i + 1), Y: s})
	}
	line, points, err := plotter.NewLinePoints(pts)
	if err != nil {
		return errors.Wrap(err, "plotting: singular values")
	}
	p.Add(line, points)

	retained := make(plotter.XYs, 0, pod.Rank())
	for i := 0; i < pod.Rank() && i < len(pts); i++ {
		retained = append(retained, pts[i])
	}
	kept, err := plotter.NewScatter(retained)
	if err != nil {
		return errors.Wrap(err, "plotting: retained modes")
	}
	kept.GlyphStyle.Radius = vg.Points(3)
	p.Add(kept)
	p.Legend.Add("retained", kept)

	return errors.Wrap(p.Save(6*vg.Inch, 4*vg.Inch, path), "plotting: saving figure")
}

// CVErrors writes a per-fold relative-error plot with the mean drawn as a
// horizontal reference line.
func CVErrors(result *rom.CVResult, path string) error {
	if result == nil || len(result.FoldErrors) == 0 {
		return errors.NewValueError("plotting.CVErrors", "empty cross-validation result")
	}

	p := plot.New()
	p.Title.Text = "Cross-validation error"
	p.X.Label.Text = "fold"
	p.Y.Label.Text = "relative error"

	pts := make(plotter.XYs, len(result.FoldErrors))
	for i, e := range result.FoldErrors {
		pts[i] = plotter.XY{X: float64(i), Y: e}
	}
	line, points, err := plotter.NewLinePoints(pts)
	if err != nil {
		return errors.Wrap(err, "plotting: fold errors")
	}
	p.Add(line, points)

	mean := plotter.NewFunction(func(float64) float64 { return result.Mean })
	mean.Dashes = []vg.Length{vg.Points(4), vg.Points(4)}
	p.Add(mean)
	p.Legend.Add("mean", mean)

	return errors.Wrap(p.Save(6*vg.Inch, 4*vg.Inch, path), "plotting: saving figure")
}
