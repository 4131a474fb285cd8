// Package analysis renders simulation and optimisation results to PNG for
// visual inspection.
package analysis

import (
	"fmt"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/cepro/minigridsim/appraisal"
	"github.com/cepro/minigridsim/simulation"
)

// PlotHourlySeries renders the headline hourly ledgers of one simulation into
// the given directory.
func PlotHourlySeries(out *simulation.Output, dir string) error {
	seriesByName := map[string][]float64{
		"battery_storage": out.BatteryStorage,
		"unmet_energy":    out.UnmetEnergy,
		"dumped_energy":   out.DumpedEnergy,
		"grid_energy":     out.GridEnergy,
	}
	if out.HasWater() {
		seriesByName["tank_storage"] = out.TankStorage
	}
	for name, values := range seriesByName {
		path := filepath.Join(dir, name+".png")
		if err := plotSeries(name, "hour", "kWh", values, path); err != nil {
			return fmt.Errorf("plot %s: %w", name, err)
		}
	}
	return nil
}

// PlotCriterionByIteration renders the per-iteration values of one criterion
// across an appraisal chain.
func PlotCriterionByIteration(chain []appraisal.SystemAppraisal, criterion appraisal.Criterion, dir string) error {
	values := make([]float64, len(chain))
	for i, app := range chain {
		values[i] = app.Criteria[criterion]
	}
	path := filepath.Join(dir, fmt.Sprintf("%s_by_iteration.png", criterion))
	if err := plotSeries(string(criterion), "iteration", string(criterion), values, path); err != nil {
		return fmt.Errorf("plot criterion %s: %w", criterion, err)
	}
	return nil
}

func plotSeries(title, xLabel, yLabel string, values []float64, path string) error {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = xLabel
	p.Y.Label.Text = yLabel

	points := make(plotter.XYs, len(values))
	for i, v := range values {
		points[i].X = float64(i)
		points[i].Y = v
	}
	line, err := plotter.NewLine(points)
	if err != nil {
		return fmt.Errorf("build line: %w", err)
	}
	p.Add(line)

	if err := p.Save(10*vg.Inch, 4*vg.Inch, path); err != nil {
		return fmt.Errorf("save plot: %w", err)
	}
	return nil
}
