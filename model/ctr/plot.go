// Copyright 2025 gorse Project Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package ctr

import (
	"github.com/juju/errors"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
)

// PlotHistory draws the epoch loss and validation AUC of a training run. The
// image format follows the extension of path.
func PlotHistory(h History, title, path string) error {
	if len(h.EpochLoss) == 0 {
		return errors.NotValidf("empty history")
	}
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "Epoch"
	p.Y.Label.Text = "Value"
	lines := []any{"Loss", points(h.EpochLoss)}
	if len(h.AUC) > 0 {
		lines = append(lines, "AUC", points(h.AUC))
	}
	if err := plotutil.AddLinePoints(p, lines...); err != nil {
		return errors.Trace(err)
	}
	if err := p.Save(6*vg.Inch, 4*vg.Inch, path); err != nil {
		return errors.Trace(err)
	}
	return nil
}

func points(values []float32) plotter.XYs {
	pts := make(plotter.XYs, len(values))
	for i, v := range values {
		pts[i].X = float64(i + 1)
		pts[i].Y = float64(v)
	}
	return pts
}
