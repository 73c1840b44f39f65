// Package scopeplot renders captured touch sessions as time-series charts,
// one line per channel, for offline review of noise and touch response.
package scopeplot

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/touchscope/internal/capture"
)

// ErrNoData is returned when there is nothing to plot.
var ErrNoData = errors.New("no frames to plot")

// Options controls chart appearance.
type Options struct {
	Title  string
	Width  vg.Length
	Height vg.Length
}

// DefaultOptions returns the chart size used by the report command.
func DefaultOptions(title string) Options {
	return Options{Title: title, Width: 14 * vg.Inch, Height: 6 * vg.Inch}
}

// Build creates a plot of channels 1..channels across frames. Frames with
// fewer values leave gaps in the higher channels; NaN and infinite readings
// are not drawn.
func Build(frames []capture.Frame, channels int, opts Options) (*plot.Plot, error) {
	if len(frames) == 0 || channels <= 0 {
		return nil, ErrNoData
	}

	p := plot.New()
	p.Title.Text = opts.Title
	p.X.Label.Text = "Frame"
	p.Y.Label.Text = "Reading"

	series := make([]plotter.XYs, channels)
	for _, f := range frames {
		for ch := 0; ch < channels && ch < len(f.Values); ch++ {
			y := float64(f.Values[ch])
			if math.IsNaN(y) || math.IsInf(y, 0) {
				continue
			}
			series[ch] = append(series[ch], plotter.XY{X: float64(f.Seq), Y: y})
		}
	}

	lines := 0
	for ch, pts := range series {
		if len(pts) == 0 {
			continue
		}
		line, err := plotter.NewLine(pts)
		if err != nil {
			return nil, fmt.Errorf("channel %d: %w", ch+1, err)
		}
		line.Color = plotutil.Color(ch)
		line.Width = vg.Points(1)
		p.Add(line)
		p.Legend.Add(fmt.Sprintf("ch%d", ch+1), line)
		lines++
	}
	if lines == 0 {
		return nil, ErrNoData
	}

	p.Legend.Top = true
	p.Legend.Left = false
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10
	return p, nil
}

// Save builds the chart and writes it to path. The file extension selects
// the format (png, svg, pdf, ...).
func Save(frames []capture.Frame, channels int, opts Options, path string) error {
	p, err := Build(frames, channels, opts)
	if err != nil {
		return err
	}
	if err := p.Save(opts.Width, opts.Height, path); err != nil {
		return fmt.Errorf("save plot: %w", err)
	}
	return nil
}
