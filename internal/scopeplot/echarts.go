package scopeplot

import (
	"fmt"
	"io"
	"math"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/touchscope/internal/capture"
)

// DefaultMaxPoints caps the frames drawn by the HTML chart.
const DefaultMaxPoints = 5000

// LineChart builds an interactive per-channel line chart. Sessions longer
// than maxPoints frames are downsampled by stride. Non-finite readings are
// emitted as "-" so the chart shows a gap.
func LineChart(frames []capture.Frame, channels int, title string, maxPoints int) (*charts.Line, error) {
	if len(frames) == 0 || channels <= 0 {
		return nil, ErrNoData
	}
	if maxPoints <= 0 {
		maxPoints = DefaultMaxPoints
	}

	stride := 1
	if len(frames) > maxPoints {
		stride = int(math.Ceil(float64(len(frames)) / float64(maxPoints)))
	}

	x := make([]string, 0, len(frames)/stride+1)
	series := make([][]opts.LineData, channels)
	for i := 0; i < len(frames); i += stride {
		f := frames[i]
		x = append(x, strconv.Itoa(f.Seq))
		for ch := 0; ch < channels; ch++ {
			var v interface{} = "-"
			if ch < len(f.Values) {
				y := float64(f.Values[ch])
				if !math.IsNaN(y) && !math.IsInf(y, 0) {
					v = y
				}
			}
			series[ch] = append(series[ch], opts.LineData{Value: v})
		}
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "touchscope capture", Width: "100%", Height: "640px"}),
		charts.WithTitleOpts(opts.Title{Title: title, Subtitle: fmt.Sprintf("frames=%d stride=%d", len(frames), stride)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Top: "bottom"}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "slider"}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Frame", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Reading", Scale: opts.Bool(true)}),
	)
	line.SetXAxis(x)
	for ch, data := range series {
		line.AddSeries(fmt.Sprintf("ch%d", ch+1), data)
	}
	return line, nil
}

// RenderHTML writes a standalone HTML page with the session chart to w.
func RenderHTML(w io.Writer, frames []capture.Frame, channels int, title string, maxPoints int) error {
	line, err := LineChart(frames, channels, title, maxPoints)
	if err != nil {
		return err
	}
	if err := line.Render(w); err != nil {
		return fmt.Errorf("render chart: %w", err)
	}
	return nil
}
