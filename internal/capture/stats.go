package capture

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// ChannelStats summarises one channel over a session. Swing is the
// peak-to-peak range; SNR is Swing over the population standard deviation.
// Threshold is the midpoint between the extremes, a starting point for a
// touch threshold. NaN and infinite readings are left out of the figures and
// counted in NonFinite.
type ChannelStats struct {
	Channel   int     `json:"channel"`
	Count     int     `json:"count"`
	NonFinite int     `json:"non_finite,omitempty"`
	Min       float64 `json:"min"`
	Max       float64 `json:"max"`
	Mean      float64 `json:"mean"`
	StdDev    float64 `json:"stddev"`
	Swing     float64 `json:"swing"`
	SNR       float64 `json:"snr"`
	Threshold float64 `json:"threshold"`
}

// Summarise computes per-channel statistics for channels 1..channels. Frames
// carrying fewer values contribute only to the channels they have.
func Summarise(frames []Frame, channels int) []ChannelStats {
	if channels <= 0 {
		return nil
	}

	series := make([][]float64, channels)
	nonFinite := make([]int, channels)
	for _, f := range frames {
		for i, v := range f.Values {
			if i >= channels {
				break
			}
			x := float64(v)
			if math.IsNaN(x) || math.IsInf(x, 0) {
				nonFinite[i]++
				continue
			}
			series[i] = append(series[i], x)
		}
	}

	out := make([]ChannelStats, channels)
	for i, xs := range series {
		cs := ChannelStats{Channel: i + 1, Count: len(xs), NonFinite: nonFinite[i]}
		if len(xs) > 0 {
			cs.Min = floats.Min(xs)
			cs.Max = floats.Max(xs)
			cs.Mean = stat.Mean(xs, nil)
			cs.StdDev = math.Sqrt(stat.PopVariance(xs, nil))
			cs.Swing = cs.Max - cs.Min
			if cs.StdDev > 0 {
				cs.SNR = cs.Swing / cs.StdDev
			}
			cs.Threshold = (cs.Max + cs.Min) / 2
		}
		out[i] = cs
	}
	return out
}
