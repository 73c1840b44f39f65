package readings

import (
	"context"
	"io"
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"
)

// SyntheticConfig shapes the simulated touch pad.
type SyntheticConfig struct {
	Channels    int     // number of channels to generate
	Baseline    float64 // untouched reading of channel 1
	Spacing     float64 // baseline step between neighbouring channels
	Noise       float64 // standard deviation of the gaussian noise
	TouchDepth  float64 // fractional drop of a touched channel, e.g. 0.2
	TouchPeriod int     // frames between touch starts; 0 disables touches
	TouchFrames int     // frames each touch lasts
	MaxFrames   int     // frames before io.EOF; 0 means unlimited
	Seed        uint64
}

// DefaultSyntheticConfig returns settings resembling a ten-pad capacitive
// touch board.
func DefaultSyntheticConfig(channels int) SyntheticConfig {
	return SyntheticConfig{
		Channels:    channels,
		Baseline:    1000,
		Spacing:     25,
		Noise:       2,
		TouchDepth:  0.2,
		TouchPeriod: 100,
		TouchFrames: 30,
		Seed:        1,
	}
}

// SyntheticSource generates baseline-plus-noise readings with periodic
// touches that move from channel to channel.
type SyntheticSource struct {
	cfg   SyntheticConfig
	noise distuv.Normal
	frame int
}

// NewSyntheticSource returns a deterministic source for cfg.Seed.
func NewSyntheticSource(cfg SyntheticConfig) *SyntheticSource {
	return &SyntheticSource{
		cfg: cfg,
		noise: distuv.Normal{
			Mu:    0,
			Sigma: cfg.Noise,
			Src:   rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15),
		},
	}
}

// Next returns the next simulated frame.
func (s *SyntheticSource) Next(ctx context.Context) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.cfg.MaxFrames > 0 && s.frame >= s.cfg.MaxFrames {
		return nil, io.EOF
	}

	touched := s.touchedChannel()
	values := make([]float32, s.cfg.Channels)
	for ch := range values {
		v := s.cfg.Baseline + float64(ch)*s.cfg.Spacing
		if ch == touched {
			v *= 1 - s.cfg.TouchDepth
		}
		if s.cfg.Noise > 0 {
			v += s.noise.Rand()
		}
		values[ch] = float32(v)
	}
	s.frame++
	return values, nil
}

// touchedChannel returns the 0-based channel under touch in the current
// frame, or -1.
func (s *SyntheticSource) touchedChannel() int {
	if s.cfg.TouchPeriod <= 0 || s.cfg.Channels <= 0 {
		return -1
	}
	if s.frame%s.cfg.TouchPeriod >= s.cfg.TouchFrames {
		return -1
	}
	return (s.frame / s.cfg.TouchPeriod) % s.cfg.Channels
}
