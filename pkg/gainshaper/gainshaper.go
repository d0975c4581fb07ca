// Package gainshaper attenuates frames depending on how likely they
// contain voice.
package gainshaper

import (
	"fmt"
	"math"
)

// Band applies Multiplier to frames whose voice probability is
// strictly below UpperBound.
type Band struct {
	UpperBound float64
	Multiplier float32
}

// Shaper maps a voice probability to a gain multiplier by the first
// band whose UpperBound is strictly greater than the probability.
// Probabilities above every band get Fallback.
//
// Shaper is immutable once constructed.
type Shaper struct {
	bands    []Band
	fallback float32
}

var defaultShaper = &Shaper{
	bands: []Band{
		{UpperBound: 0.1, Multiplier: 0.05},
		{UpperBound: 0.4, Multiplier: 0.3},
		{UpperBound: 0.7, Multiplier: 0.6},
	},
	fallback: 1,
}

// Default returns the shaper used by the denoiser unless configured
// otherwise.
func Default() *Shaper {
	return defaultShaper
}

// New copies the bands; they must have strictly increasing upper bounds.
func New(bands []Band, fallback float32) (*Shaper, error) {
	for idx, band := range bands {
		if math.IsNaN(band.UpperBound) {
			return nil, fmt.Errorf("band #%d has NaN upper bound", idx)
		}
		if idx > 0 && band.UpperBound <= bands[idx-1].UpperBound {
			return nil, fmt.Errorf("band #%d upper bound %f is not greater than the previous one %f", idx, band.UpperBound, bands[idx-1].UpperBound)
		}
	}
	return &Shaper{
		bands:    append([]Band(nil), bands...),
		fallback: fallback,
	}, nil
}

func (s *Shaper) Bands() []Band {
	return append([]Band(nil), s.bands...)
}

func (s *Shaper) Multiplier(voiceProbability float64) float32 {
	for _, band := range s.bands {
		if voiceProbability < band.UpperBound {
			return band.Multiplier
		}
	}
	return s.fallback
}

// Apply multiplies every sample of the frame in place. It is not
// idempotent: every call attenuates again.
func (s *Shaper) Apply(frame []float32, voiceProbability float64) float32 {
	m := s.Multiplier(voiceProbability)
	if m == 1 {
		return m
	}
	for idx := range frame {
		frame[idx] *= m
	}
	return m
}
