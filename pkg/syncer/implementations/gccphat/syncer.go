// Package gccphat estimates the lag between two tracks using the
// Generalized Cross-Correlation with Phase Transform (GCC-PHAT).
//
// Whitening the cross-power spectrum makes the estimate insensitive to
// the loudness and the coloration of the reference, which is what
// happens to the far-end audio on its way from the speakers to the
// microphone.
package gccphat

import (
	"context"
	"fmt"

	"github.com/mjibson/go-dsp/fft"
	"github.com/xaionaro-go/rtdenoise/pkg/audio"
	"github.com/xaionaro-go/rtdenoise/pkg/syncer"
)

type Syncer struct {
	SampleRate audio.SampleRate
	MinFreq    float64
	MaxFreq    float64
}

var _ syncer.Syncer = (*Syncer)(nil)

func NewSyncer(
	sampleRate audio.SampleRate,
) (*Syncer, error) {
	if sampleRate == 0 {
		return nil, fmt.Errorf("sample rate is mandatory")
	}
	return &Syncer{
		SampleRate: sampleRate,
		// speech band
		MinFreq: 100,
		MaxFreq: 8000,
	}, nil
}

func (s *Syncer) Close() error {
	return nil
}

func (s *Syncer) CalculateLag(
	ctx context.Context,
	primaryTrack []float32,
	referenceTracks ...[]float32,
) ([]syncer.LagResult, error) {
	if len(primaryTrack) == 0 {
		return nil, fmt.Errorf("the primary track is empty")
	}

	results := make([]syncer.LagResult, len(referenceTracks))
	for i, referenceTrack := range referenceTracks {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		if len(referenceTrack) == 0 {
			return nil, fmt.Errorf("reference track #%d is empty", i)
		}

		// the next power of two of (n1 + n2 - 1) avoids circular
		// correlation artifacts
		n := 1
		for n < len(primaryTrack)+len(referenceTrack)-1 {
			n <<= 1
		}

		fprimary := fft.FFT(toComplex(primaryTrack, n))
		freference := fft.FFT(toComplex(referenceTrack, n))

		lag, confidence, err := CrossCorrelate(fprimary, freference, float64(s.SampleRate), s.MinFreq, s.MaxFreq)
		if err != nil {
			return nil, fmt.Errorf("unable to cross-correlate track %d: %w", i, err)
		}
		results[i] = syncer.LagResult{
			Lag:        lag,
			Confidence: confidence,
		}
	}
	return results, nil
}

func toComplex(s []float32, n int) []complex128 {
	r := make([]complex128, n)
	for idx, v := range s {
		r[idx] = complex(float64(v), 0)
	}
	return r
}
