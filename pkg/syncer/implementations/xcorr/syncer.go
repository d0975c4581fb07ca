// Package xcorr estimates the lag between two tracks as the position
// of the maximum of their full cross-correlation, computed via FFT.
package xcorr

import (
	"context"
	"fmt"
	"math"
	"math/cmplx"

	"github.com/brettbuddin/fourier"
	"github.com/xaionaro-go/rtdenoise/pkg/syncer"
)

type Syncer struct {
	// MaxLag limits the searched lags to [-MaxLag, MaxLag]; zero means
	// no limit.
	MaxLag int
}

var _ syncer.Syncer = (*Syncer)(nil)

func NewSyncer() *Syncer {
	return &Syncer{}
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
	for idx, referenceTrack := range referenceTracks {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		if len(referenceTrack) == 0 {
			return nil, fmt.Errorf("reference track #%d is empty", idx)
		}
		results[idx] = s.calculateLag(primaryTrack, referenceTrack)
	}
	return results, nil
}

func (s *Syncer) calculateLag(primary, reference []float32) syncer.LagResult {
	n := nextPowerOfTwo(len(primary) + len(reference) - 1)

	p := toComplex(primary, n)
	r := toComplex(reference, n)
	fourier.Forward(p)
	fourier.Forward(r)

	// correlation[k] = sum_i primary[i+k] * reference[i]
	for idx := range p {
		p[idx] *= cmplx.Conj(r[idx])
	}
	inverse(p)

	minLag, maxLag := -(len(reference) - 1), len(primary)-1
	if s.MaxLag > 0 {
		minLag = max(minLag, -s.MaxLag)
		maxLag = min(maxLag, s.MaxLag)
	}

	bestLag, bestValue := 0, math.Inf(-1)
	for lag := minLag; lag <= maxLag; lag++ {
		idx := lag
		if idx < 0 {
			idx += n
		}
		if v := real(p[idx]); v > bestValue {
			bestLag, bestValue = lag, v
		}
	}

	norm := math.Sqrt(energy(primary) * energy(reference))
	var confidence float64
	if norm > 0 {
		confidence = min(max(bestValue/norm, 0), 1)
	}
	return syncer.LagResult{
		Lag:        bestLag,
		Confidence: confidence,
	}
}

// inverse is the inverse FFT in place, via the forward transform of
// the conjugate.
func inverse(v []complex128) {
	for idx := range v {
		v[idx] = cmplx.Conj(v[idx])
	}
	fourier.Forward(v)
	scale := complex(1/float64(len(v)), 0)
	for idx := range v {
		v[idx] = cmplx.Conj(v[idx]) * scale
	}
}

func toComplex(s []float32, n int) []complex128 {
	r := make([]complex128, n)
	for idx, v := range s {
		r[idx] = complex(float64(v), 0)
	}
	return r
}

func energy(s []float32) float64 {
	var sum float64
	for _, v := range s {
		sum += float64(v) * float64(v)
	}
	return sum
}

func nextPowerOfTwo(v int) int {
	n := 1
	for n < v {
		n <<= 1
	}
	return n
}
