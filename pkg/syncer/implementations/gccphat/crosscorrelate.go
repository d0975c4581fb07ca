package gccphat

import (
	"fmt"
	"math"
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"
)

// CrossCorrelate returns the lag of the reference relative to the
// primary (primary(t) = reference(t-lag)) and a confidence of the
// estimate. fprimary and freference are FFTs of the same length.
//
// Only the bins within [minFreq, maxFreq] Hz are used; zero disables
// the respective limit.
func CrossCorrelate(
	fprimary, freference []complex128,
	sampleRate float64,
	minFreq, maxFreq float64,
) (int, float64, error) {
	if sampleRate <= 0 {
		return 0, 0, fmt.Errorf("sample rate must be positive: got %v", sampleRate)
	}
	if len(fprimary) != len(freference) {
		return 0, 0, fmt.Errorf("the spectra must have the same length: %d != %d", len(fprimary), len(freference))
	}
	n := len(fprimary)

	binMin := 0
	binMax := n / 2
	if minFreq > 0 {
		binMin = int(minFreq * float64(n) / sampleRate)
	}
	if maxFreq > 0 && maxFreq < sampleRate/2 {
		binMax = int(maxFreq * float64(n) / sampleRate)
	}

	spectrum := make([]complex128, n)
	var maxMag float64
	for i := range spectrum {
		spectrum[i] = fprimary[i] * cmplx.Conj(freference[i])
		maxMag = max(maxMag, cmplx.Abs(spectrum[i]))
	}
	// bins 60dB below the strongest one are noise, whitening them
	// would only amplify it
	threshold := maxMag * 0.001

	activeBins := 0
	for i := range spectrum {
		freqIdx := i
		if i > n/2 {
			freqIdx = n - i
		}
		mag := cmplx.Abs(spectrum[i])
		if freqIdx < binMin || freqIdx > binMax || mag <= threshold || mag <= 1e-12 {
			spectrum[i] = 0
			continue
		}
		spectrum[i] /= complex(mag, 0)
		activeBins++
	}
	if activeBins == 0 {
		return 0, 0, nil
	}

	correlation := fft.IFFT(spectrum)

	maxVal := math.Inf(-1)
	maxIdx := 0
	for i, v := range correlation {
		if re := real(v); re > maxVal {
			maxVal, maxIdx = re, i
		}
	}

	lag := maxIdx
	if lag > n/2 {
		lag -= n
	}

	// a perfect match has all the active unit-magnitude bins in phase,
	// giving activeBins/n at the peak
	confidence := min(max(maxVal*float64(n)/float64(activeBins), 0), 1)
	return lag, confidence, nil
}
