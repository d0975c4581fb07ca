package projection

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tone(n int, freq float64, amplitude float64) []float32 {
	r := make([]float32, n)
	for idx := range r {
		r[idx] = float32(amplitude * math.Sin(2*math.Pi*freq*float64(idx)/16000))
	}
	return r
}

func runQuanta(t *testing.T, c *Canceller, primary, reference []float32, quantum int) []float32 {
	out := make([]float32, 0, len(primary))
	for pos := 0; pos < len(primary); pos += quantum {
		p := append([]float32(nil), primary[pos:pos+quantum]...)
		var r []float32
		if reference != nil {
			r = reference[pos : pos+quantum]
		}
		require.NoError(t, c.Cancel(context.Background(), p, r))
		out = append(out, p...)
	}
	return out
}

func TestWindowIsPeriodicHann(t *testing.T) {
	c := New()
	require.Len(t, c.window, FrameSize)
	assert.InDelta(t, 0, c.window[0], 1e-12)
	assert.InDelta(t, 1, c.window[FrameSize/2], 1e-12)
	assert.InDelta(t, c.window[1], c.window[FrameSize-1], 1e-12)
}

func TestNoReferenceDelaysPrimary(t *testing.T) {
	primary := tone(1280, 440, 0.5)
	out := runQuanta(t, New(), primary, nil, 128)

	for idx := 0; idx < FrameSize; idx++ {
		require.Zero(t, out[idx], "sample %d", idx)
	}
	for idx := FrameSize; idx < len(out); idx++ {
		require.InDelta(t, primary[idx-FrameSize], out[idx], 1e-5, "sample %d", idx)
	}
}

func TestReferenceIsRemoved(t *testing.T) {
	reference := tone(2560, 300, 0.4)
	primary := make([]float32, len(reference))
	for idx := range primary {
		primary[idx] = 0.5 * reference[idx]
	}

	out := runQuanta(t, New(), primary, reference, 128)
	for idx, v := range out {
		require.InDelta(t, 0, v, 1e-5, "sample %d", idx)
	}
}

func TestScaleIsClipped(t *testing.T) {
	reference := tone(2560, 300, 0.1)
	primary := make([]float32, len(reference))
	for idx := range primary {
		primary[idx] = 3 * reference[idx]
	}

	// only 2x of the reference may be subtracted
	out := runQuanta(t, New(), primary, reference, 128)
	for idx := 2 * FrameSize; idx < len(out); idx++ {
		require.InDelta(t, reference[idx-FrameSize], out[idx], 1e-5, "sample %d", idx)
	}
}

func TestNegativeCorrelationIsNotAmplified(t *testing.T) {
	reference := tone(2560, 300, 0.3)
	primary := make([]float32, len(reference))
	for idx := range primary {
		primary[idx] = -reference[idx]
	}

	out := runQuanta(t, New(), primary, reference, 64)
	for idx := FrameSize; idx < len(out); idx++ {
		require.InDelta(t, primary[idx-FrameSize], out[idx], 1e-5, "sample %d", idx)
	}
}

func TestQuantumSizeDoesNotMatter(t *testing.T) {
	reference := tone(3840, 700, 0.3)
	primary := tone(3840, 440, 0.5)
	for idx := range primary {
		primary[idx] += 0.7 * reference[idx]
	}

	a := runQuanta(t, New(), primary, reference, 128)
	b := runQuanta(t, New(), primary, reference, 480)
	assert.Equal(t, a, b)
}

func TestReset(t *testing.T) {
	c := New()
	primary := tone(256, 440, 0.5)
	runQuanta(t, c, primary, nil, 128)
	c.Reset()
	out := runQuanta(t, c, primary, nil, 128)
	for idx := 0; idx < FrameSize; idx++ {
		require.Zero(t, out[idx])
	}
}
