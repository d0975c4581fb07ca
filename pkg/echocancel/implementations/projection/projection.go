// Package projection implements an echo canceller that, for every
// windowed analysis frame, subtracts the least-squares projection of
// the reference onto the primary and reassembles the output by
// overlap-add.
//
// The output is delayed by one analysis frame (FrameSize samples).
package projection

import (
	"context"

	"github.com/mjibson/go-dsp/window"
	"github.com/xaionaro-go/rtdenoise/pkg/echocancel"
)

const (
	FrameSize = 128
	HopSize   = FrameSize / 2

	// MaxScale limits how much of the reference may be subtracted.
	MaxScale = 2.0

	// MinReferenceEnergy is the energy of a windowed reference frame
	// below which the frame is passed through.
	MinReferenceEnergy = 1e-6

	epsilon = 1e-9
)

type Canceller struct {
	window        []float64
	windowSquared []float64

	primary   []float64
	reference []float64
	acc       []float64
	weights   []float64
	output    []float32
	fill      int
}

var _ echocancel.Canceller = (*Canceller)(nil)

func New() *Canceller {
	// periodic Hann is the symmetric one of one sample more, truncated
	w := window.Hann(FrameSize + 1)[:FrameSize]
	c := &Canceller{
		window:        w,
		windowSquared: make([]float64, FrameSize),
		primary:       make([]float64, FrameSize),
		reference:     make([]float64, FrameSize),
		acc:           make([]float64, FrameSize),
		weights:       make([]float64, FrameSize),
		output:        make([]float32, HopSize),
	}
	for idx, v := range w {
		c.windowSquared[idx] = v * v
	}
	return c
}

// Latency returns the delay of the output in samples.
func (c *Canceller) Latency() int {
	return FrameSize
}

func (c *Canceller) Reset() {
	clear(c.primary)
	clear(c.reference)
	clear(c.acc)
	clear(c.weights)
	clear(c.output)
	c.fill = 0
}

func (c *Canceller) Cancel(
	_ context.Context,
	primary []float32,
	reference []float32,
) error {
	const histPos = FrameSize - HopSize
	for idx, p := range primary {
		var r float32
		if idx < len(reference) {
			r = reference[idx]
		}
		c.primary[histPos+c.fill] = float64(p)
		c.reference[histPos+c.fill] = float64(r)
		primary[idx] = c.output[c.fill]
		c.fill++
		if c.fill == HopSize {
			c.processFrame()
			c.fill = 0
		}
	}
	return nil
}

func (c *Canceller) processFrame() {
	var bn, nn float64
	for idx, w := range c.window {
		b := c.primary[idx] * w
		n := c.reference[idx] * w
		bn += b * n
		nn += n * n
	}

	var scale float64
	if nn >= MinReferenceEnergy {
		scale = min(max(bn/(nn+epsilon), 0), MaxScale)
	}

	for idx, w := range c.window {
		cleaned := (c.primary[idx] - scale*c.reference[idx]) * w
		c.acc[idx] += cleaned * w
		c.weights[idx] += c.windowSquared[idx]
	}

	for idx := range c.output {
		weight := c.weights[idx]
		if weight == 0 {
			weight = epsilon
		}
		c.output[idx] = float32(c.acc[idx] / weight)
	}

	copy(c.acc, c.acc[HopSize:])
	clear(c.acc[FrameSize-HopSize:])
	copy(c.weights, c.weights[HopSize:])
	clear(c.weights[FrameSize-HopSize:])
	copy(c.primary, c.primary[HopSize:])
	copy(c.reference, c.reference[HopSize:])
}
