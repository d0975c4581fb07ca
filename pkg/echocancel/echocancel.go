// Package echocancel defines how the two-input combiner removes the
// reference signal (far end, system audio) from the primary one
// (microphone).
package echocancel

import (
	"context"
)

type Canceller interface {
	// Cancel removes the reference from the primary in place.
	// Both slices have the same length; reference may be nil if
	// the runtime provided nothing for it.
	Cancel(ctx context.Context, primary, reference []float32) error
}

// Passthrough leaves the primary untouched. It is the default
// Canceller of the combiner.
type Passthrough struct{}

var _ Canceller = Passthrough{}

func (Passthrough) Cancel(context.Context, []float32, []float32) error {
	return nil
}
