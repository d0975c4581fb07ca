package types

import (
	"context"
	"io"
)

// Node is a single-channel-output processing node driven by a Host
// once per quantum.
type Node interface {
	io.Closer

	// NumberOfInputs returns how many mono input slots the node has.
	NumberOfInputs() int

	// ProcessQuantum consumes one quantum from every input (an input
	// may be nil if the runtime has nothing for it) and fills output.
	//
	// It returns false if no output was produced for this quantum; output
	// is left untouched in that case. A non-nil error is fatal for the
	// stream.
	//
	// Implementations must not block, allocate or take locks.
	ProcessQuantum(ctx context.Context, inputs [][]float32, output []float32) (bool, error)
}

// Delayer is implemented by nodes whose output lags their input.
type Delayer interface {
	// Latency returns how many leading samples of the produced output
	// do not correspond to any input.
	Latency() int

	// MaxHeldSamples returns how many input samples the node may keep
	// at most before producing them.
	MaxHeldSamples() int
}
