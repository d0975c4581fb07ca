package types

import (
	"context"
)

type HostConfig struct {
	SampleRate  SampleRate
	QuantumSize uint
}

// Host is a real-time audio I/O runtime: it captures NumberOfInputs
// channels, calls the node once per quantum and plays the node output.
type Host interface {
	Close() error
	Ping(context.Context) error
	Run(ctx context.Context, cfg HostConfig, node Node) (RunStream, error)
}
