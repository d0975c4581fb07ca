// Package combiner provides a two-input audio.Node: input 0 is the
// primary signal (microphone), input 1 is the reference (far end or
// system audio). The reference is handed to an echo canceller together
// with the primary; what leaves the node is the primary path only,
// optionally denoised.
package combiner

import (
	"context"
	"fmt"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/hashicorp/go-multierror"
	"github.com/xaionaro-go/rtdenoise/pkg/audio"
	"github.com/xaionaro-go/rtdenoise/pkg/echocancel"
)

const (
	InputPrimary   = 0
	InputReference = 1
)

type Config struct {
	QuantumSize uint

	// EchoCanceller defaults to echocancel.Passthrough.
	EchoCanceller echocancel.Canceller

	// Denoiser is an optional single-input node the primary path is
	// passed through after the echo cancellation. The combiner owns it
	// and closes it on Close.
	Denoiser audio.Node
}

type Combiner struct {
	config  Config
	primary []float32
	inputs  [][]float32
	closed  bool
}

var (
	_ audio.Node    = (*Combiner)(nil)
	_ audio.Delayer = (*Combiner)(nil)
)

func New(
	ctx context.Context,
	cfg Config,
) (*Combiner, error) {
	if cfg.QuantumSize == 0 {
		return nil, fmt.Errorf("quantum size must be positive")
	}
	if cfg.EchoCanceller == nil {
		cfg.EchoCanceller = echocancel.Passthrough{}
	}
	if cfg.Denoiser != nil && cfg.Denoiser.NumberOfInputs() != 1 {
		return nil, fmt.Errorf("the denoiser must have exactly one input, but it has %d", cfg.Denoiser.NumberOfInputs())
	}
	logger.Debugf(ctx, "initialized a combiner: quantum:%d canceller:%T denoiser:%T", cfg.QuantumSize, cfg.EchoCanceller, cfg.Denoiser)
	return &Combiner{
		config:  cfg,
		primary: make([]float32, cfg.QuantumSize),
		inputs:  make([][]float32, 1),
	}, nil
}

func (c *Combiner) NumberOfInputs() int {
	return 2
}

func (c *Combiner) cancellerLatency() int {
	if l, ok := c.config.EchoCanceller.(interface{ Latency() int }); ok {
		return l.Latency()
	}
	return 0
}

// Latency implements audio.Delayer: the delay of the echo canceller
// plus the one of the denoiser.
func (c *Combiner) Latency() int {
	latency := c.cancellerLatency()
	if d, ok := c.config.Denoiser.(audio.Delayer); ok {
		latency += d.Latency()
	}
	return latency
}

// MaxHeldSamples implements audio.Delayer.
func (c *Combiner) MaxHeldSamples() int {
	held := c.cancellerLatency()
	if d, ok := c.config.Denoiser.(audio.Delayer); ok {
		held += d.MaxHeldSamples()
	}
	return held
}

// ProcessQuantum implements audio.Node. Without a primary input nothing
// is produced. A missing reference is passed to the canceller as nil.
func (c *Combiner) ProcessQuantum(
	ctx context.Context,
	inputs [][]float32,
	output []float32,
) (bool, error) {
	if c.closed {
		return false, fmt.Errorf("the combiner is closed")
	}
	if len(inputs) <= InputPrimary || len(inputs[InputPrimary]) == 0 {
		return false, nil
	}
	primaryIn := inputs[InputPrimary]
	if len(primaryIn) > len(c.primary) {
		return false, fmt.Errorf("the input is longer than the quantum: %d > %d", len(primaryIn), len(c.primary))
	}
	var reference []float32
	if len(inputs) > InputReference {
		reference = inputs[InputReference]
	}

	primary := c.primary[:len(primaryIn)]
	copy(primary, primaryIn)
	if err := c.config.EchoCanceller.Cancel(ctx, primary, reference); err != nil {
		return false, fmt.Errorf("unable to cancel the echo: %w", err)
	}

	if c.config.Denoiser == nil {
		if len(output) != len(primary) {
			return false, fmt.Errorf("output length %d does not match input length %d", len(output), len(primary))
		}
		copy(output, primary)
		return true, nil
	}

	c.inputs[0] = primary
	return c.config.Denoiser.ProcessQuantum(ctx, c.inputs, output)
}

func (c *Combiner) Close() error {
	if c.closed {
		return fmt.Errorf("double-free attempt")
	}
	c.closed = true

	var mErr *multierror.Error
	if closer, ok := c.config.EchoCanceller.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			mErr = multierror.Append(mErr, fmt.Errorf("unable to close the echo canceller: %w", err))
		}
	}
	if c.config.Denoiser != nil {
		if err := c.config.Denoiser.Close(); err != nil {
			mErr = multierror.Append(mErr, fmt.Errorf("unable to close the denoiser: %w", err))
		}
	}
	return mErr.ErrorOrNil()
}
