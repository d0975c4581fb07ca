// Package denoiser bridges a fixed-size audio quantum to the fixed-size
// frame of a noise-suppression model: incoming chunks are accumulated
// in a ring buffer, every complete frame is denoised and gain-shaped in
// place, and processed samples are handed out on the consumer's cadence.
package denoiser

import (
	"context"
	"fmt"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/xaionaro-go/rtdenoise/pkg/audio"
	"github.com/xaionaro-go/rtdenoise/pkg/gainshaper"
	"github.com/xaionaro-go/rtdenoise/pkg/noisesuppression"
	"github.com/xaionaro-go/rtdenoise/pkg/ringbuffer"
)

// Denoiser is a single-input audio.Node. It is not safe for concurrent
// use, except for Stats.
type Denoiser struct {
	model     noisesuppression.NoiseSuppression
	buffer    *ringbuffer.RingBuffer
	segmenter *Segmenter
	emitter   *Emitter
	stats     Stats
	config    Config

	warmedUp bool
	err      error
	closed   bool
}

var (
	_ audio.Node    = (*Denoiser)(nil)
	_ audio.Delayer = (*Denoiser)(nil)
)

// New creates a model instance using the factory and preallocates
// everything the stream needs. On failure everything acquired is
// released.
func New(
	ctx context.Context,
	cfg Config,
	modelFactory noisesuppression.Factory,
) (_ret *Denoiser, _err error) {
	logger.Tracef(ctx, "New")
	defer func() { logger.Tracef(ctx, "/New: %v", _err) }()

	if cfg.QuantumSize == 0 {
		return nil, fmt.Errorf("quantum size must be positive")
	}
	if cfg.GainShaper == nil {
		cfg.GainShaper = gainshaper.Default()
	}

	model, err := modelFactory(ctx)
	if err != nil {
		return nil, fmt.Errorf("unable to initialize the noise suppression model: %w", err)
	}
	defer func() {
		if _err == nil {
			return
		}
		if err := model.Close(); err != nil {
			logger.Errorf(ctx, "unable to close the model: %v", err)
		}
	}()

	if cfg.SampleRate != 0 {
		enc, err := model.Encoding(ctx)
		if err != nil {
			return nil, fmt.Errorf("unable to get the encoding of the model: %w", err)
		}
		pcmEnc, ok := enc.(audio.EncodingPCM)
		if !ok {
			return nil, fmt.Errorf("the model expects a non-PCM encoding %T", enc)
		}
		if pcmEnc.SampleRate != cfg.SampleRate {
			return nil, fmt.Errorf("the model expects sample rate %d, but %d is configured", pcmEnc.SampleRate, cfg.SampleRate)
		}
	}

	if cfg.FrameSize == 0 {
		cfg.FrameSize = model.FrameSize()
	}
	if cfg.FrameSize != model.FrameSize() {
		return nil, fmt.Errorf("the model frame size is %d, but %d is configured", model.FrameSize(), cfg.FrameSize)
	}

	capacity, err := ringbuffer.CapacityFor(cfg.QuantumSize, cfg.FrameSize)
	if err != nil {
		return nil, fmt.Errorf("unable to calculate the buffer capacity: %w", err)
	}
	if capacity%cfg.QuantumSize != 0 || capacity%cfg.FrameSize != 0 {
		return nil, fmt.Errorf("internal error: capacity %d is not a multiple of %d and %d", capacity, cfg.QuantumSize, cfg.FrameSize)
	}
	buffer, err := ringbuffer.New(capacity)
	if err != nil {
		return nil, fmt.Errorf("unable to initialize the ring buffer: %w", err)
	}

	engine, err := NewEngine(model)
	if err != nil {
		return nil, fmt.Errorf("unable to initialize the engine: %w", err)
	}

	d := &Denoiser{
		model:  model,
		buffer: buffer,
		config: cfg,
	}
	d.segmenter, err = NewSegmenter(buffer, engine, cfg.GainShaper, &d.stats)
	if err != nil {
		return nil, fmt.Errorf("unable to initialize the segmenter: %w", err)
	}
	d.emitter = NewEmitter(buffer, &d.stats)

	logger.Debugf(ctx, "initialized a denoiser: quantum:%d frame:%d capacity:%d", cfg.QuantumSize, cfg.FrameSize, capacity)
	return d, nil
}

func (d *Denoiser) Config() Config {
	return d.config
}

func (d *Denoiser) Stats() *Stats {
	return &d.stats
}

// Err returns the error that stopped the processing, if any.
func (d *Denoiser) Err() error {
	return d.err
}

func (d *Denoiser) NumberOfInputs() int {
	return 1
}

// Latency implements audio.Delayer. The warm-up quanta produce no
// output instead of silence, so the produced samples start with the
// first input sample.
func (d *Denoiser) Latency() int {
	return 0
}

// MaxHeldSamples implements audio.Delayer.
func (d *Denoiser) MaxHeldSamples() int {
	return d.buffer.Capacity()
}

// Push feeds one chunk and processes every frame that became complete.
func (d *Denoiser) Push(ctx context.Context, chunk []float32) error {
	if d.closed {
		return ErrAlreadyClosed
	}
	if d.err != nil {
		return d.err
	}
	if _, err := d.segmenter.Push(ctx, chunk); err != nil {
		d.fail(ctx, err)
		return d.err
	}
	return nil
}

// Pull fills out with the next processed samples, or returns false
// leaving out untouched if not enough are available yet.
func (d *Denoiser) Pull(ctx context.Context, out []float32) bool {
	if d.closed || d.err != nil {
		return false
	}
	if !d.emitter.Emit(out) {
		return false
	}
	if !d.warmedUp {
		d.warmedUp = true
		logger.Debugf(ctx, "warm-up complete")
	}
	return true
}

// ProcessQuantum implements audio.Node. A quantum without input does
// nothing and produces no output.
func (d *Denoiser) ProcessQuantum(
	ctx context.Context,
	inputs [][]float32,
	output []float32,
) (bool, error) {
	if d.closed {
		return false, ErrAlreadyClosed
	}
	if d.err != nil {
		return false, d.err
	}
	if len(inputs) == 0 || len(inputs[0]) == 0 {
		return false, nil
	}
	if err := d.Push(ctx, inputs[0]); err != nil {
		return false, err
	}
	return d.Pull(ctx, output), nil
}

func (d *Denoiser) fail(ctx context.Context, err error) {
	d.err = err
	logger.Errorf(ctx, "the denoiser stopped: %v", d.err)
}

// Close releases the model. It may be called only once.
func (d *Denoiser) Close() error {
	if d.closed {
		return ErrAlreadyClosed
	}
	d.closed = true
	d.buffer.Reset()
	if err := d.model.Close(); err != nil {
		return fmt.Errorf("unable to close the model: %w", err)
	}
	return nil
}
