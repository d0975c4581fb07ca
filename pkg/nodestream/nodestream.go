// Package nodestream runs an audio.Node over blocking PCM streams: it
// reads interleaved input from an io.Reader (one channel per node input)
// and serves the mono node output as an io.Reader. This bridges backends
// that exchange PCM bytes (instead of calling back once per quantum)
// with the quantum-driven nodes.
package nodestream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/iamcalledrob/circular"
	"github.com/xaionaro-go/observability"
	"github.com/xaionaro-go/rtdenoise/pkg/audio"
	"github.com/xaionaro-go/rtdenoise/pkg/audio/pcm"
	"github.com/xaionaro-go/rtdenoise/pkg/audio/planar"
)

type Config struct {
	QuantumSize uint

	// PCMFormat of both the input and the output.
	PCMFormat audio.PCMFormat

	// InputBufferSize and OutputBufferSize are in quanta.
	InputBufferSize  uint
	OutputBufferSize uint
}

func DefaultConfig() Config {
	return Config{
		QuantumSize:      audio.DefaultQuantumSize,
		PCMFormat:        audio.PCMFormatFloat32LE,
		InputBufferSize:  32,
		OutputBufferSize: 32,
	}
}

type Stream struct {
	node   audio.Node
	config Config

	inputBufferLocker  sync.Mutex
	inputBuffer        *circular.Buffer
	inputEOF           bool
	outputBufferLocker sync.Mutex
	outputBuffer       *circular.Buffer
	resultError        error
	inQuantumBytes     int
	readCtx            context.Context
	cancelFunc         context.CancelFunc
	nodeLoopDone       chan struct{}

	readProgressedCh       chan struct{}
	nodeInputProgressedCh  chan struct{}
	nodeOutputProgressedCh chan struct{}
	outputProgressedCh     chan struct{}
}

var _ io.ReadCloser = (*Stream)(nil)

// New starts processing the input with the node. The node is called
// from a single goroutine only; the caller keeps owning it.
func New(
	ctx context.Context,
	input io.Reader,
	node audio.Node,
	cfg Config,
) (*Stream, error) {
	if cfg.QuantumSize == 0 {
		return nil, fmt.Errorf("quantum size must be positive")
	}
	if cfg.PCMFormat.Size() == 0 {
		return nil, fmt.Errorf("unsupported PCM format: %v", cfg.PCMFormat)
	}
	if cfg.InputBufferSize == 0 || cfg.OutputBufferSize == 0 {
		return nil, fmt.Errorf("buffer sizes must be positive")
	}
	if node.NumberOfInputs() < 1 {
		return nil, fmt.Errorf("the node has no inputs")
	}

	inQuantumBytes := int(cfg.QuantumSize) * node.NumberOfInputs() * int(cfg.PCMFormat.Size())
	outQuantumBytes := int(cfg.QuantumSize) * int(cfg.PCMFormat.Size())

	ctx, cancelFunc := context.WithCancel(ctx)
	s := &Stream{
		node:           node,
		config:         cfg,
		inputBuffer:    circular.NewBuffer(inQuantumBytes * int(cfg.InputBufferSize)),
		outputBuffer:   circular.NewBuffer(outQuantumBytes * int(cfg.OutputBufferSize)),
		inQuantumBytes: inQuantumBytes,
		readCtx:        ctx,
		cancelFunc:     cancelFunc,
		nodeLoopDone:   make(chan struct{}),

		readProgressedCh:       make(chan struct{}),
		nodeInputProgressedCh:  make(chan struct{}),
		nodeOutputProgressedCh: make(chan struct{}),
		outputProgressedCh:     make(chan struct{}),
	}
	observability.Go(ctx, func() {
		err := s.readerLoop(ctx, input)
		s.inputBufferLocker.Lock()
		defer s.inputBufferLocker.Unlock()
		if errors.Is(err, io.EOF) {
			s.inputEOF = true
			s.notifyReadProgressed()
			return
		}
		if err != nil {
			cancelFunc()
			s.setError(fmt.Errorf("got an error from the reader loop: %w", err))
		}
	})
	observability.Go(ctx, func() {
		defer close(s.nodeLoopDone)
		err := s.nodeLoop(ctx)
		switch {
		case errors.Is(err, io.EOF):
			s.setError(io.EOF)
		case err != nil:
			s.setError(fmt.Errorf("got an error from the node loop: %w", err))
		}
	})
	return s, nil
}

func (s *Stream) setError(err error) {
	s.outputBufferLocker.Lock()
	defer s.outputBufferLocker.Unlock()
	if s.resultError == nil {
		s.resultError = err
	}
	var oldCh chan struct{}
	oldCh, s.nodeOutputProgressedCh = s.nodeOutputProgressedCh, make(chan struct{})
	close(oldCh)
}

// notifyReadProgressed must be called with inputBufferLocker taken.
func (s *Stream) notifyReadProgressed() {
	oldCh := s.readProgressedCh
	s.readProgressedCh = make(chan struct{})
	close(oldCh)
}

func (s *Stream) readerLoop(
	ctx context.Context,
	input io.Reader,
) (_err error) {
	logger.Tracef(ctx, "readerLoop")
	defer func() { logger.Tracef(ctx, "/readerLoop %v", _err) }()

	readBuf := make([]byte, 65536)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		n, err := input.Read(readBuf)
		if n < 0 {
			return fmt.Errorf("received invalid value of received bytes: %d", n)
		}
		if n > 0 {
			if err := s.pushInput(ctx, readBuf[:n]); err != nil {
				return err
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return io.EOF
			}
			return fmt.Errorf("unable to read the input: %w", err)
		}
	}
}

func (s *Stream) pushInput(ctx context.Context, data []byte) error {
	s.inputBufferLocker.Lock()
	defer s.inputBufferLocker.Unlock()
	for len(data) > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		w, err := s.inputBuffer.Write(data[:min(len(data), s.inQuantumBytes)])
		data = data[w:]
		if w > 0 {
			s.notifyReadProgressed()
		}
		if err != nil {
			if errors.Is(err, circular.ErrNoSpace) {
				s.waitForNodeInputProgressed(ctx)
				continue
			}
			return fmt.Errorf("unable to write to the circular buffer: %w", err)
		}
	}
	return nil
}

func (s *Stream) waitForNodeInputProgressed(ctx context.Context) {
	ch := s.nodeInputProgressedCh
	s.inputBufferLocker.Unlock()
	defer s.inputBufferLocker.Lock()
	select {
	case <-ctx.Done():
	case <-ch:
	}
}

// pullQuantum blocks until a whole quantum of input is received.
// If the input ended in the middle of a quantum, the rest of the quantum
// is zero-filled. It returns io.EOF if the input ended before any of
// the quantum was received.
func (s *Stream) pullQuantum(ctx context.Context, buf []byte) error {
	receivedCount := 0
	for {
		var waitCh chan struct{}
		var eof bool
		if err := func() error {
			s.inputBufferLocker.Lock()
			defer s.inputBufferLocker.Unlock()
			n, err := s.inputBuffer.Read(buf[receivedCount:])
			waitCh, eof = s.readProgressedCh, s.inputEOF
			if err != nil && !errors.Is(err, io.EOF) {
				return fmt.Errorf("unable to read from the circular buffer: %w", err)
			}
			receivedCount += n
			if n > 0 {
				var oldCh chan struct{}
				oldCh, s.nodeInputProgressedCh = s.nodeInputProgressedCh, make(chan struct{})
				close(oldCh)
			}
			return nil
		}(); err != nil {
			return err
		}
		if receivedCount >= len(buf) {
			return nil
		}
		if eof {
			if receivedCount == 0 {
				return io.EOF
			}
			clear(buf[receivedCount:])
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-waitCh:
		}
	}
}

func (s *Stream) nodeLoop(ctx context.Context) (_err error) {
	logger.Tracef(ctx, "nodeLoop")
	defer func() { logger.Tracef(ctx, "/nodeLoop: %v", _err) }()

	quantumSize := int(s.config.QuantumSize)
	numInputs := s.node.NumberOfInputs()
	sampleSize := int(s.config.PCMFormat.Size())

	inputBytes := make([]byte, quantumSize*numInputs*sampleSize)
	interleaved := make([]float32, quantumSize*numInputs)
	inputs := make([][]float32, numInputs)
	for idx := range inputs {
		inputs[idx] = make([]float32, quantumSize)
	}
	output := make([]float32, quantumSize)
	outputBytes := make([]byte, quantumSize*sampleSize)

	for {
		if err := s.pullQuantum(ctx, inputBytes); err != nil {
			return err
		}
		if err := pcm.Decode(interleaved, inputBytes, s.config.PCMFormat); err != nil {
			return fmt.Errorf("unable to decode the input: %w", err)
		}
		if err := planar.Planarize(numInputs, inputs, interleaved); err != nil {
			return fmt.Errorf("unable to split the input: %w", err)
		}

		ok, err := s.node.ProcessQuantum(ctx, inputs, output)
		if err != nil {
			return fmt.Errorf("the node failed: %w", err)
		}
		if !ok {
			clear(output)
		}
		if err := pcm.Encode(outputBytes, output, s.config.PCMFormat); err != nil {
			return fmt.Errorf("unable to encode the output: %w", err)
		}
		if err := s.pushOutput(ctx, outputBytes); err != nil {
			return err
		}
	}
}

func (s *Stream) pushOutput(ctx context.Context, data []byte) error {
	s.outputBufferLocker.Lock()
	defer s.outputBufferLocker.Unlock()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		w, err := s.outputBuffer.Write(data)
		if err != nil {
			if errors.Is(err, circular.ErrNoSpace) {
				s.waitForOutput(ctx)
				continue
			}
			return fmt.Errorf("unable to write to the circular buffer: %w", err)
		}
		if w != len(data) {
			return fmt.Errorf("wrote != requested: %d != %d", w, len(data))
		}
		var oldCh chan struct{}
		oldCh, s.nodeOutputProgressedCh = s.nodeOutputProgressedCh, make(chan struct{})
		close(oldCh)
		return nil
	}
}

func (s *Stream) waitForOutput(ctx context.Context) {
	ch := s.outputProgressedCh
	s.outputBufferLocker.Unlock()
	defer s.outputBufferLocker.Lock()
	select {
	case <-ctx.Done():
	case <-ch:
	}
}

// Read returns the node output. It blocks until some is available.
// After the input ended and all the output was read, it returns io.EOF.
func (s *Stream) Read(p []byte) (_ret int, _err error) {
	logger.Tracef(s.readCtx, "Read, len:%d", len(p))
	defer func() { logger.Tracef(s.readCtx, "/Read, len:%d: %d, %v", len(p), _ret, _err) }()

	s.outputBufferLocker.Lock()
	defer s.outputBufferLocker.Unlock()

	for {
		n, err := s.outputBuffer.Read(p)
		if n > 0 {
			var oldCh chan struct{}
			oldCh, s.outputProgressedCh = s.outputProgressedCh, make(chan struct{})
			close(oldCh)
			return n, nil
		}
		if err != nil && !errors.Is(err, io.EOF) {
			return n, err
		}
		if s.resultError != nil {
			return 0, s.resultError
		}
		if s.readCtx.Err() != nil {
			return 0, s.readCtx.Err()
		}
		s.waitForNodeOutputProgressed(s.readCtx)
	}
}

func (s *Stream) waitForNodeOutputProgressed(ctx context.Context) {
	ch := s.nodeOutputProgressedCh
	s.outputBufferLocker.Unlock()
	defer s.outputBufferLocker.Lock()
	select {
	case <-ctx.Done():
	case <-ch:
	}
}

// Err returns the reason the processing stopped, if it did.
func (s *Stream) Err() error {
	s.outputBufferLocker.Lock()
	defer s.outputBufferLocker.Unlock()
	return s.resultError
}

// Done is closed once the processing goroutine has stopped.
func (s *Stream) Done() <-chan struct{} {
	return s.nodeLoopDone
}

// Close stops the processing and waits for the node to be released
// by the processing goroutine.
func (s *Stream) Close() error {
	s.cancelFunc()
	<-s.nodeLoopDone
	return nil
}
