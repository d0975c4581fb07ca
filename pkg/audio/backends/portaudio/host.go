package portaudio

import (
	"context"
	"fmt"
	"sync"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/gordonklaus/portaudio"
	"github.com/xaionaro-go/rtdenoise/pkg/audio/types"
)

type Host struct {
	closeOnce sync.Once
}

var _ types.Host = (*Host)(nil)

func NewHost() (*Host, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, err
	}
	return &Host{}, nil
}

func (h *Host) Close() error {
	var err error
	h.closeOnce.Do(func() {
		err = portaudio.Terminate()
	})
	return err
}

func (*Host) Ping(
	ctx context.Context,
) error {
	in, err := portaudio.DefaultInputDevice()
	if err != nil {
		return fmt.Errorf("unable to get the default input device: %w", err)
	}
	logger.Debugf(ctx, "input device info: %#+v", in)

	out, err := portaudio.DefaultOutputDevice()
	if err != nil {
		return fmt.Errorf("unable to get the default output device: %w", err)
	}
	logger.Debugf(ctx, "output device info: %#+v", out)

	if devices, err := portaudio.Devices(); err == nil {
		for idx, device := range devices {
			logger.Tracef(ctx, "devices[%d]: %#+v", idx, device)
		}
	}
	return nil
}

// Run opens a duplex stream on the default devices with one input
// channel per node input and a mono output; the callback is invoked
// with exactly cfg.QuantumSize frames.
func (*Host) Run(
	ctx context.Context,
	cfg types.HostConfig,
	node types.Node,
) (_ types.RunStream, _err error) {
	logger.Debugf(ctx, "Run: %#+v", cfg)
	defer func() { logger.Debugf(ctx, "/Run: %v", _err) }()

	if cfg.QuantumSize == 0 {
		return nil, fmt.Errorf("quantum size must be positive")
	}
	if cfg.SampleRate == 0 {
		return nil, fmt.Errorf("sample rate must be positive")
	}
	numInputs := node.NumberOfInputs()
	if numInputs < 1 {
		return nil, fmt.Errorf("the node has no inputs")
	}

	s := newRunStream(ctx, node)
	stream, err := portaudio.OpenDefaultStream(
		numInputs,
		1,
		float64(cfg.SampleRate),
		int(cfg.QuantumSize),
		s.process,
	)
	if err != nil {
		s.cancelFunc()
		return nil, fmt.Errorf("unable to open the stream: %w", err)
	}
	s.portAudioStream = stream

	if err := stream.Start(); err != nil {
		s.cancelFunc()
		stream.Close()
		return nil, fmt.Errorf("unable to start the stream: %w", err)
	}
	return s, nil
}
