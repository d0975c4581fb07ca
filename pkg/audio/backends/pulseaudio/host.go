package pulseaudio

import (
	"context"
	"fmt"
	"io"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/jfreymuth/pulse"
	"github.com/jfreymuth/pulse/proto"
	"github.com/xaionaro-go/rtdenoise/pkg/audio/types"
	"github.com/xaionaro-go/rtdenoise/pkg/nodestream"
)

const (
	// BufferQuanta is the depth of the FIFOs between the record stream,
	// the node and the playback stream.
	BufferQuanta = 8
)

type Host struct {
	PulseClient *pulse.Client
}

var _ types.Host = (*Host)(nil)

func NewHost() (*Host, error) {
	c, err := pulse.NewClient()
	if err != nil {
		return nil, fmt.Errorf("unable to open a client to Pulse: %w", err)
	}
	return &Host{
		PulseClient: c,
	}, nil
}

func (h *Host) Close() error {
	h.PulseClient.Close()
	return nil
}

func (h *Host) Ping(ctx context.Context) error {
	source, err := h.PulseClient.DefaultSource()
	if err != nil {
		return fmt.Errorf("unable to get the default source: %w", err)
	}
	logger.Debugf(ctx, "source: %s", source.Name())
	sink, err := h.PulseClient.DefaultSink()
	if err != nil {
		return fmt.Errorf("unable to get the default sink: %w", err)
	}
	logger.Debugf(ctx, "sink: %s", sink.Name())
	return nil
}

// Run records one channel per node input from the default source, feeds
// the node through a nodestream and plays the mono result on the default
// sink.
func (h *Host) Run(
	ctx context.Context,
	cfg types.HostConfig,
	node types.Node,
) (_ types.RunStream, _err error) {
	logger.Debugf(ctx, "Run: %#+v", cfg)
	defer func() { logger.Debugf(ctx, "/Run: %v", _err) }()

	if cfg.SampleRate == 0 {
		return nil, fmt.Errorf("sample rate must be positive")
	}
	recordChannels, err := channelMap(node.NumberOfInputs())
	if err != nil {
		return nil, err
	}

	pipeReader, pipeWriter := io.Pipe()
	streamCfg := nodestream.DefaultConfig()
	if cfg.QuantumSize != 0 {
		streamCfg.QuantumSize = cfg.QuantumSize
	}
	streamCfg.PCMFormat = types.PCMFormatFloat32LE
	streamCfg.InputBufferSize = BufferQuanta
	streamCfg.OutputBufferSize = BufferQuanta
	processed, err := nodestream.New(ctx, pipeReader, node, streamCfg)
	if err != nil {
		return nil, fmt.Errorf("unable to start processing: %w", err)
	}

	s := &RunStream{
		processed:  processed,
		pipeWriter: pipeWriter,
		closed:     make(chan struct{}),
	}

	s.record, err = h.PulseClient.NewRecord(
		&pulseWriter{Writer: pipeWriter},
		pulse.RecordSampleRate(int(cfg.SampleRate)),
		pulse.RecordChannels(recordChannels),
	)
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("unable to initialize a record: %w", err)
	}

	latency := float64(streamCfg.QuantumSize*BufferQuanta) / float64(cfg.SampleRate)
	s.playback, err = h.PulseClient.NewPlayback(
		&pulseReader{Reader: processed},
		pulse.PlaybackLatency(latency),
		pulse.PlaybackSampleRate(int(cfg.SampleRate)),
		pulse.PlaybackChannels(proto.ChannelMap{proto.ChannelMono}),
	)
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("unable to initialize a playback: %w", err)
	}

	s.record.Start()
	if err := s.record.Error(); err != nil {
		s.Close()
		return nil, fmt.Errorf("an error occurred during recording: %w", err)
	}
	s.playback.Start()
	if err := s.playback.Error(); err != nil {
		s.Close()
		return nil, fmt.Errorf("an error occurred during playback: %w", err)
	}
	return s, nil
}

func channelMap(numInputs int) (proto.ChannelMap, error) {
	switch numInputs {
	case 1:
		return proto.ChannelMap{proto.ChannelMono}, nil
	case 2:
		return proto.ChannelMap{proto.ChannelLeft, proto.ChannelRight}, nil
	default:
		return nil, fmt.Errorf("do not know how to configure %d channels", numInputs)
	}
}

type pulseReader struct {
	io.Reader
}

var _ pulse.Reader = (*pulseReader)(nil)

func (*pulseReader) Format() byte {
	return proto.FormatFloat32LE
}

type pulseWriter struct {
	io.Writer
}

var _ pulse.Writer = (*pulseWriter)(nil)

func (*pulseWriter) Format() byte {
	return proto.FormatFloat32LE
}
