// Package fvad provides a noise-suppression model built on the WebRTC
// voice activity detector. It does not modify the audio, it only
// reports whether a frame contains voice (probability 0 or 1), which
// makes the gain shaping the only suppression applied.
package fvad

import (
	"context"
	"fmt"
	"math"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/josharian/fvad"
	"github.com/xaionaro-go/rtdenoise/pkg/audio"
	"github.com/xaionaro-go/rtdenoise/pkg/noisesuppression"
)

const (
	SampleRate = audio.SampleRate(48_000)

	// FrameSize is 10ms at SampleRate.
	FrameSize = 480
)

// Mode is the aggressiveness of the detector, 0 (least) to 3 (most).
type Mode int

type FVAD struct {
	detector *fvad.Detector
	samples  []int16
}

var _ noisesuppression.NoiseSuppression = (*FVAD)(nil)

func New(ctx context.Context, mode Mode) (*FVAD, error) {
	detector := fvad.NewDetector()
	if err := detector.SetMode(int(mode)); err != nil {
		return nil, fmt.Errorf("unable to set mode %d: %w", mode, err)
	}
	if err := detector.SetSampleRate(int(SampleRate)); err != nil {
		return nil, fmt.Errorf("unable to set sample rate %d: %w", SampleRate, err)
	}
	logger.Debugf(ctx, "created a WebRTC VAD, mode: %d", mode)
	return &FVAD{
		detector: detector,
		samples:  make([]int16, FrameSize),
	}, nil
}

func NewFactory(mode Mode) noisesuppression.Factory {
	return func(ctx context.Context) (noisesuppression.NoiseSuppression, error) {
		s, err := New(ctx, mode)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
}

func (s *FVAD) Close() error {
	if s.detector == nil {
		return fmt.Errorf("double-free attempt")
	}
	s.detector = nil
	s.samples = nil
	return nil
}

func (s *FVAD) Encoding(context.Context) (audio.Encoding, error) {
	return audio.EncodingPCM{
		PCMFormat:  audio.PCMFormatFloat32LE,
		SampleRate: SampleRate,
	}, nil
}

func (*FVAD) FrameSize() uint {
	return FrameSize
}

func (s *FVAD) AllocFrame() ([]float32, error) {
	return make([]float32, FrameSize), nil
}

func (s *FVAD) SuppressNoise(ctx context.Context, frame []float32) (float64, error) {
	if len(frame) != FrameSize {
		return 0, fmt.Errorf("invalid frame size: %d != %d", len(frame), FrameSize)
	}
	if s.detector == nil {
		return 0, fmt.Errorf("the detector is already closed")
	}
	for idx, v := range frame {
		s.samples[idx] = toInt16(v)
	}
	isVoice, err := s.detector.Process(s.samples)
	if err != nil {
		return 0, fmt.Errorf("unable to detect voice: %w", err)
	}
	if isVoice {
		return 1, nil
	}
	return 0, nil
}

func toInt16(v float32) int16 {
	switch {
	case v >= math.MaxInt16:
		return math.MaxInt16
	case v <= math.MinInt16:
		return math.MinInt16
	case v != v:
		return 0
	}
	return int16(v)
}
