package noisesuppression

import (
	"context"
	"fmt"

	"github.com/xaionaro-go/rtdenoise/pkg/audio"
)

// Dummy does not modify frames and always reports voice.
type Dummy struct {
	FrameSizeValue  uint
	SampleRateValue audio.SampleRate
	VoiceValue      float64

	closed bool
}

var _ NoiseSuppression = (*Dummy)(nil)

func NewDummy(
	frameSize uint,
	sampleRate audio.SampleRate,
) *Dummy {
	return &Dummy{
		FrameSizeValue:  frameSize,
		SampleRateValue: sampleRate,
		VoiceValue:      1,
	}
}

// DummyFactory returns a Factory of Dummy models with 480-sample frames
// at 48kHz.
func DummyFactory() Factory {
	return func(context.Context) (NoiseSuppression, error) {
		return NewDummy(480, audio.DefaultSampleRate), nil
	}
}

func (s *Dummy) Close() error {
	if s.closed {
		return fmt.Errorf("double-free attempt")
	}
	s.closed = true
	return nil
}

func (s *Dummy) Encoding(context.Context) (audio.Encoding, error) {
	return audio.EncodingPCM{
		PCMFormat:  audio.PCMFormatFloat32LE,
		SampleRate: s.SampleRateValue,
	}, nil
}

func (s *Dummy) FrameSize() uint {
	return s.FrameSizeValue
}

func (s *Dummy) AllocFrame() ([]float32, error) {
	if s.FrameSizeValue == 0 {
		return nil, fmt.Errorf("frame size is not set")
	}
	return make([]float32, s.FrameSizeValue), nil
}

func (s *Dummy) SuppressNoise(context.Context, []float32) (float64, error) {
	return s.VoiceValue, nil
}
