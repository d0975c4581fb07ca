package denoiser

import (
	"context"
	"fmt"

	"github.com/xaionaro-go/rtdenoise/pkg/audio"
	"github.com/xaionaro-go/rtdenoise/pkg/noisesuppression"
)

// testModel halves every sample and reports a fixed probability.
type testModel struct {
	frameSize        uint
	voiceProbability float64
	failAtCall       int
	allocErr         error

	calls      int
	closeCount int
	frames     [][]float32
}

var _ noisesuppression.NoiseSuppression = (*testModel)(nil)

func (m *testModel) factory() noisesuppression.Factory {
	return func(context.Context) (noisesuppression.NoiseSuppression, error) {
		return m, nil
	}
}

func (m *testModel) Close() error {
	m.closeCount++
	if m.closeCount > 1 {
		return fmt.Errorf("double-free attempt")
	}
	return nil
}

func (m *testModel) Encoding(context.Context) (audio.Encoding, error) {
	return audio.EncodingPCM{PCMFormat: audio.PCMFormatFloat32LE, SampleRate: audio.DefaultSampleRate}, nil
}

func (m *testModel) FrameSize() uint {
	return m.frameSize
}

func (m *testModel) AllocFrame() ([]float32, error) {
	if m.allocErr != nil {
		return nil, m.allocErr
	}
	return make([]float32, m.frameSize), nil
}

func (m *testModel) SuppressNoise(_ context.Context, frame []float32) (float64, error) {
	m.calls++
	if m.failAtCall == m.calls {
		return 0, fmt.Errorf("test failure at call %d", m.calls)
	}
	m.frames = append(m.frames, append([]float32(nil), frame...))
	for idx := range frame {
		frame[idx] /= 2
	}
	return m.voiceProbability, nil
}
