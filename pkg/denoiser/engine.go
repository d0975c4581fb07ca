package denoiser

import (
	"context"
	"fmt"
	"math"

	"github.com/xaionaro-go/rtdenoise/pkg/noisesuppression"
)

// Engine runs the model over one frame at a time. The model works in
// the signed 16-bit full-scale domain, so the frame is scaled up into
// the model's scratch frame, denoised there and scaled back.
type Engine struct {
	model   noisesuppression.NoiseSuppression
	scratch []float32
}

func NewEngine(model noisesuppression.NoiseSuppression) (*Engine, error) {
	scratch, err := model.AllocFrame()
	if err != nil {
		return nil, fmt.Errorf("unable to allocate a frame: %w", err)
	}
	if uint(len(scratch)) != model.FrameSize() {
		return nil, fmt.Errorf("the model allocated a frame of %d samples instead of %d", len(scratch), model.FrameSize())
	}
	return &Engine{
		model:   model,
		scratch: scratch,
	}, nil
}

func (e *Engine) FrameSize() int {
	return len(e.scratch)
}

// ProcessFrame denoises the frame in place and returns the voice
// probability sanitized into [0, 1].
func (e *Engine) ProcessFrame(ctx context.Context, frame []float32) (float64, error) {
	if len(frame) != len(e.scratch) {
		return 0, fmt.Errorf("invalid frame size: %d != %d", len(frame), len(e.scratch))
	}

	for idx, v := range frame {
		e.scratch[idx] = v * noisesuppression.FullScale
	}
	voiceProbability, err := e.model.SuppressNoise(ctx, e.scratch)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrInference, err)
	}
	for idx, v := range e.scratch {
		frame[idx] = v / noisesuppression.FullScale
	}

	return sanitizeProbability(voiceProbability), nil
}

func sanitizeProbability(p float64) float64 {
	switch {
	case math.IsNaN(p):
		return 0
	case p < 0:
		return 0
	case p > 1:
		return 1
	}
	return p
}
