package noisesuppression

import (
	"context"
	"io"

	"github.com/xaionaro-go/rtdenoise/pkg/audio"
)

// FullScale is the amplitude of a full-scale sample in the domain the
// models work in (signed 16-bit).
const FullScale = 32768

// NoiseSuppression is a per-stream noise-suppression model.
//
// A model instance keeps state between frames, thus it must never be
// shared between streams.
type NoiseSuppression interface {
	io.Closer

	// Encoding returns the sample rate the model expects
	// (and the in-memory sample format of its frames).
	Encoding(context.Context) (audio.Encoding, error)

	// FrameSize is the fixed amount of mono samples SuppressNoise consumes.
	FrameSize() uint

	// AllocFrame allocates a buffer of exactly FrameSize samples suitable
	// for passing to SuppressNoise. The buffer is owned by the model and is
	// valid until Close.
	AllocFrame() ([]float32, error)

	// SuppressNoise denoises the frame in place and returns the probability
	// of the frame containing voice. The samples are in the signed 16-bit
	// full-scale domain (see FullScale).
	SuppressNoise(ctx context.Context, frame []float32) (float64, error)
}

// Factory creates a fresh model instance for a stream.
type Factory func(ctx context.Context) (NoiseSuppression, error)
