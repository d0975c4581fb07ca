package denoiser

import (
	"github.com/xaionaro-go/rtdenoise/pkg/audio"
	"github.com/xaionaro-go/rtdenoise/pkg/gainshaper"
)

type Config struct {
	// QuantumSize is the amount of samples per ProcessQuantum call.
	QuantumSize uint

	// FrameSize overrides the frame size of the model. Zero means
	// the model's own. A model rejects any other size, so this is
	// mostly useful with test models.
	FrameSize uint

	// SampleRate is the rate of the stream. If set, it must match the
	// rate the model expects. Zero means it is not checked.
	SampleRate audio.SampleRate

	// GainShaper defaults to gainshaper.Default().
	GainShaper *gainshaper.Shaper
}

func DefaultConfig() Config {
	return Config{
		QuantumSize: audio.DefaultQuantumSize,
	}
}
