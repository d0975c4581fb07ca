package vad

import (
	"context"
	"io"
	"time"

	"github.com/xaionaro-go/rtdenoise/pkg/audio"
)

type VAD interface {
	io.Closer

	Encoding(context.Context) (audio.Encoding, error)

	// FindNextVoice returns the maximal voice confidence seen and the
	// position of the first chunk with confidence at least
	// confidenceThreshold (-1 if none). The search stops once voice
	// was detected for minDuration in total.
	FindNextVoice(
		_ context.Context,
		samples []float32,
		confidenceThreshold float64,
		minDuration time.Duration,
	) (float64, time.Duration, error)
}
