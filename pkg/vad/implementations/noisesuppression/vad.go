package noisesuppression

import (
	"context"
	"fmt"
	"time"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/xaionaro-go/rtdenoise/pkg/audio"
	"github.com/xaionaro-go/rtdenoise/pkg/denoiser"
	"github.com/xaionaro-go/rtdenoise/pkg/noisesuppression"
	"github.com/xaionaro-go/rtdenoise/pkg/vad"
)

// VAD uses the voice probability a noise-suppression model reports
// along with the denoised frame. A chunk is made of several model
// frames and its confidence is the maximum over them.
type VAD struct {
	noisesuppression.NoiseSuppression
	Engine        *denoiser.Engine
	ChunkSamples  int
	ChunkDuration time.Duration
	Buffer        []float32
}

var _ vad.VAD = (*VAD)(nil)

func NewVAD(
	ctx context.Context,
	noiseSuppression noisesuppression.NoiseSuppression,
	preferredGranularity time.Duration,
) (*VAD, error) {
	encoding, err := noiseSuppression.Encoding(ctx)
	if err != nil {
		return nil, fmt.Errorf("unable to get the encoding: %w", err)
	}
	encodingPCM, ok := encoding.(audio.EncodingPCM)
	if !ok {
		return nil, fmt.Errorf("noise suppression encoding is not PCM: %T", encoding)
	}
	if encodingPCM.SampleRate == 0 {
		return nil, fmt.Errorf("noise suppression sample rate is not set")
	}
	engine, err := denoiser.NewEngine(noiseSuppression)
	if err != nil {
		return nil, fmt.Errorf("unable to initialize the engine: %w", err)
	}

	frameSize := uint64(engine.FrameSize())
	preferredSamples := encodingPCM.SamplesForDuration(preferredGranularity)
	frames := max((preferredSamples+frameSize/2)/frameSize, 1)
	chunkSamples := frames * frameSize
	chunkDuration := time.Duration(uint64(time.Second) * chunkSamples / uint64(encodingPCM.SampleRate))
	logger.Debugf(ctx, "resulting chunkSamples:%d and chunkDuration:%v", chunkSamples, chunkDuration)

	return &VAD{
		NoiseSuppression: noiseSuppression,
		Engine:           engine,
		ChunkSamples:     int(chunkSamples),
		ChunkDuration:    chunkDuration,
		Buffer:           make([]float32, frameSize),
	}, nil
}

func (v *VAD) FindNextVoice(
	ctx context.Context,
	samples []float32,
	confidenceThreshold float64,
	minDuration time.Duration,
) (float64, time.Duration, error) {
	var maxConfidence float64
	var foundVoiceFor time.Duration
	firstVoiceDetection := time.Duration(-1)

	for pos := 0; len(samples) >= v.ChunkSamples; pos++ {
		chunk := samples[:v.ChunkSamples]
		samples = samples[v.ChunkSamples:]

		var voiceConfidence float64
		for len(chunk) > 0 {
			copy(v.Buffer, chunk)
			chunk = chunk[len(v.Buffer):]
			confidence, err := v.Engine.ProcessFrame(ctx, v.Buffer)
			if err != nil {
				return maxConfidence, firstVoiceDetection, err
			}
			voiceConfidence = max(voiceConfidence, confidence)
		}
		maxConfidence = max(maxConfidence, voiceConfidence)

		if voiceConfidence >= confidenceThreshold {
			foundVoiceFor += v.ChunkDuration
			if firstVoiceDetection < 0 {
				firstVoiceDetection = v.ChunkDuration * time.Duration(pos)
			}
			if foundVoiceFor >= minDuration {
				break
			}
		}
	}
	return maxConfidence, firstVoiceDetection, nil
}
