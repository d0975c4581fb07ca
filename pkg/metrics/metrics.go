// Package metrics exports the denoiser statistics as OpenTelemetry
// observable instruments. The values are read from the atomics at
// collection time, so the real-time path is not involved.
package metrics

import (
	"context"
	"fmt"
	"math"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/xaionaro-go/rtdenoise/pkg/denoiser"
)

const meterName = "github.com/xaionaro-go/rtdenoise"

const (
	NameSamplesWritten   = "rtdenoise.samples_written"
	NameFramesProcessed  = "rtdenoise.frames_processed"
	NameChunksEmitted    = "rtdenoise.chunks_emitted"
	NameUnderruns        = "rtdenoise.underruns"
	NameVoiceProbability = "rtdenoise.voice_probability"
)

// Source is anything with denoiser statistics, e.g. *denoiser.Stats.
type Source interface {
	Snapshot() denoiser.StatsSnapshot
}

// Register starts reporting the statistics of the source, labeled by
// the stream name. Unregister the returned registration when the
// stream is closed.
func Register(
	meterProvider metric.MeterProvider,
	stream string,
	source Source,
) (metric.Registration, error) {
	meter := meterProvider.Meter(meterName)

	samplesWritten, err := meter.Int64ObservableCounter(NameSamplesWritten,
		metric.WithDescription("Samples received by the denoiser."),
		metric.WithUnit("{sample}"),
	)
	if err != nil {
		return nil, fmt.Errorf("unable to create %s: %w", NameSamplesWritten, err)
	}
	framesProcessed, err := meter.Int64ObservableCounter(NameFramesProcessed,
		metric.WithDescription("Model frames denoised."),
		metric.WithUnit("{frame}"),
	)
	if err != nil {
		return nil, fmt.Errorf("unable to create %s: %w", NameFramesProcessed, err)
	}
	chunksEmitted, err := meter.Int64ObservableCounter(NameChunksEmitted,
		metric.WithDescription("Output chunks delivered."),
		metric.WithUnit("{chunk}"),
	)
	if err != nil {
		return nil, fmt.Errorf("unable to create %s: %w", NameChunksEmitted, err)
	}
	underruns, err := meter.Int64ObservableCounter(NameUnderruns,
		metric.WithDescription("Output requests that could not be satisfied."),
		metric.WithUnit("{chunk}"),
	)
	if err != nil {
		return nil, fmt.Errorf("unable to create %s: %w", NameUnderruns, err)
	}
	voiceProbability, err := meter.Float64ObservableGauge(NameVoiceProbability,
		metric.WithDescription("Voice probability of the last processed frame."),
	)
	if err != nil {
		return nil, fmt.Errorf("unable to create %s: %w", NameVoiceProbability, err)
	}

	attrs := metric.WithAttributes(attribute.String("stream", stream))
	registration, err := meter.RegisterCallback(
		func(_ context.Context, o metric.Observer) error {
			s := source.Snapshot()
			o.ObserveInt64(samplesWritten, toInt64(s.SamplesWritten), attrs)
			o.ObserveInt64(framesProcessed, toInt64(s.FramesProcessed), attrs)
			o.ObserveInt64(chunksEmitted, toInt64(s.ChunksEmitted), attrs)
			o.ObserveInt64(underruns, toInt64(s.Underruns), attrs)
			o.ObserveFloat64(voiceProbability, s.LastVoiceProbability, attrs)
			return nil
		},
		samplesWritten, framesProcessed, chunksEmitted, underruns, voiceProbability,
	)
	if err != nil {
		return nil, fmt.Errorf("unable to register the callback: %w", err)
	}
	return registration, nil
}

func toInt64(v uint64) int64 {
	if v > math.MaxInt64 {
		return math.MaxInt64
	}
	return int64(v)
}
