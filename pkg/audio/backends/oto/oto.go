// Package oto plays finished sample slices on the default output device.
//
// oto allows a single context per process, so the output format is fixed
// to SampleRate mono float32 and every input is resampled to it.
package oto

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"
	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/xaionaro-go/rtdenoise/pkg/audio"
	"github.com/xaionaro-go/rtdenoise/pkg/audio/pcm"
	"github.com/xaionaro-go/rtdenoise/pkg/audio/resampler"
)

const (
	SampleRate = audio.DefaultSampleRate
	Channels   = audio.Channel(1)
	BufferSize = 100 * time.Millisecond

	drainPollInterval = 10 * time.Millisecond
)

var (
	otoContextOnce sync.Once
	otoContext     *oto.Context
	otoContextErr  error
)

func getOtoContext() (*oto.Context, error) {
	otoContextOnce.Do(func() {
		var readyCh chan struct{}
		otoContext, readyCh, otoContextErr = oto.NewContext(&oto.NewContextOptions{
			SampleRate:   int(SampleRate),
			ChannelCount: int(Channels),
			Format:       oto.FormatFloat32LE,
			BufferSize:   BufferSize,
		})
		if otoContextErr == nil {
			<-readyCh
		}
	})
	return otoContext, otoContextErr
}

type Player struct {
	OtoCtx *oto.Context
}

func NewPlayer() (*Player, error) {
	otoCtx, err := getOtoContext()
	if err != nil {
		return nil, fmt.Errorf("unable to get an oto context: %w", err)
	}
	return &Player{
		OtoCtx: otoCtx,
	}, nil
}

// Play starts playing the interleaved samples of the given format.
func (p *Player) Play(
	ctx context.Context,
	samples []float32,
	channels audio.Channel,
	sampleRate audio.SampleRate,
) (*PlayStream, error) {
	logger.Debugf(ctx, "Play: %d samples, %d channels, %d Hz", len(samples), channels, sampleRate)
	if channels != Channels || sampleRate != SampleRate {
		inFmt := resampler.Format{Channels: channels, SampleRate: sampleRate}
		outFmt := resampler.Format{Channels: Channels, SampleRate: SampleRate}
		var err error
		samples, err = resampler.Resample(inFmt, samples, outFmt)
		if err != nil {
			return nil, fmt.Errorf("unable to resample from %#+v to %#+v: %w", inFmt, outFmt, err)
		}
	}

	var buf bytes.Buffer
	if err := pcm.WriteAll(&buf, samples, audio.PCMFormatFloat32LE); err != nil {
		return nil, fmt.Errorf("unable to encode the samples: %w", err)
	}

	player := p.OtoCtx.NewPlayer(bytes.NewReader(buf.Bytes()))
	player.Play()
	return &PlayStream{player: player}, nil
}

type PlayStream struct {
	player *oto.Player
}

var _ audio.Stream = (*PlayStream)(nil)

// Drain blocks until everything is played.
func (s *PlayStream) Drain() error {
	for s.player.IsPlaying() {
		time.Sleep(drainPollInterval)
	}
	return s.player.Err()
}

func (s *PlayStream) Close() error {
	return s.player.Close()
}
