package main

import (
	"context"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"time"

	"github.com/facebookincubator/go-belt"
	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/facebookincubator/go-belt/tool/logger/implementation/logrus"
	"github.com/spf13/pflag"
	"github.com/xaionaro-go/datacounter"
	"github.com/xaionaro-go/observability"
	"github.com/xaionaro-go/rtdenoise/internal/models"
	"github.com/xaionaro-go/rtdenoise/pkg/audio"
	"github.com/xaionaro-go/rtdenoise/pkg/audio/backends/oto"
	"github.com/xaionaro-go/rtdenoise/pkg/audio/pcm"
	"github.com/xaionaro-go/rtdenoise/pkg/audio/resampler"
	"github.com/xaionaro-go/rtdenoise/pkg/denoiser"
	"github.com/xaionaro-go/rtdenoise/pkg/noisesuppression"
	vadnoisesuppression "github.com/xaionaro-go/rtdenoise/pkg/vad/implementations/noisesuppression"
)

func main() {
	loggerLevel := logger.LevelDebug
	pflag.Var(&loggerLevel, "log-level", "Log level")
	netPprofAddr := pflag.String("net-pprof-listen-addr", "", "an address to listen for incoming net/pprof connections")
	formatFlag := pflag.String("format", audio.PCMFormatFloat32LE.String(), "sample format of raw input and of the output")
	channelsFlag := pflag.Uint("channels", 1, "amount of channels of a raw input")
	sampleRateFlag := pflag.Uint("sample-rate", uint(audio.DefaultSampleRate), "sample rate of a raw input")
	modelFlag := pflag.String("model", models.NameRNNoise, fmt.Sprintf("noise suppression model, one of %v", models.Names()))
	fvadModeFlag := pflag.Int("fvad-mode", 2, "aggressiveness of the fvad model (0..3)")
	quantumSizeFlag := pflag.Uint("quantum-size", audio.DefaultQuantumSize, "amount of samples per processing call")
	detectVoiceFlag := pflag.Float64("detect-voice", 0, "if positive, report where the voice probability first reaches this threshold")
	playFlag := pflag.Bool("play", false, "play the result")
	pflag.Parse()

	if pflag.NArg() != 2 {
		panic(fmt.Errorf("expected exactly two arguments: <input-file> <output-file>"))
	}

	l := logrus.Default().WithLevel(loggerLevel)
	ctx := logger.CtxWithLogger(context.Background(), l)
	logger.Default = func() logger.Logger {
		return l
	}
	defer belt.Flush(ctx)

	if *netPprofAddr != "" {
		observability.Go(ctx, func() { l.Error(http.ListenAndServe(*netPprofAddr, nil)) })
	}

	format, err := audio.ParsePCMFormat(*formatFlag)
	assertNoError(err)

	samples, channels, sampleRate, err := pcm.ReadFile(pflag.Arg(0), pcm.RawFormat{
		PCMFormat:  format,
		Channels:   audio.Channel(*channelsFlag),
		SampleRate: audio.SampleRate(*sampleRateFlag),
	})
	assertNoError(err)
	logger.Debugf(ctx, "read %d samples (%d channels, %d Hz)", len(samples), channels, sampleRate)

	modelFormat := resampler.Format{Channels: 1, SampleRate: audio.DefaultSampleRate}
	samples, err = resampler.Resample(
		resampler.Format{Channels: channels, SampleRate: sampleRate},
		samples,
		modelFormat,
	)
	assertNoError(err)

	factory, err := models.Factory(*modelFlag, *fvadModeFlag)
	assertNoError(err)

	if *detectVoiceFlag > 0 {
		detectVoice(ctx, factory, samples, *detectVoiceFlag)
	}

	cfg := denoiser.DefaultConfig()
	cfg.QuantumSize = *quantumSizeFlag
	cfg.SampleRate = modelFormat.SampleRate
	d, err := denoiser.New(ctx, cfg, factory)
	assertNoError(err)
	defer d.Close()

	startedAt := time.Now()
	output, err := audio.RunOffline(ctx, d, cfg.QuantumSize, samples)
	assertNoError(err)
	logger.Infof(ctx, "denoised %v of audio in %v; stats: %#+v",
		time.Duration(len(samples))*time.Second/time.Duration(modelFormat.SampleRate),
		time.Since(startedAt),
		d.Stats().Snapshot(),
	)

	f, err := os.Create(pflag.Arg(1))
	assertNoError(err)
	wc := datacounter.NewWriterCounter(f)
	assertNoError(pcm.WriteAll(wc, output, format))
	assertNoError(f.Close())
	logger.Debugf(ctx, "written: %d bytes", wc.Count())

	if *playFlag {
		player, err := oto.NewPlayer()
		assertNoError(err)
		stream, err := player.Play(ctx, output, modelFormat.Channels, modelFormat.SampleRate)
		assertNoError(err)
		assertNoError(stream.Drain())
		assertNoError(stream.Close())
	}
}

func detectVoice(
	ctx context.Context,
	factory noisesuppression.Factory,
	samples []float32,
	threshold float64,
) {
	model, err := factory(ctx)
	assertNoError(err)
	defer model.Close()

	v, err := vadnoisesuppression.NewVAD(ctx, model, 100*time.Millisecond)
	assertNoError(err)

	confidence, position, err := v.FindNextVoice(ctx, samples, threshold, 0)
	assertNoError(err)
	if position < 0 {
		logger.Infof(ctx, "no voice detected (max confidence: %.3f)", confidence)
		return
	}
	logger.Infof(ctx, "voice detected at %v (max confidence: %.3f)", position, confidence)
}

func assertNoError(err error) {
	if err != nil {
		panic(err)
	}
}
