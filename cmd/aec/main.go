package main

import (
	"context"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"

	"github.com/facebookincubator/go-belt"
	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/facebookincubator/go-belt/tool/logger/implementation/logrus"
	"github.com/spf13/pflag"
	"github.com/xaionaro-go/datacounter"
	"github.com/xaionaro-go/observability"
	"github.com/xaionaro-go/rtdenoise/internal/models"
	"github.com/xaionaro-go/rtdenoise/pkg/audio"
	"github.com/xaionaro-go/rtdenoise/pkg/audio/pcm"
	"github.com/xaionaro-go/rtdenoise/pkg/audio/planar"
	"github.com/xaionaro-go/rtdenoise/pkg/audio/resampler"
	"github.com/xaionaro-go/rtdenoise/pkg/combiner"
	"github.com/xaionaro-go/rtdenoise/pkg/denoiser"
	"github.com/xaionaro-go/rtdenoise/pkg/echocancel"
	"github.com/xaionaro-go/rtdenoise/pkg/echocancel/implementations/projection"
	"github.com/xaionaro-go/rtdenoise/pkg/syncer"
	"github.com/xaionaro-go/rtdenoise/pkg/syncer/implementations/gccphat"
	"github.com/xaionaro-go/rtdenoise/pkg/syncer/implementations/xcorr"
)

const (
	syncMethodNone    = "none"
	syncMethodXCorr   = "xcorr"
	syncMethodGCCPHAT = "gccphat"

	echoCancellerPassthrough = "passthrough"
	echoCancellerProjection  = "projection"
)

func main() {
	loggerLevel := logger.LevelDebug
	pflag.Var(&loggerLevel, "log-level", "Log level")
	netPprofAddr := pflag.String("net-pprof-listen-addr", "", "an address to listen for incoming net/pprof connections")
	formatFlag := pflag.String("format", audio.PCMFormatFloat32LE.String(), "sample format of raw inputs and of the output")
	channelsFlag := pflag.Uint("channels", 1, "amount of channels of raw inputs")
	sampleRateFlag := pflag.Uint("sample-rate", uint(audio.DefaultSampleRate), "sample rate of raw inputs")
	stereoFlag := pflag.Bool("stereo", false, "take a single stereo input: the left channel is the primary track, the right one is the reference")
	syncMethodFlag := pflag.String("sync-method", syncMethodXCorr, "how to align the reference with the primary track: none, xcorr or gccphat")
	echoCancellerFlag := pflag.String("echo-canceller", echoCancellerProjection, "echo canceller: passthrough or projection")
	denoiseFlag := pflag.Bool("denoise", true, "denoise the primary track after the echo cancellation")
	modelFlag := pflag.String("model", models.NameRNNoise, fmt.Sprintf("noise suppression model, one of %v", models.Names()))
	fvadModeFlag := pflag.Int("fvad-mode", 2, "aggressiveness of the fvad model (0..3)")
	quantumSizeFlag := pflag.Uint("quantum-size", audio.DefaultQuantumSize, "amount of samples per processing call")
	pflag.Parse()

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
	raw := pcm.RawFormat{
		PCMFormat:  format,
		Channels:   audio.Channel(*channelsFlag),
		SampleRate: audio.SampleRate(*sampleRateFlag),
	}

	var primary, reference []float32
	var outputPath string
	switch {
	case *stereoFlag:
		if pflag.NArg() != 2 {
			panic(fmt.Errorf("expected exactly two arguments: <stereo-input-file> <output-file>"))
		}
		raw.Channels = 2
		primary, reference = readStereo(ctx, pflag.Arg(0), raw)
		outputPath = pflag.Arg(1)
	default:
		if pflag.NArg() != 3 {
			panic(fmt.Errorf("expected exactly three arguments: <primary-file> <reference-file> <output-file>"))
		}
		primary = readMono(ctx, pflag.Arg(0), raw)
		reference = readMono(ctx, pflag.Arg(1), raw)
		outputPath = pflag.Arg(2)
	}

	reference = alignReference(ctx, *syncMethodFlag, primary, reference)

	cfg := combiner.Config{
		QuantumSize: *quantumSizeFlag,
	}
	switch *echoCancellerFlag {
	case echoCancellerPassthrough:
		cfg.EchoCanceller = echocancel.Passthrough{}
	case echoCancellerProjection:
		canceller := projection.New()
		logger.Infof(ctx, "the echo canceller delays the output by %d samples", canceller.Latency())
		cfg.EchoCanceller = canceller
	default:
		panic(fmt.Errorf("unknown echo canceller '%s'", *echoCancellerFlag))
	}
	if *denoiseFlag {
		factory, err := models.Factory(*modelFlag, *fvadModeFlag)
		assertNoError(err)
		denoiserCfg := denoiser.DefaultConfig()
		denoiserCfg.QuantumSize = cfg.QuantumSize
		denoiserCfg.SampleRate = modelFormat.SampleRate
		cfg.Denoiser, err = denoiser.New(ctx, denoiserCfg, factory)
		assertNoError(err)
	}

	c, err := combiner.New(ctx, cfg)
	assertNoError(err)
	defer c.Close()

	output, err := audio.RunOffline(ctx, c, cfg.QuantumSize, primary, reference)
	assertNoError(err)
	if d, ok := cfg.Denoiser.(*denoiser.Denoiser); ok {
		logger.Infof(ctx, "denoiser stats: %#+v", d.Stats().Snapshot())
	}

	f, err := os.Create(outputPath)
	assertNoError(err)
	wc := datacounter.NewWriterCounter(f)
	assertNoError(pcm.WriteAll(wc, output, format))
	assertNoError(f.Close())
	logger.Debugf(ctx, "written: %d bytes", wc.Count())
}

var modelFormat = resampler.Format{Channels: 1, SampleRate: audio.DefaultSampleRate}

func readMono(
	ctx context.Context,
	path string,
	raw pcm.RawFormat,
) []float32 {
	samples, channels, sampleRate, err := pcm.ReadFile(path, raw)
	assertNoError(err)
	logger.Debugf(ctx, "read %d samples from '%s' (%d channels, %d Hz)", len(samples), path, channels, sampleRate)
	samples, err = resampler.Resample(resampler.Format{Channels: channels, SampleRate: sampleRate}, samples, modelFormat)
	assertNoError(err)
	return samples
}

func readStereo(
	ctx context.Context,
	path string,
	raw pcm.RawFormat,
) ([]float32, []float32) {
	samples, channels, sampleRate, err := pcm.ReadFile(path, raw)
	assertNoError(err)
	logger.Debugf(ctx, "read %d samples from '%s' (%d channels, %d Hz)", len(samples), path, channels, sampleRate)
	if channels != 2 {
		panic(fmt.Errorf("expected a stereo input, but '%s' has %d channels", path, channels))
	}
	tracks, err := planar.Split(int(channels), samples)
	assertNoError(err)
	inFormat := resampler.Format{Channels: 1, SampleRate: sampleRate}
	for idx := range tracks {
		tracks[idx], err = resampler.Resample(inFormat, tracks[idx], modelFormat)
		assertNoError(err)
	}
	return tracks[0], tracks[1]
}

func alignReference(
	ctx context.Context,
	method string,
	primary []float32,
	reference []float32,
) []float32 {
	var s syncer.Syncer
	switch method {
	case syncMethodNone:
		return syncer.Align(reference, 0, len(primary))
	case syncMethodXCorr:
		s = xcorr.NewSyncer()
	case syncMethodGCCPHAT:
		var err error
		s, err = gccphat.NewSyncer(modelFormat.SampleRate)
		assertNoError(err)
	default:
		panic(fmt.Errorf("unknown sync method '%s'", method))
	}
	defer s.Close()

	results, err := s.CalculateLag(ctx, primary, reference)
	assertNoError(err)
	lag := results[0]
	logger.Infof(ctx, "the reference lags by %d samples (confidence %.3f)", lag.Lag, lag.Confidence)
	return syncer.Align(reference, lag.Lag, len(primary))
}

func assertNoError(err error) {
	if err != nil {
		panic(err)
	}
}
