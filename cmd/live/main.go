package main

import (
	"context"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"time"

	"github.com/facebookincubator/go-belt"
	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/facebookincubator/go-belt/tool/logger/implementation/logrus"
	"github.com/spf13/pflag"
	"github.com/xaionaro-go/observability"
	"github.com/xaionaro-go/rtdenoise/internal/config"
	"github.com/xaionaro-go/rtdenoise/internal/models"
	"github.com/xaionaro-go/rtdenoise/pkg/audio"
	_ "github.com/xaionaro-go/rtdenoise/pkg/audio/backends/portaudio"
	_ "github.com/xaionaro-go/rtdenoise/pkg/audio/backends/pulseaudio"
	"github.com/xaionaro-go/rtdenoise/pkg/combiner"
	"github.com/xaionaro-go/rtdenoise/pkg/denoiser"
	"github.com/xaionaro-go/rtdenoise/pkg/echocancel"
	"github.com/xaionaro-go/rtdenoise/pkg/echocancel/implementations/projection"
	"github.com/xaionaro-go/rtdenoise/pkg/metrics"
)

func main() {
	configPath := pflag.String("config", "", "path to a YAML config file")
	logLevelFlag := pflag.String("log-level", "", "overrides log_level")
	hostFlag := pflag.String("host", "", "overrides host")
	modelFlag := pflag.String("model", "", "overrides model")
	inputsFlag := pflag.Int("inputs", 0, "overrides inputs")
	echoCancellerFlag := pflag.String("echo-canceller", "", "overrides echo_canceller")
	metricsAddr := pflag.String("metrics-listen-addr", "", "overrides metrics_listen_addr")
	netPprofAddr := pflag.String("net-pprof-listen-addr", "", "overrides net_pprof_listen_addr")
	pflag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		var err error
		cfg, err = config.ReadFile(*configPath)
		assertNoError(err)
	}
	if pflag.CommandLine.Changed("log-level") {
		cfg.LogLevel = *logLevelFlag
	}
	if pflag.CommandLine.Changed("host") {
		cfg.Host = *hostFlag
	}
	if pflag.CommandLine.Changed("model") {
		cfg.Model = *modelFlag
	}
	if pflag.CommandLine.Changed("inputs") {
		cfg.Inputs = *inputsFlag
	}
	if pflag.CommandLine.Changed("echo-canceller") {
		cfg.EchoCanceller = *echoCancellerFlag
	}
	if pflag.CommandLine.Changed("metrics-listen-addr") {
		cfg.MetricsListenAddr = *metricsAddr
	}
	if pflag.CommandLine.Changed("net-pprof-listen-addr") {
		cfg.NetPprofListenAddr = *netPprofAddr
	}
	assertNoError(cfg.Validate())

	var loggerLevel logger.Level
	assertNoError(loggerLevel.Set(cfg.LogLevel))
	l := logrus.Default().WithLevel(loggerLevel)
	ctx := logger.CtxWithLogger(context.Background(), l)
	logger.Default = func() logger.Logger {
		return l
	}
	defer belt.Flush(ctx)

	ctx, cancelFn := signal.NotifyContext(ctx, os.Interrupt)
	defer cancelFn()

	if cfg.NetPprofListenAddr != "" {
		observability.Go(ctx, func() { l.Error(http.ListenAndServe(cfg.NetPprofListenAddr, nil)) })
	}

	logger.Infof(ctx, "starting with config %#+v", cfg)
	factory, err := models.Factory(cfg.Model, cfg.FVADMode)
	assertNoError(err)

	denoiserCfg := denoiser.DefaultConfig()
	denoiserCfg.QuantumSize = cfg.QuantumSize
	denoiserCfg.SampleRate = audio.SampleRate(cfg.SampleRate)
	d, err := denoiser.New(ctx, denoiserCfg, factory)
	assertNoError(err)

	var node audio.Node = d
	if cfg.Inputs == 2 {
		var canceller echocancel.Canceller = echocancel.Passthrough{}
		if cfg.EchoCanceller == "projection" {
			canceller = projection.New()
		}
		node, err = combiner.New(ctx, combiner.Config{
			QuantumSize:   cfg.QuantumSize,
			EchoCanceller: canceller,
			Denoiser:      d,
		})
		assertNoError(err)
	}
	defer func() {
		if err := node.Close(); err != nil {
			logger.Errorf(ctx, "unable to close the node: %v", err)
		}
	}()

	if cfg.MetricsListenAddr != "" {
		serveMetrics(ctx, cfg.MetricsListenAddr, d)
	}

	host, err := audio.NewHostByName(ctx, cfg.Host)
	assertNoError(err)
	defer host.Close()

	stream, err := host.Run(ctx, audio.HostConfig{
		SampleRate:  audio.SampleRate(cfg.SampleRate),
		QuantumSize: cfg.QuantumSize,
	}, node)
	assertNoError(err)
	logger.Infof(ctx, "started (%T, %T)", host, node)

	observability.Go(ctx, func() {
		<-ctx.Done()
		if err := stream.Close(); err != nil {
			logger.Errorf(ctx, "unable to close the stream: %v", err)
		}
	})
	observability.Go(ctx, func() {
		t := time.NewTicker(time.Second)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				logger.Debugf(ctx, "stats: %#+v", d.Stats().Snapshot())
			}
		}
	})

	if err := stream.Drain(); err != nil {
		logger.Errorf(ctx, "the stream stopped: %v", err)
	}
	assertNoError(stream.Close())
}

func serveMetrics(
	ctx context.Context,
	addr string,
	d *denoiser.Denoiser,
) {
	mp, handler, err := metrics.NewPrometheusProvider()
	assertNoError(err)
	_, err = metrics.Register(mp, "live", d.Stats())
	assertNoError(err)

	mux := http.NewServeMux()
	mux.Handle("/metrics", handler)
	observability.Go(ctx, func() {
		defer mp.Shutdown(context.Background())
		logger.Errorf(ctx, "the metrics server stopped: %v", http.ListenAndServe(addr, mux))
	})
}

func assertNoError(err error) {
	if err != nil {
		panic(err)
	}
}
