// Package config is the configuration file of the live denoiser.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

type Config struct {
	LogLevel string `yaml:"log_level" validate:"oneof=trace debug info warning error fatal panic"`

	// Host is the audio backend: "auto" picks the best working one.
	Host        string `yaml:"host" validate:"oneof=auto portaudio pulseaudio"`
	SampleRate  uint   `yaml:"sample_rate" validate:"required,oneof=8000 16000 32000 44100 48000"`
	QuantumSize uint   `yaml:"quantum_size" validate:"required,min=16,max=8192"`

	Model    string `yaml:"model" validate:"oneof=rnnoise fvad dummy"`
	FVADMode int    `yaml:"fvad_mode" validate:"min=0,max=3"`

	// Inputs is 1 for a plain denoiser and 2 for the microphone +
	// reference combiner.
	Inputs        int    `yaml:"inputs" validate:"oneof=1 2"`
	EchoCanceller string `yaml:"echo_canceller" validate:"oneof=passthrough projection"`

	MetricsListenAddr  string `yaml:"metrics_listen_addr" validate:"omitempty,hostname_port"`
	NetPprofListenAddr string `yaml:"net_pprof_listen_addr" validate:"omitempty,hostname_port"`
}

func Default() Config {
	return Config{
		LogLevel:      "info",
		Host:          "auto",
		SampleRate:    48000,
		QuantumSize:   128,
		Model:         "rnnoise",
		FVADMode:      2,
		Inputs:        1,
		EchoCanceller: "passthrough",
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

func (cfg Config) Validate() error {
	err := validate.Struct(cfg)
	if err == nil {
		return nil
	}
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return err
	}
	var msgs []string
	for _, e := range validationErrors {
		msgs = append(msgs, fmt.Sprintf("%s: %s", e.Field(), formatValidationMessage(e)))
	}
	return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
}

func formatValidationMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "is required"
	case "min":
		return fmt.Sprintf("must be at least %s", e.Param())
	case "max":
		return fmt.Sprintf("must be at most %s", e.Param())
	case "oneof":
		return fmt.Sprintf("must be one of: %s", e.Param())
	case "hostname_port":
		return "must be a host:port pair"
	default:
		return fmt.Sprintf("failed validation '%s'", e.Tag())
	}
}

// Read parses the YAML over the defaults; unknown keys are an error.
func Read(r io.Reader) (Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("unable to decode YAML: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func ReadFile(path string) (Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return Config{}, fmt.Errorf("unable to open '%s': %w", path, err)
	}
	defer f.Close()

	cfg, err := Read(f)
	if err != nil {
		return Config{}, fmt.Errorf("unable to parse '%s': %w", path, err)
	}
	return cfg, nil
}
