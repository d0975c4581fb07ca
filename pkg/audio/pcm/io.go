package pcm

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/jfreymuth/oggvorbis"
	"github.com/xaionaro-go/rtdenoise/pkg/audio"
)

// ReadAll reads raw PCM samples of the given format until EOF.
func ReadAll(r io.Reader, f audio.PCMFormat) ([]float32, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("unable to read: %w", err)
	}
	size := int(f.Size())
	if size == 0 {
		return nil, fmt.Errorf("unsupported PCM format: %v", f)
	}
	if len(data)%size != 0 {
		return nil, fmt.Errorf("the data length %d is not a multiple of the sample size %d", len(data), size)
	}
	samples := make([]float32, len(data)/size)
	if err := Decode(samples, data, f); err != nil {
		return nil, err
	}
	return samples, nil
}

// WriteAll writes the samples as raw PCM of the given format.
func WriteAll(w io.Writer, samples []float32, f audio.PCMFormat) error {
	buf := make([]byte, len(samples)*int(f.Size()))
	if err := Encode(buf, samples, f); err != nil {
		return err
	}
	if _, err := w.Write(buf); err != nil {
		return fmt.Errorf("unable to write: %w", err)
	}
	return nil
}

// ReadOggVorbis decodes a whole Ogg Vorbis stream into interleaved
// samples.
func ReadOggVorbis(r io.Reader) ([]float32, audio.Channel, audio.SampleRate, error) {
	samples, format, err := oggvorbis.ReadAll(r)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("unable to decode Ogg Vorbis: %w", err)
	}
	return samples, audio.Channel(format.Channels), audio.SampleRate(format.SampleRate), nil
}

// RawFormat describes a headerless PCM file.
type RawFormat struct {
	PCMFormat  audio.PCMFormat
	Channels   audio.Channel
	SampleRate audio.SampleRate
}

// ReadFile reads a whole audio file as interleaved samples. Files with
// the ".ogg" extension are decoded as Ogg Vorbis, anything else is
// headerless PCM described by raw.
func ReadFile(
	path string,
	raw RawFormat,
) ([]float32, audio.Channel, audio.SampleRate, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("unable to open '%s': %w", path, err)
	}
	defer f.Close()

	if strings.EqualFold(filepath.Ext(path), ".ogg") {
		return ReadOggVorbis(f)
	}
	if raw.Channels == 0 || raw.SampleRate == 0 {
		return nil, 0, 0, fmt.Errorf("the amount of channels and the sample rate of a raw file must be positive")
	}
	samples, err := ReadAll(f, raw.PCMFormat)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("unable to read '%s': %w", path, err)
	}
	return samples, raw.Channels, raw.SampleRate, nil
}

// WriteFile writes the samples as headerless PCM.
func WriteFile(path string, samples []float32, f audio.PCMFormat) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("unable to create '%s': %w", path, err)
	}
	if err := WriteAll(file, samples, f); err != nil {
		file.Close()
		return fmt.Errorf("unable to write '%s': %w", path, err)
	}
	return file.Close()
}
