// Package resampler converts interleaved float32 samples between
// channel layouts and sample rates.
package resampler

import (
	"fmt"

	"github.com/xaionaro-go/rtdenoise/pkg/audio"
)

type Format struct {
	Channels   audio.Channel
	SampleRate audio.SampleRate
}

// Resample converts the interleaved input from inFormat to outFormat.
//
// Channels are either averaged down to mono or mono is repeated into
// every output channel; other layouts are not supported. The sample
// rate is converted by linear interpolation.
func Resample(
	inFormat Format,
	input []float32,
	outFormat Format,
) ([]float32, error) {
	if inFormat.Channels == 0 || outFormat.Channels == 0 {
		return nil, fmt.Errorf("the amount of channels must be positive: %d -> %d", inFormat.Channels, outFormat.Channels)
	}
	if inFormat.SampleRate == 0 || outFormat.SampleRate == 0 {
		return nil, fmt.Errorf("the sample rate must be positive: %d -> %d", inFormat.SampleRate, outFormat.SampleRate)
	}
	if inFormat.Channels != outFormat.Channels && inFormat.Channels != 1 && outFormat.Channels != 1 {
		return nil, fmt.Errorf("do not know how to convert %d channels to %d", inFormat.Channels, outFormat.Channels)
	}
	inChannels := int(inFormat.Channels)
	if len(input)%inChannels != 0 {
		return nil, fmt.Errorf("the input length %d is not a multiple of the amount of channels %d", len(input), inChannels)
	}

	planes, err := toPlanes(input, inChannels, int(outFormat.Channels))
	if err != nil {
		return nil, err
	}
	for idx, plane := range planes {
		planes[idx] = resampleRate(plane, inFormat.SampleRate, outFormat.SampleRate)
	}

	outChannels := int(outFormat.Channels)
	var length int
	if len(planes) > 0 {
		length = len(planes[0])
	}
	output := make([]float32, length*outChannels)
	for ch := 0; ch < outChannels; ch++ {
		plane := planes[min(ch, len(planes)-1)]
		for pos, v := range plane {
			output[pos*outChannels+ch] = v
		}
	}
	return output, nil
}

// toPlanes deinterleaves the input; if the output is mono, the
// channels are averaged into one plane.
func toPlanes(input []float32, inChannels, outChannels int) ([][]float32, error) {
	frames := len(input) / inChannels
	if outChannels == 1 || inChannels == 1 {
		mono := make([]float32, frames)
		for pos := range mono {
			var sum float32
			for ch := 0; ch < inChannels; ch++ {
				sum += input[pos*inChannels+ch]
			}
			mono[pos] = sum / float32(inChannels)
		}
		return [][]float32{mono}, nil
	}

	planes := make([][]float32, inChannels)
	for ch := range planes {
		planes[ch] = make([]float32, frames)
		for pos := range planes[ch] {
			planes[ch][pos] = input[pos*inChannels+ch]
		}
	}
	return planes, nil
}

func resampleRate(plane []float32, inRate, outRate audio.SampleRate) []float32 {
	if inRate == outRate || len(plane) == 0 {
		return plane
	}
	outLen := int(uint64(len(plane)) * uint64(outRate) / uint64(inRate))
	result := make([]float32, outLen)
	step := float64(inRate) / float64(outRate)
	for idx := range result {
		pos := float64(idx) * step
		left := int(pos)
		frac := float32(pos - float64(left))
		if left+1 >= len(plane) {
			result[idx] = plane[len(plane)-1]
			continue
		}
		result[idx] = plane[left]*(1-frac) + plane[left+1]*frac
	}
	return result
}
