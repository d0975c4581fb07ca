package planar

import (
	"fmt"
)

// Planarize splits the interleaved input into one slice per channel.
// Every output slice must be exactly len(input)/channels long.
func Planarize[T any](channels int, output [][]T, input []T) error {
	if channels <= 0 {
		return fmt.Errorf("invalid amount of channels: %d", channels)
	}
	if len(input)%channels != 0 {
		return fmt.Errorf("expected an input length that is a multiple of %d, but received %d", channels, len(input))
	}
	if len(output) != channels {
		return fmt.Errorf("expected %d output slices, but received %d", channels, len(output))
	}
	samplesPerChan := len(input) / channels
	for ch, out := range output {
		if len(out) != samplesPerChan {
			return fmt.Errorf("the output of channel %d has length %d instead of %d", ch, len(out), samplesPerChan)
		}
	}

	for samplePos := 0; samplePos < samplesPerChan; samplePos++ {
		frame := input[samplePos*channels : (samplePos+1)*channels]
		for ch, v := range frame {
			output[ch][samplePos] = v
		}
	}
	return nil
}

// Split is Planarize into newly allocated slices.
func Split[T any](channels int, input []T) ([][]T, error) {
	if channels <= 0 {
		return nil, fmt.Errorf("invalid amount of channels: %d", channels)
	}
	output := make([][]T, channels)
	for ch := range output {
		output[ch] = make([]T, len(input)/channels)
	}
	if err := Planarize(channels, output, input); err != nil {
		return nil, err
	}
	return output, nil
}
