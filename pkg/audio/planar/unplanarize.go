package planar

import (
	"fmt"
)

// Unplanarize interleaves the per-channel inputs into output.
func Unplanarize[T any](output []T, input [][]T) error {
	channels := len(input)
	if channels == 0 {
		return fmt.Errorf("no channels given")
	}
	samplesPerChan := len(input[0])
	for ch, in := range input {
		if len(in) != samplesPerChan {
			return fmt.Errorf("the input of channel %d has length %d instead of %d", ch, len(in), samplesPerChan)
		}
	}
	if len(output) != samplesPerChan*channels {
		return fmt.Errorf("the output length is %d instead of %d", len(output), samplesPerChan*channels)
	}

	for ch, in := range input {
		for samplePos, v := range in {
			output[samplePos*channels+ch] = v
		}
	}
	return nil
}
