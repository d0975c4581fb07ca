package audio

import (
	"context"
	"fmt"

	"github.com/facebookincubator/go-belt/tool/logger"
)

// RunOffline drives the node over in-memory inputs the same way a
// real-time Host would: one quantum per call, every input sliced at the
// same position. The inputs are zero-padded to a multiple of quantumSize.
//
// Unlike a real-time Host, RunOffline aligns the result with the input:
// quanta the node produced no output for are skipped, the leading
// Delayer.Latency samples are dropped, and after the input is exhausted
// the node is fed silent quanta until everything it held is flushed.
// The result has exactly the padded length.
func RunOffline(
	ctx context.Context,
	node Node,
	quantumSize uint,
	inputs ...[]float32,
) (_ret []float32, _err error) {
	logger.Tracef(ctx, "RunOffline")
	defer func() { logger.Tracef(ctx, "/RunOffline: %d %v", len(_ret), _err) }()

	if quantumSize == 0 {
		return nil, fmt.Errorf("quantum size must be positive")
	}
	if len(inputs) != node.NumberOfInputs() {
		return nil, fmt.Errorf("the node expects %d inputs, but %d were given", node.NumberOfInputs(), len(inputs))
	}

	var length int
	for _, input := range inputs {
		length = max(length, len(input))
	}
	quantum := int(quantumSize)
	if tail := length % quantum; tail != 0 {
		length += quantum - tail
	}

	var latency, held int
	if delayer, ok := node.(Delayer); ok {
		latency, held = delayer.Latency(), delayer.MaxHeldSamples()
	}
	wantLength := latency + length
	inputQuanta := length / quantum
	maxQuanta := inputQuanta + (latency+held+quantum-1)/quantum + 1

	produced := make([]float32, 0, wantLength+quantum)
	result := func() []float32 {
		if len(produced) <= latency {
			return nil
		}
		return produced[latency:min(len(produced), wantLength)]
	}

	chunk := make([]float32, quantum)
	quantumInputs := make([][]float32, len(inputs))
	quantumBuffers := make([][]float32, len(inputs))
	for idx := range quantumBuffers {
		quantumBuffers[idx] = make([]float32, quantum)
	}

	calls := 0
	for ; calls < maxQuanta && (calls < inputQuanta || len(produced) < wantLength); calls++ {
		select {
		case <-ctx.Done():
			return result(), ctx.Err()
		default:
		}

		pos := calls * quantum
		for idx, input := range inputs {
			buf := quantumBuffers[idx]
			clear(buf)
			if pos < len(input) {
				copy(buf, input[pos:])
			}
			quantumInputs[idx] = buf
		}

		ok, err := node.ProcessQuantum(ctx, quantumInputs, chunk)
		if err != nil {
			return result(), fmt.Errorf("unable to process the quantum at sample %d: %w", pos, err)
		}
		if ok {
			produced = append(produced, chunk...)
		}
	}

	if len(produced) < wantLength {
		logger.Warnf(ctx, "the node produced %d samples out of %d after %d quanta, padding with silence", len(produced), wantLength, calls)
		produced = append(produced, make([]float32, wantLength-len(produced))...)
	}
	logger.Debugf(ctx, "processed %d samples in %d quanta (latency:%d)", length, calls, latency)
	return produced[latency:wantLength], nil
}
