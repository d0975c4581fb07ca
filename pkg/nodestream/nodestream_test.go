package nodestream

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xaionaro-go/rtdenoise/pkg/audio"
	"github.com/xaionaro-go/rtdenoise/pkg/audio/pcm"
	"github.com/xaionaro-go/rtdenoise/pkg/combiner"
	"github.com/xaionaro-go/rtdenoise/pkg/denoiser"
	"github.com/xaionaro-go/rtdenoise/pkg/noisesuppression"
)

func ramp(n int) []float32 {
	r := make([]float32, n)
	for idx := range r {
		r[idx] = float32(idx%1000) / 1000
	}
	return r
}

func encode(t *testing.T, samples []float32) []byte {
	var buf bytes.Buffer
	require.NoError(t, pcm.WriteAll(&buf, samples, audio.PCMFormatFloat32LE))
	return buf.Bytes()
}

func TestStreamDenoiser(t *testing.T) {
	ctx := context.Background()
	d, err := denoiser.New(ctx, denoiser.DefaultConfig(), noisesuppression.DummyFactory())
	require.NoError(t, err)
	defer d.Close()

	input := ramp(128*20 + 50)
	s, err := New(ctx, bytes.NewReader(encode(t, input)), d, DefaultConfig())
	require.NoError(t, err)
	defer s.Close()

	outputBytes, err := io.ReadAll(s)
	require.NoError(t, err)
	output, err := pcm.ReadAll(bytes.NewReader(outputBytes), audio.PCMFormatFloat32LE)
	require.NoError(t, err)

	// the incomplete last quantum is zero-padded and processed; the
	// denoiser emits silence on its underruns (quanta 0, 1, 2 and 6)
	// and otherwise the next 128 buffered samples
	require.Len(t, output, 128*21)
	padded := append(append([]float32{}, input...), make([]float32, 128-50)...)
	emitted := 0
	for q := 0; q < 21; q++ {
		chunk := output[q*128 : (q+1)*128]
		switch q {
		case 0, 1, 2, 6:
			require.Equal(t, make([]float32, 128), chunk, "quantum %d", q)
		default:
			require.Equal(t, padded[emitted*128:(emitted+1)*128], chunk, "quantum %d", q)
			emitted++
		}
	}
	require.Equal(t, 17, emitted)
}

type copyNode struct{}

func (copyNode) Close() error {
	return nil
}

func (copyNode) NumberOfInputs() int {
	return 1
}

func (copyNode) ProcessQuantum(_ context.Context, inputs [][]float32, output []float32) (bool, error) {
	copy(output, inputs[0])
	return true, nil
}

func TestStreamPartialQuantum(t *testing.T) {
	ctx := context.Background()
	for _, n := range []int{1, 50, 127, 128 + 3} {
		t.Run(fmt.Sprintf("%d", n), func(t *testing.T) {
			input := ramp(n)
			for idx := range input {
				input[idx] += 0.5
			}
			s, err := New(ctx, bytes.NewReader(encode(t, input)), copyNode{}, DefaultConfig())
			require.NoError(t, err)
			defer s.Close()

			outputBytes, err := io.ReadAll(s)
			require.NoError(t, err)
			output, err := pcm.ReadAll(bytes.NewReader(outputBytes), audio.PCMFormatFloat32LE)
			require.NoError(t, err)

			quanta := (n + 127) / 128
			require.Len(t, output, quanta*128)
			assert.Equal(t, input, output[:n])
			assert.Equal(t, make([]float32, quanta*128-n), output[n:])
		})
	}
}

func TestStreamCombiner(t *testing.T) {
	ctx := context.Background()
	c, err := combiner.New(ctx, combiner.Config{QuantumSize: 64})
	require.NoError(t, err)
	defer c.Close()

	primary := ramp(64 * 10)
	interleaved := make([]float32, 0, 2*len(primary))
	for _, v := range primary {
		interleaved = append(interleaved, v, -1)
	}

	cfg := DefaultConfig()
	cfg.QuantumSize = 64
	cfg.InputBufferSize = 1
	s, err := New(ctx, bytes.NewReader(encode(t, interleaved)), c, cfg)
	require.NoError(t, err)
	defer s.Close()

	outputBytes, err := io.ReadAll(s)
	require.NoError(t, err)
	output, err := pcm.ReadAll(bytes.NewReader(outputBytes), audio.PCMFormatFloat32LE)
	require.NoError(t, err)
	assert.Equal(t, primary, output)
}

type failingNode struct{}

func (failingNode) Close() error {
	return nil
}

func (failingNode) NumberOfInputs() int {
	return 1
}

func (failingNode) ProcessQuantum(context.Context, [][]float32, []float32) (bool, error) {
	return false, fmt.Errorf("boom")
}

func TestStreamNodeError(t *testing.T) {
	s, err := New(context.Background(), bytes.NewReader(make([]byte, 4096)), failingNode{}, DefaultConfig())
	require.NoError(t, err)
	defer s.Close()

	_, err = io.ReadAll(s)
	require.Error(t, err)
	assert.ErrorContains(t, err, "boom")
	assert.Error(t, s.Err())
}

type blockingReader struct{}

func (blockingReader) Read([]byte) (int, error) {
	select {}
}

func TestStreamClose(t *testing.T) {
	ctx := context.Background()
	d, err := denoiser.New(ctx, denoiser.DefaultConfig(), noisesuppression.DummyFactory())
	require.NoError(t, err)
	defer d.Close()

	s, err := New(ctx, blockingReader{}, d, DefaultConfig())
	require.NoError(t, err)

	readErr := make(chan error, 1)
	go func() {
		_, err := s.Read(make([]byte, 512))
		readErr <- err
	}()

	require.NoError(t, s.Close())
	select {
	case err := <-readErr:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("Read did not return after Close")
	}
}

func TestNewErrors(t *testing.T) {
	ctx := context.Background()
	cfg := DefaultConfig()
	cfg.QuantumSize = 0
	_, err := New(ctx, bytes.NewReader(nil), failingNode{}, cfg)
	assert.Error(t, err)

	cfg = DefaultConfig()
	cfg.PCMFormat = audio.PCMFormatUndefined
	_, err = New(ctx, bytes.NewReader(nil), failingNode{}, cfg)
	assert.Error(t, err)
}
