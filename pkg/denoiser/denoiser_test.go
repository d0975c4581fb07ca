package denoiser

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"testing"

	"github.com/davecgh/go-spew/spew"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xaionaro-go/rtdenoise/pkg/audio"
	"github.com/xaionaro-go/rtdenoise/pkg/noisesuppression"
)

func sine(n int, freq float64) []float32 {
	r := make([]float32, n)
	for idx := range r {
		r[idx] = float32(0.5 * math.Sin(2*math.Pi*freq*float64(idx)/48000))
	}
	return r
}

// isUnderrunQuantum reports whether the idx-th 128-sample quantum finds
// less than a quantum of processed 480-sample frames.
func isUnderrunQuantum(idx int) bool {
	switch idx {
	case 0, 1, 2, 6:
		return true
	}
	return false
}

func newTestDenoiser(t testing.TB, model *testModel) *Denoiser {
	d, err := New(context.Background(), DefaultConfig(), model.factory())
	require.NoError(t, err)
	return d
}

func TestDenoiserEndToEnd(t *testing.T) {
	ctx := context.Background()
	model := &testModel{frameSize: 480, voiceProbability: 1}
	d := newTestDenoiser(t, model)
	defer d.Close()

	input := sine(1920, 440)
	for idx := 0; idx < 15; idx++ {
		require.NoError(t, d.Push(ctx, input[idx*128:(idx+1)*128]))
	}
	assert.Equal(t, 4, model.calls)
	assert.Equal(t, uint64(4), d.Stats().FramesProcessed.Load())

	var output []float32
	chunk := make([]float32, 128)
	var chunks int
	for d.Pull(ctx, chunk) {
		output = append(output, chunk...)
		chunks++
	}
	assert.Equal(t, 15, chunks)
	require.Len(t, output, 1920)
	for idx := range input {
		require.Equal(t, input[idx]/2, output[idx], "sample %d", idx)
	}

	assert.Equal(t, 0, d.buffer.WritePosition())
	assert.Equal(t, 0, d.buffer.ProcessedPosition())
	assert.Equal(t, 0, d.buffer.ReadPosition())
}

func TestDenoiserProcessQuantum(t *testing.T) {
	ctx := context.Background()
	model := &testModel{frameSize: 480, voiceProbability: 0.5}
	d := newTestDenoiser(t, model)
	defer d.Close()

	input := sine(128*30, 1000)
	output := make([]float32, 0, len(input))
	out := make([]float32, 128)
	for idx := 0; idx < 30; idx++ {
		for i := range out {
			out[i] = 42
		}
		ok, err := d.ProcessQuantum(ctx, [][]float32{input[idx*128 : (idx+1)*128]}, out)
		require.NoError(t, err)
		if isUnderrunQuantum(idx) {
			require.False(t, ok, "quantum %d", idx)
			for _, v := range out {
				require.Equal(t, float32(42), v, "output must be untouched on underrun")
			}
			continue
		}
		require.True(t, ok, "quantum %d", idx)
		output = append(output, out...)
	}

	// the gain is applied exactly once per frame
	require.Len(t, output, 26*128)
	for idx, v := range output {
		require.InDelta(t, input[idx]/2*0.6, v, 1e-6, "sample %d", idx)
	}

	stats := d.Stats().Snapshot()
	assert.Equal(t, StatsSnapshot{
		SamplesWritten:       128 * 30,
		FramesProcessed:      8,
		ChunksEmitted:        26,
		Underruns:            4,
		LastVoiceProbability: 0.5,
	}, stats, spew.Sdump(stats))
}

func TestDenoiserSecondFrameUnderrun(t *testing.T) {
	ctx := context.Background()
	model := &testModel{frameSize: 480, voiceProbability: 1}
	d := newTestDenoiser(t, model)
	defer d.Close()

	input := sine(128*8, 440)
	out := make([]float32, 128)
	for idx := 0; idx < 6; idx++ {
		_, err := d.ProcessQuantum(ctx, [][]float32{input[idx*128 : (idx+1)*128]}, out)
		require.NoError(t, err)
	}
	require.Equal(t, 96, d.buffer.Available())

	for i := range out {
		out[i] = 42
	}
	ok, err := d.ProcessQuantum(ctx, [][]float32{input[6*128 : 7*128]}, out)
	require.NoError(t, err)
	require.False(t, ok, "only 96 processed samples are ready")
	for _, v := range out {
		require.Equal(t, float32(42), v, "output must be untouched on underrun")
	}
	assert.Equal(t, 1, model.calls)
	assert.Equal(t, uint64(4), d.Stats().Underruns.Load())

	ok, err = d.ProcessQuantum(ctx, [][]float32{input[7*128 : 8*128]}, out)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 2, model.calls)
	for idx, v := range out {
		require.Equal(t, input[384+idx]/2, v, "sample %d", idx)
	}
	assert.Equal(t, 960-512, d.buffer.Available())
}

func TestDenoiserOffline(t *testing.T) {
	ctx := context.Background()
	model := &testModel{frameSize: 480, voiceProbability: 1}
	d := newTestDenoiser(t, model)
	defer d.Close()

	input := sine(1920, 440)
	output, err := audio.RunOffline(ctx, d, 128, input)
	require.NoError(t, err)

	// every input sample reaches the output, in place
	require.Len(t, output, len(input))
	for idx := range input {
		require.Equal(t, input[idx]/2, output[idx], "sample %d", idx)
	}
	assert.Equal(t, StatsSnapshot{
		SamplesWritten:       1920 + 4*128,
		FramesProcessed:      5,
		ChunksEmitted:        15,
		Underruns:            4,
		LastVoiceProbability: 1,
	}, d.Stats().Snapshot())
}

func TestDenoiserFrameCount(t *testing.T) {
	ctx := context.Background()
	rng := rand.New(rand.NewSource(0))
	for _, frameSize := range []uint{480, 160, 441} {
		t.Run(fmt.Sprint(frameSize), func(t *testing.T) {
			model := &testModel{frameSize: frameSize, voiceProbability: 1}
			d := newTestDenoiser(t, model)
			defer d.Close()

			var total int
			pulled := make([]float32, 1)
			for idx := 0; idx < 200; idx++ {
				chunk := make([]float32, 1+rng.Intn(300))
				require.NoError(t, d.Push(ctx, chunk))
				total += len(chunk)
				for d.Pull(ctx, pulled) {
				}
				require.Equal(t, total/int(frameSize), model.calls)
			}
		})
	}
}

func TestDenoiserMissingInput(t *testing.T) {
	ctx := context.Background()
	model := &testModel{frameSize: 480, voiceProbability: 1}
	d := newTestDenoiser(t, model)
	defer d.Close()

	out := []float32{1, 2, 3}
	for _, inputs := range [][][]float32{nil, {}, {nil}, {{}}} {
		ok, err := d.ProcessQuantum(ctx, inputs, out)
		require.NoError(t, err)
		assert.False(t, ok)
	}
	assert.Equal(t, []float32{1, 2, 3}, out)
	assert.Zero(t, d.Stats().SamplesWritten.Load())
	assert.Zero(t, d.Stats().Underruns.Load())
}

func TestDenoiserCapacityExceeded(t *testing.T) {
	ctx := context.Background()
	d := newTestDenoiser(t, &testModel{frameSize: 480, voiceProbability: 1})
	defer d.Close()

	chunk := make([]float32, 128)
	for idx := 0; idx < 15; idx++ {
		require.NoError(t, d.Push(ctx, chunk))
	}
	err := d.Push(ctx, chunk)
	require.ErrorIs(t, err, ErrCapacityExceeded)

	// sticky
	_, err = d.ProcessQuantum(ctx, [][]float32{chunk}, chunk)
	assert.ErrorIs(t, err, ErrCapacityExceeded)
	assert.False(t, d.Pull(ctx, chunk))
	assert.ErrorIs(t, d.Err(), ErrCapacityExceeded)
}

func TestDenoiserInferenceError(t *testing.T) {
	ctx := context.Background()
	model := &testModel{frameSize: 480, voiceProbability: 1, failAtCall: 2}
	d := newTestDenoiser(t, model)
	defer d.Close()

	chunk := make([]float32, 128)
	var err error
	for idx := 0; idx < 8 && err == nil; idx++ {
		_, err = d.ProcessQuantum(ctx, [][]float32{chunk}, chunk)
	}
	require.ErrorIs(t, err, ErrInference)
	_, err = d.ProcessQuantum(ctx, [][]float32{chunk}, chunk)
	assert.ErrorIs(t, err, ErrInference)
	assert.Equal(t, 2, model.calls, "no retries")
}

func TestDenoiserConstructionFailure(t *testing.T) {
	ctx := context.Background()

	t.Run("factory", func(t *testing.T) {
		_, err := New(ctx, DefaultConfig(), func(context.Context) (noisesuppression.NoiseSuppression, error) {
			return nil, fmt.Errorf("no model")
		})
		assert.Error(t, err)
	})

	t.Run("zero_quantum", func(t *testing.T) {
		model := &testModel{frameSize: 480}
		_, err := New(ctx, Config{}, model.factory())
		assert.Error(t, err)
		assert.Zero(t, model.closeCount)
	})

	t.Run("alloc", func(t *testing.T) {
		model := &testModel{frameSize: 480, allocErr: fmt.Errorf("out of memory")}
		_, err := New(ctx, DefaultConfig(), model.factory())
		assert.Error(t, err)
		assert.Equal(t, 1, model.closeCount)
	})

	t.Run("frame_size_mismatch", func(t *testing.T) {
		model := &testModel{frameSize: 480}
		cfg := DefaultConfig()
		cfg.FrameSize = 512
		_, err := New(ctx, cfg, model.factory())
		assert.Error(t, err)
		assert.Equal(t, 1, model.closeCount)
	})

	t.Run("sample_rate_mismatch", func(t *testing.T) {
		model := &testModel{frameSize: 480}
		cfg := DefaultConfig()
		cfg.SampleRate = 16000
		_, err := New(ctx, cfg, model.factory())
		assert.ErrorContains(t, err, "sample rate")
		assert.Equal(t, 1, model.closeCount)
	})

	t.Run("zero_frame_size", func(t *testing.T) {
		model := &testModel{frameSize: 0}
		_, err := New(ctx, DefaultConfig(), model.factory())
		assert.Error(t, err)
		assert.Equal(t, 1, model.closeCount)
	})
}

func TestDenoiserSampleRate(t *testing.T) {
	model := &testModel{frameSize: 480}
	cfg := DefaultConfig()
	cfg.SampleRate = audio.DefaultSampleRate
	d, err := New(context.Background(), cfg, model.factory())
	require.NoError(t, err)
	require.NoError(t, d.Close())
}

func TestDenoiserClose(t *testing.T) {
	model := &testModel{frameSize: 480}
	d := newTestDenoiser(t, model)
	require.NoError(t, d.Close())
	assert.ErrorIs(t, d.Close(), ErrAlreadyClosed)
	assert.Equal(t, 1, model.closeCount)

	_, err := d.ProcessQuantum(context.Background(), [][]float32{make([]float32, 128)}, make([]float32, 128))
	assert.ErrorIs(t, err, ErrAlreadyClosed)
}

func TestDenoiserNoAllocations(t *testing.T) {
	ctx := context.Background()
	d, err := New(ctx, DefaultConfig(), noisesuppression.DummyFactory())
	require.NoError(t, err)
	defer d.Close()

	inputs := [][]float32{sine(128, 440)}
	output := make([]float32, 128)
	for idx := 0; idx < 15; idx++ {
		_, err := d.ProcessQuantum(ctx, inputs, output)
		require.NoError(t, err)
	}

	allocs := testing.AllocsPerRun(100, func() {
		_, _ = d.ProcessQuantum(ctx, inputs, output)
	})
	assert.Zero(t, allocs)
}

func BenchmarkProcessQuantum(b *testing.B) {
	ctx := context.Background()
	d, err := New(ctx, DefaultConfig(), noisesuppression.DummyFactory())
	require.NoError(b, err)
	defer d.Close()

	inputs := [][]float32{sine(128, 440)}
	output := make([]float32, 128)
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := d.ProcessQuantum(ctx, inputs, output); err != nil {
			b.Fatal(err)
		}
	}
}
