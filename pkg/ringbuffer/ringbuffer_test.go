package ringbuffer

import (
	"testing"

	"github.com/davecgh/go-spew/spew"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ramp(start, n int) []float32 {
	r := make([]float32, n)
	for idx := range r {
		r[idx] = float32(start + idx)
	}
	return r
}

func processAll(t *testing.T, r *RingBuffer, frameSize int) int {
	var frames int
	for r.Unprocessed() >= frameSize {
		_, err := r.UnprocessedFrame(frameSize)
		require.NoError(t, err)
		require.NoError(t, r.MarkProcessed(frameSize))
		frames++
	}
	return frames
}

func TestCapacityFor(t *testing.T) {
	for _, tc := range []struct {
		Quantum, Frame, Expected uint
	}{
		{128, 480, 1920},
		{480, 128, 1920},
		{128, 128, 128},
		{256, 480, 3840},
		{160, 480, 480},
		{441, 480, 70560},
	} {
		capacity, err := CapacityFor(tc.Quantum, tc.Frame)
		require.NoError(t, err)
		assert.Equal(t, tc.Expected, capacity, spew.Sdump(tc))
		assert.Zero(t, capacity%tc.Quantum)
		assert.Zero(t, capacity%tc.Frame)
	}

	_, err := CapacityFor(0, 480)
	assert.Error(t, err)
	_, err = CapacityFor(128, 0)
	assert.Error(t, err)
}

func TestNew(t *testing.T) {
	_, err := New(0)
	assert.Error(t, err)

	r, err := New(1920)
	require.NoError(t, err)
	assert.Equal(t, 1920, r.Capacity())
	assert.Zero(t, r.Unprocessed())
	assert.Zero(t, r.Available())
}

func TestWriteProcessRead(t *testing.T) {
	r, err := New(1920)
	require.NoError(t, err)

	require.NoError(t, r.Write(ramp(0, 128)))
	assert.Equal(t, 128, r.Unprocessed())
	assert.Zero(t, r.Available())

	out := make([]float32, 128)
	assert.False(t, r.Read(out), "nothing is processed yet")
	assert.Equal(t, make([]float32, 128), out, "a failed read must not touch dst")

	_, err = r.UnprocessedFrame(480)
	assert.ErrorIs(t, err, ErrNotEnoughData)

	for idx := 1; idx < 4; idx++ {
		require.NoError(t, r.Write(ramp(idx*128, 128)))
	}
	frame, err := r.UnprocessedFrame(480)
	require.NoError(t, err)
	assert.Equal(t, ramp(0, 480), frame)
	for idx := range frame {
		frame[idx] *= 2
	}
	require.NoError(t, r.MarkProcessed(480))
	assert.Equal(t, 32, r.Unprocessed())
	assert.Equal(t, 480, r.Available())

	require.True(t, r.Read(out))
	for idx, v := range out {
		assert.Equal(t, float32(2*idx), v)
	}
	assert.Equal(t, 352, r.Available())
}

func TestWriteCapacityExceeded(t *testing.T) {
	r, err := New(1920)
	require.NoError(t, err)

	for idx := 0; idx < 15; idx++ {
		require.NoError(t, r.Write(ramp(idx*128, 128)))
	}
	assert.Equal(t, 0, r.WritePosition())

	err = r.Write(make([]float32, 1))
	assert.ErrorIs(t, err, ErrCapacityExceeded)

	// processing does not free the space, only reading does
	assert.Equal(t, 4, processAll(t, r, 480))
	err = r.Write(make([]float32, 1))
	assert.ErrorIs(t, err, ErrCapacityExceeded)

	require.True(t, r.Read(make([]float32, 128)))
	require.NoError(t, r.Write(make([]float32, 128)))
	assert.ErrorIs(t, r.Write(make([]float32, 1)), ErrCapacityExceeded)
}

func TestCursorsWrap(t *testing.T) {
	r, err := New(1920)
	require.NoError(t, err)

	out := make([]float32, 128)
	var frames int
	for idx := 0; idx < 15; idx++ {
		require.NoError(t, r.Write(ramp(idx*128, 128)))
		frames += processAll(t, r, 480)
		// a 480-sample frame is behind 128-sample quanta at 0, 1, 2 and 6
		require.True(t, r.Read(out) == (idx >= 3 && idx != 6), "quantum %d", idx)
	}
	assert.Equal(t, 4, frames)
	assert.Equal(t, 0, r.WritePosition())
	assert.Equal(t, 0, r.ProcessedPosition())
	assert.Equal(t, 1408, r.ReadPosition())
	assert.Equal(t, 512, r.Available())

	for idx := 0; idx < 4; idx++ {
		require.True(t, r.Read(out))
	}
	assert.Equal(t, 0, r.ReadPosition(), "the read cursor wraps to zero exactly at capacity")
	assert.Equal(t, ramp(1792, 128), out)
	assert.Zero(t, r.Available())
}

func TestSecondFrameUnderrun(t *testing.T) {
	r, err := New(1920)
	require.NoError(t, err)

	out := make([]float32, 128)
	for idx := 0; idx < 6; idx++ {
		require.NoError(t, r.Write(ramp(idx*128, 128)))
		processAll(t, r, 480)
		r.Read(out)
	}
	require.Equal(t, 384, r.ReadPosition())
	require.Equal(t, 480, r.ProcessedPosition())
	require.Equal(t, 96, r.Available())

	// the 7th quantum does not complete the second frame
	require.NoError(t, r.Write(ramp(6*128, 128)))
	require.Zero(t, processAll(t, r, 480))
	out[0] = 42
	require.False(t, r.Read(out))
	assert.Equal(t, float32(42), out[0], spew.Sdump(out[:4]))
	assert.Equal(t, 384, r.ReadPosition())

	// the 8th one does
	require.NoError(t, r.Write(ramp(7*128, 128)))
	require.Equal(t, 1, processAll(t, r, 480))
	require.True(t, r.Read(out))
	assert.Equal(t, ramp(384, 128), out)
	assert.Equal(t, 960-512, r.Available())
}

func TestReadAcrossWrapAfterProcessedWrapped(t *testing.T) {
	r, err := New(1920)
	require.NoError(t, err)

	for idx := 0; idx < 15; idx++ {
		require.NoError(t, r.Write(ramp(idx*128, 128)))
	}
	require.Equal(t, 4, processAll(t, r, 480))
	for idx := 0; idx < 14; idx++ {
		require.True(t, r.Read(make([]float32, 128)))
	}
	require.Equal(t, 1792, r.ReadPosition())

	require.NoError(t, r.Write(ramp(10000, 512)))
	require.Equal(t, 1, processAll(t, r, 480))

	// the processed cursor is a lap ahead of the read cursor here;
	// the distance between them still counts as available
	require.Equal(t, 480, r.ProcessedPosition())
	assert.Equal(t, 608, r.Available())

	out := make([]float32, 256)
	require.True(t, r.Read(out))
	assert.Equal(t, append(ramp(1792, 128), ramp(10000, 128)...), out)
	assert.Equal(t, 128, r.ReadPosition())
	assert.Equal(t, 352, r.Available())
}

func TestUnprocessedFrameNotContiguous(t *testing.T) {
	r, err := New(1000)
	require.NoError(t, err)

	require.NoError(t, r.Write(make([]float32, 800)))
	require.NoError(t, r.MarkProcessed(800))
	require.True(t, r.Read(make([]float32, 800)))
	require.NoError(t, r.Write(make([]float32, 400)))

	_, err = r.UnprocessedFrame(400)
	assert.ErrorIs(t, err, ErrNotContiguous)
	_, err = r.UnprocessedFrame(200)
	assert.NoError(t, err)
}

func TestMarkProcessedTooMuch(t *testing.T) {
	r, err := New(16)
	require.NoError(t, err)
	require.NoError(t, r.Write(make([]float32, 8)))
	assert.ErrorIs(t, r.MarkProcessed(9), ErrNotEnoughData)
}

func TestReset(t *testing.T) {
	r, err := New(16)
	require.NoError(t, err)
	require.NoError(t, r.Write(ramp(1, 10)))
	require.NoError(t, r.MarkProcessed(4))
	require.True(t, r.Read(make([]float32, 2)))

	r.Reset()
	assert.Zero(t, r.WritePosition())
	assert.Zero(t, r.ProcessedPosition())
	assert.Zero(t, r.ReadPosition())
	assert.Zero(t, r.Unprocessed())
	assert.Zero(t, r.Available())
	require.NoError(t, r.Write(make([]float32, 16)))
}

func BenchmarkWriteProcessRead(b *testing.B) {
	r, err := New(1920)
	require.NoError(b, err)
	in := ramp(0, 128)
	out := make([]float32, 128)
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := r.Write(in); err != nil {
			b.Fatal(err)
		}
		for r.Unprocessed() >= 480 {
			if err := r.MarkProcessed(480); err != nil {
				b.Fatal(err)
			}
		}
		r.Read(out)
	}
}
