package xcorr

import (
	"context"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xaionaro-go/rtdenoise/pkg/syncer"
)

func noise(seed int64, n int) []float32 {
	rng := rand.New(rand.NewSource(seed))
	r := make([]float32, n)
	for idx := range r {
		r[idx] = float32(rng.Float64()*2 - 1)
	}
	return r
}

func TestCalculateLag(t *testing.T) {
	ctx := context.Background()
	s := NewSyncer()
	defer s.Close()

	reference := noise(1, 4000)

	for _, lag := range []int{0, 37, -25, 500} {
		primary := syncer.Align(reference, lag, len(reference))
		for idx := range primary {
			primary[idx] *= 0.5
		}

		results, err := s.CalculateLag(ctx, primary, reference)
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, lag, results[0].Lag)
		assert.Greater(t, results[0].Confidence, 0.8)
	}
}

func TestCalculateLagUncorrelated(t *testing.T) {
	results, err := NewSyncer().CalculateLag(context.Background(), noise(1, 2000), noise(2, 2000))
	require.NoError(t, err)
	assert.Less(t, results[0].Confidence, 0.2)
}

func TestCalculateLagMaxLag(t *testing.T) {
	reference := noise(3, 2000)
	primary := syncer.Align(reference, 300, len(reference))

	s := &Syncer{MaxLag: 100}
	results, err := s.CalculateLag(context.Background(), primary, reference)
	require.NoError(t, err)
	assert.LessOrEqual(t, results[0].Lag, 100)
	assert.GreaterOrEqual(t, results[0].Lag, -100)
}

func TestCalculateLagErrors(t *testing.T) {
	s := NewSyncer()
	_, err := s.CalculateLag(context.Background(), nil, []float32{1})
	assert.Error(t, err)
	_, err = s.CalculateLag(context.Background(), []float32{1}, nil)
	assert.Error(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = s.CalculateLag(ctx, []float32{1}, []float32{1})
	assert.ErrorIs(t, err, context.Canceled)
}
