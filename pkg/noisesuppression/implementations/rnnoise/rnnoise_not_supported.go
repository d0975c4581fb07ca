//go:build !rnnoise
// +build !rnnoise

package rnnoise

import (
	"context"
	"fmt"

	"github.com/xaionaro-go/rtdenoise/pkg/audio"
	"github.com/xaionaro-go/rtdenoise/pkg/noisesuppression"
)

const (
	SampleRate = audio.SampleRate(48_000)
)

type RNNoise = noisesuppression.Dummy

func New(context.Context) (*RNNoise, error) {
	return nil, fmt.Errorf("built without tag 'rnnoise'")
}

func Factory(ctx context.Context) (noisesuppression.NoiseSuppression, error) {
	s, err := New(ctx)
	if err != nil {
		return nil, err
	}
	return s, nil
}
