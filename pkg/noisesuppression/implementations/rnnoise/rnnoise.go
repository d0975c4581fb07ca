//go:build rnnoise
// +build rnnoise

package rnnoise

import (
	"context"
	"encoding/binary"
	"fmt"
	"unsafe"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/xaionaro-go/rtdenoise/pkg/audio"
	"github.com/xaionaro-go/rtdenoise/pkg/noisesuppression"
)

/*
#cgo pkg-config: rnnoise
#cgo CFLAGS: -march=native
#include <stdlib.h>
#include <rnnoise.h>
*/
import "C"

const (
	SampleRate = audio.SampleRate(48_000)
)

type RNNoise struct {
	denoiseState *C.DenoiseState
	frames       []unsafe.Pointer
}

var _ noisesuppression.NoiseSuppression = (*RNNoise)(nil)

var frameSize uint

func init() {
	frameSize = uint(C.rnnoise_get_frame_size())
}

func New(ctx context.Context) (*RNNoise, error) {
	denoiseState := C.rnnoise_create(nil)
	if denoiseState == nil {
		return nil, fmt.Errorf("rnnoise_create returned NULL")
	}
	logger.Debugf(ctx, "created an RNNoise state, frame size: %d", frameSize)
	return &RNNoise{
		denoiseState: denoiseState,
	}, nil
}

// Factory is a noisesuppression.Factory of RNNoise models.
func Factory(ctx context.Context) (noisesuppression.NoiseSuppression, error) {
	s, err := New(ctx)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (s *RNNoise) Close() error {
	if s.denoiseState == nil {
		return fmt.Errorf("double-free attempt")
	}
	C.rnnoise_destroy(s.denoiseState)
	s.denoiseState = nil
	for _, frame := range s.frames {
		C.free(frame)
	}
	s.frames = nil
	return nil
}

func (s *RNNoise) Encoding(ctx context.Context) (audio.Encoding, error) {
	pcmFormat := audio.PCMFormatFloat32BE
	if binary.NativeEndian.Uint16([]byte{1, 0}) == 1 {
		pcmFormat = audio.PCMFormatFloat32LE
	}
	return audio.EncodingPCM{
		PCMFormat:  pcmFormat,
		SampleRate: SampleRate,
	}, nil
}

func (s *RNNoise) FrameSize() uint {
	return frameSize
}

// AllocFrame allocates the frame in C memory, so that the model reads
// and writes it without copying. It is freed on Close.
func (s *RNNoise) AllocFrame() ([]float32, error) {
	if s.denoiseState == nil {
		return nil, fmt.Errorf("the model is already closed")
	}
	ptr := C.calloc(C.size_t(frameSize), C.size_t(unsafe.Sizeof(C.float(0))))
	if ptr == nil {
		return nil, fmt.Errorf("unable to allocate %d floats", frameSize)
	}
	s.frames = append(s.frames, ptr)
	return unsafe.Slice((*float32)(ptr), frameSize), nil
}

func (s *RNNoise) SuppressNoise(ctx context.Context, frame []float32) (float64, error) {
	if uint(len(frame)) != frameSize {
		return 0, fmt.Errorf("invalid frame size: %d != %d", len(frame), frameSize)
	}
	if s.denoiseState == nil {
		return 0, fmt.Errorf("the model is already closed")
	}
	ptr := (*C.float)(unsafe.Pointer(unsafe.SliceData(frame)))
	vadProb := C.rnnoise_process_frame(s.denoiseState, ptr, ptr)
	return float64(vadProb), nil
}
