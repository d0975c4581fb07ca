package denoiser

import (
	"errors"

	"github.com/xaionaro-go/rtdenoise/pkg/ringbuffer"
)

var (
	// ErrCapacityExceeded means the producer wrote more than the
	// consumer drained. It is fatal for the stream.
	ErrCapacityExceeded = ringbuffer.ErrCapacityExceeded

	// ErrInference wraps a failure of the noise-suppression model.
	ErrInference = errors.New("noise suppression inference failed")

	ErrAlreadyClosed = errors.New("already closed")
)
