package ringbuffer

import (
	"errors"
)

var (
	// ErrCapacityExceeded is returned when a write would overwrite
	// samples that were not read yet.
	ErrCapacityExceeded = errors.New("ring buffer capacity exceeded")

	// ErrNotContiguous is returned when a requested region of
	// unprocessed samples crosses the end of the storage.
	ErrNotContiguous = errors.New("the requested region is not contiguous")

	ErrNotEnoughData = errors.New("not enough samples")
)
