// Package ringbuffer implements a fixed-capacity circular storage of
// float32 samples with three cursors:
//
//	write      where the next incoming chunk goes;
//	processed  everything before it (and after read) was processed in place;
//	read       where the next outgoing chunk is taken from.
//
// Going around the circle the order is always read ≤ processed ≤ write,
// so unread data is never overwritten and nothing is read before it
// was processed.
//
// RingBuffer is not safe for concurrent use. It never allocates after New.
package ringbuffer

import (
	"fmt"
)

type RingBuffer struct {
	storage      []float32
	writePos     int
	processedPos int
	readPos      int
	unprocessed  int
	available    int
}

func New(capacity uint) (*RingBuffer, error) {
	if capacity == 0 {
		return nil, fmt.Errorf("capacity must be positive")
	}
	return &RingBuffer{
		storage: make([]float32, capacity),
	}, nil
}

func (r *RingBuffer) Capacity() int {
	return len(r.storage)
}

// Write copies the chunk at the write cursor.
func (r *RingBuffer) Write(chunk []float32) error {
	free := len(r.storage) - r.unprocessed - r.available
	if len(chunk) > free {
		return fmt.Errorf("%w: writing %d samples, but only %d are free", ErrCapacityExceeded, len(chunk), free)
	}

	n := copy(r.storage[r.writePos:], chunk)
	if n < len(chunk) {
		copy(r.storage, chunk[n:])
	}
	r.writePos = r.advance(r.writePos, len(chunk))
	r.unprocessed += len(chunk)
	return nil
}

// Unprocessed returns the amount of samples written but not yet
// marked as processed.
func (r *RingBuffer) Unprocessed() int {
	return r.unprocessed
}

// UnprocessedFrame returns a view into the storage of the first n
// unprocessed samples. The view is modified in place by the caller.
func (r *RingBuffer) UnprocessedFrame(n int) ([]float32, error) {
	if n > r.unprocessed {
		return nil, fmt.Errorf("%w: requested %d, unprocessed %d", ErrNotEnoughData, n, r.unprocessed)
	}
	end := r.processedPos + n
	if end > len(r.storage) {
		return nil, fmt.Errorf("%w: [%d:%d] with capacity %d", ErrNotContiguous, r.processedPos, end, len(r.storage))
	}
	return r.storage[r.processedPos:end:end], nil
}

// MarkProcessed advances the processed cursor by n samples.
func (r *RingBuffer) MarkProcessed(n int) error {
	if n > r.unprocessed {
		return fmt.Errorf("%w: marking %d, unprocessed %d", ErrNotEnoughData, n, r.unprocessed)
	}
	r.processedPos = r.advance(r.processedPos, n)
	r.unprocessed -= n
	r.available += n
	return nil
}

// Available returns the amount of processed samples not read yet.
func (r *RingBuffer) Available() int {
	return r.available
}

// Read copies exactly len(dst) processed samples into dst and advances
// the read cursor. If fewer are available, dst is left untouched and
// false is returned.
func (r *RingBuffer) Read(dst []float32) bool {
	if len(dst) > r.available {
		return false
	}

	n := copy(dst, r.storage[r.readPos:])
	if n < len(dst) {
		copy(dst[n:], r.storage)
	}
	r.readPos = r.advance(r.readPos, len(dst))
	r.available -= len(dst)
	return true
}

func (r *RingBuffer) WritePosition() int {
	return r.writePos
}

func (r *RingBuffer) ProcessedPosition() int {
	return r.processedPos
}

func (r *RingBuffer) ReadPosition() int {
	return r.readPos
}

// Reset drops all the content and moves every cursor to zero.
func (r *RingBuffer) Reset() {
	clear(r.storage)
	r.writePos, r.processedPos, r.readPos = 0, 0, 0
	r.unprocessed, r.available = 0, 0
}

func (r *RingBuffer) advance(pos, n int) int {
	pos += n
	if pos >= len(r.storage) {
		pos -= len(r.storage)
	}
	return pos
}
