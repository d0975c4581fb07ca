package denoiser

import (
	"github.com/xaionaro-go/rtdenoise/pkg/ringbuffer"
)

// Emitter hands out processed samples in chunks of the size the
// consumer asks for.
type Emitter struct {
	buffer *ringbuffer.RingBuffer
	stats  *Stats
}

func NewEmitter(buffer *ringbuffer.RingBuffer, stats *Stats) *Emitter {
	return &Emitter{
		buffer: buffer,
		stats:  stats,
	}
}

// Emit fills out completely or returns false leaving out untouched
// (underrun).
func (e *Emitter) Emit(out []float32) bool {
	if !e.buffer.Read(out) {
		e.stats.Underruns.Add(1)
		return false
	}
	e.stats.ChunksEmitted.Add(1)
	return true
}
