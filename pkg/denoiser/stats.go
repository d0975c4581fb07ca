package denoiser

import (
	"math"
	"sync/atomic"
)

// Stats are updated by the real-time path and may be read
// concurrently from any goroutine.
type Stats struct {
	SamplesWritten  atomic.Uint64
	FramesProcessed atomic.Uint64
	ChunksEmitted   atomic.Uint64
	Underruns       atomic.Uint64

	lastVoiceProbability atomic.Uint64
}

func (s *Stats) LastVoiceProbability() float64 {
	return math.Float64frombits(s.lastVoiceProbability.Load())
}

func (s *Stats) setLastVoiceProbability(v float64) {
	s.lastVoiceProbability.Store(math.Float64bits(v))
}

// StatsSnapshot is a plain copy of Stats.
type StatsSnapshot struct {
	SamplesWritten       uint64
	FramesProcessed      uint64
	ChunksEmitted        uint64
	Underruns            uint64
	LastVoiceProbability float64
}

func (s *Stats) Snapshot() StatsSnapshot {
	return StatsSnapshot{
		SamplesWritten:       s.SamplesWritten.Load(),
		FramesProcessed:      s.FramesProcessed.Load(),
		ChunksEmitted:        s.ChunksEmitted.Load(),
		Underruns:            s.Underruns.Load(),
		LastVoiceProbability: s.LastVoiceProbability(),
	}
}
