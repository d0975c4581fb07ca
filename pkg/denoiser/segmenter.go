package denoiser

import (
	"context"
	"fmt"

	"github.com/xaionaro-go/rtdenoise/pkg/gainshaper"
	"github.com/xaionaro-go/rtdenoise/pkg/ringbuffer"
)

// Segmenter accumulates chunks of any size in the ring buffer and
// processes every complete frame in place.
type Segmenter struct {
	buffer    *ringbuffer.RingBuffer
	engine    *Engine
	shaper    *gainshaper.Shaper
	frameSize int
	stats     *Stats
}

func NewSegmenter(
	buffer *ringbuffer.RingBuffer,
	engine *Engine,
	shaper *gainshaper.Shaper,
	stats *Stats,
) (*Segmenter, error) {
	frameSize := engine.FrameSize()
	if buffer.Capacity()%frameSize != 0 {
		return nil, fmt.Errorf("the buffer capacity %d is not a multiple of the frame size %d", buffer.Capacity(), frameSize)
	}
	return &Segmenter{
		buffer:    buffer,
		engine:    engine,
		shaper:    shaper,
		frameSize: frameSize,
		stats:     stats,
	}, nil
}

// Push writes the chunk and processes all the frames that became
// complete. It returns the amount of processed frames.
func (s *Segmenter) Push(ctx context.Context, chunk []float32) (int, error) {
	if err := s.buffer.Write(chunk); err != nil {
		return 0, err
	}
	s.stats.SamplesWritten.Add(uint64(len(chunk)))

	var frames int
	for s.buffer.Unprocessed() >= s.frameSize {
		frame, err := s.buffer.UnprocessedFrame(s.frameSize)
		if err != nil {
			return frames, fmt.Errorf("unable to get the frame: %w", err)
		}
		voiceProbability, err := s.engine.ProcessFrame(ctx, frame)
		if err != nil {
			return frames, err
		}
		s.shaper.Apply(frame, voiceProbability)
		if err := s.buffer.MarkProcessed(s.frameSize); err != nil {
			return frames, fmt.Errorf("unable to mark the frame as processed: %w", err)
		}
		s.stats.FramesProcessed.Add(1)
		s.stats.setLastVoiceProbability(voiceProbability)
		frames++
	}
	return frames, nil
}
