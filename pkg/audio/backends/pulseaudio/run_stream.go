package pulseaudio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/hashicorp/go-multierror"
	"github.com/jfreymuth/pulse"
	"github.com/xaionaro-go/rtdenoise/pkg/audio/types"
	"github.com/xaionaro-go/rtdenoise/pkg/nodestream"
)

type RunStream struct {
	record     *pulse.RecordStream
	playback   *pulse.PlaybackStream
	processed  *nodestream.Stream
	pipeWriter *io.PipeWriter
	closeOnce  sync.Once
	closed     chan struct{}
	closeErr   error
}

var _ types.RunStream = (*RunStream)(nil)

// Drain blocks until the stream is closed or the processing stops.
func (s *RunStream) Drain() error {
	select {
	case <-s.closed:
		return nil
	case <-s.processed.Done():
	}
	err := s.processed.Err()
	if err == nil || errors.Is(err, io.EOF) || errors.Is(err, context.Canceled) {
		return nil
	}
	var mErr *multierror.Error
	mErr = multierror.Append(mErr, fmt.Errorf("the processing stopped: %w", err))
	if err := s.record.Error(); err != nil {
		mErr = multierror.Append(mErr, fmt.Errorf("an error occurred during recording: %w", err))
	}
	if err := s.playback.Error(); err != nil {
		mErr = multierror.Append(mErr, fmt.Errorf("an error occurred during playback: %w", err))
	}
	return mErr.ErrorOrNil()
}

func (s *RunStream) Close() (err error) {
	defer func() {
		r := recover()
		if r != nil {
			err = fmt.Errorf("got a panic: %v", r)
		}
	}()
	s.closeOnce.Do(func() {
		close(s.closed)
		var mErr *multierror.Error
		if s.record != nil {
			s.record.Stop()
			s.record.Close()
		}
		if s.playback != nil {
			s.playback.Stop()
			s.playback.Close()
		}
		if err := s.pipeWriter.Close(); err != nil {
			mErr = multierror.Append(mErr, fmt.Errorf("unable to close the pipe: %w", err))
		}
		if err := s.processed.Close(); err != nil {
			mErr = multierror.Append(mErr, fmt.Errorf("unable to stop the processing: %w", err))
		}
		s.closeErr = mErr.ErrorOrNil()
	})
	return s.closeErr
}
