package portaudio

import (
	"context"
	"fmt"
	"sync"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/gordonklaus/portaudio"
	"github.com/hashicorp/go-multierror"
	"github.com/xaionaro-go/rtdenoise/pkg/audio/types"
)

type RunStream struct {
	portAudioStream *portaudio.Stream
	node            types.Node
	ctx             context.Context
	cancelFunc      context.CancelFunc
	errCh           chan error
	closeOnce       sync.Once
	closeErr        error
}

var _ types.RunStream = (*RunStream)(nil)

func newRunStream(
	ctx context.Context,
	node types.Node,
) *RunStream {
	ctx, cancelFunc := context.WithCancel(ctx)
	return &RunStream{
		node:       node,
		ctx:        ctx,
		cancelFunc: cancelFunc,
		errCh:      make(chan error, 1),
	}
}

// process is called from the audio thread.
func (s *RunStream) process(in, out [][]float32) {
	output := out[0]
	ok, err := s.node.ProcessQuantum(s.ctx, in, output)
	if err != nil {
		select {
		case s.errCh <- err:
		default:
		}
	}
	if err != nil || !ok {
		clear(output)
	}
}

// Drain blocks until the stream is closed or the node fails.
func (s *RunStream) Drain() error {
	select {
	case <-s.ctx.Done():
		return nil
	case err := <-s.errCh:
		logger.Errorf(s.ctx, "the node failed: %v", err)
		closeErr := s.Close()
		if closeErr != nil {
			return multierror.Append(fmt.Errorf("the node failed: %w", err), closeErr)
		}
		return fmt.Errorf("the node failed: %w", err)
	}
}

func (s *RunStream) Close() error {
	s.closeOnce.Do(func() {
		s.cancelFunc()
		var mErr *multierror.Error
		if err := s.portAudioStream.Abort(); err != nil {
			mErr = multierror.Append(mErr, fmt.Errorf("unable to abort the stream: %w", err))
		}
		if err := s.portAudioStream.Close(); err != nil {
			mErr = multierror.Append(mErr, fmt.Errorf("unable to close the stream: %w", err))
		}
		s.closeErr = mErr.ErrorOrNil()
	})
	return s.closeErr
}
