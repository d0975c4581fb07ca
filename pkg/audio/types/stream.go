package types

import (
	"io"
)

type Stream interface {
	io.Closer
}

// RunStream is a running Host stream.
type RunStream interface {
	Stream

	// Drain blocks until the stream has stopped and returns the reason
	// it stopped, if it was not a Close.
	Drain() error
}
