package audio

import (
	"context"
)

type HostDummy struct{}

var _ Host = HostDummy{}

func (HostDummy) Close() error {
	return nil
}

func (HostDummy) Ping(context.Context) error {
	return nil
}

func (HostDummy) Run(
	ctx context.Context,
	cfg HostConfig,
	node Node,
) (RunStream, error) {
	return StreamDummy{}, nil
}

type StreamDummy struct{}

var _ RunStream = StreamDummy{}

func (StreamDummy) Drain() error {
	return nil
}

func (StreamDummy) Close() error {
	return nil
}
