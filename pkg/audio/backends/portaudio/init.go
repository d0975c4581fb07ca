package portaudio

import (
	"github.com/xaionaro-go/rtdenoise/pkg/audio/registry"
	"github.com/xaionaro-go/rtdenoise/pkg/audio/types"
)

const (
	Priority = 60
)

func init() {
	registry.RegisterHostFactory(Priority, HostFactory{})
}

type HostFactory struct{}

func (HostFactory) NewHost() (types.Host, error) {
	h, err := NewHost()
	if err != nil {
		return nil, err
	}
	return h, nil
}
