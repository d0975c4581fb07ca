package audio

import (
	"context"
	"fmt"
	"sync"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/hashicorp/go-multierror"
	"github.com/xaionaro-go/rtdenoise/pkg/audio/registry"
)

var (
	lastSuccessfulHostFactory       registry.HostFactory
	lastSuccessfulHostFactoryLocker sync.Mutex
)

func getLastSuccessfulHostFactory() registry.HostFactory {
	lastSuccessfulHostFactoryLocker.Lock()
	defer lastSuccessfulHostFactoryLocker.Unlock()
	return lastSuccessfulHostFactory
}

// NewHostAuto returns the first registered Host (by priority) that
// could be initialized and pinged. If none works, HostDummy is returned.
func NewHostAuto(
	ctx context.Context,
) Host {
	factory := getLastSuccessfulHostFactory()
	if factory != nil {
		host, err := factory.NewHost()
		if err == nil {
			if err := host.Ping(ctx); err == nil {
				return host
			}
			_ = host.Close()
		}
	}

	var mErr *multierror.Error
	for _, factory := range registry.HostFactories() {
		host, err := factory.NewHost()
		logger.Debugf(ctx, "initializing host %T result is %v", factory, err)
		if err != nil {
			mErr = multierror.Append(mErr, fmt.Errorf("unable to initialize %T: %w", factory, err))
			continue
		}

		err = host.Ping(ctx)
		logger.Debugf(ctx, "pinging host %T result is %v", host, err)
		if err != nil {
			mErr = multierror.Append(mErr, fmt.Errorf("unable to ping %T: %w", host, err))
			_ = host.Close()
			continue
		}

		lastSuccessfulHostFactoryLocker.Lock()
		defer lastSuccessfulHostFactoryLocker.Unlock()
		lastSuccessfulHostFactory = factory
		return host
	}

	logger.Infof(ctx, "was unable to initialize any audio host: %v", mErr.ErrorOrNil())
	return HostDummy{}
}

// NewHostByName initializes the host backend registered under the given
// name ("portaudio", "pulseaudio"). Name "auto" is the same as NewHostAuto.
func NewHostByName(
	ctx context.Context,
	name string,
) (Host, error) {
	if name == "" || name == "auto" {
		return NewHostAuto(ctx), nil
	}
	factory, err := registry.HostFactoryByName(name)
	if err != nil {
		return nil, err
	}
	host, err := factory.NewHost()
	if err != nil {
		return nil, fmt.Errorf("unable to initialize host '%s': %w", name, err)
	}
	if err := host.Ping(ctx); err != nil {
		_ = host.Close()
		return nil, fmt.Errorf("unable to ping host '%s': %w", name, err)
	}
	return host, nil
}
