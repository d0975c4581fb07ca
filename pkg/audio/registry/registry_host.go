package registry

import (
	"fmt"
	"reflect"
	"sort"

	"github.com/xaionaro-go/rtdenoise/pkg/audio/types"
)

type HostFactory interface {
	NewHost() (types.Host, error)
}

type hostFactoryWithPriority struct {
	Priority int
	HostFactory
}

var hostFactoryRegistry = map[reflect.Type]hostFactoryWithPriority{}

func RegisterHostFactory(
	priority int,
	hostFactory HostFactory,
) {
	t := reflect.ValueOf(hostFactory).Type()
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if _, ok := hostFactoryRegistry[t]; ok {
		panic(fmt.Errorf("there is already registered a factory of Host of type %v", t))
	}
	hostFactoryRegistry[t] = hostFactoryWithPriority{
		Priority:    priority,
		HostFactory: hostFactory,
	}
}

// HostFactories returns the registered factories, the highest priority first.
func HostFactories() []HostFactory {
	var factoriesWithPriorities []hostFactoryWithPriority
	for _, factory := range hostFactoryRegistry {
		factoriesWithPriorities = append(factoriesWithPriorities, factory)
	}
	sort.Slice(factoriesWithPriorities, func(i, j int) bool {
		return factoriesWithPriorities[i].Priority > factoriesWithPriorities[j].Priority
	})

	var factories []HostFactory
	for _, factory := range factoriesWithPriorities {
		factories = append(factories, factory.HostFactory)
	}

	return factories
}

// HostFactoryByName returns the registered factory whose type name
// (lowercased package name of the backend) matches name.
func HostFactoryByName(name string) (HostFactory, error) {
	for t, factory := range hostFactoryRegistry {
		if backendName(t) == name {
			return factory.HostFactory, nil
		}
	}
	return nil, fmt.Errorf("there is no registered host backend '%s'", name)
}

func backendName(t reflect.Type) string {
	pkgPath := t.PkgPath()
	for idx := len(pkgPath) - 1; idx >= 0; idx-- {
		if pkgPath[idx] == '/' {
			return pkgPath[idx+1:]
		}
	}
	return pkgPath
}
