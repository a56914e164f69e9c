package provider

import (
	"fmt"
	"sync"
)

// Factory builds a concrete adapter. It runs at most once per backend type;
// the resulting instance is cached for the life of the process and shared
// across concurrent requests.
type Factory func() (Provider, error)

var (
	registryMu sync.Mutex
	factories  = map[string]Factory{}
	instances  = map[string]Provider{}
)

func Register(backendType string, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	factories[backendType] = factory
}

// Resolve returns the cached adapter for the given backend type, constructing
// it lazily on first use. Construction failures (e.g. missing credentials)
// are not cached, so a fixed environment recovers on the next call.
func Resolve(backendType string) (Provider, error) {
	registryMu.Lock()
	defer registryMu.Unlock()

	if instance, ok := instances[backendType]; ok {
		return instance, nil
	}

	factory, ok := factories[backendType]
	if !ok {
		return nil, fmt.Errorf("unsupported provider type: %s", backendType)
	}

	instance, err := factory()
	if err != nil {
		return nil, err
	}

	instances[backendType] = instance
	return instance, nil
}

// ClearCache drops all cached adapter instances. Test isolation only.
func ClearCache() {
	registryMu.Lock()
	defer registryMu.Unlock()
	instances = map[string]Provider{}
}
