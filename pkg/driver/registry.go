package driver

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// Factory constructs a driver for one array from its access information.
type Factory func(info AccessInfo, logger *zap.Logger) (Driver, error)

// registry maps a vendor/model key to the factory for that hardware family.
var (
	registryMu sync.RWMutex
	registry   = make(map[string]Factory)
)

// Key builds the registry key for a vendor and model family.
func Key(vendor, model string) string {
	return strings.ToLower(vendor) + "/" + strings.ToLower(model)
}

// Register adds a factory for the given vendor/model key. Vendor packages
// call this from init(). Registering a duplicate key panics: it is a
// programming error, not a runtime condition.
func Register(vendor, model string, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()

	key := Key(vendor, model)
	if _, exists := registry[key]; exists {
		panic(fmt.Sprintf("driver: duplicate registration for %q", key))
	}
	registry[key] = factory
}

// New constructs a driver for the given vendor and model. Returns an
// invalid_input error when no adapter is registered for the family.
func New(vendor, model string, info AccessInfo, logger *zap.Logger) (Driver, error) {
	registryMu.RLock()
	factory, ok := registry[Key(vendor, model)]
	registryMu.RUnlock()

	if !ok {
		return nil, NewError(ErrCodeInvalidInput,
			fmt.Sprintf("no driver registered for vendor %q model %q", vendor, model), nil)
	}
	return factory(info, logger)
}

// Supported returns the sorted list of registered vendor/model keys.
func Supported() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	keys := make([]string, 0, len(registry))
	for k := range registry {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
