// Package alerts exposes the driver alert operations over HTTP: trap
// normalization, live polling, and clearing. It holds no state of its own;
// every request is served by the storage's driver.
package alerts

import (
	"context"
	"errors"

	"github.com/merliyatf/delfin/pkg/driver"
	"github.com/merliyatf/delfin/pkg/module"
	"go.uber.org/zap"
)

// Compile-time interface guards.
var (
	_ module.Module       = (*Module)(nil)
	_ module.HTTPProvider = (*Module)(nil)
)

// DriverProvider resolves a storage_id to its driver. Satisfied by the
// driver manager.
type DriverProvider interface {
	Driver(ctx context.Context, storageID string) (driver.Driver, error)
}

// Module implements the alerts module.
type Module struct {
	logger  *zap.Logger
	bus     module.Publisher
	drivers DriverProvider
}

// New creates a new alerts module instance.
func New() *Module {
	return &Module{}
}

// SetDrivers injects the driver manager. Must be called before Init.
func (m *Module) SetDrivers(p DriverProvider) {
	m.drivers = p
}

func (m *Module) Info() module.Info {
	return module.Info{
		Name:         "alerts",
		Version:      "0.1.0",
		Description:  "Alert normalization and driver operations",
		Dependencies: []string{"inventory"},
		Required:     true,
	}
}

func (m *Module) Init(ctx context.Context, deps module.Dependencies) error {
	m.logger = deps.Logger
	m.bus = deps.Bus

	if m.drivers == nil {
		return errors.New("alerts: driver provider not set")
	}

	m.logger.Info("alerts module initialized")
	return nil
}

func (m *Module) Start(ctx context.Context) error {
	return nil
}

func (m *Module) Stop(ctx context.Context) error {
	return nil
}
