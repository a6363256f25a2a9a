// Package inventory tracks registered storage arrays. It owns the storages
// table and is the record of truth other modules resolve a storage_id
// against. Registration verifies the array's identity through its driver
// before anything is persisted.
package inventory

import (
	"context"
	"errors"

	"github.com/merliyatf/delfin/internal/secrets"
	"github.com/merliyatf/delfin/pkg/driver"
	"github.com/merliyatf/delfin/pkg/models"
	"github.com/merliyatf/delfin/pkg/module"
	"go.uber.org/zap"
)

// Compile-time interface guards.
var (
	_ module.Module       = (*Module)(nil)
	_ module.HTTPProvider = (*Module)(nil)
)

// IdentityProber verifies a storage's identity through its driver. Wired to
// the driver manager from the composition root.
type IdentityProber interface {
	ProbeIdentity(ctx context.Context, storage *models.Storage) (*driver.Identity, error)
}

// SourceRemover tears down a storage's trap-source configuration: the
// array-side registration first, then the tracking row, then the relay.
// Wired to the alertsource module from the composition root. A not_found
// error means no source was configured for the storage.
type SourceRemover interface {
	RemoveSource(ctx context.Context, storageID string) error
}

// Module implements the inventory module.
type Module struct {
	logger  *zap.Logger
	config  InventoryConfig
	bus     module.Publisher
	store   *StorageStore
	secrets *secrets.Manager
	prober  IdentityProber
	sources SourceRemover
}

// New creates a new inventory module instance.
func New() *Module {
	return &Module{}
}

// SetSecrets injects the encryption boundary. Must be called before Init.
func (m *Module) SetSecrets(mgr *secrets.Manager) {
	m.secrets = mgr
}

// SetProber injects the identity prober. Optional; without it registration
// skips array-side verification.
func (m *Module) SetProber(p IdentityProber) {
	m.prober = p
}

// SetSourceRemover injects the trap-source teardown used during
// deregistration. Optional; without it deregistration only removes the
// storage record.
func (m *Module) SetSourceRemover(r SourceRemover) {
	m.sources = r
}

func (m *Module) Info() module.Info {
	return module.Info{
		Name:        "inventory",
		Version:     "0.1.0",
		Description: "Storage array registration and metadata",
		Required:    true,
	}
}

func (m *Module) Init(ctx context.Context, deps module.Dependencies) error {
	m.logger = deps.Logger
	m.bus = deps.Bus

	m.config = DefaultConfig()
	if deps.Config != nil {
		if err := deps.Config.Unmarshal(&m.config); err != nil {
			return err
		}
	}

	if m.secrets == nil {
		return errors.New("inventory: secrets manager not set")
	}

	if err := deps.Store.Migrate(ctx, "inventory", migrations()); err != nil {
		return err
	}
	m.store = NewStorageStore(deps.Store.DB(), m.secrets)

	m.logger.Info("inventory module initialized")
	return nil
}

func (m *Module) Start(ctx context.Context) error {
	return nil
}

func (m *Module) Stop(ctx context.Context) error {
	return nil
}

// Store exposes the storage store to sibling modules wired in main.
func (m *Module) Store() *StorageStore {
	return m.store
}
