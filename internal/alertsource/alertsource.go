// Package alertsource reconciles per-array SNMP trap-forwarding
// configuration. The database row, the array-side registration, and the
// external trap relay are kept in step by a single reconciler; validation
// and a reachability probe run before anything is persisted.
package alertsource

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

// DriverProvider resolves a storage_id to its driver. Satisfied by the
// driver manager.
type DriverProvider interface {
	Driver(ctx context.Context, storageID string) (driver.Driver, error)
}

// StorageReader resolves a storage_id to its inventory record. Satisfied by
// the inventory module's store.
type StorageReader interface {
	Get(ctx context.Context, id string) (*models.Storage, error)
}

// Module implements the alertsource module.
type Module struct {
	logger     *zap.Logger
	config     AlertSourceConfig
	store      *AlertSourceStore
	secrets    *secrets.Manager
	drivers    DriverProvider
	storages   StorageReader
	notifier   SyncNotifier
	reconciler *Reconciler
}

// New creates a new alertsource module instance.
func New() *Module {
	return &Module{}
}

// SetSecrets injects the encryption boundary. Must be called before Init.
func (m *Module) SetSecrets(mgr *secrets.Manager) {
	m.secrets = mgr
}

// SetDrivers injects the driver manager. Must be called before Init.
func (m *Module) SetDrivers(p DriverProvider) {
	m.drivers = p
}

// SetStorages injects the inventory lookup. Must be called before Init.
func (m *Module) SetStorages(r StorageReader) {
	m.storages = r
}

// SetNotifier overrides the relay notifier built from config. Used by the
// composition root and by tests.
func (m *Module) SetNotifier(n SyncNotifier) {
	m.notifier = n
}

func (m *Module) Info() module.Info {
	return module.Info{
		Name:         "alertsource",
		Version:      "0.1.0",
		Description:  "SNMP trap-source reconciliation",
		Dependencies: []string{"inventory"},
		Required:     true,
	}
}

func (m *Module) Init(ctx context.Context, deps module.Dependencies) error {
	m.logger = deps.Logger

	m.config = DefaultConfig()
	if deps.Config != nil {
		if err := deps.Config.Unmarshal(&m.config); err != nil {
			return err
		}
	}

	if m.secrets == nil {
		return errors.New("alertsource: secrets manager not set")
	}
	if m.drivers == nil {
		return errors.New("alertsource: driver provider not set")
	}
	if m.storages == nil {
		return errors.New("alertsource: storage reader not set")
	}

	if err := deps.Store.Migrate(ctx, "alertsource", migrations()); err != nil {
		return err
	}
	m.store = NewAlertSourceStore(deps.Store.DB(), m.secrets)

	if m.notifier == nil && m.config.RelayURL != "" {
		m.notifier = NewRelayNotifier(m.config.RelayURL, m.config.RelaySecret)
	}

	var checker ConnectivityChecker = NewPingChecker(
		m.config.PingTimeout, m.config.PingCount, m.logger)
	if m.config.SkipConnectivityCheck {
		checker = nil
	}

	m.reconciler = NewReconciler(
		m.store, m.storages, m.drivers, checker, m.notifier, deps.Bus, m.logger)

	m.logger.Info("alertsource module initialized")
	return nil
}

func (m *Module) Start(ctx context.Context) error {
	return nil
}

func (m *Module) Stop(ctx context.Context) error {
	return nil
}

// Store exposes the alert source store to sibling modules wired in main.
func (m *Module) Store() *AlertSourceStore {
	return m.store
}

// RemoveSource tears down the trap source for a storage through the
// reconciler: array-side removal, then the row, then the relay. Inventory
// calls this while deregistering a storage, before the storage record is
// deleted. Returns a not_found error when no source is configured.
func (m *Module) RemoveSource(ctx context.Context, storageID string) error {
	if m.reconciler == nil {
		return errors.New("alertsource: module not initialized")
	}
	return m.reconciler.Delete(ctx, storageID)
}
