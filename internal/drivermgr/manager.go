// Package drivermgr owns the storage_id to driver instance mapping. Drivers
// are built on first use from the inventory record through the vendor
// registry, cached, and disposed when the storage is deregistered.
package drivermgr

import (
	"context"
	"sync"

	"github.com/merliyatf/delfin/pkg/driver"
	"github.com/merliyatf/delfin/pkg/models"
	"go.uber.org/zap"
)

// StorageReader resolves a storage_id to its inventory record. Satisfied by
// the inventory module's store.
type StorageReader interface {
	Get(ctx context.Context, id string) (*models.Storage, error)
}

// Manager caches one driver per registered storage.
type Manager struct {
	logger   *zap.Logger
	storages StorageReader

	mu      sync.Mutex
	drivers map[string]driver.Driver
}

// New creates a driver manager reading storage records from the given source.
func New(storages StorageReader, logger *zap.Logger) *Manager {
	return &Manager{
		logger:   logger,
		storages: storages,
		drivers:  make(map[string]driver.Driver),
	}
}

// Driver returns the cached driver for a storage, constructing it from the
// inventory record on first use. Construction is cheap: protocol sessions
// dial lazily, so holding the lock across it is fine.
func (m *Manager) Driver(ctx context.Context, storageID string) (driver.Driver, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if d, ok := m.drivers[storageID]; ok {
		return d, nil
	}

	st, err := m.storages.Get(ctx, storageID)
	if err != nil {
		return nil, err
	}
	if st == nil {
		return nil, driver.NewError(driver.ErrCodeNotFound,
			"storage "+storageID+" is not registered", nil)
	}

	d, err := driver.New(st.Vendor, st.Model, accessInfo(st), m.logger.Named(driver.Key(st.Vendor, st.Model)))
	if err != nil {
		return nil, err
	}
	m.drivers[storageID] = d
	return d, nil
}

// Dispose tears down and forgets the driver for a storage. No-op when none
// is cached.
func (m *Manager) Dispose(storageID string) {
	m.mu.Lock()
	d, ok := m.drivers[storageID]
	delete(m.drivers, storageID)
	m.mu.Unlock()

	if ok {
		d.Close()
		m.logger.Debug("disposed driver", zap.String("storage_id", storageID))
	}
}

// CloseAll tears down every cached driver. Called at shutdown.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	drivers := m.drivers
	m.drivers = make(map[string]driver.Driver)
	m.mu.Unlock()

	for id, d := range drivers {
		d.Close()
		m.logger.Debug("disposed driver", zap.String("storage_id", id))
	}
}

// ProbeIdentity builds a throwaway driver from a not-yet-persisted record
// and asks the array who it is. Implements the inventory module's prober.
func (m *Manager) ProbeIdentity(ctx context.Context, st *models.Storage) (*driver.Identity, error) {
	d, err := driver.New(st.Vendor, st.Model, accessInfo(st), m.logger.Named("probe"))
	if err != nil {
		return nil, err
	}
	defer d.Close()

	prober, ok := d.(driver.IdentityProber)
	if !ok {
		return nil, driver.InvalidInput(
			"driver for " + driver.Key(st.Vendor, st.Model) + " cannot report identity")
	}
	return prober.ProbeIdentity(ctx)
}

func accessInfo(st *models.Storage) driver.AccessInfo {
	return driver.AccessInfo{
		StorageID:    st.ID,
		SSHHost:      st.SSHHost,
		SSHPort:      st.SSHPort,
		SSHUsername:  st.SSHUsername,
		SSHPassword:  st.SSHPassword,
		RESTHost:     st.RESTHost,
		RESTPort:     st.RESTPort,
		RESTUsername: st.RESTUsername,
		RESTPassword: st.RESTPassword,
	}
}
