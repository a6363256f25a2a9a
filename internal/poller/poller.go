// Package poller periodically pulls outstanding alerts from every array
// that has an alert source configured and publishes them on the event bus.
// One bad array never blocks the cycle; it is logged and retried on the
// next tick.
package poller

import (
	"context"
	"errors"
	"time"

	"github.com/merliyatf/delfin/internal/alerts"
	"github.com/merliyatf/delfin/pkg/driver"
	"github.com/merliyatf/delfin/pkg/module"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Compile-time interface guard.
var _ module.Module = (*Module)(nil)

// SourceLister enumerates the storages with an alert source configured.
// Satisfied by the alertsource module's store.
type SourceLister interface {
	ListStorageIDs(ctx context.Context) ([]string, error)
}

// DriverProvider resolves a storage_id to its driver. Satisfied by the
// driver manager.
type DriverProvider interface {
	Driver(ctx context.Context, storageID string) (driver.Driver, error)
}

// Module implements the poller module.
type Module struct {
	logger  *zap.Logger
	config  PollerConfig
	bus     module.Publisher
	sources SourceLister
	drivers DriverProvider

	limiter *rate.Limiter
	sched   *Scheduler
}

// New creates a new poller module instance.
func New() *Module {
	return &Module{}
}

// SetSources injects the alert source listing. Must be called before Init.
func (m *Module) SetSources(s SourceLister) {
	m.sources = s
}

// SetDrivers injects the driver manager. Must be called before Init.
func (m *Module) SetDrivers(p DriverProvider) {
	m.drivers = p
}

func (m *Module) Info() module.Info {
	return module.Info{
		Name:         "poller",
		Version:      "0.1.0",
		Description:  "Periodic alert polling",
		Dependencies: []string{"alertsource"},
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

	if m.sources == nil {
		return errors.New("poller: source lister not set")
	}
	if m.drivers == nil {
		return errors.New("poller: driver provider not set")
	}

	m.limiter = rate.NewLimiter(rate.Limit(m.config.PollsPerSecond), 1)
	m.sched = NewScheduler(m.sources, m.pollStorage,
		m.config.Interval, m.config.MaxWorkers, m.logger)

	m.logger.Info("poller module initialized",
		zap.Duration("interval", m.config.Interval),
		zap.Int("max_workers", m.config.MaxWorkers),
	)
	return nil
}

func (m *Module) Start(ctx context.Context) error {
	if !m.config.Enabled {
		m.logger.Info("poller disabled by config")
		return nil
	}
	m.sched.Start(ctx)
	return nil
}

func (m *Module) Stop(ctx context.Context) error {
	if m.sched != nil {
		m.sched.Stop()
	}
	return nil
}

// pollStorage runs one poll of one array and publishes what it finds.
func (m *Module) pollStorage(ctx context.Context, storageID string) {
	if err := m.limiter.Wait(ctx); err != nil {
		return
	}

	ctx, cancel := context.WithTimeout(ctx, m.config.PollTimeout)
	defer cancel()

	start := time.Now()
	defer func() {
		pollDuration.Observe(time.Since(start).Seconds())
	}()

	d, err := m.drivers.Driver(ctx, storageID)
	if err != nil {
		pollsTotal.WithLabelValues("error").Inc()
		m.logger.Warn("no driver for storage",
			zap.String("storage_id", storageID), zap.Error(err))
		return
	}

	list, err := d.ListAlerts(ctx)
	if err != nil {
		pollsTotal.WithLabelValues("error").Inc()
		m.logger.Warn("alert poll failed",
			zap.String("storage_id", storageID), zap.Error(err))
		return
	}
	pollsTotal.WithLabelValues("ok").Inc()
	alertsReported.Add(float64(len(list)))

	for i := range list {
		_ = m.bus.Publish(ctx, module.Event{
			Topic:     alerts.TopicAlertReported,
			Source:    "poller",
			Timestamp: time.Now().UTC(),
			Payload:   alerts.AlertEvent{StorageID: storageID, Alert: &list[i]},
		})
	}
}
