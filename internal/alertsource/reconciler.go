package alertsource

import (
	"context"
	"time"

	"github.com/merliyatf/delfin/pkg/driver"
	"github.com/merliyatf/delfin/pkg/models"
	"github.com/merliyatf/delfin/pkg/module"
	"go.uber.org/zap"
)

// Reconciler keeps three places in agreement for each storage: the
// alert_sources row, the array-side trap registration, and the external
// relay. Ordering is fixed: validate, probe reachability, persist, then
// sync outward. Nothing is written when an earlier step fails.
type Reconciler struct {
	store    *AlertSourceStore
	storages StorageReader
	drivers  DriverProvider
	checker  ConnectivityChecker
	notifier SyncNotifier
	bus      module.Publisher
	logger   *zap.Logger
}

// NewReconciler wires a reconciler. checker and notifier may be nil, which
// disables the reachability probe and relay notification respectively.
func NewReconciler(
	store *AlertSourceStore,
	storages StorageReader,
	drivers DriverProvider,
	checker ConnectivityChecker,
	notifier SyncNotifier,
	bus module.Publisher,
	logger *zap.Logger,
) *Reconciler {
	return &Reconciler{
		store:    store,
		storages: storages,
		drivers:  drivers,
		checker:  checker,
		notifier: notifier,
		bus:      bus,
		logger:   logger,
	}
}

// Put creates or replaces the alert source for a storage. The previous
// registration (if any) is removed from the array before the new one is
// added, so a version change never leaves both active.
func (r *Reconciler) Put(ctx context.Context, src *models.AlertSource) (*models.AlertSource, error) {
	if err := validate(src); err != nil {
		return nil, err
	}

	st, err := r.storages.Get(ctx, src.StorageID)
	if err != nil {
		return nil, err
	}
	if st == nil {
		return nil, driver.NewError(driver.ErrCodeNotFound,
			"storage "+src.StorageID+" is not registered", nil)
	}

	if r.checker != nil {
		if err := r.checker.Check(ctx, st.SSHHost); err != nil {
			return nil, err
		}
	}

	old, err := r.store.GetBrief(ctx, src.StorageID)
	if err != nil {
		return nil, err
	}

	if err := r.store.Upsert(ctx, src); err != nil {
		return nil, err
	}

	if err := r.syncArray(ctx, src.StorageID, old, src); err != nil {
		return nil, err
	}

	if err := r.notify(ctx, old, src); err != nil {
		return nil, err
	}

	r.publish(ctx, TopicSourceConfigured, SourceEvent{
		StorageID: src.StorageID,
		Version:   string(src.Version),
	})
	return src, nil
}

// Get returns the configured source for a storage, or (nil, nil) when none
// exists.
func (r *Reconciler) Get(ctx context.Context, storageID string) (*models.AlertSource, error) {
	return r.store.Get(ctx, storageID)
}

// Delete removes the alert source for a storage. The array-side
// registration is removed before the row so a crash between the two leaves
// a harmless stale row rather than an orphaned registration.
func (r *Reconciler) Delete(ctx context.Context, storageID string) error {
	old, err := r.store.GetBrief(ctx, storageID)
	if err != nil {
		return err
	}
	if old == nil {
		return driver.NewError(driver.ErrCodeNotFound,
			"no alert source configured for storage "+storageID, nil)
	}

	if err := r.syncArray(ctx, storageID, old, nil); err != nil {
		return err
	}

	if _, err := r.store.Delete(ctx, storageID); err != nil {
		return err
	}

	if err := r.notify(ctx, old, nil); err != nil {
		return err
	}

	r.publish(ctx, TopicSourceRemoved, SourceEvent{StorageID: storageID})
	return nil
}

// syncArray applies remove-old-then-add-new against the array.
func (r *Reconciler) syncArray(ctx context.Context, storageID string, old *models.TrapConfigBrief, updated *models.AlertSource) error {
	d, err := r.drivers.Driver(ctx, storageID)
	if err != nil {
		return err
	}

	if old != nil {
		if err := d.RemoveTrapConfig(ctx, old); err != nil {
			return err
		}
	}
	if updated != nil {
		if err := d.AddTrapConfig(ctx, updated); err != nil {
			return err
		}
	}
	return nil
}

func (r *Reconciler) notify(ctx context.Context, old *models.TrapConfigBrief, updated *models.AlertSource) error {
	if r.notifier == nil {
		return nil
	}
	if err := r.notifier.NotifySync(ctx, old, updated); err != nil {
		r.logger.Error("trap relay notification failed", zap.Error(err))
		return driver.NewError(driver.ErrCodeBackendUnavailable,
			"trap relay notification failed", err)
	}
	return nil
}

func (r *Reconciler) publish(ctx context.Context, topic string, payload SourceEvent) {
	if r.bus == nil {
		return
	}
	_ = r.bus.Publish(ctx, module.Event{
		Topic:     topic,
		Source:    "alertsource",
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	})
}
