package alerts

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/merliyatf/delfin/pkg/driver"
	"github.com/merliyatf/delfin/pkg/models"
	"github.com/merliyatf/delfin/pkg/module"
	"go.uber.org/zap"
)

// Routes implements module.HTTPProvider.
func (m *Module) Routes() []module.Route {
	return []module.Route{
		{Method: "POST", Path: "/{storage_id}/parse", Handler: m.handleParse},
		{Method: "GET", Path: "/{storage_id}", Handler: m.handleList},
		{Method: "DELETE", Path: "/{storage_id}/{sequence_number}", Handler: m.handleClear},
	}
}

// handleParse normalizes one raw trap payload through the storage's driver
// and publishes the canonical alert.
func (m *Module) handleParse(w http.ResponseWriter, r *http.Request) {
	storageID := r.PathValue("storage_id")

	var trap map[string]string
	if err := json.NewDecoder(r.Body).Decode(&trap); err != nil {
		alertsWriteError(w, http.StatusBadRequest, "invalid trap payload")
		return
	}

	d, err := m.drivers.Driver(r.Context(), storageID)
	if err != nil {
		alertsWriteError(w, alertsStatusFor(err), err.Error())
		return
	}

	alert, err := d.ParseAlert(r.Context(), trap)
	if err != nil {
		m.logger.Debug("trap rejected",
			zap.String("storage_id", storageID), zap.Error(err))
		alertsWriteError(w, alertsStatusFor(err), err.Error())
		return
	}

	_ = m.bus.Publish(r.Context(), module.Event{
		Topic:     TopicAlertReported,
		Source:    "alerts",
		Timestamp: time.Now().UTC(),
		Payload:   AlertEvent{StorageID: storageID, Alert: alert},
	})

	alertsWriteJSON(w, http.StatusOK, alert)
}

// handleList polls the array for its outstanding alerts.
func (m *Module) handleList(w http.ResponseWriter, r *http.Request) {
	storageID := r.PathValue("storage_id")

	d, err := m.drivers.Driver(r.Context(), storageID)
	if err != nil {
		alertsWriteError(w, alertsStatusFor(err), err.Error())
		return
	}

	list, err := d.ListAlerts(r.Context())
	if err != nil {
		m.logger.Warn("alert poll failed",
			zap.String("storage_id", storageID), zap.Error(err))
		alertsWriteError(w, alertsStatusFor(err), err.Error())
		return
	}
	if list == nil {
		list = []models.Alert{}
	}
	alertsWriteJSON(w, http.StatusOK, list)
}

// handleClear acknowledges one alert occurrence on the array. A clear the
// array rejects is the caller's problem (422); a dead transport is the
// array's (502).
func (m *Module) handleClear(w http.ResponseWriter, r *http.Request) {
	storageID := r.PathValue("storage_id")
	seq := r.PathValue("sequence_number")

	d, err := m.drivers.Driver(r.Context(), storageID)
	if err != nil {
		alertsWriteError(w, alertsStatusFor(err), err.Error())
		return
	}

	cleared, err := d.ClearAlert(r.Context(), seq)
	if err != nil {
		m.logger.Warn("alert clear failed",
			zap.String("storage_id", storageID),
			zap.String("sequence_number", seq),
			zap.Error(err))
		alertsWriteError(w, alertsStatusFor(err), err.Error())
		return
	}
	if !cleared {
		alertsWriteError(w, http.StatusUnprocessableEntity,
			"array rejected clear of alert "+seq)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// -- helpers --

func alertsStatusFor(err error) int {
	switch {
	case driver.IsInvalidInput(err):
		return http.StatusUnprocessableEntity
	case driver.IsNotFound(err):
		return http.StatusNotFound
	default:
		return http.StatusBadGateway
	}
}

func alertsWriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func alertsWriteError(w http.ResponseWriter, status int, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"type":   "about:blank",
		"title":  http.StatusText(status),
		"status": status,
		"detail": detail,
	})
}
