package inventory

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/merliyatf/delfin/pkg/driver"
	"github.com/merliyatf/delfin/pkg/models"
	"github.com/merliyatf/delfin/pkg/module"
	"go.uber.org/zap"
)

// Routes implements module.HTTPProvider.
func (m *Module) Routes() []module.Route {
	return []module.Route{
		{Method: "POST", Path: "/storages", Handler: m.handleRegister},
		{Method: "GET", Path: "/storages", Handler: m.handleList},
		{Method: "GET", Path: "/storages/{storage_id}", Handler: m.handleGet},
		{Method: "DELETE", Path: "/storages/{storage_id}", Handler: m.handleDeregister},
	}
}

// registerRequest is the caller-supplied half of a storage record. Identity
// fields come from the array itself during the probe.
type registerRequest struct {
	Name   string `json:"name"`
	Vendor string `json:"vendor"`
	Model  string `json:"model"`

	SSHHost     string `json:"ssh_host"`
	SSHPort     int    `json:"ssh_port"`
	SSHUsername string `json:"ssh_username"`
	SSHPassword string `json:"ssh_password"`

	RESTHost     string `json:"rest_host"`
	RESTPort     int    `json:"rest_port"`
	RESTUsername string `json:"rest_username"`
	RESTPassword string `json:"rest_password"`
}

// handleRegister registers a storage array. The array is probed for its
// identity through the driver before the record is persisted; a storage
// that cannot be reached or authenticated is never written.
func (m *Module) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		invWriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Vendor == "" || req.Model == "" {
		invWriteError(w, http.StatusBadRequest, "vendor and model are required")
		return
	}
	if !driverRegistered(req.Vendor, req.Model) {
		invWriteError(w, http.StatusBadRequest,
			"no driver available for "+driver.Key(req.Vendor, req.Model))
		return
	}
	if req.SSHHost == "" {
		invWriteError(w, http.StatusBadRequest, "ssh_host is required")
		return
	}

	st := &models.Storage{
		ID:           uuid.NewString(),
		Name:         req.Name,
		Vendor:       req.Vendor,
		Model:        req.Model,
		SSHHost:      req.SSHHost,
		SSHPort:      req.SSHPort,
		SSHUsername:  req.SSHUsername,
		SSHPassword:  req.SSHPassword,
		RESTHost:     req.RESTHost,
		RESTPort:     req.RESTPort,
		RESTUsername: req.RESTUsername,
		RESTPassword: req.RESTPassword,
	}

	if m.prober != nil && st.RESTHost != "" {
		ctx, cancel := context.WithTimeout(r.Context(), m.config.ProbeTimeout)
		defer cancel()

		id, err := m.prober.ProbeIdentity(ctx, st)
		if err != nil {
			m.logger.Warn("storage identity probe failed",
				zap.String("vendor", st.Vendor),
				zap.String("model", st.Model),
				zap.Error(err),
			)
			invWriteError(w, statusForDriverError(err), "identity probe failed: "+err.Error())
			return
		}
		st.SerialNumber = id.SerialNumber
		st.Firmware = id.Firmware
		if id.Model != "" {
			st.Model = id.Model
		}
		if st.Name == "" {
			st.Name = id.Name
		}
	}
	if st.Name == "" {
		st.Name = st.SSHHost
	}

	if err := m.store.Create(r.Context(), st); err != nil {
		m.logger.Error("failed to persist storage", zap.Error(err))
		invWriteError(w, http.StatusInternalServerError, "failed to persist storage")
		return
	}

	_ = m.bus.Publish(r.Context(), module.Event{
		Topic:     TopicStorageRegistered,
		Source:    "inventory",
		Timestamp: time.Now().UTC(),
		Payload:   StorageEvent{StorageID: st.ID, SerialNumber: st.SerialNumber},
	})

	invWriteJSON(w, http.StatusCreated, st)
}

func (m *Module) handleList(w http.ResponseWriter, r *http.Request) {
	storages, err := m.store.List(r.Context())
	if err != nil {
		m.logger.Warn("failed to list storages", zap.Error(err))
		invWriteError(w, http.StatusInternalServerError, "failed to list storages")
		return
	}
	if storages == nil {
		storages = []models.Storage{}
	}
	invWriteJSON(w, http.StatusOK, storages)
}

func (m *Module) handleGet(w http.ResponseWriter, r *http.Request) {
	storageID := r.PathValue("storage_id")
	if storageID == "" {
		invWriteError(w, http.StatusBadRequest, "storage_id is required")
		return
	}
	st, err := m.store.Get(r.Context(), storageID)
	if err != nil {
		m.logger.Warn("failed to get storage", zap.String("storage_id", storageID), zap.Error(err))
		invWriteError(w, http.StatusInternalServerError, "failed to get storage")
		return
	}
	if st == nil {
		invWriteError(w, http.StatusNotFound, "storage not found")
		return
	}
	invWriteJSON(w, http.StatusOK, st)
}

// handleDeregister removes a storage. Its trap-source configuration is torn
// down first: the array stops forwarding to us and the tracking row goes
// away before the storage record does, so a deregistered array never leaves
// an orphaned registration behind. Teardown failure aborts the delete and
// keeps the storage intact for a retry.
func (m *Module) handleDeregister(w http.ResponseWriter, r *http.Request) {
	storageID := r.PathValue("storage_id")
	if storageID == "" {
		invWriteError(w, http.StatusBadRequest, "storage_id is required")
		return
	}
	st, err := m.store.Get(r.Context(), storageID)
	if err != nil {
		m.logger.Warn("failed to get storage", zap.String("storage_id", storageID), zap.Error(err))
		invWriteError(w, http.StatusInternalServerError, "failed to delete storage")
		return
	}
	if st == nil {
		invWriteError(w, http.StatusNotFound, "storage not found")
		return
	}

	if m.sources != nil {
		// not_found just means no source was ever configured.
		if err := m.sources.RemoveSource(r.Context(), storageID); err != nil && !driver.IsNotFound(err) {
			m.logger.Warn("trap source teardown failed",
				zap.String("storage_id", storageID), zap.Error(err))
			invWriteError(w, statusForDriverError(err), "trap source teardown failed: "+err.Error())
			return
		}
	}

	deleted, err := m.store.Delete(r.Context(), storageID)
	if err != nil {
		m.logger.Warn("failed to delete storage", zap.String("storage_id", storageID), zap.Error(err))
		invWriteError(w, http.StatusInternalServerError, "failed to delete storage")
		return
	}
	if !deleted {
		invWriteError(w, http.StatusNotFound, "storage not found")
		return
	}

	_ = m.bus.Publish(r.Context(), module.Event{
		Topic:     TopicStorageDeregistered,
		Source:    "inventory",
		Timestamp: time.Now().UTC(),
		Payload:   StorageEvent{StorageID: storageID},
	})

	w.WriteHeader(http.StatusNoContent)
}

// -- helpers --

func driverRegistered(vendor, model string) bool {
	key := driver.Key(vendor, model)
	for _, k := range driver.Supported() {
		if k == key {
			return true
		}
	}
	return false
}

// statusForDriverError maps the driver error taxonomy to HTTP status codes:
// caller mistakes are 4xx, array-side failures are 502.
func statusForDriverError(err error) int {
	switch {
	case driver.IsInvalidInput(err):
		return http.StatusBadRequest
	case driver.IsInvalidCredentials(err):
		return http.StatusUnprocessableEntity
	case driver.IsNotFound(err):
		return http.StatusNotFound
	default:
		return http.StatusBadGateway
	}
}

func invWriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func invWriteError(w http.ResponseWriter, status int, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"type":   "about:blank",
		"title":  http.StatusText(status),
		"status": status,
		"detail": detail,
	})
}
