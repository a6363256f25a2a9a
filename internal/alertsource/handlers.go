package alertsource

import (
	"encoding/json"
	"net/http"

	"github.com/merliyatf/delfin/pkg/driver"
	"github.com/merliyatf/delfin/pkg/models"
	"github.com/merliyatf/delfin/pkg/module"
	"go.uber.org/zap"
)

// Routes implements module.HTTPProvider.
func (m *Module) Routes() []module.Route {
	return []module.Route{
		{Method: "PUT", Path: "/{storage_id}", Handler: m.handlePut},
		{Method: "GET", Path: "/{storage_id}", Handler: m.handleGet},
		{Method: "DELETE", Path: "/{storage_id}", Handler: m.handleDelete},
	}
}

// putRequest is the wire form of an alert source. The version string is
// matched case-insensitively.
type putRequest struct {
	Version         string `json:"version"`
	Host            string `json:"host"`
	Port            int    `json:"port"`
	CommunityString string `json:"community_string"`
	Username        string `json:"username"`
	SecurityLevel   string `json:"security_level"`
	EngineID        string `json:"engine_id"`
	AuthProtocol    string `json:"auth_protocol"`
	AuthKey         string `json:"auth_key"`
	PrivacyProtocol string `json:"privacy_protocol"`
	PrivacyKey      string `json:"privacy_key"`
}

func (m *Module) handlePut(w http.ResponseWriter, r *http.Request) {
	storageID := r.PathValue("storage_id")
	if storageID == "" {
		asWriteError(w, http.StatusBadRequest, "storage_id is required")
		return
	}

	var req putRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		asWriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	version, ok := models.ParseSNMPVersion(req.Version)
	if !ok {
		asWriteError(w, http.StatusBadRequest, "unknown snmp version "+req.Version)
		return
	}

	src := &models.AlertSource{
		StorageID:       storageID,
		Version:         version,
		Host:            req.Host,
		Port:            req.Port,
		CommunityString: req.CommunityString,
		Username:        req.Username,
		SecurityLevel:   models.SecurityLevel(req.SecurityLevel),
		EngineID:        req.EngineID,
		AuthProtocol:    req.AuthProtocol,
		AuthKey:         req.AuthKey,
		PrivacyProtocol: req.PrivacyProtocol,
		PrivacyKey:      req.PrivacyKey,
	}

	stored, err := m.reconciler.Put(r.Context(), src)
	if err != nil {
		m.logger.Warn("alert source put failed",
			zap.String("storage_id", storageID), zap.Error(err))
		asWriteError(w, asStatusFor(err), err.Error())
		return
	}
	asWriteJSON(w, http.StatusOK, stored)
}

func (m *Module) handleGet(w http.ResponseWriter, r *http.Request) {
	storageID := r.PathValue("storage_id")
	if storageID == "" {
		asWriteError(w, http.StatusBadRequest, "storage_id is required")
		return
	}

	src, err := m.reconciler.Get(r.Context(), storageID)
	if err != nil {
		m.logger.Warn("alert source get failed",
			zap.String("storage_id", storageID), zap.Error(err))
		asWriteError(w, http.StatusInternalServerError, "failed to read alert source")
		return
	}
	if src == nil {
		asWriteError(w, http.StatusNotFound, "no alert source configured")
		return
	}
	asWriteJSON(w, http.StatusOK, src)
}

func (m *Module) handleDelete(w http.ResponseWriter, r *http.Request) {
	storageID := r.PathValue("storage_id")
	if storageID == "" {
		asWriteError(w, http.StatusBadRequest, "storage_id is required")
		return
	}

	if err := m.reconciler.Delete(r.Context(), storageID); err != nil {
		m.logger.Warn("alert source delete failed",
			zap.String("storage_id", storageID), zap.Error(err))
		asWriteError(w, asStatusFor(err), err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// -- helpers --

func asStatusFor(err error) int {
	switch {
	case driver.IsInvalidInput(err):
		return http.StatusBadRequest
	case driver.IsNotFound(err):
		return http.StatusNotFound
	case driver.IsInvalidCredentials(err):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusBadGateway
	}
}

func asWriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func asWriteError(w http.ResponseWriter, status int, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"type":   "about:blank",
		"title":  http.StatusText(status),
		"status": status,
		"detail": detail,
	})
}
