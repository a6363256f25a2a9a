package alertsource

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/merliyatf/delfin/internal/config"
	"github.com/merliyatf/delfin/internal/event"
	"github.com/merliyatf/delfin/internal/secrets"
	"github.com/merliyatf/delfin/internal/store"
	"github.com/merliyatf/delfin/pkg/models"
	"github.com/merliyatf/delfin/pkg/module"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

func newTestModule(t *testing.T) (*Module, *recordingDriver) {
	t.Helper()

	s, err := store.New(filepath.Join(t.TempDir(), "alertsource.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	mgr := secrets.NewManager()
	if err := mgr.Open(context.Background(), s.DB(), "test-passphrase"); err != nil {
		t.Fatalf("open secrets: %v", err)
	}
	t.Cleanup(mgr.Close)

	d := &recordingDriver{}
	m := New()
	m.SetSecrets(mgr)
	m.SetDrivers(&fakeDrivers{driver: d})
	m.SetStorages(&fakeStorages{records: map[string]*models.Storage{
		"s1": {ID: "s1", Vendor: "hpe", Model: "3par", SSHHost: "10.0.0.5"},
	}})
	m.SetNotifier(&fakeNotifier{})

	v := viper.New()
	v.Set("skip_connectivity_check", true)
	deps := module.Dependencies{
		Config: config.New(v),
		Logger: zap.NewNop(),
		Store:  s,
		Bus:    event.NewBus(zap.NewNop()),
	}
	if err := m.Init(context.Background(), deps); err != nil {
		t.Fatalf("Init: %v", err)
	}
	return m, d
}

func newTestServer(t *testing.T, m *Module) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	for _, rt := range m.Routes() {
		mux.HandleFunc(rt.Method+" "+rt.Path, rt.Handler)
	}
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func doJSON(t *testing.T, method, url string, body map[string]any) *http.Response {
	t.Helper()
	var buf []byte
	if body != nil {
		buf, _ = json.Marshal(body)
	}
	req, err := http.NewRequest(method, url, bytes.NewReader(buf))
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	return resp
}

func TestAlertSourceLifecycle(t *testing.T) {
	m, d := newTestModule(t)
	srv := newTestServer(t, m)
	url := srv.URL + "/s1"

	// Configure v2c.
	resp := doJSON(t, http.MethodPut, url, map[string]any{
		"version":          "snmpv2c",
		"host":             "192.168.1.100",
		"community_string": "public",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("PUT v2c status = %d", resp.StatusCode)
	}
	resp.Body.Close()

	// Read it back decrypted.
	resp = doJSON(t, http.MethodGet, url, nil)
	var got models.AlertSource
	json.NewDecoder(resp.Body).Decode(&got)
	resp.Body.Close()
	if got.Version != models.SNMPv2c || got.CommunityString != "public" {
		t.Errorf("GET after v2c put = %+v", got)
	}

	// Switch to v3: the old v2c registration must be removed first.
	d.calls = nil
	resp = doJSON(t, http.MethodPut, url, map[string]any{
		"version":          "SNMPv3",
		"host":             "192.168.1.100",
		"username":         "trapuser",
		"security_level":   "AuthPriv",
		"engine_id":        "800000ab05cafe",
		"auth_protocol":    "sha",
		"auth_key":         "authsecret",
		"privacy_protocol": "aes",
		"privacy_key":      "privsecret",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("PUT v3 status = %d", resp.StatusCode)
	}
	resp.Body.Close()
	if len(d.calls) != 2 || d.calls[0] != "remove:SNMPv2c:" || d.calls[1] != "add:SNMPv3" {
		t.Errorf("driver calls = %v, want remove-then-add", d.calls)
	}

	resp = doJSON(t, http.MethodGet, url, nil)
	got = models.AlertSource{}
	json.NewDecoder(resp.Body).Decode(&got)
	resp.Body.Close()
	if got.Version != models.SNMPv3 || got.CommunityString != "" || got.AuthKey != "authsecret" {
		t.Errorf("GET after v3 put = %+v", got)
	}

	// Remove.
	resp = doJSON(t, http.MethodDelete, url, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("DELETE status = %d, want 204", resp.StatusCode)
	}

	resp = doJSON(t, http.MethodGet, url, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("GET after delete status = %d, want 404", resp.StatusCode)
	}
}

func TestHandlePut_UnknownVersion(t *testing.T) {
	m, _ := newTestModule(t)
	srv := newTestServer(t, m)

	resp := doJSON(t, http.MethodPut, srv.URL+"/s1", map[string]any{
		"version": "snmpv4",
		"host":    "192.168.1.100",
	})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestHandlePut_UnknownStorage(t *testing.T) {
	m, _ := newTestModule(t)
	srv := newTestServer(t, m)

	resp := doJSON(t, http.MethodPut, srv.URL+"/missing", map[string]any{
		"version":          "snmpv2c",
		"host":             "192.168.1.100",
		"community_string": "public",
	})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

func TestHandleDelete_Absent(t *testing.T) {
	m, _ := newTestModule(t)
	srv := newTestServer(t, m)

	resp := doJSON(t, http.MethodDelete, srv.URL+"/s1", nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}
