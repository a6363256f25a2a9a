package alerts

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/merliyatf/delfin/internal/event"
	"github.com/merliyatf/delfin/pkg/driver"
	"github.com/merliyatf/delfin/pkg/models"
	"github.com/merliyatf/delfin/pkg/module"
	"go.uber.org/zap"
)

// fakeDriver serves canned responses for the handler tests.
type fakeDriver struct {
	parseAlert *models.Alert
	parseErr   error
	alerts     []models.Alert
	listErr    error
	cleared    bool
	clearErr   error
	clearedSeq string
}

func (d *fakeDriver) ParseAlert(context.Context, map[string]string) (*models.Alert, error) {
	return d.parseAlert, d.parseErr
}
func (d *fakeDriver) ListAlerts(context.Context) ([]models.Alert, error) {
	return d.alerts, d.listErr
}
func (d *fakeDriver) ClearAlert(_ context.Context, seq string) (bool, error) {
	d.clearedSeq = seq
	return d.cleared, d.clearErr
}
func (d *fakeDriver) AddTrapConfig(context.Context, *models.AlertSource) error    { return nil }
func (d *fakeDriver) RemoveTrapConfig(context.Context, *models.TrapConfigBrief) error { return nil }
func (d *fakeDriver) Close()                                                      {}

type fakeDrivers struct {
	driver *fakeDriver
	err    error
}

func (f *fakeDrivers) Driver(context.Context, string) (driver.Driver, error) {
	return f.driver, f.err
}

func newTestModule(t *testing.T, d *fakeDriver, derr error) (*Module, *event.Bus) {
	t.Helper()
	bus := event.NewBus(zap.NewNop())
	m := New()
	m.SetDrivers(&fakeDrivers{driver: d, err: derr})
	deps := module.Dependencies{Logger: zap.NewNop(), Bus: bus}
	if err := m.Init(context.Background(), deps); err != nil {
		t.Fatalf("Init: %v", err)
	}
	return m, bus
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

func TestHandleParse(t *testing.T) {
	want := &models.Alert{
		AlertID:  "0x027001e",
		Severity: models.SeverityMajor,
		Category: models.CategoryFault,
	}
	m, bus := newTestModule(t, &fakeDriver{parseAlert: want}, nil)
	srv := newTestServer(t, m)

	var published *models.Alert
	bus.Subscribe(TopicAlertReported, func(_ context.Context, ev module.Event) {
		if p, ok := ev.Payload.(AlertEvent); ok {
			published = p.Alert
		}
	})

	body, _ := json.Marshal(map[string]string{"severity": "major"})
	resp, err := http.Post(srv.URL+"/s1/parse", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var got models.Alert
	json.NewDecoder(resp.Body).Decode(&got)
	if got.AlertID != "0x027001e" || got.Severity != models.SeverityMajor {
		t.Errorf("alert = %+v", got)
	}
	if published == nil || published.AlertID != "0x027001e" {
		t.Error("parsed alert must be published on the bus")
	}
}

func TestHandleParse_InvalidTrapIs422(t *testing.T) {
	d := &fakeDriver{parseErr: driver.InvalidInput(
		"mandatory information severity missing in alert message")}
	m, _ := newTestModule(t, d, nil)
	srv := newTestServer(t, m)

	resp, err := http.Post(srv.URL+"/s1/parse", "application/json",
		bytes.NewReader([]byte(`{}`)))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want 422", resp.StatusCode)
	}
}

func TestHandleParse_MalformedBodyIs400(t *testing.T) {
	m, _ := newTestModule(t, &fakeDriver{}, nil)
	srv := newTestServer(t, m)

	resp, err := http.Post(srv.URL+"/s1/parse", "application/json",
		bytes.NewReader([]byte(`not json`)))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestHandleList(t *testing.T) {
	d := &fakeDriver{alerts: []models.Alert{
		{AlertID: "4149", Severity: models.SeverityMajor},
		{AlertID: "4150", Severity: models.SeverityMinor},
	}}
	m, _ := newTestModule(t, d, nil)
	srv := newTestServer(t, m)

	resp, err := http.Get(srv.URL + "/s1")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()

	var got []models.Alert
	json.NewDecoder(resp.Body).Decode(&got)
	if len(got) != 2 || got[0].AlertID != "4149" {
		t.Errorf("alerts = %+v", got)
	}
}

func TestHandleList_EmptyIsArrayNotNull(t *testing.T) {
	m, _ := newTestModule(t, &fakeDriver{}, nil)
	srv := newTestServer(t, m)

	resp, err := http.Get(srv.URL + "/s1")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()

	var buf bytes.Buffer
	buf.ReadFrom(resp.Body)
	if buf.String() != "[]\n" {
		t.Errorf("body = %q, want empty JSON array", buf.String())
	}
}

func TestHandleList_TransportFailureIs502(t *testing.T) {
	d := &fakeDriver{listErr: driver.NewError(
		driver.ErrCodeBackendUnavailable, "ssh channel dropped", nil)}
	m, _ := newTestModule(t, d, nil)
	srv := newTestServer(t, m)

	resp, err := http.Get(srv.URL + "/s1")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", resp.StatusCode)
	}
}

func TestHandleList_UnknownStorageIs404(t *testing.T) {
	m, _ := newTestModule(t, nil, driver.NewError(
		driver.ErrCodeNotFound, "storage missing is not registered", nil))
	srv := newTestServer(t, m)

	resp, err := http.Get(srv.URL + "/missing")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

func TestHandleClear(t *testing.T) {
	d := &fakeDriver{cleared: true}
	m, _ := newTestModule(t, d, nil)
	srv := newTestServer(t, m)

	req, _ := http.NewRequest(http.MethodDelete, srv.URL+"/s1/1024", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("DELETE: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("status = %d, want 204", resp.StatusCode)
	}
	if d.clearedSeq != "1024" {
		t.Errorf("sequence = %q, want 1024", d.clearedSeq)
	}
}

func TestHandleClear_ArrayRejectionIs422(t *testing.T) {
	m, _ := newTestModule(t, &fakeDriver{cleared: false}, nil)
	srv := newTestServer(t, m)

	req, _ := http.NewRequest(http.MethodDelete, srv.URL+"/s1/1024", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("DELETE: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want 422", resp.StatusCode)
	}
}

func TestHandleClear_TransportFailureIs502(t *testing.T) {
	d := &fakeDriver{clearErr: driver.NewError(
		driver.ErrCodeBackendUnavailable, "ssh dial refused", nil)}
	m, _ := newTestModule(t, d, nil)
	srv := newTestServer(t, m)

	req, _ := http.NewRequest(http.MethodDelete, srv.URL+"/s1/1024", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("DELETE: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", resp.StatusCode)
	}
}
