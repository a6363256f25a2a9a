package alertsource

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/merliyatf/delfin/pkg/models"
)

func TestRelayNotifier_PayloadAndSignature(t *testing.T) {
	var gotBody []byte
	var gotSig string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotBody, _ = io.ReadAll(r.Body)
		gotSig = r.Header.Get("X-Signature")
	}))
	defer srv.Close()

	n := NewRelayNotifier(srv.URL, "relay-secret")
	old := &models.TrapConfigBrief{StorageID: "s1", Version: models.SNMPv2c}
	updated := v3Config(models.SecurityAuthPriv)

	if err := n.NotifySync(context.Background(), old, updated); err != nil {
		t.Fatalf("NotifySync: %v", err)
	}

	var payload syncPayload
	if err := json.Unmarshal(gotBody, &payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if payload.EventType != "sync_snmp_config" {
		t.Errorf("event_type = %q", payload.EventType)
	}
	if payload.RequestID == "" {
		t.Error("request_id must be set")
	}
	if payload.OldBrief == nil || payload.OldBrief.StorageID != "s1" {
		t.Errorf("old_brief = %+v", payload.OldBrief)
	}
	if payload.NewConfig == nil || payload.NewConfig.Version != models.SNMPv3 {
		t.Errorf("new_config = %+v", payload.NewConfig)
	}

	mac := hmac.New(sha256.New, []byte("relay-secret"))
	mac.Write(gotBody)
	if want := hex.EncodeToString(mac.Sum(nil)); gotSig != want {
		t.Errorf("signature = %q, want %q", gotSig, want)
	}
}

func TestRelayNotifier_FreshRequestIDPerCall(t *testing.T) {
	var ids []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload syncPayload
		json.NewDecoder(r.Body).Decode(&payload)
		ids = append(ids, payload.RequestID)
	}))
	defer srv.Close()

	n := NewRelayNotifier(srv.URL, "")
	for i := 0; i < 2; i++ {
		if err := n.NotifySync(context.Background(), nil, v2cConfig()); err != nil {
			t.Fatalf("NotifySync: %v", err)
		}
	}
	if len(ids) != 2 || ids[0] == ids[1] {
		t.Errorf("request ids must be unique, got %v", ids)
	}
}

func TestRelayNotifier_NoSecretNoSignature(t *testing.T) {
	var gotSig string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSig = r.Header.Get("X-Signature")
	}))
	defer srv.Close()

	n := NewRelayNotifier(srv.URL, "")
	if err := n.NotifySync(context.Background(), nil, v2cConfig()); err != nil {
		t.Fatalf("NotifySync: %v", err)
	}
	if gotSig != "" {
		t.Error("unsigned notifier must not set X-Signature")
	}
}

func TestRelayNotifier_Non2xxIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	n := NewRelayNotifier(srv.URL, "")
	if err := n.NotifySync(context.Background(), nil, v2cConfig()); err == nil {
		t.Error("expected error for 502 response")
	}
}
