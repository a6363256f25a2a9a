package alertsource

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/merliyatf/delfin/pkg/models"
)

// SyncNotifier pushes trap-configuration changes to the external trap-relay
// process so it can re-key its receiver. A nil new config means the source
// was removed.
type SyncNotifier interface {
	NotifySync(ctx context.Context, old *models.TrapConfigBrief, updated *models.AlertSource) error
}

// Compile-time interface guard.
var _ SyncNotifier = (*RelayNotifier)(nil)

// syncPayload is the JSON body sent to the relay endpoint.
type syncPayload struct {
	RequestID string                  `json:"request_id"`
	EventType string                  `json:"event_type"`
	OldBrief  *models.TrapConfigBrief `json:"old_brief,omitempty"`
	NewConfig *models.AlertSource     `json:"new_config,omitempty"`
	Timestamp time.Time               `json:"timestamp"`
}

// RelayNotifier delivers sync notifications via HTTP POST.
type RelayNotifier struct {
	client *http.Client
	url    string
	secret string
}

// NewRelayNotifier creates a relay notifier for the given endpoint.
func NewRelayNotifier(url, secret string) *RelayNotifier {
	return &RelayNotifier{
		client: &http.Client{Timeout: 10 * time.Second},
		url:    url,
		secret: secret,
	}
}

// NotifySync posts one sync_snmp_config notification. Every request carries
// a fresh uuid so the relay can deduplicate retries.
func (n *RelayNotifier) NotifySync(ctx context.Context, old *models.TrapConfigBrief, updated *models.AlertSource) error {
	payload := syncPayload{
		RequestID: uuid.NewString(),
		EventType: "sync_snmp_config",
		OldBrief:  old,
		NewConfig: updated,
		Timestamp: time.Now().UTC(),
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal sync payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create sync request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "Delfin-Sync/0.1")

	if n.secret != "" {
		mac := hmac.New(sha256.New, []byte(n.secret))
		mac.Write(body)
		req.Header.Set("X-Signature", hex.EncodeToString(mac.Sum(nil)))
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("sync POST %s: %w", n.url, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body) //nolint:errcheck // drain body for connection reuse

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("sync POST %s: status %d", n.url, resp.StatusCode)
	}
	return nil
}
