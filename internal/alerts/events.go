package alerts

import "github.com/merliyatf/delfin/pkg/models"

// Event topics published by the alerts module and the poller.
const (
	// TopicAlertReported carries one canonical alert per event.
	TopicAlertReported = "alerts.reported"
)

// AlertEvent is the payload for TopicAlertReported.
type AlertEvent struct {
	StorageID string        `json:"storage_id"`
	Alert     *models.Alert `json:"alert"`
}
