package alertsource

// Event topics published by the alertsource module.
const (
	TopicSourceConfigured = "alertsource.configured"
	TopicSourceRemoved    = "alertsource.removed"
)

// SourceEvent is the payload for alert source lifecycle topics. It carries
// no secret material.
type SourceEvent struct {
	StorageID string `json:"storage_id"`
	Version   string `json:"version,omitempty"`
}
