package inventory

// Event topics published by the inventory module.
const (
	TopicStorageRegistered   = "inventory.storage.registered"
	TopicStorageDeregistered = "inventory.storage.deregistered"
)

// StorageEvent is the payload for storage lifecycle topics.
type StorageEvent struct {
	StorageID    string `json:"storage_id"`
	SerialNumber string `json:"serial_number,omitempty"`
}
