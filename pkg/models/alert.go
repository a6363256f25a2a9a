package models

// Severity is the canonical alert severity scale all vendor vocabularies
// are mapped into.
type Severity string

const (
	SeverityCritical      Severity = "Critical"
	SeverityMajor         Severity = "Major"
	SeverityMinor         Severity = "Minor"
	SeverityWarning       Severity = "Warning"
	SeverityFatal         Severity = "Fatal"
	SeverityInformational Severity = "Informational"
	SeverityNotSpecified  Severity = "NotSpecified"
)

// Category classifies an alert as a raised fault or a cleared condition.
type Category string

const (
	CategoryFault        Category = "Fault"
	CategoryRecovery     Category = "Recovery"
	CategoryNotSpecified Category = "NotSpecified"
)

// ClearCategory records how a fault was cleared, when the source reports it.
type ClearCategory string

const (
	ClearAutomatic ClearCategory = "Automatic"
	ClearManual    ClearCategory = "Manual"
)

// EventType identifies the origin class of an alert.
type EventType string

const (
	// EventTypeEquipmentAlarm is the fixed type for hardware-origin events.
	EventTypeEquipmentAlarm EventType = "EquipmentAlarm"
)

// DefaultResourceType is the classification applied when a vendor does not
// report a finer-grained resource type.
const DefaultResourceType = "storage-subsystem"

// Alert is the canonical, vendor-neutral alert record. Instances are
// immutable once produced by a driver.
//
// AlertID and Severity are always present; a driver that cannot fill them
// fails construction instead of emitting a degraded record. OccurTime is
// nil when the vendor timestamp could not be parsed -- timestamp loss is
// non-fatal.
type Alert struct {
	AlertID        string        `json:"alert_id"`
	AlertName      string        `json:"alert_name"`
	Severity       Severity      `json:"severity"`
	Category       Category      `json:"category"`
	ClearCategory  ClearCategory `json:"clear_category,omitempty"`
	Type           EventType     `json:"type"`
	SequenceNumber string        `json:"sequence_number"`
	OccurTime      *int64        `json:"occur_time,omitempty"` // epoch milliseconds
	Description    string        `json:"description,omitempty"`
	Location       string        `json:"location,omitempty"`
	ResourceType   string        `json:"resource_type"`
}
