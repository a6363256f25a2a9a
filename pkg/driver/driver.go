// Package driver defines the contract every vendor storage-array adapter
// satisfies, plus the registry mapping vendor/model keys to constructors.
// Vendor normalization tables (severity and category maps) are data inside
// each adapter, not inherited code: a new vendor adds a table and a small
// set of functions, never a class hierarchy.
package driver

import (
	"context"

	"github.com/merliyatf/delfin/pkg/models"
)

// AccessInfo carries the endpoints and credentials a driver needs to reach
// one array. Credentials are plaintext only in memory; drivers use them to
// open sessions and must never log or persist them.
type AccessInfo struct {
	StorageID string

	SSHHost     string
	SSHPort     int
	SSHUsername string
	SSHPassword string

	RESTHost     string
	RESTPort     int
	RESTUsername string
	RESTPassword string
}

// Driver is the capability set every vendor adapter implements.
//
// All methods accept a context because every operation ultimately crosses
// a network protocol session; callers should bound them with timeouts.
type Driver interface {
	// ParseAlert turns a raw trap payload (varbind name -> value) into a
	// canonical alert. A missing mandatory field is an invalid_input
	// failure -- the trap is unusable, not partially usable. Vendor values
	// outside the mapping tables degrade to NotSpecified, never to a
	// failure.
	ParseAlert(ctx context.Context, trap map[string]string) (*models.Alert, error)

	// ListAlerts polls the array and returns every currently outstanding
	// alert. Individual malformed records are skipped, not fatal, as long
	// as the transport itself is healthy.
	ListAlerts(ctx context.Context) ([]models.Alert, error)

	// ClearAlert issues the vendor-specific clear/acknowledge command for
	// one alert occurrence. A false result means the array rejected the
	// clear; that is distinct from a transport error.
	ClearAlert(ctx context.Context, sequenceNumber string) (bool, error)

	// AddTrapConfig registers the platform's trap receiver on the array.
	// Idempotent: adding an already-present registration succeeds.
	AddTrapConfig(ctx context.Context, source *models.AlertSource) error

	// RemoveTrapConfig removes the array's trap registration identified by
	// the brief. Idempotent: removing an absent registration succeeds.
	RemoveTrapConfig(ctx context.Context, brief *models.TrapConfigBrief) error

	// Close tears down any live protocol sessions. Best-effort.
	Close()
}

// IdentityProber is implemented by drivers that can report the array's
// identity (model, serial) for registration-time verification.
type IdentityProber interface {
	ProbeIdentity(ctx context.Context) (*Identity, error)
}

// Identity describes an array as reported by its management interface.
type Identity struct {
	Name         string `json:"name"`
	Model        string `json:"model"`
	SerialNumber string `json:"serial_number"`
	Firmware     string `json:"firmware,omitempty"`
}
