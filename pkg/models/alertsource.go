package models

import (
	"strings"
	"time"
)

// SNMPVersion is the trap protocol version an array uses to reach the
// platform's trap receiver.
type SNMPVersion string

const (
	SNMPv1  SNMPVersion = "SNMPv1"
	SNMPv2c SNMPVersion = "SNMPv2c"
	SNMPv3  SNMPVersion = "SNMPv3"
)

// ParseSNMPVersion normalizes a version string (case-insensitive on input).
// Returns the canonical form and whether the input was recognized.
func ParseSNMPVersion(s string) (SNMPVersion, bool) {
	switch strings.ToLower(s) {
	case "snmpv1":
		return SNMPv1, true
	case "snmpv2c":
		return SNMPv2c, true
	case "snmpv3":
		return SNMPv3, true
	default:
		return "", false
	}
}

// SecurityLevel is the SNMPv3 authentication/privacy mode.
type SecurityLevel string

const (
	SecurityNoAuthNoPriv SecurityLevel = "NoAuthNoPriv"
	SecurityAuthNoPriv   SecurityLevel = "AuthNoPriv"
	SecurityAuthPriv     SecurityLevel = "AuthPriv"
)

// AlertSource is the per-array trap-forwarding configuration. Exactly one
// version's secret-field set is populated; fields belonging to the other
// versions are explicitly nulled on write so no stale cross-version data
// persists.
//
// Secret fields (CommunityString, AuthKey, PrivacyKey) are stored encrypted;
// the encryption boundary sits at the persistence edge, so in-memory values
// here are plaintext and must never be logged.
type AlertSource struct {
	StorageID       string        `json:"storage_id"`
	Version         SNMPVersion   `json:"version"`
	Host            string        `json:"host"`
	Port            int           `json:"port,omitempty"`
	CommunityString string        `json:"community_string,omitempty"`
	Username        string        `json:"username,omitempty"`
	SecurityLevel   SecurityLevel `json:"security_level,omitempty"`
	EngineID        string        `json:"engine_id,omitempty"`
	AuthProtocol    string        `json:"auth_protocol,omitempty"`
	AuthKey         string        `json:"auth_key,omitempty"`
	PrivacyProtocol string        `json:"privacy_protocol,omitempty"`
	PrivacyKey      string        `json:"privacy_key,omitempty"`
	CreatedAt       time.Time     `json:"created_at,omitempty"`
	UpdatedAt       time.Time     `json:"updated_at,omitempty"`
}

// TrapConfigBrief is the minimal identity needed to address an array's
// existing trap registration: the storage id, version, and manager host,
// plus username and engine id for SNMPv3. It is what the reconciler passes
// as the OLD side of a sync so the receiver can remove the one registration
// it created, not whatever the array lists first.
type TrapConfigBrief struct {
	StorageID string      `json:"storage_id"`
	Version   SNMPVersion `json:"version"`
	Host      string      `json:"host,omitempty"`
	Username  string      `json:"username,omitempty"`
	EngineID  string      `json:"engine_id,omitempty"`
}

// Brief extracts the minimal trap identity from a full AlertSource.
func (a *AlertSource) Brief() *TrapConfigBrief {
	b := &TrapConfigBrief{
		StorageID: a.StorageID,
		Version:   a.Version,
		Host:      a.Host,
	}
	if a.Version == SNMPv3 {
		b.Username = a.Username
		b.EngineID = a.EngineID
	}
	return b
}
