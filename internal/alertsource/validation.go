package alertsource

import (
	"encoding/hex"

	"github.com/merliyatf/delfin/pkg/driver"
	"github.com/merliyatf/delfin/pkg/models"
)

// defaultTrapPort is the standard SNMP trap port.
const defaultTrapPort = 162

// validate checks one alert source for completeness and normalizes it in
// place: the port default is applied and every field belonging to another
// SNMP version is cleared, so a version change can never leave stale
// secrets behind. Errors name the offending field.
func validate(src *models.AlertSource) error {
	if src.Host == "" {
		return driver.InvalidInput("host is required")
	}
	if src.Port == 0 {
		src.Port = defaultTrapPort
	}

	switch src.Version {
	case models.SNMPv1, models.SNMPv2c:
		if src.CommunityString == "" {
			return driver.InvalidInput("community_string is required for " + string(src.Version))
		}
		clearV3Fields(src)

	case models.SNMPv3:
		if src.Username == "" {
			return driver.InvalidInput("username is required for SNMPv3")
		}
		if src.SecurityLevel == "" {
			return driver.InvalidInput("security_level is required for SNMPv3")
		}
		if src.EngineID == "" {
			return driver.InvalidInput("engine_id is required for SNMPv3")
		}
		if _, err := hex.DecodeString(src.EngineID); err != nil {
			return driver.InvalidInput("engine_id must be a hex string")
		}

		switch src.SecurityLevel {
		case models.SecurityNoAuthNoPriv:
			src.AuthProtocol, src.AuthKey = "", ""
			src.PrivacyProtocol, src.PrivacyKey = "", ""
		case models.SecurityAuthNoPriv:
			if src.AuthProtocol == "" || src.AuthKey == "" {
				return driver.InvalidInput("auth_protocol and auth_key are required for AuthNoPriv")
			}
			src.PrivacyProtocol, src.PrivacyKey = "", ""
		case models.SecurityAuthPriv:
			if src.AuthProtocol == "" || src.AuthKey == "" {
				return driver.InvalidInput("auth_protocol and auth_key are required for AuthPriv")
			}
			if src.PrivacyProtocol == "" || src.PrivacyKey == "" {
				return driver.InvalidInput("privacy_protocol and privacy_key are required for AuthPriv")
			}
		default:
			return driver.InvalidInput("unknown security_level " + string(src.SecurityLevel))
		}
		src.CommunityString = ""

	default:
		return driver.InvalidInput("unknown snmp version " + string(src.Version))
	}

	return nil
}

func clearV3Fields(src *models.AlertSource) {
	src.Username = ""
	src.SecurityLevel = ""
	src.EngineID = ""
	src.AuthProtocol, src.AuthKey = "", ""
	src.PrivacyProtocol, src.PrivacyKey = "", ""
}
