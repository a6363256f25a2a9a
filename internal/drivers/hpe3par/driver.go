// Package hpe3par adapts HPE 3PAR StoreServ arrays to the driver contract.
// Alert data comes from the CLI over SSH; the WSAPI REST endpoint serves
// the identity probe. Normalization tables live in alerts.go.
package hpe3par

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/merliyatf/delfin/internal/session"
	"github.com/merliyatf/delfin/pkg/driver"
	"github.com/merliyatf/delfin/pkg/models"
	"go.uber.org/zap"
)

const (
	// CLI command forms.
	cmdShowAlert     = "showalert -d"
	cmdRemoveAlert   = "removealert -f"
	cmdSetSNMPMgr    = "setsnmpmgr"
	cmdRemoveSNMPMgr = "removesnmpmgr"
	cmdRemoveSNMPUsr = "removesnmpuser"

	// WSAPI paths.
	wsapiLoginPath  = "/api/v1/credentials"
	wsapiSystemPath = "/api/v1/system"
	wsapiTokenField = "key"
	wsapiTokenHdr   = "X-HP3PAR-WSAPI-SessionKey"
)

func init() {
	driver.Register("hpe", "3par", New)
}

// commandRunner is the SSH surface the driver consumes.
type commandRunner interface {
	Execute(ctx context.Context, command string) (string, error)
	Close()
}

// restCaller is the WSAPI surface the driver consumes.
type restCaller interface {
	Call(ctx context.Context, method, path string, body any) (json.RawMessage, error)
	Logout(ctx context.Context)
}

// Driver implements the driver contract for the 3PAR family.
type Driver struct {
	ssh    commandRunner
	rest   restCaller
	logger *zap.Logger
}

// New constructs a 3PAR driver from access information. The SSH endpoint
// is mandatory (alerts travel over the CLI); WSAPI is optional and only
// backs the identity probe.
func New(info driver.AccessInfo, logger *zap.Logger) (driver.Driver, error) {
	if info.SSHHost == "" {
		return nil, driver.InvalidInput("3par driver requires an ssh endpoint")
	}

	d := &Driver{
		ssh:    session.NewSSHSession(info.SSHHost, info.SSHPort, info.SSHUsername, info.SSHPassword, logger),
		logger: logger,
	}

	if info.RESTHost != "" {
		port := info.RESTPort
		if port == 0 {
			port = 8080
		}
		d.rest = session.NewRESTSession(session.RESTConfig{
			BaseURL:     fmt.Sprintf("https://%s:%d", info.RESTHost, port),
			Username:    info.RESTUsername,
			Password:    info.RESTPassword,
			LoginPath:   wsapiLoginPath,
			LogoutPath:  wsapiLoginPath,
			TokenField:  wsapiTokenField,
			TokenHeader: wsapiTokenHdr,
		}, logger)
	}

	return d, nil
}

// AddTrapConfig registers the platform trap receiver on the array.
// Duplicate registration is reported by the CLI but treated as success.
func (d *Driver) AddTrapConfig(ctx context.Context, source *models.AlertSource) error {
	out, err := d.ssh.Execute(ctx, buildSetSNMPMgr(source))
	if err != nil {
		return err
	}
	if rejected(out) && !alreadyPresent(out) {
		return driver.NewError(driver.ErrCodeBackendUnavailable,
			"array rejected trap registration: "+strings.TrimSpace(out), nil)
	}
	return nil
}

// RemoveTrapConfig removes the registration addressed by the brief. The
// manager host is passed to the CLI when known so only our registration is
// removed, not whichever one the array lists first. Removing an absent
// registration is success.
func (d *Driver) RemoveTrapConfig(ctx context.Context, brief *models.TrapConfigBrief) error {
	var cmd string
	switch {
	case brief.Version == models.SNMPv3 && brief.Username != "":
		cmd = cmdRemoveSNMPUsr + " " + brief.Username
	case brief.Host != "":
		cmd = cmdRemoveSNMPMgr + " " + brief.Host
	default:
		cmd = cmdRemoveSNMPMgr
	}

	out, err := d.ssh.Execute(ctx, cmd)
	if err != nil {
		return err
	}
	if rejected(out) && !absentAlready(out) {
		return driver.NewError(driver.ErrCodeBackendUnavailable,
			"array rejected trap removal: "+strings.TrimSpace(out), nil)
	}
	return nil
}

// ProbeIdentity reads the array's identity from the WSAPI system endpoint.
func (d *Driver) ProbeIdentity(ctx context.Context) (*driver.Identity, error) {
	if d.rest == nil {
		return nil, driver.NewError(driver.ErrCodeInvalidInput,
			"identity probe requires a rest endpoint", nil)
	}

	raw, err := d.rest.Call(ctx, "GET", wsapiSystemPath, nil)
	if err != nil {
		return nil, err
	}

	var sys struct {
		Name          string `json:"name"`
		Model         string `json:"model"`
		SerialNumber  string `json:"serialNumber"`
		SystemVersion string `json:"systemVersion"`
	}
	if err := json.Unmarshal(raw, &sys); err != nil {
		return nil, driver.NewError(driver.ErrCodeBackendUnavailable,
			"decode system response", err)
	}

	return &driver.Identity{
		Name:         sys.Name,
		Model:        sys.Model,
		SerialNumber: sys.SerialNumber,
		Firmware:     sys.SystemVersion,
	}, nil
}

// Close tears down both protocol sessions. Best-effort.
func (d *Driver) Close() {
	if d.rest != nil {
		d.rest.Logout(context.Background())
	}
	d.ssh.Close()
}

// buildSetSNMPMgr renders the registration command for one trap target.
func buildSetSNMPMgr(source *models.AlertSource) string {
	parts := []string{cmdSetSNMPMgr}
	if source.Port != 0 {
		parts = append(parts, "-p", strconv.Itoa(source.Port))
	}
	switch source.Version {
	case models.SNMPv1:
		parts = append(parts, "-version", "1")
	case models.SNMPv3:
		parts = append(parts, "-version", "3", "-u", source.Username)
	default:
		parts = append(parts, "-version", "2")
	}
	parts = append(parts, source.Host)
	return strings.Join(parts, " ")
}

// rejected reports whether CLI output looks like an error message rather
// than silence or a confirmation.
func rejected(out string) bool {
	lower := strings.ToLower(out)
	return strings.Contains(lower, "error") ||
		strings.Contains(lower, "unable to") ||
		strings.Contains(lower, "invalid") ||
		strings.Contains(lower, "does not exist")
}

func alreadyPresent(out string) bool {
	return strings.Contains(strings.ToLower(out), "already")
}

func absentAlready(out string) bool {
	lower := strings.ToLower(out)
	return strings.Contains(lower, "does not exist") ||
		strings.Contains(lower, "no snmp")
}
