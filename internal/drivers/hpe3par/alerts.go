package hpe3par

import (
	"context"
	"strings"
	"time"

	"github.com/merliyatf/delfin/pkg/driver"
	"github.com/merliyatf/delfin/pkg/models"
	"go.uber.org/zap"
)

// timeLayout is the fixed format alert timestamps arrive in, e.g.
// "2021-03-02 10:15:56 CST".
const timeLayout = "2006-01-02 15:04:05 MST"

// trapSeverityMap translates trap severity words to the canonical scale.
var trapSeverityMap = map[string]models.Severity{
	"critical": models.SeverityCritical,
	"major":    models.SeverityMajor,
	"minor":    models.SeverityMinor,
	"degraded": models.SeverityWarning,
	"fatal":    models.SeverityFatal,
	"info":     models.SeverityInformational,
	"debug":    models.SeverityNotSpecified,
}

// trapCategoryMap translates trap lifecycle states to the canonical
// fault/recovery split.
var trapCategoryMap = map[string]models.Category{
	"undefined":    models.CategoryNotSpecified,
	"new":          models.CategoryFault,
	"acknowledged": models.CategoryRecovery,
	"fixed":        models.CategoryRecovery,
	"removed":      models.CategoryRecovery,
	"autofixed":    models.CategoryRecovery,
}

// cliSeverityMap translates the capitalized severity words showalert
// prints. Unknown words degrade to NotSpecified.
var cliSeverityMap = map[string]models.Severity{
	"Critical":      models.SeverityCritical,
	"Major":         models.SeverityMajor,
	"Minor":         models.SeverityMinor,
	"Degraded":      models.SeverityWarning,
	"Fatal":         models.SeverityFatal,
	"Informational": models.SeverityInformational,
	"Debug":         models.SeverityNotSpecified,
}

// mandatoryTrapFields must all be present and non-empty for a trap to be
// usable at all.
var mandatoryTrapFields = []string{
	"component",
	"details",
	"nodeID",
	"severity",
	"timeOccurred",
	"id",
	"messageCode",
	"state",
	"serialNumber",
}

// ParseAlert turns one trap payload into a canonical alert. A missing
// mandatory field fails the whole trap; an unknown severity or state
// degrades to NotSpecified and still delivers.
func (d *Driver) ParseAlert(_ context.Context, trap map[string]string) (*models.Alert, error) {
	for _, attr := range mandatoryTrapFields {
		if trap[attr] == "" {
			return nil, driver.InvalidInput(
				"mandatory information " + attr + " missing in alert message")
		}
	}

	severity, ok := trapSeverityMap[trap["severity"]]
	if !ok {
		severity = models.SeverityNotSpecified
	}
	category, ok := trapCategoryMap[trap["state"]]
	if !ok {
		category = models.CategoryNotSpecified
	}

	alert := &models.Alert{
		AlertID:        trap["messageCode"],
		AlertName:      trap["messageCode"],
		Severity:       severity,
		Category:       category,
		Type:           models.EventTypeEquipmentAlarm,
		SequenceNumber: trap["id"],
		OccurTime:      d.parseTimestamp(trap["timeOccurred"]),
		Description:    trap["details"],
		Location:       trap["component"],
		ResourceType:   models.DefaultResourceType,
	}

	if trap["state"] == "autofixed" {
		alert.ClearCategory = models.ClearAutomatic
	}

	return alert, nil
}

// ListAlerts polls the array over SSH and parses every outstanding alert
// from the showalert output.
func (d *Driver) ListAlerts(ctx context.Context) ([]models.Alert, error) {
	out, err := d.ssh.Execute(ctx, cmdShowAlert)
	if err != nil {
		return nil, err
	}
	return d.parseShowAlert(out), nil
}

// ClearAlert acknowledges one alert occurrence via the CLI. A rejection
// printed by the array is a false result, not an error; only transport
// failures are errors.
func (d *Driver) ClearAlert(ctx context.Context, sequenceNumber string) (bool, error) {
	if sequenceNumber == "" {
		return false, driver.InvalidInput("sequence number is required")
	}

	out, err := d.ssh.Execute(ctx, cmdRemoveAlert+" "+sequenceNumber)
	if err != nil {
		return false, err
	}
	if rejected(out) {
		d.logger.Debug("array rejected alert clear",
			zap.String("sequence_number", sequenceNumber),
			zap.String("output", strings.TrimSpace(out)),
		)
		return false, nil
	}
	return true, nil
}

// alertRecord accumulates one showalert block. It is local to a single
// parse call so concurrent polls of different arrays never share state.
type alertRecord struct {
	alarmID     string
	messageCode string
	eventType   string
	severity    models.Severity
	category    models.Category
	occurTime   string
	message     string
}

func (r *alertRecord) reset() {
	*r = alertRecord{
		severity: models.SeverityNotSpecified,
		category: models.CategoryNotSpecified,
	}
}

// parseShowAlert recovers per-record boundaries from the flat text stream.
// Each line is "Key: Value"; a record is complete when the Component key
// appears, at which point the accumulator flushes and resets. If the
// array ever printed Component out of its usual terminal position,
// records would merge; that ordering is a CLI output contract.
func (d *Driver) parseShowAlert(raw string) []models.Alert {
	var alerts []models.Alert

	var rec alertRecord
	rec.reset()

	for _, line := range strings.Split(raw, "\n") {
		if line == "" {
			continue
		}
		kv := strings.SplitN(line, ": ", 2)
		if len(kv) != 2 {
			continue
		}
		key := strings.ReplaceAll(kv[0], " ", "")
		value := kv[1]

		switch key {
		case "Id":
			rec.alarmID = value
		case "State":
			if value == "New" {
				rec.category = models.CategoryFault
			}
		case "MessageCode":
			rec.messageCode = value
		case "Time":
			rec.occurTime = value
		case "Severity":
			if sev, ok := cliSeverityMap[value]; ok {
				rec.severity = sev
			}
		case "Type":
			rec.eventType = value
		case "Message":
			rec.message = value
		case "Component":
			// Terminal field: flush the accumulated record.
			alerts = append(alerts, models.Alert{
				AlertID:        rec.messageCode,
				AlertName:      rec.eventType,
				Severity:       rec.severity,
				Category:       rec.category,
				Type:           models.EventTypeEquipmentAlarm,
				SequenceNumber: rec.alarmID,
				OccurTime:      d.parseTimestamp(rec.occurTime),
				Description:    rec.message,
				Location:       value,
				ResourceType:   models.DefaultResourceType,
			})
			rec.reset()
		}
		// Unrecognized keys are ignored, not errors.
	}

	return alerts
}

// parseTimestamp converts a vendor timestamp to epoch milliseconds.
// Failure yields nil: a missing timestamp never drops the alert.
func (d *Driver) parseTimestamp(value string) *int64 {
	if value == "" {
		return nil
	}
	t, err := time.Parse(timeLayout, value)
	if err != nil {
		d.logger.Debug("unparsable alert timestamp",
			zap.String("value", value),
			zap.Error(err),
		)
		return nil
	}
	ms := t.UnixMilli()
	return &ms
}
