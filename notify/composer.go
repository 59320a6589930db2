package notify

import (
	"fmt"
	"strings"
	"time"

	"github.com/icewatch/ice-monitor/cloud"
	"github.com/icewatch/ice-monitor/health"
)

// Alert is a composed, ready-to-deliver notification for one device
type Alert struct {
	DeviceID   string    `json:"device_id"`
	DeviceName string    `json:"device_name"`
	Severity   string    `json:"severity"`
	Subject    string    `json:"subject"`
	Body       string    `json:"body"`
	Issues     []string  `json:"issues"`
	CreatedAt  time.Time `json:"created_at"`
}

const (
	// SeverityCritical marks disconnection or both conditions at once
	SeverityCritical = "CRITICAL"
	// SeverityWarning marks a single bad condition
	SeverityWarning = "Warning"
)

// Compose builds the human-readable alert for a verdict. It only
// formats what the evaluator already derived; badness is never
// recomputed here.
func Compose(dev cloud.Device, v health.Verdict, now time.Time) Alert {
	issues := make([]string, 0, 3)

	if v.IsDisconnected {
		issues = append(issues, fmt.Sprintf(
			"No messages received from the device since %s (%.0f minutes ago). The unit may have lost power or network.",
			v.Metrics.LastActivityAt.Format("Jan 2 15:04 MST"),
			v.Metrics.MinutesSinceActivity))
	}
	if v.IsTemperatureBad {
		issues = append(issues, fmt.Sprintf(
			"Ice temperature is %.1f°F (%.1f°C), above the configured maximum of %.1f°F (%.1f°C).",
			celsiusToFahrenheit(v.Metrics.Temperature), v.Metrics.Temperature,
			celsiusToFahrenheit(v.Metrics.TempThreshold), v.Metrics.TempThreshold))
	}
	if v.IsFlowBad {
		issues = append(issues, fmt.Sprintf(
			"No water flow recorded for %.1f hours (critical after %.0f hours).",
			v.Metrics.HoursSinceFlow, v.Metrics.NoFlowCriticalHours))
	}

	severity := SeverityWarning
	if v.ShouldBeCritical {
		severity = SeverityCritical
	}

	name := dev.Name
	if name == "" {
		name = dev.ID
	}

	return Alert{
		DeviceID:   dev.ID,
		DeviceName: name,
		Severity:   severity,
		Subject:    fmt.Sprintf("%s: ice machine %q needs attention", severity, name),
		Body:       renderBody(name, severity, issues, now),
		Issues:     issues,
		CreatedAt:  now,
	}
}

// renderBody produces the HTML mail body
func renderBody(name, severity string, issues []string, now time.Time) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("<h3>%s status for ice machine %s</h3>\n", severity, name))
	b.WriteString("<ul>\n")
	for _, issue := range issues {
		b.WriteString(fmt.Sprintf("  <li>%s</li>\n", issue))
	}
	b.WriteString("</ul>\n")
	b.WriteString(fmt.Sprintf("<p>Checked at %s.</p>\n", now.Format("Jan 2 2006 15:04 MST")))
	return b.String()
}

func celsiusToFahrenheit(c float64) float64 {
	return c*9/5 + 32
}
