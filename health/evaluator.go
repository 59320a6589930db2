package health

import (
	"time"

	"github.com/icewatch/ice-monitor/cloud"
)

const (
	// A device silent for this long is considered disconnected
	disconnectAfterMinutes = 5

	propTemperature   = "cloudtemp"
	propTempThreshold = "tempThresholdMax"
	propFlowRate      = "cloudflowrate"
	propNoFlowHours   = "noFlowCriticalTime"
	propWarning       = "warning"
	propCritical      = "critical"
)

// Metrics carries the raw readings a verdict was derived from, so the
// alert text can report them without re-deriving anything.
type Metrics struct {
	MinutesSinceActivity float64
	LastActivityAt       time.Time

	Temperature    float64
	TempThreshold  float64
	HasTemperature bool

	HoursSinceFlow      float64
	NoFlowCriticalHours float64
	HasFlow             bool
}

// Verdict is the derived health classification for one device at one
// point in time. Recomputed every cycle, never persisted.
type Verdict struct {
	IsDisconnected   bool
	IsTemperatureBad bool
	IsFlowBad        bool
	ShouldBeWarning  bool
	ShouldBeCritical bool

	StatusChanged     bool
	NeedsNotification bool

	Metrics Metrics
}

// Healthy reports whether the verdict carries no warning or critical condition
func (v Verdict) Healthy() bool {
	return !v.ShouldBeWarning && !v.ShouldBeCritical
}

// Evaluate derives a health verdict from a device snapshot. Pure and
// deterministic; absent or invalid readings degrade to "not bad" and
// never trigger an alert on their own.
//
// Warning is the XOR of the temperature and flow conditions; critical is
// disconnection or both conditions at once. A disconnected device keeps
// requesting notification even when its published flags are unchanged,
// since "still down" is itself actionable.
func Evaluate(dev cloud.Device, now time.Time) Verdict {
	var v Verdict

	if !dev.LastActivityAt.IsZero() {
		v.Metrics.LastActivityAt = dev.LastActivityAt
		v.Metrics.MinutesSinceActivity = now.Sub(dev.LastActivityAt).Minutes()
		v.IsDisconnected = v.Metrics.MinutesSinceActivity >= disconnectAfterMinutes
	}

	temp, okTemp := dev.FloatProperty(propTemperature)
	threshold, okThreshold := dev.FloatProperty(propTempThreshold)
	if okTemp && okThreshold {
		v.Metrics.Temperature = temp
		v.Metrics.TempThreshold = threshold
		v.Metrics.HasTemperature = true
		v.IsTemperatureBad = temp > threshold
	}

	flowUpdatedAt, okFlow := dev.PropertyUpdatedAt(propFlowRate)
	criticalHours, okCritical := dev.FloatProperty(propNoFlowHours)
	if okFlow && okCritical {
		v.Metrics.HoursSinceFlow = now.Sub(flowUpdatedAt).Hours()
		v.Metrics.NoFlowCriticalHours = criticalHours
		v.Metrics.HasFlow = true
		v.IsFlowBad = v.Metrics.HoursSinceFlow >= criticalHours
	}

	// A disconnected device is critical, never merely warning
	v.ShouldBeWarning = (v.IsTemperatureBad != v.IsFlowBad) && !v.IsDisconnected
	v.ShouldBeCritical = v.IsDisconnected || (v.IsTemperatureBad && v.IsFlowBad)

	prevWarning := dev.BoolProperty(propWarning)
	prevCritical := dev.BoolProperty(propCritical)
	v.StatusChanged = v.ShouldBeWarning != prevWarning || v.ShouldBeCritical != prevCritical
	v.NeedsNotification = v.StatusChanged || v.IsDisconnected

	return v
}
