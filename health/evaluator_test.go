package health

import (
	"reflect"
	"testing"
	"time"

	"github.com/icewatch/ice-monitor/cloud"
)

var testNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func prop(v interface{}) cloud.Property {
	return cloud.Property{Value: v}
}

func propAt(v interface{}, updatedAt time.Time) cloud.Property {
	return cloud.Property{Value: v, UpdatedAt: updatedAt}
}

func device(lastActivity time.Time, props map[string]cloud.Property) cloud.Device {
	return cloud.Device{
		ID:             "thing-1",
		Name:           "lobby unit",
		LastActivityAt: lastActivity,
		Properties:     props,
	}
}

func TestEvaluateScenarios(t *testing.T) {
	tests := []struct {
		name string
		dev  cloud.Device
		want Verdict
	}{
		{
			// Disconnected with bad temperature: critical via
			// disconnection, never merely warning
			name: "disconnected with hot ice",
			dev: device(testNow.Add(-10*time.Minute), map[string]cloud.Property{
				"cloudtemp":          prop(5.0),
				"tempThresholdMax":   prop(-1.0),
				"cloudflowrate":      propAt(1.2, testNow.Add(-2*time.Hour)),
				"noFlowCriticalTime": prop(6.0),
			}),
			want: Verdict{
				IsDisconnected:    true,
				IsTemperatureBad:  true,
				IsFlowBad:         false,
				ShouldBeWarning:   false,
				ShouldBeCritical:  true,
				StatusChanged:     true,
				NeedsNotification: true,
			},
		},
		{
			name: "healthy device",
			dev: device(testNow, map[string]cloud.Property{
				"cloudtemp":          prop(-5.0),
				"tempThresholdMax":   prop(-1.0),
				"cloudflowrate":      propAt(1.2, testNow.Add(-1*time.Hour)),
				"noFlowCriticalTime": prop(6.0),
			}),
			want: Verdict{},
		},
		{
			// Both conditions bad at once escalates to critical, not a
			// double-counted warning
			name: "temperature and flow both bad",
			dev: device(testNow, map[string]cloud.Property{
				"cloudtemp":          prop(5.0),
				"tempThresholdMax":   prop(-1.0),
				"cloudflowrate":      propAt(0.0, testNow.Add(-8*time.Hour)),
				"noFlowCriticalTime": prop(6.0),
			}),
			want: Verdict{
				IsTemperatureBad:  true,
				IsFlowBad:         true,
				ShouldBeCritical:  true,
				StatusChanged:     true,
				NeedsNotification: true,
			},
		},
		{
			name: "only temperature bad is warning",
			dev: device(testNow, map[string]cloud.Property{
				"cloudtemp":          prop(3.0),
				"tempThresholdMax":   prop(-1.0),
				"cloudflowrate":      propAt(1.5, testNow.Add(-1*time.Hour)),
				"noFlowCriticalTime": prop(6.0),
			}),
			want: Verdict{
				IsTemperatureBad:  true,
				ShouldBeWarning:   true,
				StatusChanged:     true,
				NeedsNotification: true,
			},
		},
		{
			name: "only stale flow is warning",
			dev: device(testNow, map[string]cloud.Property{
				"cloudtemp":          prop(-5.0),
				"tempThresholdMax":   prop(-1.0),
				"cloudflowrate":      propAt(0.0, testNow.Add(-7*time.Hour)),
				"noFlowCriticalTime": prop(6.0),
			}),
			want: Verdict{
				IsFlowBad:         true,
				ShouldBeWarning:   true,
				StatusChanged:     true,
				NeedsNotification: true,
			},
		},
		{
			// Missing readings must never alert on their own
			name: "missing properties stay healthy",
			dev:  device(testNow, map[string]cloud.Property{}),
			want: Verdict{},
		},
		{
			name: "non-numeric threshold treated as absent",
			dev: device(testNow, map[string]cloud.Property{
				"cloudtemp":          prop(5.0),
				"tempThresholdMax":   prop("broken"),
				"cloudflowrate":      propAt(1.0, testNow.Add(-1*time.Hour)),
				"noFlowCriticalTime": prop("n/a"),
			}),
			want: Verdict{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Evaluate(tt.dev, testNow)
			got.Metrics = Metrics{}
			if got != tt.want {
				t.Errorf("Evaluate() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestEvaluateCriticalInvariant(t *testing.T) {
	// Critical holds exactly when disconnected or both conditions bad
	devs := []cloud.Device{
		device(testNow.Add(-20*time.Minute), nil),
		device(testNow, map[string]cloud.Property{
			"cloudtemp":          prop(9.0),
			"tempThresholdMax":   prop(-1.0),
			"cloudflowrate":      propAt(0.0, testNow.Add(-10*time.Hour)),
			"noFlowCriticalTime": prop(6.0),
		}),
		device(testNow, map[string]cloud.Property{
			"cloudtemp":        prop(9.0),
			"tempThresholdMax": prop(-1.0),
		}),
	}
	for _, dev := range devs {
		v := Evaluate(dev, testNow)
		expected := v.IsDisconnected || (v.IsTemperatureBad && v.IsFlowBad)
		if v.ShouldBeCritical != expected {
			t.Errorf("critical invariant violated: %+v", v)
		}
		if v.ShouldBeWarning && v.ShouldBeCritical && v.IsDisconnected {
			t.Errorf("disconnected device must not be warning: %+v", v)
		}
	}
}

func TestEvaluatePersistentDisconnectKeepsNotifying(t *testing.T) {
	// Flags already published as critical, device still silent: no
	// status change, but the verdict still requests notification
	dev := device(testNow.Add(-3*time.Hour), map[string]cloud.Property{
		"critical": prop(true),
		"warning":  prop(false),
	})
	v := Evaluate(dev, testNow)
	if !v.IsDisconnected || !v.ShouldBeCritical {
		t.Fatalf("expected disconnected critical verdict, got %+v", v)
	}
	if v.StatusChanged {
		t.Errorf("status should be unchanged")
	}
	if !v.NeedsNotification {
		t.Errorf("persistently disconnected device must keep requesting notification")
	}
}

func TestEvaluateRecoveryChangesStatus(t *testing.T) {
	// Healthy readings but stale published flags: publish must be requested
	dev := device(testNow, map[string]cloud.Property{
		"cloudtemp":          prop(-5.0),
		"tempThresholdMax":   prop(-1.0),
		"cloudflowrate":      propAt(1.0, testNow.Add(-1*time.Hour)),
		"noFlowCriticalTime": prop(6.0),
		"critical":           prop(true),
	})
	v := Evaluate(dev, testNow)
	if !v.Healthy() {
		t.Fatalf("expected healthy verdict, got %+v", v)
	}
	if !v.StatusChanged {
		t.Errorf("recovery must report a status change")
	}
}

func TestEvaluateIsPure(t *testing.T) {
	dev := device(testNow.Add(-10*time.Minute), map[string]cloud.Property{
		"cloudtemp":          prop(5.0),
		"tempThresholdMax":   prop(-1.0),
		"cloudflowrate":      propAt(1.2, testNow.Add(-2*time.Hour)),
		"noFlowCriticalTime": prop(6.0),
	})
	first := Evaluate(dev, testNow)
	second := Evaluate(dev, testNow)
	if !reflect.DeepEqual(first, second) {
		t.Errorf("Evaluate is not deterministic: %+v vs %+v", first, second)
	}
}
