package notify

import (
	"strings"
	"testing"
	"time"
)

func testAlert() Alert {
	return Alert{
		DeviceID:   "thing-1",
		DeviceName: "lobby unit",
		Severity:   SeverityWarning,
		Subject:    "Warning: ice machine \"lobby unit\" needs attention",
		Body:       "<p>warning</p>",
		Issues:     []string{"Ice temperature is high."},
		CreatedAt:  time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC),
	}
}

func TestFilterSuppresses(t *testing.T) {
	script := `
		function filter(alert) {
			return alert.severity !== "CRITICAL" ? false : true;
		}
	`
	f, err := newFilter(script)
	if err != nil {
		t.Fatalf("newFilter: %v", err)
	}

	_, keep, err := f.Apply(testAlert())
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if keep {
		t.Error("warning alert should have been suppressed")
	}

	critical := testAlert()
	critical.Severity = SeverityCritical
	_, keep, err = f.Apply(critical)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if !keep {
		t.Error("critical alert should pass through")
	}
}

func TestFilterOverridesSubject(t *testing.T) {
	script := `
		function filter(alert) {
			return { subject: "[ops] " + alert.subject };
		}
	`
	f, err := newFilter(script)
	if err != nil {
		t.Fatalf("newFilter: %v", err)
	}

	out, keep, err := f.Apply(testAlert())
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if !keep {
		t.Fatal("alert should not be suppressed")
	}
	if !strings.HasPrefix(out.Subject, "[ops] ") {
		t.Errorf("subject override not applied: %q", out.Subject)
	}
	if out.Body != testAlert().Body {
		t.Errorf("body should be unchanged: %q", out.Body)
	}
}

func TestFilterRejectsScriptWithoutFunction(t *testing.T) {
	if _, err := newFilter(`var x = 1;`); err == nil {
		t.Error("script without a filter function must be rejected")
	}
}

func TestFilterScriptErrorKeepsAlert(t *testing.T) {
	script := `
		function filter(alert) {
			throw new Error("boom");
		}
	`
	f, err := newFilter(script)
	if err != nil {
		t.Fatalf("newFilter: %v", err)
	}

	_, keep, err := f.Apply(testAlert())
	if err == nil {
		t.Fatal("expected script error")
	}
	if !keep {
		t.Error("a failing filter must not drop the alert")
	}
}
