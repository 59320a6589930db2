package validator

import (
	"testing"

	"github.com/icewatch/ice-monitor/config"
)

func TestRangeValidator(t *testing.T) {
	type sample struct {
		Value int
		Name  string
	}

	rv := RangeValidator{Field: "Value", Min: 1, Max: 10}
	if err := rv.Validate(sample{Value: 5}); err != nil {
		t.Errorf("in-range value rejected: %v", err)
	}
	if err := rv.Validate(&sample{Value: 5}); err != nil {
		t.Errorf("pointer to struct rejected: %v", err)
	}
	if err := rv.Validate(sample{Value: 11}); err == nil {
		t.Error("out-of-range value accepted")
	}

	missing := RangeValidator{Field: "Nope", Min: 0, Max: 1}
	if err := missing.Validate(sample{}); err == nil {
		t.Error("missing field accepted")
	}

	nonNumeric := RangeValidator{Field: "Name", Min: 0, Max: 1}
	if err := nonNumeric.Validate(sample{Name: "x"}); err == nil {
		t.Error("non-numeric field accepted")
	}
}

func TestValidateMonitorConfig(t *testing.T) {
	good := config.MonitorConfig{IntervalMinutes: 60, CooldownMinutes: 60, BatchSize: 5}
	if err := ValidateMonitorConfig(good); err != nil {
		t.Errorf("valid config rejected: %v", err)
	}

	bad := []config.MonitorConfig{
		{IntervalMinutes: 0, CooldownMinutes: 60, BatchSize: 5},
		{IntervalMinutes: 60, CooldownMinutes: 0, BatchSize: 5},
		{IntervalMinutes: 60, CooldownMinutes: 60, BatchSize: 0},
		{IntervalMinutes: 60, CooldownMinutes: 60, BatchSize: 500},
	}
	for i, cfg := range bad {
		if err := ValidateMonitorConfig(cfg); err == nil {
			t.Errorf("case %d: invalid config accepted: %+v", i, cfg)
		}
	}
}
