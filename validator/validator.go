package validator

import (
	"fmt"
	"reflect"

	"github.com/icewatch/ice-monitor/config"
)

// Validator validates a piece of data
type Validator interface {
	// Validate returns an error when the data is out of contract
	Validate(data interface{}) error
}

// RangeValidator checks that a numeric struct field lies within [Min, Max]
type RangeValidator struct {
	Field string
	Min   float64
	Max   float64
}

// Validate checks the named field on a struct value
func (rv *RangeValidator) Validate(data interface{}) error {
	v := reflect.ValueOf(data)
	if v.Kind() == reflect.Ptr {
		v = v.Elem()
	}

	if v.Kind() != reflect.Struct {
		return fmt.Errorf("data must be a struct")
	}

	field := v.FieldByName(rv.Field)
	if !field.IsValid() {
		return fmt.Errorf("field %s does not exist", rv.Field)
	}

	var value float64
	switch field.Kind() {
	case reflect.Float32, reflect.Float64:
		value = field.Float()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		value = float64(field.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		value = float64(field.Uint())
	default:
		return fmt.Errorf("field %s is not numeric", rv.Field)
	}

	if value < rv.Min || value > rv.Max {
		return fmt.Errorf("field %s value %v is outside range [%v, %v]", rv.Field, value, rv.Min, rv.Max)
	}

	return nil
}

// monitorRules are the sanity bounds for the polling loop settings
var monitorRules = []RangeValidator{
	{Field: "IntervalMinutes", Min: 1, Max: 1440},
	{Field: "CooldownMinutes", Min: 1, Max: 10080},
	{Field: "BatchSize", Min: 1, Max: 100},
}

// ValidateMonitorConfig checks the polling loop settings at startup and
// on config reload.
func ValidateMonitorConfig(cfg config.MonitorConfig) error {
	for i := range monitorRules {
		if err := monitorRules[i].Validate(cfg); err != nil {
			return fmt.Errorf("invalid monitor config: %v", err)
		}
	}
	return nil
}
