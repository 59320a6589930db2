package cloud

import "time"

// Property represents one named property of a device thing
type Property struct {
	ID         string      `json:"id"`
	Name       string      `json:"name"`
	Type       string      `json:"type"`
	Value      interface{} `json:"last_value"`
	UpdatedAt  time.Time   `json:"value_updated_at"`
	Permission string      `json:"permission"`
}

// Device represents a device snapshot fetched from the registry.
// Immutable once fetched; the monitor re-fetches every cycle.
type Device struct {
	ID             string              `json:"id"`
	Name           string              `json:"name"`
	LastActivityAt time.Time           `json:"last_activity_at"`
	Properties     map[string]Property `json:"properties"`
}

// FloatProperty returns the named property as a float64.
// The second return value is false when the property is missing or
// its value is not numeric.
func (d Device) FloatProperty(name string) (float64, bool) {
	p, ok := d.Properties[name]
	if !ok {
		return 0, false
	}
	switch v := p.Value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	default:
		return 0, false
	}
}

// BoolProperty returns the named property as a bool; missing or
// non-bool values read as false.
func (d Device) BoolProperty(name string) bool {
	p, ok := d.Properties[name]
	if !ok {
		return false
	}
	b, _ := p.Value.(bool)
	return b
}

// StringProperty returns the named property as a string
func (d Device) StringProperty(name string) (string, bool) {
	p, ok := d.Properties[name]
	if !ok {
		return "", false
	}
	s, ok := p.Value.(string)
	return s, ok
}

// PropertyUpdatedAt returns the last-updated timestamp of the named property
func (d Device) PropertyUpdatedAt(name string) (time.Time, bool) {
	p, ok := d.Properties[name]
	if !ok || p.UpdatedAt.IsZero() {
		return time.Time{}, false
	}
	return p.UpdatedAt, true
}

// thingJSON is the registry wire format for a thing with its properties
type thingJSON struct {
	ID             string         `json:"id"`
	Name           string         `json:"name"`
	LastActivityAt time.Time      `json:"last_activity_at"`
	Properties     []propertyJSON `json:"properties"`
}

type propertyJSON struct {
	ID             string      `json:"id"`
	Name           string      `json:"name"`
	Type           string      `json:"type"`
	LastValue      interface{} `json:"last_value"`
	ValueUpdatedAt time.Time   `json:"value_updated_at"`
	Permission     string      `json:"permission"`
}

func (t thingJSON) toDevice() Device {
	props := make(map[string]Property, len(t.Properties))
	for _, p := range t.Properties {
		props[p.Name] = Property{
			ID:         p.ID,
			Name:       p.Name,
			Type:       p.Type,
			Value:      p.LastValue,
			UpdatedAt:  p.ValueUpdatedAt,
			Permission: p.Permission,
		}
	}
	return Device{
		ID:             t.ID,
		Name:           t.Name,
		LastActivityAt: t.LastActivityAt,
		Properties:     props,
	}
}
