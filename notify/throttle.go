package notify

import (
	"sync"
	"time"
)

// Throttle is the per-device cooldown ledger. It is the sole gate
// preventing alert storms from a device that stays critical across
// many poll cycles.
type Throttle struct {
	mu       sync.Mutex
	cooldown time.Duration
	lastSent map[string]time.Time
}

// NewThrottle creates a throttle with the given cooldown
func NewThrottle(cooldown time.Duration) *Throttle {
	return &Throttle{
		cooldown: cooldown,
		lastSent: make(map[string]time.Time),
	}
}

// ShouldNotify reports whether a notification for the device is due:
// either no notification was ever sent, or the cooldown has elapsed.
func (t *Throttle) ShouldNotify(deviceID string, now time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	last, ok := t.lastSent[deviceID]
	if !ok {
		return true
	}
	return now.Sub(last) >= t.cooldown
}

// RecordSent marks a successful notification. Must only be called after
// the send actually succeeded, so a failed send is retried next cycle.
func (t *Throttle) RecordSent(deviceID string, now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lastSent[deviceID] = now
}

// Clear drops the ledger entry for a device. Called when the device is
// healthy again, so a later regression notifies immediately instead of
// waiting out a stale cooldown.
func (t *Throttle) Clear(deviceID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.lastSent, deviceID)
}

// SetCooldown updates the cooldown, applied from config reload
func (t *Throttle) SetCooldown(cooldown time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cooldown = cooldown
}

// Len returns the number of tracked devices
func (t *Throttle) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.lastSent)
}
