package storage

import (
	"sync"
	"time"

	"github.com/icewatch/ice-monitor/logger"
)

// StatusChange is one audit record: a device's published health flags
// transitioned during a monitor cycle.
type StatusChange struct {
	DeviceID   string    `json:"device_id"`
	DeviceName string    `json:"device_name"`
	Warning    bool      `json:"warning"`
	Critical   bool      `json:"critical"`
	Issues     []string  `json:"issues"`
	ChangedAt  time.Time `json:"changed_at"`
}

// Backend persists status changes
type Backend interface {
	// Record persists one status change
	Record(change StatusChange) error
	// Close releases the backend
	Close() error
}

// Manager fans status changes out to every configured backend
type Manager struct {
	backends []Backend
	mutex    sync.RWMutex
}

// NewManager creates a new storage manager
func NewManager(backends []Backend) *Manager {
	return &Manager{backends: backends}
}

// Record writes the change to all backends. A failing backend is logged
// and the remaining backends still receive the record.
func (m *Manager) Record(change StatusChange) error {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	for _, backend := range m.backends {
		if err := backend.Record(change); err != nil {
			logger.Error("failed to record status change for device %s: %v", change.DeviceID, err)
		}
	}
	return nil
}

// Close closes all backends
func (m *Manager) Close() {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	for _, backend := range m.backends {
		if err := backend.Close(); err != nil {
			logger.Error("failed to close storage backend: %v", err)
		}
	}
}

// AddBackend adds another backend
func (m *Manager) AddBackend(backend Backend) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.backends = append(m.backends, backend)
}
