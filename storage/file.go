package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/icewatch/ice-monitor/logger"
)

// FileStorage writes one JSON file per status change under a per-device directory
type FileStorage struct {
	basePath string
}

// NewFileStorage creates the file backend
func NewFileStorage(basePath string) (*FileStorage, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("create dir %s failed: %v", basePath, err)
	}

	logger.Info("init file storage: %s", basePath)
	return &FileStorage{basePath: basePath}, nil
}

// Record saves the change to a timestamped file
func (fs *FileStorage) Record(change StatusChange) error {
	deviceDir := filepath.Join(fs.basePath, change.DeviceID)
	if err := os.MkdirAll(deviceDir, 0755); err != nil {
		return fmt.Errorf("create dir %s failed: %v", deviceDir, err)
	}

	timestamp := change.ChangedAt.Format("20060102-150405.000")
	filename := filepath.Join(deviceDir, fmt.Sprintf("%s.json", timestamp))

	jsonData, err := json.MarshalIndent(change, "", "  ")
	if err != nil {
		return fmt.Errorf("serialize status change failed: %v", err)
	}

	if err := os.WriteFile(filename, jsonData, 0644); err != nil {
		return fmt.Errorf("write file %s failed: %v", filename, err)
	}

	logger.Debug("recorded status change to file: %s", filename)
	return nil
}

// Close implements Backend
func (fs *FileStorage) Close() error {
	return nil
}
