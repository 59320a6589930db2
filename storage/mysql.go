package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/icewatch/ice-monitor/logger"
)

// MySQLStorage persists status changes to MySQL
type MySQLStorage struct {
	db  *sql.DB
	dsn string
}

// NewMySQLStorage creates the MySQL backend
func NewMySQLStorage(dsn string) (*MySQLStorage, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MySQL: %v", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("MySQL connection test failed: %v", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Minute * 5)

	storage := &MySQLStorage{db: db, dsn: dsn}

	if err := storage.InitDatabase(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize MySQL schema: %v", err)
	}

	logger.Info("MySQL status-change storage initialized")
	return storage, nil
}

// InitDatabase creates the status_changes table if needed
func (ms *MySQLStorage) InitDatabase() error {
	tableSQL := `
	CREATE TABLE IF NOT EXISTS status_changes (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		device_id VARCHAR(255) NOT NULL,
		device_name VARCHAR(255) NOT NULL,
		warning BOOLEAN NOT NULL,
		critical BOOLEAN NOT NULL,
		issues JSON,
		changed_at DATETIME NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		INDEX idx_status_device_id (device_id),
		INDEX idx_status_changed_at (changed_at)
	)`

	if _, err := ms.db.Exec(tableSQL); err != nil {
		return fmt.Errorf("failed to create status_changes table: %v", err)
	}
	return nil
}

// Record inserts one status change
func (ms *MySQLStorage) Record(change StatusChange) error {
	issuesJSON, err := json.Marshal(change.Issues)
	if err != nil {
		return fmt.Errorf("failed to serialize issues: %v", err)
	}

	insertSQL := `INSERT INTO status_changes (device_id, device_name, warning, critical, issues, changed_at)
		VALUES (?, ?, ?, ?, ?, ?)`
	if _, err := ms.db.Exec(insertSQL, change.DeviceID, change.DeviceName,
		change.Warning, change.Critical, issuesJSON, change.ChangedAt); err != nil {
		return fmt.Errorf("failed to insert status change: %v", err)
	}

	logger.Debug("recorded status change for device %s in MySQL", change.DeviceID)
	return nil
}

// Close closes the database connection
func (ms *MySQLStorage) Close() error {
	return ms.db.Close()
}
