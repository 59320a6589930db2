package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/icewatch/ice-monitor/logger"
	_ "github.com/lib/pq"
)

// PostgreSQLStorage persists status changes to PostgreSQL
type PostgreSQLStorage struct {
	db  *sql.DB
	dsn string
}

// NewPostgreSQLStorage creates the PostgreSQL backend
func NewPostgreSQLStorage(dsn string) (*PostgreSQLStorage, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL: %v", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("PostgreSQL connection test failed: %v", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Minute * 5)

	storage := &PostgreSQLStorage{db: db, dsn: dsn}

	if err := storage.InitDatabase(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize PostgreSQL schema: %v", err)
	}

	logger.Info("PostgreSQL status-change storage initialized")
	return storage, nil
}

// InitDatabase creates the status_changes table if needed
func (ps *PostgreSQLStorage) InitDatabase() error {
	tableSQL := `
	CREATE TABLE IF NOT EXISTS status_changes (
		id SERIAL PRIMARY KEY,
		device_id VARCHAR(255) NOT NULL,
		device_name VARCHAR(255) NOT NULL,
		warning BOOLEAN NOT NULL,
		critical BOOLEAN NOT NULL,
		issues JSONB,
		changed_at TIMESTAMP NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_status_device_id ON status_changes(device_id);
	CREATE INDEX IF NOT EXISTS idx_status_changed_at ON status_changes(changed_at);
	`

	if _, err := ps.db.Exec(tableSQL); err != nil {
		return fmt.Errorf("failed to create status_changes table: %v", err)
	}
	return nil
}

// Record inserts one status change
func (ps *PostgreSQLStorage) Record(change StatusChange) error {
	issuesJSON, err := json.Marshal(change.Issues)
	if err != nil {
		return fmt.Errorf("failed to serialize issues: %v", err)
	}

	insertSQL := `INSERT INTO status_changes (device_id, device_name, warning, critical, issues, changed_at)
		VALUES ($1, $2, $3, $4, $5, $6)`
	if _, err := ps.db.Exec(insertSQL, change.DeviceID, change.DeviceName,
		change.Warning, change.Critical, issuesJSON, change.ChangedAt); err != nil {
		return fmt.Errorf("failed to insert status change: %v", err)
	}

	logger.Debug("recorded status change for device %s in PostgreSQL", change.DeviceID)
	return nil
}

// Close closes the database connection
func (ps *PostgreSQLStorage) Close() error {
	return ps.db.Close()
}
