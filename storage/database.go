package storage

import (
	"fmt"
)

// DatabaseType selects the SQL backend
type DatabaseType string

const (
	// MySQL backend
	MySQL DatabaseType = "mysql"
	// PostgreSQL backend
	PostgreSQL DatabaseType = "postgresql"
)

// DatabaseStorage is a SQL-backed Backend
type DatabaseStorage interface {
	Backend
	// InitDatabase creates the schema if needed
	InitDatabase() error
}

// NewDatabaseStorage creates a database backend for the configured type
func NewDatabaseStorage(dbType string, dsn string) (DatabaseStorage, error) {
	switch DatabaseType(dbType) {
	case MySQL:
		return NewMySQLStorage(dsn)
	case PostgreSQL:
		return NewPostgreSQLStorage(dsn)
	default:
		return nil, fmt.Errorf("unsupported database type: %s", dbType)
	}
}
