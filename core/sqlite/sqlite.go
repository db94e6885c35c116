// Package sqlite opens translation databases through either the pure Go
// driver (modernc.org/sqlite) or the CGO driver (mattn/go-sqlite3).
//
// Build modes:
//   - Default (CGO_ENABLED=0): modernc.org/sqlite, driver name "sqlite"
//   - CGO mode (CGO_ENABLED=1 -tags cgo_sqlite): mattn/go-sqlite3, driver name "sqlite3"
//
// Use Open() instead of sql.Open() to ensure the correct driver is used.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// DriverName returns the SQL driver name to use.
func DriverName() string {
	return driverName
}

// DriverType returns a string identifying the underlying implementation.
// Returns "cgo" for mattn/go-sqlite3, "purego" for modernc.org/sqlite.
func DriverType() string {
	return driverType
}

// IsCGO returns true if the CGO implementation is being used.
func IsCGO() bool {
	return driverType == "cgo"
}

// Open opens a SQLite database using the appropriate driver.
func Open(dataSourceName string) (*sql.DB, error) {
	return sql.Open(driverName, dataSourceName)
}

// OpenReadOnly opens a SQLite database in read-only mode.
func OpenReadOnly(path string) (*sql.DB, error) {
	if strings.HasPrefix(path, "file:") {
		return Open(path + "?mode=ro")
	}
	return Open("file:" + path + "?mode=ro")
}

// MustOpen opens a SQLite database and panics on error.
// This is intended for tests where database access failure is unrecoverable.
func MustOpen(dataSourceName string) *sql.DB {
	db, err := Open(dataSourceName)
	if err != nil {
		panic(fmt.Sprintf("sqlite: failed to open %s: %v", dataSourceName, err))
	}
	return db
}

// TableExists reports whether the database has a table with the given name.
func TableExists(ctx context.Context, db *sql.DB, name string) (bool, error) {
	var n int
	err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?`, name).Scan(&n)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// WithTx runs fn inside a transaction, committing on success and rolling
// back on error.
func WithTx(ctx context.Context, db *sql.DB, fn func(*sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// Info contains information about the SQLite driver configuration.
type Info struct {
	DriverName string `json:"driver_name"`
	DriverType string `json:"driver_type"`
	IsCGO      bool   `json:"is_cgo"`
	Package    string `json:"package"`
}

// GetInfo returns information about the current SQLite configuration.
func GetInfo() Info {
	return Info{
		DriverName: driverName,
		DriverType: driverType,
		IsCGO:      IsCGO(),
		Package:    driverPackage,
	}
}
