// Package storage implements the transport interfaces of the ccdb and rcdb
// packages against the stores' on-disk formats: read-only SQLite snapshot
// files (the form both stores are distributed in), plus a Postgres mirror
// of the run-condition schema for deployments that query a live service.
package storage

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// openSQLite opens an SQLite file strictly read-only. The snapshot files
// are shared between many analysis jobs; nothing here may ever write.
func openSQLite(path string) (*sql.DB, error) {
	dsn := "file:" + path + "?mode=ro&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("storage: open %s: %w", path, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage: open %s: %w", path, err)
	}
	return db, nil
}
