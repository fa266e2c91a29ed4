package sqliteutil

import (
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"
)

// OpenDB opens the sqlite database at `path` (":memory:" works too) and applies `schema`.
// The schema is expected to be idempotent, "already exists" errors are ignored.
func OpenDB(schema, path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// every connection to ":memory:" is its own database
	db.SetMaxOpenConns(1)

	if strings.TrimSpace(schema) == "" {
		return db, nil
	}
	_, err = db.Exec(schema)
	if err != nil && !strings.Contains(err.Error(), "already exists") {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return db, nil
}
