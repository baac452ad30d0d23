package telemetry

import (
	"database/sql"

	"codeberg.org/mutker/thermalctl/internal/errors"
)

// initSchema initializes the database schema for reading history
func initSchema(db *sql.DB) error {
	_, err := db.Exec(`
        CREATE TABLE IF NOT EXISTS readings (
            taken_at INTEGER,
            sensor TEXT,
            temperature INTEGER,
            status TEXT,
            PRIMARY KEY (taken_at, sensor)
        )
    `)
	if err != nil {
		return errors.New().Wrap(ErrStorageInit, err)
	}

	return nil
}
