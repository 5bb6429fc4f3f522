package telemetry

import (
	"database/sql"

	"codeberg.org/mutker/battctl/internal/errors"
	"codeberg.org/mutker/battctl/internal/logger"
)

const (
	SchemaVersion = 1

	createTablesSQL = `
	   CREATE TABLE IF NOT EXISTS schema_versions (
	       version     INTEGER PRIMARY KEY,
	       applied_at  TEXT NOT NULL
	   );
	   CREATE TABLE IF NOT EXISTS cycles (
	       timestamp         INTEGER PRIMARY KEY,
	       phone_voltage     INTEGER NOT NULL,
	       phone_current     INTEGER NOT NULL,
	       phone_capacity    INTEGER NOT NULL,
	       phone_status      TEXT NOT NULL,
	       keyboard_voltage  INTEGER NOT NULL,
	       keyboard_current  INTEGER NOT NULL,
	       keyboard_capacity INTEGER NOT NULL,
	       keyboard_status   TEXT NOT NULL,
	       action            TEXT NOT NULL,
	       limit_ma          INTEGER NOT NULL,
	       target_ma         INTEGER NOT NULL,
	       direction         TEXT NOT NULL
	   );`

	insertCycleSQL = `
    INSERT OR REPLACE INTO cycles (
        timestamp,
        phone_voltage, phone_current, phone_capacity, phone_status,
        keyboard_voltage, keyboard_current, keyboard_capacity, keyboard_status,
        action, limit_ma, target_ma, direction
    ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
)

// InitSchema creates the schema if it is missing and records the version.
func InitSchema(db *sql.DB) error {
	errFactory := errors.New()

	version, err := GetSchemaVersion(db)
	if err != nil {
		return err
	}
	if version == SchemaVersion {
		return nil
	}

	tx, err := db.Begin()
	if err != nil {
		return errFactory.Wrap(ErrSchemaInitFailed, err)
	}

	committed := false
	defer func() {
		if !committed {
			if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
				logger.Debug().Err(err).Msg("Failed to roll back schema transaction")
			}
		}
	}()

	if _, err := tx.Exec(createTablesSQL); err != nil {
		return errFactory.Wrap(ErrSchemaInitFailed, err)
	}

	if _, err := tx.Exec(`
        INSERT INTO schema_versions (version, applied_at)
        VALUES (?, datetime('now'))
    `, SchemaVersion); err != nil {
		return errFactory.Wrap(ErrSchemaInitFailed, err)
	}

	if err := tx.Commit(); err != nil {
		return errFactory.Wrap(ErrSchemaInitFailed, err)
	}
	committed = true

	logger.Debug().Int("version", SchemaVersion).Msg("Telemetry schema initialized")

	return nil
}

// GetSchemaVersion returns the version recorded in the database, or 0 for a
// fresh database.
func GetSchemaVersion(db *sql.DB) (int, error) {
	errFactory := errors.New()

	exists, err := tableExists(db, "schema_versions")
	if err != nil {
		return 0, err
	}
	if !exists {
		return 0, nil
	}

	var version int
	err = db.QueryRow(`
        SELECT version
        FROM schema_versions
        ORDER BY version DESC
        LIMIT 1
    `).Scan(&version)

	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, errFactory.Wrap(ErrSchemaInitFailed, err)
	}

	return version, nil
}

func tableExists(db *sql.DB, tableName string) (bool, error) {
	errFactory := errors.New()

	var exists bool
	err := db.QueryRow(`
        SELECT EXISTS (
            SELECT 1 FROM sqlite_master
            WHERE type='table' AND name=?
        )
    `, tableName).Scan(&exists)
	if err != nil {
		return false, errFactory.Wrap(ErrSchemaInitFailed, err)
	}

	return exists, nil
}
