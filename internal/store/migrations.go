package store

import (
	"database/sql"
	"fmt"
	"io"
	"os"
	"time"

	"digibox/internal/logging"
)

// Schema versions:
// v1: kv(key, value)
// v2: kv.updated_at
const CurrentSchemaVersion = 2

// MigrationResult holds the result of a migration operation.
type MigrationResult struct {
	FromVersion   int
	ToVersion     int
	MigrationsRun int
	BackupPath    string
	Duration      time.Duration
}

// Migration adds one column to bring a database to Version.
type Migration struct {
	Version int
	Table   string
	Column  string
	Def     string
}

var migrations = []Migration{
	{2, "kv", "updated_at", "INTEGER NOT NULL DEFAULT 0"},
}

const schemaVersionsTable = `
CREATE TABLE IF NOT EXISTS schema_versions (
	version    INTEGER NOT NULL,
	applied_at INTEGER NOT NULL
)`

// RunMigrations upgrades db to CurrentSchemaVersion. When dbPath names a
// file and an upgrade is needed, a backup is taken first.
func RunMigrations(db *sql.DB, dbPath string) (*MigrationResult, error) {
	timer := logging.StartTimer(logging.CategoryStore, "RunMigrations")
	defer timer.Stop()
	start := time.Now()

	if _, err := db.Exec(schemaVersionsTable); err != nil {
		return nil, fmt.Errorf("failed to create schema_versions: %w", err)
	}

	res := &MigrationResult{FromVersion: GetSchemaVersion(db)}
	res.ToVersion = res.FromVersion
	if res.FromVersion >= CurrentSchemaVersion {
		logging.StoreDebug("Schema is current (v%d)", res.FromVersion)
		return res, nil
	}

	if dbPath != "" && dbPath != ":memory:" && res.FromVersion > 0 {
		backup, err := CreateBackup(dbPath)
		if err != nil {
			return nil, err
		}
		res.BackupPath = backup
	}

	logging.Store("Migrating schema v%d -> v%d", res.FromVersion, CurrentSchemaVersion)
	for _, m := range migrations {
		if m.Version <= res.FromVersion {
			continue
		}
		if !columnExists(db, m.Table, m.Column) {
			query := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", m.Table, m.Column, m.Def)
			logging.StoreDebug("Executing migration: %s", query)
			if _, err := db.Exec(query); err != nil {
				return nil, fmt.Errorf("migration to v%d failed: %w", m.Version, err)
			}
			res.MigrationsRun++
		}
		res.ToVersion = m.Version
	}
	if err := SetSchemaVersion(db, res.ToVersion); err != nil {
		return nil, err
	}
	res.Duration = time.Since(start)
	logging.Store("Schema migrations complete: v%d -> v%d, applied=%d", res.FromVersion, res.ToVersion, res.MigrationsRun)
	return res, nil
}

// columnExists checks if a column exists in a table using PRAGMA table_info.
func columnExists(db *sql.DB, table, column string) bool {
	rows, err := db.Query(fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		logging.StoreDebug("PRAGMA table_info(%s) failed: %v", table, err)
		return false
	}
	defer rows.Close()

	for rows.Next() {
		var cid int
		var name, ctype string
		var notnull, pk int
		var dfltValue interface{}
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dfltValue, &pk); err != nil {
			continue
		}
		if name == column {
			return true
		}
	}
	return false
}

// tableExists checks if a table exists in the database.
func tableExists(db *sql.DB, table string) bool {
	var count int
	query := "SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?"
	if err := db.QueryRow(query, table).Scan(&count); err != nil {
		logging.StoreDebug("Table existence check failed for %s: %v", table, err)
		return false
	}
	return count > 0
}

// GetSchemaVersion returns the recorded schema version, inferring it from
// the table structure when nothing was recorded. 0 means no kv table yet.
func GetSchemaVersion(db *sql.DB) int {
	if tableExists(db, "schema_versions") {
		var version int
		query := "SELECT version FROM schema_versions ORDER BY applied_at DESC, rowid DESC LIMIT 1"
		if err := db.QueryRow(query).Scan(&version); err == nil {
			return version
		}
	}

	switch {
	case !tableExists(db, "kv"):
		return 0
	case columnExists(db, "kv", "updated_at"):
		return 2
	default:
		return 1
	}
}

// SetSchemaVersion records version as applied.
func SetSchemaVersion(db *sql.DB, version int) error {
	_, err := db.Exec("INSERT INTO schema_versions (version, applied_at) VALUES (?, ?)", version, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("failed to record schema version: %w", err)
	}
	return nil
}

// CreateBackup copies the database file next to itself.
func CreateBackup(dbPath string) (string, error) {
	timestamp := time.Now().Format("20060102_150405")
	backupPath := dbPath + fmt.Sprintf(".backup_%s", timestamp)

	logging.Store("Creating database backup: %s -> %s", dbPath, backupPath)

	src, err := os.Open(dbPath)
	if err != nil {
		return "", fmt.Errorf("failed to open database for backup: %w", err)
	}
	defer src.Close()

	dst, err := os.Create(backupPath)
	if err != nil {
		return "", fmt.Errorf("failed to create backup file: %w", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return "", fmt.Errorf("failed to copy database to backup: %w", err)
	}
	if err := dst.Sync(); err != nil {
		return "", fmt.Errorf("failed to sync backup to disk: %w", err)
	}
	return backupPath, nil
}
