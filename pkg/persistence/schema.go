// Package persistence provides SQLite-based storage for contacts, orders, and message logs.
package persistence

import (
	"database/sql"
	"errors"
	"fmt"

	_ "modernc.org/sqlite" // SQLite driver

	"halobot/pkg/proto"
)

// CurrentSchemaVersion defines the current schema version for migration support.
const CurrentSchemaVersion = 2

// InitializeDatabase creates and initializes the SQLite database with the required schema.
// This function is idempotent and safe to call multiple times.
func InitializeDatabase(dbPath string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", fmt.Sprintf(
		"file:%s?_foreign_keys=ON&_journal_mode=WAL&_busy_timeout=5000",
		dbPath,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Test connection with a simple ping
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := initializeSchemaWithMigrations(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return db, nil
}

// initializeSchemaWithMigrations ensures the database schema is at the current version.
func initializeSchemaWithMigrations(db *sql.DB) error {
	currentVersion, err := GetSchemaVersion(db)
	if err != nil {
		return fmt.Errorf("failed to get current schema version: %w", err)
	}

	// If database is empty (version 0), create fresh schema
	if currentVersion == 0 {
		return createSchema(db)
	}

	if currentVersion == CurrentSchemaVersion {
		return nil
	}

	return runMigrations(db, currentVersion, CurrentSchemaVersion)
}

// runMigrations applies database migrations from current version to target version.
func runMigrations(db *sql.DB, fromVersion, toVersion int) error {
	for version := fromVersion + 1; version <= toVersion; version++ {
		if err := runMigration(db, version); err != nil {
			return fmt.Errorf("migration to version %d failed: %w", version, err)
		}

		if err := setSchemaVersion(db, version); err != nil {
			return fmt.Errorf("failed to update schema version to %d: %w", version, err)
		}
	}
	return nil
}

// runMigration applies a specific version migration.
func runMigration(db *sql.DB, version int) error {
	switch version {
	case 1:
		return migrateToVersion1(db)
	case 2:
		return migrateToVersion2(db)
	default:
		return fmt.Errorf("unknown migration version: %d", version)
	}
}

// migrateToVersion1 is the base schema; nothing to do when upgrading into it.
func migrateToVersion1(_ *sql.DB) error { return nil }

// migrateToVersion2 adds payment reminder tracking to orders.
func migrateToVersion2(db *sql.DB) error {
	migrations := []string{
		"ALTER TABLE orders ADD COLUMN reminder_sent INTEGER NOT NULL DEFAULT 0",
		"CREATE INDEX IF NOT EXISTS idx_orders_reminder ON orders(status, reminder_sent)",
	}

	for _, migration := range migrations {
		if _, err := db.Exec(migration); err != nil {
			return fmt.Errorf("failed to execute migration: %s: %w", migration, err)
		}
	}

	return nil
}

// createSchema creates all required tables and indices.
func createSchema(db *sql.DB) error {
	// Enable WAL mode and foreign keys
	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute pragma %s: %w", pragma, err)
		}
	}

	statusList := ""
	for i, s := range proto.ValidStatuses() {
		if i > 0 {
			statusList += ","
		}
		statusList += "'" + string(s) + "'"
	}

	tables := []string{
		// Schema version tracking
		`CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ','now'))
		)`,

		// Businesses table (one row per configured business profile)
		`CREATE TABLE IF NOT EXISTS businesses (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			owner_phone TEXT NOT NULL,
			created_at DATETIME DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ','now'))
		)`,

		// Contacts table; one contact per phone per business
		`CREATE TABLE IF NOT EXISTS contacts (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			business_id TEXT NOT NULL REFERENCES businesses(id),
			phone TEXT NOT NULL,
			name TEXT NOT NULL DEFAULT '',
			language TEXT NOT NULL DEFAULT 'en',
			opt_in INTEGER NOT NULL DEFAULT 0,
			consent_at DATETIME,
			loyalty_points INTEGER NOT NULL DEFAULT 0,
			order_count INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ','now')),
			UNIQUE(business_id, phone)
		)`,

		// Orders table
		`CREATE TABLE IF NOT EXISTS orders (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			business_id TEXT NOT NULL REFERENCES businesses(id),
			contact_id INTEGER NOT NULL REFERENCES contacts(id),
			order_number TEXT NOT NULL UNIQUE,
			total_amount DECIMAL(12,2) NOT NULL DEFAULT 0.0,
			fulfillment TEXT NOT NULL DEFAULT 'pickup' CHECK (fulfillment IN ('pickup','delivery')),
			delivery_address TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL DEFAULT 'pending_payment' CHECK (status IN (` + statusList + `)),
			channel TEXT NOT NULL DEFAULT 'whatsapp',
			reminder_sent INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ','now')),
			updated_at DATETIME DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ','now')),
			attested_at DATETIME,
			approved_at DATETIME,
			ready_at DATETIME,
			completed_at DATETIME
		)`,

		// Order line items
		`CREATE TABLE IF NOT EXISTS order_items (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			order_id INTEGER NOT NULL REFERENCES orders(id) ON DELETE CASCADE,
			item_name TEXT NOT NULL,
			quantity INTEGER NOT NULL DEFAULT 1,
			unit_price DECIMAL(12,2) NOT NULL DEFAULT 0.0
		)`,

		// Message logs; transport_msg_id enforces at-most-once processing
		`CREATE TABLE IF NOT EXISTS message_logs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			contact_id INTEGER NOT NULL REFERENCES contacts(id),
			transport_msg_id TEXT UNIQUE,
			direction TEXT NOT NULL CHECK (direction IN ('IN','OUT')),
			channel TEXT NOT NULL DEFAULT 'whatsapp',
			content TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'received',
			created_at DATETIME DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ','now'))
		)`,

		// Post-completion ratings and comments
		`CREATE TABLE IF NOT EXISTS feedback (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			contact_id INTEGER NOT NULL REFERENCES contacts(id),
			order_id INTEGER REFERENCES orders(id),
			rating INTEGER NOT NULL CHECK (rating BETWEEN 1 AND 5),
			comment TEXT NOT NULL DEFAULT '',
			flagged INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ','now'))
		)`,
	}

	indices := []string{
		"CREATE INDEX IF NOT EXISTS idx_contacts_phone ON contacts(business_id, phone)",
		"CREATE INDEX IF NOT EXISTS idx_orders_contact ON orders(contact_id)",
		"CREATE INDEX IF NOT EXISTS idx_orders_status ON orders(business_id, status)",
		"CREATE INDEX IF NOT EXISTS idx_orders_reminder ON orders(status, reminder_sent)",
		"CREATE INDEX IF NOT EXISTS idx_order_items_order ON order_items(order_id)",
		"CREATE INDEX IF NOT EXISTS idx_messages_contact ON message_logs(contact_id, created_at)",
		"CREATE INDEX IF NOT EXISTS idx_feedback_contact ON feedback(contact_id)",
	}

	for _, table := range tables {
		if _, err := db.Exec(table); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}

	for _, index := range indices {
		if _, err := db.Exec(index); err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}

	return setSchemaVersion(db, CurrentSchemaVersion)
}

// GetSchemaVersion returns the current schema version, or 0 for an empty database.
func GetSchemaVersion(db *sql.DB) (int, error) {
	var version sql.NullInt64
	err := db.QueryRow("SELECT MAX(version) FROM schema_version").Scan(&version)
	if err != nil {
		// Table doesn't exist yet; database is fresh
		return 0, nil //nolint:nilerr // Missing table means version 0
	}
	return int(version.Int64), nil
}

// setSchemaVersion records a schema version in the version table.
func setSchemaVersion(db *sql.DB, version int) error {
	if _, err := db.Exec("INSERT OR IGNORE INTO schema_version (version) VALUES (?)", version); err != nil {
		return fmt.Errorf("failed to set schema version: %w", err)
	}
	return nil
}

// Sentinel errors returned by store operations.
var (
	// ErrNotFound indicates the requested row does not exist.
	ErrNotFound = errors.New("not found")

	// ErrGuardFailed indicates a guarded status transition found the order
	// in a different state than expected. The caller must re-read the order.
	ErrGuardFailed = errors.New("transition guard failed")

	// ErrDuplicateMessage indicates a transport message ID was already logged.
	ErrDuplicateMessage = errors.New("duplicate transport message id")
)
