package database

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// Supported drivers.
const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
)

// Open connects to the database and initializes the schema.
func Open(driver, dsn string) (*sqlx.DB, error) {
	switch driver {
	case DriverSQLite:
		if err := ensureDataDir(dsn); err != nil {
			return nil, err
		}
	case DriverPostgres:
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	db, err := sqlx.Connect(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if driver == DriverSQLite {
		if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
		}
		// SQLite doesn't support multiple writers; one connection also keeps
		// :memory: databases from splitting per connection.
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	}

	if err := InitializeSchema(db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func ensureDataDir(dsn string) error {
	if dsn == "" || strings.HasPrefix(dsn, ":memory:") || strings.HasPrefix(dsn, "file:") {
		return nil
	}
	dir := filepath.Dir(dsn)
	if dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}
	return nil
}

// InitializeSchema creates the tables if they don't exist.
func InitializeSchema(db *sqlx.DB) error {
	for _, stmt := range schema(db.DriverName()) {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to initialize schema: %w", err)
		}
	}
	return nil
}

func schema(driver string) []string {
	serial := "INTEGER PRIMARY KEY AUTOINCREMENT"
	ts := "TIMESTAMP"
	if driver == DriverPostgres {
		serial = "BIGSERIAL PRIMARY KEY"
		ts = "TIMESTAMPTZ"
	}
	return []string{
		`CREATE TABLE IF NOT EXISTS cognitive_profiles (
			user_id TEXT PRIMARY KEY,
			learning_speed TEXT NOT NULL DEFAULT '{}',
			preferred_content_formats TEXT NOT NULL DEFAULT '[]',
			knowledge_graph TEXT NOT NULL DEFAULT '{}',
			attention_span REAL NOT NULL DEFAULT 0,
			retention_rates TEXT NOT NULL DEFAULT '{}',
			last_updated ` + ts + ` NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS learning_items (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			module_id TEXT NOT NULL DEFAULT '',
			topic_id TEXT NOT NULL DEFAULT '',
			content_type TEXT NOT NULL DEFAULT '',
			easiness_factor REAL,
			interval_days INTEGER NOT NULL DEFAULT 0,
			repetition_count INTEGER NOT NULL DEFAULT 0,
			last_reviewed_at ` + ts + `,
			next_review_at ` + ts + ` NOT NULL,
			mastery_level REAL NOT NULL DEFAULT 0,
			created_at ` + ts + ` NOT NULL,
			updated_at ` + ts + ` NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_learning_items_user ON learning_items (user_id, next_review_at)`,
		`CREATE TABLE IF NOT EXISTS review_events (
			id TEXT PRIMARY KEY,
			item_id TEXT NOT NULL REFERENCES learning_items(id),
			user_id TEXT NOT NULL,
			grade INTEGER NOT NULL,
			retention REAL NOT NULL,
			reviewed_at ` + ts + ` NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_review_events_item ON review_events (item_id, reviewed_at)`,
		`CREATE TABLE IF NOT EXISTS learning_history (
			id ` + serial + `,
			user_id TEXT NOT NULL,
			module_id TEXT NOT NULL DEFAULT '',
			topic_id TEXT NOT NULL DEFAULT '',
			content_type TEXT NOT NULL DEFAULT '',
			progress_percent REAL NOT NULL DEFAULT 0,
			completed BOOLEAN NOT NULL DEFAULT false,
			occurred_at ` + ts + ` NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_learning_history_user ON learning_history (user_id, occurred_at)`,
	}
}
