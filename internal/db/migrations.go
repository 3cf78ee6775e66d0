package db

import (
	"database/sql"
	"fmt"
)

// Base schema - uses Snowflake IDs (no AUTOINCREMENT).
//
// messages.feed_id is deliberately not a foreign key: removing a feed only
// marks its rows permanently_deleted, and the rows outlive the items row
// until the next cleanup pass physically removes them.
const baseSchema = `
CREATE TABLE IF NOT EXISTS items (
  id INTEGER PRIMARY KEY,
  account_id INTEGER NOT NULL,
  parent_id INTEGER,
  kind TEXT NOT NULL,
  title TEXT NOT NULL,
  icon_path TEXT,
  ordering INTEGER NOT NULL DEFAULT 0,
  url TEXT,
  encoding TEXT,
  custom_id TEXT,
  auto_update_type TEXT NOT NULL DEFAULT 'default',
  auto_update_interval_min INTEGER,
  last_fetched_at TEXT,
  config TEXT,
  created_at TEXT NOT NULL,
  updated_at TEXT NOT NULL,
  FOREIGN KEY (parent_id) REFERENCES items(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_items_parent_id ON items(parent_id);
CREATE INDEX IF NOT EXISTS idx_items_account_id ON items(account_id);
CREATE INDEX IF NOT EXISTS idx_items_kind ON items(kind);

CREATE TABLE IF NOT EXISTS messages (
  id INTEGER PRIMARY KEY,
  feed_id INTEGER NOT NULL,
  account_id INTEGER NOT NULL,
  custom_id TEXT,
  custom_hash TEXT NOT NULL,
  title TEXT NOT NULL,
  url TEXT,
  author TEXT,
  created_on TEXT NOT NULL,
  contents TEXT,
  attachments TEXT,
  read INTEGER NOT NULL DEFAULT 0,
  important INTEGER NOT NULL DEFAULT 0,
  deleted INTEGER NOT NULL DEFAULT 0,
  permanently_deleted INTEGER NOT NULL DEFAULT 0
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_messages_feed_custom_id
  ON messages(feed_id, custom_id)
  WHERE custom_id IS NOT NULL AND permanently_deleted = 0;

CREATE UNIQUE INDEX IF NOT EXISTS idx_messages_feed_custom_hash
  ON messages(feed_id, custom_hash)
  WHERE custom_id IS NULL AND permanently_deleted = 0;

CREATE INDEX IF NOT EXISTS idx_messages_feed_id ON messages(feed_id);
CREATE INDEX IF NOT EXISTS idx_messages_account_id ON messages(account_id);
CREATE INDEX IF NOT EXISTS idx_messages_feed_read ON messages(feed_id, read);
CREATE INDEX IF NOT EXISTS idx_messages_deleted ON messages(account_id, deleted);
`

func Migrate(db *sql.DB) error {
	if _, err := db.Exec(baseSchema); err != nil {
		return fmt.Errorf("migrate base schema: %w", err)
	}

	if err := runMigrations(db); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	return nil
}

func runMigrations(db *sql.DB) error {
	// Migration 1: add last_status column to items if not exists.
	if err := addColumnIfMissing(db, "items", "last_status", `ALTER TABLE items ADD COLUMN last_status TEXT`); err != nil {
		return err
	}

	// Migration 2: add sync_cursor column to items for incremental backends.
	if err := addColumnIfMissing(db, "items", "sync_cursor", `ALTER TABLE items ADD COLUMN sync_cursor TEXT`); err != nil {
		return err
	}

	// Migration 3: index for the permanently-deleted sweep done by cleanup.
	if _, err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_messages_pdeleted ON messages(permanently_deleted)`); err != nil {
		return fmt.Errorf("create idx_messages_pdeleted: %w", err)
	}

	return nil
}

func addColumnIfMissing(db *sql.DB, table, column, alter string) error {
	var count int
	err := db.QueryRow(
		`SELECT COUNT(*) FROM pragma_table_info(?) WHERE name = ?`, table, column,
	).Scan(&count)
	if err != nil {
		return fmt.Errorf("check %s.%s column: %w", table, column, err)
	}
	if count == 0 {
		if _, err := db.Exec(alter); err != nil {
			return fmt.Errorf("add %s.%s column: %w", table, column, err)
		}
	}
	return nil
}
