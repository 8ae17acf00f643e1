package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

type Database struct {
	db *sql.DB
}

var globalDB *Database

// Open creates the SQLite database at dbPath and applies the schema.
func Open(dbPath string) (*Database, error) {
	// per-connection pragmas go in the DSN so every pooled connection gets them
	dsn := dbPath + "?_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(time.Hour)
	db.SetConnMaxIdleTime(10 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	d := &Database{db: db}
	if err := d.createTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return d, nil
}

// Initialize opens the database and installs it as the global instance.
func Initialize(dbPath string) error {
	d, err := Open(dbPath)
	if err != nil {
		return err
	}
	globalDB = d
	return nil
}

// GetDB returns the global database instance
func GetDB() *Database {
	return globalDB
}

// Ping checks if the database connection is alive
func (d *Database) Ping(ctx context.Context) error {
	return d.db.PingContext(ctx)
}

func (d *Database) Close() error {
	if d == nil || d.db == nil {
		return nil
	}
	return d.db.Close()
}

// createTables creates all necessary database tables
func (d *Database) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS security_profiles (
		guild_id TEXT PRIMARY KEY,
		owner_id TEXT NOT NULL DEFAULT '',
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS profile_entries (
		guild_id TEXT NOT NULL,
		kind TEXT NOT NULL,
		target_id TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		UNIQUE(guild_id, kind, target_id)
	);

	CREATE INDEX IF NOT EXISTS idx_profile_entries_guild ON profile_entries(guild_id);

	CREATE TABLE IF NOT EXISTS anti_spam_policies (
		guild_id TEXT PRIMARY KEY,
		window_seconds INTEGER NOT NULL DEFAULT 5,
		max_messages INTEGER NOT NULL DEFAULT 10,
		max_warnings INTEGER NOT NULL DEFAULT 3,
		updated_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS jailed_members (
		guild_id TEXT NOT NULL,
		member_id TEXT NOT NULL,
		role_ids TEXT NOT NULL DEFAULT '[]',
		reason TEXT NOT NULL DEFAULT '',
		jailed_at INTEGER NOT NULL,
		PRIMARY KEY (guild_id, member_id)
	);

	CREATE TABLE IF NOT EXISTS log_channels (
		guild_id TEXT NOT NULL,
		channel_type TEXT NOT NULL,
		channel_id TEXT NOT NULL,
		channel_name TEXT NOT NULL DEFAULT '',
		PRIMARY KEY (guild_id, channel_type)
	);

	CREATE TABLE IF NOT EXISTS banned_users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		guild_id TEXT NOT NULL,
		user_id TEXT NOT NULL,
		reason TEXT NOT NULL,
		banned_at INTEGER NOT NULL,
		is_bot INTEGER DEFAULT 0,
		added_by TEXT DEFAULT '',
		UNIQUE(guild_id, user_id)
	);

	CREATE INDEX IF NOT EXISTS idx_banned_users_guild ON banned_users(guild_id);

	CREATE TABLE IF NOT EXISTS lockdowns (
		guild_id TEXT PRIMARY KEY,
		prev_level INTEGER NOT NULL,
		slowmode TEXT NOT NULL DEFAULT '{}',
		reason TEXT NOT NULL DEFAULT '',
		revert_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS link_allowed_channels (
		guild_id TEXT NOT NULL,
		channel_id TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		PRIMARY KEY (guild_id, channel_id)
	);
	`

	_, err := d.db.Exec(schema)
	return err
}
