// Package db is the warehouse: a SQLite store of canonical host entities
// with per-surface sync metadata. Every derivation reads from here.
package db

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/greport/greport/internal/apperrors"
)

// DB wraps the warehouse connection pool.
type DB struct {
	*sql.DB
}

// Open connects to the warehouse. URLs accept an optional sqlite://
// scheme prefix; anything else is treated as a file path.
func Open(url string) (*DB, error) {
	path := strings.TrimPrefix(url, "sqlite://")
	if path == "" {
		return nil, apperrors.Validation("database url is empty")
	}

	conn, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := conn.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	conn.SetMaxOpenConns(16)

	return &DB{DB: conn}, nil
}

// migrations are applied in order exactly once; the applied set is
// tracked in schema_migrations.
var migrations = []string{
	// 1: core entities
	`
	CREATE TABLE IF NOT EXISTS repositories (
		id INTEGER PRIMARY KEY,
		owner TEXT NOT NULL,
		name TEXT NOT NULL,
		full_name TEXT NOT NULL UNIQUE,
		description TEXT,
		default_branch TEXT,
		private BOOLEAN NOT NULL DEFAULT 0,
		org TEXT,
		created_at TIMESTAMP,
		updated_at TIMESTAMP,
		synced_at TIMESTAMP NOT NULL
	);

	CREATE TABLE IF NOT EXISTS milestones (
		id INTEGER PRIMARY KEY,
		repository_id INTEGER NOT NULL,
		number INTEGER NOT NULL,
		title TEXT NOT NULL,
		description TEXT,
		state TEXT NOT NULL,
		open_issues INTEGER NOT NULL DEFAULT 0,
		closed_issues INTEGER NOT NULL DEFAULT 0,
		due_on TIMESTAMP,
		created_at TIMESTAMP NOT NULL,
		closed_at TIMESTAMP,
		synced_at TIMESTAMP NOT NULL,
		FOREIGN KEY (repository_id) REFERENCES repositories(id) ON DELETE CASCADE,
		UNIQUE(repository_id, number)
	);

	CREATE TABLE IF NOT EXISTS issues (
		id INTEGER PRIMARY KEY,
		repository_id INTEGER NOT NULL,
		number INTEGER NOT NULL,
		title TEXT NOT NULL,
		body TEXT,
		state TEXT NOT NULL,
		author TEXT,
		comments INTEGER NOT NULL DEFAULT 0,
		milestone_id INTEGER,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL,
		closed_at TIMESTAMP,
		synced_at TIMESTAMP NOT NULL,
		FOREIGN KEY (repository_id) REFERENCES repositories(id) ON DELETE CASCADE,
		UNIQUE(repository_id, number)
	);

	CREATE TABLE IF NOT EXISTS issue_labels (
		issue_id INTEGER NOT NULL,
		label TEXT NOT NULL,
		PRIMARY KEY (issue_id, label),
		FOREIGN KEY (issue_id) REFERENCES issues(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS issue_assignees (
		issue_id INTEGER NOT NULL,
		assignee TEXT NOT NULL,
		PRIMARY KEY (issue_id, assignee),
		FOREIGN KEY (issue_id) REFERENCES issues(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS pulls (
		id INTEGER PRIMARY KEY,
		repository_id INTEGER NOT NULL,
		number INTEGER NOT NULL,
		title TEXT NOT NULL,
		body TEXT,
		state TEXT NOT NULL,
		draft BOOLEAN NOT NULL DEFAULT 0,
		merged BOOLEAN NOT NULL DEFAULT 0,
		merged_at TIMESTAMP,
		additions INTEGER NOT NULL DEFAULT 0,
		deletions INTEGER NOT NULL DEFAULT 0,
		changed_files INTEGER NOT NULL DEFAULT 0,
		head_ref TEXT,
		base_ref TEXT,
		author TEXT,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL,
		closed_at TIMESTAMP,
		synced_at TIMESTAMP NOT NULL,
		FOREIGN KEY (repository_id) REFERENCES repositories(id) ON DELETE CASCADE,
		UNIQUE(repository_id, number)
	);

	CREATE TABLE IF NOT EXISTS pull_labels (
		pull_id INTEGER NOT NULL,
		label TEXT NOT NULL,
		PRIMARY KEY (pull_id, label),
		FOREIGN KEY (pull_id) REFERENCES pulls(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS releases (
		id INTEGER PRIMARY KEY,
		repository_id INTEGER NOT NULL,
		tag_name TEXT NOT NULL,
		name TEXT,
		body TEXT,
		draft BOOLEAN NOT NULL DEFAULT 0,
		prerelease BOOLEAN NOT NULL DEFAULT 0,
		author TEXT,
		created_at TIMESTAMP NOT NULL,
		published_at TIMESTAMP,
		synced_at TIMESTAMP NOT NULL,
		FOREIGN KEY (repository_id) REFERENCES repositories(id) ON DELETE CASCADE,
		UNIQUE(repository_id, tag_name)
	);

	CREATE TABLE IF NOT EXISTS issue_events (
		id INTEGER PRIMARY KEY,
		repository_id INTEGER NOT NULL,
		issue_number INTEGER NOT NULL,
		event TEXT NOT NULL,
		actor TEXT,
		label TEXT,
		assignee TEXT,
		milestone_title TEXT,
		created_at TIMESTAMP NOT NULL,
		synced_at TIMESTAMP NOT NULL,
		FOREIGN KEY (repository_id) REFERENCES repositories(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS sync_status (
		repository_id INTEGER PRIMARY KEY,
		issues_synced_at TIMESTAMP,
		pulls_synced_at TIMESTAMP,
		releases_synced_at TIMESTAMP,
		milestones_synced_at TIMESTAMP,
		events_synced_at TIMESTAMP,
		last_error TEXT,
		last_error_at TIMESTAMP,
		FOREIGN KEY (repository_id) REFERENCES repositories(id) ON DELETE CASCADE
	);
	`,
	// 2: projects and organizations
	`
	CREATE TABLE IF NOT EXISTS organizations (
		name TEXT PRIMARY KEY,
		base_url TEXT,
		web_url TEXT,
		last_synced_at TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS projects (
		node_id TEXT PRIMARY KEY,
		number INTEGER NOT NULL,
		owner TEXT NOT NULL,
		title TEXT NOT NULL,
		description TEXT,
		url TEXT,
		closed BOOLEAN NOT NULL DEFAULT 0,
		total_items INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL,
		synced_at TIMESTAMP NOT NULL,
		UNIQUE(owner, number)
	);

	CREATE TABLE IF NOT EXISTS project_fields (
		node_id TEXT PRIMARY KEY,
		project_node_id TEXT NOT NULL,
		name TEXT NOT NULL,
		field_type TEXT,
		config_json TEXT,
		FOREIGN KEY (project_node_id) REFERENCES projects(node_id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS project_items (
		node_id TEXT PRIMARY KEY,
		project_node_id TEXT NOT NULL,
		content_type TEXT NOT NULL,
		content_number INTEGER,
		title TEXT,
		state TEXT,
		url TEXT,
		repo_full_name TEXT,
		content_json TEXT,
		field_values_json TEXT,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL,
		synced_at TIMESTAMP NOT NULL,
		FOREIGN KEY (project_node_id) REFERENCES projects(node_id) ON DELETE CASCADE
	);
	`,
	// 3: indexes on the hot derivation paths
	`
	CREATE INDEX IF NOT EXISTS idx_issues_repo_state ON issues(repository_id, state);
	CREATE INDEX IF NOT EXISTS idx_pulls_repo_state ON pulls(repository_id, state);
	CREATE INDEX IF NOT EXISTS idx_issue_events_repo_issue ON issue_events(repository_id, issue_number);
	CREATE INDEX IF NOT EXISTS idx_milestones_repo ON milestones(repository_id);
	CREATE INDEX IF NOT EXISTS idx_releases_repo ON releases(repository_id);
	`,
}

// Migrate applies all pending migrations in order.
func (db *DB) Migrate() error {
	_, err := db.Exec(`
	CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY,
		applied_at TIMESTAMP NOT NULL
	)`)
	if err != nil {
		return fmt.Errorf("failed to create schema_migrations: %w", err)
	}

	var current int
	err = db.QueryRow(`SELECT COALESCE(MAX(version), 0) FROM schema_migrations`).Scan(&current)
	if err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}

	for i := current; i < len(migrations); i++ {
		version := i + 1
		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("failed to begin migration %d: %w", version, err)
		}
		if _, err := tx.Exec(migrations[i]); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to apply migration %d: %w", version, err)
		}
		if _, err := tx.Exec(
			`INSERT INTO schema_migrations (version, applied_at) VALUES (?, ?)`,
			version, time.Now().UTC(),
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to record migration %d: %w", version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", version, err)
		}
	}
	return nil
}

// Close closes the connection pool.
func (db *DB) Close() error {
	return db.DB.Close()
}
