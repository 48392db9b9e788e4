package storage

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// New opens a SQLite database connection at the given path.
// It enables foreign keys and sets connection pool settings.
func New(path string) (*sql.DB, error) {
	// Foreign keys are off by default in SQLite and the pragma is per
	// connection, so it goes in the DSN to reach every pooled connection.
	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on")
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return db, nil
}

// Migrate creates the index snapshot and source registry tables.
// It is idempotent and can be run multiple times safely.
func Migrate(db *sql.DB) error {
	schema := []string{
		`CREATE TABLE IF NOT EXISTS index_meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS index_documents (
			document_id TEXT PRIMARY KEY,
			chunk_count INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS index_entries (
			position INTEGER PRIMARY KEY,
			chunk_id TEXT NOT NULL UNIQUE,
			document_id TEXT NOT NULL,
			chunk_index INTEGER NOT NULL,
			text TEXT NOT NULL,
			char_start INTEGER NOT NULL,
			char_end INTEGER NOT NULL,
			semantic_density REAL NOT NULL,
			overlap_previous INTEGER NOT NULL,
			overlap_next INTEGER NOT NULL,
			vector BLOB NOT NULL,
			FOREIGN KEY (document_id) REFERENCES index_documents(document_id) ON DELETE CASCADE
		);`,
		`CREATE TABLE IF NOT EXISTS sources (
			document_id TEXT PRIMARY KEY,
			rel_path TEXT NOT NULL UNIQUE,
			hash TEXT NOT NULL,
			chunk_count INTEGER NOT NULL DEFAULT 0,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);`,
	}

	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}

	return nil
}
