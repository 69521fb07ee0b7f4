package db

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
)

// Postgres error code for unique-constraint violations
const uniqueViolationCode = "23505"

// IsUniqueViolation reports whether err is a Postgres unique-constraint
// violation, anywhere in its chain.
func IsUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolationCode
}

type DB struct {
	*sql.DB
}

func New(host, port, user, password, dbname string) (*DB, error) {
	connStr := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		host, port, user, password, dbname,
	)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{db}, nil
}

func (db *DB) Migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS settings (
		key VARCHAR(64) PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
	);

	CREATE TABLE IF NOT EXISTS catalog_items (
		id SERIAL PRIMARY KEY,
		provider_id INTEGER NOT NULL,
		name TEXT NOT NULL,
		kind VARCHAR(16) NOT NULL,
		tmdb_id INTEGER,
		release_date VARCHAR(32),
		container_ext VARCHAR(16),
		added_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
		UNIQUE (provider_id, kind)
	);

	CREATE INDEX IF NOT EXISTS idx_catalog_items_name ON catalog_items(name);
	CREATE INDEX IF NOT EXISTS idx_catalog_items_kind ON catalog_items(kind);

	CREATE TABLE IF NOT EXISTS download_jobs (
		id SERIAL PRIMARY KEY,
		source_id INTEGER NOT NULL,
		source_kind VARCHAR(32) NOT NULL,
		episode_id INTEGER,
		filename TEXT NOT NULL,
		filepath TEXT,
		status VARCHAR(16) NOT NULL DEFAULT 'queued',
		progress INTEGER NOT NULL DEFAULT 0,
		error TEXT,
		created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_download_jobs_identity
		ON download_jobs(source_id, source_kind, COALESCE(episode_id, -1));
	CREATE INDEX IF NOT EXISTS idx_download_jobs_status ON download_jobs(status);

	CREATE TABLE IF NOT EXISTS wishlist_entries (
		id SERIAL PRIMARY KEY,
		tmdb_id INTEGER NOT NULL,
		media_type VARCHAR(8) NOT NULL,
		title TEXT NOT NULL,
		original_title TEXT,
		release_date VARCHAR(32),
		poster_url TEXT,
		overview TEXT,
		genres TEXT,
		rating DOUBLE PRECISION,
		status VARCHAR(16) NOT NULL DEFAULT 'wanted',
		priority INTEGER NOT NULL DEFAULT 3,
		auto_download BOOLEAN NOT NULL DEFAULT FALSE,
		search_keywords TEXT,
		notes TEXT,
		added_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
		found_at TIMESTAMP WITH TIME ZONE,
		last_check TIMESTAMP WITH TIME ZONE,
		UNIQUE (tmdb_id, media_type)
	);

	CREATE INDEX IF NOT EXISTS idx_wishlist_entries_status ON wishlist_entries(status);

	CREATE TABLE IF NOT EXISTS wishlist_matches (
		id SERIAL PRIMARY KEY,
		wishlist_id INTEGER NOT NULL REFERENCES wishlist_entries(id) ON DELETE CASCADE,
		catalog_id INTEGER NOT NULL,
		catalog_kind VARCHAR(16) NOT NULL,
		catalog_name TEXT NOT NULL,
		score DOUBLE PRECISION NOT NULL,
		reason TEXT,
		created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
		UNIQUE (wishlist_id, catalog_id, catalog_kind)
	);

	CREATE TABLE IF NOT EXISTS wishlist_log (
		id SERIAL PRIMARY KEY,
		wishlist_id INTEGER NOT NULL REFERENCES wishlist_entries(id) ON DELETE CASCADE,
		level VARCHAR(8) NOT NULL,
		message TEXT NOT NULL,
		payload JSONB,
		created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
	);

	CREATE INDEX IF NOT EXISTS idx_wishlist_log_wishlist_id ON wishlist_log(wishlist_id);
	`

	_, err := db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}
