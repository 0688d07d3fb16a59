// Package store maintains the derived post index at .platen/index.db.
// Content files stay the source of truth: every row here is rebuildable
// from a scan, and the fast CLI queries (list, search, status) read from
// the index instead of re-parsing the tree.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a lookup matches nothing.
var ErrNotFound = errors.New("store: not found")

// Store wraps the SQLite index.
type Store struct {
	db  *sql.DB
	log *zap.Logger
}

// Open creates or opens the index at path, applying schema setup and
// pending migrations. The parent directory is created as needed.
func Open(path string, log *zap.Logger) (*Store, error) {
	if log == nil {
		log = zap.NewNop()
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("store dir: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open index: %w", err)
	}

	s := &Store{db: db, log: log}

	// WAL with NORMAL sync: crash-safe and much faster than the default
	// FULL for our write bursts at the end of a build.
	for _, pragma := range []string{
		"PRAGMA busy_timeout = 5000",
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			log.Debug("pragma failed", zap.String("pragma", pragma), zap.Error(err))
		}
	}

	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}
	if err := s.runMigrations(); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS posts (
		rel_path     TEXT PRIMARY KEY,
		slug         TEXT NOT NULL,
		permalink    TEXT NOT NULL,
		title        TEXT NOT NULL,
		description  TEXT NOT NULL DEFAULT '',
		author       TEXT NOT NULL DEFAULT '',
		category     TEXT NOT NULL DEFAULT '',
		tags         TEXT NOT NULL DEFAULT '[]',
		layout       TEXT NOT NULL DEFAULT '',
		draft        INTEGER NOT NULL DEFAULT 0,
		date         TEXT NOT NULL DEFAULT '',
		hash         TEXT NOT NULL,
		word_count   INTEGER NOT NULL DEFAULT 0,
		reading_secs INTEGER NOT NULL DEFAULT 0,
		summary      TEXT NOT NULL DEFAULT '',
		plain_text   TEXT NOT NULL DEFAULT '',
		updated_at   DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_posts_category ON posts(category);
	CREATE INDEX IF NOT EXISTS idx_posts_author   ON posts(author);
	CREATE INDEX IF NOT EXISTS idx_posts_date     ON posts(date);
	CREATE INDEX IF NOT EXISTS idx_posts_slug     ON posts(slug);

	CREATE TABLE IF NOT EXISTS builds (
		id          TEXT PRIMARY KEY,
		started_at  DATETIME NOT NULL,
		duration_ms INTEGER NOT NULL,
		posts       INTEGER NOT NULL,
		pages       INTEGER NOT NULL,
		errors      INTEGER NOT NULL DEFAULT 0,
		warnings    INTEGER NOT NULL DEFAULT 0,
		incremental INTEGER NOT NULL DEFAULT 0
	);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("initialize index schema: %w", err)
	}
	return nil
}

// Migration adds a column to an existing table. Old indexes pick up new
// columns without a rebuild.
type Migration struct {
	Table  string
	Column string
	Def    string
}

// pendingMigrations lists additive schema changes for databases created by
// earlier versions.
var pendingMigrations = []Migration{
	// plain_text landed with full-text search.
	{"posts", "plain_text", "TEXT NOT NULL DEFAULT ''"},
	// reading_secs landed with the reading-time estimate.
	{"posts", "reading_secs", "INTEGER NOT NULL DEFAULT 0"},
	// warnings landed when builds started recording lint results.
	{"builds", "warnings", "INTEGER NOT NULL DEFAULT 0"},
}

func (s *Store) runMigrations() error {
	for _, m := range pendingMigrations {
		if !s.tableExists(m.Table) || s.columnExists(m.Table, m.Column) {
			continue
		}
		query := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", m.Table, m.Column, m.Def)
		if _, err := s.db.Exec(query); err != nil {
			s.log.Warn("migration failed", zap.String("table", m.Table), zap.String("column", m.Column), zap.Error(err))
			continue
		}
		s.log.Debug("migration applied", zap.String("table", m.Table), zap.String("column", m.Column))
	}
	return nil
}

func (s *Store) tableExists(table string) bool {
	var count int
	err := s.db.QueryRow(
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?", table,
	).Scan(&count)
	return err == nil && count > 0
}

func (s *Store) columnExists(table, column string) bool {
	rows, err := s.db.Query(fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return false
	}
	defer rows.Close()

	for rows.Next() {
		var (
			cid, notnull, pk int
			name, ctype      string
			dflt             any
		)
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dflt, &pk); err != nil {
			continue
		}
		if name == column {
			return true
		}
	}
	return false
}
