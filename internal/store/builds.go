package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Build is one recorded build run.
type Build struct {
	ID          string
	StartedAt   time.Time
	Duration    time.Duration
	Posts       int
	Pages       int
	Errors      int
	Warnings    int
	Incremental bool
}

// RecordBuild appends a build to the history.
func (s *Store) RecordBuild(ctx context.Context, b *Build) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO builds (id, started_at, duration_ms, posts, pages, errors, warnings, incremental)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		b.ID, b.StartedAt.UTC().Format(time.RFC3339), b.Duration.Milliseconds(),
		b.Posts, b.Pages, b.Errors, b.Warnings, boolToInt(b.Incremental))
	if err != nil {
		return fmt.Errorf("record build: %w", err)
	}
	return nil
}

// LastBuild returns the most recent build, or ErrNotFound for a fresh index.
func (s *Store) LastBuild(ctx context.Context) (*Build, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, started_at, duration_ms, posts, pages, errors, warnings, incremental
		FROM builds ORDER BY started_at DESC LIMIT 1`)

	b, err := scanBuild(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("last build: %w", ErrNotFound)
	}
	return b, err
}

// RecentBuilds returns up to limit builds, newest first.
func (s *Store) RecentBuilds(ctx context.Context, limit int) ([]*Build, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, started_at, duration_ms, posts, pages, errors, warnings, incremental
		FROM builds ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("recent builds: %w", err)
	}
	defer rows.Close()

	var out []*Build
	for rows.Next() {
		b, err := scanBuild(rows)
		if err != nil {
			return nil, fmt.Errorf("scan build row: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func scanBuild(row scanner) (*Build, error) {
	var (
		b       Build
		started string
		ms      int64
		inc     int
	)
	if err := row.Scan(&b.ID, &started, &ms, &b.Posts, &b.Pages, &b.Errors, &b.Warnings, &inc); err != nil {
		return nil, err
	}
	if t, err := time.Parse(time.RFC3339, started); err == nil {
		b.StartedAt = t
	}
	b.Duration = time.Duration(ms) * time.Millisecond
	b.Incremental = inc != 0
	return &b, nil
}
