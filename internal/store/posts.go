package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"platen/internal/post"
)

// Record is one indexed post row.
type Record struct {
	RelPath     string
	Slug        string
	Permalink   string
	Title       string
	Description string
	Author      string
	Category    string
	Tags        []string
	Layout      string
	Draft       bool
	Date        time.Time
	Hash        string
	WordCount   int
	ReadingTime time.Duration
	Summary     string
	PlainText   string
}

// FromPost flattens a parsed post into an index row.
func FromPost(p *post.Post) *Record {
	return &Record{
		RelPath:     p.RelPath,
		Slug:        p.Slug,
		Permalink:   p.Permalink,
		Title:       p.Meta.Title,
		Description: p.Meta.Description,
		Author:      p.Meta.Author,
		Category:    p.Meta.Category,
		Tags:        p.Meta.Tags,
		Layout:      p.Meta.Layout,
		Draft:       p.Meta.Draft,
		Date:        p.Meta.Date,
		Hash:        p.Hash,
		WordCount:   p.WordCount,
		ReadingTime: p.ReadingTime,
		Summary:     p.Summary,
		PlainText:   p.PlainText,
	}
}

const recordColumns = `rel_path, slug, permalink, title, description, author, category,
	tags, layout, draft, date, hash, word_count, reading_secs, summary, plain_text`

// UpsertPost inserts or replaces the row for a source file.
func (s *Store) UpsertPost(ctx context.Context, r *Record) error {
	tags, err := json.Marshal(r.Tags)
	if err != nil {
		return fmt.Errorf("marshal tags: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO posts (`+recordColumns+`, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(rel_path) DO UPDATE SET
			slug = excluded.slug,
			permalink = excluded.permalink,
			title = excluded.title,
			description = excluded.description,
			author = excluded.author,
			category = excluded.category,
			tags = excluded.tags,
			layout = excluded.layout,
			draft = excluded.draft,
			date = excluded.date,
			hash = excluded.hash,
			word_count = excluded.word_count,
			reading_secs = excluded.reading_secs,
			summary = excluded.summary,
			plain_text = excluded.plain_text,
			updated_at = CURRENT_TIMESTAMP`,
		r.RelPath, r.Slug, r.Permalink, r.Title, r.Description, r.Author, r.Category,
		string(tags), r.Layout, boolToInt(r.Draft), dateToString(r.Date), r.Hash,
		r.WordCount, int64(r.ReadingTime/time.Second), r.Summary, r.PlainText,
	)
	if err != nil {
		return fmt.Errorf("upsert post %s: %w", r.RelPath, err)
	}
	return nil
}

// DeleteBySource drops the row for a removed source file.
func (s *Store) DeleteBySource(ctx context.Context, relPath string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM posts WHERE rel_path = ?", relPath); err != nil {
		return fmt.Errorf("delete post %s: %w", relPath, err)
	}
	return nil
}

// GetBySlug returns one post by slug. ErrNotFound when absent.
func (s *Store) GetBySlug(ctx context.Context, slug string) (*Record, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+recordColumns+" FROM posts WHERE slug = ?", slug)
	r, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("post %q: %w", slug, ErrNotFound)
	}
	return r, err
}

// Filter narrows a List call. Zero values match everything.
type Filter struct {
	Category      string
	Author        string
	Tag           string
	Layout        string
	IncludeDrafts bool
	Limit         int
}

// List returns posts newest first (undated last, slug as tiebreak).
func (s *Store) List(ctx context.Context, f Filter) ([]*Record, error) {
	var (
		where []string
		args  []any
	)
	if !f.IncludeDrafts {
		where = append(where, "draft = 0")
	}
	if f.Category != "" {
		where = append(where, "category = ?")
		args = append(args, f.Category)
	}
	if f.Author != "" {
		where = append(where, "author = ?")
		args = append(args, f.Author)
	}
	if f.Layout != "" {
		where = append(where, "layout = ?")
		args = append(args, f.Layout)
	}
	if f.Tag != "" {
		// Tags are a JSON array of strings; match the quoted element.
		where = append(where, "tags LIKE ?")
		args = append(args, `%"`+f.Tag+`"%`)
	}

	query := "SELECT " + recordColumns + " FROM posts"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY date = '' ASC, date DESC, slug ASC"
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}
	defer rows.Close()
	return scanRecords(rows)
}

// Search matches the query against titles, descriptions, and body text.
// Title hits rank first, then description, then body; ties break newest
// first.
func (s *Store) Search(ctx context.Context, query string, limit int) ([]*Record, error) {
	if strings.TrimSpace(query) == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = 20
	}
	needle := "%" + query + "%"

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+recordColumns+`,
			CASE
				WHEN title LIKE ? THEN 0
				WHEN description LIKE ? THEN 1
				ELSE 2
			END AS rank
		FROM posts
		WHERE draft = 0
		  AND (title LIKE ? OR description LIKE ? OR plain_text LIKE ?)
		ORDER BY rank ASC, date DESC, slug ASC
		LIMIT ?`,
		needle, needle, needle, needle, needle, limit)
	if err != nil {
		return nil, fmt.Errorf("search posts: %w", err)
	}
	defer rows.Close()

	var out []*Record
	for rows.Next() {
		var (
			r    Record
			tags string
			date string
			dr   int
			secs int64
			rank int
		)
		if err := rows.Scan(&r.RelPath, &r.Slug, &r.Permalink, &r.Title, &r.Description,
			&r.Author, &r.Category, &tags, &r.Layout, &dr, &date, &r.Hash,
			&r.WordCount, &secs, &r.Summary, &r.PlainText, &rank); err != nil {
			return nil, fmt.Errorf("scan search row: %w", err)
		}
		if err := finishRecord(&r, tags, date, dr, secs); err != nil {
			return nil, err
		}
		out = append(out, &r)
	}
	return out, rows.Err()
}

// Count is one name with its post count, for category and author rollups.
type Count struct {
	Name  string
	Posts int
}

// Categories returns category names with post counts, most posts first.
func (s *Store) Categories(ctx context.Context) ([]Count, error) {
	return s.countBy(ctx, "category")
}

// Authors returns author names with post counts, most posts first.
func (s *Store) Authors(ctx context.Context) ([]Count, error) {
	return s.countBy(ctx, "author")
}

func (s *Store) countBy(ctx context.Context, column string) ([]Count, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT %s, COUNT(*) FROM posts
		WHERE %s != '' AND draft = 0
		GROUP BY %s
		ORDER BY COUNT(*) DESC, %s ASC`, column, column, column, column))
	if err != nil {
		return nil, fmt.Errorf("count by %s: %w", column, err)
	}
	defer rows.Close()

	var out []Count
	for rows.Next() {
		var c Count
		if err := rows.Scan(&c.Name, &c.Posts); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Reindex replaces the whole posts table in one transaction.
func (s *Store) Reindex(ctx context.Context, records []*Record) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("reindex: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM posts"); err != nil {
		return fmt.Errorf("reindex clear: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO posts (`+recordColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("reindex prepare: %w", err)
	}
	defer stmt.Close()

	for _, r := range records {
		tags, err := json.Marshal(r.Tags)
		if err != nil {
			return fmt.Errorf("marshal tags for %s: %w", r.RelPath, err)
		}
		if _, err := stmt.ExecContext(ctx,
			r.RelPath, r.Slug, r.Permalink, r.Title, r.Description, r.Author, r.Category,
			string(tags), r.Layout, boolToInt(r.Draft), dateToString(r.Date), r.Hash,
			r.WordCount, int64(r.ReadingTime/time.Second), r.Summary, r.PlainText,
		); err != nil {
			return fmt.Errorf("reindex %s: %w", r.RelPath, err)
		}
	}

	return tx.Commit()
}

// Stats summarizes the index for the status command.
type Stats struct {
	Posts      int
	Drafts     int
	Categories int
	Authors    int
	Words      int
}

// Stats aggregates index counts.
func (s *Store) Stats(ctx context.Context) (*Stats, error) {
	var st Stats
	err := s.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COALESCE(SUM(draft), 0),
			COUNT(DISTINCT CASE WHEN category != '' THEN category END),
			COUNT(DISTINCT CASE WHEN author != '' THEN author END),
			COALESCE(SUM(word_count), 0)
		FROM posts`).Scan(&st.Posts, &st.Drafts, &st.Categories, &st.Authors, &st.Words)
	if err != nil {
		return nil, fmt.Errorf("stats: %w", err)
	}
	return &st, nil
}

// scanner abstracts sql.Row and sql.Rows for record scanning.
type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (*Record, error) {
	var (
		r    Record
		tags string
		date string
		dr   int
		secs int64
	)
	if err := row.Scan(&r.RelPath, &r.Slug, &r.Permalink, &r.Title, &r.Description,
		&r.Author, &r.Category, &tags, &r.Layout, &dr, &date, &r.Hash,
		&r.WordCount, &secs, &r.Summary, &r.PlainText); err != nil {
		return nil, err
	}
	if err := finishRecord(&r, tags, date, dr, secs); err != nil {
		return nil, err
	}
	return &r, nil
}

func scanRecords(rows *sql.Rows) ([]*Record, error) {
	var out []*Record
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan post row: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func finishRecord(r *Record, tags, date string, draft int, readingSecs int64) error {
	if err := json.Unmarshal([]byte(tags), &r.Tags); err != nil {
		return fmt.Errorf("unmarshal tags for %s: %w", r.RelPath, err)
	}
	r.Draft = draft != 0
	r.ReadingTime = time.Duration(readingSecs) * time.Second
	if date != "" {
		d, err := time.Parse(time.RFC3339, date)
		if err != nil {
			return fmt.Errorf("parse date for %s: %w", r.RelPath, err)
		}
		r.Date = d
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// dateToString stores dates as UTC RFC3339 so string order is date order.
func dateToString(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
