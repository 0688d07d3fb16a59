package store

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), ".platen", "index.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func testRecord(relPath, slug, title string, date time.Time) *Record {
	return &Record{
		RelPath:     relPath,
		Slug:        slug,
		Permalink:   "/" + slug + "/",
		Title:       title,
		Author:      "mat",
		Category:    "databases",
		Tags:        []string{"orm"},
		Layout:      "post",
		Date:        date,
		Hash:        "deadbeef",
		WordCount:   100,
		ReadingTime: time.Minute,
		Summary:     "a summary",
		PlainText:   "counting items in a lazy collection",
	}
}

func TestOpen_CreatesIndex(t *testing.T) {
	s := openTestStore(t)

	stats, err := s.Stats(context.Background())
	require.NoError(t, err)
	assert.Zero(t, stats.Posts)
}

func TestMigrations_UpgradeOldIndex(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.db")

	// An index created before plain_text and reading_secs existed.
	old, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	_, err = old.Exec(`
		CREATE TABLE posts (
			rel_path    TEXT PRIMARY KEY,
			slug        TEXT NOT NULL,
			permalink   TEXT NOT NULL,
			title       TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			author      TEXT NOT NULL DEFAULT '',
			category    TEXT NOT NULL DEFAULT '',
			tags        TEXT NOT NULL DEFAULT '[]',
			layout      TEXT NOT NULL DEFAULT '',
			draft       INTEGER NOT NULL DEFAULT 0,
			date        TEXT NOT NULL DEFAULT '',
			hash        TEXT NOT NULL,
			word_count  INTEGER NOT NULL DEFAULT 0,
			summary     TEXT NOT NULL DEFAULT '',
			updated_at  DATETIME DEFAULT CURRENT_TIMESTAMP
		)`)
	require.NoError(t, err)
	require.NoError(t, old.Close())

	s, err := Open(path, nil)
	require.NoError(t, err)
	defer s.Close()

	assert.True(t, s.columnExists("posts", "plain_text"))
	assert.True(t, s.columnExists("posts", "reading_secs"))

	// The upgraded index accepts current-shape rows.
	err = s.UpsertPost(context.Background(), testRecord("posts/a.md", "a", "A", time.Now()))
	assert.NoError(t, err)
}

func TestUpsertAndGetBySlug(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	want := testRecord("posts/2015-03-26-counting.md", "counting", "Counting items", time.Date(2015, 3, 26, 0, 0, 0, 0, time.UTC))
	require.NoError(t, s.UpsertPost(ctx, want))

	got, err := s.GetBySlug(ctx, "counting")
	require.NoError(t, err)
	assert.Equal(t, want.RelPath, got.RelPath)
	assert.Equal(t, want.Title, got.Title)
	assert.Equal(t, []string{"orm"}, got.Tags)
	assert.True(t, want.Date.Equal(got.Date))
	assert.Equal(t, time.Minute, got.ReadingTime)
	assert.Equal(t, want.PlainText, got.PlainText)

	// Same source path replaces, not duplicates.
	want.Title = "Counting items, revisited"
	require.NoError(t, s.UpsertPost(ctx, want))

	got, err = s.GetBySlug(ctx, "counting")
	require.NoError(t, err)
	assert.Equal(t, "Counting items, revisited", got.Title)

	stats, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Posts)
}

func TestGetBySlug_NotFound(t *testing.T) {
	s := openTestStore(t)
	_, err := s.GetBySlug(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteBySource(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.UpsertPost(ctx, testRecord("posts/a.md", "a", "A", time.Now())))
	require.NoError(t, s.DeleteBySource(ctx, "posts/a.md"))

	_, err := s.GetBySlug(ctx, "a")
	assert.ErrorIs(t, err, ErrNotFound)
}

func seedCorpus(t *testing.T, s *Store) {
	t.Helper()
	ctx := context.Background()

	older := testRecord("posts/2014-01-02-files.md", "files", "Reading files efficiently", time.Date(2014, 1, 2, 0, 0, 0, 0, time.UTC))
	older.Category = "performance"
	older.Tags = []string{"io"}
	older.PlainText = "buffered reads beat byte-at-a-time loops"

	newer := testRecord("posts/2015-03-26-counting.md", "counting", "Counting items", time.Date(2015, 3, 26, 0, 0, 0, 0, time.UTC))

	draft := testRecord("posts/drafts/wip.md", "wip", "Work in progress", time.Date(2015, 6, 1, 0, 0, 0, 0, time.UTC))
	draft.Draft = true
	draft.Author = "sam"

	undated := testRecord("posts/about.md", "about", "About", time.Time{})
	undated.Category = ""
	undated.Layout = "page"

	for _, r := range []*Record{older, newer, draft, undated} {
		require.NoError(t, s.UpsertPost(ctx, r))
	}
}

func TestList(t *testing.T) {
	s := openTestStore(t)
	seedCorpus(t, s)
	ctx := context.Background()

	t.Run("newest first, undated last, drafts hidden", func(t *testing.T) {
		got, err := s.List(ctx, Filter{})
		require.NoError(t, err)

		var slugs []string
		for _, r := range got {
			slugs = append(slugs, r.Slug)
		}
		assert.Equal(t, []string{"counting", "files", "about"}, slugs)
	})

	t.Run("include drafts", func(t *testing.T) {
		got, err := s.List(ctx, Filter{IncludeDrafts: true})
		require.NoError(t, err)
		assert.Len(t, got, 4)
		assert.Equal(t, "wip", got[0].Slug)
	})

	t.Run("by category", func(t *testing.T) {
		got, err := s.List(ctx, Filter{Category: "performance"})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "files", got[0].Slug)
	})

	t.Run("by tag", func(t *testing.T) {
		got, err := s.List(ctx, Filter{Tag: "io"})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "files", got[0].Slug)
	})

	t.Run("by layout", func(t *testing.T) {
		got, err := s.List(ctx, Filter{Layout: "page"})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "about", got[0].Slug)
	})

	t.Run("limit", func(t *testing.T) {
		got, err := s.List(ctx, Filter{Limit: 1})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "counting", got[0].Slug)
	})
}

func TestSearch(t *testing.T) {
	s := openTestStore(t)
	seedCorpus(t, s)
	ctx := context.Background()

	t.Run("title outranks body", func(t *testing.T) {
		// "counting" is in one title and in another post's body.
		got, err := s.Search(ctx, "counting", 10)
		require.NoError(t, err)
		require.NotEmpty(t, got)
		assert.Equal(t, "counting", got[0].Slug)
	})

	t.Run("body text matches", func(t *testing.T) {
		got, err := s.Search(ctx, "buffered reads", 10)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "files", got[0].Slug)
	})

	t.Run("drafts excluded", func(t *testing.T) {
		got, err := s.Search(ctx, "Work in progress", 10)
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("blank query", func(t *testing.T) {
		got, err := s.Search(ctx, "   ", 10)
		require.NoError(t, err)
		assert.Nil(t, got)
	})
}

func TestCategoriesAndAuthors(t *testing.T) {
	s := openTestStore(t)
	seedCorpus(t, s)
	ctx := context.Background()

	cats, err := s.Categories(ctx)
	require.NoError(t, err)
	require.Len(t, cats, 2)
	assert.Equal(t, Count{Name: "databases", Posts: 1}, cats[0])
	assert.Equal(t, Count{Name: "performance", Posts: 1}, cats[1])

	authors, err := s.Authors(ctx)
	require.NoError(t, err)
	require.Len(t, authors, 1)
	assert.Equal(t, "mat", authors[0].Name)
	assert.Equal(t, 3, authors[0].Posts)
}

func TestReindex(t *testing.T) {
	s := openTestStore(t)
	seedCorpus(t, s)
	ctx := context.Background()

	fresh := []*Record{testRecord("posts/only.md", "only", "Only one", time.Now())}
	require.NoError(t, s.Reindex(ctx, fresh))

	got, err := s.List(ctx, Filter{IncludeDrafts: true})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "only", got[0].Slug)
}

func TestStats(t *testing.T) {
	s := openTestStore(t)
	seedCorpus(t, s)

	stats, err := s.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, stats.Posts)
	assert.Equal(t, 1, stats.Drafts)
	assert.Equal(t, 2, stats.Categories)
	assert.Equal(t, 2, stats.Authors)
	assert.Equal(t, 400, stats.Words)
}
