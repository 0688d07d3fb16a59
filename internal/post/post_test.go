package post

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const samplePost = `---
layout: post
title: Counting the number of items in a collection
category: databases
author: mat
description: Three ways to count, and when each one goes to the database.
date: 2015-03-26
tags:
  - orm
  - performance
---
Counting looks trivial until the collection is lazy.

The first way issues a query every time. The second only looks at what is
already loaded. The third tries to be clever about it.
`

func testParser() *Parser {
	return NewParser("/:year/:month/:slug/", 280)
}

func TestParse_FullFrontMatter(t *testing.T) {
	p := testParser()

	got, err := p.Parse([]byte(samplePost), "posts/2015-03-26-counting-items.md")
	require.NoError(t, err)

	want := FrontMatter{
		Layout:      "post",
		Title:       "Counting the number of items in a collection",
		Category:    "databases",
		Author:      "mat",
		Description: "Three ways to count, and when each one goes to the database.",
		Date:        time.Date(2015, 3, 26, 0, 0, 0, 0, time.UTC),
		Tags:        []string{"orm", "performance"},
	}
	if diff := cmp.Diff(want, got.Meta); diff != "" {
		t.Errorf("front matter mismatch (-want +got):\n%s", diff)
	}

	assert.Equal(t, "counting-items", got.Slug)
	assert.Equal(t, "/2015/03/counting-items/", got.Permalink)
	assert.Contains(t, string(got.RawBody), "Counting looks trivial")
}

func TestParse_DateForms(t *testing.T) {
	tests := []struct {
		name string
		date string
		want time.Time
	}{
		{
			name: "plain date scalar",
			date: "date: 2015-03-26",
			want: time.Date(2015, 3, 26, 0, 0, 0, 0, time.UTC),
		},
		{
			name: "quoted date string",
			date: `date: "2015-03-26"`,
			want: time.Date(2015, 3, 26, 0, 0, 0, 0, time.UTC),
		},
		{
			name: "datetime with offset",
			date: `date: "2015-03-26 19:43:00 +0100"`,
			want: time.Date(2015, 3, 26, 19, 43, 0, 0, time.FixedZone("", 3600)),
		},
		{
			name: "rfc3339",
			date: `date: "2015-03-26T19:43:00Z"`,
			want: time.Date(2015, 3, 26, 19, 43, 0, 0, time.UTC),
		},
	}

	p := testParser()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := "---\ntitle: t\n" + tt.date + "\n---\nbody\n"
			got, err := p.Parse([]byte(src), "posts/a-post.md")
			require.NoError(t, err)
			assert.True(t, got.Meta.Date.Equal(tt.want), "got %v want %v", got.Meta.Date, tt.want)
		})
	}
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name    string
		src     string
		wantErr error
	}{
		{
			name:    "no front matter",
			src:     "Just prose, no metadata block.\n",
			wantErr: ErrNoFrontMatter,
		},
		{
			name:    "unterminated block",
			src:     "---\ntitle: lonely\n",
			wantErr: ErrUnterminatedFrontMatter,
		},
		{
			name:    "block is a list",
			src:     "---\n- a\n- b\n---\nbody\n",
			wantErr: ErrNotMapping,
		},
	}

	p := testParser()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := p.Parse([]byte(tt.src), "posts/broken.md")
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestParse_FieldTypeErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{name: "title not a string", src: "---\ntitle: [a, b]\n---\n"},
		{name: "tags not strings", src: "---\ntitle: t\ntags:\n  - 1\n  - 2\n---\n"},
		{name: "draft not a bool", src: "---\ntitle: t\ndraft: maybe not\n---\n"},
		{name: "unparseable date", src: "---\ntitle: t\ndate: \"March the 26th\"\n---\n"},
	}

	p := testParser()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := p.Parse([]byte(tt.src), "posts/bad-field.md")
			assert.Error(t, err)
		})
	}
}

func TestParse_BOMAndCRLF(t *testing.T) {
	src := "\xEF\xBB\xBF---\r\ntitle: Reading files without drama\r\nlayout: post\r\n---\r\nShort body.\r\n"

	got, err := testParser().Parse([]byte(src), "posts/2014-01-02-reading-files.md")
	require.NoError(t, err)
	assert.Equal(t, "Reading files without drama", got.Meta.Title)
	assert.Equal(t, "reading-files", got.Slug)
	assert.Equal(t, time.Date(2014, 1, 2, 0, 0, 0, 0, time.UTC), got.Meta.Date)
}

func TestParse_CustomKeysPreserved(t *testing.T) {
	src := "---\ntitle: t\nhero_image: /img/press.png\ncomments: true\nweight: 3\n---\nbody\n"

	got, err := testParser().Parse([]byte(src), "posts/custom.md")
	require.NoError(t, err)

	require.NotNil(t, got.Meta.Custom)
	assert.Equal(t, "/img/press.png", got.Meta.Custom["hero_image"])
	assert.Equal(t, true, got.Meta.Custom["comments"])
	assert.Equal(t, 3, got.Meta.Custom["weight"])
}

func TestParse_PublishedLegacyKey(t *testing.T) {
	src := "---\ntitle: t\npublished: false\n---\nbody\n"

	got, err := testParser().Parse([]byte(src), "posts/hidden.md")
	require.NoError(t, err)
	assert.True(t, got.Meta.Draft)
}

func TestParse_SlugDerivation(t *testing.T) {
	tests := []struct {
		name    string
		relPath string
		src     string
		want    string
	}{
		{
			name:    "date prefixed filename",
			relPath: "posts/2015-04-01-factories-not-fixtures.md",
			src:     "---\ntitle: t\n---\n",
			want:    "factories-not-fixtures",
		},
		{
			name:    "plain filename",
			relPath: "posts/About Writing.md",
			src:     "---\ntitle: t\n---\n",
			want:    "about-writing",
		},
		{
			name:    "explicit slug wins",
			relPath: "posts/2015-04-01-whatever.md",
			src:     "---\ntitle: t\nslug: Custom Slug Here\n---\n",
			want:    "custom-slug-here",
		},
	}

	p := testParser()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := p.Parse([]byte(tt.src), tt.relPath)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Slug)
		})
	}
}

func TestParse_PermalinkCategoryPattern(t *testing.T) {
	p := NewParser("/:category/:year/:slug/", 280)

	withCategory, err := p.Parse([]byte("---\ntitle: t\ncategory: Ruby on Rails\ndate: 2015-03-26\n---\n"), "posts/2015-03-26-x.md")
	require.NoError(t, err)
	assert.Equal(t, "/ruby-on-rails/2015/x/", withCategory.Permalink)

	// Empty category must not leave a double slash behind.
	without, err := p.Parse([]byte("---\ntitle: t\ndate: 2015-03-26\n---\n"), "posts/2015-03-26-y.md")
	require.NoError(t, err)
	assert.Equal(t, "/2015/y/", without.Permalink)
}

func TestParse_UndatedPageDropsDateSegments(t *testing.T) {
	p := testParser()

	got, err := p.Parse([]byte("---\nlayout: page\ntitle: About\n---\nHi.\n"), "about.md")
	require.NoError(t, err)
	assert.Equal(t, "/about/", got.Permalink)
}

func TestParse_SummaryPriority(t *testing.T) {
	p := testParser()

	t.Run("description wins", func(t *testing.T) {
		got, err := p.Parse([]byte(samplePost), "posts/2015-03-26-c.md")
		require.NoError(t, err)
		assert.Equal(t, "Three ways to count, and when each one goes to the database.", got.Summary)
	})

	t.Run("more divider", func(t *testing.T) {
		src := "---\ntitle: t\n---\nThe intro paragraph.\n\n<!--more-->\n\nThe rest of the story.\n"
		got, err := p.Parse([]byte(src), "posts/divided.md")
		require.NoError(t, err)
		assert.Equal(t, "The intro paragraph.", got.Summary)
		assert.NotContains(t, got.Summary, "rest of the story")
	})

	t.Run("first paragraph fallback", func(t *testing.T) {
		src := "---\ntitle: t\n---\nFirst paragraph\nwith a wrapped line.\n\nSecond paragraph.\n"
		got, err := p.Parse([]byte(src), "posts/plain.md")
		require.NoError(t, err)
		assert.Equal(t, "First paragraph with a wrapped line.", got.Summary)
	})

	t.Run("long first paragraph truncates on a word", func(t *testing.T) {
		long := strings.Repeat("resilience ", 60)
		src := "---\ntitle: t\n---\n" + long + "\n"
		got, err := p.Parse([]byte(src), "posts/long.md")
		require.NoError(t, err)
		assert.LessOrEqual(t, len([]rune(got.Summary)), 281)
		// Cut lands on a word boundary, never mid-word.
		assert.True(t, strings.HasSuffix(got.Summary, "resilience…"), "summary should end on a whole word: %q", got.Summary)
	})
}

func TestParse_WordCountAndReadingTime(t *testing.T) {
	src := "---\ntitle: t\n---\n" + strings.Repeat("word ", 476) + "\n"

	got, err := testParser().Parse([]byte(src), "posts/long-read.md")
	require.NoError(t, err)
	assert.Equal(t, 476, got.WordCount)
	assert.Equal(t, 2*time.Minute, got.ReadingTime)

	empty, err := testParser().Parse([]byte("---\ntitle: t\n---\n"), "posts/empty.md")
	require.NoError(t, err)
	assert.Equal(t, time.Duration(0), empty.ReadingTime)
}

func TestPost_EffectiveLayoutAndFuture(t *testing.T) {
	p := testParser()

	got, err := p.Parse([]byte("---\ntitle: t\n---\n"), "posts/bare.md")
	require.NoError(t, err)
	assert.Equal(t, "post", got.EffectiveLayout("post"))

	withLayout, err := p.Parse([]byte("---\ntitle: t\nlayout: page\n---\n"), "posts/paged.md")
	require.NoError(t, err)
	assert.Equal(t, "page", withLayout.EffectiveLayout("post"))

	future, err := p.Parse([]byte("---\ntitle: t\ndate: 2099-01-01\n---\n"), "posts/future.md")
	require.NoError(t, err)
	assert.True(t, future.IsFuture(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)))
	assert.False(t, future.IsFuture(time.Date(2100, 1, 1, 0, 0, 0, 0, time.UTC)))
}

func TestParseFile(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "posts")
	require.NoError(t, os.MkdirAll(dir, 0o755))

	path := filepath.Join(dir, "2015-03-26-counting-items.md")
	require.NoError(t, os.WriteFile(path, []byte(samplePost), 0o644))

	got, err := testParser().ParseFile(path, root)
	require.NoError(t, err)

	assert.Equal(t, path, got.SourcePath)
	assert.Equal(t, "posts/2015-03-26-counting-items.md", got.RelPath)
	assert.Len(t, got.Hash, 64)
	assert.False(t, got.ModTime.IsZero())
}

func TestParseFile_Missing(t *testing.T) {
	_, err := testParser().ParseFile(filepath.Join(t.TempDir(), "absent.md"), t.TempDir())
	assert.Error(t, err)
}

func TestSlugify(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Counting The Number Of Items", "counting-the-number-of-items"},
		{"ruby on rails", "ruby-on-rails"},
		{"  --weird--input--  ", "weird-input"},
		{"C'est l'été!", "c-est-l-t"},
		{"", ""},
		{"...", ""},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Slugify(tt.in))
		})
	}
}

func TestStripMarkdown(t *testing.T) {
	src := "# Heading\n\nSome *emphasis* and a [link](https://example.com) plus `inline code`.\n\n```go\nfunc ignored() {}\n```\n\n> quoted line\n"

	plain := StripMarkdown(src)
	assert.NotContains(t, plain, "func ignored")
	assert.NotContains(t, plain, "https://example.com")
	assert.Contains(t, plain, "link")
	assert.Contains(t, plain, "Heading")
	assert.Contains(t, plain, "inline code")
	assert.Contains(t, plain, "quoted line")
	assert.NotContains(t, plain, "*")
	assert.NotContains(t, plain, "#")
}
