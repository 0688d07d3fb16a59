// Package post defines the document model for platen content.
//
// A post is a markdown file with a YAML front-matter block:
//
//	---
//	layout: post
//	title: Counting the number of items in a collection
//	category: databases
//	author: mat
//	---
//	Body prose with code samples.
//
// The front matter carries the metadata (layout identifier and title at
// minimum; category, author, description and free custom keys beyond that);
// everything after the closing delimiter is the body. Files are the source
// of truth: parsing never mutates them, and every derived artifact (HTML,
// index rows, caches) can be rebuilt from the sources alone.
package post

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

// Post is a parsed content document plus its derived fields.
type Post struct {
	// Source identity
	SourcePath string // absolute path on disk
	RelPath    string // path relative to the content dir, slash-separated
	Hash       string // sha256 of the raw file
	ModTime    time.Time

	// Derived addressing
	Slug      string
	Permalink string // absolute-path style, always / terminated

	// Metadata and content
	Meta    FrontMatter
	RawBody []byte

	// Filled by the render stage
	HTML      template.HTML
	PlainText string

	// Derived text metrics
	Summary     string
	WordCount   int
	ReadingTime time.Duration
}

// wordsPerMinute is the reading speed used for ReadingTime estimates.
const wordsPerMinute = 238

// Parser turns raw files into Posts using the site's content conventions.
type Parser struct {
	// PermalinkPattern with :year :month :day :slug :category placeholders.
	PermalinkPattern string

	// SummaryLength caps auto-generated summaries, in runes.
	SummaryLength int
}

// NewParser returns a Parser for the given permalink pattern and summary cap.
func NewParser(permalinkPattern string, summaryLength int) *Parser {
	if permalinkPattern == "" {
		permalinkPattern = "/:year/:month/:slug/"
	}
	if summaryLength <= 0 {
		summaryLength = 280
	}
	return &Parser{PermalinkPattern: permalinkPattern, SummaryLength: summaryLength}
}

// filenameDatePattern matches the YYYY-MM-DD-rest naming convention.
var filenameDatePattern = regexp.MustCompile(`^(\d{4})-(\d{2})-(\d{2})-(.+)$`)

// Parse parses a raw document. relPath is the slash-separated path of the
// file relative to the content dir; it feeds slug and date derivation.
func (p *Parser) Parse(src []byte, relPath string) (*Post, error) {
	meta, body, err := splitFrontMatter(src)
	if err != nil {
		return nil, err
	}

	post := &Post{
		RelPath: filepath.ToSlash(relPath),
		Meta:    meta,
		RawBody: body,
	}

	stem := strings.TrimSuffix(filepath.Base(relPath), filepath.Ext(relPath))
	if m := filenameDatePattern.FindStringSubmatch(stem); m != nil {
		if post.Meta.Date.IsZero() {
			d, err := time.Parse("2006-01-02", m[1]+"-"+m[2]+"-"+m[3])
			if err != nil {
				return nil, fmt.Errorf("%s: filename date: %w", relPath, err)
			}
			post.Meta.Date = d
		}
		stem = m[4]
	}

	if post.Meta.Slug != "" {
		post.Slug = Slugify(post.Meta.Slug)
	} else {
		post.Slug = Slugify(stem)
	}
	if post.Slug == "" {
		return nil, fmt.Errorf("%s: cannot derive a slug", relPath)
	}

	post.Permalink = p.expandPermalink(post)

	plain := StripMarkdown(string(body))
	post.WordCount = countWords(plain)
	post.ReadingTime = readingTime(post.WordCount)
	post.Summary = p.summarize(post, plain)

	return post, nil
}

// ParseFile reads and parses a document from disk. root is the content dir;
// it anchors RelPath.
func (p *Parser) ParseFile(path, root string) (*Post, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read post: %w", err)
	}

	rel, err := filepath.Rel(root, path)
	if err != nil {
		rel = filepath.Base(path)
	}

	post, err := p.Parse(data, filepath.ToSlash(rel))
	if err != nil {
		return nil, err
	}

	post.SourcePath = path

	sum := sha256.Sum256(data)
	post.Hash = hex.EncodeToString(sum[:])

	if info, err := os.Stat(path); err == nil {
		post.ModTime = info.ModTime()
	}

	return post, nil
}

// expandPermalink renders the permalink pattern for a post. Undated
// documents (standalone pages, typically) drop the date placeholders, so
// the default pattern maps about.md to /about/ rather than /0001/01/about/.
func (p *Parser) expandPermalink(post *Post) string {
	date := post.Meta.Date
	year, month, day := fmt.Sprintf("%04d", date.Year()), fmt.Sprintf("%02d", int(date.Month())), fmt.Sprintf("%02d", date.Day())
	if date.IsZero() {
		year, month, day = "", "", ""
	}
	r := strings.NewReplacer(
		":year", year,
		":month", month,
		":day", day,
		":slug", post.Slug,
		":category", Slugify(post.Meta.Category),
	)

	link := r.Replace(p.PermalinkPattern)

	// An empty :category segment leaves a double slash behind.
	for strings.Contains(link, "//") {
		link = strings.ReplaceAll(link, "//", "/")
	}
	if !strings.HasPrefix(link, "/") {
		link = "/" + link
	}
	if !strings.HasSuffix(link, "/") {
		link += "/"
	}
	return link
}

// moreDivider splits the intro from the rest of a post.
const moreDivider = "<!--more-->"

// summarize picks a post summary: explicit description, then the text above
// the <!--more--> divider, then the first paragraph, capped at SummaryLength.
func (p *Parser) summarize(post *Post, plain string) string {
	if d := strings.TrimSpace(post.Meta.Description); d != "" {
		return d
	}

	body := string(post.RawBody)
	if idx := strings.Index(body, moreDivider); idx >= 0 {
		return truncateWords(strings.TrimSpace(StripMarkdown(body[:idx])), p.SummaryLength)
	}

	return truncateWords(firstParagraph(plain), p.SummaryLength)
}

// EffectiveLayout resolves the layout identifier, falling back to def when
// the front matter omits it.
func (post *Post) EffectiveLayout(def string) string {
	if post.Meta.Layout != "" {
		return post.Meta.Layout
	}
	return def
}

// IsFuture reports whether the post is dated after now.
func (post *Post) IsFuture(now time.Time) bool {
	return !post.Meta.Date.IsZero() && post.Meta.Date.After(now)
}

// Title is a convenience accessor used by templates and table output.
func (post *Post) Title() string { return post.Meta.Title }

// readingTime estimates how long the post takes to read, with a one minute
// floor for anything non-empty.
func readingTime(words int) time.Duration {
	if words == 0 {
		return 0
	}
	mins := float64(words) / wordsPerMinute
	d := time.Duration(mins * float64(time.Minute))
	if d < time.Minute {
		return time.Minute
	}
	return d.Round(time.Second)
}
