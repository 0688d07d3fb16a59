package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"testing"
	"time"

	"platen/internal/lint"
	"platen/internal/post"
	"platen/internal/site"
)

func TestExitCode(t *testing.T) {
	if got := exitCode(errors.New("plain")); got != 1 {
		t.Fatalf("plain error should exit 1, got %d", got)
	}

	op := &exitError{code: 2, err: errors.New("boom")}
	if got := exitCode(op); got != 2 {
		t.Fatalf("exitError should exit 2, got %d", got)
	}

	wrapped := fmt.Errorf("lint: %w", op)
	if got := exitCode(wrapped); got != 2 {
		t.Fatalf("wrapped exitError should keep its code, got %d", got)
	}
}

func TestSiteTitleFromDir(t *testing.T) {
	cases := map[string]string{
		"/srv/my-tech-blog":   "My Tech Blog",
		"/srv/blog":           "Blog",
		"/home/me/notes_2024": "Notes 2024",
	}
	for dir, want := range cases {
		if got := siteTitleFromDir(dir); got != want {
			t.Errorf("siteTitleFromDir(%q) = %q, want %q", dir, got, want)
		}
	}
}

func TestYAMLQuote(t *testing.T) {
	got := yamlQuote(`Counting: a "simple" question`)
	want := `"Counting: a \"simple\" question"`
	if got != want {
		t.Fatalf("yamlQuote = %s, want %s", got, want)
	}
}

func TestPlural(t *testing.T) {
	if plural(1, "file", "files") != "file" {
		t.Fatal("plural(1) should pick the singular")
	}
	if plural(2, "file", "files") != "files" {
		t.Fatal("plural(2) should pick the plural")
	}
}

func TestPostByline(t *testing.T) {
	p := &post.Post{
		Meta: post.FrontMatter{
			Title:    "Counting",
			Date:     time.Date(2025, 3, 9, 10, 0, 0, 0, time.UTC),
			Author:   "sam",
			Category: "databases",
			Draft:    true,
		},
		WordCount: 420,
	}
	want := "Mar 9, 2025 · sam · databases · 420 words · draft"
	if got := postByline(p); got != want {
		t.Fatalf("postByline = %q, want %q", got, want)
	}

	if got := postByline(&post.Post{}); got != "" {
		t.Fatalf("empty post should have an empty byline, got %q", got)
	}
}

func TestBuildSummary(t *testing.T) {
	rep := &site.Report{
		OutputDir: "/srv/blog/public",
		Posts:     3,
		Skipped:   1,
		Rendered:  9,
		Lint:      &lint.Report{Warnings: 2},
		Duration:  1234 * time.Millisecond,
	}

	out := buildSummary(rep)
	for _, want := range []string{
		"Build complete",
		"full",
		"3 published, 1 skipped",
		"9 files",
		"0 errors, 2 warnings",
		"1.234s",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("summary missing %q:\n%s", want, out)
		}
	}

	rep.Incremental = true
	rep.Unchanged = 2
	out = buildSummary(rep)
	if !strings.Contains(out, "incremental") {
		t.Errorf("summary missing the incremental mode:\n%s", out)
	}
}

func TestBrowseItemAdapter(t *testing.T) {
	it := browseItem{post: &post.Post{
		Slug: "x-marks",
		Meta: post.FrontMatter{Title: "X marks the spot", Category: "maps", Draft: true},
	}}

	if got := it.Title(); got != "X marks the spot (draft)" {
		t.Fatalf("Title = %q", got)
	}
	if !strings.Contains(it.FilterValue(), "maps") {
		t.Fatalf("FilterValue should include the category, got %q", it.FilterValue())
	}

	// Untitled posts fall back to their slug.
	it = browseItem{post: &post.Post{Slug: "untitled"}}
	if got := it.Title(); got != "untitled" {
		t.Fatalf("Title fallback = %q", got)
	}
}

func captureOutput(t *testing.T, fn func()) string {
	t.Helper()

	origOut := os.Stdout
	origErr := os.Stderr
	rOut, wOut, _ := os.Pipe()
	rErr, wErr, _ := os.Pipe()
	os.Stdout = wOut
	os.Stderr = wErr

	done := make(chan string)
	go func() {
		var buf bytes.Buffer
		_, _ = io.Copy(&buf, rOut)
		_, _ = io.Copy(&buf, rErr)
		done <- buf.String()
	}()

	fn()

	_ = wOut.Close()
	_ = wErr.Close()
	os.Stdout = origOut
	os.Stderr = origErr
	return <-done
}
