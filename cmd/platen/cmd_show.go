package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"

	"platen/internal/config"
	"platen/internal/post"
	"platen/internal/site"
	"platen/internal/store"
)

var showCmd = &cobra.Command{
	Use:   "show <slug-or-path>",
	Short: "Render one post in the terminal",
	Long: `Renders a post as styled terminal output. The argument is either a
slug (looked up in the index, or by a fresh parse before the first
build) or a path to a markdown file.`,
	Args: cobra.ExactArgs(1),
	RunE: runShow,
}

func runShow(cmd *cobra.Command, args []string) error {
	arg := args[0]

	// A file path renders directly; no site context needed.
	if info, err := os.Stat(arg); err == nil && !info.IsDir() {
		p, err := post.NewParser("", 0).ParseFile(arg, filepath.Dir(arg))
		if err != nil {
			return err
		}
		return renderTerminal(os.Stdout, p)
	}

	root, cfg, err := loadSite()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), config.DefaultTimeout)
	defer cancel()

	p, err := findPost(ctx, root, cfg, arg)
	if err != nil {
		return err
	}
	return renderTerminal(os.Stdout, p)
}

// findPost resolves a slug to a parsed post, through the index when one
// exists and a fresh parse of the content tree otherwise.
func findPost(ctx context.Context, root string, cfg *config.Config, slug string) (*post.Post, error) {
	contentDir := filepath.Join(root, cfg.Content.Dir)
	parser := post.NewParser(cfg.Content.Permalink, cfg.Content.SummaryLength)

	if hasIndex(root, cfg) {
		idx, err := openIndex(root, cfg)
		if err != nil {
			return nil, err
		}
		defer idx.Close()

		rec, err := idx.GetBySlug(ctx, slug)
		if err == nil {
			// Parse the source fresh: the index has no raw markdown, and
			// the file may have changed since the last build.
			return parser.ParseFile(filepath.Join(contentDir, filepath.FromSlash(rec.RelPath)), contentDir)
		}
		if !errors.Is(err, store.ErrNotFound) {
			return nil, err
		}
	}

	builder, err := site.NewBuilder(root, cfg, nil, logger)
	if err != nil {
		return nil, err
	}
	posts, err := builder.Posts(ctx)
	if err != nil {
		return nil, err
	}
	for _, p := range posts {
		if p.Slug == slug {
			return p, nil
		}
	}
	return nil, fmt.Errorf("no post with slug %q", slug)
}

// renderTerminal writes a glamour-rendered preview of one post.
func renderTerminal(w io.Writer, p *post.Post) error {
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(80),
	)
	if err != nil {
		return err
	}

	body, err := r.Render(string(p.RawBody))
	if err != nil {
		return fmt.Errorf("render %s: %w", p.RelPath, err)
	}

	fmt.Fprintln(w, headingStyle.Render(p.Meta.Title))
	if byline := postByline(p); byline != "" {
		fmt.Fprintln(w, faintStyle.Render(byline))
	}
	fmt.Fprint(w, body)
	return nil
}

// postByline is the one-line metadata summary under a preview title.
func postByline(p *post.Post) string {
	var parts []string
	if !p.Meta.Date.IsZero() {
		parts = append(parts, p.Meta.Date.Format("Jan 2, 2006"))
	}
	if p.Meta.Author != "" {
		parts = append(parts, p.Meta.Author)
	}
	if p.Meta.Category != "" {
		parts = append(parts, p.Meta.Category)
	}
	if p.WordCount > 0 {
		parts = append(parts, fmt.Sprintf("%d words", p.WordCount))
	}
	if p.Meta.Draft {
		parts = append(parts, "draft")
	}
	return strings.Join(parts, " · ")
}
