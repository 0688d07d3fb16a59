package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"platen/internal/config"
	"platen/internal/site"
	"platen/internal/store"
)

var (
	listCategory string
	listAuthor   string
	listDrafts   bool
	listLimit    int

	searchLimit int
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List posts, newest first",
	Long: `Lists posts from the index. Before the first build (no index yet)
the content tree is parsed fresh instead, so the command works in a
checkout that has never been built.`,
	RunE: runList,
}

var searchCmd = &cobra.Command{
	Use:   "search <term>",
	Short: "Search indexed posts",
	Long: `Searches titles, descriptions, and body text in the post index,
title matches first. The index is populated by builds, so run
'platen build' before the first search.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSearch,
}

func init() {
	listCmd.Flags().StringVar(&listCategory, "category", "", "Only posts in this category")
	listCmd.Flags().StringVar(&listAuthor, "author", "", "Only posts by this author")
	listCmd.Flags().BoolVar(&listDrafts, "drafts", false, "Include drafts")
	listCmd.Flags().IntVar(&listLimit, "limit", 0, "Maximum rows (0 means all)")

	searchCmd.Flags().IntVar(&searchLimit, "limit", 20, "Maximum rows")
}

func runList(cmd *cobra.Command, args []string) error {
	root, cfg, err := loadSite()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), config.DefaultTimeout)
	defer cancel()

	var records []*store.Record
	if hasIndex(root, cfg) {
		idx, err := openIndex(root, cfg)
		if err != nil {
			return err
		}
		defer idx.Close()

		records, err = idx.List(ctx, store.Filter{
			Category:      listCategory,
			Author:        listAuthor,
			IncludeDrafts: listDrafts,
			Limit:         listLimit,
		})
		if err != nil {
			return err
		}
	} else {
		records, err = listFresh(ctx, root, cfg)
		if err != nil {
			return err
		}
	}

	if len(records) == 0 {
		fmt.Println("No posts found.")
		return nil
	}

	renderPostTable(os.Stdout, records)
	return nil
}

// listFresh parses the content tree directly and applies the list filters
// in memory, for sites that have never been built.
func listFresh(ctx context.Context, root string, cfg *config.Config) ([]*store.Record, error) {
	builder, err := site.NewBuilder(root, cfg, nil, logger)
	if err != nil {
		return nil, err
	}
	posts, err := builder.Posts(ctx)
	if err != nil {
		return nil, err
	}

	records := make([]*store.Record, 0, len(posts))
	for _, p := range posts {
		if p.Meta.Draft && !listDrafts {
			continue
		}
		if listCategory != "" && p.Meta.Category != listCategory {
			continue
		}
		if listAuthor != "" && p.Meta.Author != listAuthor {
			continue
		}
		records = append(records, store.FromPost(p))
		if listLimit > 0 && len(records) == listLimit {
			break
		}
	}
	return records, nil
}

func runSearch(cmd *cobra.Command, args []string) error {
	root, cfg, err := loadSite()
	if err != nil {
		return err
	}

	if !hasIndex(root, cfg) {
		return fmt.Errorf("no post index at %s; run 'platen build' first", cfg.IndexPath(root))
	}

	idx, err := openIndex(root, cfg)
	if err != nil {
		return err
	}
	defer idx.Close()

	ctx, cancel := context.WithTimeout(context.Background(), config.DefaultTimeout)
	defer cancel()

	term := strings.Join(args, " ")
	records, err := idx.Search(ctx, term, searchLimit)
	if err != nil {
		return err
	}

	if len(records) == 0 {
		fmt.Printf("No posts match %q.\n", term)
		return nil
	}

	renderPostTable(os.Stdout, records)
	return nil
}

// renderPostTable prints post records as a borderless light table.
func renderPostTable(w io.Writer, records []*store.Record) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"Date", "Title", "Category", "Author", "Words", "Slug"})

	for _, r := range records {
		date := ""
		if !r.Date.IsZero() {
			date = r.Date.Format("2006-01-02")
		}
		title := r.Title
		if r.Draft {
			title += " (draft)"
		}
		t.AppendRow(table.Row{date, title, r.Category, r.Author, r.WordCount, r.Slug})
	}

	style := table.StyleLight
	style.Options.DrawBorder = false
	t.SetStyle(style)
	t.Render()
}
