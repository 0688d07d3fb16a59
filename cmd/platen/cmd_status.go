package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"platen/internal/config"
	"platen/internal/store"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show site configuration and index statistics",
	RunE:  runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	root, cfg, err := loadSite()
	if err != nil {
		return err
	}

	var b strings.Builder
	b.WriteString(headingStyle.Render("Site") + "\n")
	statusRow(&b, "Root", root)
	statusRow(&b, "Title", cfg.Site.Title)
	statusRow(&b, "Base URL", cfg.Site.BaseURL)
	statusRow(&b, "Content", cfg.Content.Dir)
	statusRow(&b, "Output", cfg.Build.OutputDir)
	statusRow(&b, "Layouts", cfg.Build.LayoutsDir)
	statusRow(&b, "Permalink", cfg.Content.Permalink)
	statusRow(&b, "Fail on", cfg.Lint.FailOn)

	if !hasIndex(root, cfg) {
		b.WriteString("\nNo index yet. Run `platen build` to create one.\n")
		fmt.Print(b.String())
		return nil
	}

	idx, err := openIndex(root, cfg)
	if err != nil {
		return err
	}
	defer idx.Close()

	ctx, cancel := context.WithTimeout(context.Background(), config.DefaultTimeout)
	defer cancel()

	stats, err := idx.Stats(ctx)
	if err != nil {
		return err
	}
	b.WriteString("\n" + headingStyle.Render("Index") + "\n")
	statusRow(&b, "Posts", fmt.Sprintf("%d (%d drafts)", stats.Posts, stats.Drafts))
	if cats, err := idx.Categories(ctx); err == nil && len(cats) > 0 {
		statusRow(&b, "Categories", countList(cats))
	}
	if authors, err := idx.Authors(ctx); err == nil && len(authors) > 0 {
		statusRow(&b, "Authors", countList(authors))
	}
	statusRow(&b, "Words", fmt.Sprintf("%d", stats.Words))

	last, err := idx.LastBuild(ctx)
	switch {
	case errors.Is(err, store.ErrNotFound):
		// Indexed but never built, nothing to report.
	case err != nil:
		return err
	default:
		mode := "full"
		if last.Incremental {
			mode = "incremental"
		}
		b.WriteString("\n" + headingStyle.Render("Last build") + "\n")
		statusRow(&b, "ID", last.ID)
		statusRow(&b, "When", last.StartedAt.Local().Format("2006-01-02 15:04:05"))
		statusRow(&b, "Mode", mode)
		statusRow(&b, "Pages", fmt.Sprintf("%d (%d posts)", last.Pages, last.Posts))
		statusRow(&b, "Lint", fmt.Sprintf("%d errors, %d warnings", last.Errors, last.Warnings))
		statusRow(&b, "Duration", last.Duration.Round(time.Millisecond).String())
	}

	fmt.Print(b.String())
	return nil
}

func statusRow(b *strings.Builder, label, value string) {
	fmt.Fprintf(b, "  %s %s\n", labelStyle.Render(label), value)
}

// countList renders tallies as "databases (3), performance (2)", capped
// so one prolific taxonomy cannot flood the panel.
func countList(counts []store.Count) string {
	const max = 6
	parts := make([]string, 0, len(counts))
	for i, c := range counts {
		if i == max {
			parts = append(parts, fmt.Sprintf("and %d more", len(counts)-max))
			break
		}
		parts = append(parts, fmt.Sprintf("%s (%d)", c.Name, c.Posts))
	}
	return strings.Join(parts, ", ")
}
