package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"platen/internal/site"
)

var (
	buildDrafts      bool
	buildFuture      bool
	buildIncremental bool
	buildForce       bool
)

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Compile the site into the output directory",
	Long: `Runs the full pipeline: scan content, parse front matter, lint,
render markdown through layouts, and write the output tree with its
archive pages, RSS and Atom feeds, and sitemap.

The build aborts before writing anything when lint findings reach the
configured fail_on threshold. Use --incremental to re-render only posts
whose content changed since the last build; archives and feeds are
always refreshed.`,
	RunE: runBuild,
}

func init() {
	buildCmd.Flags().BoolVarP(&buildDrafts, "drafts", "D", false, "Include draft posts")
	buildCmd.Flags().BoolVarP(&buildFuture, "future", "F", false, "Include future-dated posts")
	buildCmd.Flags().BoolVar(&buildIncremental, "incremental", false, "Re-render only changed posts")
	buildCmd.Flags().BoolVar(&buildForce, "force", false, "With --incremental, re-render everything anyway")
}

func runBuild(cmd *cobra.Command, args []string) error {
	root, cfg, err := loadSite()
	if err != nil {
		return err
	}

	idx, err := openIndex(root, cfg)
	if err != nil {
		return err
	}
	defer idx.Close()

	builder, err := site.NewBuilder(root, cfg, idx, logger)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	rep, err := builder.Build(ctx, site.Options{
		Drafts:      buildDrafts || cfg.Build.Drafts,
		Future:      buildFuture || cfg.Build.Future,
		Incremental: buildIncremental,
		Force:       buildForce,
	})
	if errors.Is(err, site.ErrLintGate) {
		fmt.Print(rep.Lint.Render())
		return fmt.Errorf("build aborted: %w", err)
	}
	if err != nil {
		return err
	}

	if rep.Lint != nil && !rep.Lint.Clean() {
		fmt.Print(rep.Lint.Render())
	}
	fmt.Print(buildSummary(rep))
	return nil
}

// buildSummary renders the post-build report for the terminal.
func buildSummary(rep *site.Report) string {
	var b strings.Builder

	mode := "full"
	if rep.Incremental {
		mode = "incremental"
	}

	fmt.Fprintf(&b, "\n%s\n", headingStyle.Render("Build complete"))
	row := func(label, value string) {
		fmt.Fprintf(&b, "  %s %s\n", labelStyle.Render(label), value)
	}
	row("mode", mode)
	row("posts", fmt.Sprintf("%d published, %d skipped", rep.Posts, rep.Skipped))
	if rep.Incremental {
		row("unchanged", strconv.Itoa(rep.Unchanged))
	}
	row("written", fmt.Sprintf("%d %s", rep.Rendered, plural(rep.Rendered, "file", "files")))
	if rep.Lint != nil && (rep.Lint.Errors > 0 || rep.Lint.Warnings > 0) {
		row("lint", fmt.Sprintf("%d errors, %d warnings", rep.Lint.Errors, rep.Lint.Warnings))
	}
	row("output", rep.OutputDir)
	row("duration", rep.Duration.Round(time.Millisecond).String())
	return b.String()
}

func plural(n int, singular, pluralForm string) string {
	if n == 1 {
		return singular
	}
	return pluralForm
}
