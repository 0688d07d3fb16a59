package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"platen/internal/serve"
	"platen/internal/site"
)

var (
	serveDrafts bool
	serveFuture bool
	serveHost   string
	servePort   int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Build the site and preview it locally",
	Long: `Builds the site, serves the output directory, and watches the
content, layouts, and static trees. Saving a file triggers a rebuild;
when live reload is on (the default), open browser tabs refresh
themselves once the rebuild lands. A rebuild that fails keeps the last
good output on screen.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().BoolVarP(&serveDrafts, "drafts", "D", false, "Include draft posts")
	serveCmd.Flags().BoolVarP(&serveFuture, "future", "F", false, "Include future-dated posts")
	serveCmd.Flags().StringVar(&serveHost, "host", "", "Override the configured host")
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "Override the configured port")
}

func runServe(cmd *cobra.Command, args []string) error {
	root, cfg, err := loadSite()
	if err != nil {
		return err
	}
	if serveHost != "" {
		cfg.Serve.Host = serveHost
	}
	if servePort != 0 {
		cfg.Serve.Port = servePort
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

	opts := site.Options{
		Drafts: serveDrafts || cfg.Build.Drafts,
		Future: serveFuture || cfg.Build.Future,
	}

	ctx, cancel := signalContext()
	defer cancel()

	rep, err := builder.Build(ctx, opts)
	if errors.Is(err, site.ErrLintGate) {
		fmt.Print(rep.Lint.Render())
		return fmt.Errorf("initial build aborted: %w", err)
	}
	if err != nil {
		return err
	}
	fmt.Print(buildSummary(rep))

	// Rebuilds go through a fresh builder so layout edits are picked up
	// (templates are parsed at construction time). Full rather than
	// incremental: correct for layout and static changes too, and a blog
	// rebuild is cheap.
	rebuild := func(rctx context.Context) error {
		fresh, err := site.NewBuilder(root, cfg, idx, logger)
		if err != nil {
			return err
		}
		_, err = fresh.Build(rctx, opts)
		return err
	}

	var watchDirs []string
	for _, dir := range []string{cfg.Content.Dir, cfg.Build.LayoutsDir, cfg.Build.StaticDir} {
		if dir == "" {
			continue
		}
		abs := filepath.Join(root, dir)
		if info, err := os.Stat(abs); err == nil && info.IsDir() {
			watchDirs = append(watchDirs, abs)
		}
	}

	srv, err := serve.New(cfg.ServeAddr(), serve.Options{
		OutputDir:  filepath.Join(root, cfg.Build.OutputDir),
		WatchDirs:  watchDirs,
		Rebuild:    rebuild,
		LiveReload: cfg.Serve.LiveReload,
		CORS:       cfg.Serve.CORS,
		Logger:     logger,
	})
	if err != nil {
		return err
	}

	fmt.Printf("\nServing %s at http://%s (ctrl-c to stop)\n", cfg.Site.Title, cfg.ServeAddr())
	return srv.ListenAndServe(ctx)
}
