// Package site orchestrates builds: scan the content tree, parse posts,
// lint, render through layouts, and write the output tree with archives,
// feeds, and a sitemap. The output directory is derived state; sources
// under the content directory are never written to.
package site

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"platen/internal/config"
	"platen/internal/lint"
	"platen/internal/post"
	"platen/internal/render"
	"platen/internal/scan"
	"platen/internal/store"
)

// ErrLintGate is returned when lint findings exceed the configured
// fail_on threshold. Nothing has been written when this comes back.
var ErrLintGate = errors.New("lint findings exceed the configured threshold")

// Builder runs builds for one site.
type Builder struct {
	root string
	cfg  *config.Config
	idx  *store.Store
	log  *zap.Logger

	parser *post.Parser
	md     *render.Markdown
	engine *render.Engine

	// now is swappable for deterministic tests.
	now func() time.Time
}

// NewBuilder wires a builder for the site rooted at root. idx may be nil;
// the build then skips index updates.
func NewBuilder(root string, cfg *config.Config, idx *store.Store, log *zap.Logger) (*Builder, error) {
	if log == nil {
		log = zap.NewNop()
	}

	layoutsDir := ""
	if cfg.Build.LayoutsDir != "" {
		layoutsDir = filepath.Join(root, cfg.Build.LayoutsDir)
	}
	engine, err := render.NewEngine(layoutsDir)
	if err != nil {
		return nil, err
	}

	return &Builder{
		root:   root,
		cfg:    cfg,
		idx:    idx,
		log:    log.Named("build"),
		parser: post.NewParser(cfg.Content.Permalink, cfg.Content.SummaryLength),
		md:     render.NewMarkdown(cfg.Build.ChromaStyle),
		engine: engine,
		now:    time.Now,
	}, nil
}

// Options selects what a build includes.
type Options struct {
	// Drafts includes draft posts.
	Drafts bool

	// Future includes posts dated after now.
	Future bool

	// Incremental re-renders only posts whose content changed since the
	// last scan. Archives and feeds are always rebuilt.
	Incremental bool

	// Force renders everything even when Incremental found no changes.
	Force bool
}

// Report summarizes one build.
type Report struct {
	BuildID   string
	OutputDir string

	// Posts is the number of published posts in the site; Skipped counts
	// drafts and future posts excluded by options; Unchanged counts posts
	// an incremental build did not re-render.
	Posts     int
	Skipped   int
	Unchanged int

	// Rendered counts files written this run (posts, archives, feeds).
	Rendered int

	Changed     scan.Changes
	Lint        *lint.Report
	Incremental bool
	Duration    time.Duration
}

// Build runs the pipeline. On a lint gate failure it returns the report
// (with Lint populated) and ErrLintGate; no output has been written.
func (b *Builder) Build(ctx context.Context, opts Options) (*Report, error) {
	start := b.now()

	contentDir := filepath.Join(b.root, b.cfg.Content.Dir)
	outputDir := filepath.Join(b.root, b.cfg.Build.OutputDir)

	rep := &Report{
		BuildID:     uuid.NewString(),
		OutputDir:   outputDir,
		Incremental: opts.Incremental,
	}

	// Scan and diff against the previous fingerprints.
	cache := scan.LoadCache(b.cfg.ScanCachePath(b.root))
	prev := cache.Snapshot()
	scanner := scan.New(contentDir, cache, scan.Options{
		Parallelism: b.cfg.Build.Parallelism,
		Logger:      b.log,
	})
	scanned, err := scanner.Scan(ctx)
	if err != nil {
		return nil, err
	}

	next := scanned.Index()
	rep.Changed = scan.Diff(prev, next)
	cache.Prune(next)

	posts, failures, err := b.parseAll(ctx, scanned.Files)
	if err != nil {
		return nil, err
	}

	rep.Lint, err = b.lintAll(posts, failures)
	if err != nil {
		return nil, err
	}
	if rep.Lint.Failed(b.cfg.Lint.FailOn) {
		rep.Duration = b.now().Sub(start)
		return rep, ErrLintGate
	}

	// Drop drafts and future posts unless asked for.
	now := b.now()
	published := make([]*post.Post, 0, len(posts))
	for _, p := range posts {
		if p.Meta.Draft && !opts.Drafts {
			rep.Skipped++
			continue
		}
		if p.IsFuture(now) && !opts.Future {
			rep.Skipped++
			continue
		}
		published = append(published, p)
	}
	sortPosts(published)
	rep.Posts = len(published)

	keep := &keepSet{set: make(map[string]bool)}

	rendered, unchanged, err := b.renderPosts(ctx, published, outputDir, opts, changeSet(rep.Changed), keep)
	if err != nil {
		return nil, err
	}
	rep.Rendered += rendered
	rep.Unchanged = unchanged

	archives, err := b.writeArchives(published, outputDir, keep)
	if err != nil {
		return nil, err
	}
	rep.Rendered += archives

	if b.cfg.Build.StaticDir != "" {
		staticDir := filepath.Join(b.root, b.cfg.Build.StaticDir)
		if err := copyStaticTree(staticDir, outputDir, keep.add); err != nil {
			return nil, err
		}
	}

	if b.cfg.Build.CleanOutput {
		if err := pruneOutput(outputDir, keep.snapshot()); err != nil {
			return nil, err
		}
	}

	// Persist fingerprints only once outputs exist, so a gated or failed
	// build cannot mark sources clean without rendering them.
	if err := cache.Save(); err != nil {
		b.log.Warn("scan cache save failed", zap.Error(err))
	}

	if err := b.updateIndex(ctx, posts, rep.Changed, opts); err != nil {
		return nil, err
	}

	rep.Duration = b.now().Sub(start)

	if b.idx != nil {
		err := b.idx.RecordBuild(ctx, &store.Build{
			ID:          rep.BuildID,
			StartedAt:   start,
			Duration:    rep.Duration,
			Posts:       rep.Posts,
			Pages:       rep.Rendered,
			Errors:      rep.Lint.Errors,
			Warnings:    rep.Lint.Warnings,
			Incremental: opts.Incremental,
		})
		if err != nil {
			b.log.Warn("build history write failed", zap.Error(err))
		}
	}

	b.log.Info("build complete",
		zap.String("build_id", rep.BuildID),
		zap.Int("posts", rep.Posts),
		zap.Int("rendered", rep.Rendered),
		zap.Int("skipped", rep.Skipped),
		zap.Duration("duration", rep.Duration),
	)
	return rep, nil
}

// Lint runs the scan, parse, and lint stages without writing anything.
// The scan bypasses the fingerprint cache so a lint run never marks
// sources clean for a later incremental build.
func (b *Builder) Lint(ctx context.Context) (*lint.Report, error) {
	contentDir := filepath.Join(b.root, b.cfg.Content.Dir)

	scanner := scan.New(contentDir, nil, scan.Options{
		Parallelism: b.cfg.Build.Parallelism,
		Logger:      b.log,
	})
	scanned, err := scanner.Scan(ctx)
	if err != nil {
		return nil, err
	}

	posts, failures, err := b.parseAll(ctx, scanned.Files)
	if err != nil {
		return nil, err
	}
	return b.lintAll(posts, failures)
}

// Posts scans and parses the whole content tree without rendering, for
// CLI surfaces that need fresh posts when no index has been built yet.
// Unparseable files are logged and skipped. Posts come back newest first.
func (b *Builder) Posts(ctx context.Context) ([]*post.Post, error) {
	contentDir := filepath.Join(b.root, b.cfg.Content.Dir)

	scanner := scan.New(contentDir, nil, scan.Options{
		Parallelism: b.cfg.Build.Parallelism,
		Logger:      b.log,
	})
	scanned, err := scanner.Scan(ctx)
	if err != nil {
		return nil, err
	}

	posts, failures, err := b.parseAll(ctx, scanned.Files)
	if err != nil {
		return nil, err
	}
	for _, f := range failures {
		b.log.Warn("skipping unparseable post", zap.String("path", f.RelPath), zap.Error(f.Err))
	}

	sortPosts(posts)
	return posts, nil
}

// parseAll parses every scanned file on a bounded errgroup. Parse errors
// become lint failures instead of aborting the build.
func (b *Builder) parseAll(ctx context.Context, files []scan.SourceFile) ([]*post.Post, []lint.ParseFailure, error) {
	var (
		mu       sync.Mutex
		posts    []*post.Post
		failures []lint.ParseFailure
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.cfg.Build.Parallelism)

	for _, f := range files {
		f := f
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			data, err := os.ReadFile(f.Path)
			if err != nil {
				mu.Lock()
				failures = append(failures, lint.ParseFailure{RelPath: f.RelPath, Err: err})
				mu.Unlock()
				return nil
			}

			p, err := b.parser.Parse(data, f.RelPath)
			if err != nil {
				mu.Lock()
				failures = append(failures, lint.ParseFailure{RelPath: f.RelPath, Err: err})
				mu.Unlock()
				return nil
			}

			// Scan already fingerprinted the file.
			p.SourcePath = f.Path
			p.Hash = f.Hash
			p.ModTime = f.ModTime

			mu.Lock()
			posts = append(posts, p)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	sort.Slice(posts, func(i, j int) bool { return posts[i].RelPath < posts[j].RelPath })
	sort.Slice(failures, func(i, j int) bool { return failures[i].RelPath < failures[j].RelPath })
	return posts, failures, nil
}

func (b *Builder) lintAll(posts []*post.Post, failures []lint.ParseFailure) (*lint.Report, error) {
	runner := lint.NewRunner(lint.Context{
		Layouts:            b.cfg.Content.Layouts,
		DefaultLayout:      b.cfg.Content.DefaultLayout,
		Categories:         b.cfg.Content.Categories,
		Authors:            b.cfg.Content.Authors,
		DescriptionMax:     b.cfg.Lint.DescriptionMax,
		RequireDescription: b.cfg.Lint.RequireDescription,
		RequireCategory:    b.cfg.Lint.RequireCategory,
		Now:                b.now(),
	})

	if b.cfg.Lint.SchemaPath != "" {
		rule, err := lint.NewSchemaRule(filepath.Join(b.root, b.cfg.Lint.SchemaPath))
		if err != nil {
			return nil, fmt.Errorf("lint schema: %w", err)
		}
		runner.AddRule(rule)
	}

	return runner.Run(posts, failures), nil
}

// renderPosts renders and writes published posts in parallel. Incremental
// builds skip posts whose source is unchanged and whose output exists.
func (b *Builder) renderPosts(ctx context.Context, published []*post.Post, outputDir string, opts Options, changed map[string]bool, keep *keepSet) (int, int, error) {
	full := !opts.Incremental || opts.Force

	var (
		mu        sync.Mutex
		rendered  int
		unchanged int
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.cfg.Build.Parallelism)

	for _, p := range published {
		p := p
		outPath := outputPath(outputDir, p.Permalink)
		keep.add(outputRel(p.Permalink))

		if !full && !changed[p.RelPath] {
			if _, err := os.Stat(outPath); err == nil {
				unchanged++
				continue
			}
		}

		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			html, err := b.md.Render(p.RawBody)
			if err != nil {
				return fmt.Errorf("%s: %w", p.RelPath, err)
			}
			p.HTML = html
			p.PlainText = render.ExtractText(string(html))

			page, err := b.engine.Execute(p.EffectiveLayout(b.cfg.Content.DefaultLayout), render.PageContext{
				Site:        b.siteContext(),
				Title:       p.Meta.Title,
				Description: p.Summary,
				Permalink:   p.Permalink,
				Post:        p,
				Content:     html,
			})
			if err != nil {
				return fmt.Errorf("%s: %w", p.RelPath, err)
			}

			if err := writeFileAtomic(outPath, page); err != nil {
				return err
			}

			mu.Lock()
			rendered++
			mu.Unlock()
			return nil
		})
	}

	err := g.Wait()
	return rendered, unchanged, err
}

// writeArchives writes the home page, category and author archives, both
// feeds, and the sitemap. These are cheap and always rebuilt.
func (b *Builder) writeArchives(published []*post.Post, outputDir string, keep *keepSet) (int, error) {
	written := 0
	sc := b.siteContext()

	home, err := b.engine.Execute("index", render.PageContext{
		Site:        sc,
		Description: b.cfg.Site.Description,
		Posts:       published,
	})
	if err != nil {
		return written, fmt.Errorf("home page: %w", err)
	}
	if err := writeFileAtomic(filepath.Join(outputDir, "index.html"), home); err != nil {
		return written, err
	}
	keep.add("index.html")
	written++

	var archivePaths []string
	writeGroup := func(prefix, heading string, group []*post.Post) error {
		link := "/" + prefix + "/" + post.Slugify(heading) + "/"
		page, err := b.engine.Execute("list", render.PageContext{
			Site:      sc,
			Title:     heading,
			Heading:   heading,
			Permalink: link,
			Posts:     group,
		})
		if err != nil {
			return fmt.Errorf("archive %s: %w", link, err)
		}
		if err := writeFileAtomic(outputPath(outputDir, link), page); err != nil {
			return err
		}
		keep.add(outputRel(link))
		archivePaths = append(archivePaths, link)
		written++
		return nil
	}

	for _, name := range groupNames(published, func(p *post.Post) string { return p.Meta.Category }) {
		if err := writeGroup("categories", name, groupOf(published, name, func(p *post.Post) string { return p.Meta.Category })); err != nil {
			return written, err
		}
	}
	for _, name := range groupNames(published, func(p *post.Post) string { return p.Meta.Author }) {
		if err := writeGroup("authors", name, groupOf(published, name, func(p *post.Post) string { return p.Meta.Author })); err != nil {
			return written, err
		}
	}

	meta := feedMeta{
		Title:       b.cfg.Site.Title,
		BaseURL:     b.cfg.Site.BaseURL,
		Description: b.cfg.Site.Description,
		Author:      b.cfg.Site.Author,
		Language:    b.cfg.Site.Language,
	}

	for _, f := range []struct {
		name  string
		build func() ([]byte, error)
	}{
		{"feed.xml", func() ([]byte, error) { return buildRSS(meta, published) }},
		{"atom.xml", func() ([]byte, error) { return buildAtom(meta, published) }},
		{"sitemap.xml", func() ([]byte, error) { return buildSitemap(meta, published, archivePaths) }},
	} {
		data, err := f.build()
		if err != nil {
			return written, err
		}
		if err := writeFileAtomic(filepath.Join(outputDir, f.name), data); err != nil {
			return written, err
		}
		keep.add(f.name)
		written++
	}

	return written, nil
}

// updateIndex refreshes the post index: full builds replace it, incremental
// builds touch only changed rows.
func (b *Builder) updateIndex(ctx context.Context, posts []*post.Post, changes scan.Changes, opts Options) error {
	if b.idx == nil {
		return nil
	}

	if !opts.Incremental {
		records := make([]*store.Record, 0, len(posts))
		for _, p := range posts {
			records = append(records, store.FromPost(p))
		}
		return b.idx.Reindex(ctx, records)
	}

	changed := changeSet(changes)
	for _, p := range posts {
		if changed[p.RelPath] {
			if err := b.idx.UpsertPost(ctx, store.FromPost(p)); err != nil {
				return err
			}
		}
	}
	for _, rel := range changes.Removed {
		if err := b.idx.DeleteBySource(ctx, rel); err != nil {
			return err
		}
	}
	return nil
}

func (b *Builder) siteContext() render.SiteContext {
	return render.SiteContext{
		Title:       b.cfg.Site.Title,
		BaseURL:     b.cfg.Site.BaseURL,
		Description: b.cfg.Site.Description,
		Author:      b.cfg.Site.Author,
		Language:    b.cfg.Site.Language,
		BuildTime:   b.now(),
	}
}

// sortPosts orders newest first, undated last, slug as tiebreak.
func sortPosts(posts []*post.Post) {
	sort.SliceStable(posts, func(i, j int) bool {
		a, b := posts[i], posts[j]
		switch {
		case a.Meta.Date.IsZero() != b.Meta.Date.IsZero():
			return !a.Meta.Date.IsZero()
		case !a.Meta.Date.Equal(b.Meta.Date):
			return a.Meta.Date.After(b.Meta.Date)
		default:
			return a.Slug < b.Slug
		}
	})
}

// changeSet flattens added+modified into a lookup set.
func changeSet(ch scan.Changes) map[string]bool {
	set := make(map[string]bool, len(ch.Added)+len(ch.Modified))
	for _, rel := range ch.Added {
		set[rel] = true
	}
	for _, rel := range ch.Modified {
		set[rel] = true
	}
	return set
}

// outputPath maps a permalink to its on-disk index.html.
func outputPath(outputDir, permalink string) string {
	return filepath.Join(outputDir, filepath.FromSlash(strings.Trim(permalink, "/")), "index.html")
}

// outputRel is outputPath relative to the output dir, slash separated.
func outputRel(permalink string) string {
	return path.Join(strings.Trim(permalink, "/"), "index.html")
}

// groupNames returns the sorted distinct non-empty keys of published posts.
func groupNames(posts []*post.Post, key func(*post.Post) string) []string {
	seen := map[string]bool{}
	var names []string
	for _, p := range posts {
		k := key(p)
		if k == "" || seen[k] {
			continue
		}
		seen[k] = true
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// groupOf filters posts with the given key, preserving order.
func groupOf(posts []*post.Post, name string, key func(*post.Post) string) []*post.Post {
	var out []*post.Post
	for _, p := range posts {
		if key(p) == name {
			out = append(out, p)
		}
	}
	return out
}

// keepSet tracks output-relative paths produced by this build.
type keepSet struct {
	mu  sync.Mutex
	set map[string]bool
}

func (k *keepSet) add(rel string) {
	k.mu.Lock()
	k.set[filepath.ToSlash(rel)] = true
	k.mu.Unlock()
}

func (k *keepSet) snapshot() map[string]bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	out := make(map[string]bool, len(k.set))
	for rel := range k.set {
		out[rel] = true
	}
	return out
}
