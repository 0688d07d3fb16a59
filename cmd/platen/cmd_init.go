package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"platen/internal/config"
	"platen/internal/post"
)

var initCmd = &cobra.Command{
	Use:   "init [dir]",
	Short: "Scaffold a new platen site",
	Long: `Creates a site skeleton in the target directory (default: the current
one): platen.yaml, a content tree with a sample post, a layouts directory
for template overrides, and a static directory for assets.

An existing platen.yaml is never overwritten.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runInit,
}

var newCmd = &cobra.Command{
	Use:   "new <title>",
	Short: "Create a new draft post",
	Long: `Creates content/posts/YYYY-MM-DD-slug.md with the front matter filled
in and draft: true set. The date is today; the slug derives from the title.

Example:
  platen new "Counting the number of items in a collection" --category databases`,
	Args: cobra.MinimumNArgs(1),
	RunE: runNew,
}

var (
	newCategory    string
	newAuthor      string
	newDescription string
)

func init() {
	newCmd.Flags().StringVar(&newCategory, "category", "", "Category for the new post")
	newCmd.Flags().StringVar(&newAuthor, "author", "", "Author for the new post")
	newCmd.Flags().StringVar(&newDescription, "description", "", "Description for the new post")
}

func runInit(cmd *cobra.Command, args []string) error {
	target := "."
	if len(args) == 1 {
		target = args[0]
	}
	root, err := filepath.Abs(target)
	if err != nil {
		return err
	}

	cfgPath := filepath.Join(root, config.ConfigFileName)
	if _, err := os.Stat(cfgPath); err == nil {
		return fmt.Errorf("%s already has a %s; refusing to overwrite it", root, config.ConfigFileName)
	}

	cfg := config.DefaultConfig()
	if title := siteTitleFromDir(root); title != "" {
		cfg.Site.Title = title
	}
	if err := cfg.Save(cfgPath); err != nil {
		return err
	}

	for _, dir := range []string{
		filepath.Join(root, cfg.Content.Dir, "posts"),
		filepath.Join(root, cfg.Build.LayoutsDir),
		filepath.Join(root, cfg.Build.StaticDir),
	} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}

	// So the empty layouts directory explains itself. Only *.html files
	// in here are picked up as overrides.
	notePath := filepath.Join(root, cfg.Build.LayoutsDir, "README.md")
	if err := os.WriteFile(notePath, []byte(layoutsNote), 0o644); err != nil {
		return err
	}

	now := time.Now()
	samplePath := filepath.Join(root, cfg.Content.Dir, "posts",
		now.Format("2006-01-02")+"-hello-platen.md")
	if err := os.WriteFile(samplePath, []byte(samplePost(now)), 0o644); err != nil {
		return err
	}

	fmt.Printf("Initialized a platen site in %s\n\n", root)
	fmt.Println("Next steps:")
	fmt.Println("  platen build                  compile the site into public/")
	fmt.Println("  platen serve                  preview it with live reload")
	fmt.Println("  platen new \"My first post\"    start writing")
	return nil
}

func runNew(cmd *cobra.Command, args []string) error {
	root, cfg, err := loadSite()
	if err != nil {
		return err
	}

	title := strings.TrimSpace(strings.Join(args, " "))
	if title == "" {
		return errors.New("post title is empty")
	}
	slug := post.Slugify(title)
	if slug == "" {
		return fmt.Errorf("cannot derive a slug from %q", title)
	}

	now := time.Now()
	rel := filepath.Join(cfg.Content.Dir, "posts",
		fmt.Sprintf("%s-%s.md", now.Format("2006-01-02"), slug))
	path := filepath.Join(root, rel)

	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%s already exists", rel)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	var b strings.Builder
	b.WriteString("---\n")
	fmt.Fprintf(&b, "layout: %s\n", cfg.Content.DefaultLayout)
	fmt.Fprintf(&b, "title: %s\n", yamlQuote(title))
	fmt.Fprintf(&b, "date: %s\n", now.Format("2006-01-02 15:04:05 -0700"))
	if newCategory != "" {
		fmt.Fprintf(&b, "category: %s\n", yamlQuote(newCategory))
	}
	if newAuthor != "" {
		fmt.Fprintf(&b, "author: %s\n", yamlQuote(newAuthor))
	}
	if newDescription != "" {
		fmt.Fprintf(&b, "description: %s\n", yamlQuote(newDescription))
	}
	b.WriteString("draft: true\n")
	b.WriteString("---\n\n")

	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return err
	}

	fmt.Printf("Created %s\n", rel)
	fmt.Println("The post is a draft; pass --drafts to build or serve to see it.")
	return nil
}

// siteTitleFromDir guesses a site title from the directory name:
// "my-tech-blog" becomes "My Tech Blog". Unusable names yield "".
func siteTitleFromDir(root string) string {
	base := filepath.Base(root)
	if base == "." || base == string(filepath.Separator) || base == "" {
		return ""
	}

	words := strings.FieldsFunc(base, func(r rune) bool {
		return r == '-' || r == '_' || r == ' '
	})
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

// yamlQuote renders a string as a double-quoted YAML scalar, so titles
// with colons or quotes survive the round trip.
func yamlQuote(s string) string {
	return strconv.Quote(s)
}

const layoutsNote = `# Layouts

Drop *.html files here to override the built-in templates. Overrides are
matched by file name; the defaults are base.html, index.html, list.html,
page.html, and post.html. Any other *.html file becomes a new layout
that posts can name in their front matter.
`

// samplePost is the first post of a freshly scaffolded site. It doubles
// as living documentation for the document format.
func samplePost(now time.Time) string {
	return `---
layout: post
title: Hello, platen
date: ` + now.Format("2006-01-02") + `
category: meta
description: How this site gets built, in one post.
---

This post is a working example of the format platen compiles: a YAML
front matter block followed by markdown prose.

## Front matter

Every post opens with a metadata block between two ` + "`---`" + ` lines. A
non-empty ` + "`title`" + ` and a recognized ` + "`layout`" + ` are required (the linter
enforces both); ` + "`category`" + `, ` + "`author`" + `, ` + "`description`" + `, ` + "`tags`" + `, and
` + "`date`" + ` are optional but put to good use in archives and feeds. Any
other key is kept verbatim for your own templates.

## Code samples

Fenced code blocks come out highlighted:

` + "```go" + `
func main() {
	fmt.Println("hello, platen")
}
` + "```" + `

Delete this post once you have written your own, or keep it as a
reference. Run ` + "`platen serve`" + ` to preview the site with live reload.
`
}
