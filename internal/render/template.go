package render

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"platen/internal/post"
)

// embeddedLayouts are the default templates baked into the binary. A site
// overrides any of them by shipping a file of the same name in its layouts
// directory.
//
//go:embed layouts
var embeddedLayouts embed.FS

// baseLayout is the shell every page layout renders inside of.
const baseLayout = "base.html"

// SiteContext is the site-wide template data, identical on every page.
type SiteContext struct {
	Title       string
	BaseURL     string
	Description string
	Author      string
	Language    string
	BuildTime   time.Time
}

// PageContext is the data handed to a layout execution.
type PageContext struct {
	Site SiteContext

	// Title and Description feed the <head>; empty Title means the site
	// title stands alone.
	Title       string
	Description string
	Permalink   string

	// Post is set on single-post pages, Posts on list pages.
	Post  *post.Post
	Posts []*post.Post

	// Heading labels list pages ("databases", "Posts by mat").
	Heading string

	// Content is the rendered post body.
	Content template.HTML
}

// Engine executes named layouts. Each layout is parsed together with the
// base shell, so layouts only define their "content" block.
type Engine struct {
	templates map[string]*template.Template
}

// NewEngine loads the embedded layouts and applies overrides from
// layoutsDir (ignored when empty or missing). Every *.html file in the
// override dir is picked up, so sites can add layouts beyond the defaults.
func NewEngine(layoutsDir string) (*Engine, error) {
	sources := map[string][]byte{}

	err := fs.WalkDir(embeddedLayouts, "layouts", func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		data, err := embeddedLayouts.ReadFile(path)
		if err != nil {
			return err
		}
		sources[filepath.Base(path)] = data
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("embedded layouts: %w", err)
	}

	if layoutsDir != "" {
		overrides, err := filepath.Glob(filepath.Join(layoutsDir, "*.html"))
		if err != nil {
			return nil, fmt.Errorf("layouts dir: %w", err)
		}
		for _, path := range overrides {
			data, err := os.ReadFile(path)
			if err != nil {
				return nil, fmt.Errorf("layout override %s: %w", path, err)
			}
			sources[filepath.Base(path)] = data
		}
	}

	base, ok := sources[baseLayout]
	if !ok {
		return nil, fmt.Errorf("no %s layout", baseLayout)
	}

	e := &Engine{templates: make(map[string]*template.Template)}
	for name, src := range sources {
		if name == baseLayout {
			continue
		}
		t, err := template.New(baseLayout).Funcs(funcMap()).Parse(string(base))
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", baseLayout, err)
		}
		if _, err := t.New(name).Parse(string(src)); err != nil {
			return nil, fmt.Errorf("parse layout %s: %w", name, err)
		}
		e.templates[strings.TrimSuffix(name, ".html")] = t
	}

	return e, nil
}

// Has reports whether a layout template exists.
func (e *Engine) Has(layout string) bool {
	_, ok := e.templates[layout]
	return ok
}

// Layouts lists known layout names, sorted.
func (e *Engine) Layouts() []string {
	names := make([]string, 0, len(e.templates))
	for name := range e.templates {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Execute renders one page through the named layout.
func (e *Engine) Execute(layout string, data PageContext) ([]byte, error) {
	t, ok := e.templates[layout]
	if !ok {
		return nil, fmt.Errorf("unknown layout %q (have %s)", layout, strings.Join(e.Layouts(), ", "))
	}

	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, baseLayout, data); err != nil {
		return nil, fmt.Errorf("execute layout %q: %w", layout, err)
	}
	return buf.Bytes(), nil
}

// funcMap is the helper set available to every layout.
func funcMap() template.FuncMap {
	return template.FuncMap{
		"dateFormat": func(layout string, t time.Time) string {
			if t.IsZero() {
				return ""
			}
			return t.Format(layout)
		},
		"absURL": func(base, path string) string {
			return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(path, "/")
		},
		"lower":  strings.ToLower,
		"urlize": post.Slugify,
		"pluralize": func(n int, singular, plural string) string {
			if n == 1 {
				return singular
			}
			return plural
		},
		"readingTime": func(d time.Duration) string {
			mins := int(d.Round(time.Minute) / time.Minute)
			if mins < 1 {
				mins = 1
			}
			return fmt.Sprintf("%d min read", mins)
		},
	}
}
