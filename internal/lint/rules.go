package lint

import (
	"bytes"
	"fmt"
	"sort"
	"strings"

	"platen/internal/post"
)

// one wraps a single finding; nil-free convenience for rule bodies.
func one(rule string, sev Severity, p *post.Post, msg string) []Finding {
	return []Finding{{Rule: rule, Severity: sev, Path: p.RelPath, Message: msg}}
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

// titleRequired: every post must carry a non-empty title.
type titleRequired struct{}

func (titleRequired) ID() string { return "title-required" }

func (titleRequired) Check(p *post.Post, _ *Context) []Finding {
	if strings.TrimSpace(p.Meta.Title) == "" {
		return one("title-required", SeverityError, p, "front matter has no title")
	}
	return nil
}

// layoutRecognized: the effective layout must be one of the configured
// identifiers, or no template will accept the post.
type layoutRecognized struct{}

func (layoutRecognized) ID() string { return "layout-recognized" }

func (layoutRecognized) Check(p *post.Post, ctx *Context) []Finding {
	layout := p.EffectiveLayout(ctx.DefaultLayout)
	if !contains(ctx.Layouts, layout) {
		return one("layout-recognized", SeverityError, p,
			fmt.Sprintf("layout %q is not recognized (known: %s)", layout, strings.Join(ctx.Layouts, ", ")))
	}
	return nil
}

// dateRequired: undated posts cannot be ordered or archived.
type dateRequired struct{}

func (dateRequired) ID() string { return "date-required" }

func (dateRequired) Check(p *post.Post, _ *Context) []Finding {
	if p.Meta.Date.IsZero() {
		return one("date-required", SeverityWarning, p,
			"no date in front matter or filename")
	}
	return nil
}

// futureDated: future posts are skipped by default builds, which tends to
// surprise.
type futureDated struct{}

func (futureDated) ID() string { return "future-dated" }

func (futureDated) Check(p *post.Post, ctx *Context) []Finding {
	if p.IsFuture(ctx.now()) {
		return one("future-dated", SeverityWarning, p,
			fmt.Sprintf("dated %s, in the future", p.Meta.Date.Format("2006-01-02")))
	}
	return nil
}

type descriptionRequired struct{}

func (descriptionRequired) ID() string { return "description-required" }

func (descriptionRequired) Check(p *post.Post, ctx *Context) []Finding {
	if ctx.RequireDescription && strings.TrimSpace(p.Meta.Description) == "" {
		return one("description-required", SeverityWarning, p, "front matter has no description")
	}
	return nil
}

type descriptionLength struct{}

func (descriptionLength) ID() string { return "description-length" }

func (descriptionLength) Check(p *post.Post, ctx *Context) []Finding {
	if ctx.DescriptionMax <= 0 {
		return nil
	}
	if n := len([]rune(p.Meta.Description)); n > ctx.DescriptionMax {
		return one("description-length", SeverityWarning, p,
			fmt.Sprintf("description is %d runes, max %d", n, ctx.DescriptionMax))
	}
	return nil
}

type categoryRequired struct{}

func (categoryRequired) ID() string { return "category-required" }

func (categoryRequired) Check(p *post.Post, ctx *Context) []Finding {
	if ctx.RequireCategory && p.Meta.Category == "" {
		return one("category-required", SeverityWarning, p, "front matter has no category")
	}
	return nil
}

// categoryKnown: with a configured category list, anything outside it is
// probably a typo.
type categoryKnown struct{}

func (categoryKnown) ID() string { return "category-known" }

func (categoryKnown) Check(p *post.Post, ctx *Context) []Finding {
	if len(ctx.Categories) == 0 || p.Meta.Category == "" {
		return nil
	}
	if !contains(ctx.Categories, p.Meta.Category) {
		return one("category-known", SeverityWarning, p,
			fmt.Sprintf("category %q is not in the configured list (%s)",
				p.Meta.Category, strings.Join(ctx.Categories, ", ")))
	}
	return nil
}

type authorKnown struct{}

func (authorKnown) ID() string { return "author-known" }

func (authorKnown) Check(p *post.Post, ctx *Context) []Finding {
	if len(ctx.Authors) == 0 || p.Meta.Author == "" {
		return nil
	}
	if !contains(ctx.Authors, p.Meta.Author) {
		return one("author-known", SeverityWarning, p,
			fmt.Sprintf("author %q is not in the configured list (%s)",
				p.Meta.Author, strings.Join(ctx.Authors, ", ")))
	}
	return nil
}

type bodyEmpty struct{}

func (bodyEmpty) ID() string { return "body-empty" }

func (bodyEmpty) Check(p *post.Post, _ *Context) []Finding {
	if len(bytes.TrimSpace(p.RawBody)) == 0 {
		return one("body-empty", SeverityWarning, p, "post body is empty")
	}
	return nil
}

// duplicatePermalink: two posts rendering to the same output path would
// silently overwrite each other.
type duplicatePermalink struct{}

func (duplicatePermalink) ID() string { return "duplicate-slug" }

func (duplicatePermalink) CheckCorpus(posts []*post.Post, _ *Context) []Finding {
	seen := map[string][]*post.Post{}
	for _, p := range posts {
		seen[p.Permalink] = append(seen[p.Permalink], p)
	}

	var findings []Finding
	for link, group := range seen {
		if len(group) < 2 {
			continue
		}
		sort.Slice(group, func(i, j int) bool { return group[i].RelPath < group[j].RelPath })
		for _, p := range group[1:] {
			findings = append(findings, Finding{
				Rule:     "duplicate-slug",
				Severity: SeverityError,
				Path:     p.RelPath,
				Message:  fmt.Sprintf("permalink %s already used by %s", link, group[0].RelPath),
			})
		}
	}
	return findings
}
