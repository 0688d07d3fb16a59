// Package lint checks parsed posts for structural problems: missing or
// malformed metadata, unrecognized layout identifiers, duplicate permalinks.
// Rules are small and independent; the runner aggregates their findings
// into a report the CLI can gate builds on.
package lint

import (
	"sort"
	"time"

	"platen/internal/post"
)

// Severity classifies a finding.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Finding is one problem in one file.
type Finding struct {
	Rule     string   `json:"rule"`
	Severity Severity `json:"severity"`
	Path     string   `json:"path"`
	Message  string   `json:"message"`
}

// Context carries the site conventions rules check against.
type Context struct {
	// Layouts are the recognized layout identifiers.
	Layouts []string

	// DefaultLayout applies when the front matter names none.
	DefaultLayout string

	// Categories and Authors, when non-empty, close the respective
	// vocabularies: posts naming anything else get flagged.
	Categories []string
	Authors    []string

	// DescriptionMax caps description length in runes; 0 disables.
	DescriptionMax int

	RequireDescription bool
	RequireCategory    bool

	// Now anchors future-dated checks. Zero means time.Now().
	Now time.Time
}

func (c *Context) now() time.Time {
	if c.Now.IsZero() {
		return time.Now()
	}
	return c.Now
}

// Rule checks one post in isolation.
type Rule interface {
	ID() string
	Check(p *post.Post, ctx *Context) []Finding
}

// CorpusRule checks the whole post set at once, for cross-file problems.
type CorpusRule interface {
	ID() string
	CheckCorpus(posts []*post.Post, ctx *Context) []Finding
}

// ParseFailure is a file that never produced a post. The runner reports
// these as front-matter-syntax findings so one broken file cannot hide
// the rest of the report.
type ParseFailure struct {
	RelPath string
	Err     error
}

// Runner applies a rule set to a corpus.
type Runner struct {
	ctx    Context
	rules  []Rule
	corpus []CorpusRule
}

// NewRunner builds a runner with the built-in rules installed.
func NewRunner(ctx Context) *Runner {
	return &Runner{
		ctx: ctx,
		rules: []Rule{
			titleRequired{},
			layoutRecognized{},
			dateRequired{},
			futureDated{},
			descriptionRequired{},
			descriptionLength{},
			categoryRequired{},
			categoryKnown{},
			authorKnown{},
			bodyEmpty{},
		},
		corpus: []CorpusRule{
			duplicatePermalink{},
		},
	}
}

// AddRule appends an extra per-post rule (the schema rule, in practice).
func (r *Runner) AddRule(rule Rule) {
	r.rules = append(r.rules, rule)
}

// Run checks every post and parse failure and returns the sorted report.
func (r *Runner) Run(posts []*post.Post, failures []ParseFailure) *Report {
	start := time.Now()
	report := &Report{Checked: len(posts) + len(failures)}

	for _, f := range failures {
		report.add(Finding{
			Rule:     "front-matter-syntax",
			Severity: SeverityError,
			Path:     f.RelPath,
			Message:  f.Err.Error(),
		})
	}

	for _, p := range posts {
		for _, rule := range r.rules {
			report.add(rule.Check(p, &r.ctx)...)
		}
	}
	for _, rule := range r.corpus {
		report.add(rule.CheckCorpus(posts, &r.ctx)...)
	}

	sort.SliceStable(report.Findings, func(i, j int) bool {
		a, b := report.Findings[i], report.Findings[j]
		if a.Path != b.Path {
			return a.Path < b.Path
		}
		return a.Rule < b.Rule
	})

	report.Duration = time.Since(start)
	return report
}

// Report is the aggregated outcome of a lint run.
type Report struct {
	Findings []Finding     `json:"findings"`
	Checked  int           `json:"checked"`
	Errors   int           `json:"errors"`
	Warnings int           `json:"warnings"`
	Duration time.Duration `json:"duration"`
}

func (r *Report) add(findings ...Finding) {
	for _, f := range findings {
		r.Findings = append(r.Findings, f)
		switch f.Severity {
		case SeverityError:
			r.Errors++
		case SeverityWarning:
			r.Warnings++
		}
	}
}

// Clean reports whether nothing was found at all.
func (r *Report) Clean() bool { return len(r.Findings) == 0 }

// Failed applies the fail_on policy: "error" fails on errors, "warning"
// fails on anything, "never" never fails.
func (r *Report) Failed(failOn string) bool {
	switch failOn {
	case "warning":
		return r.Errors > 0 || r.Warnings > 0
	case "never":
		return false
	default:
		return r.Errors > 0
	}
}
