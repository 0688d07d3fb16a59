// Package config loads and validates platen site configuration.
// A site is a directory containing platen.yaml; all paths in the config are
// relative to that directory. Missing file means defaults, so `platen build`
// works in a bare content tree.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// ConfigFileName is the site marker file. FindSiteRoot walks up looking for it.
const ConfigFileName = "platen.yaml"

// StateDirName holds derived tool state (scan cache, index database).
const StateDirName = ".platen"

// Config holds all platen site configuration.
type Config struct {
	// Site-wide metadata rendered into layouts and feeds
	Site SiteConfig `yaml:"site"`

	// Content conventions (where posts live, which layouts exist)
	Content ContentConfig `yaml:"content"`

	// Build pipeline settings
	Build BuildConfig `yaml:"build"`

	// Preview server settings
	Serve ServeConfig `yaml:"serve"`

	// Content linting settings
	Lint LintConfig `yaml:"lint"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`

	// MinVersion is an optional semver constraint the running platen binary
	// must satisfy (e.g. ">= 0.3.0"). Guards sites against stale installs.
	MinVersion string `yaml:"min_version,omitempty"`
}

// SiteConfig describes the site itself.
type SiteConfig struct {
	Title       string `yaml:"title" validate:"required"`
	BaseURL     string `yaml:"base_url" validate:"omitempty,url"`
	Description string `yaml:"description"`
	Author      string `yaml:"author"`
	Language    string `yaml:"language"`
}

// ContentConfig describes where content lives and what metadata is legal.
type ContentConfig struct {
	// Dir is the content root, relative to the site root.
	Dir string `yaml:"dir" validate:"required"`

	// Layouts lists the recognized layout identifiers. A post whose layout is
	// not in this list fails the layout-recognized lint rule.
	Layouts []string `yaml:"layouts" validate:"min=1"`

	// DefaultLayout is applied when a post omits layout entirely.
	DefaultLayout string `yaml:"default_layout" validate:"required"`

	// Categories restricts the category vocabulary when non-empty.
	Categories []string `yaml:"categories,omitempty"`

	// Authors restricts the author vocabulary when non-empty.
	Authors []string `yaml:"authors,omitempty"`

	// SummaryLength caps auto-generated summaries, in runes.
	SummaryLength int `yaml:"summary_length" validate:"gt=0"`

	// Permalink is the output path pattern. Placeholders: :year :month :day
	// :slug :category. Must contain :slug.
	Permalink string `yaml:"permalink" validate:"required"`
}

// BuildConfig configures the build pipeline.
type BuildConfig struct {
	OutputDir   string `yaml:"output_dir" validate:"required"`
	StaticDir   string `yaml:"static_dir"`
	LayoutsDir  string `yaml:"layouts_dir"`
	Drafts      bool   `yaml:"drafts"`
	Future      bool   `yaml:"future"`
	Parallelism int    `yaml:"parallelism" validate:"gte=1,lte=64"`
	CleanOutput bool   `yaml:"clean_output"`

	// ChromaStyle names the syntax highlighting style for fenced code blocks.
	ChromaStyle string `yaml:"chroma_style"`
}

// ServeConfig configures the preview server.
type ServeConfig struct {
	Host       string `yaml:"host"`
	Port       int    `yaml:"port" validate:"gte=1,lte=65535"`
	LiveReload bool   `yaml:"live_reload"`
	CORS       bool   `yaml:"cors"`
}

// LintConfig configures the content linter.
type LintConfig struct {
	// FailOn is the severity that fails a lint run or gates a build:
	// "error", "warning", or "never".
	FailOn string `yaml:"fail_on" validate:"oneof=error warning never"`

	DescriptionMax     int  `yaml:"description_max" validate:"gte=0"`
	RequireDescription bool `yaml:"require_description"`
	RequireCategory    bool `yaml:"require_category"`

	// SchemaPath optionally points at a JSON Schema that the full front
	// matter of every post must validate against.
	SchemaPath string `yaml:"schema_path,omitempty"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level  string `yaml:"level" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" validate:"oneof=console json"`
	File   string `yaml:"file,omitempty"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Site: SiteConfig{
			Title:    "A platen site",
			BaseURL:  "http://localhost:8910",
			Language: "en",
		},

		Content: ContentConfig{
			Dir:           "content",
			Layouts:       []string{"post", "page"},
			DefaultLayout: "post",
			SummaryLength: 280,
			Permalink:     "/:year/:month/:slug/",
		},

		Build: BuildConfig{
			OutputDir:   "public",
			StaticDir:   "static",
			LayoutsDir:  "layouts",
			Drafts:      false,
			Future:      false,
			Parallelism: 8,
			CleanOutput: false,
			ChromaStyle: "github",
		},

		Serve: ServeConfig{
			Host:       "127.0.0.1",
			Port:       8910,
			LiveReload: true,
			CORS:       false,
		},

		Lint: LintConfig{
			FailOn:             "error",
			DescriptionMax:     320,
			RequireDescription: false,
			RequireCategory:    false,
		},

		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load loads configuration from a YAML file, layering it over defaults.
// A missing file yields the defaults; a malformed file is an error.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// Save writes the configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}

	return nil
}

// applyEnvOverrides applies PLATEN_* environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("PLATEN_BASE_URL"); v != "" {
		c.Site.BaseURL = v
	}
	if v := os.Getenv("PLATEN_OUTPUT_DIR"); v != "" {
		c.Build.OutputDir = v
	}
	if v := os.Getenv("PLATEN_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Serve.Port = port
		}
	}
	if v := os.Getenv("PLATEN_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
}

// Validate checks the configuration for internal consistency.
// version is the running binary's version, checked against MinVersion.
func (c *Config) Validate(version string) error {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	if !containsString(c.Content.Layouts, c.Content.DefaultLayout) {
		return fmt.Errorf("default_layout %q is not in content.layouts %v", c.Content.DefaultLayout, c.Content.Layouts)
	}

	if !permalinkHasSlug(c.Content.Permalink) {
		return fmt.Errorf("permalink pattern %q must contain :slug", c.Content.Permalink)
	}

	if c.MinVersion != "" {
		if err := c.checkMinVersion(version); err != nil {
			return err
		}
	}

	return nil
}

// checkMinVersion verifies the running binary satisfies min_version.
// Development builds ("dev") always pass so local source checkouts work.
func (c *Config) checkMinVersion(version string) error {
	constraint, err := semver.NewConstraint(c.MinVersion)
	if err != nil {
		return fmt.Errorf("invalid min_version constraint %q: %w", c.MinVersion, err)
	}

	if version == "" || version == "dev" {
		return nil
	}

	current, err := semver.NewVersion(version)
	if err != nil {
		return fmt.Errorf("cannot parse binary version %q: %w", version, err)
	}

	if !constraint.Check(current) {
		return fmt.Errorf("this site requires platen %s, running %s", c.MinVersion, version)
	}

	return nil
}

// StateDir returns the tool state directory under the site root.
func (c *Config) StateDir(root string) string {
	return filepath.Join(root, StateDirName)
}

// IndexPath returns the SQLite index path under the site root.
func (c *Config) IndexPath(root string) string {
	return filepath.Join(root, StateDirName, "index.db")
}

// ScanCachePath returns the scan cache path under the site root.
func (c *Config) ScanCachePath(root string) string {
	return filepath.Join(root, StateDirName, "scan-cache.json")
}

// ServeAddr returns the host:port address for the preview server.
func (c *Config) ServeAddr() string {
	return fmt.Sprintf("%s:%d", c.Serve.Host, c.Serve.Port)
}

// FindSiteRoot walks up from the working directory looking for platen.yaml.
func FindSiteRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, ConfigFileName)); err == nil {
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return "", fmt.Errorf("no %s found in this directory or any parent", ConfigFileName)
}

func containsString(list []string, want string) bool {
	for _, s := range list {
		if s == want {
			return true
		}
	}
	return false
}

func permalinkHasSlug(pattern string) bool {
	return strings.Contains(pattern, ":slug")
}

// DefaultTimeout bounds ad-hoc operations (index queries, shutdowns) that
// are not governed by a caller context.
const DefaultTimeout = 30 * time.Second
