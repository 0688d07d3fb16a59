package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"platen/internal/config"
	"platen/internal/logging"
	"platen/internal/store"
)

var (
	// Global flags
	verbose bool
	siteDir string

	// Logger
	logger = zap.NewNop()
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "platen",
	Short: "platen - a front-matter blog compiler and content linter",
	Long: `platen compiles a directory of markdown posts with YAML front matter
into a static HTML site: parse front matter, apply a layout, emit HTML.

A site is a directory with a platen.yaml, a content/ tree of posts,
optional layouts/ overriding the built-in templates, and optional
static/ assets copied through verbatim. The output lands in public/.

Posts are linted before anything is written: every post needs a
non-empty title, a recognized layout identifier, and well-formed
metadata. Source files are never modified; everything the tool derives
(output, scan cache, post index) is disposable and rebuildable.

Start with:
  platen init my-blog
  cd my-blog && platen serve`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// A bootstrap logger from flags and env; loadSite swaps in one
		// built from the site's logging config once that is known.
		lg, err := logging.New(logging.Options{
			Level:   os.Getenv("PLATEN_LOG_LEVEL"),
			Verbose: verbose,
		})
		if err != nil {
			return fmt.Errorf("initialize logger: %w", err)
		}
		logger = lg
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	// Config keys are snake_case; accept that spelling on flags too, so
	// --fail_on and --fail-on are the same flag.
	rootCmd.SetGlobalNormalizationFunc(func(f *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	// Global flags
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVarP(&siteDir, "site", "s", "", "Site directory (default: walk up to the nearest platen.yaml)")

	// Add commands to root
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(newCmd)
	rootCmd.AddCommand(buildCmd)
	rootCmd.AddCommand(lintCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(browseCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitCode(err))
	}
}

// exitError carries a specific process exit code out of a RunE handler.
// Plain errors exit 1.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func exitCode(err error) int {
	var xe *exitError
	if errors.As(err, &xe) {
		return xe.code
	}
	return 1
}

// loadSite locates the site root, loads and validates its configuration,
// and rebuilds the logger from the config's logging section. The --site
// flag short-circuits the marker walk, which lets bare content trees
// (no platen.yaml yet) run on defaults.
func loadSite() (string, *config.Config, error) {
	root := siteDir
	if root == "" {
		var err error
		root, err = config.FindSiteRoot()
		if err != nil {
			return "", nil, err
		}
	} else {
		abs, err := filepath.Abs(root)
		if err != nil {
			return "", nil, fmt.Errorf("resolve --site: %w", err)
		}
		root = abs
	}

	cfg, err := config.Load(filepath.Join(root, config.ConfigFileName))
	if err != nil {
		return "", nil, err
	}
	if err := cfg.Validate(version); err != nil {
		return "", nil, err
	}

	logFile := cfg.Logging.File
	if logFile != "" && !filepath.IsAbs(logFile) {
		logFile = filepath.Join(root, logFile)
	}
	lg, err := logging.New(logging.Options{
		Level:   cfg.Logging.Level,
		Format:  cfg.Logging.Format,
		File:    logFile,
		Verbose: verbose,
	})
	if err != nil {
		return "", nil, err
	}
	logger = lg

	return root, cfg, nil
}

// openIndex opens the site's post index, creating it on first use.
func openIndex(root string, cfg *config.Config) (*store.Store, error) {
	return store.Open(cfg.IndexPath(root), logger)
}

// hasIndex reports whether a post index already exists on disk. Commands
// that can work from a fresh parse check this instead of creating an
// empty database as a side effect.
func hasIndex(root string, cfg *config.Config) bool {
	_, err := os.Stat(cfg.IndexPath(root))
	return err == nil
}

// signalContext is canceled by SIGINT or SIGTERM, so builds stop cleanly
// and the preview server drains connections on ctrl-c.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}
