package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"platen/internal/site"
)

var (
	lintJSON   bool
	lintFailOn string
)

var lintCmd = &cobra.Command{
	Use:   "lint",
	Short: "Check content structure without building",
	Long: `Parses every post and checks its metadata: non-empty title,
recognized layout identifier, well-formed front matter, and the
configured vocabulary and description rules. Nothing is written, and the
incremental-build cache is left alone.

Exit codes: 0 when findings stay below the fail-on threshold, 1 when the
threshold is hit, 2 when the run itself fails.`,
	RunE: runLint,
}

func init() {
	lintCmd.Flags().BoolVar(&lintJSON, "json", false, "Emit the report as JSON")
	lintCmd.Flags().StringVar(&lintFailOn, "fail-on", "", "Override the configured fail_on severity (error, warning, never)")
}

func runLint(cmd *cobra.Command, args []string) error {
	root, cfg, err := loadSite()
	if err != nil {
		return &exitError{code: 2, err: err}
	}

	failOn := cfg.Lint.FailOn
	if lintFailOn != "" {
		failOn = lintFailOn
	}
	switch failOn {
	case "error", "warning", "never":
	default:
		return &exitError{code: 2, err: fmt.Errorf("invalid fail-on severity %q (want error, warning or never)", failOn)}
	}

	builder, err := site.NewBuilder(root, cfg, nil, logger)
	if err != nil {
		return &exitError{code: 2, err: err}
	}

	ctx, cancel := signalContext()
	defer cancel()

	rep, err := builder.Lint(ctx)
	if err != nil {
		return &exitError{code: 2, err: err}
	}

	if lintJSON {
		data, err := rep.JSON()
		if err != nil {
			return &exitError{code: 2, err: err}
		}
		fmt.Println(string(data))
	} else {
		fmt.Print(rep.Render())
	}

	if rep.Failed(failOn) {
		return fmt.Errorf("lint: %d %s, %d %s (fail-on %s)",
			rep.Errors, plural(rep.Errors, "error", "errors"),
			rep.Warnings, plural(rep.Warnings, "warning", "warnings"),
			failOn)
	}
	return nil
}
