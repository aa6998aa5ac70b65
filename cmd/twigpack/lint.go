package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"mercator-hq/twigpack/pkg/build"
	"mercator-hq/twigpack/pkg/cli"
	twigerrors "mercator-hq/twigpack/pkg/twig/errors"
)

var lintFlags struct {
	strict bool
}

var lintCmd = &cobra.Command{
	Use:   "lint [pattern...]",
	Short: "Check templates for errors",
	Long: `Parse templates and resolve the templates they reference, without
generating code.

Syntax errors and references that cannot be loaded are errors. Template
names that are left unresolved (for example "ignore missing" includes of
absent files) are warnings.

Examples:
  # Lint the configured entries
  twigpack lint

  # Lint every template below a directory
  twigpack lint 'templates/**/*.twig'

  # Strict mode (warnings as errors)
  twigpack lint --strict

  # JSON output for CI/CD
  twigpack lint --format json`,
	RunE: lintTemplates,
}

func init() {
	rootCmd.AddCommand(lintCmd)

	lintCmd.Flags().BoolVar(&lintFlags.strict, "strict", false, "treat warnings as errors")
}

func lintTemplates(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	files, err := a.entries(args)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no templates found")
	}

	results := make([]LintResult, 0, len(files))
	for _, file := range files {
		results = append(results, lintTemplate(a.ctx, a.compiler, file))
	}

	if err := a.emit(results, func(w io.Writer) error {
		outputText(w, a.styles, results, lintFlags.strict)
		return nil
	}); err != nil {
		return err
	}

	errs, warnings := countIssues(results)
	if errs > 0 || (lintFlags.strict && warnings > 0) {
		return cli.NewCommandError("lint", fmt.Errorf("validation failed"))
	}
	return nil
}

// LintResult represents the lint result for a single template.
type LintResult struct {
	File     string      `json:"file"`
	Valid    bool        `json:"valid"`
	Errors   []LintIssue `json:"errors,omitempty"`
	Warnings []LintIssue `json:"warnings,omitempty"`
}

// LintIssue represents a single lint error or warning.
type LintIssue struct {
	Line     int    `json:"line,omitempty"`
	Column   int    `json:"column,omitempty"`
	Message  string `json:"message"`
	Severity string `json:"severity"`
	Type     string `json:"type,omitempty"`
}

func lintTemplate(ctx context.Context, compiler *build.Compiler, path string) LintResult {
	result := LintResult{
		File:  path,
		Valid: true,
	}

	source, err := os.ReadFile(path)
	if err != nil {
		result.Valid = false
		result.Errors = append(result.Errors, LintIssue{
			Message:  err.Error(),
			Severity: "error",
			Type:     string(twigerrors.ErrorTypeIO),
		})
		return result
	}

	discovered, err := compiler.Discover(ctx, build.NewRecordingHost(path), string(source))
	if err != nil {
		result.Valid = false
		result.Errors = append(result.Errors, issueFromError(err))
		return result
	}

	for _, u := range discovered.Unresolved {
		result.Warnings = append(result.Warnings, LintIssue{
			Line:     u.Line,
			Message:  fmt.Sprintf("template %q could not be resolved", u.Name),
			Severity: "warning",
			Type:     string(twigerrors.ErrorTypeLoader),
		})
	}
	return result
}

func issueFromError(err error) LintIssue {
	var te *twigerrors.Error
	if errors.As(err, &te) {
		return LintIssue{
			Line:     te.Location.Line,
			Column:   te.Location.Column,
			Message:  te.Message,
			Severity: "error",
			Type:     string(te.Type),
		}
	}
	return LintIssue{
		Message:  err.Error(),
		Severity: "error",
	}
}

func countIssues(results []LintResult) (errs, warnings int) {
	for _, r := range results {
		errs += len(r.Errors)
		warnings += len(r.Warnings)
	}
	return errs, warnings
}

func outputText(w io.Writer, styles *cli.Styles, results []LintResult, strict bool) {
	for _, result := range results {
		fmt.Fprintf(w, "Checking %s...\n", result.File)

		if len(result.Errors) == 0 && len(result.Warnings) == 0 {
			fmt.Fprintln(w, styles.Success("✓ Syntax valid"))
			fmt.Fprintln(w, styles.Success("✓ All references resolved"))
		}

		for _, issue := range result.Errors {
			fmt.Fprintln(w, styles.Error("✗ Error: %s%s", issue.Message, issueSuffix(issue)))
		}
		for _, issue := range result.Warnings {
			fmt.Fprintln(w, styles.Warning("⚠  Warning: %s%s", issue.Message, issueSuffix(issue)))
		}

		fmt.Fprintln(w)
	}

	errs, warnings := countIssues(results)
	fmt.Fprintln(w, "Summary:")
	fmt.Fprintf(w, "  %d error(s), %d warning(s)\n", errs, warnings)
	if strict && warnings > 0 {
		fmt.Fprintln(w, "  Strict mode enabled: treating warnings as errors")
	}
}

func issueSuffix(issue LintIssue) string {
	var s string
	if issue.Line > 0 {
		s = fmt.Sprintf(" (line %d", issue.Line)
		if issue.Column > 0 {
			s += fmt.Sprintf(", col %d", issue.Column)
		}
		s += ")"
	}
	if issue.Type != "" {
		s += fmt.Sprintf(" [%s]", issue.Type)
	}
	return s
}
