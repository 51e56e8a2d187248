package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/diary/internal/config"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Path   string            `json:"path"`
	Valid  bool              `json:"valid"`
	Errors []ValidationIssue `json:"errors,omitempty"`
}

// ValidationIssue is one schema violation.
type ValidationIssue struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// NewConfigCommand creates the config command group.
func NewConfigCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect the configuration",
	}
	cmd.AddCommand(NewValidateCommand(rootOpts))
	return cmd
}

// NewValidateCommand creates the config validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate [config-file]",
		Short: "Validate a config file without starting the engine",
		Long: `Load a config file, apply DIARY_* overrides and check the result against
the config schema. Defaults to --config, then the default config location.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			path := rootOpts.ConfigPath
			if len(args) == 1 {
				path = args[0]
			}
			return runValidate(rootOpts, path, cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   opts.Verbose,
	}

	path = config.Resolve(path)
	if path == "" {
		formatter.VerboseLog("No config file found, validating built-in defaults")
	} else {
		formatter.VerboseLog("Validating %s", path)
	}

	cfg, err := config.Load(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return outputValidateError(formatter, ErrCodeNotFound, fmt.Sprintf("config file not found: %s", path), nil)
		}
		return outputValidateError(formatter, ErrCodeConfigLoad, err.Error(), nil)
	}
	config.FromEnv(&cfg)

	if err := config.Validate(cfg); err != nil {
		var ve *config.ValidationError
		if !errors.As(err, &ve) {
			return outputValidateError(formatter, ErrCodeGeneric, err.Error(), nil)
		}
		return outputValidationErrors(formatter, path, issuesFrom(ve))
	}

	// Output success
	return outputValidateSuccess(formatter, path, cfg)
}

func issuesFrom(ve *config.ValidationError) []ValidationIssue {
	var issues []ValidationIssue
	for _, line := range strings.Split(ve.Details, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		issues = append(issues, ValidationIssue{Code: ErrCodeConfigInvalid, Message: line})
	}
	if len(issues) == 0 {
		issues = append(issues, ValidationIssue{Code: ErrCodeConfigInvalid, Message: ve.Error()})
	}
	return issues
}

func displayPath(path string) string {
	if path == "" {
		return "(defaults)"
	}
	return path
}

// outputValidateSuccess outputs successful validation results.
func outputValidateSuccess(formatter *OutputFormatter, path string, cfg config.Config) error {
	if formatter.Format == "json" {
		result := ValidationResult{Path: path, Valid: true}
		return formatter.Success(result)
	}

	fmt.Fprintf(formatter.Writer, "✓ Config valid: %s\n", displayPath(path))
	formatter.VerboseLog("database_url=%s queue_size=%d", cfg.DatabaseURL, cfg.QueueSize)
	return nil
}

// outputValidateError outputs a single error that prevented validation.
func outputValidateError(formatter *OutputFormatter, code, message string, details interface{}) error {
	_ = formatter.Error(code, message, details)
	// Unreadable config is a command-level error (exit code 2)
	return NewExitError(ExitCommandError, fmt.Sprintf("%s: %s", code, message))
}

// outputValidationErrors outputs multiple validation errors.
func outputValidationErrors(formatter *OutputFormatter, path string, errs []ValidationIssue) error {
	if formatter.Format == "json" {
		result := ValidationResult{
			Path:   path,
			Valid:  false,
			Errors: errs,
		}

		response := CLIResponse{
			Status: "error",
			Data:   result,
			Error: &CLIError{
				Code:    errs[0].Code,
				Message: errs[0].Message,
			},
		}

		encoder := json.NewEncoder(formatter.Writer)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(response); err != nil {
			return err
		}

		// Validation failures = exit code 1
		return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))
	}

	// Text format
	fmt.Fprintf(formatter.Writer, "✗ Config invalid: %s\n", displayPath(path))
	fmt.Fprintln(formatter.Writer)

	for _, err := range errs {
		fmt.Fprintf(formatter.Writer, "  %s: %s\n", err.Code, err.Message)
	}

	// Validation failures = exit code 1
	return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))
}
