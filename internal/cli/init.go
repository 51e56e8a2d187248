package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/diary/internal/config"
)

// NewInitCommand creates the init command.
func NewInitCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Write a default config file",
		Long: `Write the default configuration as YAML to --config, or to the default
config location. An existing file is never overwritten.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit(rootOpts, cmd)
		},
	}
}

func runInit(opts *RootOptions, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	path := opts.ConfigPath
	if path == "" {
		path = config.DefaultPath()
	}
	formatter.VerboseLog("Writing default config to %s", path)

	if err := config.WriteDefault(path); err != nil {
		msg := err.Error()
		if errors.Is(err, os.ErrExist) {
			msg = fmt.Sprintf("config already exists: %s", path)
		}
		_ = formatter.Error(ErrCodeWriteFailed, msg, nil)
		return WrapExitError(ExitCommandError, ErrCodeWriteFailed+": failed to write config", err)
	}

	if formatter.Format == "json" {
		return formatter.Success(map[string]string{"path": path})
	}
	fmt.Fprintf(formatter.Writer, "✓ Wrote %s\n", path)
	return nil
}
