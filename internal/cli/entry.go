package cli

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/diary/internal/command"
	"github.com/roach88/diary/internal/diary"
)

// EntryOptions holds flags shared by the entry subcommands.
type EntryOptions struct {
	*RootOptions

	Pinned  bool
	Content string
	Page    int64
	PerPage int64
	Sort    string
	Search  string
}

// NewEntryCommand creates the entry command and its subcommands.
func NewEntryCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "entry",
		Short: "Run a single request against the store",
		Long: `Run a single request against the store and print its response.

Each invocation opens the store, starts the engine, issues one request,
then shuts the engine down through its queue.

Example:
  diary entry create "Morning walk" --pinned
  diary entry list --sort asc --search walk
  diary entry update 3 --content "Evening walk"
  diary --format json entry get 3`,
	}

	cmd.AddCommand(newEntryCreateCommand(rootOpts))
	cmd.AddCommand(newEntryGetCommand(rootOpts))
	cmd.AddCommand(newEntryListCommand(rootOpts))
	cmd.AddCommand(newEntryUpdateCommand(rootOpts))
	cmd.AddCommand(newEntryDeleteCommand(rootOpts))
	cmd.AddCommand(newEntryDumpCommand(rootOpts))

	return cmd
}

func newEntryCreateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &EntryOptions{RootOptions: rootOpts}
	cmd := &cobra.Command{
		Use:           "create <content...>",
		Short:         "Create an entry",
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			content := strings.Join(args, " ")
			return withRuntime(opts.RootOptions, cmd, func(ctx context.Context, rt *runtime, f *OutputFormatter) error {
				return printResponse(f, rt.service.CreateEntry(ctx, content, opts.Pinned), formatEntry)
			})
		},
	}
	cmd.Flags().BoolVar(&opts.Pinned, "pinned", false, "pin the new entry")
	return cmd
}

func newEntryGetCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "get <id>",
		Short:         "Read one entry",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withRuntime(rootOpts, cmd, func(ctx context.Context, rt *runtime, f *OutputFormatter) error {
				return printResponse(f, rt.service.ReadEntry(ctx, id), formatEntry)
			})
		},
	}
}

func newEntryListCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &EntryOptions{RootOptions: rootOpts}
	cmd := &cobra.Command{
		Use:           "list",
		Short:         "Read a page of entries",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			sort, err := diary.ParseSortOrder(opts.Sort)
			if err != nil {
				return WrapExitError(ExitCommandError, ErrCodeInvalidArgs+": invalid --sort", err)
			}
			q := diary.PageQuery{Sort: sort}
			if cmd.Flags().Changed("page") {
				q.Page = &opts.Page
			}
			if cmd.Flags().Changed("per-page") {
				q.PerPage = &opts.PerPage
			}
			if cmd.Flags().Changed("pinned") {
				q.Pinned = &opts.Pinned
			}
			if cmd.Flags().Changed("search") {
				q.Substring = &opts.Search
			}
			return withRuntime(opts.RootOptions, cmd, func(ctx context.Context, rt *runtime, f *OutputFormatter) error {
				return printResponse(f, rt.service.ReadEntries(ctx, q), formatPage)
			})
		},
	}
	cmd.Flags().Int64Var(&opts.Page, "page", diary.DefaultPage, "page number (1-based)")
	cmd.Flags().Int64Var(&opts.PerPage, "per-page", diary.DefaultPerPage, "entries per page")
	cmd.Flags().StringVar(&opts.Sort, "sort", "desc", "sort by creation time (asc|desc)")
	cmd.Flags().BoolVar(&opts.Pinned, "pinned", false, "only pinned (--pinned) or unpinned (--pinned=false) entries")
	cmd.Flags().StringVarP(&opts.Search, "search", "s", "", "case-insensitive content substring")
	return cmd
}

func newEntryUpdateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &EntryOptions{RootOptions: rootOpts}
	cmd := &cobra.Command{
		Use:           "update <id>",
		Short:         "Update an entry's content or pin state",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			var patch diary.EntryPatch
			if cmd.Flags().Changed("content") {
				patch.Content = &opts.Content
			}
			if cmd.Flags().Changed("pinned") {
				patch.Pinned = &opts.Pinned
			}
			return withRuntime(opts.RootOptions, cmd, func(ctx context.Context, rt *runtime, f *OutputFormatter) error {
				return printResponse(f, rt.service.UpdateEntry(ctx, id, patch), formatEntry)
			})
		},
	}
	cmd.Flags().StringVar(&opts.Content, "content", "", "new content")
	cmd.Flags().BoolVar(&opts.Pinned, "pinned", false, "new pin state")
	return cmd
}

func newEntryDeleteCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "delete <id>",
		Short:         "Delete an entry",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withRuntime(rootOpts, cmd, func(ctx context.Context, rt *runtime, f *OutputFormatter) error {
				return printResponse(f, rt.service.DeleteEntry(ctx, id), func(*command.Empty) string {
					return fmt.Sprintf("✓ Entry %d deleted", id)
				})
			})
		},
	}
}

func newEntryDumpCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "dump",
		Short:         "Write every entry to a timestamped file in the dump directory",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(rootOpts, cmd, func(ctx context.Context, rt *runtime, f *OutputFormatter) error {
				return printResponse(f, rt.service.DumpEntries(ctx), func(*command.Empty) string {
					return "✓ Entries dumped"
				})
			})
		},
	}
}

// withRuntime starts an engine, runs fn, then shuts the engine down through
// its queue. fn's error wins over a shutdown error.
func withRuntime(opts *RootOptions, cmd *cobra.Command, fn func(ctx context.Context, rt *runtime, f *OutputFormatter) error) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}
	logger := newLogger(cfg, opts.Verbose, cmd.ErrOrStderr())

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	rt, err := startRuntime(ctx, cfg, logger)
	if err != nil {
		return err
	}

	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	callErr := fn(ctx, rt, formatter)
	stopErr := rt.stop(ctx)
	if callErr != nil {
		return callErr
	}
	return stopErr
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, WrapExitError(ExitCommandError, ErrCodeInvalidArgs+": invalid entry id", err)
	}
	return id, nil
}

func formatEntry(e *diary.Entry) string {
	var b strings.Builder
	fmt.Fprintf(&b, "#%d", e.ID)
	if e.Pinned {
		b.WriteString(" [pinned]")
	}
	fmt.Fprintf(&b, " %s", e.CreatedAt.UTC().Format(time.RFC3339))
	if e.UpdatedAt != nil {
		fmt.Fprintf(&b, " (updated %s)", e.UpdatedAt.UTC().Format(time.RFC3339))
	}
	fmt.Fprintf(&b, "\n%s", e.Content)
	return b.String()
}

func formatPage(p *diary.Page) string {
	var b strings.Builder
	for i := range p.Entries {
		b.WriteString(formatEntry(&p.Entries[i]))
		b.WriteString("\n\n")
	}
	fmt.Fprintf(&b, "page %d/%d (%d entries)", p.Page, p.TotalPages, p.Total)
	if p.HasNext {
		b.WriteString(", more available")
	}
	return b.String()
}
