package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/pda-uploader/internal/config"
	"github.com/roach88/pda-uploader/internal/switchover"
)

// PointerOptions holds flags for the pointer commands.
type PointerOptions struct {
	*RootOptions
	settings settings
}

// NewPointerCommand creates the pointer command group.
func NewPointerCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pointer",
		Short: "Read or set the active database pointer",
		Long: `Read or set ACTIVE_DB in Workers KV. Setting the pointer by hand is an
operator recovery step: readers switch to the named database immediately.`,
	}

	getOpts := &PointerOptions{RootOptions: rootOpts}
	get := &cobra.Command{
		Use:           "get",
		Short:         "Print the active color",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(c *cobra.Command, args []string) error {
			return runPointer(getOpts, c, "")
		},
	}
	getOpts.settings.addCloudflareFlags(get)

	setOpts := &PointerOptions{RootOptions: rootOpts}
	set := &cobra.Command{
		Use:   "set <blue|green>",
		Short: "Set the active color",
		Long: `Write the given color to ACTIVE_DB. An unset or unreadable pointer is
overwritten; this is how a namespace is first initialized.

Example:
  pda-uploader pointer set blue --account-id abc --kv-namespace-id ns`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(c *cobra.Command, args []string) error {
			return runPointer(setOpts, c, args[0])
		},
	}
	setOpts.settings.addCloudflareFlags(set)

	cmd.AddCommand(get, set)
	return cmd
}

// runPointer reads the pointer, and writes target when it is not empty.
func runPointer(opts *PointerOptions, cmd *cobra.Command, target string) error {
	formatter := opts.formatter(cmd)

	cfg, err := opts.settings.resolve(cmd, opts.RootOptions, nil)
	if err != nil {
		return err
	}
	if !cfg.PointerEnabled() {
		err := config.Err([]config.ValidationError{{
			Field:   "kv_namespace_id",
			Message: "account_id, api_token and kv_namespace_id are all required",
		}})
		_ = formatter.Error(ErrCodeConfig, err.Error(), nil)
		return WrapExitError(ExitCommandError, "cannot use pointer", err)
	}

	var color switchover.Color
	if target != "" {
		color, err = switchover.ParseColor(target)
		if err != nil {
			_ = formatter.Error(ErrCodeConfig, err.Error(), nil)
			return WrapExitError(ExitCommandError, "invalid color", err)
		}
	}

	logger := opts.newLogger(cmd.ErrOrStderr())
	store, err := newDeps(cfg, opts.RootOptions, logger).pointerStore()
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to set up pointer store", err)
	}

	ctx := cmd.Context()
	summary := PointerSummary{Namespace: cfg.KVNamespaceID}

	current, err := switchover.ReadPointer(ctx, store, cfg.KVNamespaceID)
	switch {
	case err == nil:
		summary.Active = current
	case switchover.IsConfigError(err) && target != "":
		// An unset or broken pointer is what set repairs.
		logger.Warn("current pointer unusable", "error", err)
	case switchover.IsConfigError(err):
		_ = formatter.Error(ErrCodeConfig, err.Error(), nil)
		return WrapExitError(ExitCommandError, "pointer unusable", err)
	default:
		_ = formatter.Error(ErrCodePointer, err.Error(), nil)
		return WrapExitError(ExitFailure, "failed to read pointer", err)
	}

	if target == "" {
		return formatter.Success(summary)
	}

	if err := switchover.WritePointer(ctx, store, cfg.KVNamespaceID, color); err != nil {
		_ = formatter.Error(ErrCodePointer, err.Error(), nil)
		return WrapExitError(ExitFailure, fmt.Sprintf("failed to set pointer to %s", color), err)
	}
	logger.Info("active pointer set", "from", summary.Active, "to", color)
	summary.Previous = summary.Active
	summary.Active = color
	return formatter.Success(summary)
}
