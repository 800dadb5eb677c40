package cli

import (
	"github.com/spf13/cobra"

	"github.com/roach88/pda-uploader/internal/config"
)

// InspectOptions holds flags for the inspect command.
type InspectOptions struct {
	*RootOptions
	settings settings
}

// NewInspectCommand creates the inspect command.
func NewInspectCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &InspectOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "inspect [source-dir]",
		Short: "Report what an upload would publish, without writing anything",
		Long: `Run the merge read-only and print file, duplicate and new-record counts.
When a KV namespace and credentials are configured the active color is
shown too. Neither the checkpoint nor any remote state is modified.

Example:
  pda-uploader inspect ./collectors --checkpoint /var/lib/pda/dedup
  pda-uploader inspect --config uploader.yaml --format json`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInspect(opts, args, cmd)
		},
	}

	opts.settings.addMergeFlags(cmd)
	opts.settings.addCloudflareFlags(cmd)

	return cmd
}

func runInspect(opts *InspectOptions, args []string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	cfg, err := opts.settings.resolve(cmd, opts.RootOptions, args)
	if err != nil {
		return err
	}
	if err := config.Err(cfg.ValidateMerge()); err != nil {
		_ = formatter.Error(ErrCodeConfig, err.Error(), nil)
		return WrapExitError(ExitCommandError, "cannot inspect", err)
	}

	logger := opts.newLogger(cmd.ErrOrStderr())
	d := newDeps(cfg, opts.RootOptions, logger)
	orch, err := d.orchestrator(cmd.Context(), true)
	if err != nil {
		_ = formatter.Error(ErrCodeConfig, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to set up inspect", err)
	}

	report, err := orch.Inspect(cmd.Context())
	if err != nil {
		_ = formatter.Error(errorCode(err), err.Error(), nil)
		return WrapExitError(exitCode(err), "inspect failed", err)
	}
	return formatter.Success(RunSummary{Report: report})
}
