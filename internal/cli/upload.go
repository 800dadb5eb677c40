package cli

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/pda-uploader/internal/config"
)

// UploadOptions holds flags for the upload command.
type UploadOptions struct {
	*RootOptions
	settings settings
}

// NewUploadCommand creates the upload command.
func NewUploadCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &UploadOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "upload [source-dir]",
		Short: "Merge new records and publish them to the blue/green databases",
		Long: `Merge every collector file in the source directory against the
checkpoint, upload the new records to the inactive database, flip the
ACTIVE_DB pointer, upload to the other database, then save the checkpoint.

Without --blue-db-id and --green-db-id the run is a dry run: it merges and
extends the checkpoint without any network traffic.

Example:
  pda-uploader upload ./collectors --account-id abc --kv-namespace-id ns \
    --blue-db-id 1111 --green-db-id 2222
  pda-uploader upload --config uploader.yaml --prune-sources`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUpload(opts, args, cmd)
		},
	}

	opts.settings.addMergeFlags(cmd)
	opts.settings.addCloudflareFlags(cmd)
	opts.settings.addUploadFlags(cmd)

	return cmd
}

func runUpload(opts *UploadOptions, args []string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	cfg, err := opts.settings.resolve(cmd, opts.RootOptions, args)
	if err != nil {
		return err
	}
	if err := config.Err(cfg.Validate()); err != nil {
		_ = formatter.Error(ErrCodeConfig, err.Error(), nil)
		return WrapExitError(ExitCommandError, "cannot upload", err)
	}

	logger := opts.newLogger(cmd.ErrOrStderr())

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	d := newDeps(cfg, opts.RootOptions, logger)
	orch, err := d.orchestrator(ctx, false)
	if err != nil {
		_ = formatter.Error(ErrCodeConfig, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to set up upload", err)
	}

	report, runErr := orch.Run(ctx)

	if cfg.MetricsFile != "" {
		if err := d.metrics.WriteFile(cfg.MetricsFile); err != nil {
			logger.Error("failed to write metrics", "path", cfg.MetricsFile, "error", err)
		} else {
			formatter.Note("metrics written to %s", cfg.MetricsFile)
		}
	}

	if runErr != nil {
		_ = formatter.Error(errorCode(runErr), runErr.Error(), RunSummary{Report: report})
		return WrapExitError(exitCode(runErr), "upload failed", runErr)
	}
	return formatter.Success(RunSummary{Report: report})
}
