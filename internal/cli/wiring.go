package cli

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/roach88/pda-uploader/internal/archive"
	"github.com/roach88/pda-uploader/internal/config"
	"github.com/roach88/pda-uploader/internal/d1"
	"github.com/roach88/pda-uploader/internal/kv"
	"github.com/roach88/pda-uploader/internal/merge"
	"github.com/roach88/pda-uploader/internal/metrics"
	"github.com/roach88/pda-uploader/internal/pda"
	"github.com/roach88/pda-uploader/internal/switchover"
)

// deps are the collaborators built from a config.
type deps struct {
	cfg     config.Config
	root    *RootOptions
	logger  *slog.Logger
	metrics *metrics.Recorder
	http    *http.Client
}

func newDeps(cfg config.Config, root *RootOptions, logger *slog.Logger) *deps {
	return &deps{
		cfg:     cfg,
		root:    root,
		logger:  logger,
		metrics: metrics.New(),
		http:    &http.Client{Timeout: cfg.HTTPTimeout},
	}
}

func (d *deps) pointerStore() (kv.Store, error) {
	return kv.NewCloudflare(kv.CloudflareConfig{
		BaseURL:    d.cfg.APIBaseURL,
		AccountID:  d.cfg.AccountID,
		APIToken:   d.cfg.APIToken,
		HTTPClient: d.http,
		Logger:     d.logger,
	})
}

func (d *deps) importer() (*d1.Client, error) {
	return d1.New(d1.Config{
		BaseURL:    d.cfg.APIBaseURL,
		AccountID:  d.cfg.AccountID,
		APIToken:   d.cfg.APIToken,
		HTTPClient: d.http,
		Logger:     d.logger,
		Sleeper:    d.root.Sleeper,
		Observer:   d.metrics,
	})
}

func (d *deps) archiver(ctx context.Context) (switchover.Archiver, error) {
	a := d.cfg.Archive
	if a.Driver == "" {
		return nil, nil
	}
	store, err := archive.Open(ctx, archive.Options{
		Driver: archive.Driver(a.Driver),
		Dir:    a.Dir,
		S3: archive.S3Config{
			Bucket:    a.Bucket,
			Region:    a.Region,
			Endpoint:  a.Endpoint,
			PathStyle: a.PathStyle,
		},
	})
	if err != nil {
		return nil, err
	}
	return archive.New(store, a.Prefix, d.logger), nil
}

// orchestrator builds an Orchestrator for an upload run, or for a
// read-only run when readOnly is set.
func (d *deps) orchestrator(ctx context.Context, readOnly bool) (*switchover.Orchestrator, error) {
	opts := switchover.Options{
		SourceDir:      d.cfg.SourceDir,
		CheckpointPath: d.cfg.CheckpointPath,
		Namespace:      d.cfg.KVNamespaceID,
		Merger:         merge.New(merge.Options{Logger: d.logger, Parallelism: d.cfg.Parallelism}),
		Metrics:        d.metrics,
		Logger:         d.logger,
		IDs:            d.root.IDs,
	}

	if d.cfg.PointerEnabled() {
		store, err := d.pointerStore()
		if err != nil {
			return nil, err
		}
		opts.Pointer = store
	}

	if readOnly {
		return switchover.New(opts)
	}

	opts.PruneSources = d.cfg.PruneSources
	if d.cfg.UploadEnabled() {
		opts.Databases = switchover.Databases{Blue: d.cfg.BlueDBID, Green: d.cfg.GreenDBID}
		client, err := d.importer()
		if err != nil {
			return nil, err
		}
		opts.Importer = client
	}

	archiver, err := d.archiver(ctx)
	if err != nil {
		return nil, err
	}
	opts.Archiver = archiver
	return switchover.New(opts)
}

// errorCode maps a run error to a ResponseError code.
func errorCode(err error) string {
	var ce *switchover.ConfigError
	var de *pda.DecodeError
	var ie *d1.ImportError
	switch {
	case errors.As(err, &ce):
		return ErrCodeConfig
	case errors.As(err, &de):
		return ErrCodeSource
	case errors.As(err, &ie):
		return ErrCodeImport
	default:
		return ErrCodeGeneric
	}
}

// exitCode maps a run error to a process exit code.
func exitCode(err error) int {
	if switchover.IsConfigError(err) {
		return ExitCommandError
	}
	return ExitFailure
}
