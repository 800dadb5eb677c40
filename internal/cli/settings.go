package cli

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/pda-uploader/internal/config"
)

// binding copies one flag's value into a config when the flag was set.
type binding struct {
	flag string
	copy func(dst, src *config.Config)
}

// settings collects command flags into a scratch config and overlays the
// flags the user actually set onto the file and environment config.
//
// Precedence, lowest first: defaults, config file, environment (token
// only), flags, positional source directory.
type settings struct {
	flags    config.Config
	bindings []binding
}

func bind[T any](s *settings, flag string, field func(*config.Config) *T) {
	s.bindings = append(s.bindings, binding{
		flag: flag,
		copy: func(dst, src *config.Config) { *field(dst) = *field(src) },
	})
}

func (s *settings) addMergeFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVar(&s.flags.SourceDir, "source-dir", "", "directory holding collector output files")
	f.StringVar(&s.flags.CheckpointPath, "checkpoint", "", "checkpoint file path (default "+config.DefaultCheckpointPath+")")
	f.IntVar(&s.flags.Parallelism, "parallelism", 0, "concurrent file parses (default GOMAXPROCS)")

	bind(s, "source-dir", func(c *config.Config) *string { return &c.SourceDir })
	bind(s, "checkpoint", func(c *config.Config) *string { return &c.CheckpointPath })
	bind(s, "parallelism", func(c *config.Config) *int { return &c.Parallelism })
}

func (s *settings) addCloudflareFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVar(&s.flags.AccountID, "account-id", "", "Cloudflare account id")
	f.StringVar(&s.flags.APIToken, "api-token", "", "Cloudflare API token (or "+config.EnvAPIToken+")")
	f.StringVar(&s.flags.APIBaseURL, "api-base-url", "", "Cloudflare API root (default "+config.DefaultAPIBaseURL+")")
	f.StringVar(&s.flags.KVNamespaceID, "kv-namespace-id", "", "Workers KV namespace holding the active pointer")
	f.DurationVar(&s.flags.HTTPTimeout, "http-timeout", 0, "per-request timeout (default 60s)")

	bind(s, "account-id", func(c *config.Config) *string { return &c.AccountID })
	bind(s, "api-token", func(c *config.Config) *string { return &c.APIToken })
	bind(s, "api-base-url", func(c *config.Config) *string { return &c.APIBaseURL })
	bind(s, "kv-namespace-id", func(c *config.Config) *string { return &c.KVNamespaceID })
	bind(s, "http-timeout", func(c *config.Config) *time.Duration { return &c.HTTPTimeout })
}

func (s *settings) addUploadFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVar(&s.flags.BlueDBID, "blue-db-id", "", "D1 database id of the blue database")
	f.StringVar(&s.flags.GreenDBID, "green-db-id", "", "D1 database id of the green database")
	f.BoolVar(&s.flags.PruneSources, "prune-sources", false, "delete source files after they are published")
	f.StringVar(&s.flags.MetricsFile, "metrics-file", "", "write run metrics in Prometheus text format to this file")
	f.StringVar(&s.flags.Archive.Driver, "archive-driver", "", "archive rendered scripts (fs|s3)")
	f.StringVar(&s.flags.Archive.Dir, "archive-dir", "", "archive directory for the fs driver")
	f.StringVar(&s.flags.Archive.Bucket, "archive-bucket", "", "archive bucket for the s3 driver")
	f.StringVar(&s.flags.Archive.Region, "archive-region", "", "archive bucket region")
	f.StringVar(&s.flags.Archive.Endpoint, "archive-endpoint", "", "S3-compatible endpoint URL")
	f.BoolVar(&s.flags.Archive.PathStyle, "archive-path-style", false, "use path-style S3 addressing")
	f.StringVar(&s.flags.Archive.Prefix, "archive-prefix", "", "key prefix for archived scripts")

	bind(s, "blue-db-id", func(c *config.Config) *string { return &c.BlueDBID })
	bind(s, "green-db-id", func(c *config.Config) *string { return &c.GreenDBID })
	bind(s, "prune-sources", func(c *config.Config) *bool { return &c.PruneSources })
	bind(s, "metrics-file", func(c *config.Config) *string { return &c.MetricsFile })
	bind(s, "archive-driver", func(c *config.Config) *string { return &c.Archive.Driver })
	bind(s, "archive-dir", func(c *config.Config) *string { return &c.Archive.Dir })
	bind(s, "archive-bucket", func(c *config.Config) *string { return &c.Archive.Bucket })
	bind(s, "archive-region", func(c *config.Config) *string { return &c.Archive.Region })
	bind(s, "archive-endpoint", func(c *config.Config) *string { return &c.Archive.Endpoint })
	bind(s, "archive-path-style", func(c *config.Config) *bool { return &c.Archive.PathStyle })
	bind(s, "archive-prefix", func(c *config.Config) *string { return &c.Archive.Prefix })
}

// resolve builds the effective config for cmd.
func (s *settings) resolve(cmd *cobra.Command, root *RootOptions, args []string) (config.Config, error) {
	cfg, err := config.Load(root.ConfigPath)
	if err != nil {
		return config.Config{}, WrapExitError(ExitCommandError, "failed to load config", err)
	}
	cfg.ApplyEnv(root.getenv())

	for _, b := range s.bindings {
		if cmd.Flags().Changed(b.flag) {
			b.copy(&cfg, &s.flags)
		}
	}
	if len(args) > 0 {
		cfg.SourceDir = args[0]
	}
	return cfg, nil
}
