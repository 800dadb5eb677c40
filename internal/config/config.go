// Package config holds the uploader's settings and loads them from YAML.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Defaults.
const (
	DefaultCheckpointPath = "/tmp/dedup"
	DefaultAPIBaseURL     = "https://api.cloudflare.com/client/v4"
	DefaultHTTPTimeout    = 60 * time.Second
)

// Environment variables consulted for the API token, in order.
const (
	EnvAPIToken           = "PDA_UPLOADER_API_TOKEN"
	EnvCloudflareAPIToken = "CLOUDFLARE_API_TOKEN"
)

// Config is the full uploader configuration.
type Config struct {
	SourceDir      string        `yaml:"source_dir"`
	CheckpointPath string        `yaml:"checkpoint_path"`
	AccountID      string        `yaml:"account_id"`
	APIToken       string        `yaml:"api_token"`
	APIBaseURL     string        `yaml:"api_base_url"`
	BlueDBID       string        `yaml:"blue_db_id"`
	GreenDBID      string        `yaml:"green_db_id"`
	KVNamespaceID  string        `yaml:"kv_namespace_id"`
	PruneSources   bool          `yaml:"prune_sources"`
	MetricsFile    string        `yaml:"metrics_file"`
	HTTPTimeout    time.Duration `yaml:"http_timeout"`
	Parallelism    int           `yaml:"parallelism"`
	Archive        Archive       `yaml:"archive"`
}

// Archive configures the script archive. An empty Driver disables it.
type Archive struct {
	Driver    string `yaml:"driver"`
	Dir       string `yaml:"dir"`
	Bucket    string `yaml:"bucket"`
	Region    string `yaml:"region"`
	Endpoint  string `yaml:"endpoint"`
	PathStyle bool   `yaml:"path_style"`
	Prefix    string `yaml:"prefix"`
}

// Default returns a Config with every default applied.
func Default() Config {
	return Config{
		CheckpointPath: DefaultCheckpointPath,
		APIBaseURL:     DefaultAPIBaseURL,
		HTTPTimeout:    DefaultHTTPTimeout,
	}
}

// Load reads a YAML config file over the defaults. Unknown fields are
// rejected. An empty path returns Default().
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config file: %w", err)
	}

	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return cfg, nil
}

// ApplyEnv sets APIToken from the environment when the variable is set.
// EnvAPIToken wins over EnvCloudflareAPIToken.
func (c *Config) ApplyEnv(getenv func(string) string) {
	for _, name := range []string{EnvAPIToken, EnvCloudflareAPIToken} {
		if v := getenv(name); v != "" {
			c.APIToken = v
			return
		}
	}
}

// UploadEnabled reports whether database identifiers are configured. When
// false a run is a dry run.
func (c *Config) UploadEnabled() bool {
	return c.BlueDBID != "" || c.GreenDBID != ""
}

// PointerEnabled reports whether the pointer store can be reached.
func (c *Config) PointerEnabled() bool {
	return c.KVNamespaceID != "" && c.AccountID != "" && c.APIToken != ""
}

// ValidationError is one invalid setting.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateMerge checks the settings a read-only merge needs.
func (c *Config) ValidateMerge() []ValidationError {
	var errs []ValidationError
	if c.SourceDir == "" {
		errs = append(errs, ValidationError{Field: "source_dir", Message: "is required"})
	}
	if c.CheckpointPath == "" {
		errs = append(errs, ValidationError{Field: "checkpoint_path", Message: "is required"})
	}
	if c.Parallelism < 0 {
		errs = append(errs, ValidationError{Field: "parallelism", Message: "must not be negative"})
	}
	return errs
}

// Validate checks c for a merge or upload run and returns every problem.
func (c *Config) Validate() []ValidationError {
	errs := c.ValidateMerge()
	add := func(field, msg string) {
		errs = append(errs, ValidationError{Field: field, Message: msg})
	}

	if c.HTTPTimeout <= 0 {
		add("http_timeout", "must be positive")
	}

	switch {
	case c.BlueDBID != "" && c.GreenDBID == "":
		add("green_db_id", "is required when blue_db_id is set")
	case c.GreenDBID != "" && c.BlueDBID == "":
		add("blue_db_id", "is required when green_db_id is set")
	case c.BlueDBID != "" && c.BlueDBID == c.GreenDBID:
		add("green_db_id", "must differ from blue_db_id")
	}

	if c.UploadEnabled() {
		if c.APIToken == "" {
			add("api_token", "is required for upload (set "+EnvAPIToken+")")
		}
		if c.AccountID == "" {
			add("account_id", "is required for upload")
		}
		if c.KVNamespaceID == "" {
			add("kv_namespace_id", "is required for upload")
		}
	}

	errs = append(errs, c.Archive.validate()...)
	return errs
}

func (a *Archive) validate() []ValidationError {
	switch a.Driver {
	case "":
		return nil
	case "fs":
		if a.Dir == "" {
			return []ValidationError{{Field: "archive.dir", Message: "is required for the fs driver"}}
		}
	case "s3":
		if a.Bucket == "" {
			return []ValidationError{{Field: "archive.bucket", Message: "is required for the s3 driver"}}
		}
	default:
		return []ValidationError{{Field: "archive.driver", Message: fmt.Sprintf("unknown driver %q (want fs or s3)", a.Driver)}}
	}
	return nil
}

// Err joins errs into one error, or returns nil.
func Err(errs []ValidationError) error {
	if len(errs) == 0 {
		return nil
	}
	joined := make([]error, len(errs))
	for i, e := range errs {
		joined[i] = e
	}
	return fmt.Errorf("invalid configuration: %w", errors.Join(joined...))
}
