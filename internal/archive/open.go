package archive

import (
	"context"
	"fmt"
)

// Options selects and configures a Store.
type Options struct {
	Driver Driver

	// Dir is the root directory for DriverFS.
	Dir string

	// S3 configures DriverS3.
	S3 S3Config
}

// Open creates the Store named by opts.Driver.
func Open(ctx context.Context, opts Options) (Store, error) {
	switch opts.Driver {
	case DriverFS:
		return NewFS(opts.Dir)
	case DriverS3:
		return NewS3(ctx, opts.S3)
	default:
		return nil, fmt.Errorf("archive: unknown driver %q", opts.Driver)
	}
}
