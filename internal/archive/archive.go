// Package archive keeps a copy of every rendered import script, keyed by its
// checksum, so a published batch can be audited or replayed by hand.
package archive

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/pda-uploader/internal/script"
)

// Driver names a Store implementation.
type Driver string

const (
	DriverFS Driver = "fs"
	DriverS3 Driver = "s3"
)

// Store is a write-once object store.
type Store interface {
	Driver() Driver

	// Exists reports whether key is already stored.
	Exists(ctx context.Context, key string) (bool, error)

	// Put stores body at key.
	Put(ctx context.Context, key string, body []byte) error
}

// Archiver writes scripts to a Store under a key prefix.
type Archiver struct {
	store  Store
	prefix string
	logger *slog.Logger
}

// New creates an Archiver. A nil logger uses slog.Default().
func New(store Store, prefix string, logger *slog.Logger) *Archiver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Archiver{store: store, prefix: prefix, logger: logger}
}

// Key returns the object key for a script checksum.
func (a *Archiver) Key(checksum string) string {
	return a.prefix + checksum + ".sql"
}

// Save stores s unless an object with its key already exists, and returns
// the key. A nil script is ignored.
func (a *Archiver) Save(ctx context.Context, s *script.Script) (string, error) {
	if s == nil {
		return "", nil
	}
	key := a.Key(s.Checksum)

	exists, err := a.store.Exists(ctx, key)
	if err != nil {
		return "", fmt.Errorf("archive %s: %w", key, err)
	}
	if exists {
		a.logger.Debug("script already archived", "key", key, "driver", a.store.Driver())
		return key, nil
	}

	if err := a.store.Put(ctx, key, s.Body); err != nil {
		return "", fmt.Errorf("archive %s: %w", key, err)
	}
	a.logger.Info("script archived", "key", key, "driver", a.store.Driver(), "bytes", len(s.Body))
	return key, nil
}
