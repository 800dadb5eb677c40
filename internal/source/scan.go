package source

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	// BlobPrefix and BlobSuffix bound eligible collector blob names.
	BlobPrefix = "pda_collector_"
	BlobSuffix = ".blob"

	// QuiescenceWindow is how long a blob must be unmodified before it is read.
	QuiescenceWindow = 5 * time.Second
)

// SQLStoreExtensions lists the file extensions treated as local SQL stores.
// ".sql" is left out: such files usually hold SQL text, not a SQLite database.
var SQLStoreExtensions = []string{".sqlite", ".sqlite3", ".db"}

// Scan lists eligible source files directly under dir, sorted by path.
//
// Blobs modified within QuiescenceWindow of now are skipped. Entries whose
// names are empty or not valid UTF-8 are skipped with a warning.
func Scan(dir string, now time.Time, logger *slog.Logger) ([]File, error) {
	if logger == nil {
		logger = slog.Default()
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read source dir %s: %w", dir, err)
	}

	var files []File
	for _, entry := range entries {
		name := entry.Name()
		if name == "" || !utf8.ValidString(name) {
			logger.Warn("skipping source entry with unreadable name", "dir", dir, "name", fmt.Sprintf("%q", name))
			continue
		}
		if entry.IsDir() {
			continue
		}

		path := filepath.Join(dir, name)
		switch kind := classify(name); kind {
		case KindBlob:
			info, err := entry.Info()
			if err != nil {
				// Removed between ReadDir and Info; the producer may have
				// rotated it away.
				if os.IsNotExist(err) {
					continue
				}
				return nil, fmt.Errorf("stat %s: %w", path, err)
			}
			if now.Sub(info.ModTime()) <= QuiescenceWindow {
				logger.Debug("skipping blob still within quiescence window", "path", path)
				continue
			}
			files = append(files, File{Path: path, Kind: kind})
		case KindSQLStore:
			files = append(files, File{Path: path, Kind: kind})
		}
	}

	slices.SortFunc(files, func(a, b File) int { return strings.Compare(a.Path, b.Path) })
	return files, nil
}

// classify returns the Kind for a file name, or 0 if the name is not a source.
func classify(name string) Kind {
	if strings.HasPrefix(name, BlobPrefix) && strings.HasSuffix(name, BlobSuffix) {
		return KindBlob
	}
	if slices.Contains(SQLStoreExtensions, strings.ToLower(filepath.Ext(name))) {
		return KindSQLStore
	}
	return 0
}
