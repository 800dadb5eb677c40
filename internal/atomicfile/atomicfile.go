// Package atomicfile replaces files so readers see either the old or the new
// contents, never a partial write.
package atomicfile

import (
	"fmt"
	"os"
	"path/filepath"
)

// rename is swapped in tests to simulate rename failures.
var rename = os.Rename

// Write replaces path with data.
//
// data is written to a temporary file in the destination directory, synced
// and closed, then renamed over path. If the rename fails the destination is
// removed and the rename retried once; a second failure is returned with the
// destination path.
func Write(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file for %s: %w", path, err)
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write temp file for %s: %w", path, err)
	}
	if err := tmp.Chmod(perm); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("chmod temp file for %s: %w", path, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync temp file for %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file for %s: %w", path, err)
	}

	if err := rename(tmpName, path); err != nil {
		if rmErr := os.Remove(path); rmErr != nil && !os.IsNotExist(rmErr) {
			return fmt.Errorf("replace %s: %w (remove: %v)", path, err, rmErr)
		}
		if err := rename(tmpName, path); err != nil {
			return fmt.Errorf("replace %s: %w", path, err)
		}
	}
	committed = true
	return nil
}
