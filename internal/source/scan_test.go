package source

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/pda-uploader/internal/testutil"
)

func touch(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, nil, 0o644))
}

func TestScan_SelectsEligibleFiles(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteBlob(t, dir, "pda_collector_1.blob", nil)
	testutil.WriteBlob(t, dir, "pda_collector_2.blob", nil)
	testutil.WriteBlob(t, dir, "other_1.blob", nil)
	testutil.WriteBlob(t, dir, "pda_collector_3.bin", nil)
	touch(t, filepath.Join(dir, "registry.sqlite"))
	touch(t, filepath.Join(dir, "registry.sqlite-wal"))
	touch(t, filepath.Join(dir, "notes.txt"))
	touch(t, filepath.Join(dir, "dump.sql"))
	touch(t, filepath.Join(dir, "worker#1.sqlite"))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "pda_collector_dir.blob"), 0o755))

	files, err := Scan(dir, time.Now(), nil)
	require.NoError(t, err)

	assert.Equal(t, []File{
		{Path: filepath.Join(dir, "pda_collector_1.blob"), Kind: KindBlob},
		{Path: filepath.Join(dir, "pda_collector_2.blob"), Kind: KindBlob},
		{Path: filepath.Join(dir, "registry.sqlite"), Kind: KindSQLStore},
		{Path: filepath.Join(dir, "worker#1.sqlite"), Kind: KindSQLStore},
	}, files)
}

func TestScan_QuiescenceWindow(t *testing.T) {
	dir := t.TempDir()
	fresh := filepath.Join(dir, "pda_collector_fresh.blob")
	touch(t, fresh)
	old := testutil.WriteBlob(t, dir, "pda_collector_old.blob", nil)

	files, err := Scan(dir, time.Now(), nil)
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, old, files[0].Path)

	// The same fresh file becomes eligible once the window has passed.
	files, err = Scan(dir, time.Now().Add(QuiescenceWindow+time.Second), nil)
	require.NoError(t, err)
	assert.Len(t, files, 2)
}

func TestScan_SQLStoresIgnoreAge(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "a.sqlite3"))
	touch(t, filepath.Join(dir, "b.DB"))

	files, err := Scan(dir, time.Now(), nil)
	require.NoError(t, err)
	require.Len(t, files, 2)
	for _, f := range files {
		assert.Equal(t, KindSQLStore, f.Kind)
	}
}

func TestScan_SkipsInvalidUTF8Names(t *testing.T) {
	dir := t.TempDir()
	bad := filepath.Join(dir, "pda_collector_\xff.blob")
	if err := os.WriteFile(bad, nil, 0o644); err != nil {
		t.Skipf("filesystem rejects non-UTF-8 names: %v", err)
	}
	testutil.Backdate(t, bad, time.Minute)
	good := testutil.WriteBlob(t, dir, "pda_collector_ok.blob", nil)

	files, err := Scan(dir, time.Now(), nil)
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, good, files[0].Path)
}

func TestScan_MissingDir(t *testing.T) {
	_, err := Scan(filepath.Join(t.TempDir(), "missing"), time.Now(), nil)
	assert.Error(t, err)
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "blob", KindBlob.String())
	assert.Equal(t, "sqlstore", KindSQLStore.String())
	assert.Equal(t, "Kind(0)", Kind(0).String())
}
