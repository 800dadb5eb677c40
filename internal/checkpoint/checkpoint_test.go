package checkpoint

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/pda-uploader/internal/testutil"
)

func TestLoad_MissingFileIsEmpty(t *testing.T) {
	s, err := Load(filepath.Join(t.TempDir(), "dedup"), nil)
	require.NoError(t, err)
	assert.Equal(t, 0, s.Len())
}

func TestLoad_CorruptFileIsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dedup")
	require.NoError(t, os.WriteFile(path, []byte("not a checkpoint"), 0o644))

	s, err := Load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, s.Len())
}

func TestLoad_UnreadablePathErrors(t *testing.T) {
	// A directory cannot be read as a file.
	_, err := Load(t.TempDir(), nil)
	assert.Error(t, err)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dedup")
	s := NewSet(testutil.Addr(2), testutil.Addr(1))

	require.NoError(t, Save(path, s))

	loaded, err := Load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, s.Addresses(), loaded.Addresses())
}

func TestSave_Deterministic(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a")
	b := filepath.Join(dir, "b")

	require.NoError(t, Save(a, NewSet(testutil.Addr(1), testutil.Addr(2), testutil.Addr(3))))
	require.NoError(t, Save(b, NewSet(testutil.Addr(3), testutil.Addr(1), testutil.Addr(2))))

	da, err := os.ReadFile(a)
	require.NoError(t, err)
	db, err := os.ReadFile(b)
	require.NoError(t, err)
	assert.Equal(t, da, db)
}

func TestSet_AddRecords(t *testing.T) {
	s := NewSet(testutil.Addr(1))

	added := s.AddRecords(testutil.Records(1, 2, 3, 3))

	assert.Equal(t, 2, added)
	assert.Equal(t, 3, s.Len())
	assert.True(t, s.Contains(testutil.Addr(3)))
}

func TestSet_CloneIsIndependent(t *testing.T) {
	s := NewSet(testutil.Addr(1))
	c := s.Clone()
	c.Add(testutil.Addr(2))

	assert.Equal(t, 1, s.Len())
	assert.Equal(t, 2, c.Len())
	assert.False(t, s.Contains(testutil.Addr(2)))
}
