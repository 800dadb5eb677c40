package cli

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/pda-uploader/internal/switchover"
	"github.com/roach88/pda-uploader/internal/testutil"
)

func TestInspect_ReadOnly(t *testing.T) {
	e := newUploadEnv(t)
	testutil.WriteBlob(t, e.src, "pda_collector_0.blob", testutil.Records(1, 2, 2))
	testutil.WriteSQLStore(t, filepath.Join(e.src, "local.sqlite"), testutil.Records(3))

	stdout, _, err := execute(t, e.opts, "inspect", e.src, "--checkpoint", e.checkpoint, "--format", "json")
	require.NoError(t, err)

	resp := decodeRun(t, stdout)
	assert.Equal(t, switchover.ModeInspect, resp.Data.Mode)
	assert.Equal(t, 2, resp.Data.Stats.Files)
	assert.Equal(t, 3, resp.Data.Stats.New)
	assert.Equal(t, 1, resp.Data.Stats.InBatchDuplicates)
	assert.Empty(t, resp.Data.Active)

	assert.NoFileExists(t, e.checkpoint)
	assert.FileExists(t, filepath.Join(e.src, "pda_collector_0.blob"))
}

func TestInspect_ShowsActiveColor(t *testing.T) {
	e := newUploadEnv(t)
	e.api.KV.Set(testNamespace, switchover.PointerKey, "green")
	testutil.WriteBlob(t, e.src, "pda_collector_0.blob", testutil.Records(1))

	stdout, _, err := execute(t, e.opts, "inspect", e.src,
		"--checkpoint", e.checkpoint,
		"--account-id", testAccount,
		"--api-base-url", e.api.URL,
		"--kv-namespace-id", testNamespace,
	)
	require.NoError(t, err)

	assert.Contains(t, stdout, "Run run-1 (inspect)")
	assert.Contains(t, stdout, "active:                green")
	assert.NotContains(t, stdout, "checkpoint size")
	assert.Equal(t, 0, e.api.KV.Puts())
}

func TestInspect_CountsAgainstCheckpoint(t *testing.T) {
	e := newUploadEnv(t)
	testutil.WriteBlob(t, e.src, "pda_collector_0.blob", testutil.Records(1, 2))

	_, _, err := execute(t, e.opts, "upload", e.src, "--checkpoint", e.checkpoint)
	require.NoError(t, err)
	testutil.WriteBlob(t, e.src, "pda_collector_1.blob", testutil.Records(2, 3))

	stdout, _, err := execute(t, e.opts, "inspect", e.src, "--checkpoint", e.checkpoint, "--format", "json")
	require.NoError(t, err)

	resp := decodeRun(t, stdout)
	assert.Equal(t, 1, resp.Data.Stats.New)
	assert.Equal(t, 2, resp.Data.CheckpointSize)
}

func TestInspect_MissingSourceDir(t *testing.T) {
	_, _, err := execute(t, &RootOptions{Getenv: env(nil)}, "inspect")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "source_dir")
}
