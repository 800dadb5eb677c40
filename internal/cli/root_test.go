package cli

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// execute runs the root command with args and returns what it wrote.
func execute(t *testing.T, opts *RootOptions, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	cmd := newRootCommand(opts)
	out, errOut := &bytes.Buffer{}, &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	cmd.SetArgs(args)
	err = cmd.Execute()
	return out.String(), errOut.String(), err
}

// env returns a Getenv backed by vars.
func env(vars map[string]string) func(string) string {
	return func(key string) string { return vars[key] }
}

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "pda-uploader", cmd.Use)
	assert.Contains(t, cmd.Long, "ACTIVE_DB")
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	commands := [][]string{
		{"upload"},
		{"inspect"},
		{"pointer"},
		{"pointer", "get"},
		{"pointer", "set"},
	}

	for _, path := range commands {
		t.Run(path[len(path)-1], func(t *testing.T) {
			subCmd, _, err := cmd.Find(path)
			require.NoError(t, err, "Command %v should exist", path)
			require.NotNil(t, subCmd)
			assert.Equal(t, path[len(path)-1], subCmd.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	verboseFlag := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verboseFlag)
	assert.Equal(t, "v", verboseFlag.Shorthand)
	assert.Equal(t, "false", verboseFlag.DefValue)

	formatFlag := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, formatFlag)
	assert.Equal(t, "text", formatFlag.DefValue)

	configFlag := cmd.PersistentFlags().Lookup("config")
	require.NotNil(t, configFlag)
	assert.Equal(t, "c", configFlag.Shorthand)
	assert.Equal(t, "", configFlag.DefValue)
}

func TestUploadCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	uploadCmd, _, err := cmd.Find([]string{"upload"})
	require.NoError(t, err)

	for _, name := range []string{
		"source-dir", "checkpoint", "parallelism",
		"account-id", "api-token", "api-base-url", "kv-namespace-id", "http-timeout",
		"blue-db-id", "green-db-id", "prune-sources", "metrics-file",
		"archive-driver", "archive-dir", "archive-bucket", "archive-prefix",
	} {
		assert.NotNil(t, uploadCmd.Flags().Lookup(name), "upload should have --%s", name)
	}
}

func TestInspectCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	inspectCmd, _, err := cmd.Find([]string{"inspect"})
	require.NoError(t, err)

	assert.NotNil(t, inspectCmd.Flags().Lookup("checkpoint"))
	assert.NotNil(t, inspectCmd.Flags().Lookup("kv-namespace-id"))
	// inspect never uploads
	assert.Nil(t, inspectCmd.Flags().Lookup("blue-db-id"))
	assert.Nil(t, inspectCmd.Flags().Lookup("prune-sources"))
}

func TestInvalidFormat(t *testing.T) {
	_, _, err := execute(t, &RootOptions{}, "inspect", t.TempDir(), "--format", "xml")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "invalid format")
}

func TestIsValidFormat(t *testing.T) {
	assert.True(t, isValidFormat("text"))
	assert.True(t, isValidFormat("json"))
	assert.False(t, isValidFormat("yaml"))
	assert.False(t, isValidFormat(""))
}
