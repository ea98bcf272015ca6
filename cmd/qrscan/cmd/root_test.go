package cmd

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/qrscan/internal/config"
	"github.com/MeKo-Tech/qrscan/internal/version"
)

func defaultConfig() *config.Config {
	cfg := config.DefaultConfig()
	return &cfg
}

// isolate keeps config discovery away from the developer's own files.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("HOME", dir)
	t.Setenv("XDG_CONFIG_HOME", dir)
	return dir
}

// executeCommand runs a fresh command tree and returns stdout and stderr.
func executeCommand(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	cmd := NewRootCommand()
	stdout, stderr := new(bytes.Buffer), new(bytes.Buffer)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func TestRootCommandHelp(t *testing.T) {
	isolate(t)
	out, _, err := executeCommand(t, "--help")
	require.NoError(t, err)

	assert.Contains(t, out, "qrscan")
	assert.Contains(t, out, "Available Commands:")
	for _, sub := range []string{"decode", "pdf", "scan", "serve", "config"} {
		assert.Contains(t, out, sub)
	}
}

func TestRootCommandNoArgs(t *testing.T) {
	isolate(t)
	out, _, err := executeCommand(t)
	require.NoError(t, err)
	assert.Contains(t, out, "Usage:")
}

func TestRootCommandVersion(t *testing.T) {
	isolate(t)
	out, _, err := executeCommand(t, "--version")
	require.NoError(t, err)
	assert.Contains(t, out, version.String())
}

func TestRootCommandInvalidFlag(t *testing.T) {
	isolate(t)
	_, stderr, err := executeCommand(t, "--invalid-flag")
	require.Error(t, err)
	assert.Contains(t, stderr, "unknown flag")
}

func TestRootCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	for _, name := range []string{"config", "verbose", "log-level", "format", "output"} {
		assert.NotNil(t, cmd.PersistentFlags().Lookup(name), name)
	}
	assert.Equal(t, "v", cmd.PersistentFlags().Lookup("verbose").Shorthand)
	assert.True(t, cmd.HasSubCommands())
}

func TestRootCommand_InvalidConfig(t *testing.T) {
	isolate(t)

	_, stderr, err := executeCommand(t, "--log-level", "loud", "config", "show")
	require.Error(t, err)
	assert.Contains(t, stderr, "invalid log level")

	_, _, err = executeCommand(t, "--config", "missing.yaml", "config", "show")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config file does not exist")
}

func TestRootCommand_EnvironmentOverride(t *testing.T) {
	isolate(t)
	t.Setenv("QRSCAN_SERVER_PORT", "9393")

	out, _, err := executeCommand(t, "config", "show", "--format", "json")
	require.NoError(t, err)
	assert.Contains(t, out, `"port": 9393`)
}

func TestRootCommand_FreshTrees(t *testing.T) {
	isolate(t)

	out, _, err := executeCommand(t, "--format", "json", "config", "show")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(strings.TrimSpace(out), "{"))

	// A second tree does not inherit the first one's flags.
	out, _, err = executeCommand(t, "config", "show")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "# Configuration file used"))
}

func TestLogLevel(t *testing.T) {
	tests := []struct {
		level   string
		verbose bool
		want    string
	}{
		{level: "debug", want: "DEBUG"},
		{level: "info", want: "INFO"},
		{level: "warn", want: "WARN"},
		{level: "error", want: "ERROR"},
		{level: "error", verbose: true, want: "DEBUG"},
		{level: "", want: "INFO"},
	}
	for _, tt := range tests {
		t.Run(tt.want+"/"+tt.level, func(t *testing.T) {
			cfg := defaultConfig()
			cfg.LogLevel = tt.level
			cfg.Verbose = tt.verbose
			assert.Equal(t, tt.want, logLevel(cfg).String())
		})
	}
}
