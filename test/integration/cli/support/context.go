package support

import (
	"bytes"
	"fmt"
	"net/http/httptest"
	"os"
	"strings"

	"github.com/MeKo-Tech/qrscan/cmd/qrscan/cmd"
	"github.com/MeKo-Tech/qrscan/internal/server"
)

// TestContext holds the state of one scenario.
type TestContext struct {
	// Command execution state
	LastCommand string
	LastOutput  string
	LastStderr  string
	LastError   error

	// Scenario sandbox; commands run with it as working directory.
	TempDir    string
	origDir    string
	origEnv    map[string]*string
	HTTPServer *httptest.Server
	Server     *server.Server

	// HTTP response state
	LastHTTPStatusCode int
	LastHTTPResponse   string
	LastHTTPHeaders    map[string]string
}

// NewTestContext creates a sandbox directory and moves into it. HOME and
// XDG_CONFIG_HOME point at the sandbox so no user configuration leaks in.
func NewTestContext() (*TestContext, error) {
	origDir, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to get working directory: %w", err)
	}
	tempDir, err := os.MkdirTemp("", "qrscan-bdd-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp dir: %w", err)
	}
	if err := os.Chdir(tempDir); err != nil {
		return nil, fmt.Errorf("failed to enter temp dir: %w", err)
	}

	tc := &TestContext{TempDir: tempDir, origDir: origDir, origEnv: map[string]*string{}}
	for _, k := range []string{"HOME", "XDG_CONFIG_HOME"} {
		if err := tc.setEnv(k, tempDir); err != nil {
			return nil, err
		}
	}
	return tc, nil
}

// setEnv sets an environment variable until Cleanup.
func (tc *TestContext) setEnv(key, value string) error {
	if _, saved := tc.origEnv[key]; !saved {
		if old, ok := os.LookupEnv(key); ok {
			tc.origEnv[key] = &old
		} else {
			tc.origEnv[key] = nil
		}
	}
	return os.Setenv(key, value)
}

// RunCommand executes a qrscan command line in-process.
func (tc *TestContext) RunCommand(line string) {
	args := strings.Fields(line)
	if len(args) > 0 && args[0] == "qrscan" {
		args = args[1:]
	}

	root := cmd.NewRootCommand()
	stdout, stderr := new(bytes.Buffer), new(bytes.Buffer)
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.SetArgs(args)

	tc.LastCommand = line
	tc.LastError = root.Execute()
	tc.LastOutput = stdout.String()
	tc.LastStderr = stderr.String()
}

// Cleanup restores the process state and removes the sandbox.
func (tc *TestContext) Cleanup() error {
	if tc.HTTPServer != nil {
		tc.HTTPServer.Close()
		tc.HTTPServer = nil
	}
	if tc.Server != nil {
		_ = tc.Server.Close()
		tc.Server = nil
	}
	for k, v := range tc.origEnv {
		if v == nil {
			_ = os.Unsetenv(k)
		} else {
			_ = os.Setenv(k, *v)
		}
	}
	if err := os.Chdir(tc.origDir); err != nil {
		return err
	}
	return os.RemoveAll(tc.TempDir)
}
