package commands

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/scanviz/merge-results/internal/constants"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

type (
	AppConfig   = appConfig
	WatchConfig = watchConfig
)

// Config returns the configuration of the app.
func (a *App) Config() AppConfig {
	return a.config
}

// Gatherer returns the metrics recorded by the app.
func (a *App) Gatherer() prometheus.Gatherer {
	return a.recorder.Gatherer()
}

// NewForTests creates a new App instance for testing purposes.
// Input and output default to fresh temporary locations when conf leaves them empty.
func NewForTests(t *testing.T, conf *AppConfig, args ...string) *App {
	t.Helper()

	if conf == nil {
		conf = &AppConfig{}
	}

	if conf.InputDir == "" {
		conf.InputDir = filepath.Join(t.TempDir(), "results")
		require.NoError(t, os.MkdirAll(conf.InputDir, 0750), "Setup: failed to create input dir")
	}
	if conf.Output == "" {
		conf.Output = filepath.Join(t.TempDir(), constants.DefaultOutputName)
	}

	p := GenerateTestConfig(t, conf)
	argsWithConf := append([]string{"--config", p}, args...)

	a, err := New()
	require.NoError(t, err, "Setup: failed to create app")
	a.cmd.SetArgs(argsWithConf)
	a.cmd.SetOut(&lockedBuffer{})
	a.cmd.SetErr(&lockedBuffer{})
	return a
}

// GenerateTestConfig generates a temporary config file for testing.
func GenerateTestConfig(t *testing.T, origConf *AppConfig) string {
	t.Helper()

	var conf appConfig
	if origConf != nil {
		conf = *origConf
	}

	d, err := yaml.Marshal(conf)
	require.NoError(t, err, "Setup: failed to marshal config for tests")

	confPath := filepath.Join(t.TempDir(), "testconfig.yaml")
	require.NoError(t, os.WriteFile(confPath, d, 0600), "Setup: failed to write config for tests")

	return confPath
}

// SetArgs set some arguments on root command for tests.
func (a *App) SetArgs(args ...string) {
	a.cmd.SetArgs(args)
}

// RunContext executes the command with ctx.
func (a *App) RunContext(ctx context.Context) error {
	return a.cmd.ExecuteContext(ctx)
}

// Stdout returns what the command printed so far.
func (a *App) Stdout() string {
	return a.cmd.OutOrStdout().(*lockedBuffer).String()
}

// lockedBuffer is a bytes.Buffer safe for a watching command writing while the test reads.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
