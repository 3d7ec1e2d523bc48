// Package apptest runs the application against files written to a temporary
// directory.
package apptest

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/specialistvlad/cookbridge/internal/app"
	"github.com/specialistvlad/cookbridge/internal/testutil"
	"github.com/stretchr/testify/require"
)

// HarnessResult holds the outcomes of an app run.
type HarnessResult struct {
	LogOutput string
	Err       error
	App       *app.App
	Dir       string

	logs *testutil.SafeBuffer
}

// Harness describes an app run. Files are keyed by slash-separated path
// relative to the run's temporary directory: definitions go under
// "definitions/", the scene is "scene.hcl" and an optional "bridge.hcl" is
// used as the settings file.
type Harness struct {
	Files map[string]string
	// Configure adjusts the app configuration before the app is built.
	Configure func(cfg *app.Config)
	Options   []app.Option
}

// RunApp builds the app and runs it once to completion using a default
// background context.
func RunApp(t *testing.T, h Harness) *HarnessResult {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return RunAppWithContext(ctx, t, h)
}

// RunAppWithContext is RunApp with a caller-provided context.
func RunAppWithContext(ctx context.Context, t *testing.T, h Harness) *HarnessResult {
	t.Helper()
	res := NewTestApp(ctx, t, h)
	if res.Err == nil {
		res.Err = res.App.Run(ctx)
	}
	res.LogOutput = res.logs.String()
	return res
}

// NewTestApp writes the files and builds the app without running it. The
// app is closed when the test ends.
func NewTestApp(ctx context.Context, t *testing.T, h Harness) *HarnessResult {
	t.Helper()
	dir := testutil.WriteFiles(t, h.Files)
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "definitions"), 0o755))

	cfg := &app.Config{
		ScenePath:       filepath.Join(dir, "scene.hcl"),
		DefinitionPaths: []string{filepath.Join(dir, "definitions")},
		LogLevel:        "debug",
		LogFormat:       "text",
		TickInterval:    time.Millisecond,
	}
	if _, ok := h.Files["bridge.hcl"]; ok {
		cfg.ConfigPath = filepath.Join(dir, "bridge.hcl")
	}
	if h.Configure != nil {
		h.Configure(cfg)
	}

	logBuffer := &testutil.SafeBuffer{}
	t.Cleanup(func() {
		if os.Getenv("COOKBRIDGE_TEST_LOGS") == "true" {
			t.Logf("--- Full Log Output for %s ---\n%s", t.Name(), logBuffer.String())
		}
	})

	a, err := app.NewApp(ctx, logBuffer, cfg, h.Options...)
	if err == nil {
		t.Cleanup(func() { _ = a.Close() })
	}
	return &HarnessResult{LogOutput: logBuffer.String(), Err: err, App: a, Dir: dir, logs: logBuffer}
}
