package cli

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	out := &bytes.Buffer{}
	cfg, exit, err := Parse([]string{
		"-definitions", "assets,more",
		"-definitions", "extra.hcl",
		"-config", "bridge.hcl",
		"-cache-dir", ".cache",
		"-log-level", "DEBUG",
		"-log-format", "text",
		"-tick", "5ms",
		"-watch",
		"scene.hcl",
	}, out)
	require.NoError(t, err)
	require.False(t, exit)

	assert.Equal(t, "scene.hcl", cfg.ScenePath)
	assert.Equal(t, []string{"assets", "more", "extra.hcl"}, cfg.DefinitionPaths)
	assert.Equal(t, "bridge.hcl", cfg.ConfigPath)
	assert.Equal(t, ".cache", cfg.CacheDir)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, 5*time.Millisecond, cfg.TickInterval)
	assert.True(t, cfg.Watch)
}

func TestParse_Defaults(t *testing.T) {
	cfg, exit, err := Parse([]string{"scene.hcl"}, &bytes.Buffer{})
	require.NoError(t, err)
	require.False(t, exit)
	assert.Equal(t, []string{"definitions"}, cfg.DefinitionPaths)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.False(t, cfg.Watch)
}

func TestParse_UsageAndErrors(t *testing.T) {
	testCases := []struct {
		name     string
		args     []string
		wantExit bool
		wantErr  string
	}{
		{name: "help", args: []string{"-h"}, wantExit: true},
		{name: "no scene", args: nil, wantExit: true},
		{name: "unknown flag", args: []string{"-nope", "scene.hcl"}, wantErr: "flag provided but not defined"},
		{name: "two scenes", args: []string{"a.hcl", "b.hcl"}, wantErr: "expected one scene path"},
		{name: "bad format", args: []string{"-log-format", "xml", "scene.hcl"}, wantErr: "LogFormat must be one of"},
		{name: "bad tick", args: []string{"-tick", "0s", "scene.hcl"}, wantErr: "TickInterval"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			out := &bytes.Buffer{}
			cfg, exit, err := Parse(tc.args, out)
			assert.Nil(t, cfg)
			if tc.wantErr == "" {
				require.NoError(t, err)
				assert.Equal(t, tc.wantExit, exit)
				assert.Contains(t, out.String(), "Usage:")
				return
			}
			require.Error(t, err)
			var exitErr *ExitError
			require.ErrorAs(t, err, &exitErr)
			assert.Equal(t, 2, exitErr.Code)
			assert.Contains(t, exitErr.Message, tc.wantErr)
		})
	}
}
