package app_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/specialistvlad/cookbridge/internal/app"
	"github.com/specialistvlad/cookbridge/internal/app/apptest"
	"github.com/specialistvlad/cookbridge/internal/bridge"
	"github.com/specialistvlad/cookbridge/internal/engine/enginetest"
	"github.com/specialistvlad/cookbridge/internal/resultstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const shapesHCL = `
asset "ground" {
  library = "builtin/grid"
  parameter "rows" {
    type    = int
    default = 2
  }
  parameter "cols" {
    type    = int
    default = 2
  }
}

asset "crate" {
  library = "builtin/box"
  parameter "size" {
    type    = float
    default = 1
  }
}
`

const sceneHCL = `
instance "ground-1" {
  asset = "ground"
  parameters = {
    rows = 3
  }
}

instance "crate-1" {
  asset = "crate"
}
`

func sceneFiles() map[string]string {
	return map[string]string{
		"definitions/shapes.hcl": shapesHCL,
		"scene.hcl":              sceneHCL,
	}
}

func TestRun_CooksSceneOnce(t *testing.T) {
	res := apptest.RunApp(t, apptest.Harness{Files: sceneFiles()})
	require.NoError(t, res.Err, res.LogOutput)

	assert.Contains(t, res.LogOutput, "Asset definitions loaded.")
	assert.Contains(t, res.LogOutput, "Scene cooked.")

	instances := res.App.Bridge().Instances()
	require.Len(t, instances, 2)
	for _, inst := range instances {
		require.NotNil(t, inst.Mesh(), inst.ID)
		assert.False(t, inst.Mesh().Empty(), inst.ID)
		assert.False(t, inst.Dirty, inst.ID)
	}
	ground, ok := res.App.Bridge().Instance("ground-1")
	require.True(t, ok)
	assert.Equal(t, 12, ground.Mesh().TriangleCount(), "3 rows of 2 quads")

	assert.Equal(t, 2.0, promtest.ToFloat64(res.App.Metrics().CooksTotal.WithLabelValues("success")))
}

func TestNewApp_Errors(t *testing.T) {
	testCases := []struct {
		name    string
		files   map[string]string
		wantErr string
	}{
		{
			name: "unknown asset in scene",
			files: map[string]string{
				"definitions/shapes.hcl": shapesHCL,
				"scene.hcl":              "instance \"x\" {\n  asset = \"teapot\"\n}\n",
			},
			wantErr: "scene validation failed",
		},
		{
			name: "unknown generator",
			files: map[string]string{
				"definitions/teapot.hcl": "asset \"teapot\" {\n  library = \"builtin/teapot\"\n}\n",
				"scene.hcl":              "",
			},
			wantErr: "definition validation failed",
		},
		{
			name: "broken definitions",
			files: map[string]string{
				"definitions/shapes.hcl": "asset \"ground\" {",
				"scene.hcl":              "",
			},
			wantErr: "failed to parse HCL file",
		},
		{
			name:    "no definitions",
			files:   map[string]string{"scene.hcl": ""},
			wantErr: "no asset definitions found",
		},
		{
			name: "bad settings",
			files: map[string]string{
				"definitions/shapes.hcl": shapesHCL,
				"scene.hcl":              "",
				"bridge.hcl":             "session {\n  transport = \"carrier-pigeon\"\n}\n",
			},
			wantErr: "unknown transport",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			res := apptest.NewTestApp(context.Background(), t, apptest.Harness{Files: tc.files})
			require.Error(t, res.Err)
			assert.Contains(t, res.Err.Error(), tc.wantErr)
		})
	}
}

func TestRun_SessionLost(t *testing.T) {
	conn := enginetest.NewConnector(enginetest.New(nil))
	conn.FailNext(100)

	files := sceneFiles()
	files["bridge.hcl"] = `
session {
  max_attempts    = 2
  initial_backoff = "1ms"
  max_backoff     = "1ms"
}
`
	res := apptest.RunApp(t, apptest.Harness{Files: files, Options: []app.Option{app.WithConnector(conn)}})
	require.Error(t, res.Err)
	assert.ErrorIs(t, res.Err, app.ErrSessionLost)
	assert.ErrorIs(t, res.Err, enginetest.ErrConnectRefused)
	assert.Equal(t, 2, conn.Attempts())
}

func TestRun_CacheDirKeepsResults(t *testing.T) {
	cache := filepath.Join(t.TempDir(), "cache")
	res := apptest.RunApp(t, apptest.Harness{
		Files:     sceneFiles(),
		Configure: func(cfg *app.Config) { cfg.CacheDir = cache },
	})
	require.NoError(t, res.Err, res.LogOutput)
	assert.Contains(t, res.LogOutput, "Result store opened.")

	store, err := resultstore.OpenBadger(resultstore.BadgerConfig{Path: cache})
	require.NoError(t, err)
	defer store.Close()

	ids, err := store.IDs(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"crate-1", "ground-1"}, ids)
}

func TestRun_WatchReloadsDefinitions(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	res := apptest.NewTestApp(ctx, t, apptest.Harness{
		Files:     sceneFiles(),
		Configure: func(cfg *app.Config) { cfg.Watch = true },
	})
	require.NoError(t, res.Err)

	done := make(chan error, 1)
	go func() { done <- res.App.Run(ctx) }()

	require.Eventually(t, func() bool {
		return res.App.Bridge().Stats().Instances == 2 && res.App.Bridge().Idle()
	}, 5*time.Second, time.Millisecond)

	updated := strings.Replace(shapesHCL, "default = 2\n  }\n}", "default = 4\n  }\n}", 1)
	require.NotEqual(t, shapesHCL, updated)
	require.NoError(t, os.WriteFile(filepath.Join(res.Dir, "definitions", "shapes.hcl"), []byte(updated), 0o644))

	require.Eventually(t, func() bool {
		inst, ok := res.App.Bridge().Instance("ground-1")
		return ok && inst.Mesh().TriangleCount() == 24
	}, 5*time.Second, 5*time.Millisecond, "3 rows of 4 quads after reload")
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestRun_WatchSetupFailureStopsRun(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	res := apptest.NewTestApp(ctx, t, apptest.Harness{
		Files:     sceneFiles(),
		Configure: func(cfg *app.Config) { cfg.Watch = true },
	})
	require.NoError(t, res.Err)
	require.NoError(t, os.RemoveAll(filepath.Join(res.Dir, "definitions")))

	err := res.App.Run(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to watch definitions")
	assert.Equal(t, "disconnected", res.App.Bridge().Stats().Session, "the app is closed")

	time.Sleep(20 * time.Millisecond)
	assert.Zero(t, promtest.ToFloat64(res.App.Metrics().CooksTotal.WithLabelValues("success")),
		"no tick loop was started")
}

func TestHandler_HealthAndMetrics(t *testing.T) {
	res := apptest.NewTestApp(context.Background(), t, apptest.Harness{Files: sceneFiles()})
	require.NoError(t, res.Err)
	h := res.App.Handler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	var stats bridge.Stats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, "disconnected", stats.Session)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "cookbridge_instances")
}
