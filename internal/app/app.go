package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"

	"github.com/specialistvlad/cookbridge/internal/bridge"
	"github.com/specialistvlad/cookbridge/internal/config"
	"github.com/specialistvlad/cookbridge/internal/ctxlog"
	"github.com/specialistvlad/cookbridge/internal/definition"
	"github.com/specialistvlad/cookbridge/internal/engine"
	"github.com/specialistvlad/cookbridge/internal/engine/inprocess"
	"github.com/specialistvlad/cookbridge/internal/engine/remote"
	"github.com/specialistvlad/cookbridge/internal/geometry"
	"github.com/specialistvlad/cookbridge/internal/metrics"
	"github.com/specialistvlad/cookbridge/internal/resultstore"
)

// App encapsulates the application's dependencies, configuration, and lifecycle.
type App struct {
	ctx        context.Context
	outW       io.Writer
	logger     *slog.Logger
	config     *Config
	settings   *config.Config
	library    *definition.Library
	scene      []config.SceneInstance
	store      resultstore.Store
	metrics    *metrics.Metrics
	bridge     *bridge.Bridge
	httpServer *http.Server

	// lost receives the error of a session that could not be recovered.
	lost chan error

	closeOnce sync.Once
	closeErr  error
}

// Option customizes an App.
type Option func(*options)

type options struct {
	connector engine.Connector
}

// WithConnector replaces the engine connector chosen by the settings file.
func WithConnector(c engine.Connector) Option {
	return func(o *options) { o.connector = c }
}

// NewApp is the constructor for the main application. It loads the settings,
// definitions and scene, and wires the bridge. It does not connect to the
// engine; Run does.
func NewApp(ctx context.Context, outW io.Writer, cfg *Config, opts ...Option) (*App, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	logger := newLogger(cfg.LogLevel, cfg.LogFormat, outW)
	ctx = ctxlog.WithLogger(ctx, logger)
	logger.Debug("Logger configured successfully.")

	a := &App{
		ctx:     ctx,
		outW:    outW,
		logger:  logger,
		config:  cfg,
		metrics: metrics.New(),
		lost:    make(chan error, 1),
	}

	settings, err := config.Load(ctx, cfg.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}
	if cfg.CacheDir != "" {
		settings.Store.Backend = config.BackendBadger
		settings.Store.Path = cfg.CacheDir
	}
	a.settings = settings
	logger.Debug("Settings loaded.", "transport", settings.Session.Transport, "store", settings.Store.Backend)

	if err := a.loadDefinitions(ctx, o.connector == nil); err != nil {
		return nil, err
	}
	if err := a.loadScene(ctx); err != nil {
		return nil, err
	}

	connector := o.connector
	if connector == nil {
		connector = a.newConnector()
	}
	if a.store, err = a.openStore(); err != nil {
		return nil, err
	}

	a.bridge, err = bridge.New(bridge.Options{
		Connector:  connector,
		Session:    settings.Session.ChannelConfig(),
		Library:    a.library,
		Translator: settings.Translator.Options(),
		Store:      a.store,
		Metrics:    a.metrics,
		Listener:   a.listener(),
	})
	if err != nil {
		_ = a.store.Close()
		return nil, err
	}
	return a, nil
}

// Bridge returns the application's bridge. This is primarily for testing.
func (a *App) Bridge() *bridge.Bridge {
	return a.bridge
}

// Metrics returns the application's metrics.
func (a *App) Metrics() *metrics.Metrics {
	return a.metrics
}

func (a *App) newConnector() engine.Connector {
	s := a.settings.Session
	if s.Transport == config.TransportRemote {
		a.logger.Debug("Using remote engine.", "url", s.URL, "namespace", s.Namespace)
		return remote.NewConnector(s.RemoteConfig())
	}
	a.logger.Debug("Using in-process engine.")
	return inprocess.NewConnector()
}

func (a *App) openStore() (resultstore.Store, error) {
	st := a.settings.Store
	if st.Backend != config.BackendBadger {
		return resultstore.NewMemory(), nil
	}
	store, err := resultstore.OpenBadger(resultstore.BadgerConfig{
		Path:       st.Path,
		SyncWrites: st.SyncWrites,
		Logger:     a.logger.With("component", "badger"),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open result store: %w", err)
	}
	a.logger.Info("💾 Result store opened.", "path", st.Path)
	return store, nil
}

// listener logs scene updates and forwards an unrecoverable session loss to
// Run.
func (a *App) listener() bridge.Listener {
	return bridge.ListenerFuncs{
		AssetUpdated: func(id string, mesh *geometry.Mesh) {
			a.logger.Info("🪨 Asset updated.", "instance", id, "triangles", mesh.TriangleCount(), "vertices", len(mesh.Vertices), "materials", len(mesh.Materials))
		},
		CookFailed: func(id, diagnostic string) {
			a.logger.Warn("Asset cook failed.", "instance", id, "diagnostic", diagnostic)
		},
		SessionLost: func(err error) {
			a.logger.Error("Engine session lost.", "error", err)
			select {
			case a.lost <- err:
			default:
			}
		},
	}
}

// Close releases the engine session and the result store. Later calls
// return the first call's result.
func (a *App) Close() error {
	a.closeOnce.Do(func() {
		ctx := context.WithoutCancel(a.ctx)
		logger := ctxlog.FromContext(ctx)
		if err := a.bridge.Close(ctx); err != nil {
			logger.Warn("Engine session did not close cleanly.", "error", err)
		}
		if err := a.store.Close(); err != nil {
			a.closeErr = fmt.Errorf("failed to close result store: %w", err)
			return
		}
		logger.Debug("App closed.")
	})
	return a.closeErr
}
