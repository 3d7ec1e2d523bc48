package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/specialistvlad/cookbridge/internal/ctxlog"
	"github.com/specialistvlad/cookbridge/internal/watch"
	"golang.org/x/sync/errgroup"
)

// errSceneCooked ends the run group once the scene is cooked.
var errSceneCooked = errors.New("scene cooked")

// ErrSessionLost is returned by Run when the engine session could not be
// recovered.
var ErrSessionLost = errors.New("engine session lost")

// Run opens the engine session, places the scene and drives the bridge until
// the scene is cooked, or with Watch set until ctx is cancelled. The App is
// closed when Run returns.
func (a *App) Run(ctx context.Context) (err error) {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	a.ctx = ctx
	a.logger.Debug("App.Run method started.")

	a.healthCheckServer()
	defer func() {
		if cerr := a.closeHealthCheckServer(); cerr != nil && err == nil {
			err = cerr
		}
		if cerr := a.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	if err := a.bridge.Open(ctx); err != nil {
		return fmt.Errorf("%w: %w", ErrSessionLost, err)
	}

	for _, inst := range a.scene {
		if err := a.bridge.OnInstancePlaced(ctx, inst.ID, inst.Asset, inst.Params); err != nil {
			return fmt.Errorf("failed to place scene: %w", err)
		}
	}
	a.logger.Info("🚀 Scene placed, cooking...", "instances", len(a.scene))

	var w *watch.Watcher
	if a.config.Watch {
		if w, err = watch.New(a.library.Paths(), watch.DefaultDebounce, a.definitionsChanged); err != nil {
			return fmt.Errorf("failed to watch definitions: %w", err)
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return a.tickLoop(gctx) })
	if w != nil {
		g.Go(func() error { return w.Run(gctx) })
	}

	err = g.Wait()
	if errors.Is(err, errSceneCooked) {
		s := a.bridge.Stats()
		a.logger.Info("🏁 Scene cooked.", "instances", s.Instances, "failed", s.Failed)
		return nil
	}
	if err != nil {
		return err
	}
	a.logger.Debug("App.Run method finished.")
	return nil
}

// tickLoop drives the bridge's update cycle.
func (a *App) tickLoop(ctx context.Context) error {
	ticker := time.NewTicker(a.config.TickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-a.lost:
			return fmt.Errorf("%w: %w", ErrSessionLost, err)
		case <-ticker.C:
			a.bridge.Tick(ctx)
			if !a.config.Watch && a.bridge.Idle() {
				return errSceneCooked
			}
		}
	}
}

// definitionsChanged reloads the definitions after the watcher saw a change.
func (a *App) definitionsChanged(ctx context.Context, paths []string) {
	logger := ctxlog.FromContext(ctx)
	logger.Info("👀 Asset definitions changed.", "files", paths)
	changed, err := a.bridge.ReloadDefinitions(ctx)
	if err != nil {
		logger.Error("Definition reload failed, keeping previous definitions.", "error", err)
		return
	}
	if len(changed) == 0 {
		logger.Debug("No definition changed.")
	}
}
