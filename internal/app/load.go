package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/specialistvlad/cookbridge/internal/config"
	"github.com/specialistvlad/cookbridge/internal/ctxlog"
	"github.com/specialistvlad/cookbridge/internal/definition"
	"github.com/specialistvlad/cookbridge/internal/engine/inprocess"
)

// loadDefinitions reads the asset manifests. With checkLibraries set and the
// in-process transport selected, every library must name a built-in
// generator.
func (a *App) loadDefinitions(ctx context.Context, checkLibraries bool) error {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Loading definitions...", "paths", a.config.DefinitionPaths)

	a.library = definition.NewLibrary(a.config.DefinitionPaths...)
	if err := a.library.Load(ctx); err != nil {
		return fmt.Errorf("failed to load definitions: %w", err)
	}
	if len(a.library.Names()) == 0 {
		return fmt.Errorf("no asset definitions found in %s", strings.Join(a.config.DefinitionPaths, ", "))
	}

	if checkLibraries && a.settings.Session.Transport == config.TransportInProcess {
		eng := inprocess.New()
		defer func() { _ = eng.Disconnect(ctx) }()
		err := a.library.Validate(ctx, func(def *definition.Definition) error {
			_, err := eng.LoadDefinition(ctx, def.Library)
			return err
		})
		if err != nil {
			return err
		}
	}
	logger.Info("📚 Asset definitions loaded.", "count", len(a.library.Names()), "names", a.library.Names())
	return nil
}

// loadScene reads the scene and checks that every instance names a loaded
// definition.
func (a *App) loadScene(ctx context.Context) error {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Loading scene...", "scene_path", a.config.ScenePath)

	scene, err := config.LoadScene(ctx, a.config.ScenePath)
	if err != nil {
		return fmt.Errorf("failed to load scene: %w", err)
	}
	var errs []string
	for _, inst := range scene {
		if _, err := a.library.Get(inst.Asset); err != nil {
			errs = append(errs, fmt.Sprintf("instance '%s': unknown asset '%s'", inst.ID, inst.Asset))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("scene validation failed:\n- %s", strings.Join(errs, "\n- "))
	}
	a.scene = scene
	logger.Info("Scene loaded successfully.", "instances", len(scene))
	return nil
}
