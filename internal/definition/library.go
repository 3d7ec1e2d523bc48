package definition

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/specialistvlad/cookbridge/internal/ctxlog"
)

// ErrUnknownDefinition is returned for names the library does not hold.
var ErrUnknownDefinition = errors.New("definition: unknown asset definition")

// Library caches the definitions found under a set of paths. It is safe for
// concurrent use.
type Library struct {
	paths []string

	mu   sync.RWMutex
	defs map[string]*Definition
}

// NewLibrary creates an empty library reading from paths.
func NewLibrary(paths ...string) *Library {
	return &Library{paths: paths, defs: make(map[string]*Definition)}
}

// Paths returns the manifest paths the library reads.
func (l *Library) Paths() []string {
	return append([]string(nil), l.paths...)
}

// Load reads the manifests and replaces the cache.
func (l *Library) Load(ctx context.Context) error {
	_, err := l.Reload(ctx)
	return err
}

// Reload re-reads the manifests and returns the names of definitions that
// were added, removed or changed, sorted. On error the cache is left as it
// was.
func (l *Library) Reload(ctx context.Context) ([]string, error) {
	defs, err := Load(ctx, l.paths...)
	if err != nil {
		return nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	var changed []string
	for name, def := range defs {
		old, ok := l.defs[name]
		if !ok || old.fingerprint() != def.fingerprint() {
			changed = append(changed, name)
		}
	}
	for name := range l.defs {
		if _, ok := defs[name]; !ok {
			changed = append(changed, name)
		}
	}
	l.defs = defs
	sort.Strings(changed)
	ctxlog.FromContext(ctx).Info("📚 Asset definitions loaded.", "count", len(defs), "changed", len(changed))
	return changed, nil
}

// Get returns the named definition.
func (l *Library) Get(name string) (*Definition, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	def, ok := l.defs[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownDefinition, name)
	}
	return def, nil
}

// Names returns the loaded definition names, sorted.
func (l *Library) Names() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	names := make([]string, 0, len(l.defs))
	for name := range l.defs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Validate runs check against every definition and reports every failure at
// once.
func (l *Library) Validate(ctx context.Context, check func(*Definition) error) error {
	logger := ctxlog.FromContext(ctx)
	var errs []string
	for _, name := range l.Names() {
		def, err := l.Get(name)
		if err != nil {
			continue
		}
		if err := check(def); err != nil {
			errs = append(errs, fmt.Sprintf("asset '%s' (%s): %v", name, def.File, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("definition validation failed:\n- %s", strings.Join(errs, "\n- "))
	}
	logger.Debug("Definition validation passed.")
	return nil
}
