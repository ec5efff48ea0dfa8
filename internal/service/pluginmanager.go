package service

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"
)

// Hook names fired during orchestrator tick phases.
const (
	HookOnTickSync        = "on_tick_sync"
	HookOnMissionComplete = "on_mission_complete"
	HookOnStuckCheck      = "on_stuck_check"
	HookOnStepComplete    = "on_step_complete"
)

// PluginManifest is the YAML manifest a plugin directory must declare.
type PluginManifest struct {
	Name       string   `yaml:"name"`
	Version    string   `yaml:"version"`
	DependsOn  []string `yaml:"depends_on"`
	Routes     []string `yaml:"routes"`
	Hooks      []string `yaml:"hooks"`
	Models     []string `yaml:"models"`
}

// HookHandler is a named callback registered against a hook name.
type HookHandler func(ctx context.Context, hookCtx map[string]any) (any, error)

// HookBus collects hook callables keyed by hook name and dispatches
// them in registration order, swallowing individual handler errors.
type HookBus struct {
	mu       sync.RWMutex
	handlers map[string][]HookHandler
}

// NewHookBus constructs an empty HookBus.
func NewHookBus() *HookBus {
	return &HookBus{handlers: make(map[string][]HookHandler)}
}

// On registers a handler for a hook name, appended after any existing
// handlers for that name (registration order is preserved).
func (b *HookBus) On(name string, h HookHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[name] = append(b.handlers[name], h)
}

// DispatchHook invokes every registered handler for name in
// registration order. An individual handler's error is logged and
// swallowed; subsequent handlers still run. Non-error return values
// are collected for callers that want them.
func (b *HookBus) DispatchHook(ctx context.Context, name string, hookCtx map[string]any) []any {
	b.mu.RLock()
	handlers := append([]HookHandler(nil), b.handlers[name]...)
	b.mu.RUnlock()

	results := make([]any, 0, len(handlers))
	for _, h := range handlers {
		res, err := func() (res any, err error) {
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("hook handler panic: %v", r)
				}
			}()
			return h(ctx, hookCtx)
		}()
		if err != nil {
			slog.Warn("hook handler failed", "hook", name, "error", err)
			continue
		}
		results = append(results, res)
	}
	return results
}

// PluginManager discovers plugin directories under a root, parses
// their manifests, and orders them by dependency (Kahn's algorithm).
// Loading symbols under a namespaced identity and wiring discovered
// hooks into a HookBus is left to the caller that walks DiscoveryOrder
// — plugin code itself is outside the orchestration core's scope.
type PluginManager struct {
	dir       string
	manifests map[string]PluginManifest
}

// NewPluginManager constructs a PluginManager rooted at dir.
func NewPluginManager(dir string) *PluginManager {
	return &PluginManager{dir: dir, manifests: make(map[string]PluginManifest)}
}

// Discover scans dir for plugin subdirectories each containing a
// plugin.yaml manifest. Malformed manifests are logged at WARN and
// skipped rather than aborting discovery.
func (m *PluginManager) Discover() error {
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		manifestPath := filepath.Join(m.dir, entry.Name(), "plugin.yaml")
		data, err := os.ReadFile(manifestPath)
		if err != nil {
			continue
		}
		var manifest PluginManifest
		if err := yaml.Unmarshal(data, &manifest); err != nil {
			slog.Warn("invalid plugin manifest", "path", manifestPath, "error", err)
			continue
		}
		if manifest.Name == "" {
			manifest.Name = entry.Name()
		}
		m.manifests[manifest.Name] = manifest
	}
	return nil
}

// DiscoveryOrder returns plugin names topologically sorted by
// depends_on (Kahn's algorithm). A plugin whose dependency is missing
// from the manifest set is skipped with a warning, along with
// everything that (transitively) depends on it.
func (m *PluginManager) DiscoveryOrder() []string {
	inDegree := make(map[string]int, len(m.manifests))
	dependents := make(map[string][]string)
	skip := make(map[string]bool)

	for name, manifest := range m.manifests {
		for _, dep := range manifest.DependsOn {
			if _, ok := m.manifests[dep]; !ok {
				slog.Warn("plugin has unsatisfied dependency, skipping", "plugin", name, "missing", dep)
				skip[name] = true
				continue
			}
			inDegree[name]++
			dependents[dep] = append(dependents[dep], name)
		}
	}

	var queue []string
	for name := range m.manifests {
		if skip[name] {
			continue
		}
		if inDegree[name] == 0 {
			queue = append(queue, name)
		}
	}
	sort.Strings(queue)

	var order []string
	for len(queue) > 0 {
		sort.Strings(queue)
		name := queue[0]
		queue = queue[1:]
		order = append(order, name)
		for _, dep := range dependents[name] {
			if skip[dep] {
				continue
			}
			inDegree[dep]--
			if inDegree[dep] == 0 {
				queue = append(queue, dep)
			}
		}
	}
	return order
}

// Manifests returns the discovered manifests keyed by plugin name.
func (m *PluginManager) Manifests() map[string]PluginManifest {
	return m.manifests
}
