package plugin

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"sync"

	"github.com/xraph/fdwledger/stats"
)

// Registry manages all registered plugins and provides efficient dispatch.
// Hooks run synchronously on the caller's goroutine.
type Registry struct {
	mu      sync.RWMutex
	plugins []Plugin
	logger  *slog.Logger

	// Type-cached plugin lists for efficient dispatch
	onInit                []OnInit
	onShutdown            []OnShutdown
	onStatsIncremented    []OnStatsIncremented
	onMetadataSet         []OnMetadataSet
	onMetadataWriteFailed []OnMetadataWriteFailed
	onMetadataReadFailed  []OnMetadataReadFailed
	onReadOnlySkipped     []OnReadOnlySkipped
	onGuardUndetermined   []OnGuardUndetermined
}

// NewRegistry creates a new plugin registry.
func NewRegistry() *Registry {
	return &Registry{
		logger: slog.Default(),
	}
}

// WithLogger sets the logger for the registry.
func (r *Registry) WithLogger(logger *slog.Logger) *Registry {
	r.logger = logger
	return r
}

// Register adds a plugin to the registry and caches its interfaces.
func (r *Registry) Register(p Plugin) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.plugins {
		if existing.Name() == p.Name() {
			return fmt.Errorf("plugin: duplicate registration: %s", p.Name())
		}
	}

	r.plugins = append(r.plugins, p)

	// Type-switch to cache interfaces
	if v, ok := p.(OnInit); ok {
		r.onInit = append(r.onInit, v)
	}
	if v, ok := p.(OnShutdown); ok {
		r.onShutdown = append(r.onShutdown, v)
	}
	if v, ok := p.(OnStatsIncremented); ok {
		r.onStatsIncremented = append(r.onStatsIncremented, v)
	}
	if v, ok := p.(OnMetadataSet); ok {
		r.onMetadataSet = append(r.onMetadataSet, v)
	}
	if v, ok := p.(OnMetadataWriteFailed); ok {
		r.onMetadataWriteFailed = append(r.onMetadataWriteFailed, v)
	}
	if v, ok := p.(OnMetadataReadFailed); ok {
		r.onMetadataReadFailed = append(r.onMetadataReadFailed, v)
	}
	if v, ok := p.(OnReadOnlySkipped); ok {
		r.onReadOnlySkipped = append(r.onReadOnlySkipped, v)
	}
	if v, ok := p.(OnGuardUndetermined); ok {
		r.onGuardUndetermined = append(r.onGuardUndetermined, v)
	}

	r.logger.Info("plugin registered",
		"name", p.Name(),
		"interfaces", r.getImplementedInterfaces(p),
	)

	return nil
}

// getImplementedInterfaces returns a list of interfaces implemented by the plugin.
func (r *Registry) getImplementedInterfaces(p Plugin) []string {
	var interfaces []string
	v := reflect.TypeOf(p)

	checkInterface := func(iface reflect.Type, name string) {
		if v.Implements(iface) {
			interfaces = append(interfaces, name)
		}
	}

	checkInterface(reflect.TypeOf((*OnInit)(nil)).Elem(), "OnInit")
	checkInterface(reflect.TypeOf((*OnShutdown)(nil)).Elem(), "OnShutdown")
	checkInterface(reflect.TypeOf((*OnStatsIncremented)(nil)).Elem(), "OnStatsIncremented")
	checkInterface(reflect.TypeOf((*OnMetadataSet)(nil)).Elem(), "OnMetadataSet")
	checkInterface(reflect.TypeOf((*OnMetadataWriteFailed)(nil)).Elem(), "OnMetadataWriteFailed")
	checkInterface(reflect.TypeOf((*OnMetadataReadFailed)(nil)).Elem(), "OnMetadataReadFailed")
	checkInterface(reflect.TypeOf((*OnReadOnlySkipped)(nil)).Elem(), "OnReadOnlySkipped")
	checkInterface(reflect.TypeOf((*OnGuardUndetermined)(nil)).Elem(), "OnGuardUndetermined")

	return interfaces
}

// Get returns a plugin by name.
func (r *Registry) Get(name string) Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.plugins {
		if p.Name() == name {
			return p
		}
	}
	return nil
}

// List returns all registered plugins.
func (r *Registry) List() []Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]Plugin, len(r.plugins))
	copy(result, r.plugins)
	return result
}

// Count returns the number of registered plugins.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.plugins)
}

// ──────────────────────────────────────────────────
// Event emission methods
// ──────────────────────────────────────────────────

// EmitInit calls OnInit for all plugins that implement it.
func (r *Registry) EmitInit(ctx context.Context, ledger interface{}) {
	r.mu.RLock()
	plugins := r.onInit
	r.mu.RUnlock()

	for _, p := range plugins {
		r.call(p.Name(), "OnInit", func() error {
			return p.OnInit(ctx, ledger)
		})
	}
}

// EmitShutdown calls OnShutdown for all plugins that implement it.
func (r *Registry) EmitShutdown(ctx context.Context) {
	r.mu.RLock()
	plugins := r.onShutdown
	r.mu.RUnlock()

	for _, p := range plugins {
		r.call(p.Name(), "OnShutdown", func() error {
			return p.OnShutdown(ctx)
		})
	}
}

// EmitStatsIncremented emits a counter increment event.
func (r *Registry) EmitStatsIncremented(ctx context.Context, fdwName string, m stats.Metric, delta, total int64) {
	r.mu.RLock()
	plugins := r.onStatsIncremented
	r.mu.RUnlock()

	for _, p := range plugins {
		r.call(p.Name(), "OnStatsIncremented", func() error {
			return p.OnStatsIncremented(ctx, fdwName, m, delta, total)
		})
	}
}

// EmitMetadataSet emits a metadata stored event.
func (r *Registry) EmitMetadataSet(ctx context.Context, fdwName string, cleared bool) {
	r.mu.RLock()
	plugins := r.onMetadataSet
	r.mu.RUnlock()

	for _, p := range plugins {
		r.call(p.Name(), "OnMetadataSet", func() error {
			return p.OnMetadataSet(ctx, fdwName, cleared)
		})
	}
}

// EmitMetadataWriteFailed emits a swallowed metadata write failure.
func (r *Registry) EmitMetadataWriteFailed(ctx context.Context, warningID, fdwName string, err error) {
	r.mu.RLock()
	plugins := r.onMetadataWriteFailed
	r.mu.RUnlock()

	for _, p := range plugins {
		r.call(p.Name(), "OnMetadataWriteFailed", func() error {
			return p.OnMetadataWriteFailed(ctx, warningID, fdwName, err)
		})
	}
}

// EmitMetadataReadFailed emits a swallowed metadata read failure.
func (r *Registry) EmitMetadataReadFailed(ctx context.Context, warningID, fdwName string, err error) {
	r.mu.RLock()
	plugins := r.onMetadataReadFailed
	r.mu.RUnlock()

	for _, p := range plugins {
		r.call(p.Name(), "OnMetadataReadFailed", func() error {
			return p.OnMetadataReadFailed(ctx, warningID, fdwName, err)
		})
	}
}

// EmitReadOnlySkipped emits a skipped mutation event.
func (r *Registry) EmitReadOnlySkipped(ctx context.Context, fdwName, op string) {
	r.mu.RLock()
	plugins := r.onReadOnlySkipped
	r.mu.RUnlock()

	for _, p := range plugins {
		r.call(p.Name(), "OnReadOnlySkipped", func() error {
			return p.OnReadOnlySkipped(ctx, fdwName, op)
		})
	}
}

// EmitGuardUndetermined emits a fail-open guard event.
func (r *Registry) EmitGuardUndetermined(ctx context.Context, fdwName string, err error) {
	r.mu.RLock()
	plugins := r.onGuardUndetermined
	r.mu.RUnlock()

	for _, p := range plugins {
		r.call(p.Name(), "OnGuardUndetermined", func() error {
			return p.OnGuardUndetermined(ctx, fdwName, err)
		})
	}
}

// call runs a hook and logs its error or panic.
func (r *Registry) call(pluginName, hook string, fn func() error) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("plugin "+hook+" panicked",
				"plugin", pluginName,
				"panic", rec,
			)
		}
	}()

	if err := fn(); err != nil {
		r.logger.Warn("plugin "+hook+" failed",
			"plugin", pluginName,
			"error", err,
		)
	}
}
