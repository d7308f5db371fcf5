// Package registry manages plugin lifecycle: registration, dependency
// resolution, initialization, event wiring and shutdown.
package registry

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/fieldcast/fieldcast/pkg/plugin"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Compile-time interface guard.
var _ plugin.PluginResolver = (*Registry)(nil)

// Registry manages the lifecycle of all registered plugins.
type Registry struct {
	mu       sync.RWMutex
	plugins  map[string]plugin.Plugin
	infos    map[string]plugin.PluginInfo
	order    []string // dependency order after Validate
	disabled map[string]bool
	logger   *zap.Logger

	subMu  sync.Mutex
	unsubs []func()
}

// New creates an empty registry.
func New(logger *zap.Logger) *Registry {
	return &Registry{
		plugins:  make(map[string]plugin.Plugin),
		infos:    make(map[string]plugin.PluginInfo),
		disabled: make(map[string]bool),
		logger:   logger,
	}
}

// Register adds a plugin. Must be called before Validate.
func (r *Registry) Register(p plugin.Plugin) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	info := p.Info()
	if info.Name == "" {
		return fmt.Errorf("plugin has empty name")
	}
	if _, exists := r.plugins[info.Name]; exists {
		return fmt.Errorf("plugin %q already registered", info.Name)
	}
	r.plugins[info.Name] = p
	r.infos[info.Name] = info
	r.logger.Info("plugin registered",
		zap.String("name", info.Name),
		zap.String("version", info.Version),
		zap.Int("api_version", info.APIVersion),
	)
	return nil
}

// Validate checks API versions and dependencies, disabling optional plugins
// that cannot run, and computes the start order.
func (r *Registry) Validate() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, name := range r.sortedNames() {
		if err := r.checkAPIVersion(name, r.infos[name].APIVersion); err != nil {
			if err := r.disable(name, "api version incompatible", err); err != nil {
				return err
			}
		}
	}

	// Disable dependents of missing or disabled plugins until stable.
	for changed := true; changed; {
		changed = false
		for _, name := range r.sortedNames() {
			if r.disabled[name] {
				continue
			}
			for _, dep := range r.infos[name].Dependencies {
				var reason error
				if _, ok := r.plugins[dep]; !ok {
					reason = fmt.Errorf("plugin %q depends on %q which is not registered", name, dep)
				} else if r.disabled[dep] {
					reason = fmt.Errorf("plugin %q depends on %q which is disabled", name, dep)
				}
				if reason == nil {
					continue
				}
				if err := r.disable(name, "dependency unavailable", reason); err != nil {
					return err
				}
				changed = true
				break
			}
		}
	}

	order, err := r.topologicalSort()
	if err != nil {
		return err
	}
	r.order = order

	r.logger.Info("plugin dependency resolution complete",
		zap.Strings("start_order", r.order),
		zap.Int("disabled", len(r.disabled)),
	)
	return nil
}

// InitAll initializes active plugins in dependency order, validates their
// configuration and wires declared event subscriptions.
func (r *Registry) InitAll(ctx context.Context, depsFn func(name string) plugin.Dependencies) error {
	for _, name := range r.active() {
		p := r.plugins[name]
		deps := depsFn(name)

		r.logger.Info("initializing plugin", zap.String("name", name))
		if err := safely(name, "Init", func() error { return p.Init(ctx, deps) }); err != nil {
			if err := r.markDisabled(name, "init failed", err); err != nil {
				return err
			}
			continue
		}
		if v, ok := p.(plugin.Validator); ok {
			if err := safely(name, "ValidateConfig", v.ValidateConfig); err != nil {
				if err := r.markDisabled(name, "config validation failed", err); err != nil {
					return err
				}
				continue
			}
		}
		if sub, ok := p.(plugin.EventSubscriber); ok && deps.Bus != nil {
			r.wire(name, deps.Bus, sub.Subscriptions())
		}
	}
	return nil
}

// StartAll starts initialized plugins in dependency order.
func (r *Registry) StartAll(ctx context.Context) error {
	for _, name := range r.active() {
		p := r.plugins[name]
		r.logger.Info("starting plugin", zap.String("name", name))
		if err := safely(name, "Start", func() error { return p.Start(ctx) }); err != nil {
			if err := r.markDisabled(name, "start failed", err); err != nil {
				return err
			}
		}
	}
	return nil
}

// StopAll removes event subscriptions and stops active plugins in reverse
// dependency order. Every plugin is stopped even when others fail; the
// failures are combined in the returned error.
func (r *Registry) StopAll(ctx context.Context) error {
	r.subMu.Lock()
	unsubs := r.unsubs
	r.unsubs = nil
	r.subMu.Unlock()
	for _, unsub := range unsubs {
		unsub()
	}

	active := r.active()
	var errs error
	for i := len(active) - 1; i >= 0; i-- {
		name := active[i]
		p := r.plugins[name]
		r.logger.Info("stopping plugin", zap.String("name", name))
		if err := safely(name, "Stop", func() error { return p.Stop(ctx) }); err != nil {
			r.logger.Error("failed to stop plugin", zap.String("name", name), zap.Error(err))
			errs = multierr.Append(errs, err)
		}
	}
	return errs
}

// Get returns an active plugin by name.
func (r *Registry) Get(name string) (plugin.Plugin, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.plugins[name]
	if !ok || r.disabled[name] {
		return nil, false
	}
	return p, true
}

// Resolve implements plugin.PluginResolver.
func (r *Registry) Resolve(name string) (plugin.Plugin, bool) {
	return r.Get(name)
}

// ResolveByRole returns active plugins that declare role.
func (r *Registry) ResolveByRole(role string) []plugin.Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []plugin.Plugin
	for _, name := range r.order {
		if r.disabled[name] {
			continue
		}
		for _, pr := range r.infos[name].Roles {
			if pr == role {
				out = append(out, r.plugins[name])
				break
			}
		}
	}
	return out
}

// All returns active plugins in dependency order.
func (r *Registry) All() []plugin.Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]plugin.Plugin, 0, len(r.order))
	for _, name := range r.order {
		if !r.disabled[name] {
			out = append(out, r.plugins[name])
		}
	}
	return out
}

// Infos returns metadata for every registered plugin, sorted by name.
func (r *Registry) Infos() []plugin.PluginInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]plugin.PluginInfo, 0, len(r.infos))
	for _, name := range r.sortedNames() {
		out = append(out, r.infos[name])
	}
	return out
}

// AllRoutes returns HTTP routes of active HTTPProvider plugins keyed by
// plugin name.
func (r *Registry) AllRoutes() map[string][]plugin.Route {
	r.mu.RLock()
	defer r.mu.RUnlock()

	routes := make(map[string][]plugin.Route)
	for _, name := range r.order {
		if r.disabled[name] {
			continue
		}
		if hp, ok := r.plugins[name].(plugin.HTTPProvider); ok {
			if pr := hp.Routes(); len(pr) > 0 {
				routes[name] = pr
			}
		}
	}
	return routes
}

// Health collects reports from active HealthChecker plugins. Disabled
// plugins report unhealthy.
func (r *Registry) Health(ctx context.Context) map[string]plugin.HealthStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]plugin.HealthStatus, len(r.plugins))
	for name, p := range r.plugins {
		if r.disabled[name] {
			out[name] = plugin.HealthStatus{Status: "unhealthy", Message: "disabled"}
			continue
		}
		if hc, ok := p.(plugin.HealthChecker); ok {
			out[name] = hc.Health(ctx)
			continue
		}
		out[name] = plugin.HealthStatus{Status: "healthy"}
	}
	return out
}

// IsDisabled reports whether a plugin has been disabled.
func (r *Registry) IsDisabled(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.disabled[name]
}

// active snapshots the enabled plugins in dependency order. Lifecycle hooks
// run without holding r.mu so plugins may resolve each other.
func (r *Registry) active() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.order))
	for _, name := range r.order {
		if !r.disabled[name] {
			out = append(out, name)
		}
	}
	return out
}

func (r *Registry) markDisabled(name, reason string, cause error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.disable(name, reason, cause)
}

// disable marks an optional plugin disabled, or returns the failure for a
// required one. Callers hold r.mu.
func (r *Registry) disable(name, reason string, cause error) error {
	if r.infos[name].Required {
		return fmt.Errorf("required plugin %q: %s: %w", name, reason, cause)
	}
	r.logger.Warn("disabling optional plugin",
		zap.String("name", name),
		zap.String("reason", reason),
		zap.Error(cause),
	)
	r.disabled[name] = true
	return nil
}

func (r *Registry) wire(name string, bus plugin.Subscriber, subs []plugin.Subscription) {
	r.subMu.Lock()
	defer r.subMu.Unlock()
	for _, s := range subs {
		r.unsubs = append(r.unsubs, bus.Subscribe(s.Topic, s.Handler))
		r.logger.Debug("event subscription wired",
			zap.String("plugin", name),
			zap.String("topic", s.Topic),
		)
	}
}

func (r *Registry) checkAPIVersion(name string, v int) error {
	switch {
	case v < plugin.APIVersionMin:
		return fmt.Errorf("plugin %q targets Plugin API v%d, but this server requires v%d or newer", name, v, plugin.APIVersionMin)
	case v > plugin.APIVersionCurrent:
		return fmt.Errorf("plugin %q targets Plugin API v%d, but this server supports up to v%d", name, v, plugin.APIVersionCurrent)
	}
	return nil
}

func (r *Registry) sortedNames() []string {
	names := make([]string, 0, len(r.plugins))
	for name := range r.plugins {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// topologicalSort orders active plugins with Kahn's algorithm, breaking
// ties by name so the start order is stable across runs.
func (r *Registry) topologicalSort() ([]string, error) {
	inDegree := make(map[string]int)
	dependents := make(map[string][]string)
	for _, name := range r.sortedNames() {
		if r.disabled[name] {
			continue
		}
		inDegree[name] += 0
		for _, dep := range r.infos[name].Dependencies {
			if !r.disabled[dep] {
				inDegree[name]++
				dependents[dep] = append(dependents[dep], name)
			}
		}
	}

	var ready []string
	for name, d := range inDegree {
		if d == 0 {
			ready = append(ready, name)
		}
	}
	sort.Strings(ready)

	order := make([]string, 0, len(inDegree))
	for len(ready) > 0 {
		name := ready[0]
		ready = ready[1:]
		order = append(order, name)
		var next []string
		for _, dep := range dependents[name] {
			inDegree[dep]--
			if inDegree[dep] == 0 {
				next = append(next, dep)
			}
		}
		ready = append(ready, next...)
		sort.Strings(ready)
	}

	if len(order) != len(inDegree) {
		var cycled []string
		for name, d := range inDegree {
			if d > 0 {
				cycled = append(cycled, name)
			}
		}
		sort.Strings(cycled)
		return nil, fmt.Errorf("dependency cycle detected among plugins: %v", cycled)
	}
	return order, nil
}

// safely runs a lifecycle hook, converting a panic into an error.
func safely(name, hook string, fn func() error) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("plugin %q %s panicked: %v", name, hook, rec)
		}
	}()
	return fn()
}
