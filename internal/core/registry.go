package core

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Plugin is the capability every package source (installed set, remote
// repository, side-loaded archive) implements. Queries never return errors
// for "not found" — they return empty results; errors are reserved for
// genuine I/O/corruption failures during a refresh or fetch.
type Plugin interface {
	// QueryProviders resolves a capability to the items that offer it.
	QueryProviders(ctx context.Context, t CapabilityType, matcher string, flags ItemFlags) []RegistryItem

	// QueryID looks up a single package by its opaque identity.
	QueryID(ctx context.Context, pkgID string) (RegistryItem, bool)

	Dependencies(ctx context.Context, pkgID string) []Dependency
	Providers(ctx context.Context, pkgID string) []Provider
	Info(ctx context.Context, pkgID string) ItemInfo

	List(ctx context.Context, flags ItemFlags) []RegistryItem

	// FetchItem enqueues fetch work for pkgID against the supplied sink.
	FetchItem(ctx context.Context, sink FetchSink, pkgID string) error

	Close() error
}

// FetchSink is the minimal surface core needs from a fetch.Context: enqueue
// a URL to be materialized at a local path, with known size/hash hints.
// Kept minimal here to avoid internal/core depending on the fetch package.
type FetchSink interface {
	Enqueue(ctx context.Context, uri, destPath, hash string, expectedSize uint64) error
}

// Registry federates an ordered list of plugins and answers
// provider/name/id queries across all of them. ByName/ByProvider never
// deduplicate by pkgID — that policy (prefer installed > remote > cobble)
// belongs to the caller.
type Registry struct {
	plugins []Plugin
}

// NewRegistry returns an empty Registry; plugins are added in the order
// they should be consulted.
func NewRegistry() *Registry {
	return &Registry{}
}

// AddPlugin appends a plugin to the federation's registration order.
func (r *Registry) AddPlugin(p Plugin) {
	r.plugins = append(r.plugins, p)
}

// ByName concatenates each plugin's PackageName provider query, in
// registration order.
func (r *Registry) ByName(ctx context.Context, name string) []RegistryItem {
	return r.ByProvider(ctx, PackageName, name)
}

// ByProvider fans out QueryProviders to every plugin concurrently via
// errgroup.Group and concatenates the results in registration order.
// Plugin queries never error, so the group's Go funcs always return nil;
// errgroup is still used here (rather than a bare WaitGroup) for the same
// ctx-propagation and fan-out idiom RefreshAll uses.
func (r *Registry) ByProvider(ctx context.Context, t CapabilityType, matcher string) []RegistryItem {
	results := make([][]RegistryItem, len(r.plugins))

	g, gctx := errgroup.WithContext(ctx)
	for i, p := range r.plugins {
		i, p := i, p
		g.Go(func() error {
			results[i] = p.QueryProviders(gctx, t, matcher, Available)
			return nil
		})
	}
	_ = g.Wait()

	var out []RegistryItem
	for _, r := range results {
		out = append(out, r...)
	}
	return out
}

// ByID returns the first plugin's match, in registration order, short
// circuiting once found.
func (r *Registry) ByID(ctx context.Context, pkgID string) (RegistryItem, bool) {
	for _, p := range r.plugins {
		if item, ok := p.QueryID(ctx, pkgID); ok {
			return item, true
		}
	}
	return RegistryItem{}, false
}

// Close closes every plugin in registration order, returning the first
// error encountered but still attempting to close the rest.
func (r *Registry) Close() error {
	var firstErr error
	for _, p := range r.plugins {
		if err := p.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// PluginFactory builds a Plugin instance for a given kind from an opaque,
// kind-specific config value.
type PluginFactory func(cfg any) (Plugin, error)

var (
	pluginFactories = make(map[string]PluginFactory)
	pluginMu        sync.RWMutex
)

// RegisterPluginKind registers a plugin constructor under a kind name
// ("remote", "cobble", "installed", ...). Plugin packages call this from
// init(), the same self-registration idiom the teacher package used for
// ecosystem registry clients.
func RegisterPluginKind(kind string, factory PluginFactory) {
	pluginMu.Lock()
	defer pluginMu.Unlock()
	pluginFactories[kind] = factory
}

// NewPlugin constructs a plugin of the given kind from cfg.
func NewPlugin(kind string, cfg any) (Plugin, error) {
	pluginMu.RLock()
	factory, ok := pluginFactories[kind]
	pluginMu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("unknown plugin kind: %s", kind)
	}
	return factory(cfg)
}

// SupportedPluginKinds returns all registered plugin kind names.
func SupportedPluginKinds() []string {
	pluginMu.RLock()
	defer pluginMu.RUnlock()

	kinds := make([]string, 0, len(pluginFactories))
	for k := range pluginFactories {
		kinds = append(kinds, k)
	}
	return kinds
}
