// Package cobble implements CobblePlugin: an in-memory Plugin for
// side-loaded local stone archives, as used by "install ./some.stone".
package cobble

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/git-pkgs/mossmeta/internal/core"
	"github.com/git-pkgs/mossmeta/internal/stone"
	"go.uber.org/zap"
)

// Config is the cfg value RegisterPluginKind("cobble", ...) expects.
type Config struct {
	Log *zap.Logger
}

// candidate is one side-loaded package: its decoded entry plus the local
// path it came from, for later installation.
type candidate struct {
	entry     core.MetaEntry
	localPath string
}

// Plugin holds side-loaded packages in memory, keyed by pkgID. Nothing
// here is persisted; the set is rebuilt each run from whatever the caller
// Load()s.
type Plugin struct {
	log *zap.Logger

	mu         sync.RWMutex
	candidates map[string]candidate
}

func init() {
	core.RegisterPluginKind("cobble", func(cfg any) (core.Plugin, error) {
		c, _ := cfg.(Config)
		return New(c), nil
	})
}

// New returns an empty CobblePlugin.
func New(cfg Config) *Plugin {
	log := cfg.Log
	if log == nil {
		log = zap.NewNop()
	}
	return &Plugin{
		log:        log.With(zap.String("component", "cobble")),
		candidates: make(map[string]candidate),
	}
}

// Load parses the single-package stone archive at path and registers it as
// an installable candidate, returning its pkgID.
func (p *Plugin) Load(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", core.Wrap("cobble.load", core.IOError, err)
	}

	r, err := stone.Open(f)
	if err != nil {
		return "", err
	}
	defer r.Close()

	if r.ArchiveHeader().Type != stone.Binary {
		return "", core.Wrap("cobble.load", core.Corrupt, fmt.Errorf("%s is not a binary package archive", path))
	}

	it := r.Payloads()
	var entry *core.MetaEntry
	for it.Next() {
		if it.Header().Type != stone.Meta {
			continue
		}
		body, err := it.Body()
		if err != nil {
			return "", err
		}
		m, err := stone.DecodeMetaPayload(body, it.Header().NumRecords)
		if err != nil {
			return "", err
		}
		entry = m.ToMetaEntry()
		break
	}
	if it.Err() != nil {
		return "", it.Err()
	}
	if entry == nil {
		return "", core.Wrap("cobble.load", core.Corrupt, fmt.Errorf("%s carries no Meta payload", path))
	}

	p.mu.Lock()
	p.candidates[entry.PkgID] = candidate{entry: *entry, localPath: path}
	p.mu.Unlock()

	p.log.Info("loaded side-loaded candidate", zap.String("pkgID", entry.PkgID), zap.String("path", path))
	return entry.PkgID, nil
}

func (p *Plugin) QueryProviders(ctx context.Context, t core.CapabilityType, matcher string, flags core.ItemFlags) []core.RegistryItem {
	p.mu.RLock()
	defer p.mu.RUnlock()

	var out []core.RegistryItem
	for _, c := range p.candidates {
		providers := append([]core.Provider{c.entry.ImplicitProvider()}, c.entry.Providers...)
		for _, prov := range providers {
			if prov.Type == t && prov.Identifier == matcher {
				out = append(out, core.RegistryItem{PkgID: c.entry.PkgID, Plugin: p, Flags: core.Available})
				break
			}
		}
	}
	return out
}

func (p *Plugin) QueryID(ctx context.Context, pkgID string) (core.RegistryItem, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if _, ok := p.candidates[pkgID]; !ok {
		return core.RegistryItem{}, false
	}
	return core.RegistryItem{PkgID: pkgID, Plugin: p, Flags: core.Available}, true
}

func (p *Plugin) Dependencies(ctx context.Context, pkgID string) []core.Dependency {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.candidates[pkgID].entry.Dependencies
}

func (p *Plugin) Providers(ctx context.Context, pkgID string) []core.Provider {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.candidates[pkgID].entry.Providers
}

func (p *Plugin) Info(ctx context.Context, pkgID string) core.ItemInfo {
	p.mu.RLock()
	defer p.mu.RUnlock()
	c, ok := p.candidates[pkgID]
	if !ok {
		return core.ItemInfo{}
	}
	e := c.entry
	return core.ItemInfo{
		Name: e.Name, Summary: e.Summary, Description: e.Description,
		SourceRelease: e.SourceRelease, Version: e.VersionIdentifier,
		Homepage: e.Homepage, Licenses: e.Licenses,
	}
}

func (p *Plugin) List(ctx context.Context, flags core.ItemFlags) []core.RegistryItem {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]core.RegistryItem, 0, len(p.candidates))
	for pkgID := range p.candidates {
		out = append(out, core.RegistryItem{PkgID: pkgID, Plugin: p, Flags: core.Available})
	}
	return out
}

// FetchItem is a no-op: a side-loaded candidate's bytes are already on
// disk at the path it was Load()ed from, so there's nothing to enqueue.
func (p *Plugin) FetchItem(ctx context.Context, sink core.FetchSink, pkgID string) error {
	p.mu.RLock()
	_, ok := p.candidates[pkgID]
	p.mu.RUnlock()
	if !ok {
		return &core.NotFoundError{Table: "candidates", Key: pkgID}
	}
	return nil
}

func (p *Plugin) Close() error {
	return nil
}
