// Package installed implements InstalledPlugin: a Plugin reflecting the
// packages selected in the active state.
package installed

import (
	"context"
	"fmt"

	"github.com/git-pkgs/mossmeta/internal/core"
	"github.com/git-pkgs/mossmeta/internal/kv"
	"github.com/git-pkgs/mossmeta/internal/metadb"
	"go.uber.org/zap"
)

// Config is the cfg value RegisterPluginKind("installed", ...) expects.
type Config struct {
	DBPath string
	Log    *zap.Logger
}

// Plugin is a MetaDB of currently-installed packages. Unlike RemotePlugin
// it never refreshes itself from the network; its contents are maintained
// by the install/remove pipeline marking entries as the active state
// changes.
type Plugin struct {
	db *metadb.MetaDB
}

func init() {
	core.RegisterPluginKind("installed", func(cfg any) (core.Plugin, error) {
		c, ok := cfg.(Config)
		if !ok {
			return nil, fmt.Errorf("installed: unexpected config type %T", cfg)
		}
		return New(c)
	})
}

// New opens (or creates) the installed-package MetaDB at cfg.DBPath.
func New(cfg Config) (*Plugin, error) {
	db, err := metadb.Connect(cfg.DBPath, kv.ReadWrite, cfg.Log)
	if err != nil {
		return nil, err
	}
	return &Plugin{db: db}, nil
}

// DB exposes the underlying MetaDB for the install pipeline to write
// through directly (recording a fetched package as installed is a
// MetaDB-level operation, not a Plugin-level one).
func (p *Plugin) DB() *metadb.MetaDB {
	return p.db
}

func (p *Plugin) QueryProviders(ctx context.Context, t core.CapabilityType, matcher string, flags core.ItemFlags) []core.RegistryItem {
	ids := p.db.ByProvider(t, matcher)
	items := make([]core.RegistryItem, len(ids))
	for i, id := range ids {
		items[i] = core.RegistryItem{PkgID: id, Plugin: p, Flags: core.Available | core.Installed}
	}
	return items
}

func (p *Plugin) QueryID(ctx context.Context, pkgID string) (core.RegistryItem, bool) {
	if !p.db.HasID(pkgID) {
		return core.RegistryItem{}, false
	}
	return core.RegistryItem{PkgID: pkgID, Plugin: p, Flags: core.Available | core.Installed}, true
}

func (p *Plugin) Dependencies(ctx context.Context, pkgID string) []core.Dependency {
	e, ok := p.db.Get(pkgID)
	if !ok {
		return nil
	}
	return e.Dependencies
}

func (p *Plugin) Providers(ctx context.Context, pkgID string) []core.Provider {
	e, ok := p.db.Get(pkgID)
	if !ok {
		return nil
	}
	return e.Providers
}

func (p *Plugin) Info(ctx context.Context, pkgID string) core.ItemInfo {
	return p.db.Info(pkgID)
}

func (p *Plugin) List(ctx context.Context, flags core.ItemFlags) []core.RegistryItem {
	entries := p.db.List()
	items := make([]core.RegistryItem, len(entries))
	for i, e := range entries {
		items[i] = core.RegistryItem{PkgID: e.PkgID, Plugin: p, Flags: core.Available | core.Installed}
	}
	return items
}

// FetchItem always fails: an already-installed package has nothing to
// fetch. Reinstallation/repair flows go through a remote plugin instead.
func (p *Plugin) FetchItem(ctx context.Context, sink core.FetchSink, pkgID string) error {
	return &core.MalformedEntryError{PkgID: pkgID, Field: "uri", Why: "already installed, nothing to fetch"}
}

func (p *Plugin) Close() error {
	return p.db.Close()
}
