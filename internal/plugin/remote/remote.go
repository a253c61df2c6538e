// Package remote implements the RemotePlugin: a Plugin backed by a mirrored
// MetaDB that's refreshed by fetching a remote's stone.index.
package remote

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/git-pkgs/mossmeta/cache"
	"github.com/git-pkgs/mossmeta/fetch"
	"github.com/git-pkgs/mossmeta/internal/core"
	"github.com/git-pkgs/mossmeta/internal/kv"
	"github.com/git-pkgs/mossmeta/internal/metadb"
	"go.uber.org/zap"
)

// Config is the cfg value RegisterPluginKind("remote", ...) expects.
type Config struct {
	RemoteID  string
	URI       string // e.g. https://repo.example/stone.index
	DBPath    string
	IndexPath string
	Fetcher   *fetch.CircuitBreakerFetcher
	Pool      *cache.Pool
	Log       *zap.Logger
}

// Plugin wraps a MetaDB mirrored from remote's stone.index. Refresh fetches
// a fresh index and atomically reloads the mirror; queries always see a
// consistent snapshot even while a refresh is in flight.
type Plugin struct {
	remoteID  string
	uri       string
	dbPath    string
	indexPath string
	pool      *cache.Pool
	log       *zap.Logger

	fetcher *fetch.Context

	mu             sync.Mutex
	db             *metadb.MetaDB
	pendingRefresh chan error
}

func init() {
	core.RegisterPluginKind("remote", func(cfg any) (core.Plugin, error) {
		c, ok := cfg.(Config)
		if !ok {
			return nil, fmt.Errorf("remote: unexpected config type %T", cfg)
		}
		return New(c)
	})
}

// New opens (or creates) the remote's local MetaDB mirror and wires up its
// internal fetch.Context for index refreshes.
func New(cfg Config) (*Plugin, error) {
	log := cfg.Log
	if log == nil {
		log = zap.NewNop()
	}
	log = log.With(zap.String("component", "remote"), zap.String("remote", cfg.RemoteID))

	db, err := metadb.Connect(cfg.DBPath, kv.ReadWrite, log)
	if err != nil {
		return nil, err
	}

	p := &Plugin{
		remoteID:  cfg.RemoteID,
		uri:       cfg.URI,
		dbPath:    cfg.DBPath,
		indexPath: cfg.IndexPath,
		pool:      cfg.Pool,
		log:       log,
		db:        db,
	}
	p.fetcher = fetch.NewContext(cfg.Fetcher, p.onIndexFetched)
	return p, nil
}

func (p *Plugin) currentDB() *metadb.MetaDB {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.db
}

// Refresh implements core.Refresher: it fetches a fresh stone.index and
// blocks until the mirrored MetaDB has been reloaded from it (or the fetch
// failed), so callers driving RefreshAll see a result per remote.
func (p *Plugin) Refresh(ctx context.Context) error {
	p.mu.Lock()
	if p.pendingRefresh != nil {
		p.mu.Unlock()
		return fmt.Errorf("remote %s: refresh already in progress", p.remoteID)
	}
	done := make(chan error, 1)
	p.pendingRefresh = done
	p.mu.Unlock()

	if err := p.fetcher.Enqueue(ctx, p.uri, p.indexPath, "", 0); err != nil {
		p.mu.Lock()
		p.pendingRefresh = nil
		p.mu.Unlock()
		return err
	}

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Plugin) onIndexFetched(job fetch.Fetchable, err error) {
	if err == nil {
		err = p.reload()
	}

	p.mu.Lock()
	done := p.pendingRefresh
	p.pendingRefresh = nil
	p.mu.Unlock()

	if done != nil {
		done <- err
	} else if err != nil {
		p.log.Warn("refresh failed with no waiter", zap.Error(err))
	}
}

// reload closes the current MetaDB, reopens it, and repopulates it from the
// freshly-fetched index. Closing before reopening is required at the same
// path (bbolt holds an exclusive file lock); the plugin swaps in the fresh
// handle before attempting the load. LoadFromIndex rolls back on failure, so
// a failed load leaves queries on an open DB that still holds the catalog
// as it stood before the refresh.
func (p *Plugin) reload() error {
	p.mu.Lock()
	old := p.db
	p.mu.Unlock()

	if err := old.Close(); err != nil {
		return err
	}

	next, err := metadb.Connect(p.dbPath, kv.ReadWrite, p.log)
	if err != nil {
		return err
	}

	p.mu.Lock()
	p.db = next
	p.mu.Unlock()

	return next.LoadFromIndex(p.indexPath)
}

func (p *Plugin) QueryProviders(ctx context.Context, t core.CapabilityType, matcher string, flags core.ItemFlags) []core.RegistryItem {
	ids := p.currentDB().ByProvider(t, matcher)
	items := make([]core.RegistryItem, len(ids))
	for i, id := range ids {
		items[i] = core.RegistryItem{PkgID: id, Plugin: p, Flags: core.Available}
	}
	return items
}

func (p *Plugin) QueryID(ctx context.Context, pkgID string) (core.RegistryItem, bool) {
	if !p.currentDB().HasID(pkgID) {
		return core.RegistryItem{}, false
	}
	return core.RegistryItem{PkgID: pkgID, Plugin: p, Flags: core.Available}, true
}

func (p *Plugin) Dependencies(ctx context.Context, pkgID string) []core.Dependency {
	e, ok := p.currentDB().Get(pkgID)
	if !ok {
		return nil
	}
	return e.Dependencies
}

func (p *Plugin) Providers(ctx context.Context, pkgID string) []core.Provider {
	e, ok := p.currentDB().Get(pkgID)
	if !ok {
		return nil
	}
	return e.Providers
}

func (p *Plugin) Info(ctx context.Context, pkgID string) core.ItemInfo {
	return p.currentDB().Info(pkgID)
}

func (p *Plugin) List(ctx context.Context, flags core.ItemFlags) []core.RegistryItem {
	entries := p.currentDB().List()
	items := make([]core.RegistryItem, len(entries))
	for i, e := range entries {
		items[i] = core.RegistryItem{PkgID: e.PkgID, Plugin: p, Flags: core.Available}
	}
	return items
}

// FetchItem resolves pkgID's artifact location relative to the remote's
// index URI and enqueues it into sink, landing at the cache pool's staging
// path for its hash. Preconditions from spec.md: the resolved URI must end
// in .stone, and the entry must carry a non-empty hash and a positive size.
func (p *Plugin) FetchItem(ctx context.Context, sink core.FetchSink, pkgID string) error {
	e, ok := p.currentDB().Get(pkgID)
	if !ok {
		return &core.NotFoundError{Table: "entries", Key: pkgID}
	}

	pkgURI := dirname(p.uri) + "/" + e.URI
	if !strings.HasSuffix(pkgURI, ".stone") {
		return &core.MalformedEntryError{PkgID: pkgID, Field: "uri", Why: "resolved package URI does not end in .stone"}
	}
	if e.Hash == "" {
		return &core.MalformedEntryError{PkgID: pkgID, Field: "hash", Why: "missing hash"}
	}
	if e.DownloadSize == 0 {
		return &core.MalformedEntryError{PkgID: pkgID, Field: "downloadSize", Why: "zero expected size"}
	}

	return sink.Enqueue(ctx, pkgURI, p.pool.StagingPath(e.Hash), e.Hash, e.DownloadSize)
}

func (p *Plugin) Close() error {
	p.fetcher.Close()
	return p.currentDB().Close()
}

// dirname returns uri without its final "/"-separated component, mirroring
// the POSIX dirname semantics spec.md's pkgURI formula relies on.
func dirname(uri string) string {
	if idx := strings.LastIndex(uri, "/"); idx >= 0 {
		return uri[:idx]
	}
	return uri
}
