// Package metadb implements the transactional catalog: entries keyed by
// pkgID plus a derived provider index enabling capability-based lookup.
package metadb

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/git-pkgs/mossmeta/internal/core"
	"github.com/git-pkgs/mossmeta/internal/kv"
	"github.com/git-pkgs/mossmeta/internal/stone"
	"github.com/git-pkgs/spdx"
	"go.uber.org/zap"
)

const (
	tableEntries   = "entries"
	tableProviders = "providers"
)

// MetaDB is a transactional, bbolt-backed catalog indexed by package
// identity, with a secondary provider index for capability lookup. One
// MetaDB exclusively owns its underlying store handle.
type MetaDB struct {
	store *kv.Store
	log   *zap.Logger
}

// Connect opens the catalog at path. mutability == kv.ReadOnly fails with a
// NotFound-kind error if the database doesn't already exist; ReadWrite
// creates it (and its tables) if absent.
func Connect(path string, mutability kv.Mutability, log *zap.Logger) (*MetaDB, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if mutability == kv.ReadOnly {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return nil, core.Wrap("metadb.connect", core.NotFound, err)
		}
	}
	store, err := kv.Open(path, mutability, tableEntries, tableProviders)
	if err != nil {
		return nil, core.Wrap("metadb.connect", core.IOError, err)
	}
	return &MetaDB{store: store, log: log.With(zap.String("component", "metadb"), zap.String("path", path))}, nil
}

// Close is idempotent; subsequent calls are no-ops.
func (m *MetaDB) Close() error {
	if m.store == nil {
		return nil
	}
	err := m.store.Close()
	m.store = nil
	return err
}

// HasID reports whether pkgID exists in the catalog.
func (m *MetaDB) HasID(pkgID string) bool {
	var found bool
	_ = m.store.View(func(tx *kv.Tx) error {
		_, found = tx.Get(tableEntries, pkgID)
		return nil
	})
	return found
}

// Info returns an ItemInfo projection of the entry, or an empty ItemInfo if
// pkgID is absent. Never fails.
func (m *MetaDB) Info(pkgID string) core.ItemInfo {
	entry, ok := m.getEntry(pkgID)
	if !ok {
		return core.ItemInfo{}
	}
	return core.ItemInfo{
		Name:          entry.Name,
		Summary:       entry.Summary,
		Description:   entry.Description,
		SourceRelease: entry.SourceRelease,
		Version:       entry.VersionIdentifier,
		Homepage:      entry.Homepage,
		Licenses:      entry.Licenses,
	}
}

// GetValue reads one field of an entry by tag name, for lightweight
// single-field lookups that don't need the whole MetaEntry. Returns ""
// for an absent entry or unrecognized tag.
func (m *MetaDB) GetValue(pkgID string, tag stone.Tag) string {
	entry, ok := m.getEntry(pkgID)
	if !ok {
		return ""
	}
	switch tag {
	case stone.TagName:
		return entry.Name
	case stone.TagVersion:
		return entry.VersionIdentifier
	case stone.TagArchitecture:
		return entry.Architecture
	case stone.TagSummary:
		return entry.Summary
	case stone.TagDescription:
		return entry.Description
	case stone.TagHomepage:
		return entry.Homepage
	case stone.TagSourceID:
		return entry.SourceID
	case stone.TagPackageURI:
		return entry.URI
	case stone.TagPackageHash:
		return entry.Hash
	default:
		return ""
	}
}

// Get returns the full MetaEntry for pkgID.
func (m *MetaDB) Get(pkgID string) (*core.MetaEntry, bool) {
	return m.getEntry(pkgID)
}

func (m *MetaDB) getEntry(pkgID string) (*core.MetaEntry, bool) {
	var entry *core.MetaEntry
	_ = m.store.View(func(tx *kv.Tx) error {
		raw, ok := tx.Get(tableEntries, pkgID)
		if !ok {
			return nil
		}
		var e core.MetaEntry
		if err := json.Unmarshal(raw, &e); err != nil {
			return nil
		}
		entry = &e
		return nil
	})
	return entry, entry != nil
}

// List returns every entry in the catalog, ordered by pkgID (the KV
// store's natural B-tree order). Stable under concurrent read-only access.
func (m *MetaDB) List() []core.MetaEntry {
	var out []core.MetaEntry
	_ = m.store.View(func(tx *kv.Tx) error {
		tx.Scan(tableEntries, func(key, value []byte) bool {
			var e core.MetaEntry
			if err := json.Unmarshal(value, &e); err == nil {
				out = append(out, e)
			}
			return true
		})
		return nil
	})
	return out
}

// ByProvider looks up the pkgIDs that satisfy (t, matcher).
func (m *MetaDB) ByProvider(t core.CapabilityType, matcher string) []string {
	key := core.NewProvider(t, matcher).String()
	var ids []string
	_ = m.store.View(func(tx *kv.Tx) error {
		raw, ok := tx.Get(tableProviders, key)
		if !ok {
			return nil
		}
		ids = decodeProviderRow(raw)
		return nil
	})
	return ids
}

// LoadFromIndex atomically replaces the catalog's contents with the Meta
// payloads decoded from the stone archive at path. On any failure the
// transaction aborts and the catalog is left as it was before the call
// attempted — bbolt rolls the whole Update back, so there's no "wipe
// committed, repopulation failed" straddle inside one call. (spec.md's
// failure model describes that straddle at the level of "a failed
// loadFromIndex leaves the DB needing re-fetch" — here that only happens
// if the process dies mid-transaction, which is bbolt's own durability
// boundary, not ours to relax.)
func (m *MetaDB) LoadFromIndex(path string) error {
	r, err := openIndex(path)
	if err != nil {
		return err
	}
	defer r.Close()

	if r.ArchiveHeader().Type != stone.Repository {
		return core.Wrap("metadb.loadFromIndex", core.Corrupt, fmt.Errorf("archive type %v is not a repository index", r.ArchiveHeader().Type))
	}

	entries, err := decodeAllMeta(r)
	if err != nil {
		return err
	}

	err = m.store.Update(func(tx *kv.Tx) error {
		if err := tx.WipeAndRecreate(tableEntries, tableProviders); err != nil {
			return err
		}
		for _, e := range entries {
			if err := insertEntry(tx, e, m.log); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		m.log.Warn("loadFromIndex aborted", zap.Error(err))
		return core.Wrap("metadb.loadFromIndex", core.TransactionAborted, err)
	}

	m.log.Info("loadFromIndex committed", zap.Int("entries", len(entries)))
	return nil
}

func openIndex(path string) (*stone.Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, core.Wrap("metadb.loadFromIndex", core.IOError, err)
	}
	r, err := stone.Open(f)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	return r, nil
}

func decodeAllMeta(r *stone.Reader) ([]*core.MetaEntry, error) {
	var entries []*core.MetaEntry
	it := r.Payloads()
	for it.Next() {
		if it.Header().Type != stone.Meta {
			continue
		}
		body, err := it.Body()
		if err != nil {
			return nil, err
		}
		payload, err := stone.DecodeMetaPayload(body, it.Header().NumRecords)
		if err != nil {
			return nil, err
		}
		entries = append(entries, payload.ToMetaEntry())
	}
	if it.Err() != nil {
		return nil, it.Err()
	}
	return entries, nil
}

func insertEntry(tx *kv.Tx, e *core.MetaEntry, log *zap.Logger) error {
	validateLicenses(e, log)

	raw, err := json.Marshal(e)
	if err != nil {
		return err
	}
	if err := tx.Put(tableEntries, e.PkgID, raw); err != nil {
		return err
	}

	providers := append([]core.Provider{e.ImplicitProvider()}, e.Providers...)
	for _, p := range providers {
		if err := appendProvider(tx, p.String(), e.PkgID); err != nil {
			return err
		}
	}
	return nil
}

func appendProvider(tx *kv.Tx, providerKey, pkgID string) error {
	return tx.Append(tableProviders, providerKey, pkgID, decodeProviderRow, encodeProviderRow)
}

func decodeProviderRow(b []byte) []string {
	var ids []string
	_ = json.Unmarshal(b, &ids)
	return ids
}

func encodeProviderRow(ids []string) []byte {
	b, _ := json.Marshal(ids)
	return b
}

// validateLicenses logs (but does not fail on) SPDX-invalid license
// identifiers — spec.md doesn't make license validity a hard invariant.
func validateLicenses(e *core.MetaEntry, log *zap.Logger) {
	for _, l := range e.Licenses {
		if l == "" {
			continue
		}
		if !spdx.Valid(l) {
			log.Warn("non-SPDX license identifier",
				zap.String("pkgID", e.PkgID), zap.String("license", l))
		}
	}
}
