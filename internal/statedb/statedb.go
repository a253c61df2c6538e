// Package statedb implements the append-only log of installation states and
// their per-state package selections.
package statedb

import (
	"encoding/json"
	"time"

	"github.com/git-pkgs/mossmeta/internal/core"
	"github.com/git-pkgs/mossmeta/internal/kv"
	"go.uber.org/zap"
)

const (
	tableStates     = "states"
	tableSelections = "selections"
)

// StateDB is a transactional, bbolt-backed log of StateRecords plus the
// selections made within each. State IDs are never recycled.
type StateDB struct {
	store *kv.Store
	log   *zap.Logger
}

// Connect opens the state log at path, creating its tables if writable and
// absent.
func Connect(path string, mutability kv.Mutability, log *zap.Logger) (*StateDB, error) {
	if log == nil {
		log = zap.NewNop()
	}
	store, err := kv.Open(path, mutability, tableStates, tableSelections)
	if err != nil {
		return nil, core.Wrap("statedb.connect", core.IOError, err)
	}
	return &StateDB{store: store, log: log.With(zap.String("component", "statedb"), zap.String("path", path))}, nil
}

// Close is idempotent.
func (s *StateDB) Close() error {
	if s.store == nil {
		return nil
	}
	err := s.store.Close()
	s.store = nil
	return err
}

// NewState allocates stateID = max(existing) + 1, persists the record, and
// returns the new ID. Allocation and persistence happen in one write
// transaction, so a state never half-exists.
func (s *StateDB) NewState(name, description string, stype core.StateType) (uint64, error) {
	var id uint64
	err := s.store.Update(func(tx *kv.Tx) error {
		id = s.nextStateID(tx) + 1
		rec := core.StateRecord{
			StateID:     id,
			Name:        name,
			Description: description,
			Type:        stype,
			Timestamp:   time.Now().Unix(),
		}
		raw, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		return tx.Put(tableStates, stateKey(id), raw)
	})
	if err != nil {
		return 0, core.Wrap("statedb.newState", core.TransactionAborted, err)
	}
	s.log.Info("state created", zap.Uint64("stateID", id), zap.String("name", name))
	return id, nil
}

func (s *StateDB) nextStateID(tx *kv.Tx) uint64 {
	var max uint64
	tx.Scan(tableStates, func(key, _ []byte) bool {
		if id := decodeStateKey(key); id > max {
			max = id
		}
		return true
	})
	return max
}

// MarkSelection upserts a selection: a second call with the same
// (stateID, identifier) replaces the prior entry.
func (s *StateDB) MarkSelection(stateID uint64, identifier string, stype core.SelectionType, flags core.SelectionFlags) error {
	entry := core.StateEntry{StateID: stateID, Identifier: identifier, Type: stype, Flags: flags}
	err := s.store.Update(func(tx *kv.Tx) error {
		return tx.Put(tableSelections, selectionKey(stateID, identifier), encodeEntry(entry))
	})
	if err != nil {
		return core.Wrap("statedb.markSelection", core.TransactionAborted, err)
	}
	return nil
}

// UnmarkSelection deletes the selection keyed by (stateID, identifier), if
// present. Not an error if absent.
func (s *StateDB) UnmarkSelection(stateID uint64, identifier string) error {
	err := s.store.Update(func(tx *kv.Tx) error {
		return tx.Delete(tableSelections, selectionKey(stateID, identifier))
	})
	if err != nil {
		return core.Wrap("statedb.unmarkSelection", core.TransactionAborted, err)
	}
	return nil
}

// Entries returns every StateEntry recorded for stateID, in key order.
// Malformed rows are skipped rather than failing the whole scan — a single
// corrupt selection shouldn't hide the rest of a state.
func (s *StateDB) Entries(stateID uint64) []core.StateEntry {
	var out []core.StateEntry
	prefix := []byte(stateKey(stateID))
	_ = s.store.View(func(tx *kv.Tx) error {
		tx.ScanPrefix(tableSelections, prefix, func(_, value []byte) bool {
			if e, err := decodeEntry(value); err == nil {
				out = append(out, e)
			}
			return true
		})
		return nil
	})
	return out
}

// ActiveState returns the greatest stateID recorded, and false if the log
// is empty.
func (s *StateDB) ActiveState() (uint64, bool) {
	var max uint64
	var found bool
	_ = s.store.View(func(tx *kv.Tx) error {
		tx.Scan(tableStates, func(key, _ []byte) bool {
			found = true
			if id := decodeStateKey(key); id > max {
				max = id
			}
			return true
		})
		return nil
	})
	return max, found
}

// Record returns the StateRecord for stateID, if present.
func (s *StateDB) Record(stateID uint64) (*core.StateRecord, bool) {
	var rec *core.StateRecord
	_ = s.store.View(func(tx *kv.Tx) error {
		raw, ok := tx.Get(tableStates, stateKey(stateID))
		if !ok {
			return nil
		}
		var r core.StateRecord
		if err := json.Unmarshal(raw, &r); err != nil {
			return nil
		}
		rec = &r
		return nil
	})
	return rec, rec != nil
}
