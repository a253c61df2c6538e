// Package kv is a thin transactional wrapper over bbolt, standing in for
// the "@Model ORM decorator" pattern called out as incidental complexity:
// entities own their own encode()/decode() and a table name; the store
// exposes get/put/scan/delete against a named bucket, nothing more.
package kv

import (
	"time"

	"go.etcd.io/bbolt"
)

// Store owns one bbolt database file. One Store per MetaDB/StateDB
// instance; exclusively owns its handle.
type Store struct {
	db *bbolt.DB
}

// Mutability controls whether Open may create the database/tables.
type Mutability int

const (
	ReadWrite Mutability = iota
	ReadOnly
)

// Open opens (or creates, if writable) a bbolt database at path, ensuring
// each of the given bucket names exists when writable.
func Open(path string, mutability Mutability, buckets ...string) (*Store, error) {
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{
		Timeout:  2 * time.Second,
		ReadOnly: mutability == ReadOnly,
	})
	if err != nil {
		return nil, err
	}

	if mutability == ReadWrite {
		err = db.Update(func(tx *bbolt.Tx) error {
			for _, b := range buckets {
				if _, err := tx.CreateBucketIfNotExists([]byte(b)); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			_ = db.Close()
			return nil, err
		}
	}

	return &Store{db: db}, nil
}

// Close is idempotent: closing an already-closed Store is a no-op.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// View runs fn in a read-only transaction.
func (s *Store) View(fn func(tx *Tx) error) error {
	return s.db.View(func(btx *bbolt.Tx) error {
		return fn(&Tx{btx})
	})
}

// Update runs fn in a read-write transaction; fn's error aborts the
// transaction (bbolt rolls back automatically on a non-nil return).
func (s *Store) Update(fn func(tx *Tx) error) error {
	return s.db.Update(func(btx *bbolt.Tx) error {
		return fn(&Tx{btx})
	})
}

// Tx wraps a bbolt transaction with bucket-scoped get/put/scan/delete.
type Tx struct {
	btx *bbolt.Tx
}

// WipeAndRecreate deletes every named bucket (ignoring "doesn't exist") and
// recreates it empty, within this transaction — used by MetaDB's
// loadFromIndex to make the catalog replace atomic.
func (t *Tx) WipeAndRecreate(buckets ...string) error {
	for _, b := range buckets {
		if err := t.btx.DeleteBucket([]byte(b)); err != nil && err != bbolt.ErrBucketNotFound {
			return err
		}
		if _, err := t.btx.CreateBucket([]byte(b)); err != nil {
			return err
		}
	}
	return nil
}

// Put writes value under key in the named bucket, creating the bucket if
// it is absent (BucketNotFound is treated as "create", per spec).
func (t *Tx) Put(bucket, key string, value []byte) error {
	b, err := t.btx.CreateBucketIfNotExists([]byte(bucket))
	if err != nil {
		return err
	}
	return b.Put([]byte(key), value)
}

// Get reads the value for key in the named bucket. Returns (nil, false) if
// the bucket or key is absent — this is the normal "not found" path, never
// an error.
func (t *Tx) Get(bucket, key string) ([]byte, bool) {
	b := t.btx.Bucket([]byte(bucket))
	if b == nil {
		return nil, false
	}
	v := b.Get([]byte(key))
	if v == nil {
		return nil, false
	}
	// bbolt's returned slice is only valid for the transaction's lifetime;
	// callers decode immediately, but copy defensively since MetaDB's info()
	// returns a projection built from this after the view closes.
	out := make([]byte, len(v))
	copy(out, v)
	return out, true
}

// Delete removes key from the named bucket. A missing bucket or key is not
// an error.
func (t *Tx) Delete(bucket, key string) error {
	b := t.btx.Bucket([]byte(bucket))
	if b == nil {
		return nil
	}
	return b.Delete([]byte(key))
}

// Scan calls fn for every key/value pair in the named bucket, in key order
// (bbolt buckets are B-tree backed, so iteration is already sorted — this
// is the "ordered KV store" spec.md asks for). Stops early if fn returns
// false.
func (t *Tx) Scan(bucket string, fn func(key, value []byte) bool) {
	b := t.btx.Bucket([]byte(bucket))
	if b == nil {
		return
	}
	c := b.Cursor()
	for k, v := c.First(); k != nil; k, v = c.Next() {
		if !fn(k, v) {
			return
		}
	}
}

// ScanPrefix calls fn for every key/value pair in the named bucket whose
// key starts with prefix, in key order.
func (t *Tx) ScanPrefix(bucket string, prefix []byte, fn func(key, value []byte) bool) {
	b := t.btx.Bucket([]byte(bucket))
	if b == nil {
		return
	}
	c := b.Cursor()
	for k, v := c.Seek(prefix); k != nil && hasPrefix(k, prefix); k, v = c.Next() {
		if !fn(k, v) {
			return
		}
	}
}

// Append adds value to the unordered set of values stored at key in bucket,
// deduplicating: if value is already present, this is a no-op. Used for
// ProviderMap rows, which are sets of pkgIDs with no ordering guarantee.
func (t *Tx) Append(bucket, key string, value string, decode func([]byte) []string, encode func([]string) []byte) error {
	existing, _ := t.Get(bucket, key)
	var values []string
	if existing != nil {
		values = decode(existing)
	}
	for _, v := range values {
		if v == value {
			return nil
		}
	}
	values = append(values, value)
	return t.Put(bucket, key, encode(values))
}

func hasPrefix(b, prefix []byte) bool {
	if len(b) < len(prefix) {
		return false
	}
	for i := range prefix {
		if b[i] != prefix[i] {
			return false
		}
	}
	return true
}
