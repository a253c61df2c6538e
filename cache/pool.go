// Package cache implements the content-addressed blob pool: downloads land
// at a staging path keyed by hash and are atomically promoted to their
// final path once verified.
package cache

import (
	"fmt"
	"os"
	"path/filepath"
)

// Pool is a content-addressed directory: every blob lives at a path derived
// from its hash, first in a staging area while its download is in flight,
// then promoted to the final area once complete.
type Pool struct {
	root string
}

// New returns a Pool rooted at root, creating its staging and final
// subdirectories if absent.
func New(root string) (*Pool, error) {
	p := &Pool{root: root}
	for _, dir := range []string{p.stagingDir(), p.finalDir()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("cache: creating %s: %w", dir, err)
		}
	}
	return p, nil
}

func (p *Pool) stagingDir() string { return filepath.Join(p.root, "staging") }
func (p *Pool) finalDir() string   { return filepath.Join(p.root, "assets") }

// StagingPath returns the path a download for the blob identified by hash
// should be written to before it's verified.
func (p *Pool) StagingPath(hash string) string {
	return filepath.Join(p.stagingDir(), hash)
}

// FinalPath returns the path a verified blob identified by hash is served
// from.
func (p *Pool) FinalPath(hash string) string {
	return filepath.Join(p.finalDir(), hash)
}

// HasFinal reports whether the blob for hash has already been promoted.
func (p *Pool) HasFinal(hash string) bool {
	_, err := os.Stat(p.FinalPath(hash))
	return err == nil
}

// Promote atomically moves the staged blob for hash to its final path. The
// rename is atomic on any filesystem where staging and final share a
// volume, which New's layout guarantees by keeping both under root.
func (p *Pool) Promote(hash string) error {
	if err := os.Rename(p.StagingPath(hash), p.FinalPath(hash)); err != nil {
		return fmt.Errorf("cache: promoting %s: %w", hash, err)
	}
	return nil
}

// DiscardStaging removes a failed or abandoned staged download.
func (p *Pool) DiscardStaging(hash string) error {
	if err := os.Remove(p.StagingPath(hash)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("cache: discarding staged %s: %w", hash, err)
	}
	return nil
}
