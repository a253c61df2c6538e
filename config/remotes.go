// Package config persists the remote list seeded by the out-of-band
// add-repo mechanism spec.md leaves outside its own scope.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
)

// Remote is one configured package source.
type Remote struct {
	Name     string `toml:"name"`
	URI      string `toml:"uri"`
	Priority int    `toml:"priority"`
}

// Remotes is the on-disk shape of remotes.toml: an ordered list under a
// single table array.
type Remotes struct {
	Remote []Remote `toml:"remote"`
}

// LoadRemotes reads and parses the remote list at path. A missing file is
// treated as an empty list, not an error — a fresh installation has no
// remotes configured yet.
func LoadRemotes(path string) (Remotes, error) {
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return Remotes{}, nil
	}
	if err != nil {
		return Remotes{}, fmt.Errorf("config: reading %s: %w", path, err)
	}

	var r Remotes
	if err := toml.Unmarshal(raw, &r); err != nil {
		return Remotes{}, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	return r, nil
}

// SaveRemotes writes the remote list to path, creating its parent directory
// if absent.
func SaveRemotes(path string, r Remotes) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("config: creating %s: %w", filepath.Dir(path), err)
	}

	raw, err := toml.Marshal(r)
	if err != nil {
		return fmt.Errorf("config: encoding remotes: %w", err)
	}
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return fmt.Errorf("config: writing %s: %w", path, err)
	}
	return nil
}

// AddRemote appends a remote to the list at path, rejecting a duplicate
// name.
func AddRemote(path string, remote Remote) error {
	remotes, err := LoadRemotes(path)
	if err != nil {
		return err
	}
	for _, existing := range remotes.Remote {
		if existing.Name == remote.Name {
			return fmt.Errorf("config: remote %q already configured", remote.Name)
		}
	}
	remotes.Remote = append(remotes.Remote, remote)
	return SaveRemotes(path, remotes)
}
