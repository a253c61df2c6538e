// Package installation derives the on-disk layout rooted at a single
// runtime input: the install root. It plays the same struct-of-derived-path
// role the teacher's client.URLBuilder plays for remote URLs, but for local
// filesystem paths.
package installation

import "path/filepath"

// Installation derives every on-disk path this module owns from a single
// root, defaulting to "/".
type Installation struct {
	Root string
}

// New returns an Installation rooted at root. An empty root defaults to "/",
// matching spec.md's "root is the only runtime input" configuration model.
func New(root string) Installation {
	if root == "" {
		root = "/"
	}
	return Installation{Root: root}
}

func (i Installation) path(parts ...string) string {
	return filepath.Join(append([]string{i.Root}, parts...)...)
}

// MetaDBPath is the installed-package catalog.
func (i Installation) MetaDBPath() string {
	return i.path("var", "lib", "moss", "db", "meta.db")
}

// StateDBPath is the append-only state/selection log.
func (i Installation) StateDBPath() string {
	return i.path("var", "lib", "moss", "db", "state.db")
}

// RemoteDBPath is a given remote's own MetaDB mirror.
func (i Installation) RemoteDBPath(remoteID string) string {
	return i.path("var", "lib", "moss", "remotes", remoteID, "db")
}

// RemoteIndexPath is the last-fetched repository index for a remote.
func (i Installation) RemoteIndexPath(remoteID string) string {
	return i.path("var", "lib", "moss", "remotes", remoteID, "cache", "stone.index")
}

// RemoteCacheDir is the per-remote directory RemoteIndexPath lives under;
// callers create it before fetching a remote's index for the first time.
func (i Installation) RemoteCacheDir(remoteID string) string {
	return i.path("var", "lib", "moss", "remotes", remoteID, "cache")
}

// CachePoolRoot is the content-addressed blob pool's root.
func (i Installation) CachePoolRoot() string {
	return i.path("var", "cache", "moss")
}

// RemotesConfigPath is the persisted remote list.
func (i Installation) RemotesConfigPath() string {
	return i.path("etc", "moss", "remotes.toml")
}
