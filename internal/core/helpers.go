package core

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Refresher is implemented by plugins backed by a remote index (currently
// just RemotePlugin) that can be asked to re-download and reload their
// catalog.
type Refresher interface {
	Refresh(ctx context.Context) error
}

// RefreshResult is the outcome of refreshing one named remote.
type RefreshResult struct {
	Name string
	Err  error
}

// RefreshAll refreshes every remote concurrently and reports one result per
// remote rather than failing fast — per spec, partial success (one remote
// refreshed, another failed) is a normal outcome, not an aborted operation.
func RefreshAll(ctx context.Context, remotes map[string]Refresher) []RefreshResult {
	results := make([]RefreshResult, len(remotes))
	names := make([]string, 0, len(remotes))
	for name := range remotes {
		names = append(names, name)
	}

	g, gctx := errgroup.WithContext(ctx)
	for i, name := range names {
		i, name := i, name
		r := remotes[name]
		g.Go(func() error {
			err := r.Refresh(gctx)
			results[i] = RefreshResult{Name: name, Err: err}
			return nil // never abort siblings on one remote's failure
		})
	}
	_ = g.Wait()

	return results
}

// AllFailed reports whether every RefreshResult carries an error, which per
// spec is the only condition warranting a non-zero exit code for a refresh.
func AllFailed(results []RefreshResult) bool {
	if len(results) == 0 {
		return false
	}
	for _, r := range results {
		if r.Err == nil {
			return false
		}
	}
	return true
}
