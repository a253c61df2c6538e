package fetch

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
)

// Fetchable describes one enqueued download: a source URI, the local path
// its bytes should land at, and the expectations it must satisfy once
// complete.
type Fetchable struct {
	URI          string
	DestPath     string
	Hash         string
	ExpectedSize int64
}

// CompletionFunc is invoked once per Fetchable, on the Context's single
// delivery goroutine — callers may touch shared state (a MetaDB, a
// CachePool) from inside it without additional locking, since deliveries
// are always serialized.
type CompletionFunc func(Fetchable, error)

// Context is a FetchSink: an ordered queue of downloads serviced by one
// background goroutine, with completions delivered one at a time on that
// same goroutine. This is the "controller thread" spec.md's concurrency
// model requires DB-touching callbacks to run on.
type Context struct {
	fetcher    Downloader
	onComplete CompletionFunc

	jobs chan Fetchable
	wg   sync.WaitGroup

	closeOnce sync.Once
}

// NewContext starts the delivery goroutine and returns a ready-to-use
// Context. fetcher is typically a *CircuitBreakerFetcher; tests may supply
// any other Downloader. onComplete must not block for long; it runs
// inline with every subsequent job's dispatch.
func NewContext(fetcher Downloader, onComplete CompletionFunc) *Context {
	c := &Context{
		fetcher:    fetcher,
		onComplete: onComplete,
		jobs:       make(chan Fetchable, 32),
	}
	c.wg.Add(1)
	go c.run()
	return c
}

func (c *Context) run() {
	defer c.wg.Done()
	for job := range c.jobs {
		err := c.download(context.Background(), job)
		c.onComplete(job, err)
	}
}

// Enqueue implements core.FetchSink. It queues the download as given,
// without checking its arguments; the actual transfer happens
// asynchronously, size and hash are checked once it completes, and the
// outcome is reported through the Context's CompletionFunc.
func (c *Context) Enqueue(ctx context.Context, uri, destPath, hash string, expectedSize uint64) error {
	job := Fetchable{URI: uri, DestPath: destPath, Hash: hash, ExpectedSize: int64(expectedSize)}
	select {
	case c.jobs <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting new work and waits for in-flight jobs (and their
// completion callbacks) to finish. Idempotent.
func (c *Context) Close() {
	c.closeOnce.Do(func() {
		close(c.jobs)
	})
	c.wg.Wait()
}

func (c *Context) download(ctx context.Context, job Fetchable) error {
	if err := os.MkdirAll(filepath.Dir(job.DestPath), 0o755); err != nil {
		return fmt.Errorf("fetch: preparing destination: %w", err)
	}

	artifact, err := c.fetcher.Fetch(ctx, job.URI)
	if err != nil {
		return fmt.Errorf("fetch: %s: %w", job.URI, err)
	}
	defer artifact.Body.Close()

	out, err := os.Create(job.DestPath)
	if err != nil {
		return fmt.Errorf("fetch: creating %s: %w", job.DestPath, err)
	}

	h := sha256.New()
	written, copyErr := io.Copy(io.MultiWriter(out, h), artifact.Body)
	closeErr := out.Close()

	if copyErr != nil {
		_ = os.Remove(job.DestPath)
		return fmt.Errorf("fetch: downloading %s: %w", job.URI, copyErr)
	}
	if closeErr != nil {
		_ = os.Remove(job.DestPath)
		return fmt.Errorf("fetch: writing %s: %w", job.DestPath, closeErr)
	}

	if job.ExpectedSize > 0 && written != job.ExpectedSize {
		_ = os.Remove(job.DestPath)
		return fmt.Errorf("fetch: %s: got %d bytes, expected %d", job.URI, written, job.ExpectedSize)
	}

	if job.Hash != "" {
		if got := hex.EncodeToString(h.Sum(nil)); got != job.Hash {
			_ = os.Remove(job.DestPath)
			return fmt.Errorf("fetch: %s: hash mismatch, got %s want %s", job.URI, got, job.Hash)
		}
	}

	return nil
}
