package fetch

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func TestContextDownloadsAndVerifies(t *testing.T) {
	body := []byte("hello stone archive")
	sum := sha256.Sum256(body)
	hash := hex.EncodeToString(sum[:])

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(body)
	}))
	defer srv.Close()

	var mu sync.Mutex
	var gotErr error
	done := make(chan struct{})

	c := NewContext(NewCircuitBreakerFetcher(NewFetcher()), func(job Fetchable, err error) {
		mu.Lock()
		gotErr = err
		mu.Unlock()
		close(done)
	})
	defer c.Close()

	dest := filepath.Join(t.TempDir(), "staging", hash)
	if err := c.Enqueue(context.Background(), srv.URL, dest, hash, uint64(len(body))); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for completion callback")
	}

	mu.Lock()
	defer mu.Unlock()
	if gotErr != nil {
		t.Fatalf("download failed: %v", gotErr)
	}

	got, err := os.ReadFile(dest)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(got) != string(body) {
		t.Errorf("got %q, want %q", got, body)
	}
}

func TestContextHashMismatchRemovesFile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("wrong bytes"))
	}))
	defer srv.Close()

	done := make(chan error, 1)
	c := NewContext(NewCircuitBreakerFetcher(NewFetcher()), func(job Fetchable, err error) {
		done <- err
	})
	defer c.Close()

	dest := filepath.Join(t.TempDir(), "staging", "deadbeef")
	_ = c.Enqueue(context.Background(), srv.URL, dest, "deadbeef", 0)

	select {
	case err := <-done:
		if err == nil {
			t.Fatal("expected a hash-mismatch error")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for completion callback")
	}

	if _, err := os.Stat(dest); !os.IsNotExist(err) {
		t.Error("expected destination file to be removed on hash mismatch")
	}
}

func TestContextCloseIsIdempotent(t *testing.T) {
	c := NewContext(NewCircuitBreakerFetcher(NewFetcher()), func(Fetchable, error) {})
	c.Close()
	c.Close()
}
