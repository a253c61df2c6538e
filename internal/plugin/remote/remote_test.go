package remote

import (
	"bytes"
	"context"
	"encoding/binary"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/git-pkgs/mossmeta/cache"
	"github.com/git-pkgs/mossmeta/fetch"
	"github.com/git-pkgs/mossmeta/internal/core"
)

func u16(v uint16) []byte { b := make([]byte, 2); binary.BigEndian.PutUint16(b, v); return b }
func u32(v uint32) []byte { b := make([]byte, 4); binary.BigEndian.PutUint32(b, v); return b }
func u64(v uint64) []byte { b := make([]byte, 8); binary.BigEndian.PutUint64(b, v); return b }

func stringRecord(tag uint16, value string) []byte {
	var buf bytes.Buffer
	buf.Write(u16(tag))
	buf.WriteByte(2) // TypeString
	buf.Write(u32(uint32(len(value))))
	buf.WriteString(value)
	return buf.Bytes()
}

func metaPayload(records []byte, numRecords uint32) []byte {
	var buf bytes.Buffer
	buf.WriteByte(1) // Meta
	buf.WriteByte(0) // CompressionNone
	buf.Write(u32(numRecords))
	buf.Write(u64(uint64(len(records))))
	buf.Write(u64(uint64(len(records))))
	buf.Write(u64(0))
	buf.Write(records)
	return buf.Bytes()
}

func repositoryIndex(payloads ...[]byte) []byte {
	var buf bytes.Buffer
	buf.Write([]byte{0x00, 's', 't', 'n'})
	buf.Write(u32(1))
	buf.WriteByte(2) // Repository
	buf.Write(u32(uint32(len(payloads))))
	for _, p := range payloads {
		buf.Write(p)
	}
	return buf.Bytes()
}

// tags: Name=1, Version=2, PackageURI=14, PackageHash=15, PackageSize=16
func fooPayload() []byte {
	records := append([]byte{}, stringRecord(1, "foo")...)
	records = append(records, stringRecord(2, "1.0")...)
	records = append(records, stringRecord(14, "stone/foo.stone")...)
	records = append(records, stringRecord(15, "abc")...)

	var sizeRecord bytes.Buffer
	sizeRecord.Write(u16(16))
	sizeRecord.WriteByte(1) // TypeUint64
	sizeRecord.Write(u32(8))
	sizeRecord.Write(u64(1024))
	records = append(records, sizeRecord.Bytes()...)

	return metaPayload(records, 5)
}

func newTestPlugin(t *testing.T, indexBody []byte) (*Plugin, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(indexBody)
	}))
	t.Cleanup(srv.Close)

	dir := t.TempDir()
	pool, err := cache.New(filepath.Join(dir, "pool"))
	if err != nil {
		t.Fatalf("cache.New: %v", err)
	}

	p, err := New(Config{
		RemoteID:  "test",
		URI:       srv.URL + "/stone.index",
		DBPath:    filepath.Join(dir, "db"),
		IndexPath: filepath.Join(dir, "stone.index"),
		Fetcher:   fetch.NewCircuitBreakerFetcher(fetch.NewFetcher()),
		Pool:      pool,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = p.Close() })

	return p, srv
}

func TestRefreshPopulatesMirror(t *testing.T) {
	p, _ := newTestPlugin(t, repositoryIndex(fooPayload()))

	if err := p.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}

	items := p.List(context.Background(), core.Available)
	if len(items) != 1 {
		t.Fatalf("got %d items, want 1", len(items))
	}
}

func TestFetchItemEnqueuesResolvedURI(t *testing.T) {
	p, srv := newTestPlugin(t, repositoryIndex(fooPayload()))

	if err := p.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}

	items := p.List(context.Background(), core.Available)
	if len(items) != 1 {
		t.Fatal("expected one item after refresh")
	}

	var enqueued struct {
		uri, dest, hash string
		size            uint64
	}
	sink := fakeSink(func(ctx context.Context, uri, dest, hash string, size uint64) error {
		enqueued.uri, enqueued.dest, enqueued.hash, enqueued.size = uri, dest, hash, size
		return nil
	})

	if err := p.FetchItem(context.Background(), sink, items[0].PkgID); err != nil {
		t.Fatalf("FetchItem: %v", err)
	}

	wantURI := srv.URL + "/stone/foo.stone"
	if enqueued.uri != wantURI {
		t.Errorf("uri = %q, want %q", enqueued.uri, wantURI)
	}
	if enqueued.hash != "abc" || enqueued.size != 1024 {
		t.Errorf("got hash=%q size=%d", enqueued.hash, enqueued.size)
	}
}

func TestFetchItemRejectsUnknownPkgID(t *testing.T) {
	p, _ := newTestPlugin(t, repositoryIndex())
	err := p.FetchItem(context.Background(), fakeSink(nil), "nonexistent")
	if err == nil {
		t.Error("expected error for unknown pkgID")
	}
}

func TestQueryIDAfterRefresh(t *testing.T) {
	p, _ := newTestPlugin(t, repositoryIndex(fooPayload()))
	_ = p.Refresh(context.Background())

	items := p.List(context.Background(), core.Available)
	if _, ok := p.QueryID(context.Background(), items[0].PkgID); !ok {
		t.Error("expected QueryID to find the refreshed entry")
	}
	if _, ok := p.QueryID(context.Background(), "bogus"); ok {
		t.Error("expected QueryID to miss an unknown pkgID")
	}
}

type fakeSink func(ctx context.Context, uri, dest, hash string, size uint64) error

func (f fakeSink) Enqueue(ctx context.Context, uri, dest, hash string, size uint64) error {
	if f == nil {
		return nil
	}
	return f(ctx, uri, dest, hash, size)
}
