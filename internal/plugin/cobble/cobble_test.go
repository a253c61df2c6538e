package cobble

import (
	"bytes"
	"context"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

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

func writeBinaryStone(t *testing.T, path, name, version string) {
	t.Helper()
	records := append([]byte{}, stringRecord(1, name)...) // TagName
	records = append(records, stringRecord(2, version)...) // TagVersion

	var payload bytes.Buffer
	payload.WriteByte(1) // Meta
	payload.WriteByte(0) // CompressionNone
	payload.Write(u32(2))
	payload.Write(u64(uint64(len(records))))
	payload.Write(u64(uint64(len(records))))
	payload.Write(u64(0))
	payload.Write(records)

	var buf bytes.Buffer
	buf.Write([]byte{0x00, 's', 't', 'n'})
	buf.Write(u32(1))
	buf.WriteByte(1) // Binary
	buf.Write(u32(1))
	buf.Write(payload.Bytes())

	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
}

func TestLoadRegistersCandidate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "demo.stone")
	writeBinaryStone(t, path, "demo", "1.0")

	p := New(Config{})
	pkgID, err := p.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if _, ok := p.QueryID(context.Background(), pkgID); !ok {
		t.Error("expected QueryID to find the loaded candidate")
	}

	info := p.Info(context.Background(), pkgID)
	if info.Name != "demo" || info.Version != "1.0" {
		t.Errorf("got info %+v", info)
	}
}

func TestQueryProvidersFindsImplicitNameProvider(t *testing.T) {
	path := filepath.Join(t.TempDir(), "demo.stone")
	writeBinaryStone(t, path, "demo", "1.0")

	p := New(Config{})
	pkgID, _ := p.Load(path)

	items := p.QueryProviders(context.Background(), core.PackageName, "demo", core.Available)
	if len(items) != 1 || items[0].PkgID != pkgID {
		t.Errorf("got %v", items)
	}
}

func TestFetchItemIsNoOpForLoadedCandidate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "demo.stone")
	writeBinaryStone(t, path, "demo", "1.0")

	p := New(Config{})
	pkgID, _ := p.Load(path)

	if err := p.FetchItem(context.Background(), nil, pkgID); err != nil {
		t.Errorf("expected no-op success, got %v", err)
	}
}

func TestFetchItemUnknownPkgID(t *testing.T) {
	p := New(Config{})
	if err := p.FetchItem(context.Background(), nil, "nonexistent"); err == nil {
		t.Error("expected error for unknown pkgID")
	}
}

func TestLoadRejectsRepositoryArchive(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.stone")
	var buf bytes.Buffer
	buf.Write([]byte{0x00, 's', 't', 'n'})
	buf.Write(u32(1))
	buf.WriteByte(2) // Repository, not Binary
	buf.Write(u32(0))
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	p := New(Config{})
	if _, err := p.Load(path); err == nil {
		t.Error("expected error loading a repository index as a cobbled package")
	}
}
