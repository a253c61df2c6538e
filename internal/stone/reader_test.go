package stone

import (
	"bytes"
	"io"
	"testing"
)

// seekableBuffer adapts a []byte to io.ReadSeeker for tests.
type seekableBuffer struct {
	*bytes.Reader
}

func newSeekable(b []byte) io.ReadSeeker {
	return &seekableBuffer{bytes.NewReader(b)}
}

func TestOpenValidHeader(t *testing.T) {
	records := buildStringRecord(TagName, "nano")
	payload := buildPayload(Meta, 1, records)
	archive := buildArchive(Repository, payload)

	r, err := Open(newSeekable(archive))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer r.Close()

	hdr := r.ArchiveHeader()
	if hdr.Type != Repository {
		t.Errorf("Type = %v, want Repository", hdr.Type)
	}
	if hdr.NumPayloads != 1 {
		t.Errorf("NumPayloads = %d, want 1", hdr.NumPayloads)
	}
}

func TestOpenInvalidMagic(t *testing.T) {
	bad := make([]byte, archiveHeaderSize)
	copy(bad, []byte("nope"))

	if _, err := Open(newSeekable(bad)); err == nil {
		t.Error("expected error for invalid magic")
	}
}

func TestOpenUnsupportedVersion(t *testing.T) {
	var buf bytes.Buffer
	buf.Write(magic[:])
	writeU32(&buf, 999)
	buf.WriteByte(byte(Binary))
	writeU32(&buf, 0)

	if _, err := Open(newSeekable(buf.Bytes())); err == nil {
		t.Error("expected error for unsupported version")
	}
}

func TestOpenTruncatedHeader(t *testing.T) {
	if _, err := Open(newSeekable([]byte{0x00, 's', 't'})); err == nil {
		t.Error("expected error for truncated header")
	}
}

func TestPayloadIteratorSkipsUnreadBodies(t *testing.T) {
	p1 := buildPayload(Layout, 0, []byte("layout-body-ignored"))
	p2 := buildPayload(Meta, 1, buildStringRecord(TagName, "nano"))
	archive := buildArchive(Repository, p1, p2)

	r, err := Open(newSeekable(archive))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer r.Close()

	it := r.Payloads()

	if !it.Next() {
		t.Fatalf("expected first payload, err=%v", it.Err())
	}
	if it.Header().Type != Layout {
		t.Errorf("first payload type = %v, want Layout", it.Header().Type)
	}
	// Deliberately do not call Body() here — Next() must still skip past it.

	if !it.Next() {
		t.Fatalf("expected second payload, err=%v", it.Err())
	}
	if it.Header().Type != Meta {
		t.Errorf("second payload type = %v, want Meta", it.Header().Type)
	}

	body, err := it.Body()
	if err != nil {
		t.Fatalf("Body: %v", err)
	}
	meta, err := DecodeMetaPayload(body, it.Header().NumRecords)
	if err != nil {
		t.Fatalf("DecodeMetaPayload: %v", err)
	}
	if meta.Name != "nano" {
		t.Errorf("Name = %q, want nano", meta.Name)
	}

	if it.Next() {
		t.Error("expected no third payload")
	}
	if it.Err() != nil {
		t.Errorf("unexpected error at end of stream: %v", it.Err())
	}
}

func TestPayloadIteratorDecodesZstdBody(t *testing.T) {
	records := buildStringRecord(TagName, "nano")
	payload := buildZstdPayload(Meta, 1, records)
	archive := buildArchive(Repository, payload)

	r, err := Open(newSeekable(archive))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer r.Close()

	it := r.Payloads()
	if !it.Next() {
		t.Fatalf("expected payload, err=%v", it.Err())
	}
	if it.Header().Compression != CompressionZstd {
		t.Fatalf("Compression = %v, want CompressionZstd", it.Header().Compression)
	}

	body, err := it.Body()
	if err != nil {
		t.Fatalf("Body: %v", err)
	}

	meta, err := DecodeMetaPayload(body, it.Header().NumRecords)
	if err != nil {
		t.Fatalf("DecodeMetaPayload: %v", err)
	}
	if meta.Name != "nano" {
		t.Errorf("Name = %q, want nano", meta.Name)
	}
}

func TestPayloadIteratorZstdCorruptBody(t *testing.T) {
	payload := buildZstdPayload(Meta, 1, buildStringRecord(TagName, "nano"))
	archive := buildArchive(Repository, payload)
	// Flip a byte inside the compressed body to make it invalid zstd.
	archive[len(archive)-1] ^= 0xFF

	r, err := Open(newSeekable(archive))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer r.Close()

	it := r.Payloads()
	if !it.Next() {
		t.Fatalf("expected payload, err=%v", it.Err())
	}
	if _, err := it.Body(); err == nil {
		t.Error("expected error decoding corrupted zstd body")
	}
}

func TestPayloadIteratorTruncatedBody(t *testing.T) {
	payload := buildPayload(Meta, 1, buildStringRecord(TagName, "nano"))
	archive := buildArchive(Repository, payload)
	truncated := archive[:len(archive)-5] // chop off the tail of the body

	r, err := Open(newSeekable(truncated))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer r.Close()

	it := r.Payloads()
	if !it.Next() {
		t.Fatalf("expected payload header, err=%v", it.Err())
	}
	if _, err := it.Body(); err == nil {
		t.Error("expected error reading truncated body")
	}
}
