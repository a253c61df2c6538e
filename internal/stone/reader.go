package stone

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/git-pkgs/mossmeta/internal/core"
	"github.com/klauspost/compress/zstd"
)

// Header is the archive-level header: magic, version, archive type, and the
// count of payload headers that follow.
type Header struct {
	Type        ArchiveType
	NumPayloads uint32
}

// PayloadHeader describes one payload's shape; its body immediately follows
// in the stream, StoredSize compressed bytes long.
type PayloadHeader struct {
	Type        PayloadType
	Compression Compression
	NumRecords  uint32
	StoredSize  uint64
	PlainSize   uint64
	Checksum    uint64

	bodyOffset int64
}

// Reader parses a stone archive from a seekable byte source. It holds the
// input open for the reader's lifetime; callers must Close it.
type Reader struct {
	src    io.ReadSeeker
	closer io.Closer
	header Header
}

// Open wraps src (and, if it implements io.Closer, takes ownership of
// closing it) and parses the archive header.
func Open(src io.ReadSeeker) (*Reader, error) {
	r := &Reader{src: src}
	if c, ok := src.(io.Closer); ok {
		r.closer = c
	}

	if err := r.readHeader(); err != nil {
		_ = r.Close()
		return nil, err
	}
	return r, nil
}

func (r *Reader) readHeader() error {
	buf := make([]byte, archiveHeaderSize)
	if _, err := io.ReadFull(r.src, buf); err != nil {
		return core.Wrap("stone.readHeader", core.Corrupt, fmt.Errorf("truncated archive header: %w", err))
	}

	var gotMagic [4]byte
	copy(gotMagic[:], buf[0:4])
	if gotMagic != magic {
		return core.Wrap("stone.readHeader", core.Corrupt, fmt.Errorf("invalid magic %x", gotMagic))
	}

	version := binary.BigEndian.Uint32(buf[4:8])
	if version != headerVersion {
		return core.Wrap("stone.readHeader", core.Corrupt, fmt.Errorf("unsupported archive version %d", version))
	}

	r.header = Header{
		Type:        ArchiveType(buf[8]),
		NumPayloads: binary.BigEndian.Uint32(buf[9:13]),
	}
	return nil
}

// ArchiveHeader returns the parsed archive header.
func (r *Reader) ArchiveHeader() Header {
	return r.header
}

// Close releases the underlying byte source. Safe to call multiple times.
func (r *Reader) Close() error {
	if r.closer == nil {
		return nil
	}
	err := r.closer.Close()
	r.closer = nil
	return err
}

// PayloadIterator lazily walks a stone archive's payload headers, one at a
// time, in the style of bufio.Scanner: call Next() until it returns false,
// then inspect Err() for a parse failure.
type PayloadIterator struct {
	r       *Reader
	remain  uint32
	current PayloadHeader
	err     error
}

// Payloads returns an iterator over this archive's payload headers.
func (r *Reader) Payloads() *PayloadIterator {
	return &PayloadIterator{r: r, remain: r.header.NumPayloads}
}

// Next advances to the next payload header, skipping over the current
// payload's (unread) body first. Returns false at end of stream or on error.
func (it *PayloadIterator) Next() bool {
	if it.err != nil || it.remain == 0 {
		return false
	}

	// Skip past any unread body from the previous payload.
	if it.current.StoredSize > 0 && it.current.bodyOffset > 0 {
		if _, err := it.r.src.Seek(it.current.bodyOffset+int64(it.current.StoredSize), io.SeekStart); err != nil {
			it.err = core.Wrap("stone.next", core.IOError, err)
			return false
		}
	}

	buf := make([]byte, payloadHeaderSize)
	if _, err := io.ReadFull(it.r.src, buf); err != nil {
		it.err = core.Wrap("stone.next", core.Corrupt, fmt.Errorf("truncated payload header: %w", err))
		return false
	}

	offset, err := it.r.src.Seek(0, io.SeekCurrent)
	if err != nil {
		it.err = core.Wrap("stone.next", core.IOError, err)
		return false
	}

	it.current = PayloadHeader{
		Type:        PayloadType(buf[0]),
		Compression: Compression(buf[1]),
		NumRecords:  binary.BigEndian.Uint32(buf[2:6]),
		StoredSize:  binary.BigEndian.Uint64(buf[6:14]),
		PlainSize:   binary.BigEndian.Uint64(buf[14:22]),
		Checksum:    binary.BigEndian.Uint64(buf[22:30]),
		bodyOffset:  offset,
	}
	it.remain--
	return true
}

// Header returns the most recently yielded payload header.
func (it *PayloadIterator) Header() PayloadHeader {
	return it.current
}

// Err returns the first error encountered during iteration, if any.
func (it *PayloadIterator) Err() error {
	return it.err
}

// Body decompresses and returns the current payload's body bytes. Callers
// that don't need the body (e.g. skipping a Layout payload) may omit
// calling this — Next() seeks past unread bodies automatically.
func (it *PayloadIterator) Body() ([]byte, error) {
	if _, err := it.r.src.Seek(it.current.bodyOffset, io.SeekStart); err != nil {
		return nil, core.Wrap("stone.body", core.IOError, err)
	}

	stored := make([]byte, it.current.StoredSize)
	if _, err := io.ReadFull(it.r.src, stored); err != nil {
		return nil, core.Wrap("stone.body", core.Corrupt, fmt.Errorf("truncated payload body: %w", err))
	}

	switch it.current.Compression {
	case CompressionNone:
		return stored, nil

	case CompressionZstd:
		dec, err := zstd.NewReader(bytes.NewReader(stored))
		if err != nil {
			return nil, core.Wrap("stone.body", core.Corrupt, fmt.Errorf("zstd init: %w", err))
		}
		defer dec.Close()

		plain := make([]byte, 0, it.current.PlainSize)
		buf := bytes.NewBuffer(plain)
		if _, err := io.Copy(buf, dec); err != nil {
			return nil, core.Wrap("stone.body", core.Corrupt, fmt.Errorf("zstd decompress: %w", err))
		}
		return buf.Bytes(), nil

	default:
		return nil, core.Wrap("stone.body", core.Corrupt, fmt.Errorf("unsupported compression %d", it.current.Compression))
	}
}
