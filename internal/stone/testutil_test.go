package stone

import (
	"bytes"
	"encoding/binary"

	"github.com/klauspost/compress/zstd"
)

// buildArchive assembles a minimal valid stone archive in memory for tests:
// one archive header plus the given already-encoded payloads.
func buildArchive(archiveType ArchiveType, payloads ...[]byte) []byte {
	var buf bytes.Buffer
	buf.Write(magic[:])
	writeU32(&buf, headerVersion)
	buf.WriteByte(byte(archiveType))
	writeU32(&buf, uint32(len(payloads)))
	for _, p := range payloads {
		buf.Write(p)
	}
	return buf.Bytes()
}

// buildPayload encodes one payload header + body (uncompressed).
func buildPayload(ptype PayloadType, numRecords uint32, body []byte) []byte {
	var buf bytes.Buffer
	buf.WriteByte(byte(ptype))
	buf.WriteByte(byte(CompressionNone))
	writeU32(&buf, numRecords)
	writeU64(&buf, uint64(len(body)))
	writeU64(&buf, uint64(len(body)))
	writeU64(&buf, 0) // checksum, unchecked by the reader in these tests
	buf.Write(body)
	return buf.Bytes()
}

// buildZstdPayload encodes one payload header + body compressed with zstd,
// the way a real archive carries a Meta payload on disk.
func buildZstdPayload(ptype PayloadType, numRecords uint32, body []byte) []byte {
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		panic(err)
	}
	compressed := enc.EncodeAll(body, nil)
	_ = enc.Close()

	var buf bytes.Buffer
	buf.WriteByte(byte(ptype))
	buf.WriteByte(byte(CompressionZstd))
	writeU32(&buf, numRecords)
	writeU64(&buf, uint64(len(compressed)))
	writeU64(&buf, uint64(len(body)))
	writeU64(&buf, 0) // checksum, unchecked by the reader in these tests
	buf.Write(compressed)
	return buf.Bytes()
}

// buildStringRecord encodes one tag/type/value record with a String value.
func buildStringRecord(tag Tag, value string) []byte {
	return buildRecord(tag, TypeString, []byte(value))
}

func buildUint64Record(tag Tag, value uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, value)
	return buildRecord(tag, TypeUint64, b)
}

func buildCapabilityRecord(tag Tag, rtype RecordType, capType byte, identifier string) []byte {
	var buf bytes.Buffer
	buf.WriteByte(capType)
	writeU16(&buf, uint16(len(identifier)))
	buf.WriteString(identifier)
	return buildRecord(tag, rtype, buf.Bytes())
}

func buildRecord(tag Tag, rtype RecordType, value []byte) []byte {
	var buf bytes.Buffer
	writeU16(&buf, uint16(tag))
	buf.WriteByte(byte(rtype))
	writeU32(&buf, uint32(len(value)))
	buf.Write(value)
	return buf.Bytes()
}

func writeU16(buf *bytes.Buffer, v uint16) {
	b := make([]byte, 2)
	binary.BigEndian.PutUint16(b, v)
	buf.Write(b)
}

func writeU32(buf *bytes.Buffer, v uint32) {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, v)
	buf.Write(b)
}

func writeU64(buf *bytes.Buffer, v uint64) {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	buf.Write(b)
}
