// Package stone parses the binary "stone" archive format: a fixed header
// followed by N payload headers, each carrying a compressed payload body.
package stone

// ArchiveType distinguishes a single built package from a repository index.
type ArchiveType uint8

const (
	Binary ArchiveType = iota + 1
	Repository
)

func (t ArchiveType) String() string {
	switch t {
	case Binary:
		return "binary"
	case Repository:
		return "repository"
	default:
		return "unknown"
	}
}

// PayloadType enumerates the payload kinds an archive may carry. This spec
// only consumes Meta; Layout and Index are recognized but skipped.
type PayloadType uint8

const (
	Meta PayloadType = iota + 1
	Layout
	Index
)

// Compression enumerates how a payload body is compressed on disk.
type Compression uint8

const (
	CompressionNone Compression = iota
	CompressionZstd
)

// Tag enumerates MetaPayload record kinds.
type Tag uint16

const (
	TagUnknown Tag = iota
	TagName
	TagVersion
	TagRelease
	TagBuildRelease
	TagArchitecture
	TagSummary
	TagDescription
	TagHomepage
	TagLicense
	TagSourceID
	TagDepends
	TagProvides
	TagConflicts
	TagPackageURI
	TagPackageHash
	TagPackageSize
)

// RecordType selects how a MetaPayload record's value bytes are decoded.
type RecordType uint8

const (
	TypeInt8 RecordType = iota
	TypeUint64
	TypeString
	TypeDependency
	TypeProvider
)

// magic identifies a stone archive. Exact bytes are an implementation detail
// spec.md leaves unspecified beyond "magic + version header"; chosen to be
// distinctive and easy to eyeball in a hex dump.
var magic = [4]byte{0x00, 's', 't', 'n'}

// headerVersion is the only archive header version this reader understands.
const headerVersion uint32 = 1

// archiveHeaderSize is the fixed on-disk size of Header, in bytes:
// magic(4) + version(4) + type(1) + numPayloads(4).
const archiveHeaderSize = 4 + 4 + 1 + 4

// payloadHeaderSize is the fixed on-disk size of a PayloadHeader, in bytes:
// type(1) + compression(1) + numRecords(4) + storedSize(8) + plainSize(8) + checksum(8).
const payloadHeaderSize = 1 + 1 + 4 + 8 + 8 + 8

// recordHeaderSize is the fixed on-disk size of a MetaPayload record header:
// tag(2) + type(1) + length(4).
const recordHeaderSize = 2 + 1 + 4

// capabilityRecordHeaderSize is type(1) + identifier_len(2) preceding the
// identifier bytes of a Dependency/Provider record value.
const capabilityRecordHeaderSize = 1 + 2
