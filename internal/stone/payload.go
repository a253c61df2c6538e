package stone

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"

	"github.com/git-pkgs/mossmeta/internal/core"
)

// MetaPayload is the decoded form of a Meta payload: one package's worth of
// tag/type/value records. Fields are populated as records are encountered;
// unknown tags and Conflicts records are tolerated and discarded.
type MetaPayload struct {
	Name              string
	VersionIdentifier string
	SourceRelease     uint64
	BuildRelease      uint64
	Architecture      string
	Summary           string
	Description       string
	Homepage          string
	SourceID          string
	Licenses          []string
	Depends           []core.Dependency
	Provides          []core.Provider
	URI               string
	Hash              string
	Size              uint64
}

// DecodeMetaPayload parses a Meta payload body into a MetaPayload,
// consuming exactly numRecords tag/type/value records.
func DecodeMetaPayload(body []byte, numRecords uint32) (*MetaPayload, error) {
	m := &MetaPayload{}
	offset := 0

	for i := uint32(0); i < numRecords; i++ {
		if offset+recordHeaderSize > len(body) {
			return nil, core.WrapAt("stone.decodeMeta", core.Corrupt, int64(offset), fmt.Errorf("truncated record header"))
		}

		tag := Tag(binary.BigEndian.Uint16(body[offset : offset+2]))
		rtype := RecordType(body[offset+2])
		length := binary.BigEndian.Uint32(body[offset+3 : offset+7])
		offset += recordHeaderSize

		if offset+int(length) > len(body) {
			return nil, core.WrapAt("stone.decodeMeta", core.Corrupt, int64(offset), fmt.Errorf("record value overruns payload"))
		}
		value := body[offset : offset+int(length)]
		offset += int(length)

		if err := m.applyRecord(tag, rtype, value); err != nil {
			return nil, err
		}
	}

	return m, nil
}

func (m *MetaPayload) applyRecord(tag Tag, rtype RecordType, value []byte) error {
	// Conflicts and Unknown tags are tolerated but not modeled — we still
	// have to decode the value far enough to advance, which the caller has
	// already done via the length-prefixed record framing.
	if tag == TagConflicts || tag == TagUnknown {
		return nil
	}

	switch rtype {
	case TypeInt8:
		if len(value) < 1 {
			return core.Wrap("stone.applyRecord", core.Corrupt, fmt.Errorf("tag %d: empty int8 value", tag))
		}
		m.applyInt(tag, uint64(value[0]))

	case TypeUint64:
		if len(value) < 8 {
			return core.Wrap("stone.applyRecord", core.Corrupt, fmt.Errorf("tag %d: short uint64 value", tag))
		}
		m.applyInt(tag, binary.BigEndian.Uint64(value[:8]))

	case TypeString:
		m.applyString(tag, string(value))

	case TypeDependency:
		dep, err := decodeCapability(value)
		if err != nil {
			return core.Wrap("stone.applyRecord", core.Corrupt, fmt.Errorf("tag %d: %w", tag, err))
		}
		m.Depends = append(m.Depends, core.NewDependency(dep.Type, dep.Identifier))

	case TypeProvider:
		prov, err := decodeCapability(value)
		if err != nil {
			return core.Wrap("stone.applyRecord", core.Corrupt, fmt.Errorf("tag %d: %w", tag, err))
		}
		m.Provides = append(m.Provides, core.NewProvider(prov.Type, prov.Identifier))

	default:
		return core.Wrap("stone.applyRecord", core.Corrupt, fmt.Errorf("tag %d: unknown record type %d", tag, rtype))
	}
	return nil
}

func (m *MetaPayload) applyInt(tag Tag, v uint64) {
	switch tag {
	case TagRelease:
		m.SourceRelease = v
	case TagBuildRelease:
		m.BuildRelease = v
	case TagPackageSize:
		m.Size = v
	}
}

func (m *MetaPayload) applyString(tag Tag, v string) {
	switch tag {
	case TagName:
		m.Name = v
	case TagVersion:
		m.VersionIdentifier = v
	case TagArchitecture:
		m.Architecture = v
	case TagSummary:
		m.Summary = v
	case TagDescription:
		m.Description = v
	case TagHomepage:
		m.Homepage = v
	case TagSourceID:
		m.SourceID = v
	case TagLicense:
		m.Licenses = append(m.Licenses, v)
	case TagPackageURI:
		m.URI = v
	case TagPackageHash:
		m.Hash = v
	}
}

type capability struct {
	Type       core.CapabilityType
	Identifier string
}

func decodeCapability(value []byte) (capability, error) {
	if len(value) < capabilityRecordHeaderSize {
		return capability{}, fmt.Errorf("truncated capability value")
	}

	t, err := core.ParseCapabilityType(value[0])
	if err != nil {
		return capability{}, err
	}

	idLen := binary.BigEndian.Uint16(value[1:3])
	if len(value) < capabilityRecordHeaderSize+int(idLen) {
		return capability{}, fmt.Errorf("truncated capability identifier")
	}

	return capability{Type: t, Identifier: string(value[3 : 3+idLen])}, nil
}

// PkgID computes a stable identifier for this payload from its identity
// fields: same (name, version, sourceRelease, buildRelease, architecture)
// always yields the same pkgID.
func (m *MetaPayload) PkgID() string {
	h := sha256.New()
	fmt.Fprintf(h, "%s\x00%s\x00%d\x00%d\x00%s",
		m.Name, m.VersionIdentifier, m.SourceRelease, m.BuildRelease, m.Architecture)
	return hex.EncodeToString(h.Sum(nil))
}

// ToMetaEntry materializes a catalog-ready MetaEntry from this payload.
func (m *MetaPayload) ToMetaEntry() *core.MetaEntry {
	return &core.MetaEntry{
		PkgID:             m.PkgID(),
		Name:              m.Name,
		VersionIdentifier: m.VersionIdentifier,
		SourceRelease:     m.SourceRelease,
		BuildRelease:      m.BuildRelease,
		Architecture:      m.Architecture,
		Summary:           m.Summary,
		Description:       m.Description,
		Homepage:          m.Homepage,
		SourceID:          m.SourceID,
		Licenses:          m.Licenses,
		Dependencies:      m.Depends,
		Providers:         m.Provides,
		URI:               m.URI,
		Hash:              m.Hash,
		DownloadSize:      m.Size,
	}
}
