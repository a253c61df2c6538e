// Package core provides the shared catalog data model (MetaEntry, Provider,
// Dependency, StateRecord, StateEntry) and the plugin federation that sits
// on top of it.
package core

import "fmt"

// CapabilityType enumerates the fixed set of provider/dependency kinds.
// Go has no tagged unions, so Provider and Dependency are realized as a
// typed tag plus an identifier string, with constructors standing in for
// what would otherwise be named sum-type variants.
type CapabilityType uint8

const (
	PackageName CapabilityType = iota
	SharedLibrary
	PkgConfig
	Interpreter
	CMake
	BinaryName
	SystemBinary
	PkgConfig32
)

func (t CapabilityType) prefix() string {
	switch t {
	case PackageName:
		return ""
	case SharedLibrary:
		return "soname"
	case PkgConfig:
		return "pkgconfig"
	case Interpreter:
		return "interpreter"
	case CMake:
		return "cmake"
	case BinaryName:
		return "binary"
	case SystemBinary:
		return "sysbinary"
	case PkgConfig32:
		return "pkgconfig32"
	default:
		return "unknown"
	}
}

// ParseCapabilityType maps a tag record's type byte to a CapabilityType.
func ParseCapabilityType(b byte) (CapabilityType, error) {
	t := CapabilityType(b)
	if t > PkgConfig32 {
		return 0, fmt.Errorf("unknown capability type %d", b)
	}
	return t, nil
}

// Capability is the shared shape of Provider and Dependency: a kind plus an
// opaque identifier (a soname, a pkg-config name, a plain package name...).
type Capability struct {
	Type       CapabilityType
	Identifier string
}

// String renders the canonical "type(identifier)" form, except PackageName
// which stringifies as the bare identifier per spec.
func (c Capability) String() string {
	if c.Type == PackageName {
		return c.Identifier
	}
	return fmt.Sprintf("%s(%s)", c.Type.prefix(), c.Identifier)
}

// Provider is a capability a package offers.
type Provider struct{ Capability }

// Dependency is a capability a package requires.
type Dependency struct{ Capability }

func NewPackageNameProvider(name string) Provider {
	return Provider{Capability{PackageName, name}}
}

func NewSharedLibraryProvider(soname string) Provider {
	return Provider{Capability{SharedLibrary, soname}}
}

func NewPkgConfigProvider(name string) Provider {
	return Provider{Capability{PkgConfig, name}}
}

// NewProvider builds a Provider from a parsed capability type and identifier,
// as produced while decoding a MetaPayload's Provides records.
func NewProvider(t CapabilityType, identifier string) Provider {
	return Provider{Capability{t, identifier}}
}

// NewDependency builds a Dependency from a parsed capability type and
// identifier, as produced while decoding a MetaPayload's Depends records.
func NewDependency(t CapabilityType, identifier string) Dependency {
	return Dependency{Capability{t, identifier}}
}

// MetaEntry is the catalog row for one package build.
type MetaEntry struct {
	PkgID             string
	Name              string
	VersionIdentifier string
	SourceRelease     uint64
	BuildRelease      uint64
	Architecture      string

	Summary     string
	Description string
	Homepage    string

	SourceID string

	Licenses     []string
	Dependencies []Dependency
	Providers    []Provider

	// Remote-fetch hints; zero-valued for installed-local entries.
	URI          string
	Hash         string
	DownloadSize uint64
}

// ImplicitProvider returns the (PackageName, Name) provider every MetaEntry
// carries in addition to its explicit Providers list.
func (e *MetaEntry) ImplicitProvider() Provider {
	return NewPackageNameProvider(e.Name)
}

// ItemInfo is a read-only projection of a MetaEntry for display.
type ItemInfo struct {
	Name          string
	Summary       string
	Description   string
	SourceRelease uint64
	Version       string
	Homepage      string
	Licenses      []string
}

// PURL returns a stable pkg:stone/<name>@<version> identity string for the
// entry this ItemInfo was projected from. Empty Name yields an empty string.
func (i ItemInfo) PURL() string {
	if i.Name == "" {
		return ""
	}
	if i.Version == "" {
		return fmt.Sprintf("pkg:stone/%s", i.Name)
	}
	return fmt.Sprintf("pkg:stone/%s@%s", i.Name, i.Version)
}

// StateType distinguishes how a StateRecord came to exist.
type StateType uint8

const (
	Transaction StateType = iota
	Snapshot
	Automatic
)

// StateRecord is one entry in the append-only history of installation states.
type StateRecord struct {
	StateID     uint64
	Name        string
	Description string
	Type        StateType
	Timestamp   int64 // seconds since epoch
}

// SelectionType distinguishes a source-built selection from a binary one.
type SelectionType uint8

const (
	Source SelectionType = iota
	Binary
)

// SelectionFlags is a bitmask of selection policy flags.
type SelectionFlags uint32

const (
	DefaultPolicy SelectionFlags = 0
	UserInstalled SelectionFlags = 1 << iota
	DepInstalled
	Hold
	PreferSource
)

// StateEntry is a single selection within a StateRecord.
type StateEntry struct {
	StateID    uint64
	Identifier string
	Type       SelectionType
	Flags      SelectionFlags
}

// ItemFlags describes what a RegistryItem represents to a caller.
type ItemFlags uint32

const (
	Available ItemFlags = 1 << iota
	Installed
)

// RegistryItem is a transient view returned by Registry/plugin queries. It
// borrows its Plugin reference; the plugin must outlive any held items.
type RegistryItem struct {
	PkgID  string
	Plugin Plugin
	Flags  ItemFlags
}
