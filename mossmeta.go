// Package mossmeta provides the metadata catalog, state log, and plugin
// federation behind a source-based package manager: a transactional
// catalog of package metadata (MetaDB), an append-only log of installation
// states and selections (StateDB), a binary archive reader for the
// on-disk "stone" package format, and a Registry that federates queries
// across installed/remote/side-loaded package sources.
//
// Basic usage:
//
//	import (
//		"github.com/git-pkgs/mossmeta"
//		_ "github.com/git-pkgs/mossmeta/all"
//	)
//
//	reg := mossmeta.NewRegistry()
//	for _, kind := range mossmeta.SupportedPluginKinds() {
//		// construct and reg.AddPlugin(...) per configured remote/install root
//	}
//	items := reg.ByName(ctx, "nano")
//
// To automatically register every plugin kind, import the side-effect
// package:
//
//	import (
//		"github.com/git-pkgs/mossmeta"
//		_ "github.com/git-pkgs/mossmeta/all"
//	)
package mossmeta

import (
	"context"

	"github.com/git-pkgs/mossmeta/installation"
	"github.com/git-pkgs/mossmeta/internal/core"
	"github.com/git-pkgs/purl"
)

// Re-export the catalog data model from internal/core.
type (
	// MetaEntry is the catalog row for one package build.
	MetaEntry = core.MetaEntry

	// ItemInfo is a read-only projection of a MetaEntry for display.
	ItemInfo = core.ItemInfo

	// Capability is the shared shape of Provider and Dependency.
	Capability = core.Capability

	// CapabilityType enumerates the fixed set of provider/dependency kinds.
	CapabilityType = core.CapabilityType

	// Provider is a capability a package offers.
	Provider = core.Provider

	// Dependency is a capability a package requires.
	Dependency = core.Dependency

	// StateRecord is one entry in the append-only history of installation states.
	StateRecord = core.StateRecord

	// StateEntry is a single selection within a StateRecord.
	StateEntry = core.StateEntry

	// StateType distinguishes how a StateRecord came to exist.
	StateType = core.StateType

	// SelectionType distinguishes a source-built selection from a binary one.
	SelectionType = core.SelectionType

	// SelectionFlags is a bitmask of selection policy flags.
	SelectionFlags = core.SelectionFlags

	// ItemFlags describes what a RegistryItem represents to a caller.
	ItemFlags = core.ItemFlags

	// RegistryItem is a transient view returned by Registry/plugin queries.
	RegistryItem = core.RegistryItem
)

// Re-export capability type constants.
const (
	PackageName   = core.PackageName
	SharedLibrary = core.SharedLibrary
	PkgConfig     = core.PkgConfig
	Interpreter   = core.Interpreter
	CMake         = core.CMake
	BinaryName    = core.BinaryName
	SystemBinary  = core.SystemBinary
	PkgConfig32   = core.PkgConfig32
)

// Re-export state/selection constants.
const (
	Transaction = core.Transaction
	Snapshot    = core.Snapshot
	Automatic   = core.Automatic

	Source = core.Source
	Binary = core.Binary

	DefaultPolicy = core.DefaultPolicy
	UserInstalled = core.UserInstalled
	DepInstalled  = core.DepInstalled
	Hold          = core.Hold
	PreferSource  = core.PreferSource

	Available = core.Available
	Installed = core.Installed
)

// Re-export the plugin federation.
type (
	// Registry federates an ordered list of plugins.
	Registry = core.Registry

	// Plugin is the capability every package source implements.
	Plugin = core.Plugin

	// FetchSink is the minimal surface a Plugin needs to enqueue a download.
	FetchSink = core.FetchSink

	// Refresher is implemented by plugins whose catalog can be refreshed
	// from an external source.
	Refresher = core.Refresher

	// RefreshResult is one plugin's outcome from RefreshAll.
	RefreshResult = core.RefreshResult
)

// NewRegistry returns an empty Registry; plugins are added in the order
// they should be consulted.
func NewRegistry() *Registry {
	return core.NewRegistry()
}

// RegisterPluginKind registers a plugin constructor under a kind name.
// Plugin packages call this from init(); import a plugin package (or the
// all package, for all of them) for its side effects to make a kind
// available.
func RegisterPluginKind(kind string, factory core.PluginFactory) {
	core.RegisterPluginKind(kind, factory)
}

// NewPlugin constructs a plugin of the given kind from cfg.
func NewPlugin(kind string, cfg any) (Plugin, error) {
	return core.NewPlugin(kind, cfg)
}

// SupportedPluginKinds returns all registered plugin kind names.
// Note: plugin packages must be imported to be registered.
func SupportedPluginKinds() []string {
	return core.SupportedPluginKinds()
}

// RefreshAll runs Refresh concurrently across every named remote,
// collecting a per-remote result rather than failing fast.
func RefreshAll(ctx context.Context, remotes map[string]Refresher) []RefreshResult {
	return core.RefreshAll(ctx, remotes)
}

// AllFailed reports whether every RefreshResult carries an error.
func AllFailed(results []RefreshResult) bool {
	return core.AllFailed(results)
}

// Installation derives every on-disk path this module owns from a single
// root.
type Installation = installation.Installation

// NewInstallation returns an Installation rooted at root ("/" if empty).
func NewInstallation(root string) Installation {
	return installation.New(root)
}

// PURL represents a parsed Package URL.
type PURL = purl.PURL

// ParsePURL parses a Package URL string into its components, e.g.
// "pkg:stone/nano@7.2".
func ParsePURL(purlStr string) (*PURL, error) {
	return purl.Parse(purlStr)
}
