// Package all imports every Plugin implementation for its side effects,
// registering each under its plugin kind.
//
//	import (
//		"github.com/git-pkgs/mossmeta/internal/core"
//		_ "github.com/git-pkgs/mossmeta/all"
//	)
//
//	// Now every plugin kind is available.
//	kinds := core.SupportedPluginKinds() // cobble, installed and remote, in no fixed order
package all

import (
	_ "github.com/git-pkgs/mossmeta/internal/plugin/cobble"
	_ "github.com/git-pkgs/mossmeta/internal/plugin/installed"
	_ "github.com/git-pkgs/mossmeta/internal/plugin/remote"
)
