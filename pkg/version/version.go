package version

import "runtime/debug"

// Build is injected via -ldflags "-X netsentinel/pkg/version.Build=...". Default "dev".
var Build = "dev"

// String returns Build, or the module version stamped by `go install` when Build was not injected.
func String() string {
	if Build != "dev" {
		return Build
	}
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" && info.Main.Version != "(devel)" {
		return info.Main.Version
	}
	return Build
}
