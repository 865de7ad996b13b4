package build

// rawVersion is the semantic version of the walletindexerd binary.
var rawVersion = "v0.1.0"

// Version is the current version of walletindexerd, set from rawVersion.
var Version = rawVersion

// GitRevision is set at build time via -ldflags to the short commit hash
// the binary was built from. Left blank for non-release builds.
var GitRevision string
