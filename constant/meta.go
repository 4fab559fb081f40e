// Package constant defines immutable application-level identifiers and build metadata.
package constant

const (
	// App is the canonical application identifier used for filesystem paths, env prefixes and CLI branding.
	App = "eolscan"

	// Version is the current application semantic version string.
	Version = "0.4.0"
)

// Build metadata, overridden at link time with -ldflags "-X".
var (
	BuiltAt  = "unknown"
	BuiltBy  = "unknown"
	Revision = "unknown"
)

// UserAgent is sent with every request to the remote API and the OAuth provider.
const UserAgent = App + "-cli/" + Version
