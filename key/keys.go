// Package key defines the canonical set of configuration identifiers used for centralized settings management.
package key

// OAuth provider - these keys locate the authorization server and describe this public client.
const (
	AuthIssuer       = "auth.issuer"
	AuthRealm        = "auth.realm"
	AuthClientID     = "auth.client_id"
	AuthDiscovery    = "auth.discovery"
	AuthCallbackPort = "auth.callback_port"
	AuthRedirectURI  = "auth.redirect_uri"
	AuthLoginTimeout = "auth.login_timeout"
	AuthStore        = "auth.store"
)

// Remote API.
const (
	APIURL = "api.url"
)

// Headless (CI) execution - these keys are normally supplied through the environment by a pipeline.
const (
	CIAccessToken = "ci.access_token"
	CIToken       = "ci.token"
	CIOrgID       = "ci.org_id"
)

// Logging Infrastructure - these keys manage the application's internal diagnostics.
const (
	LogsWrite = "logs.write"
	LogsLevel = "logs.level"
	LogsJson  = "logs.json"
)

// CLI Execution Environment.
const (
	CliColored   = "cli.colored"
	IconsVariant = "icons.variant"
)
