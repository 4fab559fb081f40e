// Package auth owns the interactive session credentials.
//
// Service is the access token provider every remote client goes through: it returns the stored
// access token while it is comfortably valid and refreshes it through the OAuth provider otherwise.
// OAuthClient speaks to the provider's authorization, token and logout endpoints as a public
// (secret-less) PKCE client.
package auth
