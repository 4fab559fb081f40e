package ci

import "fmt"

// ProvisionCommand is the command that creates a CI token.
const ProvisionCommand = "eolscan auth provision-ci-token"

// MissingTokenError means no CI token could be found in the environment or the token store.
type MissingTokenError struct {
	EnvVar string
}

func (e *MissingTokenError) Error() string {
	return "no CI token found"
}

func (e *MissingTokenError) Remediation() string {
	return fmt.Sprintf("Run %q on a workstation and set %s in the CI environment.", ProvisionCommand, e.EnvVar)
}

// MissingOrgError means a CI token was found but not the organization it belongs to.
type MissingOrgError struct {
	EnvVar string
}

func (e *MissingOrgError) Error() string {
	return "CI token found, but no organization id"
}

func (e *MissingOrgError) Remediation() string {
	return fmt.Sprintf("Set %s to the organization the token was provisioned for, or re-run %q.", e.EnvVar, ProvisionCommand)
}

// ExchangeError means the CI token could not be exchanged for an access token.
type ExchangeError struct {
	OrgID int
	Err   error
}

func (e *ExchangeError) Error() string {
	return fmt.Sprintf("CI token exchange for organization %d failed: %v", e.OrgID, e.Err)
}

func (e *ExchangeError) Unwrap() error { return e.Err }

func (e *ExchangeError) Remediation() string {
	return fmt.Sprintf("The CI token may have been revoked or rotated elsewhere. Provision a new one with %q.", ProvisionCommand)
}
