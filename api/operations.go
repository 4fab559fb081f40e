package api

import (
	"context"
	"errors"
)

// ErrNoOrganization is returned when user setup finished without an organization.
var ErrNoOrganization = errors.New("account has no organization")

const exchangeOrgAccessTokenMutation = `
mutation ($input: ExchangeOrgAccessTokenInput!) {
	exchangeOrgAccessToken (input: $input) {
		accessToken
		refreshToken
	}
}
`

const userSetupStatusQuery = `
query {
	userSetupStatus {
		isComplete
		orgId
	}
}
`

const completeUserSetupMutation = `
mutation {
	completeUserSetup {
		isComplete
		orgId
	}
}
`

// OrgTokens is an org-scoped access token and the long-lived token it was issued against.
type OrgTokens struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// SetupStatus reports whether the account finished first-time setup.
type SetupStatus struct {
	IsComplete bool `json:"isComplete"`
	OrgID      *int `json:"orgId"`
}

// ExchangeOrgAccessToken issues org-scoped tokens. A nil previousToken provisions
// a new long-lived token for the calling user; otherwise previousToken is exchanged.
func (c *Client) ExchangeOrgAccessToken(ctx context.Context, orgID int, previousToken *string) (*OrgTokens, error) {
	var data struct {
		Tokens *OrgTokens `json:"exchangeOrgAccessToken"`
	}

	vars := map[string]any{
		"input": map[string]any{
			"orgId":         orgID,
			"previousToken": previousToken,
		},
	}

	if err := c.Do(ctx, exchangeOrgAccessTokenMutation, vars, &data); err != nil {
		return nil, err
	}
	if data.Tokens == nil {
		return nil, errors.New("api: empty token exchange response")
	}
	return data.Tokens, nil
}

// UserSetupStatus queries the setup state of the calling user.
func (c *Client) UserSetupStatus(ctx context.Context) (*SetupStatus, error) {
	var data struct {
		Status SetupStatus `json:"userSetupStatus"`
	}
	if err := c.Do(ctx, userSetupStatusQuery, nil, &data); err != nil {
		return nil, err
	}
	return &data.Status, nil
}

// CompleteUserSetup finishes setup for the calling user. It is idempotent.
func (c *Client) CompleteUserSetup(ctx context.Context) (*SetupStatus, error) {
	var data struct {
		Status SetupStatus `json:"completeUserSetup"`
	}
	if err := c.Do(ctx, completeUserSetupMutation, nil, &data); err != nil {
		return nil, err
	}
	return &data.Status, nil
}

// EnsureUserSetup completes setup if needed and returns the organization id.
func (c *Client) EnsureUserSetup(ctx context.Context) (int, error) {
	status, err := c.UserSetupStatus(ctx)
	if err != nil {
		return 0, err
	}

	if !status.IsComplete {
		if status, err = c.CompleteUserSetup(ctx); err != nil {
			return 0, err
		}
	}

	if status.OrgID == nil {
		return 0, ErrNoOrganization
	}
	return *status.OrgID, nil
}
