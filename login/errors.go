package login

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidRequest     = errors.New("invalid callback request")
	ErrInvalidCallbackURL = errors.New("invalid callback URL")
	ErrMissingState       = errors.New("callback is missing the state parameter")
	ErrStateMismatch      = errors.New("state verification failed")
	ErrNoCode             = errors.New("no authorization code returned")
	ErrCancelled          = errors.New("login cancelled")
	ErrTimeout            = errors.New("timed out waiting for the login callback")

	ErrAlreadyAuthenticated = errors.New("already authenticated")
	ErrDifferentAccount     = errors.New("authenticated as a different account")
	ErrAccessDenied         = errors.New("access denied")
)

// Provider error codes with tailored handling. Anything else is a generic denial.
const (
	codeAlreadyAuthenticated = "already_authenticated"
	codeDifferentAccount     = "different_user_authenticated"
)

// ProviderError is an "error" reported by the provider on the callback.
// It matches ErrAlreadyAuthenticated, ErrDifferentAccount or ErrAccessDenied.
type ProviderError struct {
	Code        string
	Description string
}

func (e *ProviderError) Error() string {
	if e.Description == "" {
		return fmt.Sprintf("login failed: %s", e.Code)
	}
	return fmt.Sprintf("login failed: %s (%s)", e.Code, e.Description)
}

func (e *ProviderError) kind() error {
	switch e.Code {
	case codeAlreadyAuthenticated:
		return ErrAlreadyAuthenticated
	case codeDifferentAccount:
		return ErrDifferentAccount
	default:
		return ErrAccessDenied
	}
}

func (e *ProviderError) Is(target error) bool {
	return target == e.kind()
}

// Remediation tells the operator what to do next.
func (e *ProviderError) Remediation() string {
	switch e.kind() {
	case ErrAlreadyAuthenticated:
		return "The browser already holds a session. Close the login tab and run \"eolscan auth login\" again."
	case ErrDifferentAccount:
		return "The browser is signed in with another account. Sign out of it, then run \"eolscan auth login\" again."
	default:
		return "Access was denied by the identity provider. Check your account, then run \"eolscan auth login\" again."
	}
}

// page is the text/plain body shown in the browser for a provider error.
func (e *ProviderError) page() string {
	switch e.kind() {
	case ErrAlreadyAuthenticated:
		return "You are already logged in. Close this window and return to the terminal."
	case ErrDifferentAccount:
		return "A different account is signed in. Sign out and restart the login from the terminal."
	default:
		return "Login was denied. Close this window and check the terminal."
	}
}
