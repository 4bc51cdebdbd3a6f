// Package auth runs the "Sign in with Slack" OAuth flow and exposes the
// signed-in identity to the dashboard.
package auth

import (
	"context"
	"errors"

	"github.com/SghaierFiras/armada-analytics-hub-sub001/identity"
)

var (
	ErrExchangeFailed = errors.New("oauth exchange failed")
	ErrStateMismatch  = errors.New("oauth state mismatch")
	ErrProviderDenied = errors.New("identity provider denied login")
	ErrLogout         = errors.New("logout failed")
)

// Provider is an OAuth identity provider. Implementations return identity
// facts only; sessions are handled by the caller.
type Provider interface {
	// Name returns the provider identifier, e.g. "slack".
	Name() string

	// AuthCodeURL returns the authorization URL for state, carrying the
	// S256 challenge derived from verifier.
	AuthCodeURL(state, verifier string) string

	// Exchange trades an authorization code for the user's profile.
	Exchange(ctx context.Context, code, verifier string) (*identity.Identity, error)
}
