/**
 * @description
 * This file defines the core domain models for the wallet-service session
 * lifecycle. A session represents one authenticated relationship with the
 * Andino provider for one local identity, together with the provider data
 * snapshots cached against it.
 *
 * @notes
 * - The provider access token is opaque; expiry is computed locally as
 *   issuance time plus the provider-reported lifetime, and must be checked
 *   against the wall clock on every gated operation. Token presence does
 *   not imply validity.
 * - The credential secret is persisted only as a bcrypt hash; the plaintext
 *   never reaches the store.
 */

package domain

import (
	"time"

	"github.com/google/uuid"
)

// Two-factor method values carried on the cached profile.
const (
	TwoFactorTypeSMS           = "sms"
	TwoFactorTypeAuthenticator = "authenticator"
)

// Session represents one authenticated relationship with the provider for
// one local identity. This struct maps directly to the `wallet_sessions`
// table in the database.
type Session struct {
	ID             uuid.UUID `json:"id"`
	CredentialKey  string    `json:"credential_key"`
	SecretHash     string    `json:"-"`
	Environment    string    `json:"environment"`
	Token          string    `json:"-"`
	TokenExpiresAt time.Time `json:"token_expires_at"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Authenticated reports whether the session holds a token. It says nothing
// about expiry.
func (s *Session) Authenticated() bool {
	return s.Token != ""
}

// TokenExpired reports whether the session's token is past expiry at the
// given instant.
func (s *Session) TokenExpired(at time.Time) bool {
	return at.After(s.TokenExpiresAt)
}

// Profile is the cached snapshot of the wallet owner's profile, replaced
// wholesale on each successful refresh. Maps to the `wallet_profiles` table.
type Profile struct {
	SessionID      uuid.UUID `json:"-"`
	ProviderUserID string    `json:"provider_user_id"`
	FirstName      string    `json:"first_name"`
	LastName       string    `json:"last_name"`
	Email          string    `json:"email"`
	PhoneNumber    string    `json:"phone_number"`
	DocumentNumber *string   `json:"document_number,omitempty"`
	TwoFactorType  string    `json:"two_factor_type"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// AuthResult is the composed view returned by a successful authentication.
// Accounts are converted to major units; the token and its expiry are raw.
// Warnings carries non-fatal degradations (currently only a failed
// beneficiary prefetch) so callers can choose to surface them.
type AuthResult struct {
	SessionID      uuid.UUID     `json:"session_id"`
	Environment    string        `json:"environment"`
	Token          string        `json:"token"`
	TokenExpiresAt time.Time     `json:"token_expires_at"`
	Profile        *Profile      `json:"profile"`
	Accounts       []AccountView `json:"accounts"`
	Beneficiaries  []Beneficiary `json:"beneficiaries"`
	Warnings       []string      `json:"warnings,omitempty"`
}
