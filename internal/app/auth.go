/**
 * @description
 * This file implements the authentication and token lifecycle logic. A
 * successful authenticate binds a provider environment to the session, stores
 * the freshly issued token with its absolute expiry, and primes the local
 * cache with the provider's profile, account, and beneficiary snapshots.
 *
 * @notes
 * - Tokens are never refreshed implicitly. Gated operations fail with
 *   ErrTokenExpired and the caller re-authenticates.
 * - A beneficiary prefetch failure does not abort authentication; it resets
 *   the cached list to empty and surfaces as a warning on the result.
 *
 * @dependencies
 * - golang.org/x/crypto/bcrypt: Secret hashing for at-rest storage.
 */

package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/lumapay/wallet-service/internal/domain"
	"github.com/lumapay/wallet-service/internal/store"
	"github.com/lumapay/wallet-service/pkg/andinoclient"
	"github.com/lumapay/wallet-service/pkg/rabbitmq"
)

// Authenticate exchanges provider credentials for a token, binds the session
// to the target environment, and primes the cached snapshots. The first
// authenticate for a credential key creates the session implicitly.
func (s *Service) Authenticate(ctx context.Context, credentialKey, secret, environment string) (*domain.AuthResult, error) {
	envName, client, err := s.resolveEnvironment(environment)
	if err != nil {
		return nil, err
	}
	log.Printf("Authenticate: Starting authentication for credential %s against environment %s", credentialKey, envName)

	// 1. Exchange credentials for a provider token. A rejection here means no
	// session is created or touched for unknown credentials.
	tokenResp, err := client.IssueToken(ctx, credentialKey, secret)
	if err != nil {
		return nil, fmt.Errorf("token issuance failed: %w", err)
	}
	issuedAt := time.Now().UTC()
	expiresAt := issuedAt.Add(time.Duration(tokenResp.ExpiresIn) * time.Second)

	// 2. Find or create the local session for this credential key.
	secretHash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash credential secret: %w", err)
	}
	session, firstLogin, err := s.findOrCreateSession(ctx, credentialKey, string(secretHash), envName)
	if err != nil {
		return nil, err
	}

	// 3. Overwrite the stored token, expiry, and environment binding.
	if err := s.repo.ReplaceToken(ctx, session.ID, envName, string(secretHash), tokenResp.AccessToken, expiresAt); err != nil {
		return nil, fmt.Errorf("failed to store session token: %w", err)
	}

	// 4. Prime the profile snapshot. Authentication has no cache fallback, so
	// a failure here aborts the whole operation.
	remoteProfile, err := client.GetProfile(ctx, tokenResp.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch profile: %w", err)
	}
	profile := mapProfile(session.ID, remoteProfile)
	if err := s.repo.ReplaceProfile(ctx, session.ID, profile); err != nil {
		return nil, fmt.Errorf("failed to cache profile: %w", err)
	}

	// 5. Prime the account snapshot, same abort-on-failure rule.
	remoteAccounts, err := client.GetAccounts(ctx, tokenResp.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch accounts: %w", err)
	}
	accounts := mapAccounts(session.ID, remoteAccounts)
	if err := s.repo.ReplaceAccounts(ctx, session.ID, accounts); err != nil {
		return nil, fmt.Errorf("failed to cache accounts: %w", err)
	}

	// 6. Prime the beneficiary snapshot. This one is non-fatal: on failure the
	// cached list resets to empty and the result carries a warning.
	var warnings []string
	beneficiaries := []domain.Beneficiary{}
	page, benErr := client.GetBeneficiaries(ctx, tokenResp.AccessToken, 0, defaultBeneficiaryPageSize)
	if benErr != nil {
		log.Printf("WARN: Authenticate: beneficiary prefetch failed for session %s: %v", session.ID, benErr)
		warnings = append(warnings, fmt.Sprintf("beneficiary list unavailable: %v", benErr))
	} else {
		beneficiaries = mapBeneficiaries(session.ID, page.Rows)
	}
	if err := s.repo.ReplaceBeneficiaries(ctx, session.ID, beneficiaries); err != nil {
		return nil, fmt.Errorf("failed to cache beneficiaries: %w", err)
	}

	log.Printf("Authenticate: Session %s authenticated, token valid until %s", session.ID, expiresAt.Format(time.RFC3339))

	// 7. Announce the authentication best effort.
	s.publishEvent(ctx, rabbitmq.RoutingKeySessionAuthenticated, domain.SessionAuthenticatedPayload{
		SessionID:      session.ID,
		CredentialKey:  credentialKey,
		Environment:    envName,
		TokenExpiresAt: expiresAt,
		FirstLogin:     firstLogin,
	})

	return &domain.AuthResult{
		SessionID:      session.ID,
		Environment:    envName,
		Token:          tokenResp.AccessToken,
		TokenExpiresAt: expiresAt,
		Profile:        profile,
		Accounts:       viewAccounts(accounts),
		Beneficiaries:  beneficiaries,
		Warnings:       warnings,
	}, nil
}

// findOrCreateSession returns the session for the credential key, creating it
// on first authentication. Two concurrent first logins race on the unique
// credential key; the loser reloads the winner's row.
func (s *Service) findOrCreateSession(ctx context.Context, credentialKey, secretHash, environment string) (*domain.Session, bool, error) {
	session, err := s.repo.FindSessionByCredentialKey(ctx, credentialKey)
	if err == nil {
		return session, false, nil
	}
	if !errors.Is(err, store.ErrSessionNotFound) {
		return nil, false, fmt.Errorf("failed to look up session: %w", err)
	}

	created := &domain.Session{
		ID:            uuid.New(),
		CredentialKey: credentialKey,
		SecretHash:    secretHash,
		Environment:   environment,
	}
	createErr := s.repo.CreateSession(ctx, created)
	if createErr == nil {
		log.Printf("Authenticate: Created session %s for credential %s", created.ID, credentialKey)
		return created, true, nil
	}
	if !errors.Is(createErr, store.ErrSessionExists) {
		return nil, false, fmt.Errorf("failed to create session: %w", createErr)
	}

	session, err = s.repo.FindSessionByCredentialKey(ctx, credentialKey)
	if err != nil {
		return nil, false, fmt.Errorf("failed to reload session after concurrent create: %w", err)
	}
	return session, false, nil
}

func (s *Service) resolveEnvironment(name string) (string, *andinoclient.Client, error) {
	resolved := strings.TrimSpace(name)
	if resolved == "" {
		resolved = s.environments.DefaultEnvironment()
	}
	client, ok := s.environments.ClientFor(resolved)
	if !ok {
		return "", nil, fmt.Errorf("%w: %q", ErrEnvironmentUnknown, resolved)
	}
	return resolved, client, nil
}
