/**
 * @description
 * This file defines the `Repository` interface, which specifies the contract
 * for all cache-store operations required by the wallet-service. By defining
 * an interface, we decouple the coordinator's policy logic from the specific
 * database implementation (e.g., PostgreSQL), making the code more modular
 * and easier to test.
 *
 * @notes
 * - Every write is a wholesale replace of one resource type for one session;
 *   no method merges individual records.
 *
 * @dependencies
 * - context, time: Standard Go libraries.
 * - github.com/google/uuid: For session identifiers.
 * - internal/domain: For the service's domain models.
 */

package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/lumapay/wallet-service/internal/domain"
)

// Repository defines the set of methods for interacting with the cache store.
type Repository interface {
	// Session methods
	FindSessionByCredentialKey(ctx context.Context, credentialKey string) (*domain.Session, error)
	FindSessionByID(ctx context.Context, sessionID uuid.UUID) (*domain.Session, error)
	CreateSession(ctx context.Context, session *domain.Session) error
	// ReplaceToken overwrites the token, its expiry, and the environment and
	// secret hash bound at the same authentication. Tokens are never merged.
	ReplaceToken(ctx context.Context, sessionID uuid.UUID, environment, secretHash, token string, expiresAt time.Time) error

	// Snapshot methods
	ReplaceProfile(ctx context.Context, sessionID uuid.UUID, profile *domain.Profile) error
	GetCachedProfile(ctx context.Context, sessionID uuid.UUID) (*domain.Profile, error)
	ReplaceAccounts(ctx context.Context, sessionID uuid.UUID, accounts []domain.Account) error
	GetCachedAccounts(ctx context.Context, sessionID uuid.UUID) ([]domain.Account, error)
	ReplaceBeneficiaries(ctx context.Context, sessionID uuid.UUID, beneficiaries []domain.Beneficiary) error
	GetCachedBeneficiaries(ctx context.Context, sessionID uuid.UUID) ([]domain.Beneficiary, error)

	// Maintenance methods
	ListSessionsWithValidToken(ctx context.Context, asOf time.Time, limit int) ([]domain.Session, error)
}
