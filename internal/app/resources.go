/**
 * @description
 * This file implements the fetch-with-fallback policy for the cached
 * resource snapshots (accounts, beneficiaries) and beneficiary creation with
 * cache reconciliation. Refresh results carry an explicit Fresh flag so
 * callers can tell a live snapshot from a degraded cached one.
 *
 * @notes
 * - Fallback fires only on provider unavailability (transport failure or
 *   5xx). Provider rejections such as validation errors propagate verbatim.
 * - Token expiry is gated on the accounts path only; other paths let the
 *   provider judge the token.
 *
 * @dependencies
 * - pkg/andinoclient: Provider calls and the unavailability classifier.
 */

package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/lumapay/wallet-service/internal/domain"
	"github.com/lumapay/wallet-service/internal/store"
	"github.com/lumapay/wallet-service/pkg/andinoclient"
	"github.com/lumapay/wallet-service/pkg/rabbitmq"
)

// RefreshAccounts pulls the live account snapshot for the session, replaces
// the cached copy, and returns it in major units. When the provider is
// unavailable it serves the last cached snapshot instead, marked not fresh.
func (s *Service) RefreshAccounts(ctx context.Context, sessionID uuid.UUID) (*domain.AccountsResult, error) {
	session, client, err := s.authenticatedSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.TokenExpired(time.Now().UTC()) {
		return nil, ErrTokenExpired
	}

	remoteAccounts, err := client.GetAccounts(ctx, session.Token)
	if err != nil {
		if andinoclient.IsUnavailable(err) {
			log.Printf("WARN: RefreshAccounts: provider unavailable for session %s, serving cached snapshot: %v", sessionID, err)
			cached, cacheErr := s.repo.GetCachedAccounts(ctx, sessionID)
			if cacheErr != nil {
				return nil, fmt.Errorf("failed to read cached accounts: %w", cacheErr)
			}
			return &domain.AccountsResult{Accounts: viewAccounts(cached), Fresh: false}, nil
		}
		return nil, fmt.Errorf("failed to fetch accounts: %w", err)
	}

	records := mapAccounts(sessionID, remoteAccounts)
	if err := s.repo.ReplaceAccounts(ctx, sessionID, records); err != nil {
		return nil, fmt.Errorf("failed to cache accounts: %w", err)
	}
	return &domain.AccountsResult{Accounts: viewAccounts(records), Fresh: true}, nil
}

// RefreshBeneficiaries pulls one page of the live beneficiary list, replaces
// the cached snapshot with it, and returns it. Same fallback policy as
// RefreshAccounts.
func (s *Service) RefreshBeneficiaries(ctx context.Context, sessionID uuid.UUID, offset, limit int) (*domain.BeneficiariesResult, error) {
	session, client, err := s.authenticatedSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = defaultBeneficiaryPageSize
	}
	if offset < 0 {
		offset = 0
	}

	page, err := client.GetBeneficiaries(ctx, session.Token, offset, limit)
	if err != nil {
		if andinoclient.IsUnavailable(err) {
			log.Printf("WARN: RefreshBeneficiaries: provider unavailable for session %s, serving cached snapshot: %v", sessionID, err)
			cached, cacheErr := s.repo.GetCachedBeneficiaries(ctx, sessionID)
			if cacheErr != nil {
				return nil, fmt.Errorf("failed to read cached beneficiaries: %w", cacheErr)
			}
			return &domain.BeneficiariesResult{Beneficiaries: cached, Fresh: false}, nil
		}
		return nil, fmt.Errorf("failed to fetch beneficiaries: %w", err)
	}

	records := mapBeneficiaries(sessionID, page.Rows)
	if err := s.repo.ReplaceBeneficiaries(ctx, sessionID, records); err != nil {
		return nil, fmt.Errorf("failed to cache beneficiaries: %w", err)
	}
	return &domain.BeneficiariesResult{Beneficiaries: records, Fresh: true}, nil
}

// CreateBeneficiary submits a new beneficiary to the provider and then
// reconciles the cache with a full refresh rather than appending the single
// record locally. The provider may have assigned server-side fields or
// silently deduplicated, so its list is the canonical one.
func (s *Service) CreateBeneficiary(ctx context.Context, sessionID uuid.UUID, input domain.CreateBeneficiaryInput) (*domain.BeneficiaryCreateResult, error) {
	session, client, err := s.authenticatedSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	log.Printf("CreateBeneficiary: Submitting beneficiary %q for session %s", input.Name, sessionID)

	created, err := client.CreateBeneficiary(ctx, session.Token, andinoclient.CreateBeneficiaryRequest{
		Name:          input.Name,
		AccountNumber: input.AccountNumber,
		BankCode:      input.BankCode,
		BankName:      input.BankName,
		Country:       input.Country,
		Type:          input.Type,
		Email:         input.Email,
		PhoneNumber:   input.PhoneNumber,
	})
	if err != nil {
		return nil, fmt.Errorf("beneficiary creation failed: %w", err)
	}

	// Creation already happened on the provider side. A reconcile that merely
	// degrades to the cached snapshot is still a success; only a hard cache
	// failure surfaces.
	refreshed, err := s.RefreshBeneficiaries(ctx, sessionID, 0, defaultBeneficiaryPageSize)
	if err != nil {
		return nil, fmt.Errorf("beneficiary created but cache reconcile failed: %w", err)
	}

	s.publishEvent(ctx, rabbitmq.RoutingKeyBeneficiaryCreated, domain.BeneficiaryCreatedPayload{
		SessionID:     sessionID,
		BeneficiaryID: created.ID,
		Name:          created.Name,
		BankCode:      created.BankCode,
		Country:       created.Country,
	})

	return &domain.BeneficiaryCreateResult{
		Created:       mapBeneficiary(sessionID, *created),
		Beneficiaries: refreshed.Beneficiaries,
		Fresh:         refreshed.Fresh,
	}, nil
}

// CachedProfile returns the last cached profile snapshot without contacting
// the provider.
func (s *Service) CachedProfile(ctx context.Context, sessionID uuid.UUID) (*domain.Profile, error) {
	if _, _, err := s.authenticatedSession(ctx, sessionID); err != nil {
		return nil, err
	}
	profile, err := s.repo.GetCachedProfile(ctx, sessionID)
	if err != nil {
		if errors.Is(err, store.ErrProfileNotCached) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to read cached profile: %w", err)
	}
	return profile, nil
}

// CachedAccounts returns the last cached account snapshot in major units
// without contacting the provider.
func (s *Service) CachedAccounts(ctx context.Context, sessionID uuid.UUID) (*domain.AccountsResult, error) {
	if _, _, err := s.authenticatedSession(ctx, sessionID); err != nil {
		return nil, err
	}
	cached, err := s.repo.GetCachedAccounts(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to read cached accounts: %w", err)
	}
	return &domain.AccountsResult{Accounts: viewAccounts(cached), Fresh: false}, nil
}

// CachedBeneficiaries returns the last cached beneficiary snapshot without
// contacting the provider.
func (s *Service) CachedBeneficiaries(ctx context.Context, sessionID uuid.UUID) (*domain.BeneficiariesResult, error) {
	if _, _, err := s.authenticatedSession(ctx, sessionID); err != nil {
		return nil, err
	}
	cached, err := s.repo.GetCachedBeneficiaries(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to read cached beneficiaries: %w", err)
	}
	return &domain.BeneficiariesResult{Beneficiaries: cached, Fresh: false}, nil
}
