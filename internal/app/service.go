/**
 * @description
 * This file contains the core session-coordination logic for the
 * wallet-service. The `Service` struct owns the authentication lifecycle,
 * the token-expiry gating, the fetch-or-fallback policy for each cached
 * resource type, and the transfer workflow, coordinating between the cache
 * repository, the per-environment Andino clients, and the message broker.
 *
 * Key features:
 * - Explicit dependency injection: every collaborator is handed to
 *   NewService, so independently configured instances can coexist.
 * - The target provider environment is bound per session at authentication
 *   and resolved through the environment directory on every remote call.
 * - Events are published best effort and never fail an operation.
 *
 * @dependencies
 * - context, errors, fmt, log, strings, time: Standard Go libraries.
 * - github.com/google/uuid: For session identifiers.
 * - internal/domain, internal/store, internal/convert: Domain models, data access, unit conversion.
 * - pkg/andinoclient, pkg/rabbitmq: For external service communication.
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
	"github.com/lumapay/wallet-service/internal/convert"
	"github.com/lumapay/wallet-service/internal/domain"
	"github.com/lumapay/wallet-service/internal/store"
	"github.com/lumapay/wallet-service/pkg/andinoclient"
	"github.com/lumapay/wallet-service/pkg/rabbitmq"
)

const defaultBeneficiaryPageSize = 50

var (
	ErrUnauthenticated    = errors.New("session is not authenticated")
	ErrTokenExpired       = errors.New("session token is expired")
	ErrEnvironmentUnknown = errors.New("unknown provider environment")
	ErrSMSRateLimited     = errors.New("sms dispatch rate limited")
)

// SMSRateLimiter bounds how often real SMS dispatches may be requested for
// one subject inside a time window.
type SMSRateLimiter interface {
	ConsumeRateLimit(ctx context.Context, scope, subject string, limit int, window time.Duration) (count int, retryAfterSeconds int, err error)
}

// Service provides the session coordination logic for the wallet-service.
type Service struct {
	repo          store.Repository
	environments  *andinoclient.EnvironmentDirectory
	eventProducer rabbitmq.Publisher
	demoSMSCode   string

	smsLimiter    SMSRateLimiter
	smsRateLimit  int
	smsRateWindow time.Duration
}

// NewService creates a new wallet session coordinator instance.
func NewService(repo store.Repository, environments *andinoclient.EnvironmentDirectory, producer rabbitmq.Publisher, demoSMSCode string) *Service {
	return &Service{
		repo:          repo,
		environments:  environments,
		eventProducer: producer,
		demoSMSCode:   demoSMSCode,
	}
}

// SetSMSRateLimiter attaches a rate limiter for the real-SMS dispatch branch.
// Without one, dispatches are unlimited.
func (s *Service) SetSMSRateLimiter(limiter SMSRateLimiter, limit int, window time.Duration) {
	s.smsLimiter = limiter
	s.smsRateLimit = limit
	s.smsRateWindow = window
}

// authenticatedSession loads the session, enforces the shared authenticated
// precondition (session exists and holds a token), and resolves the Andino
// client for the session's bound environment.
func (s *Service) authenticatedSession(ctx context.Context, sessionID uuid.UUID) (*domain.Session, *andinoclient.Client, error) {
	session, err := s.repo.FindSessionByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, store.ErrSessionNotFound) {
			return nil, nil, ErrUnauthenticated
		}
		return nil, nil, fmt.Errorf("failed to load session: %w", err)
	}
	if !session.Authenticated() {
		return nil, nil, ErrUnauthenticated
	}

	client, ok := s.environments.ClientFor(session.Environment)
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s", ErrEnvironmentUnknown, session.Environment)
	}
	return session, client, nil
}

// publishEvent publishes a wallet event best effort. A failed publish is
// logged and never fails the operation that produced it.
func (s *Service) publishEvent(ctx context.Context, routingKey string, payload interface{}) {
	if s.eventProducer == nil {
		return
	}
	if err := s.eventProducer.Publish(ctx, rabbitmq.WalletEventsExchange, routingKey, payload); err != nil {
		log.Printf("WARN: Failed to publish %s event: %v", routingKey, err)
	}
}

func optionalString(v string) *string {
	trimmed := strings.TrimSpace(v)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func mapProfile(sessionID uuid.UUID, p *andinoclient.Profile) *domain.Profile {
	return &domain.Profile{
		SessionID:      sessionID,
		ProviderUserID: p.ID,
		FirstName:      p.FirstName,
		LastName:       p.LastName,
		Email:          p.Email,
		PhoneNumber:    p.PhoneNumber,
		DocumentNumber: optionalString(p.DocumentNumber),
		TwoFactorType:  strings.ToLower(strings.TrimSpace(p.TwoFactorType)),
	}
}

func mapAccounts(sessionID uuid.UUID, accounts []andinoclient.Account) []domain.Account {
	records := make([]domain.Account, 0, len(accounts))
	for _, account := range accounts {
		records = append(records, domain.Account{
			SessionID:        sessionID,
			AccountID:        account.ID,
			Currency:         account.Currency,
			Balance:          account.Balance,
			AvailableBalance: account.AvailableBalance,
			PendingIn:        account.PendingIn,
			PendingOut:       account.PendingOut,
		})
	}
	return records
}

func mapBeneficiaries(sessionID uuid.UUID, beneficiaries []andinoclient.Beneficiary) []domain.Beneficiary {
	records := make([]domain.Beneficiary, 0, len(beneficiaries))
	for _, beneficiary := range beneficiaries {
		records = append(records, mapBeneficiary(sessionID, beneficiary))
	}
	return records
}

func mapBeneficiary(sessionID uuid.UUID, b andinoclient.Beneficiary) domain.Beneficiary {
	return domain.Beneficiary{
		SessionID:     sessionID,
		BeneficiaryID: b.ID,
		Name:          b.Name,
		AccountNumber: b.AccountNumber,
		BankCode:      b.BankCode,
		BankName:      optionalString(b.BankName),
		Country:       b.Country,
		Type:          b.Type,
		Email:         optionalString(b.Email),
		PhoneNumber:   optionalString(b.PhoneNumber),
	}
}

// viewAccounts converts cached minor-unit account records into the decimal
// major-unit projection returned to callers. Conversion happens only here,
// at the output boundary.
func viewAccounts(accounts []domain.Account) []domain.AccountView {
	views := make([]domain.AccountView, 0, len(accounts))
	for _, account := range accounts {
		views = append(views, domain.AccountView{
			ID:               account.AccountID,
			Currency:         account.Currency,
			Balance:          convert.MinorToMajor(account.Balance),
			AvailableBalance: convert.MinorToMajor(account.AvailableBalance),
			PendingIn:        convert.MinorToMajor(account.PendingIn),
			PendingOut:       convert.MinorToMajor(account.PendingOut),
		})
	}
	return views
}
