/**
 * @description
 * This file implements the transfer workflow: simulate, the optional SMS
 * second factor, and execute. The provider owns transfer state; this layer
 * converts amounts at the boundary, enforces the local session preconditions,
 * and decides the 2FA dispatch branch. Nothing here mutates the local cache.
 *
 * @notes
 * - The SMS decision is a strict three-way branch: authenticator short
 *   circuit, then demo-environment bypass code, then real dispatch. An
 *   authenticator user in a demo environment still gets the skip signal.
 * - Simulate and execute convert the caller's amount independently; they do
 *   not share a computed minor-unit value.
 *
 * @dependencies
 * - internal/convert: Major/minor unit conversion with precision checks.
 */

package app

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/google/uuid"

	"github.com/lumapay/wallet-service/internal/convert"
	"github.com/lumapay/wallet-service/internal/domain"
	"github.com/lumapay/wallet-service/internal/store"
	"github.com/lumapay/wallet-service/pkg/andinoclient"
	"github.com/lumapay/wallet-service/pkg/rabbitmq"
)

// SimulateTransfer asks the provider to price the intent. It is repeatable
// and side-effect free on both the provider and the local cache.
func (s *Service) SimulateTransfer(ctx context.Context, sessionID uuid.UUID, intent domain.TransferIntent) (*domain.TransferQuote, error) {
	session, client, err := s.authenticatedSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	minorAmount, err := convert.MajorToMinor(intent.Amount)
	if err != nil {
		return nil, fmt.Errorf("invalid transfer amount: %w", err)
	}

	result, err := client.SimulateTransfer(ctx, session.Token, andinoclient.TransferRequest{
		AccountID:     intent.AccountID,
		BeneficiaryID: intent.BeneficiaryID,
		Amount:        minorAmount,
		Currency:      intent.Currency,
		Description:   intent.Description,
	})
	if err != nil {
		return nil, fmt.Errorf("transfer simulation failed: %w", err)
	}

	return &domain.TransferQuote{
		Amount:            convert.MinorToMajor(result.Amount),
		Fee:               convert.MinorToMajor(result.Fee),
		AmountToPay:       convert.MinorToMajor(result.AmountToPay),
		Currency:          result.Currency,
		RequiresTwoFactor: result.RequiresTwoFactor,
	}, nil
}

// RequestTransferSMS decides how the caller obtains a 2FA code, in strict
// order: authenticator users get a skip signal, demo environments get the
// configured bypass code, everyone else gets a real provider dispatch.
func (s *Service) RequestTransferSMS(ctx context.Context, sessionID uuid.UUID, phoneNumber string) (*domain.SMSDispatchResult, error) {
	session, client, err := s.authenticatedSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	profile, err := s.repo.GetCachedProfile(ctx, sessionID)
	if err != nil {
		if errors.Is(err, store.ErrProfileNotCached) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to read cached profile: %w", err)
	}

	// 1. Authenticator users confirm in their app; no SMS is ever sent.
	if profile.TwoFactorType == domain.TwoFactorTypeAuthenticator {
		return &domain.SMSDispatchResult{SkipSMS: true}, nil
	}

	// 2. Demo environments hand out the fixed bypass code, never a real SMS.
	if s.environments.IsDemo(session.Environment) {
		return &domain.SMSDispatchResult{Code: s.demoSMSCode}, nil
	}

	// 3. Real dispatch, behind the rate limiter when one is attached. A
	// limiter infrastructure failure allows the dispatch rather than blocking
	// every transfer on Redis.
	if s.smsLimiter != nil && s.smsRateLimit > 0 {
		count, retryAfter, limitErr := s.smsLimiter.ConsumeRateLimit(ctx, "transfer_sms", sessionID.String(), s.smsRateLimit, s.smsRateWindow)
		if limitErr != nil {
			log.Printf("WARN: RequestTransferSMS: rate limiter check failed, allowing dispatch: %v", limitErr)
		} else if count > s.smsRateLimit {
			log.Printf("WARN: RequestTransferSMS: session %s exhausted the sms window (%d requests), retry in %ds", sessionID, count, retryAfter)
			return nil, fmt.Errorf("%w: retry in %d seconds", ErrSMSRateLimited, retryAfter)
		}
	}

	ack, err := client.RequestSMSCode(ctx, session.Token, phoneNumber)
	if err != nil {
		return nil, fmt.Errorf("sms dispatch failed: %w", err)
	}
	return &domain.SMSDispatchResult{DeliveryID: ack.DeliveryID, Status: ack.Status}, nil
}

// ExecuteTransfer submits the intent for execution, carrying the 2FA code
// when present. The local cache is untouched; a later account refresh picks
// up the new balance.
func (s *Service) ExecuteTransfer(ctx context.Context, sessionID uuid.UUID, intent domain.TransferIntent) (*domain.TransferReceipt, error) {
	session, client, err := s.authenticatedSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	minorAmount, err := convert.MajorToMinor(intent.Amount)
	if err != nil {
		return nil, fmt.Errorf("invalid transfer amount: %w", err)
	}
	log.Printf("ExecuteTransfer: Submitting transfer of %d %s from account %s for session %s", minorAmount, intent.Currency, intent.AccountID, sessionID)

	result, err := client.ExecuteTransfer(ctx, session.Token, andinoclient.TransferRequest{
		AccountID:     intent.AccountID,
		BeneficiaryID: intent.BeneficiaryID,
		Amount:        minorAmount,
		Currency:      intent.Currency,
		Description:   intent.Description,
		Code:          intent.Code,
	})
	if err != nil {
		return nil, fmt.Errorf("transfer execution failed: %w", err)
	}

	s.publishEvent(ctx, rabbitmq.RoutingKeyTransferExecuted, domain.TransferExecutedPayload{
		SessionID:   sessionID,
		TransferID:  result.ID,
		Status:      result.Status,
		Amount:      result.Amount,
		Currency:    result.Currency,
		Environment: session.Environment,
	})

	return &domain.TransferReceipt{
		TransferID:  result.ID,
		Status:      result.Status,
		Amount:      convert.MinorToMajor(result.Amount),
		Fee:         convert.MinorToMajor(result.Fee),
		AmountToPay: convert.MinorToMajor(result.AmountToPay),
		Currency:    result.Currency,
	}, nil
}
