/**
 * @description
 * This file defines the message payloads published to RabbitMQ by the
 * wallet-service. Downstream consumers (analytics, notifications) receive
 * these on the `lumapay.events` topic exchange. Monetary fields stay in
 * minor units; events are internal plumbing, not an output boundary.
 */

package domain

import (
	"time"

	"github.com/google/uuid"
)

// SessionAuthenticatedPayload is published after a successful authentication.
type SessionAuthenticatedPayload struct {
	SessionID      uuid.UUID `json:"session_id"`
	CredentialKey  string    `json:"credential_key"`
	Environment    string    `json:"environment"`
	TokenExpiresAt time.Time `json:"token_expires_at"`
	FirstLogin     bool      `json:"first_login"`
}

// BeneficiaryCreatedPayload is published after the provider accepts a new
// beneficiary.
type BeneficiaryCreatedPayload struct {
	SessionID     uuid.UUID `json:"session_id"`
	BeneficiaryID string    `json:"beneficiary_id"`
	Name          string    `json:"name"`
	BankCode      string    `json:"bank_code"`
	Country       string    `json:"country"`
}

// TransferExecutedPayload is published after the provider accepts a transfer
// execution. Amount is in minor units.
type TransferExecutedPayload struct {
	SessionID   uuid.UUID `json:"session_id"`
	TransferID  string    `json:"transfer_id"`
	Status      string    `json:"status"`
	Amount      int64     `json:"amount"` // in centavos
	Currency    string    `json:"currency"`
	Environment string    `json:"environment"`
}
