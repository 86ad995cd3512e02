/**
 * @description
 * This file defines the transfer workflow models for the wallet-service. A
 * transfer intent is ephemeral: it moves through simulate, an optional 2FA
 * step, and execute, and is discarded afterwards regardless of outcome. The
 * provider remains the system of record for transfer state; nothing here is
 * persisted locally.
 *
 * @notes
 * - Amounts cross this boundary in decimal major units and are converted to
 *   minor units independently at simulation and at execution.
 */

package domain

import (
	"github.com/shopspring/decimal"
)

// TransferIntent is the caller's description of a transfer. Code carries the
// 2FA code at execution when the simulation required one.
type TransferIntent struct {
	AccountID     string          `json:"account_id"`
	BeneficiaryID string          `json:"beneficiary_id"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
	Description   string          `json:"description,omitempty"`
	Code          string          `json:"code,omitempty"`
}

// TransferQuote is the simulation outcome, converted to major units.
// RequiresTwoFactor drives the caller's 2FA decision before execution.
type TransferQuote struct {
	Amount            decimal.Decimal `json:"amount"`
	Fee               decimal.Decimal `json:"fee"`
	AmountToPay       decimal.Decimal `json:"amount_to_pay"`
	Currency          string          `json:"currency"`
	RequiresTwoFactor bool            `json:"requires_two_factor"`
}

// TransferReceipt is the execution outcome, converted to major units.
type TransferReceipt struct {
	TransferID  string          `json:"transfer_id"`
	Status      string          `json:"status"`
	Amount      decimal.Decimal `json:"amount"`
	Fee         decimal.Decimal `json:"fee"`
	AmountToPay decimal.Decimal `json:"amount_to_pay"`
	Currency    string          `json:"currency"`
}

// SMSDispatchResult is the outcome of a transfer SMS request. Exactly one
// branch populates it: SkipSMS for authenticator-configured users, Code for
// demo environments, DeliveryID/Status for a real provider dispatch.
type SMSDispatchResult struct {
	SkipSMS    bool   `json:"skip_sms"`
	Code       string `json:"code,omitempty"`
	DeliveryID string `json:"delivery_id,omitempty"`
	Status     string `json:"status,omitempty"`
}
