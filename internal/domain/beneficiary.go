/**
 * @description
 * This file defines the beneficiary models for the wallet-service. The
 * cached beneficiary list is replaced wholesale on each successful refresh;
 * individual records are never merged. Beneficiaries carry no monetary
 * fields, so no unit conversion applies.
 */

package domain

import (
	"time"

	"github.com/google/uuid"
)

// Beneficiary is a cached transfer recipient record. Maps to the
// `wallet_beneficiaries` table.
type Beneficiary struct {
	SessionID     uuid.UUID `json:"-"`
	BeneficiaryID string    `json:"beneficiary_id"`
	Name          string    `json:"name"`
	AccountNumber string    `json:"account_number"`
	BankCode      string    `json:"bank_code"`
	BankName      *string   `json:"bank_name,omitempty"`
	Country       string    `json:"country"`
	Type          string    `json:"type"`
	Email         *string   `json:"email,omitempty"`
	PhoneNumber   *string   `json:"phone_number,omitempty"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// CreateBeneficiaryInput is the DTO for registering a new beneficiary.
type CreateBeneficiaryInput struct {
	Name          string `json:"name"`
	AccountNumber string `json:"account_number"`
	BankCode      string `json:"bank_code"`
	BankName      string `json:"bank_name,omitempty"`
	Country       string `json:"country"`
	Type          string `json:"type"`
	Email         string `json:"email,omitempty"`
	PhoneNumber   string `json:"phone_number,omitempty"`
}

// BeneficiariesResult is the outcome of a beneficiary refresh. Fresh is true
// when the records came from the provider, false on a cache fallback.
type BeneficiariesResult struct {
	Beneficiaries []Beneficiary `json:"beneficiaries"`
	Fresh         bool          `json:"fresh"`
}

// BeneficiaryCreateResult carries the provider's creation response verbatim
// plus the reconciled beneficiary list fetched right after creation.
type BeneficiaryCreateResult struct {
	Created       Beneficiary   `json:"created"`
	Beneficiaries []Beneficiary `json:"beneficiaries"`
	Fresh         bool          `json:"fresh"`
}
