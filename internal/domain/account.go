/**
 * @description
 * This file defines the account models for the wallet-service. Cached
 * account rows keep every monetary field in integer minor units (centavos);
 * the decimal major-unit view exists only at the coordinator's output
 * boundary and is never persisted back.
 */

package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Account is the cached snapshot of one balance-bearing instrument, replaced
// wholesale on each successful refresh. Maps to the `wallet_accounts` table.
type Account struct {
	SessionID        uuid.UUID `json:"-"`
	AccountID        string    `json:"account_id"`
	Currency         string    `json:"currency"`
	Balance          int64     `json:"balance"`           // in centavos
	AvailableBalance int64     `json:"available_balance"` // in centavos
	PendingIn        int64     `json:"pending_in"`        // in centavos
	PendingOut       int64     `json:"pending_out"`       // in centavos
	UpdatedAt        time.Time `json:"updated_at"`
}

// AccountView is the major-unit projection of a cached account, produced at
// the output boundary only.
type AccountView struct {
	ID               string          `json:"id"`
	Currency         string          `json:"currency"`
	Balance          decimal.Decimal `json:"balance"`
	AvailableBalance decimal.Decimal `json:"available_balance"`
	PendingIn        decimal.Decimal `json:"pending_in"`
	PendingOut       decimal.Decimal `json:"pending_out"`
}

// AccountsResult is the outcome of an account refresh. Fresh is true when
// the records came from the provider, false when the remote fetch failed and
// the last cached snapshot was returned instead.
type AccountsResult struct {
	Accounts []AccountView `json:"accounts"`
	Fresh    bool          `json:"fresh"`
}
