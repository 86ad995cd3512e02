/**
 * @description
 * This package provides a client for interacting with the Andino wallet
 * platform API. It encapsulates the logic for making authenticated HTTP
 * requests to Andino's endpoints, handling request body construction, and
 * parsing responses.
 *
 * Key features:
 * - Token issuance from a client credential pair.
 * - Profile, account, and beneficiary retrieval for the token's wallet.
 * - Transfer simulation and execution, and 2FA SMS dispatch.
 * - Typed API errors plus an unavailability sentinel for transport/5xx
 *   failures, so callers can tell a provider rejection from an outage.
 *
 * @dependencies
 * - bytes, context, encoding/json, errors, fmt, io, net/http, time: Standard Go libraries.
 */
package andinoclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"
)

// ErrUnavailable marks transport failures and 5xx responses. Callers use
// IsUnavailable to decide whether a cache fallback applies.
var ErrUnavailable = errors.New("andino api unavailable")

// IsUnavailable reports whether err represents a transport or server-side
// failure rather than a provider rejection of the request.
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrUnavailable)
}

// Client is a client for one Andino API environment.
type Client struct {
	environment string
	baseURL     string
	httpClient  *http.Client
}

// NewClient creates a new Andino API client bound to a single environment's
// endpoint set.
func NewClient(environment, baseURL string) *Client {
	return &Client{
		environment: environment,
		baseURL:     baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Environment returns the environment name this client was built for.
func (c *Client) Environment() string {
	return c.environment
}

// APIError represents a rejection returned by the Andino API.
type APIError struct {
	StatusCode int    `json:"-"`
	Code       string `json:"code"`
	Message    string `json:"message"`
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("andino api error: %s - %s (status %d)", e.Code, e.Message, e.StatusCode)
	}
	return fmt.Sprintf("andino api error: status %d", e.StatusCode)
}

type errorEnvelope struct {
	Error APIError `json:"error"`
}

// TokenResponse is the payload returned by the token issuance endpoint.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

// Profile is the wallet owner's profile as returned by Andino.
type Profile struct {
	ID             string `json:"id"`
	FirstName      string `json:"first_name"`
	LastName       string `json:"last_name"`
	Email          string `json:"email"`
	PhoneNumber    string `json:"phone_number"`
	DocumentNumber string `json:"document_number"`
	TwoFactorType  string `json:"two_factor_type"`
}

// Account is one balance-bearing instrument. All monetary fields are in
// integer minor units (centavos).
type Account struct {
	ID               string `json:"id"`
	Currency         string `json:"currency"`
	Balance          int64  `json:"balance"`
	AvailableBalance int64  `json:"available_balance"`
	PendingIn        int64  `json:"pending_in"`
	PendingOut       int64  `json:"pending_out"`
}

// Beneficiary is a transfer recipient record. It carries no monetary fields.
type Beneficiary struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	AccountNumber string `json:"account_number"`
	BankCode      string `json:"bank_code"`
	BankName      string `json:"bank_name"`
	Country       string `json:"country"`
	Type          string `json:"type"`
	Email         string `json:"email,omitempty"`
	PhoneNumber   string `json:"phone_number,omitempty"`
}

// BeneficiaryPage is one page of the wallet's beneficiary list.
type BeneficiaryPage struct {
	Rows  []Beneficiary `json:"rows"`
	Total int           `json:"total"`
}

// CreateBeneficiaryRequest is the payload for registering a new beneficiary.
type CreateBeneficiaryRequest struct {
	Name          string `json:"name"`
	AccountNumber string `json:"account_number"`
	BankCode      string `json:"bank_code"`
	BankName      string `json:"bank_name,omitempty"`
	Country       string `json:"country"`
	Type          string `json:"type"`
	Email         string `json:"email,omitempty"`
	PhoneNumber   string `json:"phone_number,omitempty"`
}

// TransferRequest is the payload for the simulate and execute endpoints.
// Amount is in minor units. Code carries the 2FA code on execution when the
// simulation required one.
type TransferRequest struct {
	AccountID     string `json:"account_id"`
	BeneficiaryID string `json:"beneficiary_id"`
	Amount        int64  `json:"amount"`
	Currency      string `json:"currency"`
	Description   string `json:"description,omitempty"`
	Code          string `json:"code,omitempty"`
}

// TransferResult is the provider's response to a simulation or execution.
// Monetary fields are in minor units. ID and Status are only populated on
// execution; RequiresTwoFactor only on simulation.
type TransferResult struct {
	ID                string `json:"id,omitempty"`
	Status            string `json:"status,omitempty"`
	Amount            int64  `json:"amount"`
	Fee               int64  `json:"fee"`
	AmountToPay       int64  `json:"amount_to_pay"`
	Currency          string `json:"currency"`
	RequiresTwoFactor bool   `json:"requires_two_factor,omitempty"`
}

// SMSAck is the provider's acknowledgment of an SMS code dispatch.
type SMSAck struct {
	DeliveryID string `json:"delivery_id"`
	Status     string `json:"status"`
}

type tokenRequest struct {
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
	GrantType    string `json:"grant_type"`
}

type smsRequest struct {
	PhoneNumber string `json:"phone_number"`
}

type accountsResponse struct {
	Accounts []Account `json:"accounts"`
}

// IssueToken exchanges a client credential pair for an access token. The
// response reports the token lifetime in seconds; expiry bookkeeping is the
// caller's concern.
func (c *Client) IssueToken(ctx context.Context, clientID, clientSecret string) (*TokenResponse, error) {
	var resp TokenResponse
	url := fmt.Sprintf("%s/v1/oauth/token", c.baseURL)
	req := tokenRequest{ClientID: clientID, ClientSecret: clientSecret, GrantType: "client_credentials"}

	if err := c.do(ctx, http.MethodPost, url, "", "issue_token", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetProfile fetches the wallet owner's profile for the given token.
func (c *Client) GetProfile(ctx context.Context, token string) (*Profile, error) {
	var resp Profile
	url := fmt.Sprintf("%s/v1/me", c.baseURL)

	if err := c.do(ctx, http.MethodGet, url, token, "get_profile", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetAccounts fetches the wallet's accounts. Balances are in minor units.
func (c *Client) GetAccounts(ctx context.Context, token string) ([]Account, error) {
	var resp accountsResponse
	url := fmt.Sprintf("%s/v1/me/accounts", c.baseURL)

	if err := c.do(ctx, http.MethodGet, url, token, "get_accounts", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Accounts, nil
}

// GetBeneficiaries fetches one page of the wallet's beneficiary list.
func (c *Client) GetBeneficiaries(ctx context.Context, token string, offset, limit int) (*BeneficiaryPage, error) {
	var resp BeneficiaryPage
	url := fmt.Sprintf("%s/v1/me/beneficiaries?offset=%d&limit=%d", c.baseURL, offset, limit)

	if err := c.do(ctx, http.MethodGet, url, token, "get_beneficiaries", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// CreateBeneficiary registers a new beneficiary on the wallet.
func (c *Client) CreateBeneficiary(ctx context.Context, token string, req CreateBeneficiaryRequest) (*Beneficiary, error) {
	var resp Beneficiary
	url := fmt.Sprintf("%s/v1/me/beneficiaries", c.baseURL)

	if err := c.do(ctx, http.MethodPost, url, token, "create_beneficiary", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// SimulateTransfer quotes a transfer without executing it. Repeatable, no
// side effect on the provider.
func (c *Client) SimulateTransfer(ctx context.Context, token string, req TransferRequest) (*TransferResult, error) {
	var resp TransferResult
	url := fmt.Sprintf("%s/v1/transfers/simulate", c.baseURL)

	if err := c.do(ctx, http.MethodPost, url, token, "simulate_transfer", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ExecuteTransfer submits a transfer for execution, carrying the 2FA code
// when the request includes one.
func (c *Client) ExecuteTransfer(ctx context.Context, token string, req TransferRequest) (*TransferResult, error) {
	var resp TransferResult
	url := fmt.Sprintf("%s/v1/transfers", c.baseURL)

	if err := c.do(ctx, http.MethodPost, url, token, "execute_transfer", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// RequestSMSCode asks the provider to dispatch a 2FA code to the given phone
// number over SMS.
func (c *Client) RequestSMSCode(ctx context.Context, token, phoneNumber string) (*SMSAck, error) {
	var resp SMSAck
	url := fmt.Sprintf("%s/v1/auth/sms", c.baseURL)

	if err := c.do(ctx, http.MethodPost, url, token, "request_sms_code", smsRequest{PhoneNumber: phoneNumber}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// do is a helper function to make HTTP requests to the Andino API. An empty
// token skips the Authorization header (token issuance only).
func (c *Client) do(ctx context.Context, method, url, token, op string, body, target interface{}) error {
	var reqBody io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewBuffer(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		return fmt.Errorf("failed to create http request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: failed to read response body: %v", ErrUnavailable, err)
	}

	if resp.StatusCode >= 500 {
		log.Printf("level=warn component=andino_client env=%s op=%s status=%d msg=\"server error\"", c.environment, op, resp.StatusCode)
		return fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var envelope errorEnvelope
		if err := json.Unmarshal(respBody, &envelope); err != nil || envelope.Error.Code == "" && envelope.Error.Message == "" {
			log.Printf("level=warn component=andino_client env=%s op=%s status=%d msg=\"non-2xx response (unparsable error body)\"", c.environment, op, resp.StatusCode)
			return &APIError{StatusCode: resp.StatusCode}
		}
		apiErr := envelope.Error
		apiErr.StatusCode = resp.StatusCode
		log.Printf("level=warn component=andino_client env=%s op=%s status=%d code=%q msg=%q", c.environment, op, resp.StatusCode, apiErr.Code, apiErr.Message)
		return &apiErr
	}

	if target != nil {
		if err := json.Unmarshal(respBody, target); err != nil {
			return fmt.Errorf("failed to decode response body: %w", err)
		}
	}

	return nil
}
