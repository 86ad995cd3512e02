/**
 * @description
 * This file contains the HTTP handlers for the wallet-service's API endpoints.
 * Handlers are responsible for parsing incoming requests, calling the
 * coordinator methods on the application service, and translating domain
 * errors into HTTP statuses. They act as the bridge between the web layer and
 * the orchestration logic.
 *
 * @dependencies
 * - encoding/json, log, net/http: Standard Go libraries.
 * - internal/app, internal/domain, internal/store: Service logic, models, and custom errors.
 * - pkg/andinoclient: Provider error taxonomy for status mapping.
 */

package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lumapay/wallet-service/internal/app"
	"github.com/lumapay/wallet-service/internal/convert"
	"github.com/lumapay/wallet-service/internal/domain"
	"github.com/lumapay/wallet-service/internal/store"
	"github.com/lumapay/wallet-service/pkg/andinoclient"
)

// WalletHandlers holds the application service that handlers will use.
type WalletHandlers struct {
	service   *app.Service
	jwtSecret string
}

// NewWalletHandlers creates a new instance of WalletHandlers.
func NewWalletHandlers(service *app.Service, jwtSecret string) *WalletHandlers {
	return &WalletHandlers{service: service, jwtSecret: jwtSecret}
}

// authenticateRequest is the payload for opening or re-opening a session.
type authenticateRequest struct {
	CredentialKey string `json:"credential_key"`
	Secret        string `json:"secret"`
	Environment   string `json:"environment,omitempty"`
}

// authenticateResponse mirrors the composed view the coordinator returns,
// with the provider token swapped for a service-issued bearer token. The raw
// provider token never leaves the process over HTTP.
type authenticateResponse struct {
	SessionID      string               `json:"session_id"`
	Environment    string               `json:"environment"`
	APIToken       string               `json:"api_token"`
	TokenExpiresAt time.Time            `json:"token_expires_at"`
	Profile        *domain.Profile      `json:"profile"`
	Accounts       []domain.AccountView `json:"accounts"`
	Beneficiaries  []domain.Beneficiary `json:"beneficiaries"`
	Warnings       []string             `json:"warnings,omitempty"`
}

type requestSMSRequest struct {
	PhoneNumber string `json:"phone_number,omitempty"`
}

// AuthenticateHandler handles requests to open a session: the full
// authentication flow against the provider followed by cache priming.
func (h *WalletHandlers) AuthenticateHandler(w http.ResponseWriter, r *http.Request) {
	var req authenticateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Printf("level=warn component=api endpoint=authenticate outcome=reject reason=invalid_json err=%v", err)
		h.writeError(w, http.StatusBadRequest, fmt.Sprintf("Invalid request body: %v", err))
		return
	}
	if strings.TrimSpace(req.CredentialKey) == "" || req.Secret == "" {
		h.writeError(w, http.StatusBadRequest, "credential_key and secret are required")
		return
	}

	result, err := h.service.Authenticate(r.Context(), req.CredentialKey, req.Secret, req.Environment)
	if err != nil {
		log.Printf("level=warn component=api endpoint=authenticate outcome=failed credential_key=%s err=%v", req.CredentialKey, err)
		h.handleServiceError(w, err)
		return
	}

	apiToken, err := IssueSessionToken(h.jwtSecret, result.SessionID, result.Environment, result.TokenExpiresAt)
	if err != nil {
		log.Printf("level=error component=api endpoint=authenticate msg=\"failed to sign session token\" err=%v", err)
		h.writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	h.writeJSON(w, http.StatusOK, authenticateResponse{
		SessionID:      result.SessionID.String(),
		Environment:    result.Environment,
		APIToken:       apiToken,
		TokenExpiresAt: result.TokenExpiresAt,
		Profile:        result.Profile,
		Accounts:       result.Accounts,
		Beneficiaries:  result.Beneficiaries,
		Warnings:       result.Warnings,
	})
}

// CachedProfileHandler serves the cached profile snapshot. It never calls the
// provider.
func (h *WalletHandlers) CachedProfileHandler(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := h.sessionFromContext(w, r)
	if !ok {
		return
	}

	profile, err := h.service.CachedProfile(r.Context(), sessionID)
	if err != nil {
		log.Printf("level=warn component=api endpoint=profile outcome=failed session_id=%s err=%v", sessionID, err)
		h.handleServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, profile)
}

// CachedAccountsHandler serves the cached account snapshot without touching
// the provider.
func (h *WalletHandlers) CachedAccountsHandler(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := h.sessionFromContext(w, r)
	if !ok {
		return
	}

	result, err := h.service.CachedAccounts(r.Context(), sessionID)
	if err != nil {
		log.Printf("level=warn component=api endpoint=accounts outcome=failed session_id=%s err=%v", sessionID, err)
		h.handleServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, result)
}

// RefreshAccountsHandler fetches accounts from the provider, replacing the
// cache on success and falling back to it when the provider is unavailable.
func (h *WalletHandlers) RefreshAccountsHandler(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := h.sessionFromContext(w, r)
	if !ok {
		return
	}

	result, err := h.service.RefreshAccounts(r.Context(), sessionID)
	if err != nil {
		log.Printf("level=warn component=api endpoint=accounts_refresh outcome=failed session_id=%s err=%v", sessionID, err)
		h.handleServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, result)
}

// CachedBeneficiariesHandler serves the cached beneficiary snapshot.
func (h *WalletHandlers) CachedBeneficiariesHandler(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := h.sessionFromContext(w, r)
	if !ok {
		return
	}

	result, err := h.service.CachedBeneficiaries(r.Context(), sessionID)
	if err != nil {
		log.Printf("level=warn component=api endpoint=beneficiaries outcome=failed session_id=%s err=%v", sessionID, err)
		h.handleServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, result)
}

// RefreshBeneficiariesHandler fetches a beneficiary page from the provider.
// Paging comes from the offset/limit query parameters; the service applies
// its defaults when they are absent.
func (h *WalletHandlers) RefreshBeneficiariesHandler(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := h.sessionFromContext(w, r)
	if !ok {
		return
	}

	offset, ok := h.queryInt(w, r, "offset")
	if !ok {
		return
	}
	limit, ok := h.queryInt(w, r, "limit")
	if !ok {
		return
	}

	result, err := h.service.RefreshBeneficiaries(r.Context(), sessionID, offset, limit)
	if err != nil {
		log.Printf("level=warn component=api endpoint=beneficiaries_refresh outcome=failed session_id=%s err=%v", sessionID, err)
		h.handleServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, result)
}

// CreateBeneficiaryHandler registers a new beneficiary with the provider and
// returns the reconciled list alongside the created record.
func (h *WalletHandlers) CreateBeneficiaryHandler(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := h.sessionFromContext(w, r)
	if !ok {
		return
	}

	var input domain.CreateBeneficiaryInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		log.Printf("level=warn component=api endpoint=beneficiary_create outcome=reject reason=invalid_json err=%v", err)
		h.writeError(w, http.StatusBadRequest, fmt.Sprintf("Invalid request body: %v", err))
		return
	}
	if strings.TrimSpace(input.Name) == "" || strings.TrimSpace(input.AccountNumber) == "" ||
		strings.TrimSpace(input.BankCode) == "" || strings.TrimSpace(input.Country) == "" {
		h.writeError(w, http.StatusBadRequest, "name, account_number, bank_code and country are required")
		return
	}

	result, err := h.service.CreateBeneficiary(r.Context(), sessionID, input)
	if err != nil {
		log.Printf("level=warn component=api endpoint=beneficiary_create outcome=failed session_id=%s err=%v", sessionID, err)
		h.handleServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, result)
}

// SimulateTransferHandler asks the provider to price a transfer intent. The
// response tells the caller whether a 2FA code is required before execution.
func (h *WalletHandlers) SimulateTransferHandler(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := h.sessionFromContext(w, r)
	if !ok {
		return
	}

	var intent domain.TransferIntent
	if err := json.NewDecoder(r.Body).Decode(&intent); err != nil {
		log.Printf("level=warn component=api endpoint=transfer_simulate outcome=reject reason=invalid_json err=%v", err)
		h.writeError(w, http.StatusBadRequest, fmt.Sprintf("Invalid request body: %v", err))
		return
	}
	if strings.TrimSpace(intent.AccountID) == "" || strings.TrimSpace(intent.BeneficiaryID) == "" {
		h.writeError(w, http.StatusBadRequest, "account_id and beneficiary_id are required")
		return
	}

	quote, err := h.service.SimulateTransfer(r.Context(), sessionID, intent)
	if err != nil {
		log.Printf("level=warn component=api endpoint=transfer_simulate outcome=failed session_id=%s err=%v", sessionID, err)
		h.handleServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, quote)
}

// RequestTransferSMSHandler resolves the 2FA delivery for a pending transfer.
// Depending on the session it skips SMS entirely, returns the demo bypass
// code, or dispatches a real message through the provider.
func (h *WalletHandlers) RequestTransferSMSHandler(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := h.sessionFromContext(w, r)
	if !ok {
		return
	}

	var req requestSMSRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			log.Printf("level=warn component=api endpoint=transfer_sms outcome=reject reason=invalid_json err=%v", err)
			h.writeError(w, http.StatusBadRequest, fmt.Sprintf("Invalid request body: %v", err))
			return
		}
	}

	result, err := h.service.RequestTransferSMS(r.Context(), sessionID, req.PhoneNumber)
	if err != nil {
		log.Printf("level=warn component=api endpoint=transfer_sms outcome=failed session_id=%s err=%v", sessionID, err)
		h.handleServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, result)
}

// ExecuteTransferHandler submits a transfer for execution, carrying the 2FA
// code collected after simulation when one was required.
func (h *WalletHandlers) ExecuteTransferHandler(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := h.sessionFromContext(w, r)
	if !ok {
		return
	}

	var intent domain.TransferIntent
	if err := json.NewDecoder(r.Body).Decode(&intent); err != nil {
		log.Printf("level=warn component=api endpoint=transfer_execute outcome=reject reason=invalid_json err=%v", err)
		h.writeError(w, http.StatusBadRequest, fmt.Sprintf("Invalid request body: %v", err))
		return
	}
	if strings.TrimSpace(intent.AccountID) == "" || strings.TrimSpace(intent.BeneficiaryID) == "" {
		h.writeError(w, http.StatusBadRequest, "account_id and beneficiary_id are required")
		return
	}

	receipt, err := h.service.ExecuteTransfer(r.Context(), sessionID, intent)
	if err != nil {
		log.Printf("level=warn component=api endpoint=transfer_execute outcome=failed session_id=%s err=%v", sessionID, err)
		h.handleServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, receipt)
}

// sessionFromContext pulls the session id the auth middleware stored on the
// request context.
func (h *WalletHandlers) sessionFromContext(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	sessionID, ok := GetSessionID(r.Context())
	if !ok {
		http.Error(w, "Could not get session ID from context", http.StatusInternalServerError)
		return uuid.Nil, false
	}
	return sessionID, true
}

// queryInt parses an optional integer query parameter, rejecting the request
// when the value is present but not a number.
func (h *WalletHandlers) queryInt(w http.ResponseWriter, r *http.Request, name string) (int, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, true
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, fmt.Sprintf("%s must be an integer", name))
		return 0, false
	}
	return value, true
}

// handleServiceError maps coordinator errors onto HTTP statuses. Provider
// rejections keep their original status code; outages map to 502 so clients
// can tell "the provider said no" apart from "the provider is down".
func (h *WalletHandlers) handleServiceError(w http.ResponseWriter, err error) {
	var apiErr *andinoclient.APIError
	switch {
	case errors.Is(err, app.ErrUnauthenticated):
		h.writeError(w, http.StatusUnauthorized, "Session is not authenticated. Please authenticate first.")
	case errors.Is(err, app.ErrTokenExpired):
		h.writeError(w, http.StatusUnauthorized, "Provider token has expired. Please re-authenticate.")
	case errors.Is(err, app.ErrEnvironmentUnknown):
		h.writeError(w, http.StatusBadRequest, "Unknown provider environment.")
	case errors.Is(err, app.ErrSMSRateLimited):
		h.writeError(w, http.StatusTooManyRequests, "Too many SMS requests. Please wait before retrying.")
	case errors.Is(err, store.ErrProfileNotCached):
		h.writeError(w, http.StatusPreconditionFailed, "No cached profile for this session. Please re-authenticate first.")
	case errors.Is(err, convert.ErrSubMinorPrecision) || errors.Is(err, convert.ErrAmountOutOfRange):
		h.writeError(w, http.StatusBadRequest, "Invalid transfer amount.")
	case errors.As(err, &apiErr):
		message := apiErr.Message
		if message == "" {
			message = "The wallet provider rejected the request."
		}
		h.writeError(w, apiErr.StatusCode, message)
	case andinoclient.IsUnavailable(err):
		h.writeError(w, http.StatusBadGateway, "The wallet provider is currently unavailable. Please try again.")
	default:
		h.writeError(w, http.StatusInternalServerError, "Internal server error")
	}
}

// writeJSON is a helper to write a JSON response with a status code.
func (h *WalletHandlers) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// writeError is a helper to write a JSON error response.
func (h *WalletHandlers) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
