package app

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"github.com/lumapay/wallet-service/internal/domain"
	"github.com/lumapay/wallet-service/internal/store"
	"github.com/lumapay/wallet-service/pkg/andinoclient"
)

type authRepoStub struct {
	store.Repository

	existing        *domain.Session
	missFirstLookup bool
	lookups         int

	created   *domain.Session
	createErr error

	tokenSessionID uuid.UUID
	tokenEnv       string
	tokenValue     string
	tokenExpiry    time.Time

	profile       *domain.Profile
	accounts      []domain.Account
	beneficiaries []domain.Beneficiary

	accountsReplaced      bool
	beneficiariesReplaced bool
}

func (s *authRepoStub) FindSessionByCredentialKey(ctx context.Context, credentialKey string) (*domain.Session, error) {
	s.lookups++
	if s.existing == nil || (s.missFirstLookup && s.lookups == 1) {
		return nil, store.ErrSessionNotFound
	}
	return s.existing, nil
}

func (s *authRepoStub) CreateSession(ctx context.Context, session *domain.Session) error {
	if s.createErr != nil {
		return s.createErr
	}
	s.created = session
	return nil
}

func (s *authRepoStub) ReplaceToken(ctx context.Context, sessionID uuid.UUID, environment, secretHash, token string, expiresAt time.Time) error {
	s.tokenSessionID = sessionID
	s.tokenEnv = environment
	s.tokenValue = token
	s.tokenExpiry = expiresAt
	return nil
}

func (s *authRepoStub) ReplaceProfile(ctx context.Context, sessionID uuid.UUID, profile *domain.Profile) error {
	s.profile = profile
	return nil
}

func (s *authRepoStub) ReplaceAccounts(ctx context.Context, sessionID uuid.UUID, accounts []domain.Account) error {
	s.accountsReplaced = true
	s.accounts = accounts
	return nil
}

func (s *authRepoStub) ReplaceBeneficiaries(ctx context.Context, sessionID uuid.UUID, beneficiaries []domain.Beneficiary) error {
	s.beneficiariesReplaced = true
	s.beneficiaries = beneficiaries
	return nil
}

func testEnvironments(t *testing.T, name, baseURL string, demo ...string) *andinoclient.EnvironmentDirectory {
	t.Helper()
	envs, err := andinoclient.NewEnvironmentDirectory(name, map[string]string{name: baseURL}, demo)
	if err != nil {
		t.Fatalf("failed to build environment directory: %v", err)
	}
	return envs
}

func happyProviderHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/v1/oauth/token":
			_, _ = io.WriteString(w, `{"access_token":"tok-1","token_type":"bearer","expires_in":3600}`)
		case r.Method == http.MethodGet && r.URL.Path == "/v1/me":
			_, _ = io.WriteString(w, `{"id":"usr_1","first_name":"Ana","last_name":"Diaz","email":"ana@example.com","phone_number":"+5355512345","two_factor_type":"sms"}`)
		case r.Method == http.MethodGet && r.URL.Path == "/v1/me/accounts":
			_, _ = io.WriteString(w, `{"accounts":[{"id":"acc_1","currency":"USD","balance":10000,"available_balance":10000,"pending_in":0,"pending_out":0}]}`)
		case r.Method == http.MethodGet && r.URL.Path == "/v1/me/beneficiaries":
			_, _ = io.WriteString(w, `{"rows":[{"id":"ben_1","name":"Luis","account_number":"0001","bank_code":"BC01","country":"CU","type":"external"}],"total":1}`)
		default:
			http.NotFound(w, r)
		}
	}
}

func TestAuthenticate_FirstLoginCreatesSessionAndPrimesCache(t *testing.T) {
	server := httptest.NewServer(happyProviderHandler())
	defer server.Close()

	repo := &authRepoStub{}
	svc := NewService(repo, testEnvironments(t, "development", server.URL, "development"), nil, "123456")

	result, err := svc.Authenticate(context.Background(), "clientA", "secretA", "development")
	if err != nil {
		t.Fatalf("expected authentication to succeed, got %v", err)
	}
	if repo.created == nil {
		t.Fatal("expected first login to create a session")
	}
	if result.SessionID != repo.created.ID {
		t.Fatalf("expected result to carry session %s, got %s", repo.created.ID, result.SessionID)
	}
	if result.Token != "tok-1" || result.Environment != "development" {
		t.Fatalf("expected raw token and bound environment in result, got token=%q env=%q", result.Token, result.Environment)
	}
	if repo.tokenValue != "tok-1" || repo.tokenEnv != "development" {
		t.Fatalf("expected token persisted with environment binding, got token=%q env=%q", repo.tokenValue, repo.tokenEnv)
	}
	if remaining := time.Until(repo.tokenExpiry); remaining < 59*time.Minute || remaining > 61*time.Minute {
		t.Fatalf("expected expiry about an hour out, got %s", remaining)
	}
	if bcrypt.CompareHashAndPassword([]byte(repo.created.SecretHash), []byte("secretA")) != nil {
		t.Fatal("expected the stored secret hash to verify against the plaintext secret")
	}
	if len(result.Accounts) != 1 {
		t.Fatalf("expected one account view, got %d", len(result.Accounts))
	}
	if !result.Accounts[0].Balance.Equal(decimal.RequireFromString("100.00")) {
		t.Fatalf("expected 10000 centavos to convert to 100.00, got %s", result.Accounts[0].Balance)
	}
	if len(result.Beneficiaries) != 1 || result.Beneficiaries[0].BeneficiaryID != "ben_1" {
		t.Fatalf("unexpected beneficiaries on result: %+v", result.Beneficiaries)
	}
	if len(result.Warnings) != 0 {
		t.Fatalf("expected no warnings on a clean login, got %v", result.Warnings)
	}
	if result.Profile == nil || result.Profile.TwoFactorType != domain.TwoFactorTypeSMS {
		t.Fatalf("expected cached sms profile on result, got %+v", result.Profile)
	}
}

func TestAuthenticate_RepeatLoginReusesSession(t *testing.T) {
	server := httptest.NewServer(happyProviderHandler())
	defer server.Close()

	existing := &domain.Session{ID: uuid.New(), CredentialKey: "clientA", Environment: "development"}
	repo := &authRepoStub{existing: existing}
	svc := NewService(repo, testEnvironments(t, "development", server.URL), nil, "123456")

	result, err := svc.Authenticate(context.Background(), "clientA", "secretA", "")
	if err != nil {
		t.Fatalf("expected repeat login to succeed, got %v", err)
	}
	if repo.created != nil {
		t.Fatal("expected no session creation on repeat login")
	}
	if result.SessionID != existing.ID {
		t.Fatalf("expected repeat login to reuse session %s, got %s", existing.ID, result.SessionID)
	}
	if repo.tokenSessionID != existing.ID {
		t.Fatalf("expected token replace on the existing session, got %s", repo.tokenSessionID)
	}
}

func TestAuthenticate_ReloadsSessionWhenCreateRaces(t *testing.T) {
	server := httptest.NewServer(happyProviderHandler())
	defer server.Close()

	existing := &domain.Session{ID: uuid.New(), CredentialKey: "clientA", Environment: "development"}
	repo := &authRepoStub{
		existing:        existing,
		missFirstLookup: true,
		createErr:       store.ErrSessionExists,
	}
	svc := NewService(repo, testEnvironments(t, "development", server.URL), nil, "123456")

	result, err := svc.Authenticate(context.Background(), "clientA", "secretA", "development")
	if err != nil {
		t.Fatalf("expected the create race loser to reload the winner's session, got %v", err)
	}
	if result.SessionID != existing.ID {
		t.Fatalf("expected the concurrently created session %s, got %s", existing.ID, result.SessionID)
	}
	if repo.lookups != 2 {
		t.Fatalf("expected a second lookup after the create conflict, got %d", repo.lookups)
	}
}

func TestAuthenticate_UnknownEnvironmentFailsBeforeRemoteCall(t *testing.T) {
	remoteCalls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		remoteCalls++
		http.NotFound(w, r)
	}))
	defer server.Close()

	repo := &authRepoStub{}
	svc := NewService(repo, testEnvironments(t, "development", server.URL), nil, "123456")

	_, err := svc.Authenticate(context.Background(), "clientA", "secretA", "staging")
	if !errors.Is(err, ErrEnvironmentUnknown) {
		t.Fatalf("expected ErrEnvironmentUnknown, got %v", err)
	}
	if remoteCalls != 0 {
		t.Fatalf("expected no remote calls for an unknown environment, got %d", remoteCalls)
	}
}

func TestAuthenticate_RejectedCredentialsTouchNoSession(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, `{"error":{"code":"invalid_client","message":"bad credentials"}}`)
	}))
	defer server.Close()

	repo := &authRepoStub{}
	svc := NewService(repo, testEnvironments(t, "development", server.URL), nil, "123456")

	_, err := svc.Authenticate(context.Background(), "clientA", "wrong", "development")
	var apiErr *andinoclient.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected the provider rejection to surface, got %v", err)
	}
	if apiErr.StatusCode != http.StatusUnauthorized || apiErr.Code != "invalid_client" {
		t.Fatalf("expected the verbatim provider error, got %+v", apiErr)
	}
	if repo.lookups != 0 {
		t.Fatal("expected no session lookup before token issuance succeeds")
	}
	if repo.created != nil {
		t.Fatal("expected no session creation for rejected credentials")
	}
}

func TestAuthenticate_BeneficiaryFailureWarnsAndResetsCache(t *testing.T) {
	happy := happyProviderHandler()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v1/me/beneficiaries" {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		happy(w, r)
	}))
	defer server.Close()

	repo := &authRepoStub{}
	svc := NewService(repo, testEnvironments(t, "development", server.URL), nil, "123456")

	result, err := svc.Authenticate(context.Background(), "clientA", "secretA", "development")
	if err != nil {
		t.Fatalf("expected authentication to survive a beneficiary prefetch failure, got %v", err)
	}
	if len(result.Warnings) != 1 {
		t.Fatalf("expected one warning for the failed prefetch, got %v", result.Warnings)
	}
	if !repo.beneficiariesReplaced {
		t.Fatal("expected the cached beneficiary list to be reset")
	}
	if len(repo.beneficiaries) != 0 {
		t.Fatalf("expected the cached beneficiary list reset to empty, got %d records", len(repo.beneficiaries))
	}
	if len(result.Beneficiaries) != 0 {
		t.Fatalf("expected an empty beneficiary list on the result, got %d", len(result.Beneficiaries))
	}
}

func TestAuthenticate_ProfileFailureAborts(t *testing.T) {
	happy := happyProviderHandler()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v1/me" {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		happy(w, r)
	}))
	defer server.Close()

	repo := &authRepoStub{}
	svc := NewService(repo, testEnvironments(t, "development", server.URL), nil, "123456")

	_, err := svc.Authenticate(context.Background(), "clientA", "secretA", "development")
	if err == nil {
		t.Fatal("expected a profile fetch failure to abort authentication")
	}
	if !andinoclient.IsUnavailable(err) {
		t.Fatalf("expected the unavailability to surface, got %v", err)
	}
	if repo.accountsReplaced {
		t.Fatal("expected no account caching after an aborted authentication")
	}
}
