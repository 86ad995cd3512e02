package app

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/lumapay/wallet-service/internal/domain"
	"github.com/lumapay/wallet-service/internal/store"
	"github.com/lumapay/wallet-service/pkg/andinoclient"
)

type resourcesRepoStub struct {
	store.Repository

	session *domain.Session
	findErr error

	cachedAccounts    []domain.Account
	cachedAccountsErr error
	replacedAccounts  []domain.Account
	accountsReplaced  bool

	cachedBeneficiaries   []domain.Beneficiary
	replacedBeneficiaries []domain.Beneficiary
	beneficiariesReplaced bool
}

func (s *resourcesRepoStub) FindSessionByID(ctx context.Context, sessionID uuid.UUID) (*domain.Session, error) {
	if s.findErr != nil {
		return nil, s.findErr
	}
	if s.session == nil {
		return nil, store.ErrSessionNotFound
	}
	return s.session, nil
}

func (s *resourcesRepoStub) GetCachedAccounts(ctx context.Context, sessionID uuid.UUID) ([]domain.Account, error) {
	if s.cachedAccountsErr != nil {
		return nil, s.cachedAccountsErr
	}
	return s.cachedAccounts, nil
}

func (s *resourcesRepoStub) ReplaceAccounts(ctx context.Context, sessionID uuid.UUID, accounts []domain.Account) error {
	s.accountsReplaced = true
	s.replacedAccounts = accounts
	return nil
}

func (s *resourcesRepoStub) GetCachedBeneficiaries(ctx context.Context, sessionID uuid.UUID) ([]domain.Beneficiary, error) {
	return s.cachedBeneficiaries, nil
}

func (s *resourcesRepoStub) ReplaceBeneficiaries(ctx context.Context, sessionID uuid.UUID, beneficiaries []domain.Beneficiary) error {
	s.beneficiariesReplaced = true
	s.replacedBeneficiaries = beneficiaries
	return nil
}

type eventRecorderStub struct {
	published []string
}

func (e *eventRecorderStub) Publish(ctx context.Context, exchange, routingKey string, body interface{}) error {
	e.published = append(e.published, exchange+"/"+routingKey)
	return nil
}

func (e *eventRecorderStub) Close() {}

func liveSession() *domain.Session {
	return &domain.Session{
		ID:             uuid.New(),
		CredentialKey:  "clientA",
		Environment:    "development",
		Token:          "tok-1",
		TokenExpiresAt: time.Now().UTC().Add(time.Hour),
	}
}

func TestRefreshAccounts_ExpiredTokenFailsFastWithoutRemoteCall(t *testing.T) {
	remoteCalls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		remoteCalls++
		http.NotFound(w, r)
	}))
	defer server.Close()

	session := liveSession()
	session.TokenExpiresAt = time.Now().UTC().Add(-time.Minute)
	repo := &resourcesRepoStub{session: session}
	svc := NewService(repo, testEnvironments(t, "development", server.URL), nil, "123456")

	_, err := svc.RefreshAccounts(context.Background(), session.ID)
	if !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}
	if remoteCalls != 0 {
		t.Fatalf("expected zero remote calls for an expired token, got %d", remoteCalls)
	}
}

func TestRefreshAccounts_MissingOrTokenlessSessionIsUnauthenticated(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer server.Close()

	repo := &resourcesRepoStub{}
	svc := NewService(repo, testEnvironments(t, "development", server.URL), nil, "123456")

	if _, err := svc.RefreshAccounts(context.Background(), uuid.New()); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated for a missing session, got %v", err)
	}

	session := liveSession()
	session.Token = ""
	repo.session = session
	if _, err := svc.RefreshAccounts(context.Background(), session.ID); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated for a tokenless session, got %v", err)
	}
}

func TestRefreshAccounts_ReplacesCacheAndConvertsOnSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok-1" {
			t.Errorf("expected the session token on the request, got %q", r.Header.Get("Authorization"))
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"accounts":[{"id":"acc_1","currency":"USD","balance":5025,"available_balance":5000,"pending_in":25,"pending_out":0}]}`)
	}))
	defer server.Close()

	session := liveSession()
	repo := &resourcesRepoStub{session: session}
	svc := NewService(repo, testEnvironments(t, "development", server.URL), nil, "123456")

	result, err := svc.RefreshAccounts(context.Background(), session.ID)
	if err != nil {
		t.Fatalf("expected refresh to succeed, got %v", err)
	}
	if !result.Fresh {
		t.Fatal("expected a live refresh to be marked fresh")
	}
	if !repo.accountsReplaced || len(repo.replacedAccounts) != 1 {
		t.Fatalf("expected the cached snapshot to be replaced with one record, got %d", len(repo.replacedAccounts))
	}
	if repo.replacedAccounts[0].Balance != 5025 {
		t.Fatalf("expected the cache to hold minor units, got %d", repo.replacedAccounts[0].Balance)
	}
	if !result.Accounts[0].Balance.Equal(decimal.RequireFromString("50.25")) {
		t.Fatalf("expected 5025 centavos to convert to 50.25, got %s", result.Accounts[0].Balance)
	}
}

func TestRefreshAccounts_FallsBackToCacheWhenUnavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	session := liveSession()
	repo := &resourcesRepoStub{
		session: session,
		cachedAccounts: []domain.Account{
			{SessionID: session.ID, AccountID: "acc_1", Currency: "USD", Balance: 10000, AvailableBalance: 10000},
			{SessionID: session.ID, AccountID: "acc_2", Currency: "EUR", Balance: 250, AvailableBalance: 250},
		},
	}
	svc := NewService(repo, testEnvironments(t, "development", server.URL), nil, "123456")

	result, err := svc.RefreshAccounts(context.Background(), session.ID)
	if err != nil {
		t.Fatalf("expected a silent fallback, got %v", err)
	}
	if result.Fresh {
		t.Fatal("expected the fallback result to be marked not fresh")
	}
	if repo.accountsReplaced {
		t.Fatal("expected no cache write on fallback")
	}
	if len(result.Accounts) != 2 || result.Accounts[0].ID != "acc_1" || result.Accounts[1].ID != "acc_2" {
		t.Fatalf("expected the exact cached set, got %+v", result.Accounts)
	}
	if !result.Accounts[0].Balance.Equal(decimal.RequireFromString("100.00")) {
		t.Fatalf("expected cached minor units converted on the way out, got %s", result.Accounts[0].Balance)
	}
}

func TestRefreshAccounts_ProviderRejectionPropagates(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusForbidden)
		_, _ = io.WriteString(w, `{"error":{"code":"wallet_locked","message":"wallet is locked"}}`)
	}))
	defer server.Close()

	session := liveSession()
	repo := &resourcesRepoStub{
		session:        session,
		cachedAccounts: []domain.Account{{SessionID: session.ID, AccountID: "acc_1", Currency: "USD", Balance: 100}},
	}
	svc := NewService(repo, testEnvironments(t, "development", server.URL), nil, "123456")

	_, err := svc.RefreshAccounts(context.Background(), session.ID)
	var apiErr *andinoclient.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != "wallet_locked" {
		t.Fatalf("expected the provider rejection verbatim, got %v", err)
	}
	if repo.accountsReplaced {
		t.Fatal("expected no cache write on a provider rejection")
	}
}

func TestRefreshBeneficiaries_CoercesPagingAndReplacesCache(t *testing.T) {
	var gotOffset, gotLimit string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotOffset = r.URL.Query().Get("offset")
		gotLimit = r.URL.Query().Get("limit")
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"rows":[{"id":"ben_1","name":"Luis","account_number":"0001","bank_code":"BC01","country":"CU","type":"external"}],"total":1}`)
	}))
	defer server.Close()

	session := liveSession()
	repo := &resourcesRepoStub{session: session}
	svc := NewService(repo, testEnvironments(t, "development", server.URL), nil, "123456")

	result, err := svc.RefreshBeneficiaries(context.Background(), session.ID, -3, 0)
	if err != nil {
		t.Fatalf("expected refresh to succeed, got %v", err)
	}
	if gotOffset != "0" || gotLimit != "50" {
		t.Fatalf("expected paging coerced to offset=0 limit=50, got offset=%s limit=%s", gotOffset, gotLimit)
	}
	if !result.Fresh || len(result.Beneficiaries) != 1 {
		t.Fatalf("expected a fresh single-record result, got fresh=%v len=%d", result.Fresh, len(result.Beneficiaries))
	}
	if !repo.beneficiariesReplaced {
		t.Fatal("expected the cached beneficiary snapshot to be replaced")
	}
}

func TestRefreshBeneficiaries_FallsBackToCacheWhenUnavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	session := liveSession()
	repo := &resourcesRepoStub{
		session: session,
		cachedBeneficiaries: []domain.Beneficiary{
			{SessionID: session.ID, BeneficiaryID: "ben_1", Name: "Luis"},
		},
	}
	svc := NewService(repo, testEnvironments(t, "development", server.URL), nil, "123456")

	result, err := svc.RefreshBeneficiaries(context.Background(), session.ID, 0, 50)
	if err != nil {
		t.Fatalf("expected a silent fallback, got %v", err)
	}
	if result.Fresh {
		t.Fatal("expected the fallback result to be marked not fresh")
	}
	if len(result.Beneficiaries) != 1 || result.Beneficiaries[0].BeneficiaryID != "ben_1" {
		t.Fatalf("expected the exact cached set, got %+v", result.Beneficiaries)
	}
	if repo.beneficiariesReplaced {
		t.Fatal("expected no cache write on fallback")
	}
}

func TestCreateBeneficiary_ReconcilesWithCanonicalList(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/v1/me/beneficiaries":
			var req andinoclient.CreateBeneficiaryRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name != "Marta" {
				t.Errorf("unexpected creation payload: %+v (%v)", req, err)
			}
			_, _ = io.WriteString(w, `{"id":"ben_2","name":"Marta","account_number":"0002","bank_code":"BC02","country":"CU","type":"external"}`)
		case r.Method == http.MethodGet && r.URL.Path == "/v1/me/beneficiaries":
			_, _ = io.WriteString(w, `{"rows":[{"id":"ben_1","name":"Luis","account_number":"0001","bank_code":"BC01","country":"CU","type":"external"},{"id":"ben_2","name":"Marta","account_number":"0002","bank_code":"BC02","country":"CU","type":"external"}],"total":2}`)
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	session := liveSession()
	repo := &resourcesRepoStub{session: session}
	events := &eventRecorderStub{}
	svc := NewService(repo, testEnvironments(t, "development", server.URL), events, "123456")

	result, err := svc.CreateBeneficiary(context.Background(), session.ID, domain.CreateBeneficiaryInput{
		Name:          "Marta",
		AccountNumber: "0002",
		BankCode:      "BC02",
		Country:       "CU",
		Type:          "external",
	})
	if err != nil {
		t.Fatalf("expected creation to succeed, got %v", err)
	}
	if result.Created.BeneficiaryID != "ben_2" {
		t.Fatalf("expected the provider's created record, got %+v", result.Created)
	}
	if !result.Fresh || len(result.Beneficiaries) != 2 {
		t.Fatalf("expected the reconciled canonical list, got fresh=%v len=%d", result.Fresh, len(result.Beneficiaries))
	}
	if len(repo.replacedBeneficiaries) != 2 {
		t.Fatalf("expected the cache replaced with the full list, got %d records", len(repo.replacedBeneficiaries))
	}
	if len(events.published) != 1 || events.published[0] != "lumapay.events/wallet.beneficiary.created" {
		t.Fatalf("expected a beneficiary created event, got %v", events.published)
	}
}

func TestCreateBeneficiary_SucceedsWhenReconcileDegrades(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/v1/me/beneficiaries":
			_, _ = io.WriteString(w, `{"id":"ben_2","name":"Marta","account_number":"0002","bank_code":"BC02","country":"CU","type":"external"}`)
		case r.Method == http.MethodGet && r.URL.Path == "/v1/me/beneficiaries":
			w.WriteHeader(http.StatusServiceUnavailable)
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	session := liveSession()
	repo := &resourcesRepoStub{
		session: session,
		cachedBeneficiaries: []domain.Beneficiary{
			{SessionID: session.ID, BeneficiaryID: "ben_1", Name: "Luis"},
		},
	}
	svc := NewService(repo, testEnvironments(t, "development", server.URL), nil, "123456")

	result, err := svc.CreateBeneficiary(context.Background(), session.ID, domain.CreateBeneficiaryInput{Name: "Marta"})
	if err != nil {
		t.Fatalf("expected creation to survive a degraded reconcile, got %v", err)
	}
	if result.Created.BeneficiaryID != "ben_2" {
		t.Fatalf("expected the created record, got %+v", result.Created)
	}
	if result.Fresh {
		t.Fatal("expected the degraded reconcile to be marked not fresh")
	}
	if len(result.Beneficiaries) != 1 || result.Beneficiaries[0].BeneficiaryID != "ben_1" {
		t.Fatalf("expected the stale cached list, got %+v", result.Beneficiaries)
	}
}

func TestCreateBeneficiary_ProviderRejectionPropagates(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusConflict)
		_, _ = io.WriteString(w, `{"error":{"code":"duplicate_beneficiary","message":"already registered"}}`)
	}))
	defer server.Close()

	session := liveSession()
	repo := &resourcesRepoStub{session: session}
	svc := NewService(repo, testEnvironments(t, "development", server.URL), nil, "123456")

	_, err := svc.CreateBeneficiary(context.Background(), session.ID, domain.CreateBeneficiaryInput{Name: "Marta"})
	var apiErr *andinoclient.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != "duplicate_beneficiary" {
		t.Fatalf("expected the provider conflict verbatim, got %v", err)
	}
	if repo.beneficiariesReplaced {
		t.Fatal("expected no cache write after a rejected creation")
	}
}

func TestCachedAccounts_ServesSnapshotWithoutRemoteCall(t *testing.T) {
	remoteCalls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		remoteCalls++
		http.NotFound(w, r)
	}))
	defer server.Close()

	session := liveSession()
	repo := &resourcesRepoStub{
		session:        session,
		cachedAccounts: []domain.Account{{SessionID: session.ID, AccountID: "acc_1", Currency: "USD", Balance: 730}},
	}
	svc := NewService(repo, testEnvironments(t, "development", server.URL), nil, "123456")

	result, err := svc.CachedAccounts(context.Background(), session.ID)
	if err != nil {
		t.Fatalf("expected the cached read to succeed, got %v", err)
	}
	if result.Fresh {
		t.Fatal("expected a cached read to be marked not fresh")
	}
	if !result.Accounts[0].Balance.Equal(decimal.RequireFromString("7.30")) {
		t.Fatalf("expected 730 centavos to convert to 7.30, got %s", result.Accounts[0].Balance)
	}
	if remoteCalls != 0 {
		t.Fatalf("expected zero remote calls on a cached read, got %d", remoteCalls)
	}
}
