package api

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const testJWTSecret = "test-secret"

func runSessionMiddleware(t *testing.T, secret, authHeader string) (*httptest.ResponseRecorder, uuid.UUID, bool) {
	t.Helper()

	var nextCalled bool
	var gotID uuid.UUID
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		nextCalled = true
		gotID, _ = GetSessionID(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/wallet/profile", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	rec := httptest.NewRecorder()
	SessionAuthMiddleware(secret)(next).ServeHTTP(rec, req)
	return rec, gotID, nextCalled
}

func TestSessionAuthMiddleware_AcceptsIssuedToken(t *testing.T) {
	sessionID := uuid.New()
	token, err := IssueSessionToken(testJWTSecret, sessionID, "development", time.Now().UTC().Add(time.Hour))
	if err != nil {
		t.Fatalf("IssueSessionToken() error = %v", err)
	}

	rec, gotID, nextCalled := runSessionMiddleware(t, testJWTSecret, "Bearer "+token)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d (%s)", rec.Code, rec.Body.String())
	}
	if !nextCalled {
		t.Fatal("expected the next handler to be called")
	}
	if gotID != sessionID {
		t.Fatalf("expected session id %s on the context, got %s", sessionID, gotID)
	}
}

func TestSessionAuthMiddleware_RejectsMissingHeader(t *testing.T) {
	rec, _, nextCalled := runSessionMiddleware(t, testJWTSecret, "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", rec.Code)
	}
	if nextCalled {
		t.Fatal("expected the next handler to be skipped")
	}
}

func TestSessionAuthMiddleware_RejectsNonBearerHeader(t *testing.T) {
	rec, _, nextCalled := runSessionMiddleware(t, testJWTSecret, "Token abc123")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", rec.Code)
	}
	if nextCalled {
		t.Fatal("expected the next handler to be skipped")
	}
}

func TestSessionAuthMiddleware_RejectsWrongSecret(t *testing.T) {
	token, err := IssueSessionToken("another-secret", uuid.New(), "development", time.Now().UTC().Add(time.Hour))
	if err != nil {
		t.Fatalf("IssueSessionToken() error = %v", err)
	}

	rec, _, nextCalled := runSessionMiddleware(t, testJWTSecret, "Bearer "+token)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", rec.Code)
	}
	if nextCalled {
		t.Fatal("expected the next handler to be skipped")
	}
}

func TestSessionAuthMiddleware_RejectsExpiredToken(t *testing.T) {
	token, err := IssueSessionToken(testJWTSecret, uuid.New(), "development", time.Now().UTC().Add(-time.Minute))
	if err != nil {
		t.Fatalf("IssueSessionToken() error = %v", err)
	}

	rec, _, nextCalled := runSessionMiddleware(t, testJWTSecret, "Bearer "+token)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401 for an expired token, got %d", rec.Code)
	}
	if nextCalled {
		t.Fatal("expected the next handler to be skipped")
	}
}

func TestSessionAuthMiddleware_RejectsForeignIssuer(t *testing.T) {
	claims := jwt.MapClaims{
		"iss": "someone-else",
		"sub": uuid.New().String(),
		"iat": jwt.NewNumericDate(time.Now().UTC()),
		"exp": jwt.NewNumericDate(time.Now().UTC().Add(time.Hour)),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testJWTSecret))
	if err != nil {
		t.Fatalf("failed to sign test token: %v", err)
	}

	rec, _, nextCalled := runSessionMiddleware(t, testJWTSecret, "Bearer "+token)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401 for a foreign issuer, got %d", rec.Code)
	}
	if nextCalled {
		t.Fatal("expected the next handler to be skipped")
	}
}

func TestSessionAuthMiddleware_RejectsNonUUIDSubject(t *testing.T) {
	claims := jwt.MapClaims{
		"iss": sessionTokenIssuer,
		"sub": "not-a-uuid",
		"iat": jwt.NewNumericDate(time.Now().UTC()),
		"exp": jwt.NewNumericDate(time.Now().UTC().Add(time.Hour)),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testJWTSecret))
	if err != nil {
		t.Fatalf("failed to sign test token: %v", err)
	}

	rec, _, nextCalled := runSessionMiddleware(t, testJWTSecret, "Bearer "+token)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401 for a malformed subject, got %d", rec.Code)
	}
	if nextCalled {
		t.Fatal("expected the next handler to be skipped")
	}
}
