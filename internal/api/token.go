/**
 * @description
 * This file issues the bearer tokens the wallet-service hands back after a
 * successful authentication. The token is an HS256 JWT whose subject is the
 * session id and whose expiry mirrors the provider token's expiry, so an
 * expired bearer token always coincides with a provider token that needs
 * re-authentication anyway.
 */

package api

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// sessionTokenIssuer identifies tokens minted by this service.
const sessionTokenIssuer = "lumapay-wallet-service"

// IssueSessionToken mints the bearer token for an authenticated session.
func IssueSessionToken(jwtSecret string, sessionID uuid.UUID, environment string, expiresAt time.Time) (string, error) {
	now := time.Now().UTC()
	claims := jwt.MapClaims{
		"iss": sessionTokenIssuer,
		"sub": sessionID.String(),
		"env": environment,
		"iat": jwt.NewNumericDate(now),
		"exp": jwt.NewNumericDate(expiresAt),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(jwtSecret))
}
