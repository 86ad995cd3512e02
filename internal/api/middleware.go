/**
 * @description
 * This file contains custom middleware for the HTTP router. The session
 * middleware validates the bearer token issued at authentication and places
 * the session id on the request context for handlers to consume.
 *
 * @dependencies
 * - context, net/http, strings: Standard Go libraries.
 * - github.com/golang-jwt/jwt/v5: Token parsing and validation.
 */

package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// SessionIDContextKey is a custom type for the context key to avoid collisions.
type SessionIDContextKey string

const walletSessionIDKey SessionIDContextKey = "walletSessionID"

// SessionAuthMiddleware creates a middleware that validates the bearer tokens
// minted by IssueSessionToken.
func SessionAuthMiddleware(jwtSecret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				http.Error(w, "Authorization header required", http.StatusUnauthorized)
				return
			}

			// Extract the token from "Bearer <token>"
			tokenString := strings.TrimPrefix(authHeader, "Bearer ")
			if tokenString == authHeader {
				http.Error(w, "Invalid Authorization header format", http.StatusUnauthorized)
				return
			}

			sessionID, err := parseSessionToken(jwtSecret, tokenString)
			if err != nil {
				http.Error(w, fmt.Sprintf("Invalid token: %v", err), http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), walletSessionIDKey, sessionID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// parseSessionToken checks the signature, expiry, and issuer of a bearer
// token and extracts the session id from its subject claim.
func parseSessionToken(jwtSecret, tokenString string) (uuid.UUID, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(jwtSecret), nil
	})
	if err != nil {
		return uuid.Nil, err
	}
	if !token.Valid {
		return uuid.Nil, errors.New("token is not valid")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return uuid.Nil, errors.New("unexpected claims type")
	}
	if issuer, _ := claims["iss"].(string); issuer != sessionTokenIssuer {
		return uuid.Nil, errors.New("unexpected issuer")
	}

	subject, _ := claims["sub"].(string)
	sessionID, err := uuid.Parse(subject)
	if err != nil {
		return uuid.Nil, fmt.Errorf("malformed session id: %w", err)
	}
	return sessionID, nil
}

// GetSessionID retrieves the authenticated session id from the request
// context. Handlers should use this function rather than reparsing the token.
func GetSessionID(ctx context.Context) (uuid.UUID, bool) {
	sessionID, ok := ctx.Value(walletSessionIDKey).(uuid.UUID)
	return sessionID, ok
}
