// Package middleware provides HTTP middleware for the chat API.
package middleware

import (
	"context"
	"errors"
	"net/http"
	"slices"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// ContextKey is a type for context keys.
type ContextKey string

// PrincipalKey is the context key for the authenticated caller.
const PrincipalKey ContextKey = "principal"

var errMalformedHeader = errors.New("invalid authorization header format")

// Claims are the JWT claims the chat API accepts. The tenant ends up in stream
// subjects, so it must pass ValidateTenantID.
type Claims struct {
	jwt.RegisteredClaims
	TenantID string   `json:"tenant_id"`
	Scopes   []string `json:"scope"`
}

// principal is the caller identity taken from a verified token.
type principal struct {
	userID   string
	tenantID string
	scopes   []string
}

// Auth verifies HMAC-signed bearer tokens and stores the caller in the request context.
func Auth(jwtSecret string) func(http.Handler) http.Handler {
	key := []byte(jwtSecret)
	keyFunc := func(*jwt.Token) (interface{}, error) { return key, nil }

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, err := bearerToken(r)
			if err != nil {
				denyJSON(w, http.StatusUnauthorized, err.Error())
				return
			}

			claims := &Claims{}
			if _, err := jwt.ParseWithClaims(raw, claims, keyFunc,
				jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"})); err != nil {
				denyJSON(w, http.StatusUnauthorized, "invalid token")
				return
			}

			if err := ValidateTenantID(claims.TenantID); err != nil {
				denyJSON(w, http.StatusUnauthorized, "invalid tenant")
				return
			}

			ctx := context.WithValue(r.Context(), PrincipalKey, &principal{
				userID:   claims.Subject,
				tenantID: claims.TenantID,
				scopes:   claims.Scopes,
			})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", errors.New("missing authorization header")
	}
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "bearer") || strings.TrimSpace(token) == "" {
		return "", errMalformedHeader
	}
	return strings.TrimSpace(token), nil
}

func denyJSON(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write([]byte(`{"error":"` + message + `"}`))
}

func principalFrom(ctx context.Context) *principal {
	p, _ := ctx.Value(PrincipalKey).(*principal)
	if p == nil {
		return &principal{}
	}
	return p
}

// GetUserID returns the authenticated user, or "".
func GetUserID(ctx context.Context) string {
	return principalFrom(ctx).userID
}

// GetTenantID returns the authenticated tenant, or "".
func GetTenantID(ctx context.Context) string {
	return principalFrom(ctx).tenantID
}

// GetScopes returns the token scopes.
func GetScopes(ctx context.Context) []string {
	return principalFrom(ctx).scopes
}

// HasScope checks if the context has a specific scope.
func HasScope(ctx context.Context, scope string) bool {
	return slices.Contains(GetScopes(ctx), scope)
}

// RequireScope rejects callers whose token lacks scope.
func RequireScope(scope string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !HasScope(r.Context(), scope) {
				denyJSON(w, http.StatusForbidden, "insufficient permissions")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
