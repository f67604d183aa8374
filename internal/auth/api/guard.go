package authapi

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"photoshare/internal/auth/token"
	"photoshare/internal/identity"
)

// Failure codes carried in the error envelope. Clients renew only on
// CodeTokenExpired; every other unauthorized kind means re-authenticate.
const (
	CodeTokenExpired = "token_expired"
	CodeInvalidToken = "invalid_token"
	CodeUnauthorized = "unauthorized"
	CodeForbidden    = "forbidden"
)

type claimsContextKey struct{}

// ClaimsFromContext returns the verified claims attached by RequireAuth.
func ClaimsFromContext(ctx context.Context) (token.Claims, bool) {
	c, ok := ctx.Value(claimsContextKey{}).(token.Claims)
	return c, ok
}

// Guard verifies bearer access tokens and enforces role checks for any
// handler that needs an authenticated caller.
type Guard struct {
	issuer *token.Issuer
}

// NewGuard builds a Guard around the process-wide token issuer.
func NewGuard(issuer *token.Issuer) *Guard {
	return &Guard{issuer: issuer}
}

// RequireAuth wraps next so it only runs for requests bearing a valid
// access token. Verified claims are attached to the request context.
func (g *Guard) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, ok := bearerToken(r)
		if !ok {
			sendError(w, http.StatusUnauthorized, CodeUnauthorized, "authentication required")
			return
		}

		claims, err := g.issuer.Verify(raw)
		if err != nil {
			// Expired is the one recoverable kind: the client should
			// renew and replay. Everything else must not trigger renewal.
			if errors.Is(err, token.ErrTokenExpired) {
				sendError(w, http.StatusUnauthorized, CodeTokenExpired, "access token expired")
				return
			}
			sendError(w, http.StatusUnauthorized, CodeInvalidToken, "invalid access token")
			return
		}

		ctx := context.WithValue(r.Context(), claimsContextKey{}, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireAdmin is RequireAuth plus an admin role check. The role check
// runs only after successful token verification.
func (g *Guard) RequireAdmin(next http.Handler) http.Handler {
	return g.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, _ := ClaimsFromContext(r.Context())
		if claims.Role != string(identity.RoleAdmin) {
			sendError(w, http.StatusForbidden, CodeForbidden, "admin privilege required")
			return
		}
		next.ServeHTTP(w, r)
	}))
}

func bearerToken(r *http.Request) (string, bool) {
	raw := strings.TrimSpace(r.Header.Get("Authorization"))
	if raw == "" {
		return "", false
	}
	scheme, rest, found := strings.Cut(raw, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	tok := strings.TrimSpace(rest)
	if tok == "" {
		return "", false
	}
	return tok, true
}
