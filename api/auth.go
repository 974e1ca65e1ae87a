/*
auth.go - Principal resolution from signed tokens

PURPOSE:
  Every /api route except signup runs with an authenticated principal
  (tenant, user, role). The principal travels as an HS256 JWT in the
  Authorization header ("Bearer <token>") or, for browser clients, in
  the "jwt" cookie.

  Issuing tokens to end users (login) is out of scope for this service;
  Issue exists for cmd/devtoken and tests.

CLAIMS:
  tenant_id, user_id, role   the principal
  exp, iat, sub              standard registered claims (sub = user_id)
*/
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"

	"github.com/warp/lot-ledger/inventory"
)

// Claims is the token payload.
type Claims struct {
	TenantID string `json:"tenant_id"`
	UserID   string `json:"user_id"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// Auth signs and verifies principal tokens with a shared secret.
type Auth struct {
	secret []byte
	now    func() time.Time
}

func NewAuth(secret string) *Auth {
	return &Auth{secret: []byte(secret), now: time.Now}
}

// Issue signs a token for p that expires after ttl.
func (a *Auth) Issue(p inventory.Principal, ttl time.Duration) (string, error) {
	now := a.now()
	claims := Claims{
		TenantID: string(p.TenantID),
		UserID:   string(p.UserID),
		Role:     string(p.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   string(p.UserID),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

// Parse verifies a token and returns its principal.
func (a *Auth) Parse(raw string) (inventory.Principal, error) {
	token, err := jwt.ParseWithClaims(raw, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return a.secret, nil
	})
	if err != nil {
		return inventory.Principal{}, err
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return inventory.Principal{}, errors.New("invalid token claims")
	}

	p := inventory.Principal{
		TenantID: inventory.TenantID(claims.TenantID),
		UserID:   inventory.UserID(claims.UserID),
		Role:     inventory.Role(claims.Role),
	}
	if p.TenantID == "" || p.UserID == "" || !p.Role.Valid() {
		return inventory.Principal{}, errors.New("token does not carry a complete principal")
	}
	return p, nil
}

// Middleware rejects requests without a valid token with 401 and stores
// the principal on the request context otherwise.
func (a *Auth) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := bearerToken(r)
		if raw == "" {
			writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "missing credentials", Code: "unauthorized"})
			return
		}
		p, err := a.Parse(raw)
		if err != nil {
			writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "invalid or expired token", Code: "unauthorized"})
			return
		}
		next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
	})
}

func bearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		scheme, token, ok := strings.Cut(h, " ")
		if ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(token)
		}
		return ""
	}
	if c, err := r.Cookie("jwt"); err == nil {
		return c.Value
	}
	return ""
}

// =============================================================================
// CONTEXT
// =============================================================================

type principalKey struct{}

func WithPrincipal(ctx context.Context, p inventory.Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFrom returns the principal stored by Middleware.
func PrincipalFrom(ctx context.Context) (inventory.Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(inventory.Principal)
	return p, ok
}
