package middleware

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/forkline/outreach-api/internal/api/shared"
	"github.com/forkline/outreach-api/internal/domain"
	"github.com/forkline/outreach-api/internal/redact"
)

// Claims carried by an access token. Every request acts for one user
// inside one organisation; both ids are mandatory.
type Claims struct {
	UserID string `json:"user_id"`
	OrgID  string `json:"org_id"`
	jwt.RegisteredClaims
}

// AuthMiddleware provides JWT authentication for routes.
type AuthMiddleware struct {
	secret []byte
}

// NewAuthMiddleware creates a new AuthMiddleware verifying tokens against
// the given HMAC secret.
func NewAuthMiddleware(jwtSecret string) *AuthMiddleware {
	return &AuthMiddleware{
		secret: []byte(jwtSecret),
	}
}

// Authenticate validates JWT tokens from the Authorization header and adds
// the resulting org context to the request context for authorized requests.
func (m *AuthMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			shared.RespondWithError(w, r, http.StatusUnauthorized, "Authorization header required")
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			shared.RespondWithError(w, r, http.StatusUnauthorized, "Invalid authorization format")
			return
		}

		org, err := m.parseToken(parts[1])
		if err != nil {
			slog.Debug("token validation failed", "error", redact.Error(err))
			shared.RespondWithError(w, r, http.StatusUnauthorized, "Invalid or expired token")
			return
		}

		ctx := shared.WithOrgContext(r.Context(), org)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// parseToken verifies the token signature and expiry and extracts the org
// context from its claims.
func (m *AuthMiddleware) parseToken(tokenString string) (domain.OrgContext, error) {
	var claims Claims
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return m.secret, nil
	})
	if err != nil {
		return domain.OrgContext{}, err
	}
	if !token.Valid {
		return domain.OrgContext{}, domain.ErrUnauthorized
	}

	orgID, err := uuid.Parse(claims.OrgID)
	if err != nil {
		return domain.OrgContext{}, fmt.Errorf("invalid org_id claim: %w", domain.ErrUnauthorized)
	}
	userID, err := uuid.Parse(claims.UserID)
	if err != nil {
		return domain.OrgContext{}, fmt.Errorf("invalid user_id claim: %w", domain.ErrUnauthorized)
	}

	return domain.NewOrgContext(orgID, userID)
}
