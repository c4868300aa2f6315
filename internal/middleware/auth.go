package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/mtlprog/teamtask/internal/domain"
	"github.com/mtlprog/teamtask/internal/handler/dto"
)

type contextKey string

const (
	// ContextKeyIdentity is the key for storing the caller's identity in request context.
	ContextKeyIdentity contextKey = "identity"
)

// Authenticator turns a bearer token into the caller's identity.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (domain.Identity, error)
}

// AuthMiddleware handles Bearer token authentication.
type AuthMiddleware struct {
	authenticator Authenticator
}

// NewAuthMiddleware creates a new AuthMiddleware.
func NewAuthMiddleware(authenticator Authenticator) *AuthMiddleware {
	return &AuthMiddleware{
		authenticator: authenticator,
	}
}

// Authenticate validates the Bearer token and adds the identity to request context.
func (m *AuthMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			unauthorized(w, "missing authorization header")
			return
		}

		scheme, token, ok := strings.Cut(authHeader, " ")
		if !ok || !strings.EqualFold(scheme, "bearer") {
			unauthorized(w, "invalid authorization header format")
			return
		}

		token = strings.TrimSpace(token)
		if token == "" {
			unauthorized(w, "missing token")
			return
		}

		identity, err := m.authenticator.Authenticate(r.Context(), token)
		if err != nil {
			if errors.Is(err, domain.ErrUnauthenticated) {
				unauthorized(w, "invalid or expired token")
				return
			}
			slog.Error("authentication failed", "error", err)
			writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error")
			return
		}

		ctx := context.WithValue(r.Context(), ContextKeyIdentity, identity)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetIdentityFromContext retrieves the authenticated identity from request context.
func GetIdentityFromContext(ctx context.Context) (domain.Identity, error) {
	identity, ok := ctx.Value(ContextKeyIdentity).(domain.Identity)
	if !ok || identity.ID == "" {
		return domain.Identity{}, domain.ErrUnauthenticated
	}
	return identity, nil
}

func unauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="teamtask"`)
	writeError(w, http.StatusUnauthorized, "UNAUTHENTICATED", message)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(dto.NewErrorResponse(code, message)); err != nil {
		slog.Error("failed to encode JSON response", "error", err)
	}
}
