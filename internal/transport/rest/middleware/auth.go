package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"liaptui/internal/model"
	"liaptui/internal/service"
)

type contextKey string

const PlayerKey contextKey = "player"

// AuthMiddleware resolves the player behind a room session token.
type AuthMiddleware struct {
	authSvc *service.AuthService
}

// NewAuthMiddleware creates a new auth middleware
func NewAuthMiddleware(authSvc *service.AuthService) *AuthMiddleware {
	return &AuthMiddleware{authSvc: authSvc}
}

// RequirePlayer validates the player JWT from the Authorization header or
// the token query param, and rejects it when the route's {id} names a
// different room.
func (m *AuthMiddleware) RequirePlayer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := extractBearerToken(r)
		if token == "" {
			token = r.URL.Query().Get("token")
		}
		if token == "" {
			http.Error(w, `{"error":"missing authorization"}`, http.StatusUnauthorized)
			return
		}

		claims, err := m.authSvc.ValidatePlayerToken(token)
		if err != nil {
			http.Error(w, `{"error":"invalid or expired token"}`, http.StatusUnauthorized)
			return
		}

		if roomID, ok := mux.Vars(r)["id"]; ok && roomID != claims.RoomID {
			http.Error(w, `{"error":"token not valid for this room"}`, http.StatusForbidden)
			return
		}

		ctx := context.WithValue(r.Context(), PlayerKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetPlayer extracts the player claims from context
func GetPlayer(ctx context.Context) *model.PlayerClaims {
	if v, ok := ctx.Value(PlayerKey).(*model.PlayerClaims); ok {
		return v
	}
	return &model.PlayerClaims{}
}

func extractBearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if auth == "" {
		return ""
	}
	parts := strings.SplitN(auth, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return ""
	}
	return parts[1]
}
