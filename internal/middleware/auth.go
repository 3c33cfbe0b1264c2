package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/baharkarakas/credits-backend/internal/api/httpx"
	"github.com/baharkarakas/credits-backend/internal/auth"
	"github.com/baharkarakas/credits-backend/internal/models"
)

type userLoader interface {
	GetByID(ctx context.Context, id int64) (models.User, error)
}

// AuthMiddleware resolves the bearer access token to a live user row, so
// every purchase request arrives already bound to an identity and a current
// balance.
type AuthMiddleware struct {
	tm    *auth.TokenManager
	users userLoader
}

func NewAuthMiddleware(tm *auth.TokenManager, users userLoader) *AuthMiddleware {
	return &AuthMiddleware{tm: tm, users: users}
}

func (m *AuthMiddleware) Auth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ah := r.Header.Get("Authorization")
		if ah == "" || !strings.HasPrefix(strings.ToLower(ah), "bearer ") {
			httpx.WriteError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token", nil)
			return
		}
		token := strings.TrimSpace(ah[len("Bearer "):])

		claims, isRefresh, err := m.tm.ParseAny(token)
		if err != nil || isRefresh {
			httpx.WriteError(w, http.StatusUnauthorized, "unauthorized", "invalid access token", nil)
			return
		}

		u, err := m.users.GetByID(r.Context(), claims.UserID)
		if err != nil {
			httpx.WriteError(w, http.StatusUnauthorized, "unauthorized", "unknown user", nil)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), u)))
	})
}
