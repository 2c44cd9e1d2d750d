// Package middleware, camadas do pipeline HTTP antes dos handlers.
package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gustavoprado11/carvao-app-sub000/handlers"
	"github.com/gustavoprado11/carvao-app-sub000/pkg"
	"github.com/gustavoprado11/carvao-app-sub000/services"
)

// AuthMiddleware, validação do JWT emitido pelo backend gerenciado.
// O daemon não tem base de usuários própria: o token é a identidade.
type AuthMiddleware struct {
	authService services.AuthService
}

// NewAuthMiddleware, constructor.
func NewAuthMiddleware(authService services.AuthService) *AuthMiddleware {
	return &AuthMiddleware{authService: authService}
}

// Require exige token válido. Sem token ou inválido: 401 e a cadeia para.
//
// Formato do header: Authorization: Bearer <token>
func (m *AuthMiddleware) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			pkg.ErrorWithMessage(w, http.StatusUnauthorized, "authorization header required")
			return
		}

		if !strings.HasPrefix(authHeader, "Bearer ") {
			pkg.ErrorWithMessage(w, http.StatusUnauthorized, "invalid authorization format, use: Bearer <token>")
			return
		}
		tokenString := strings.TrimPrefix(authHeader, "Bearer ")

		claims, err := m.authService.ValidateAccessToken(tokenString)
		if err != nil {
			pkg.Error(w, err)
			return
		}

		// Os claims já saem do AuthService com o e-mail normalizado.
		ctx := context.WithValue(r.Context(), handlers.ClaimsContextKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
