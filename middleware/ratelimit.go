package middleware

import (
	"net/http"

	"github.com/gustavoprado11/carvao-app-sub000/handlers"
	"github.com/gustavoprado11/carvao-app-sub000/models"
	"github.com/gustavoprado11/carvao-app-sub000/pkg"
	"github.com/gustavoprado11/carvao-app-sub000/pkg/ratelimit"
)

// RateLimitMiddleware, teto de requests por usuário nos endpoints de
// escrita. UI com bug de loop (mark-read disparando a cada render já
// aconteceu) não pode afogar o daemon nem o backend.
type RateLimitMiddleware struct {
	limiter *ratelimit.UserRateLimiter
}

// NewRateLimitMiddleware, constructor.
func NewRateLimitMiddleware(limiter *ratelimit.UserRateLimiter) *RateLimitMiddleware {
	return &RateLimitMiddleware{limiter: limiter}
}

// Limit barra o request com 429 quando o usuário estoura a janela.
// Deve vir DEPOIS do AuthMiddleware na chain: a chave é o usuário do
// token; sem claims no context cai para o endereço remoto.
func (m *RateLimitMiddleware) Limit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.RemoteAddr
		if claims, ok := r.Context().Value(handlers.ClaimsContextKey).(*models.TokenClaims); ok {
			key = claims.Email
		}

		if !m.limiter.Allow(key) {
			pkg.ErrorWithMessage(w, http.StatusTooManyRequests, "too many requests, slow down")
			return
		}

		next.ServeHTTP(w, r)
	})
}
