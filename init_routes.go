// Package main — registro das rotas HTTP.
//
// Regra de ordenação do ServeMux: path literal antes de path com
// parâmetro, senão o router engole o literal como valor do parâmetro.
package main

import (
	"net/http"
	"time"

	"github.com/gustavoprado11/carvao-app-sub000/middleware"
	"github.com/gustavoprado11/carvao-app-sub000/pkg/ratelimit"
)

func initRoutes(mux *http.ServeMux, h *Handlers, svcs *Services) {
	authMw := middleware.NewAuthMiddleware(svcs.Auth)

	// Limiter dos endpoints de escrita. Vive até o fim do processo.
	writeLimiter := ratelimit.NewUserRateLimiter(120, time.Minute)
	rateMw := middleware.NewRateLimitMiddleware(writeLimiter)

	// Helpers da chain: todo endpoint protegido passa pelo Require;
	// escrita ainda passa pelo limiter.
	auth := func(handler http.HandlerFunc) http.Handler {
		return authMw.Require(http.HandlerFunc(handler))
	}
	authLimited := func(handler http.HandlerFunc) http.Handler {
		return authMw.Require(rateMw.Limit(http.HandlerFunc(handler)))
	}

	// Health — sem auth, usado pelo supervisor do daemon.
	mux.HandleFunc("GET /api/health", h.Health.Check)

	// Conversas e leitura.
	mux.Handle("GET /api/conversations", auth(h.Conversation.List))
	mux.Handle("GET /api/conversations/unread", auth(h.Conversation.GetUnread))
	mux.Handle("PUT /api/conversations/focus", authLimited(h.Conversation.SetFocus))
	mux.Handle("POST /api/conversations/{id}/read", authLimited(h.Conversation.MarkRead))

	// Sessão de rastreio.
	mux.Handle("POST /api/session", authLimited(h.Session.Open))
	mux.Handle("DELETE /api/session", authLimited(h.Session.Close))
	mux.Handle("POST /api/session/app-state", authLimited(h.Session.SetAppState))

	// WebSocket das UIs. O browser não manda header custom no upgrade,
	// então o token vai na query string: ws://daemon/ws?token=JWT
	mux.Handle("GET /ws", h.WS)
}
