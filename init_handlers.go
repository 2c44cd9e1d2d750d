// Package main — inicialização da camada de handler.
//
// Handlers são finos: parse do HTTP, chamada de service, escrita da
// resposta. Nada de regra de negócio aqui.
package main

import (
	"github.com/gustavoprado11/carvao-app-sub000/handlers"
	"github.com/gustavoprado11/carvao-app-sub000/ws"
)

// Handlers, container das instâncias de handler.
type Handlers struct {
	Conversation *handlers.ConversationHandler
	Session      *handlers.SessionHandler
	Health       *handlers.HealthHandler
	WS           *ws.Handler
}

func initHandlers(svcs *Services, hub *ws.Hub) *Handlers {
	return &Handlers{
		Conversation: handlers.NewConversationHandler(svcs.Conversations, svcs.Tracker),
		Session:      handlers.NewSessionHandler(svcs.Tracker),
		Health:       handlers.NewHealthHandler(hub),
		WS:           ws.NewHandler(hub, svcs.Auth, svcs.Tracker),
	}
}
