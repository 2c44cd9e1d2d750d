// Package main — callbacks do Hub.
//
// O Hub vive no pacote ws e não conhece as services (inversão de
// dependência); o main, como ponto de wire-up, liga os eventos do Hub ao
// tracker. Os callbacks rodam em goroutine própria (o Hub os dispara com
// `go`), então nenhum deles segura o event loop do Hub.
package main

import (
	"context"

	"github.com/gustavoprado11/carvao-app-sub000/ws"
)

func initCallbacks(hub *ws.Hub, svcs *Services) {
	// Primeira conexão do usuário abre a sessão de rastreio (login).
	hub.OnUserFirstConnect(func(userKey, role string) {
		svcs.Tracker.Login(context.Background(), userKey, role)
		svcs.Tracker.SetAppState(userKey, ws.AppStateForeground)
	})

	// Última conexão caindo não é logout: o usuário pode estar trocando
	// de rede. A sessão só vai para segundo plano; o DELETE /api/session
	// é quem encerra de verdade.
	hub.OnUserFullyDisconnect(func(userKey string) {
		svcs.Tracker.SetAppState(userKey, ws.AppStateBackground)
	})

	hub.OnFocusChange(func(userKey, conversationID string) {
		svcs.Tracker.SetActiveConversation(userKey, conversationID)
	})

	hub.OnAppStateChange(func(userKey, state string) {
		svcs.Tracker.SetAppState(userKey, state)
	})

	hub.OnMarkRead(func(userKey string, data ws.MarkReadData) {
		svcs.Tracker.MarkRead(userKey, data.ConversationID, data.ReadAt)
	})
}
