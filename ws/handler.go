package ws

import (
	"log"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/gustavoprado11/carvao-app-sub000/models"
)

// TokenValidator, valida o token de acesso do handshake.
// Implementado por services.AuthService.
type TokenValidator interface {
	ValidateAccessToken(tokenString string) (*models.TokenClaims, error)
}

// ReadyProvider fornece o estado de não lidas atual do usuário,
// enviado no evento ready logo após a conexão.
// Implementado por services.TrackerService.
type ReadyProvider interface {
	UnreadState(userKey string) (int, []UnreadItem)
}

// Handler, o endpoint HTTP de upgrade para WebSocket.
type Handler struct {
	hub      *Hub
	auth     TokenValidator
	ready    ReadyProvider
	upgrader websocket.Upgrader
}

// NewHandler cria o handler de upgrade.
func NewHandler(hub *Hub, auth TokenValidator, ready ReadyProvider) *Handler {
	return &Handler{
		hub:   hub,
		auth:  auth,
		ready: ready,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// As UIs rodam em origens variadas (app desktop, webview).
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// ServeHTTP faz o handshake: autentica, registra o client e
// dispara as duas goroutines da conexão.
//
// O token vem por query string porque a API de WebSocket do browser
// não permite definir headers no handshake.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	tokenString := r.URL.Query().Get("token")
	if tokenString == "" {
		http.Error(w, "missing token", http.StatusUnauthorized)
		return
	}

	claims, err := h.auth.ValidateAccessToken(tokenString)
	if err != nil {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[ws] upgrade failed for user %s: %v", claims.Email, err)
		return
	}

	client := &Client{
		hub:     h.hub,
		conn:    conn,
		id:      uuid.NewString(),
		userKey: claims.Email,
		role:    claims.Role,
		send:    make(chan []byte, sendBufferSize),
	}

	h.hub.register <- client

	go client.WritePump()

	// Snapshot inicial direto para esta conexão, antes de qualquer
	// broadcast: a UI renderiza o badge sem esperar o primeiro evento.
	count, unread := h.ready.UnreadState(client.userKey)
	client.sendEvent(Event{Op: OpReady, Data: ReadyData{Count: count, Unread: unread}})

	client.ReadPump()
}
