package ws

import (
	"encoding/json"
	"log"
	"sync"
	"sync/atomic"
)

// EventPublisher, interface que a camada de service usa para falar com as
// UIs conectadas.
//
// Os services dependem desta interface, não do struct Hub — em teste entra
// um publisher fake, e o Hub pode mudar sem tocar nos services.
type EventPublisher interface {
	BroadcastToUser(userKey string, event Event)
	IsUserOnline(userKey string) bool
	GetOnlineUserKeys() []string
}

// Hub, estrutura central que gerencia todas as conexões WebSocket.
//
// Cada usuário pode ter várias conexões ao mesmo tempo (app no celular +
// portal em duas abas); o map guarda um set de clients por chave de
// usuário. O Run() roda em goroutine própria e consome os channels de
// register/unregister; broadcast lê o map sob RLock.
type Hub struct {
	// clients: userKey → set de clients (map[*Client]bool faz papel de set).
	clients map[string]map[*Client]bool

	// mu protege o map de clients. RWMutex: broadcasts concorrentes só
	// precisam de RLock; register/unregister pegam Lock.
	mu sync.RWMutex

	register   chan *Client
	unregister chan *Client

	// seq: contador atômico dos eventos de saída.
	seq atomic.Int64

	// Callbacks ligados no main.go (wire-up). O Hub não conhece tracker
	// nem repositories — inversão de dependência igual à das services.
	onUserFirstConnect    func(userKey, role string)
	onUserFullyDisconnect func(userKey string)
	onFocusChange         func(userKey, conversationID string)
	onAppStateChange      func(userKey, state string)
	onMarkRead            func(userKey string, data MarkReadData)
}

// NewHub cria um Hub.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[string]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
	}
}

// Run é o event loop do Hub; iniciado com `go hub.Run()` no main.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.addClient(client)

		case client := <-h.unregister:
			h.removeClient(client)
		}
	}
}

// ─── Callbacks de wire-up ───

// OnUserFirstConnect registra o callback disparado quando a PRIMEIRA
// conexão de um usuário chega (abre a sessão de rastreio).
func (h *Hub) OnUserFirstConnect(fn func(userKey, role string)) { h.onUserFirstConnect = fn }

// OnUserFullyDisconnect registra o callback disparado quando a ÚLTIMA
// conexão de um usuário cai (sessão vai para background).
func (h *Hub) OnUserFullyDisconnect(fn func(userKey string)) { h.onUserFullyDisconnect = fn }

// OnFocusChange registra o callback do evento focus.
func (h *Hub) OnFocusChange(fn func(userKey, conversationID string)) { h.onFocusChange = fn }

// OnAppStateChange registra o callback do evento app_state.
func (h *Hub) OnAppStateChange(fn func(userKey, state string)) { h.onAppStateChange = fn }

// OnMarkRead registra o callback do evento mark_read.
func (h *Hub) OnMarkRead(fn func(userKey string, data MarkReadData)) { h.onMarkRead = fn }

// addClient adiciona uma conexão nova ao Hub.
func (h *Hub) addClient(client *Client) {
	h.mu.Lock()
	_, existed := h.clients[client.userKey]
	if !existed {
		h.clients[client.userKey] = make(map[*Client]bool)
	}
	h.clients[client.userKey][client] = true
	total := len(h.clients[client.userKey])
	h.mu.Unlock()

	log.Printf("[ws] client connected: user=%s (connections: %d)", client.userKey, total)

	// Primeira conexão do usuário → abre a sessão de rastreio.
	// Em goroutine para não segurar o loop do Hub durante o load inicial.
	if !existed && h.onUserFirstConnect != nil {
		go h.onUserFirstConnect(client.userKey, client.role)
	}
}

// removeClient tira uma conexão do Hub e fecha o channel de envio dela.
func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	lastOne := false
	if clients, ok := h.clients[client.userKey]; ok {
		if _, exists := clients[client]; exists {
			delete(clients, client)
			close(client.send)

			if len(clients) == 0 {
				delete(h.clients, client.userKey)
				lastOne = true
			}
		}
	}
	h.mu.Unlock()

	if lastOne {
		log.Printf("[ws] user fully disconnected: %s", client.userKey)
		if h.onUserFullyDisconnect != nil {
			go h.onUserFullyDisconnect(client.userKey)
		}
	}
}

// BroadcastToUser envia um evento para todas as conexões de um usuário.
func (h *Hub) BroadcastToUser(userKey string, event Event) {
	event.Seq = h.seq.Add(1)

	data, err := json.Marshal(event)
	if err != nil {
		log.Printf("[ws] failed to marshal user event: %v", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	if clients, ok := h.clients[userKey]; ok {
		for client := range clients {
			select {
			case client.send <- data:
			default:
				// Buffer cheio — client lento demais, derruba a conexão.
				go func(c *Client) { h.unregister <- c }(client)
			}
		}
	}
}

// IsUserOnline diz se o usuário tem pelo menos uma conexão ativa.
// O NotificationService usa isto para decidir se manda e-mail.
func (h *Hub) IsUserOnline(userKey string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.clients[userKey]) > 0
}

// GetOnlineUserKeys devolve as chaves de todos os usuários conectados.
func (h *Hub) GetOnlineUserKeys() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	keys := make([]string, 0, len(h.clients))
	for userKey := range h.clients {
		keys = append(keys, userKey)
	}
	return keys
}

// Shutdown fecha todas as conexões (graceful shutdown).
func (h *Hub) Shutdown() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, clients := range h.clients {
		for client := range clients {
			close(client.send)
		}
	}
	h.clients = make(map[string]map[*Client]bool)
	log.Println("[ws] hub shut down, all connections closed")
}
