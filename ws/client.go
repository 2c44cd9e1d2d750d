package ws

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Constantes da conexão WebSocket.
const (
	// writeWait: tempo máximo para escrever uma mensagem antes de
	// considerar a conexão problemática.
	writeWait = 10 * time.Second

	// pongWait: prazo para chegar heartbeat. 3 heartbeats perdidos
	// (30s × 3) = conexão considerada morta.
	pongWait = 90 * time.Second

	// maxMessageSize: tamanho máximo de mensagem vinda do client (bytes).
	// Os eventos de controle são pequenos; payload grande vai por HTTP.
	maxMessageSize = 4096

	// sendBufferSize: buffer do channel de envio de cada client.
	// Cheio = client travado → a conexão é derrubada.
	sendBufferSize = 256
)

// Client, uma conexão WebSocket de uma UI.
//
// Padrão de duas goroutines por conexão:
// - ReadPump lê os eventos do client e dispara os callbacks do Hub
// - WritePump drena o channel send para o socket
// gorilla/websocket só aceita um leitor e um escritor por vez; separar em
// duas goroutines evita que leitura e escrita se bloqueiem.
type Client struct {
	hub     *Hub
	conn    *websocket.Conn
	id      string // uuid da conexão, só para log
	userKey string
	role    string
	send    chan []byte
	mu      sync.Mutex // serializa conn.WriteMessage
}

// ReadPump lê mensagens da conexão até ela cair.
// Roda na goroutine do handler HTTP; ao sair, desregistra o client.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)

	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		log.Printf("[ws] failed to set read deadline for user %s: %v", c.userKey, err)
		return
	}

	for {
		_, rawMessage, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("[ws] unexpected close for user %s (conn %s): %v", c.userKey, c.id, err)
			}
			return
		}

		var event Event
		if err := json.Unmarshal(rawMessage, &event); err != nil {
			log.Printf("[ws] invalid message from user %s: %v", c.userKey, err)
			continue
		}

		c.handleEvent(event)
	}
}

// handleEvent despacha um evento do client pelo Op.
func (c *Client) handleEvent(event Event) {
	switch event.Op {
	case OpHeartbeat:
		// Renova o prazo de leitura e confirma.
		if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
			log.Printf("[ws] failed to set read deadline for user %s: %v", c.userKey, err)
			return
		}
		c.sendEvent(Event{Op: OpHeartbeatAck})

	case OpFocus:
		c.handleFocus(event)

	case OpAppState:
		c.handleAppState(event)

	case OpMarkRead:
		c.handleMarkRead(event)

	default:
		log.Printf("[ws] unknown op from user %s: %s", c.userKey, event.Op)
	}
}

// handleFocus processa a troca de conversa em foco.
//
// event.Data chega como `any` — marshal + unmarshal é o caminho seguro
// para o struct tipado (não dá para fazer cast direto de map[string]any).
func (c *Client) handleFocus(event Event) {
	dataBytes, err := json.Marshal(event.Data)
	if err != nil {
		return
	}

	var data FocusData
	if err := json.Unmarshal(dataBytes, &data); err != nil {
		return
	}

	// Id vazio é válido: significa "nenhuma conversa aberta".
	if c.hub.onFocusChange != nil {
		// go func: o callback mexe no tracker e pode persistir — não pode
		// rodar segurando o read loop desta conexão.
		go c.hub.onFocusChange(c.userKey, data.ConversationID)
	}
}

// handleAppState processa foreground/background vindo do app.
func (c *Client) handleAppState(event Event) {
	dataBytes, err := json.Marshal(event.Data)
	if err != nil {
		return
	}

	var data AppStateData
	if err := json.Unmarshal(dataBytes, &data); err != nil {
		return
	}

	switch data.State {
	case AppStateForeground, AppStateBackground:
		// válido
	default:
		log.Printf("[ws] invalid app state from user %s: %s", c.userKey, data.State)
		return
	}

	if c.hub.onAppStateChange != nil {
		go c.hub.onAppStateChange(c.userKey, data.State)
	}
}

// handleMarkRead processa o mark_read vindo pelo socket.
func (c *Client) handleMarkRead(event Event) {
	dataBytes, err := json.Marshal(event.Data)
	if err != nil {
		return
	}

	var data MarkReadData
	if err := json.Unmarshal(dataBytes, &data); err != nil {
		return
	}

	if data.ConversationID == "" {
		log.Printf("[ws] mark_read without conversation_id from user %s", c.userKey)
		return
	}

	if c.hub.onMarkRead != nil {
		go c.hub.onMarkRead(c.userKey, data)
	}
}

// WritePump drena o channel send para o socket.
// Roda em goroutine própria; termina quando o Hub fecha o channel.
func (c *Client) WritePump() {
	defer c.conn.Close()

	for {
		message, ok := <-c.send
		if !ok {
			// Channel fechado — o Hub removeu este client.
			c.writeMessage(websocket.CloseMessage, nil)
			return
		}

		if err := c.writeMessage(websocket.TextMessage, message); err != nil {
			return
		}
	}
}

// sendEvent serializa e enfileira um evento para esta conexão.
func (c *Client) sendEvent(event Event) {
	data, err := json.Marshal(event)
	if err != nil {
		log.Printf("[ws] failed to marshal event for user %s: %v", c.userKey, err)
		return
	}

	select {
	case c.send <- data:
	default:
		log.Printf("[ws] send buffer full for user %s, dropping connection", c.userKey)
		c.hub.unregister <- c
	}
}

// writeMessage escreve no socket com deadline, sob mutex.
func (c *Client) writeMessage(messageType int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.conn.WriteMessage(messageType, data)
}
